package scan

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lyall/MandragoraFix/internal/image"
)

const base = 0x140001000

func TestParse(t *testing.T) {
	p, err := Parse("48 8b ?? ? E8")
	require.NoError(t, err)
	assert.Equal(t, 5, p.Len())
	assert.Equal(t, "48 8B ?? ?? E8", p.String())

	_, err = Parse("   ")
	assert.ErrorIs(t, err, ErrEmptyPattern)
	_, err = Parse("48 8G")
	assert.ErrorIs(t, err, ErrBadToken)
	_, err = Parse("488B")
	assert.ErrorIs(t, err, ErrBadToken)
	assert.Panics(t, func() { MustParse("") })
}

func TestWildcardMatchesAnyByte(t *testing.T) {
	p := MustParse("48 ?? C3")
	for b := 0; b < 256; b++ {
		assert.True(t, p.Match([]byte{0x48, byte(b), 0xc3}), "byte %02x", b)
	}
	assert.False(t, p.Match([]byte{0x49, 0x00, 0xc3}))
	assert.False(t, p.Match([]byte{0x48, 0x00, 0xc2}))
	assert.False(t, p.Match([]byte{0x48, 0x00}))
}

func TestFindRandomized(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for n := 0; n < 200; n++ {
		data := make([]byte, 64+rng.Intn(512))
		rng.Read(data)
		size := 1 + rng.Intn(8)
		at := rng.Intn(len(data) - size)
		wild := rng.Intn(size)

		text := ""
		for i := 0; i < size; i++ {
			if i > 0 {
				text += " "
			}
			if i == wild {
				text += "??"
			} else {
				text += hex2(data[at+i])
			}
		}
		p := MustParse(text)
		img := image.FromBytes("rand", base, data)
		addr, ok := Find(img, p)
		require.True(t, ok, text)
		// the first match may precede the planted one, but never follow it
		assert.LessOrEqual(t, addr, uintptr(base+at))
		b, err := img.Bytes(addr, size)
		require.NoError(t, err)
		assert.True(t, p.Match(b))
	}
}

func hex2(b byte) string {
	const digits = "0123456789ABCDEF"
	return string([]byte{digits[b>>4], digits[b&0xf]})
}

func TestFindNotFound(t *testing.T) {
	p := MustParse("DE AD ?? EF")
	_, ok := Find(image.FromBytes("empty", base, nil), p)
	assert.False(t, ok)
	_, ok = Find(image.FromBytes("zeros", base, make([]byte, 4096)), p)
	assert.False(t, ok)
	_, ok = Find(image.FromBytes("short", base, []byte{0xde, 0xad, 0x00}), p)
	assert.False(t, ok)
}

func TestFindSkipsDataSections(t *testing.T) {
	img := &image.Image{Base: base, Sections: []image.Section{
		{Name: ".rdata", Addr: base, Data: []byte{0xcc, 0x90, 0xc3}},
		{Name: ".text", Addr: base + 0x1000, Data: []byte{0x00, 0xcc, 0x90, 0xc3}, Exec: true},
	}}
	addr, ok := Find(img, MustParse("CC 90 C3"))
	require.True(t, ok)
	assert.Equal(t, uintptr(base+0x1001), addr)
}

func TestFindAllWildcardOnly(t *testing.T) {
	img := image.FromBytes("w", base, []byte{1, 2, 3, 4})
	assert.Equal(t, []uintptr{base, base + 1, base + 2}, FindAll(img, MustParse("?? ??"), 0))
	assert.Equal(t, []uintptr{base}, FindAll(img, MustParse("?? ??"), 1))
	assert.Equal(t, []uintptr{base + 1, base + 3}, FindAll(image.FromBytes("a", base, []byte{0, 7, 0, 7}), MustParse("07"), 0))
}

func TestAbsolute(t *testing.T) {
	cases := []struct {
		disp int32
		pad  byte
	}{
		{0x10, 0x00},
		{-0x20, 0xff},
		{0, 0xcc},
		{0x7fffffff, 0x90},
	}
	for _, c := range cases {
		code := []byte{c.pad, c.pad, c.pad,
			byte(c.disp), byte(c.disp >> 8), byte(c.disp >> 16), byte(c.disp >> 24),
			c.pad, c.pad}
		img := image.FromBytes("rel", base, code)
		got, err := Absolute(img, base+3)
		require.NoError(t, err)
		assert.Equal(t, uintptr(int64(base)+3+4+int64(c.disp)), got)
	}

	_, err := Absolute(image.FromBytes("short", base, []byte{1, 2}), base)
	assert.ErrorIs(t, err, image.ErrOutOfRange)
}
