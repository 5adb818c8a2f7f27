package mandragorafix

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReg(t *testing.T) {
	for i, name := range regNames {
		r, err := ParseReg(name)
		require.NoError(t, err)
		assert.Equal(t, Reg(i), r)
		assert.Equal(t, name, r.String())
	}
	r, err := ParseReg(" R15 ")
	require.NoError(t, err)
	assert.Equal(t, R15, r)

	_, err = ParseReg("eax")
	assert.ErrorIs(t, err, ErrBadRegister)
	assert.Equal(t, "reg(99)", Reg(99).String())
}

func TestParseXMM(t *testing.T) {
	n, err := ParseXMM("xmm0")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	n, err = ParseXMM("XMM15")
	require.NoError(t, err)
	assert.Equal(t, 15, n)

	for _, bad := range []string{"xmm16", "xmm", "ymm0", "xmm-1"} {
		_, err := ParseXMM(bad)
		assert.ErrorIs(t, err, ErrBadRegister, bad)
	}
}

func TestVecLanes(t *testing.T) {
	var c Context
	c.SetFloat32(3, 0, 90)
	c.SetFloat32(3, 2, -1.5)
	assert.Equal(t, float32(90), c.Float32(3, 0))
	assert.Equal(t, float32(0), c.Float32(3, 1))
	assert.Equal(t, float32(-1.5), c.Float32(3, 2))

	bits := math.Float32bits(90)
	assert.Equal(t, byte(bits), c.XMM[3][0])
	assert.Equal(t, byte(bits>>24), c.XMM[3][3])
}
