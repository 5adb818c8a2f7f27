package fix

import (
	"bytes"
	"log/slog"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mf "github.com/Lyall/MandragoraFix"
	"github.com/Lyall/MandragoraFix/internal/config"
	"github.com/Lyall/MandragoraFix/internal/image"
	"github.com/Lyall/MandragoraFix/internal/sigs"
	"github.com/Lyall/MandragoraFix/internal/ue"
)

const table = `
sites:
  - name: Res
    pattern: "44 89 E0 90"
    hooks:
      - name: CurrentResolution
        registers: {width: r12, height: r15}
  - name: Cam
    pattern: "F3 0F 10 C0 ?? 90 90"
    hooks:
      - name: FOV
        registers: {fov: xmm0}
        requires: [aspect, fov]
      - name: AspectRatio
        offset: 4
        registers: {aspect: rax}
        requires: [aspect, fov]
  - name: Bad
    pattern: "11 22 33"
    hooks:
      - name: Nope
        registers: {object: rcx}
  - name: Missing
    pattern: "AA BB CC DD"
    hooks:
      - name: Widgets
        registers: {object: rdi}
        requires: [hud]
`

const base = 0x140000000

var code = []byte{
	0xcc, 0xcc,
	0x44, 0x89, 0xe0, 0x90, // mov eax, r12d
	0xf3, 0x0f, 0x10, 0xc0, 0x90, 0x90, 0x90, // movss xmm0, xmm0
	0x11, 0x22, 0x33,
	0xc3,
}

func start(t *testing.T, cfg config.Config, model ModelFunc) (*Fix, *mf.SoftTrap, string, error) {
	t.Helper()
	tab, err := sigs.Load(strings.NewReader(table))
	require.NoError(t, err)
	trap := mf.NewSoftTrap()
	var buf bytes.Buffer
	f, err := Start(Options{
		Image:  image.FromBytes("game.exe", base, code),
		Table:  tab,
		Config: &cfg,
		Trap:   trap,
		Log:    slog.New(slog.NewTextHandler(&buf, nil)),
		Model:  model,
	})
	return f, trap, buf.String(), err
}

func TestStart(t *testing.T) {
	called := false
	f, trap, out, err := start(t, config.Config{FixAspect: true, FixFOV: true, SpanHUD: true}, func(ue.Offsets) ue.Model {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.False(t, called, "model built without entry points")

	assert.Equal(t, map[string]uintptr{"Res": base + 2, "Cam": base + 6, "Bad": base + 13}, f.Sites)
	assert.Contains(t, out, "Res: Address is game.exe+2")
	assert.Contains(t, out, "Missing: Pattern scan failed.")
	assert.Contains(t, out, "no handler for hook: Nope")
	assert.Len(t, f.Engine.Hooks(), 3)
	assert.False(t, trap.Armed(base+13))

	var ctx mf.Context
	ctx.SetReg(mf.R12, 3440)
	ctx.SetReg(mf.R15, 1440)
	require.True(t, trap.Hit(base+2, &ctx))
	assert.InDelta(t, 3440.0/1440, f.State.Load().AspectRatio, 1e-6)

	ctx.XMM[0].SetFloat32(0, 90)
	require.True(t, trap.Hit(base+6, &ctx))
	assert.InDelta(t, 106.688, ctx.Float32(0, 0), 1e-2)

	require.True(t, trap.Hit(base+10, &ctx))
	assert.InDelta(t, 3440.0/1440, math.Float32frombits(uint32(ctx.Reg(mf.RAX))), 1e-6)
}

func TestStartFeaturesOff(t *testing.T) {
	f, trap, out, err := start(t, config.Config{}, nil)
	require.NoError(t, err)

	// disabled sites are not even scanned
	assert.NotContains(t, out, "Cam:")
	assert.NotContains(t, out, "Missing:")
	assert.True(t, trap.Armed(base+2))
	assert.False(t, trap.Armed(base+6))
	assert.Len(t, f.Engine.Hooks(), 1)
	assert.Contains(t, out, "object model unavailable")
}

func TestStartNoHooks(t *testing.T) {
	tab, err := sigs.Load(strings.NewReader(`
sites:
  - name: Missing
    pattern: "AA BB"
    hooks:
      - name: CurrentResolution
        registers: {width: rax, height: rbx}
`))
	require.NoError(t, err)
	_, err = Start(Options{
		Image:  image.FromBytes("game.exe", base, code),
		Table:  tab,
		Config: &config.Config{},
		Trap:   mf.NewSoftTrap(),
	})
	assert.ErrorIs(t, err, ErrNoHooks)
}

func TestFeatures(t *testing.T) {
	got := Features(&config.Config{FixAspect: true, SpanHUD: true})
	assert.Equal(t, map[string]bool{"aspect": true, "fov": false, "hud": true}, got)
}
