package gate

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObserve(t *testing.T) {
	var g Gate
	assert.True(t, g.Observe(0x1000))
	assert.False(t, g.Observe(0x1000))
	assert.True(t, g.Observe(0x2000))
	assert.True(t, g.Observe(0x1000))
	assert.Equal(t, uintptr(0x1000), g.Last())

	assert.Equal(t, "", g.Name())
	g.Remember("BP_HUD_C_0")
	assert.Equal(t, "BP_HUD_C_0", g.Name())
}

func TestObserveRaceSingleWinner(t *testing.T) {
	var g Gate
	g.Observe(1)
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.Observe(2) {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}
