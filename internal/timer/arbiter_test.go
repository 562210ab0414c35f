package timer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubHandle struct{ stops int }

func (h *stubHandle) Stop() { h.stops++ }

func TestArbiter_RegisterReplacesPreviousOwner(t *testing.T) {
	a := NewArbiter()
	h1, h2 := &stubHandle{}, &stubHandle{}

	a.Register(1, h1)
	assert.True(t, a.IsActive(1))

	a.Register(2, h2)
	assert.Equal(t, 1, h1.stops, "previous handle must be stopped")
	assert.Zero(t, h2.stops)
	assert.False(t, a.IsActive(1))
	assert.True(t, a.IsActive(2))
}

func TestArbiter_RegisterSameIDKeepsOwnership(t *testing.T) {
	a := NewArbiter()
	h1, h2 := &stubHandle{}, &stubHandle{}

	a.Register(7, h1)
	a.Register(7, h2)

	assert.Zero(t, h1.stops)
	assert.True(t, a.IsActive(7))

	a.ClearActive()
	assert.Equal(t, 1, h2.stops, "latest handle is the one tracked")
	assert.Zero(t, h1.stops)
}

func TestArbiter_ClearInactiveLeavesOwner(t *testing.T) {
	a := NewArbiter()
	h := &stubHandle{}
	a.Register(1, h)

	a.Clear(99)

	assert.True(t, a.IsActive(1))
	assert.Zero(t, h.stops)
}

func TestArbiter_ClearActive(t *testing.T) {
	a := NewArbiter()
	h := &stubHandle{}
	a.Register(3, h)

	a.Clear(3)

	assert.Equal(t, 1, h.stops)
	assert.False(t, a.IsActive(3))
	_, ok := a.Active()
	assert.False(t, ok)
}

func TestArbiter_SetActiveWithoutHandle(t *testing.T) {
	a := NewArbiter()
	a.SetActive(5)
	assert.True(t, a.IsActive(5))

	// Nothing registered, nothing to stop.
	a.ClearActive()
	assert.False(t, a.IsActive(5))
}

func TestArbiter_AtMostOneActive(t *testing.T) {
	a := NewArbiter()
	for id := 1; id <= 5; id++ {
		a.Register(id, &stubHandle{})
		active := 0
		for probe := 1; probe <= 5; probe++ {
			if a.IsActive(probe) {
				active++
			}
		}
		assert.Equal(t, 1, active)
	}
}
