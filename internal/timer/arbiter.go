// Package timer owns countdown scheduling: a Clock that produces periodic
// callbacks and an Arbiter that keeps at most one countdown alive per owner.
package timer

import "sync"

// Handle is anything that can be stopped, usually a Ticker.
type Handle interface {
	Stop()
}

// Arbiter tracks which session id currently owns the countdown. At most one
// id is active at a time; registering a new id stops the previous handle.
// The zero value is not usable, use NewArbiter.
type Arbiter struct {
	mu        sync.Mutex
	activeID  int
	hasActive bool
	handles   map[int]Handle
}

// NewArbiter creates an arbiter with no active id.
func NewArbiter() *Arbiter {
	return &Arbiter{handles: make(map[int]Handle)}
}

// Register makes id the sole active countdown owner. A different active id
// has its handle stopped and forgotten first. Registering the active id
// again only replaces the stored handle.
func (a *Arbiter) Register(id int, h Handle) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.hasActive && a.activeID != id {
		if prev, ok := a.handles[a.activeID]; ok && prev != nil {
			prev.Stop()
		}
		delete(a.handles, a.activeID)
	}
	a.handles[id] = h
	a.activeID = id
	a.hasActive = true
}

// Clear releases id. If id is active its handle is stopped and ownership is
// dropped; otherwise only its bookkeeping is removed.
func (a *Arbiter) Clear(id int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.hasActive && a.activeID == id {
		if h, ok := a.handles[id]; ok && h != nil {
			h.Stop()
		}
		a.hasActive = false
		a.activeID = 0
	}
	delete(a.handles, id)
}

// IsActive reports whether id currently owns the countdown.
func (a *Arbiter) IsActive(id int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.hasActive && a.activeID == id
}

// SetActive marks id as the owner without registering a handle. A handle of
// a previous owner is left running until it is cleared or replaced.
func (a *Arbiter) SetActive(id int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.activeID = id
	a.hasActive = true
}

// ClearActive stops the active handle, if any, and drops ownership.
func (a *Arbiter) ClearActive() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.hasActive {
		return
	}
	if h, ok := a.handles[a.activeID]; ok && h != nil {
		h.Stop()
	}
	delete(a.handles, a.activeID)
	a.hasActive = false
	a.activeID = 0
}

// Active returns the active id and whether there is one.
func (a *Arbiter) Active() (int, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.activeID, a.hasActive
}
