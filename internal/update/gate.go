// Package update exposes the firmware updater's exclusion signal to
// the control loop. The updater itself is external; the core only sees
// a boolean and skips the control tick entirely while it is set, since
// relay commands issued concurrently with a flash write are unsafe.
package update

import "sync/atomic"

// Gate is the update-in-progress flag. Safe for concurrent use.
type Gate struct {
	active atomic.Bool
}

// NewGate creates an inactive Gate.
func NewGate() *Gate {
	return &Gate{}
}

// Begin marks an update as in progress. Returns false if one already is.
func (g *Gate) Begin() bool {
	return g.active.CompareAndSwap(false, true)
}

// End marks the update as finished.
func (g *Gate) End() {
	g.active.Store(false)
}

// InProgress reports whether an update holds the device.
func (g *Gate) InProgress() bool {
	return g.active.Load()
}
