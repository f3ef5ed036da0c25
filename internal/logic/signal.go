package logic

import "time"

// Signal tracks one monitored digital line and derives a debounced
// stable state from raw samples. Edges are defined only on transitions
// of the stable state, never on raw readings.
type Signal struct {
	window     time.Duration
	raw        bool
	stable     bool
	lastChange time.Time
	seeded     bool
}

// NewSignal creates a Signal with the given debounce window.
func NewSignal(window time.Duration) *Signal {
	return &Signal{window: window}
}

// Seed initializes the signal from an actual line read taken at boot.
// Seeding sets both the raw and stable state so the first real
// transition, not the boot-time level, produces the first edge.
func (s *Signal) Seed(raw bool, now time.Time) {
	s.raw = raw
	s.stable = raw
	s.lastChange = now
	s.seeded = true
}

// Update feeds one raw sample and returns the stable-state edge it
// produced, if any. The stable state changes only after the raw
// reading has held steady for at least the debounce window.
func (s *Signal) Update(raw bool, now time.Time) Edge {
	if !s.seeded {
		s.Seed(raw, now)
		return EdgeNone
	}

	if raw != s.raw {
		s.raw = raw
		s.lastChange = now
		return EdgeNone
	}

	if now.Sub(s.lastChange) < s.window {
		return EdgeNone
	}

	if s.raw == s.stable {
		return EdgeNone
	}

	s.stable = s.raw
	if s.stable {
		return EdgeRising
	}
	return EdgeFalling
}

// Stable returns the debounced state.
func (s *Signal) Stable() bool {
	return s.stable
}

// Seeded reports whether the signal has been initialized from a read.
func (s *Signal) Seeded() bool {
	return s.seeded
}
