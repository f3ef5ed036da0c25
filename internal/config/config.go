// Package config provides the persisted controller tunables with an
// in-memory cache and write-through storage. The store is the single
// writer of the cache even when setters are invoked from the control
// surface; a storage failure leaves the cache on its last-known value
// and never blocks relay control.
package config

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrInvalidInput is returned when a setter rejects a value before any
// state change (retry limit outside 0-10, non-positive duration).
var ErrInvalidInput = errors.New("invalid input")

// Defaults used at boot when no stored value exists.
const (
	DefaultPowerUpDuration   = 10 * time.Second
	DefaultPowerDownDuration = 10 * time.Second
	DefaultRetryLimit        = 3
	DefaultAllowStart        = true

	// MaxRetryLimit bounds the retry limit; values above are rejected.
	MaxRetryLimit = 10
)

// Persisted is the stored form of the settings. Durations are kept as
// milliseconds in storage.
type Persisted struct {
	PowerUpMs   int64 `yaml:"power_up_ms"`
	PowerDownMs int64 `yaml:"power_down_ms"`
	RetryLimit  int   `yaml:"retry_limit"`
	AllowStart  bool  `yaml:"allow_start"`
}

// Backend abstracts the persistent key-value storage.
type Backend interface {
	// Load returns the stored settings. ok is false when nothing has
	// been stored yet, which is not an error.
	Load() (p Persisted, ok bool, err error)

	// Save writes the settings to storage.
	Save(p Persisted) error
}

// Store caches the settings and writes every change through to the
// backend. The cache is updated only after the write succeeds, so a
// reload after a failed set observes the previous value.
type Store struct {
	mu      sync.RWMutex
	backend Backend
	cur     Persisted
	logf    func(format string, args ...any)

	// onDisallow runs after allow_start is persisted as false. The main
	// loop wires it to an immediate controller stop.
	onDisallow func()
}

// Load creates a Store from the backend, falling back to defaults for
// anything not stored. A backend read failure is non-fatal: the store
// starts from defaults and logs the error.
func Load(backend Backend, logf func(format string, args ...any)) *Store {
	s := &Store{
		backend: backend,
		logf:    logf,
		cur: Persisted{
			PowerUpMs:   DefaultPowerUpDuration.Milliseconds(),
			PowerDownMs: DefaultPowerDownDuration.Milliseconds(),
			RetryLimit:  DefaultRetryLimit,
			AllowStart:  DefaultAllowStart,
		},
	}

	p, ok, err := backend.Load()
	if err != nil {
		s.logf("config: load failed, using defaults: %v", err)
		return s
	}
	if !ok {
		s.logf("config: no stored settings, using defaults")
		return s
	}

	if p.PowerUpMs > 0 {
		s.cur.PowerUpMs = p.PowerUpMs
	}
	if p.PowerDownMs > 0 {
		s.cur.PowerDownMs = p.PowerDownMs
	}
	if p.RetryLimit >= 0 && p.RetryLimit <= MaxRetryLimit {
		s.cur.RetryLimit = p.RetryLimit
	}
	s.cur.AllowStart = p.AllowStart
	return s
}

// SetOnDisallow registers the hook invoked when starting is disabled.
func (s *Store) SetOnDisallow(fn func()) {
	s.mu.Lock()
	s.onDisallow = fn
	s.mu.Unlock()
}

// PowerUpDuration returns how long K1 is held during a start pulse.
func (s *Store) PowerUpDuration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Duration(s.cur.PowerUpMs) * time.Millisecond
}

// PowerDownDuration returns how long K2 is held during a stop pulse.
func (s *Store) PowerDownDuration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Duration(s.cur.PowerDownMs) * time.Millisecond
}

// RetryLimit returns the maximum number of verification-driven retries.
func (s *Store) RetryLimit() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur.RetryLimit
}

// AllowStart reports whether START commands are honored.
func (s *Store) AllowStart() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur.AllowStart
}

// Snapshot returns a copy of the current settings.
func (s *Store) Snapshot() Persisted {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// SetPowerUpDuration persists and caches a new power-up duration.
func (s *Store) SetPowerUpDuration(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("%w: power-up duration must be positive, got %v", ErrInvalidInput, d)
	}
	return s.commit(func(p *Persisted) { p.PowerUpMs = d.Milliseconds() })
}

// SetPowerDownDuration persists and caches a new power-down duration.
func (s *Store) SetPowerDownDuration(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("%w: power-down duration must be positive, got %v", ErrInvalidInput, d)
	}
	return s.commit(func(p *Persisted) { p.PowerDownMs = d.Milliseconds() })
}

// SetRetryLimit persists and caches a new retry limit (0-10).
func (s *Store) SetRetryLimit(n int) error {
	if n < 0 || n > MaxRetryLimit {
		return fmt.Errorf("%w: retry limit must be 0-%d, got %d", ErrInvalidInput, MaxRetryLimit, n)
	}
	return s.commit(func(p *Persisted) { p.RetryLimit = n })
}

// SetAllowStart persists and caches the start-allowed flag. Disabling
// starts additionally fires the onDisallow hook so the generator is
// stopped as a safety side effect.
func (s *Store) SetAllowStart(allow bool) error {
	if err := s.commit(func(p *Persisted) { p.AllowStart = allow }); err != nil {
		return err
	}
	s.mu.RLock()
	hook := s.onDisallow
	s.mu.RUnlock()
	if !allow && hook != nil {
		hook()
	}
	return nil
}

// commit writes the mutated settings to storage and updates the cache
// only on success. No partial write: the mutation happens on a copy.
func (s *Store) commit(mutate func(*Persisted)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cur
	mutate(&next)
	if err := s.backend.Save(next); err != nil {
		s.logf("config: save failed, keeping cached settings: %v", err)
		return fmt.Errorf("persist settings: %w", err)
	}
	s.cur = next
	return nil
}
