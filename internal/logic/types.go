// Package logic contains the pure control core for the genset: the
// signal debouncer and the start/stop interlock state machine.
// This package has NO external dependencies (no GPIO, MQTT, OS, or
// time.Sleep). Time is always injectable via time.Time parameters.
package logic

import "time"

// State represents the controller's lifecycle state. The generator's
// actual running state is observed through the feedback signal and is
// tracked separately; at most one of STARTING/STOPPING is active.
type State string

const (
	StateIdle     State = "IDLE"
	StateStarting State = "STARTING"
	StateStopping State = "STOPPING"
)

// EventType identifies a controller transition to be published.
type EventType string

const (
	EventStarting    EventType = "GEN_STARTING"
	EventStartRetry  EventType = "GEN_START_RETRY"
	EventStartFailed EventType = "GEN_START_FAILED"
	EventRunning     EventType = "GEN_RUNNING"
	EventStopping    EventType = "GEN_STOPPING"
	EventStopped     EventType = "GEN_STOPPED"
)

// Event is a controller transition snapshot for publishing.
type Event struct {
	Timestamp time.Time
	Type      EventType
	State     State
	Running   bool
	Attempt   int // start attempt number, 0 for the initial attempt
}

// Edge is a transition of a debounced signal's stable state.
type Edge int

const (
	EdgeNone Edge = iota
	EdgeRising
	EdgeFalling
)

// Relays abstracts the two actuation outputs. K1 pulses to crank the
// generator up, K2 pulses to wind it down.
type Relays interface {
	// SetStartRelay drives the K1 (power-up) relay.
	SetStartRelay(on bool) error

	// SetStopRelay drives the K2 (power-down) relay.
	SetStopRelay(on bool) error
}

// Logf is the injected logging capability. The controller never owns a
// log sink; callers pass log.Printf or a ring-buffer-backed equivalent.
type Logf func(format string, args ...any)

// Counts tracks controller activity since startup.
type Counts struct {
	Starts    int // accepted start commands
	Stops     int // accepted stop commands
	Retries   int // verification-driven re-attempts
	Failures  int // starts abandoned after exhausting retries
	Confirmed int // starts confirmed by running feedback
}
