// Package gpio provides the relay, LED and signal-input hardware
// boundary. The real implementation uses the Linux GPIO character
// device; the fake implementation allows testing without hardware.
package gpio

// Inputs is one sample of the three monitored lines, in logical form.
// The raw GPIO values are inverted: the inputs are wired pull-up, so
// raw low = logically asserted.
type Inputs struct {
	Start   bool // START request asserted
	Stop    bool // STOP request asserted
	Running bool // generator running feedback
}

// Device is the full GPIO boundary consumed by the control loop.
type Device interface {
	// ReadInputs samples the three input lines.
	ReadInputs() (Inputs, error)

	// SetStartRelay drives the K1 (power-up) relay.
	SetStartRelay(on bool) error

	// SetStopRelay drives the K2 (power-down) relay.
	SetStopRelay(on bool) error

	// SetStatusLED drives the status indicator.
	SetStatusLED(on bool) error

	// Changed reports whether any input line transitioned since the
	// flag was last cleared. Edge interrupts do nothing beyond setting
	// this flag; the loop re-samples the lines rather than trusting
	// interrupt timing, so coalesced edges are still handled correctly.
	Changed() bool

	// ClearChanged resets the edge flag.
	ClearChanged()

	// Close releases GPIO resources.
	Close() error
}

// Pin defaults from the controller board.
const (
	DefaultPinK1      = 16 // power-up relay
	DefaultPinK2      = 17 // power-down relay
	DefaultPinLED     = 23 // status indicator
	DefaultPinStart   = 35 // START request input
	DefaultPinStop    = 34 // STOP request input
	DefaultPinRunning = 32 // running feedback input
)

// PinConfig selects the GPIO line offsets.
type PinConfig struct {
	K1      int
	K2      int
	LED     int
	Start   int
	Stop    int
	Running int
}

// DefaultPins returns the board's default pin assignment.
func DefaultPins() PinConfig {
	return PinConfig{
		K1:      DefaultPinK1,
		K2:      DefaultPinK2,
		LED:     DefaultPinLED,
		Start:   DefaultPinStart,
		Stop:    DefaultPinStop,
		Running: DefaultPinRunning,
	}
}
