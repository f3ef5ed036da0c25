//go:build !linux

package gpio

import "errors"

// RealDevice is not available on non-Linux platforms.
type RealDevice struct{}

// NewRealDevice returns an error on non-Linux platforms.
func NewRealDevice(PinConfig) (*RealDevice, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// ReadInputs is not implemented on non-Linux platforms.
func (d *RealDevice) ReadInputs() (Inputs, error) {
	return Inputs{}, errors.New("gpio: not supported")
}

// SetStartRelay is not implemented on non-Linux platforms.
func (d *RealDevice) SetStartRelay(bool) error { return errors.New("gpio: not supported") }

// SetStopRelay is not implemented on non-Linux platforms.
func (d *RealDevice) SetStopRelay(bool) error { return errors.New("gpio: not supported") }

// SetStatusLED is not implemented on non-Linux platforms.
func (d *RealDevice) SetStatusLED(bool) error { return errors.New("gpio: not supported") }

// Changed is not implemented on non-Linux platforms.
func (d *RealDevice) Changed() bool { return false }

// ClearChanged is not implemented on non-Linux platforms.
func (d *RealDevice) ClearChanged() {}

// Close is not implemented on non-Linux platforms.
func (d *RealDevice) Close() error { return nil }
