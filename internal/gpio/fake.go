package gpio

import "errors"

// FakeDevice is a test double with scripted input samples and recorded
// relay commands.
type FakeDevice struct {
	// Samples contains scripted input values; each ReadInputs call
	// consumes the next one. When exhausted, the last sample repeats.
	Samples []Inputs

	// index tracks current position in Samples.
	index int

	// K1, K2, LED hold the last commanded output levels.
	K1, K2, LED bool

	// K1Writes and K2Writes record every relay level change.
	K1Writes []bool
	K2Writes []bool

	// ChangedFlag backs Changed/ClearChanged.
	ChangedFlag bool

	// ReadError, if set, will be returned by ReadInputs.
	ReadError error

	// RelayError, if set, will be returned by the relay setters.
	RelayError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeDevice creates a FakeDevice with the given samples.
func NewFakeDevice(samples []Inputs) *FakeDevice {
	return &FakeDevice{Samples: samples}
}

// ReadInputs returns the next scripted sample.
func (f *FakeDevice) ReadInputs() (Inputs, error) {
	if f.ReadError != nil {
		return Inputs{}, f.ReadError
	}
	if len(f.Samples) == 0 {
		return Inputs{}, errors.New("no samples configured")
	}

	sample := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}
	return sample, nil
}

// SetStartRelay records the K1 command.
func (f *FakeDevice) SetStartRelay(on bool) error {
	if f.RelayError != nil {
		return f.RelayError
	}
	f.K1 = on
	f.K1Writes = append(f.K1Writes, on)
	return nil
}

// SetStopRelay records the K2 command.
func (f *FakeDevice) SetStopRelay(on bool) error {
	if f.RelayError != nil {
		return f.RelayError
	}
	f.K2 = on
	f.K2Writes = append(f.K2Writes, on)
	return nil
}

// SetStatusLED records the LED command.
func (f *FakeDevice) SetStatusLED(on bool) error {
	f.LED = on
	return nil
}

// Changed returns the scripted edge flag.
func (f *FakeDevice) Changed() bool {
	return f.ChangedFlag
}

// ClearChanged resets the edge flag.
func (f *FakeDevice) ClearChanged() {
	f.ChangedFlag = false
}

// Close marks the device as closed.
func (f *FakeDevice) Close() error {
	f.Closed = true
	return nil
}

// Reset rewinds the sample script and clears recorded commands.
func (f *FakeDevice) Reset() {
	f.index = 0
	f.K1, f.K2, f.LED = false, false, false
	f.K1Writes = nil
	f.K2Writes = nil
	f.ChangedFlag = false
	f.Closed = false
}
