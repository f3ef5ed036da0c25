//go:build linux

package gpio

import (
	"fmt"
	"sync/atomic"

	"github.com/warthog618/go-gpiocdev"
)

// RealDevice drives actual hardware through the Linux GPIO character
// device. Input edges are delivered by gpiocdev's event goroutine; the
// handler only sets an atomic flag and must never log, format strings
// or touch controller state.
type RealDevice struct {
	chip    *gpiocdev.Chip
	k1      *gpiocdev.Line
	k2      *gpiocdev.Line
	led     *gpiocdev.Line
	start   *gpiocdev.Line
	stop    *gpiocdev.Line
	running *gpiocdev.Line

	changed atomic.Bool
}

// NewRealDevice opens gpiochip0 and requests the relay, LED and input
// lines. Relays and LED start deasserted. Inputs are pull-up with
// both-edge events feeding the changed flag.
func NewRealDevice(pins PinConfig) (*RealDevice, error) {
	chip, err := gpiocdev.NewChip("gpiochip0")
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	d := &RealDevice{chip: chip}
	handler := func(gpiocdev.LineEvent) {
		// Interrupt context: flag only, all work deferred to the loop.
		d.changed.Store(true)
	}

	lines := []struct {
		dst  **gpiocdev.Line
		pin  int
		name string
		opts []gpiocdev.LineReqOption
	}{
		{&d.k1, pins.K1, "K1", []gpiocdev.LineReqOption{gpiocdev.AsOutput(0)}},
		{&d.k2, pins.K2, "K2", []gpiocdev.LineReqOption{gpiocdev.AsOutput(0)}},
		{&d.led, pins.LED, "LED", []gpiocdev.LineReqOption{gpiocdev.AsOutput(0)}},
		{&d.start, pins.Start, "START", []gpiocdev.LineReqOption{gpiocdev.AsInput, gpiocdev.WithPullUp, gpiocdev.WithBothEdges, gpiocdev.WithEventHandler(handler)}},
		{&d.stop, pins.Stop, "STOP", []gpiocdev.LineReqOption{gpiocdev.AsInput, gpiocdev.WithPullUp, gpiocdev.WithBothEdges, gpiocdev.WithEventHandler(handler)}},
		{&d.running, pins.Running, "RUNNING", []gpiocdev.LineReqOption{gpiocdev.AsInput, gpiocdev.WithPullUp, gpiocdev.WithBothEdges, gpiocdev.WithEventHandler(handler)}},
	}

	for _, l := range lines {
		line, err := chip.RequestLine(l.pin, l.opts...)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("request %s pin %d: %w", l.name, l.pin, err)
		}
		*l.dst = line
	}

	return d, nil
}

// ReadInputs samples the three input lines. Raw low = asserted because
// the inputs are pull-up with active-low wiring.
func (d *RealDevice) ReadInputs() (Inputs, error) {
	start, err := d.start.Value()
	if err != nil {
		return Inputs{}, fmt.Errorf("read START pin: %w", err)
	}
	stop, err := d.stop.Value()
	if err != nil {
		return Inputs{}, fmt.Errorf("read STOP pin: %w", err)
	}
	running, err := d.running.Value()
	if err != nil {
		return Inputs{}, fmt.Errorf("read RUNNING pin: %w", err)
	}

	return Inputs{
		Start:   start == 0,
		Stop:    stop == 0,
		Running: running == 0,
	}, nil
}

// SetStartRelay drives the K1 relay.
func (d *RealDevice) SetStartRelay(on bool) error {
	if err := d.k1.SetValue(level(on)); err != nil {
		return fmt.Errorf("set K1: %w", err)
	}
	return nil
}

// SetStopRelay drives the K2 relay.
func (d *RealDevice) SetStopRelay(on bool) error {
	if err := d.k2.SetValue(level(on)); err != nil {
		return fmt.Errorf("set K2: %w", err)
	}
	return nil
}

// SetStatusLED drives the status indicator.
func (d *RealDevice) SetStatusLED(on bool) error {
	if err := d.led.SetValue(level(on)); err != nil {
		return fmt.Errorf("set LED: %w", err)
	}
	return nil
}

// Changed reports whether an input edge arrived since the last clear.
func (d *RealDevice) Changed() bool {
	return d.changed.Load()
}

// ClearChanged resets the edge flag.
func (d *RealDevice) ClearChanged() {
	d.changed.Store(false)
}

// Close deasserts the relays and releases all lines. Relays are forced
// low first so a daemon restart never leaves a pulse latched.
func (d *RealDevice) Close() error {
	var errs []error

	for _, out := range []*gpiocdev.Line{d.k1, d.k2, d.led} {
		if out == nil {
			continue
		}
		if err := out.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("clear output: %w", err))
		}
		if err := out.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close output: %w", err))
		}
	}
	for _, in := range []*gpiocdev.Line{d.start, d.stop, d.running} {
		if in == nil {
			continue
		}
		if err := in.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close input: %w", err))
		}
	}
	if d.chip != nil {
		if err := d.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

func level(on bool) int {
	if on {
		return 1
	}
	return 0
}
