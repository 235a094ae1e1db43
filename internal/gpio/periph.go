package gpio

import (
	"github.com/pkg/errors"
	pgpio "periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// PeriphPin drives a line through periph.io, which uses memory-mapped
// registers where the host supports them and falls back to sysfs otherwise.
type PeriphPin struct {
	pin pgpio.PinIO
}

// NewPeriphPin initialises the periph host drivers and looks up the pin by
// name (e.g. "GPIO4"). The pin starts as an output held high.
func NewPeriphPin(name string) (*PeriphPin, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "periph host init")
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, errors.Errorf("periph: no pin named %q", name)
	}
	if err := pin.Out(pgpio.High); err != nil {
		return nil, errors.Wrapf(err, "set %s output high", name)
	}
	return &PeriphPin{pin: pin}, nil
}

// SetOutput drives the pin to level.
func (p *PeriphPin) SetOutput(level Level) error {
	l := pgpio.Low
	if level == High {
		l = pgpio.High
	}
	if err := p.pin.Out(l); err != nil {
		return errors.Wrapf(err, "set %s output %s", p.pin.Name(), level)
	}
	return nil
}

// SetInput switches the pin to input with pull-up and no edge detection.
func (p *PeriphPin) SetInput() error {
	if err := p.pin.In(pgpio.PullUp, pgpio.NoEdge); err != nil {
		return errors.Wrapf(err, "set %s input", p.pin.Name())
	}
	return nil
}

// Read returns the pin level. periph reads cannot fail.
func (p *PeriphPin) Read() (Level, error) {
	if p.pin.Read() == pgpio.High {
		return High, nil
	}
	return Low, nil
}

// Close halts the pin.
func (p *PeriphPin) Close() error {
	if err := p.pin.Halt(); err != nil {
		return errors.Wrapf(err, "halt %s", p.pin.Name())
	}
	return nil
}
