//go:build linux

package gpio

import (
	"github.com/pkg/errors"
	"github.com/warthog618/go-gpiocdev"
)

// CdevPin drives a line through the Linux GPIO character device.
type CdevPin struct {
	line   *gpiocdev.Line
	offset int
}

// NewCdevPin requests the line at offset on chip (e.g. "gpiochip0").
// The line starts as an output held high, which is the idle state of the
// single-wire bus.
func NewCdevPin(chip string, offset int) (*CdevPin, error) {
	line, err := gpiocdev.RequestLine(chip, offset,
		gpiocdev.AsOutput(int(High)),
		gpiocdev.WithConsumer(Consumer))
	if err != nil {
		return nil, errors.Wrapf(err, "request line %d on %s", offset, chip)
	}
	return &CdevPin{line: line, offset: offset}, nil
}

// SetOutput reconfigures the line as an output driving level.
func (p *CdevPin) SetOutput(level Level) error {
	if err := p.line.Reconfigure(gpiocdev.AsOutput(int(level))); err != nil {
		return errors.Wrapf(err, "set pin %d output %s", p.offset, level)
	}
	return nil
}

// SetInput reconfigures the line as an input with the internal pull-up.
func (p *CdevPin) SetInput() error {
	if err := p.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullUp); err != nil {
		return errors.Wrapf(err, "set pin %d input", p.offset)
	}
	return nil
}

// Read returns the current line level.
func (p *CdevPin) Read() (Level, error) {
	v, err := p.line.Value()
	if err != nil {
		return Low, errors.Wrapf(err, "read pin %d", p.offset)
	}
	if v == 0 {
		return Low, nil
	}
	return High, nil
}

// Close releases the line.
// The line is left as an input with pull-up so the bus idles high while
// nothing owns it.
func (p *CdevPin) Close() error {
	var errs []error
	if err := p.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullUp); err != nil {
		errs = append(errs, errors.Wrap(err, "reconfigure pin"))
	}
	if err := p.line.Close(); err != nil {
		errs = append(errs, errors.Wrap(err, "close pin"))
	}
	if len(errs) > 0 {
		return errors.Errorf("close errors: %v", errs)
	}
	return nil
}
