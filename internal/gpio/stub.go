//go:build !linux

package gpio

import "github.com/pkg/errors"

// CdevPin is not available on non-Linux platforms.
type CdevPin struct{}

// NewCdevPin returns an error on non-Linux platforms.
func NewCdevPin(chip string, offset int) (*CdevPin, error) {
	return nil, errors.New("gpio: character device not supported on this platform (requires Linux)")
}

// SetOutput is not implemented on non-Linux platforms.
func (p *CdevPin) SetOutput(level Level) error {
	return errors.New("gpio: not supported")
}

// SetInput is not implemented on non-Linux platforms.
func (p *CdevPin) SetInput() error {
	return errors.New("gpio: not supported")
}

// Read is not implemented on non-Linux platforms.
func (p *CdevPin) Read() (Level, error) {
	return Low, errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (p *CdevPin) Close() error {
	return nil
}
