// Package gpio provides single-line GPIO access with hardware abstraction.
// The real implementations use the Linux GPIO character device or periph.io.
// The fake implementation allows testing without hardware.
package gpio

// Level is the electrical level of a GPIO line.
type Level int

const (
	Low  Level = 0
	High Level = 1
)

func (l Level) String() string {
	if l == High {
		return "HIGH"
	}
	return "LOW"
}

// Pin is a single bidirectional GPIO line.
type Pin interface {
	// SetOutput switches the line to output mode and drives it to level.
	SetOutput(level Level) error

	// SetInput switches the line to input mode (high impedance, pulled up).
	SetInput() error

	// Read returns the current level of the line.
	Read() (Level, error)

	// Close releases GPIO resources.
	Close() error
}

// Defaults (BCM numbering)
const (
	DefaultChip = "gpiochip0"
	DefaultPin  = 4
)

// Consumer is the label attached to requested lines.
const Consumer = "dht-exporter"
