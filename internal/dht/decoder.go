package dht

import (
	"time"

	"github.com/sweeney/dht-exporter/internal/gpio"
)

const (
	dataBits        = 8 * FrameSize
	handshakePulses = 2
)

// Pulse widths from the AM2302 datasheet. A data bit is a ~50µs low run
// followed by a high run of 26-28µs for a 0 or ~70µs for a 1.
const (
	// Only the upper bound applies to the handshake. Its low run is timed
	// from the moment the line became an input, so it may be cut short.
	handshakeMax = 120 * time.Microsecond

	bitLowMin = 30 * time.Microsecond
	bitLowMax = 90 * time.Microsecond

	bitHighMin = 8 * time.Microsecond
	bitHighMax = 100 * time.Microsecond

	// bitThreshold sits midway between the 0 and 1 high widths.
	bitThreshold = 48 * time.Microsecond
)

// Decode reconstructs a Reading from the runs captured after the host
// released the line. It is deterministic and never retries.
//
// The expected sequence is an optional high run (the pull-up after the
// host releases the line), the sensor's low/high handshake, then 40 pairs
// of low/high runs carrying one bit each, most significant bit first.
// Anything after the 40th bit is ignored.
func Decode(seq PulseSequence) (Reading, error) {
	if len(seq) > 0 && seq[0].Level == gpio.High {
		seq = seq[1:]
	}
	if len(seq) < handshakePulses {
		return Reading{}, newError(KindTimeout, "no response from sensor (%d pulses)", len(seq))
	}
	if err := checkHandshake(seq[:handshakePulses]); err != nil {
		return Reading{}, err
	}
	data := seq[handshakePulses:]
	if len(data) < 2*dataBits {
		return Reading{}, newError(KindTimeout, "incomplete frame: %d of %d bits", len(data)/2, dataBits)
	}

	var f Frame
	for i := 0; i < dataBits; i++ {
		bit, err := decodeBit(i, data[2*i], data[2*i+1])
		if err != nil {
			return Reading{}, err
		}
		f[i/8] = f[i/8]<<1 | bit
	}
	return FromFrame(f)
}

// FromFrame validates a raw frame and converts it to a Reading.
func FromFrame(f Frame) (Reading, error) {
	if !f.Valid() {
		return Reading{}, newError(KindChecksum, "checksum mismatch: frame %#02x, computed %#02x", f[4], f.Checksum())
	}

	humidity := uint16(f[0])<<8 | uint16(f[1])
	temperature := int16(uint16(f[2]&0x7f)<<8 | uint16(f[3]))
	if f[2]&0x80 != 0 {
		temperature = -temperature
	}

	if humidity > MaxHumidity {
		return Reading{}, newError(KindOutOfRange, "humidity %d out of range", humidity)
	}
	if temperature < MinTemperature || temperature > MaxTemperature {
		return Reading{}, newError(KindOutOfRange, "temperature %d out of range", temperature)
	}
	return Reading{Temperature: temperature, Humidity: humidity}, nil
}

func checkHandshake(hs PulseSequence) error {
	want := [handshakePulses]gpio.Level{gpio.Low, gpio.High}
	for i, p := range hs {
		if p.Level != want[i] {
			return newError(KindMalformed, "handshake pulse %d: level %s, want %s", i, p.Level, want[i])
		}
		if p.Duration > handshakeMax {
			return newError(KindMalformed, "handshake pulse %d: width %v", i, p.Duration)
		}
	}
	return nil
}

func decodeBit(i int, low, high Pulse) (byte, error) {
	if low.Level != gpio.Low || high.Level != gpio.High {
		return 0, newError(KindMalformed, "bit %d: levels %s/%s", i, low.Level, high.Level)
	}
	if low.Duration < bitLowMin || low.Duration > bitLowMax {
		return 0, newError(KindMalformed, "bit %d: low width %v", i, low.Duration)
	}
	if high.Duration < bitHighMin || high.Duration > bitHighMax {
		return 0, newError(KindMalformed, "bit %d: high width %v", i, high.Duration)
	}
	if high.Duration >= bitThreshold {
		return 1, nil
	}
	return 0, nil
}
