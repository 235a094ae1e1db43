package dht

import (
	"time"

	"github.com/sweeney/dht-exporter/internal/gpio"
)

// Nominal datasheet timings used to synthesise sensor traffic for fakes.
const (
	nominalRelease   = 30 * time.Microsecond
	nominalHandshake = 80 * time.Microsecond
	nominalBitLow    = 50 * time.Microsecond
	nominalZeroHigh  = 27 * time.Microsecond
	nominalOneHigh   = 70 * time.Microsecond
)

// Pulses returns the runs a sensor produces when transmitting f with
// nominal timings: release run, handshake, 40 bit pairs and the trailing
// low before the sensor lets go of the line.
func Pulses(f Frame) PulseSequence {
	seq := make(PulseSequence, 0, MaxPulses+1)
	seq = append(seq,
		Pulse{Level: gpio.High, Duration: nominalRelease},
		Pulse{Level: gpio.Low, Duration: nominalHandshake},
		Pulse{Level: gpio.High, Duration: nominalHandshake},
	)
	for i := 0; i < dataBits; i++ {
		high := nominalZeroHigh
		if f[i/8]&(0x80>>(i%8)) != 0 {
			high = nominalOneHigh
		}
		seq = append(seq,
			Pulse{Level: gpio.Low, Duration: nominalBitLow},
			Pulse{Level: gpio.High, Duration: high},
		)
	}
	return append(seq, Pulse{Level: gpio.Low, Duration: nominalBitLow})
}

// Waveform returns Pulses(f) as a script for gpio.FakePin.
func Waveform(f Frame) []gpio.Segment {
	seq := Pulses(f)
	out := make([]gpio.Segment, len(seq))
	for i, p := range seq {
		out[i] = gpio.Segment{Level: p.Level, Duration: p.Duration}
	}
	return out
}
