package dht

import (
	"time"

	"github.com/sweeney/dht-exporter/internal/gpio"
)

// Capture limits for one read.
const (
	// MaxPulses is the release run, the two handshake runs and 40 low/high
	// bit pairs.
	MaxPulses = 1 + handshakePulses + 2*dataBits

	// PulseTimeout bounds a single run. The longest legitimate run is the
	// 80µs handshake.
	PulseTimeout = time.Millisecond

	// CaptureWindow bounds the whole capture. A frame of all ones takes
	// just under 5ms.
	CaptureWindow = 6 * time.Millisecond
)

// CaptureConfig controls Capture.
type CaptureConfig struct {
	MaxPulses    int
	PulseTimeout time.Duration
	Window       time.Duration
}

// DefaultCaptureConfig returns the limits for a DHT22 frame.
func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{
		MaxPulses:    MaxPulses,
		PulseTimeout: PulseTimeout,
		Window:       CaptureWindow,
	}
}

// Capture busy-polls pin and records the duration of each level run.
// It returns once cfg.MaxPulses runs have completed (complete is true), or
// when a run outlasts cfg.PulseTimeout or the capture outlasts cfg.Window
// (complete is false and the runs seen so far are returned).
//
// The pin must already be in input mode. Capture holds the calling
// goroutine for the whole window and must not share its thread with
// latency-sensitive work. A pin read error is returned as KindPinAccess.
func Capture(pin gpio.Pin, now func() time.Time, cfg CaptureConfig) (seq PulseSequence, complete bool, err error) {
	seq = make(PulseSequence, 0, cfg.MaxPulses)

	level, err := pin.Read()
	if err != nil {
		return seq, false, &Error{Kind: KindPinAccess, Msg: "read pin", Err: err}
	}
	start := now()
	deadline := start.Add(cfg.Window)

	for len(seq) < cfg.MaxPulses {
		for {
			cur, err := pin.Read()
			if err != nil {
				return seq, false, &Error{Kind: KindPinAccess, Msg: "read pin", Err: err}
			}
			t := now()
			if cur != level {
				seq = append(seq, Pulse{Level: level, Duration: t.Sub(start)})
				level, start = cur, t
				break
			}
			if t.Sub(start) > cfg.PulseTimeout || t.After(deadline) {
				return seq, false, nil
			}
		}
	}
	return seq, true, nil
}
