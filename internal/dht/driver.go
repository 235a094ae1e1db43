package dht

import (
	"runtime/debug"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sweeney/dht-exporter/internal/gpio"
)

// DefaultStartLow is how long the host holds the line low to wake the
// sensor. The datasheet minimum is 1ms; 18ms also wakes sleepy parts.
const DefaultStartLow = 18 * time.Millisecond

// Driver performs complete read attempts against one sensor.
//
// A Driver is not safe for concurrent use. Callers must also leave at
// least two seconds between attempts; the sensor returns stale or corrupt
// data when polled faster.
type Driver struct {
	pin      gpio.Pin
	startLow time.Duration
	capture  CaptureConfig
	now      func() time.Time
	sleep    func(time.Duration)
	log      *logrus.Entry
}

// Option configures a Driver.
type Option func(*Driver)

// WithStartLow overrides the wake-up pulse length.
func WithStartLow(d time.Duration) Option {
	return func(dr *Driver) { dr.startLow = d }
}

// WithClock replaces the clock used for pulse timing and elapsed time.
func WithClock(now func() time.Time) Option {
	return func(dr *Driver) { dr.now = now }
}

// WithSleep replaces the sleep used for the wake-up pulse.
func WithSleep(sleep func(time.Duration)) Option {
	return func(dr *Driver) { dr.sleep = sleep }
}

// WithCaptureConfig overrides the capture limits.
func WithCaptureConfig(cfg CaptureConfig) Option {
	return func(dr *Driver) { dr.capture = cfg }
}

// WithLogger sets the logger for per-attempt debug output.
func WithLogger(log *logrus.Entry) Option {
	return func(dr *Driver) { dr.log = log }
}

// NewDriver creates a Driver for the sensor on pin.
func NewDriver(pin gpio.Pin, opts ...Option) *Driver {
	d := &Driver{
		pin:      pin,
		startLow: DefaultStartLow,
		capture:  DefaultCaptureConfig(),
		now:      time.Now,
		sleep:    time.Sleep,
		log:      logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Read performs one full read attempt and returns the reading and the
// wall-clock time it took. Every error is a *Error.
func (d *Driver) Read() (Reading, time.Duration, error) {
	start := d.now()

	seq, complete, err := d.acquire()
	if err != nil {
		return Reading{}, d.now().Sub(start), err
	}

	r, err := Decode(seq)
	took := d.now().Sub(start)

	log := d.log.WithFields(logrus.Fields{
		"pulses":   len(seq),
		"complete": complete,
		"took":     took,
	})
	if err != nil {
		log.WithError(err).Debug("sensor read failed")
		return Reading{}, took, err
	}
	log.WithFields(logrus.Fields{
		"temperature": r.Celsius(),
		"humidity":    r.RelativeHumidity(),
	}).Debug("sensor read")
	return r, took, nil
}

// acquire wakes the sensor and captures its response.
func (d *Driver) acquire() (PulseSequence, bool, error) {
	if err := d.pin.SetOutput(gpio.Low); err != nil {
		return nil, false, &Error{Kind: KindPinAccess, Msg: "drive start pulse", Err: err}
	}
	d.sleep(d.startLow)

	// A collection during capture would stretch pulses past every bound.
	gcPercent := debug.SetGCPercent(-1)
	defer debug.SetGCPercent(gcPercent)

	if err := d.pin.SetInput(); err != nil {
		if perr := d.pin.SetOutput(gpio.High); perr != nil {
			d.log.WithError(perr).Debug("park line after failed release")
		}
		return nil, false, &Error{Kind: KindPinAccess, Msg: "release line", Err: err}
	}
	seq, complete, err := Capture(d.pin, d.now, d.capture)

	// Park the line high so the next attempt starts from idle.
	if perr := d.pin.SetOutput(gpio.High); perr != nil && err == nil {
		err = &Error{Kind: KindPinAccess, Msg: "park line", Err: perr}
	}
	return seq, complete, err
}
