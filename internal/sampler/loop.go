package sampler

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sweeney/dht-exporter/internal/dht"
	"github.com/sweeney/dht-exporter/internal/mqtt"
	"github.com/sweeney/dht-exporter/internal/status"
)

// Loop reads the sensor once per tick and records the outcome.
type Loop struct {
	reader     Reader
	tracker    *status.Tracker
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	now        func() time.Time
	log        *logrus.Entry
}

// Option configures a Loop.
type Option func(*Loop)

// WithPublisher publishes every successful reading.
func WithPublisher(p mqtt.Publisher) Option {
	return func(l *Loop) { l.publisher = p }
}

// WithConnectionStatus mirrors the broker connection state into the tracker
// after every tick.
func WithConnectionStatus(s mqtt.ConnectionStatus) Option {
	return func(l *Loop) { l.mqttStatus = s }
}

// WithClock sets the clock used to timestamp successful readings.
func WithClock(now func() time.Time) Option {
	return func(l *Loop) { l.now = now }
}

// WithLogger sets the logger.
func WithLogger(log *logrus.Entry) Option {
	return func(l *Loop) { l.log = log }
}

// NewLoop creates a loop reading from r and writing to tracker.
func NewLoop(r Reader, tracker *status.Tracker, opts ...Option) *Loop {
	l := &Loop{
		reader:  r,
		tracker: tracker,
		now:     time.Now,
		log:     logrus.WithField("component", "sampler"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run performs exactly one read per tick until ctx is done or tick is
// closed. Reads never overlap, and a failed read is not retried before the
// next tick. Run always returns nil.
func (l *Loop) Run(ctx context.Context, tick <-chan time.Time) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-tick:
			if !ok {
				return nil
			}
			l.sample()
		}
	}
}

func (l *Loop) sample() {
	reading, took, err := l.reader.Read()
	if err != nil {
		kind := dht.KindOf(err)
		l.tracker.RecordFailure(kind)
		l.log.WithError(err).WithField("kind", kind.Label()).Warn("read failed")
	} else {
		at := l.now()
		l.tracker.RecordSuccess(reading, at, took)
		l.log.WithFields(logrus.Fields{
			"temperature_c": reading.Celsius(),
			"humidity_pct":  reading.RelativeHumidity(),
			"took":          took,
		}).Info("reading")

		if l.publisher != nil {
			event := mqtt.ReadingEvent{Timestamp: at, Reading: reading, Duration: took}
			if err := l.publisher.Publish(event); err != nil {
				l.log.WithError(err).Warn("publish reading")
			}
		}
	}

	if l.mqttStatus != nil {
		l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
	}
}
