// Package status holds the observation state of the dht-exporter daemon.
// It is written by the sampling loop and read by the metrics collector,
// the HTTP status page and MQTT lifecycle events.
package status

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sweeney/dht-exporter/internal/dht"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	Backend    string
	Pin        string
	IntervalMs int64
	StartLowMs int64
	Broker     string
	HTTPAddr   string
	WSBroker   string
	Name       string
}

// ErrorCounts holds one monotonic counter per dht.ErrorKind.
type ErrorCounts struct {
	PinAccess  uint64
	Timeout    uint64
	Malformed  uint64
	Checksum   uint64
	OutOfRange uint64
}

// Get returns the counter for kind.
func (c ErrorCounts) Get(kind dht.ErrorKind) uint64 {
	switch kind {
	case dht.KindPinAccess:
		return c.PinAccess
	case dht.KindTimeout:
		return c.Timeout
	case dht.KindMalformed:
		return c.Malformed
	case dht.KindChecksum:
		return c.Checksum
	case dht.KindOutOfRange:
		return c.OutOfRange
	}
	return 0
}

// Total returns the sum of all counters.
func (c ErrorCounts) Total() uint64 {
	return c.PinAccess + c.Timeout + c.Malformed + c.Checksum + c.OutOfRange
}

// inc bumps the counter for kind. Unknown kinds count as pin access
// failures so that no failure goes uncounted.
func (c *ErrorCounts) inc(kind dht.ErrorKind) {
	switch kind {
	case dht.KindPinAccess:
		c.PinAccess++
	case dht.KindTimeout:
		c.Timeout++
	case dht.KindMalformed:
		c.Malformed++
	case dht.KindChecksum:
		c.Checksum++
	case dht.KindOutOfRange:
		c.OutOfRange++
	default:
		c.PinAccess++
	}
}

// DurationBuckets are the upper bounds, in seconds, of the read duration
// histogram. A read is dominated by the 18ms start pulse.
var DurationBuckets = [...]float64{0.02, 0.025, 0.03, 0.04, 0.05, 0.075, 0.1, 0.25}

// DurationHistogram accumulates the durations of successful reads.
type DurationHistogram struct {
	Count uint64
	Sum   time.Duration
	// Buckets holds cumulative counts, one per entry in DurationBuckets.
	Buckets [len(DurationBuckets)]uint64
}

func (h *DurationHistogram) observe(d time.Duration) {
	h.Count++
	h.Sum += d
	secs := d.Seconds()
	for i, upper := range DurationBuckets {
		if secs <= upper {
			h.Buckets[i]++
		}
	}
}

// BucketCounts returns the cumulative counts keyed by upper bound.
func (h DurationHistogram) BucketCounts() map[float64]uint64 {
	m := make(map[float64]uint64, len(DurationBuckets))
	for i, upper := range DurationBuckets {
		m[upper] = h.Buckets[i]
	}
	return m
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after it has been returned.
type Snapshot struct {
	// Latest is the most recent successful reading; valid only if HasReading.
	Latest      dht.Reading
	HasReading  bool
	LastSuccess time.Time

	Attempts         uint64
	Errors           ErrorCounts
	LastReadDuration time.Duration
	ReadDurations    DurationHistogram

	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker publishes immutable snapshots. Each write copies the current
// snapshot, modifies the copy and swaps it in, so readers never block and
// never see half of an update.
type Tracker struct {
	mu   sync.Mutex // serialises writers
	snap atomic.Pointer[Snapshot]
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	t := &Tracker{}
	t.snap.Store(&Snapshot{
		StartTime: startTime,
		Config:    cfg,
	})
	return t
}

func (t *Tracker) update(fn func(s *Snapshot)) {
	t.mu.Lock()
	next := *t.snap.Load()
	fn(&next)
	t.snap.Store(&next)
	t.mu.Unlock()
}

// RecordSuccess counts an attempt and publishes r as the latest reading.
func (t *Tracker) RecordSuccess(r dht.Reading, at time.Time, took time.Duration) {
	t.update(func(s *Snapshot) {
		s.Attempts++
		s.Latest = r
		s.HasReading = true
		s.LastSuccess = at
		s.LastReadDuration = took
		s.ReadDurations.observe(took)
	})
}

// RecordFailure counts an attempt and a failure of the given kind. The
// previous reading, if any, stays in place.
func (t *Tracker) RecordFailure(kind dht.ErrorKind) {
	t.update(func(s *Snapshot) {
		s.Attempts++
		s.Errors.inc(kind)
	})
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.update(func(s *Snapshot) {
		s.MQTTConnected = connected
	})
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.update(func(s *Snapshot) {
		s.Network = info
	})
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	s := *t.snap.Load()
	s.Now = time.Now()
	return s
}
