package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/sweeney/dht-exporter/internal/dht"
	"github.com/sweeney/dht-exporter/internal/status"
)

type fixedSource struct {
	snap  status.Snapshot
	calls int
}

func (s *fixedSource) Snapshot() status.Snapshot {
	s.calls++
	return s.snap
}

func TestCollectorBeforeFirstReading(t *testing.T) {
	src := &fixedSource{snap: status.Snapshot{
		Attempts: 2,
		Errors:   status.ErrorCounts{Timeout: 2},
	}}
	c := NewCollector(src)

	expected := `
# HELP dht_reads_total Sensor read attempts.
# TYPE dht_reads_total counter
dht_reads_total 2
# HELP dht_read_errors_total Failed sensor read attempts by kind.
# TYPE dht_read_errors_total counter
dht_read_errors_total{kind="checksum"} 0
dht_read_errors_total{kind="malformed"} 0
dht_read_errors_total{kind="out_of_range"} 0
dht_read_errors_total{kind="pin_access"} 0
dht_read_errors_total{kind="timeout"} 2
# HELP dht_up 1 once the sensor has produced a reading.
# TYPE dht_up gauge
dht_up 0
`
	err := testutil.CollectAndCompare(c, strings.NewReader(expected),
		"dht_reads_total", "dht_read_errors_total", "dht_up")
	if err != nil {
		t.Error(err)
	}

	for _, name := range []string{
		"dht_temperature_celsius",
		"dht_relative_humidity_percent",
		"dht_last_success_timestamp_seconds",
	} {
		if n := testutil.CollectAndCount(c, name); n != 0 {
			t.Errorf("%s: expected absent before first reading, got %d series", name, n)
		}
	}
}

func TestCollectorWithReading(t *testing.T) {
	src := &fixedSource{snap: status.Snapshot{
		Latest:           dht.Reading{Temperature: -35, Humidity: 833},
		HasReading:       true,
		LastSuccess:      time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
		Attempts:         7,
		Errors:           status.ErrorCounts{Checksum: 1, OutOfRange: 2},
		LastReadDuration: 22500 * time.Microsecond,
		ReadDurations: status.DurationHistogram{
			Count:   2,
			Sum:     45 * time.Millisecond,
			Buckets: [len(status.DurationBuckets)]uint64{0, 2, 2, 2, 2, 2, 2, 2},
		},
	}}
	c := NewCollector(src)

	expected := `
# HELP dht_temperature_celsius Temperature of the latest successful reading.
# TYPE dht_temperature_celsius gauge
dht_temperature_celsius -3.5
# HELP dht_relative_humidity_percent Relative humidity of the latest successful reading.
# TYPE dht_relative_humidity_percent gauge
dht_relative_humidity_percent 83.3
# HELP dht_last_success_timestamp_seconds Unix time of the latest successful reading.
# TYPE dht_last_success_timestamp_seconds gauge
dht_last_success_timestamp_seconds 1.7672688e+09
# HELP dht_reads_total Sensor read attempts.
# TYPE dht_reads_total counter
dht_reads_total 7
# HELP dht_read_errors_total Failed sensor read attempts by kind.
# TYPE dht_read_errors_total counter
dht_read_errors_total{kind="checksum"} 1
dht_read_errors_total{kind="malformed"} 0
dht_read_errors_total{kind="out_of_range"} 2
dht_read_errors_total{kind="pin_access"} 0
dht_read_errors_total{kind="timeout"} 0
# HELP dht_last_read_duration_seconds Duration of the latest successful read.
# TYPE dht_last_read_duration_seconds gauge
dht_last_read_duration_seconds 0.0225
# HELP dht_read_duration_seconds Duration of successful sensor reads.
# TYPE dht_read_duration_seconds histogram
dht_read_duration_seconds_bucket{le="0.02"} 0
dht_read_duration_seconds_bucket{le="0.025"} 2
dht_read_duration_seconds_bucket{le="0.03"} 2
dht_read_duration_seconds_bucket{le="0.04"} 2
dht_read_duration_seconds_bucket{le="0.05"} 2
dht_read_duration_seconds_bucket{le="0.075"} 2
dht_read_duration_seconds_bucket{le="0.1"} 2
dht_read_duration_seconds_bucket{le="0.25"} 2
dht_read_duration_seconds_bucket{le="+Inf"} 2
dht_read_duration_seconds_sum 0.045
dht_read_duration_seconds_count 2
# HELP dht_up 1 once the sensor has produced a reading.
# TYPE dht_up gauge
dht_up 1
`
	if err := testutil.CollectAndCompare(c, strings.NewReader(expected)); err != nil {
		t.Error(err)
	}
}

func TestCollectorReadDurationHistogram(t *testing.T) {
	tr := status.NewTracker(time.Now(), status.Config{})
	tr.RecordSuccess(dht.Reading{Temperature: 215, Humidity: 480}, time.Now(), 22*time.Millisecond)
	tr.RecordFailure(dht.KindTimeout)
	tr.RecordSuccess(dht.Reading{Temperature: 216, Humidity: 481}, time.Now(), 60*time.Millisecond)
	tr.RecordSuccess(dht.Reading{Temperature: 217, Humidity: 482}, time.Now(), 500*time.Millisecond)

	expected := `
# HELP dht_read_duration_seconds Duration of successful sensor reads.
# TYPE dht_read_duration_seconds histogram
dht_read_duration_seconds_bucket{le="0.02"} 0
dht_read_duration_seconds_bucket{le="0.025"} 1
dht_read_duration_seconds_bucket{le="0.03"} 1
dht_read_duration_seconds_bucket{le="0.04"} 1
dht_read_duration_seconds_bucket{le="0.05"} 1
dht_read_duration_seconds_bucket{le="0.075"} 2
dht_read_duration_seconds_bucket{le="0.1"} 2
dht_read_duration_seconds_bucket{le="0.25"} 2
dht_read_duration_seconds_bucket{le="+Inf"} 3
dht_read_duration_seconds_sum 0.582
dht_read_duration_seconds_count 3
`
	err := testutil.CollectAndCompare(NewCollector(tr), strings.NewReader(expected), "dht_read_duration_seconds")
	if err != nil {
		t.Error(err)
	}
}

func TestCollectorOneSnapshotPerScrape(t *testing.T) {
	src := &fixedSource{}
	c := NewCollector(src)

	testutil.CollectAndCount(c)

	if src.calls != 1 {
		t.Errorf("Snapshot calls per scrape: got %d, want 1", src.calls)
	}
}

func TestNewRegistry(t *testing.T) {
	tr := status.NewTracker(time.Now(), status.Config{})
	tr.RecordSuccess(dht.Reading{Temperature: 215, Humidity: 480}, time.Now(), 20*time.Millisecond)

	reg := NewRegistry(tr)
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}

	names := map[string]bool{}
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	for _, want := range []string{"dht_up", "dht_temperature_celsius", "dht_read_duration_seconds", "go_goroutines", "go_build_info", "dht_exporter_build_info"} {
		if !names[want] {
			t.Errorf("missing metric family %s", want)
		}
	}
}
