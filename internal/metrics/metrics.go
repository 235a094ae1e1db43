// Package metrics exposes the observation state as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	versioncollector "github.com/prometheus/client_golang/prometheus/collectors/version"

	"github.com/sweeney/dht-exporter/internal/dht"
	"github.com/sweeney/dht-exporter/internal/status"
)

const namespace = "dht"

// Program is the name reported by the version collector.
const Program = "dht_exporter"

// Source provides the snapshot a scrape is rendered from.
type Source interface {
	Snapshot() status.Snapshot
}

// Collector renders one snapshot per scrape as const metrics, so every
// value in a scrape comes from the same sampling cycle.
type Collector struct {
	source Source

	temperature *prometheus.Desc
	humidity    *prometheus.Desc
	lastSuccess *prometheus.Desc
	reads       *prometheus.Desc
	errors      *prometheus.Desc
	duration    *prometheus.Desc
	durations   *prometheus.Desc
	up          *prometheus.Desc
}

// NewCollector creates a Collector reading from source.
func NewCollector(source Source) *Collector {
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, nil)
	}
	return &Collector{
		source:      source,
		temperature: desc("temperature_celsius", "Temperature of the latest successful reading."),
		humidity:    desc("relative_humidity_percent", "Relative humidity of the latest successful reading."),
		lastSuccess: desc("last_success_timestamp_seconds", "Unix time of the latest successful reading."),
		reads:       desc("reads_total", "Sensor read attempts."),
		errors:      desc("read_errors_total", "Failed sensor read attempts by kind.", "kind"),
		duration:    desc("last_read_duration_seconds", "Duration of the latest successful read."),
		durations:   desc("read_duration_seconds", "Duration of successful sensor reads."),
		up:          desc("up", "1 once the sensor has produced a reading."),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.temperature
	ch <- c.humidity
	ch <- c.lastSuccess
	ch <- c.reads
	ch <- c.errors
	ch <- c.duration
	ch <- c.durations
	ch <- c.up
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.source.Snapshot()

	up := 0.0
	if snap.HasReading {
		up = 1
		ch <- prometheus.MustNewConstMetric(c.temperature, prometheus.GaugeValue, snap.Latest.Celsius())
		ch <- prometheus.MustNewConstMetric(c.humidity, prometheus.GaugeValue, snap.Latest.RelativeHumidity())
		ch <- prometheus.MustNewConstMetric(c.lastSuccess, prometheus.GaugeValue,
			float64(snap.LastSuccess.UnixNano())/1e9)
	}
	ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, up)

	ch <- prometheus.MustNewConstMetric(c.reads, prometheus.CounterValue, float64(snap.Attempts))
	for _, kind := range dht.Kinds {
		ch <- prometheus.MustNewConstMetric(c.errors, prometheus.CounterValue,
			float64(snap.Errors.Get(kind)), kind.Label())
	}
	ch <- prometheus.MustNewConstMetric(c.duration, prometheus.GaugeValue, snap.LastReadDuration.Seconds())
	ch <- prometheus.MustNewConstHistogram(c.durations, snap.ReadDurations.Count,
		snap.ReadDurations.Sum.Seconds(), snap.ReadDurations.BucketCounts())
}

// NewRegistry returns a registry holding a Collector for source together
// with the Go runtime, process, build info and version collectors.
func NewRegistry(source Source) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		NewCollector(source),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewBuildInfoCollector(),
		versioncollector.NewCollector(Program),
	)
	return reg
}
