package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/dht-exporter/internal/dht"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Reading       *ReadingJSON `json:"reading"`
	Reads         ReadsJSON    `json:"reads"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// ReadingJSON is the latest successful reading. Null until the first one.
type ReadingJSON struct {
	TemperatureC float64 `json:"temperature_c"`
	HumidityPct  float64 `json:"humidity_pct"`
	Timestamp    string  `json:"timestamp"`
}

// ReadsJSON reports attempt and error counters.
type ReadsJSON struct {
	Attempts       uint64            `json:"attempts"`
	Errors         map[string]uint64 `json:"errors"`
	LastDurationMs float64           `json:"last_duration_ms"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Backend    string `json:"backend"`
	Pin        string `json:"pin"`
	IntervalMs int64  `json:"interval_ms"`
	StartLowMs int64  `json:"start_low_ms"`
	Broker     string `json:"broker"`
	HTTPAddr   string `json:"http_addr"`
	WSBroker   string `json:"ws_broker,omitempty"`
	Name       string `json:"name"`
}

func buildInner(snap Snapshot) StatusInner {
	errs := make(map[string]uint64, len(dht.Kinds))
	for _, k := range dht.Kinds {
		errs[k.Label()] = snap.Errors.Get(k)
	}

	inner := StatusInner{
		Reads: ReadsJSON{
			Attempts:       snap.Attempts,
			Errors:         errs,
			LastDurationMs: float64(snap.LastReadDuration) / float64(time.Millisecond),
		},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			Backend:    snap.Config.Backend,
			Pin:        snap.Config.Pin,
			IntervalMs: snap.Config.IntervalMs,
			StartLowMs: snap.Config.StartLowMs,
			Broker:     snap.Config.Broker,
			HTTPAddr:   snap.Config.HTTPAddr,
			WSBroker:   snap.Config.WSBroker,
			Name:       snap.Config.Name,
		},
	}
	if snap.HasReading {
		inner.Reading = &ReadingJSON{
			TemperatureC: snap.Latest.Celsius(),
			HumidityPct:  snap.Latest.RelativeHumidity(),
			Timestamp:    snap.LastSuccess.UTC().Format(time.RFC3339),
		}
	}
	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
