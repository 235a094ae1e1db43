// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/dht-exporter/internal/dht"
)

const topicPrefix = "environment/dht/"

// ReadingsTopic is the MQTT topic for sensor readings of the named sensor.
func ReadingsTopic(name string) string {
	return topicPrefix + name + "/readings"
}

// SystemTopic is the MQTT topic for system lifecycle events of the named sensor.
func SystemTopic(name string) string {
	return topicPrefix + name + "/system"
}

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a sensor reading to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event ReadingEvent) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// ReadingEvent is one successful sensor read.
type ReadingEvent struct {
	Timestamp time.Time
	Reading   dht.Reading
	Duration  time.Duration
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, reconnect).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "RECONNECTED"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload for a reading.
type Payload struct {
	Reading ReadingPayload `json:"reading"`
}

// ReadingPayload contains the reading details.
type ReadingPayload struct {
	Timestamp    string  `json:"timestamp"`
	Sensor       string  `json:"sensor"`
	TemperatureC float64 `json:"temperature_c"`
	HumidityPct  float64 `json:"humidity_pct"`
	DurationMs   float64 `json:"read_ms"`
}

// FormatPayload creates the JSON payload for a reading of the named sensor.
func FormatPayload(sensor string, event ReadingEvent) ([]byte, error) {
	payload := Payload{
		Reading: ReadingPayload{
			Timestamp:    event.Timestamp.UTC().Format(time.RFC3339),
			Sensor:       sensor,
			TemperatureC: event.Reading.Celsius(),
			HumidityPct:  event.Reading.RelativeHumidity(),
			DurationMs:   float64(event.Duration.Microseconds()) / 1000,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
