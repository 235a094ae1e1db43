// Package dht reads DHT22/AM2302 temperature and humidity sensors over a
// single-wire GPIO line.
//
// The package is split along the read path: Capture times the level runs
// on the line, Decode turns those runs into a Reading, and Driver performs
// a full read attempt. Decode has no hardware or clock dependencies.
package dht

import (
	"fmt"
	"time"

	"github.com/sweeney/dht-exporter/internal/gpio"
)

// FrameSize is the number of bytes the sensor transmits per reading.
const FrameSize = 5

// Valid reading ranges, in tenths.
const (
	MinTemperature = -400
	MaxTemperature = 800
	MaxHumidity    = 1000
)

// Pulse is one contiguous run of a single level on the line.
type Pulse struct {
	Level    gpio.Level
	Duration time.Duration
}

// PulseSequence is the ordered runs captured during one read attempt.
type PulseSequence []Pulse

// Frame is the raw 40-bit sensor transmission: humidity high and low,
// temperature high and low, checksum.
type Frame [FrameSize]byte

// Checksum returns the low 8 bits of the sum of the four data bytes.
func (f Frame) Checksum() byte {
	return f[0] + f[1] + f[2] + f[3]
}

// Valid reports whether the transmitted checksum matches the data.
func (f Frame) Valid() bool {
	return f.Checksum() == f[4]
}

// Reading is a decoded sensor measurement.
type Reading struct {
	// Temperature in tenths of a degree Celsius.
	Temperature int16
	// Humidity in tenths of a percent relative humidity.
	Humidity uint16
}

// Celsius returns the temperature in degrees Celsius.
func (r Reading) Celsius() float64 {
	return float64(r.Temperature) / 10
}

// Fahrenheit returns the temperature in degrees Fahrenheit.
func (r Reading) Fahrenheit() float64 {
	return r.Celsius()*1.8 + 32
}

// RelativeHumidity returns the relative humidity in percent.
func (r Reading) RelativeHumidity() float64 {
	return float64(r.Humidity) / 10
}

// Frame re-encodes the reading as the sensor would transmit it.
func (r Reading) Frame() Frame {
	var f Frame
	f[0] = byte(r.Humidity >> 8)
	f[1] = byte(r.Humidity)

	t := r.Temperature
	var sign byte
	if t < 0 {
		sign = 0x80
		t = -t
	}
	f[2] = byte(uint16(t)>>8)&0x7f | sign
	f[3] = byte(t)
	f[4] = f.Checksum()
	return f
}

func (r Reading) String() string {
	return fmt.Sprintf("%.1f°C %.1f%%", r.Celsius(), r.RelativeHumidity())
}
