// Package config loads the daemon configuration from a YAML file.
package config

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/sweeney/dht-exporter/internal/dht"
	"github.com/sweeney/dht-exporter/internal/gpio"
)

// Pin backends.
const (
	BackendCdev   = "cdev"
	BackendPeriph = "periph"
)

// MinInterval is the shortest sampling interval accepted. The sensor needs
// at least two seconds between reads.
const MinInterval = 3 * time.Second

// Bounds for the wake-up pulse.
const (
	MinStartLow = time.Millisecond
	MaxStartLow = 50 * time.Millisecond
)

// deriveWSBroker asks Validate to build the websocket URL from Broker.
const deriveWSBroker = "=broker"

// Config is the daemon configuration.
type Config struct {
	Backend  string        `yaml:"backend"`   // cdev or periph
	Chip     string        `yaml:"chip"`      // cdev only
	Pin      int           `yaml:"pin"`       // BCM line offset
	PinName  string        `yaml:"pin_name"`  // periph only, defaults to GPIO<pin>
	Interval time.Duration `yaml:"interval"`  // time between reads
	StartLow time.Duration `yaml:"start_low"` // wake-up pulse
	HTTP     string        `yaml:"http"`      // listen address, empty disables
	Broker   string        `yaml:"broker"`    // MQTT broker, empty disables
	WSBroker string        `yaml:"ws_broker"` // websocket URL for the status page
	Name     string        `yaml:"name"`      // sensor name in topics and labels
	LogLevel string        `yaml:"log_level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Backend:  BackendCdev,
		Chip:     gpio.DefaultChip,
		Pin:      gpio.DefaultPin,
		Interval: 30 * time.Second,
		StartLow: dht.DefaultStartLow,
		HTTP:     ":9781",
		WSBroker: deriveWSBroker,
		Name:     "dht22",
		LogLevel: "info",
	}
}

// Load reads the YAML file at path over the defaults. Unknown keys are
// rejected. The result is not validated.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "read config file")
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, nil
}

// Validate checks the configuration and fills derived values. It returns
// warnings for values it corrected.
func (c *Config) Validate() ([]string, error) {
	var warnings []string

	switch c.Backend {
	case BackendCdev, BackendPeriph:
	default:
		return nil, errors.Errorf("unknown backend %q (want %s or %s)", c.Backend, BackendCdev, BackendPeriph)
	}
	if c.Pin < 0 {
		return nil, errors.Errorf("invalid pin %d", c.Pin)
	}
	if c.StartLow < MinStartLow || c.StartLow > MaxStartLow {
		return nil, errors.Errorf("start_low %v outside [%v, %v]", c.StartLow, MinStartLow, MaxStartLow)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return nil, errors.Wrap(err, "log_level")
	}
	if c.Name == "" {
		return nil, errors.New("name must not be empty")
	}

	if c.Interval < MinInterval {
		warnings = append(warnings, fmt.Sprintf("interval %v below minimum, using %v", c.Interval, MinInterval))
		c.Interval = MinInterval
	}
	if c.PinName == "" {
		c.PinName = fmt.Sprintf("GPIO%d", c.Pin)
	}

	ws, err := resolveWSBroker(c.WSBroker, c.Broker)
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("ws_broker: %v", err))
	}
	c.WSBroker = ws

	return warnings, nil
}

// Level returns the parsed log level, or info if it does not parse.
func (c Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// PinLabel describes the configured line for display.
func (c Config) PinLabel() string {
	if c.Backend == BackendPeriph {
		return c.PinName
	}
	return fmt.Sprintf("%s/%d", c.Chip, c.Pin)
}

// resolveWSBroker converts the ws_broker value into a concrete URL.
// "=broker" derives ws://host:9001 from the TCP broker address; "off" disables.
func resolveWSBroker(ws, broker string) (string, error) {
	if ws == "off" {
		return "", nil
	}
	if ws != deriveWSBroker {
		return ws, nil
	}
	if broker == "" {
		return "", nil
	}
	u, err := url.Parse(broker)
	if err != nil {
		return "", errors.Wrapf(err, "cannot derive from broker %q", broker)
	}
	u.Scheme = "ws"
	u.Host = u.Hostname() + ":9001"
	return u.String(), nil
}
