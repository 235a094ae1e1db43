// Command dht-exporter reads a DHT22 sensor on a GPIO line and exports the
// readings as Prometheus metrics, optionally publishing them to MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/common/version"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/sweeney/dht-exporter/internal/config"
	"github.com/sweeney/dht-exporter/internal/dht"
	"github.com/sweeney/dht-exporter/internal/gpio"
	"github.com/sweeney/dht-exporter/internal/metrics"
	"github.com/sweeney/dht-exporter/internal/mqtt"
	"github.com/sweeney/dht-exporter/internal/sampler"
	"github.com/sweeney/dht-exporter/internal/status"
	"github.com/sweeney/dht-exporter/internal/web"
)

const shutdownTimeout = 5 * time.Second

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	opts, err := parseArgs(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		logrus.Fatalf("fatal: %v", err)
	}
	if opts.showVersion {
		fmt.Println(version.Print(metrics.Program))
		return
	}

	warnings, err := opts.cfg.Validate()
	if err != nil {
		logrus.Fatalf("fatal: invalid configuration: %v", err)
	}
	logrus.SetLevel(opts.cfg.Level())
	for _, w := range warnings {
		logrus.Warn(w)
	}

	if err := run(opts.cfg, opts.printReading); err != nil {
		logrus.Fatalf("fatal: %v", err)
	}
}

type options struct {
	cfg          config.Config
	printReading bool
	showVersion  bool
}

// parseArgs loads the config file named by --config, if any, and applies
// the flags that were set explicitly on top of it.
func parseArgs(args []string) (options, error) {
	def := config.Default()
	fl := def

	fs := flag.NewFlagSet("dht-exporter", flag.ContinueOnError)
	path := fs.String("config", "", "YAML config file")
	fs.StringVar(&fl.Backend, "backend", def.Backend, "GPIO backend: cdev or periph")
	fs.StringVar(&fl.Chip, "chip", def.Chip, "GPIO chip (cdev)")
	fs.IntVar(&fl.Pin, "pin", def.Pin, "BCM pin number of the sensor data line")
	fs.StringVar(&fl.PinName, "pin-name", def.PinName, "GPIO name (periph, default GPIO<pin>)")
	fs.DurationVar(&fl.Interval, "interval", def.Interval, "Time between sensor reads")
	fs.DurationVar(&fl.StartLow, "start-low", def.StartLow, "Length of the wake-up pulse")
	fs.StringVar(&fl.HTTP, "http", def.HTTP, "HTTP listen address (empty to disable)")
	fs.StringVar(&fl.Broker, "broker", def.Broker, "MQTT broker address (empty to disable)")
	fs.StringVar(&fl.WSBroker, "ws-broker", def.WSBroker, `MQTT websocket URL for live UI ("=broker" derives from --broker, "off" disables)`)
	fs.StringVar(&fl.Name, "name", def.Name, "Sensor name used in MQTT topics")
	fs.StringVar(&fl.LogLevel, "log-level", def.LogLevel, "Log level")
	printReading := fs.Bool("print-reading", false, "Read the sensor once, print the result and exit")
	showVersion := fs.Bool("version", false, "Print version information and exit")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	cfg := def
	if *path != "" {
		var err error
		if cfg, err = config.Load(*path); err != nil {
			return options{}, err
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "backend":
			cfg.Backend = fl.Backend
		case "chip":
			cfg.Chip = fl.Chip
		case "pin":
			cfg.Pin = fl.Pin
		case "pin-name":
			cfg.PinName = fl.PinName
		case "interval":
			cfg.Interval = fl.Interval
		case "start-low":
			cfg.StartLow = fl.StartLow
		case "http":
			cfg.HTTP = fl.HTTP
		case "broker":
			cfg.Broker = fl.Broker
		case "ws-broker":
			cfg.WSBroker = fl.WSBroker
		case "name":
			cfg.Name = fl.Name
		case "log-level":
			cfg.LogLevel = fl.LogLevel
		}
	})

	return options{cfg: cfg, printReading: *printReading, showVersion: *showVersion}, nil
}

func run(cfg config.Config, printOnly bool) error {
	log := logrus.WithField("sensor", cfg.Name)

	pin, err := openPin(cfg)
	if err != nil {
		return errors.Wrap(err, "init gpio")
	}
	defer pin.Close()

	driver := dht.NewDriver(pin,
		dht.WithStartLow(cfg.StartLow),
		dht.WithLogger(log.WithField("component", "dht")),
	)

	// Print reading mode
	if printOnly {
		return printReading(os.Stdout, driver)
	}

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), statusConfig(cfg))
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	d := &daemon{
		tracker:  tracker,
		interval: cfg.Interval,
		log:      log,
	}

	if cfg.Broker != "" {
		publisher, err := mqtt.NewRealPublisher(cfg.Broker, cfg.Name)
		if err != nil {
			return errors.Wrap(err, "init mqtt")
		}
		defer publisher.Close()
		d.publisher = publisher
		d.conn = publisher
	}

	if cfg.HTTP != "" {
		d.server = web.New(cfg.HTTP, tracker, metrics.NewRegistry(tracker))
	}

	worker := sampler.NewWorker(driver)
	defer worker.Close()
	d.reader = worker

	log.WithFields(logrus.Fields{
		"version":  version.Info(),
		"pin":      cfg.PinLabel(),
		"interval": cfg.Interval,
		"http":     cfg.HTTP,
		"broker":   cfg.Broker,
	}).Info("started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	return d.run(context.Background(), sigCh)
}

// daemon wires the sampling loop, the HTTP server and the MQTT lifecycle
// events together.
type daemon struct {
	tracker   *status.Tracker
	reader    sampler.Reader
	publisher mqtt.Publisher        // nil when MQTT is disabled
	conn      mqtt.ConnectionStatus // nil when MQTT is disabled
	server    *web.Server           // nil when HTTP is disabled
	interval  time.Duration
	now       func() time.Time
	log       *logrus.Entry
}

func (d *daemon) run(ctx context.Context, sig <-chan os.Signal) error {
	now := d.now
	if now == nil {
		now = time.Now
	}

	d.publishSystem("STARTUP", "")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	reason := "UNKNOWN"
	g.Go(func() error {
		select {
		case s := <-sig:
			reason = signalName(s)
			d.log.Infof("received %v, shutting down", s)
			cancel()
		case <-gctx.Done():
		}
		return nil
	})

	loopOpts := []sampler.Option{sampler.WithClock(now), sampler.WithLogger(d.log.WithField("component", "sampler"))}
	if d.publisher != nil {
		loopOpts = append(loopOpts, sampler.WithPublisher(d.publisher))
	}
	if d.conn != nil {
		loopOpts = append(loopOpts, sampler.WithConnectionStatus(d.conn))
	}
	loop := sampler.NewLoop(d.reader, d.tracker, loopOpts...)
	g.Go(func() error {
		return loop.Run(gctx, sampler.Every(gctx, d.interval, now))
	})

	if d.server != nil {
		g.Go(func() error {
			if err := d.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return errors.Wrap(err, "http server")
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return d.server.Shutdown(shutCtx)
		})
	}

	err := g.Wait()
	if err != nil {
		reason = "ERROR"
	}
	d.publishSystem("SHUTDOWN", reason)
	return err
}

// publishSystem sends a lifecycle event carrying the full status snapshot.
func (d *daemon) publishSystem(event, reason string) {
	if d.publisher == nil {
		return
	}
	if d.conn != nil {
		d.tracker.SetMQTTConnected(d.conn.IsConnected())
	}
	snap := d.tracker.Snapshot()
	err := d.publisher.PublishSystem(mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      event,
		Reason:     reason,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	})
	if err != nil {
		d.log.WithError(err).Warnf("failed to publish %s event", event)
		return
	}
	d.log.Infof("published %s event", event)
}

func openPin(cfg config.Config) (gpio.Pin, error) {
	if cfg.Backend == config.BackendPeriph {
		pin, err := gpio.NewPeriphPin(cfg.PinName)
		if err != nil {
			return nil, err
		}
		return pin, nil
	}
	pin, err := gpio.NewCdevPin(cfg.Chip, cfg.Pin)
	if err != nil {
		return nil, err
	}
	return pin, nil
}

func printReading(w io.Writer, r sampler.Reader) error {
	reading, took, err := r.Read()
	if err != nil {
		return errors.Wrap(err, "read sensor")
	}
	fmt.Fprintf(w, "Temperature: %.1f°C, Humidity: %.1f%% (read in %v)\n",
		reading.Celsius(), reading.RelativeHumidity(), took.Round(time.Millisecond))
	return nil
}

func statusConfig(cfg config.Config) status.Config {
	return status.Config{
		Backend:    cfg.Backend,
		Pin:        cfg.PinLabel(),
		IntervalMs: cfg.Interval.Milliseconds(),
		StartLowMs: cfg.StartLow.Milliseconds(),
		Broker:     cfg.Broker,
		HTTPAddr:   cfg.HTTP,
		WSBroker:   cfg.WSBroker,
		Name:       cfg.Name,
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
