package mqtt

import (
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

// RealPublisher publishes to an actual MQTT broker.
//
// While the connection is down, messages are held in a bounded buffer and
// replayed in order once paho connects again.
type RealPublisher struct {
	client paho.Client
	name   string
	log    *logrus.Entry

	mu        sync.Mutex
	buffer    *ringBuffer
	connected bool // set after the first successful connect
}

// NewRealPublisher creates a publisher for the named sensor connected to the
// given broker.
func NewRealPublisher(broker, name string) (*RealPublisher, error) {
	p := newPublisher(nil, name)

	will, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "OFFLINE"})
	if err != nil {
		return nil, errors.Wrap(err, "format will payload")
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID("dht-exporter-" + name).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(SystemTopic(name), string(will), 1, true).
		SetOnConnectHandler(func(paho.Client) { p.onConnect() }).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			p.log.WithError(err).Warn("connection lost")
		})

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		// paho keeps retrying; messages are buffered until it succeeds
		p.log.WithField("broker", broker).Warn("broker not reachable yet, retrying in background")
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, errors.Wrap(err, "connect to broker")
	}

	return p, nil
}

func newPublisher(client paho.Client, name string) *RealPublisher {
	return &RealPublisher{
		client: client,
		name:   name,
		log:    logrus.WithFields(logrus.Fields{"component": "mqtt", "sensor": name}),
		buffer: newRingBuffer(bufferCapacity),
	}
}

// Publish sends a reading to the MQTT broker.
func (p *RealPublisher) Publish(event ReadingEvent) error {
	payload, err := FormatPayload(p.name, event)
	if err != nil {
		return errors.Wrap(err, "format payload")
	}

	// QoS 0 (at-most-once), not retained
	return p.send(bufferedMsg{topic: ReadingsTopic(p.name), payload: payload})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return errors.Wrap(err, "format system payload")
	}

	// QoS 1 (at-least-once) so lifecycle events are not lost
	return p.send(bufferedMsg{
		topic:    SystemTopic(p.name),
		payload:  payload,
		qos:      1,
		retained: event.Retained,
	})
}

// IsConnected reports whether the broker connection is currently up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}

func (p *RealPublisher) send(msg bufferedMsg) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.client.IsConnectionOpen() {
		p.buffer.push(msg)
		p.log.WithField("buffered", p.buffer.len()).Debug("not connected, message buffered")
		return nil
	}
	return p.publish(msg)
}

func (p *RealPublisher) publish(msg bufferedMsg) error {
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(publishTimeout) {
		return errors.Errorf("publish to %s: timeout", msg.topic)
	}
	return errors.Wrapf(token.Error(), "publish to %s", msg.topic)
}

// onConnect runs on every successful connect and replays whatever was
// buffered meanwhile. Reconnects are announced with a RECONNECTED event
// ahead of the replay.
func (p *RealPublisher) onConnect() {
	p.mu.Lock()
	defer p.mu.Unlock()

	pending := p.buffer.drainAll()

	if !p.connected {
		p.connected = true
		p.log.WithField("pending", len(pending)).Info("connected")
	} else {
		p.log.WithField("pending", len(pending)).Info("reconnected")
		event, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"})
		if err == nil {
			err = p.publish(bufferedMsg{topic: SystemTopic(p.name), payload: event, qos: 1})
		}
		if err != nil {
			p.log.WithError(err).Warn("publish reconnect event")
		}
	}

	for i, msg := range pending {
		if err := p.publish(msg); err != nil {
			// connection dropped again; keep the rest for the next reconnect
			for _, rest := range pending[i:] {
				p.buffer.push(rest)
			}
			p.log.WithError(err).Warn("replay interrupted")
			return
		}
	}
}
