package mqtt

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sweeney/dht-exporter/internal/dht"
)

type fakeToken struct {
	err     error
	timeout bool
}

func (t *fakeToken) Wait() bool { return !t.timeout }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return !t.timeout }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *fakeToken) Error() error { return t.err }

// fakeClient implements the parts of paho.Client the publisher uses.
type fakeClient struct {
	paho.Client

	mu         sync.Mutex
	open       bool
	published  []bufferedMsg
	publishErr error
	disconnect bool
}

func (c *fakeClient) IsConnectionOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *fakeClient) setOpen(open bool) {
	c.mu.Lock()
	c.open = open
	c.mu.Unlock()
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.publishErr != nil {
		return &fakeToken{err: c.publishErr}
	}
	c.published = append(c.published, bufferedMsg{
		topic:    topic,
		payload:  payload.([]byte),
		qos:      qos,
		retained: retained,
	})
	return &fakeToken{}
}

func (c *fakeClient) Disconnect(uint) {
	c.disconnect = true
}

func systemEvent(t *testing.T, msg bufferedMsg) string {
	t.Helper()
	var parsed SystemPayload
	if err := json.Unmarshal(msg.payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	return parsed.System.Event
}

func TestRealPublisherPublishesWhenConnected(t *testing.T) {
	c := &fakeClient{open: true}
	p := newPublisher(c, "loft")

	err := p.Publish(ReadingEvent{
		Timestamp: time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC),
		Reading:   dht.Reading{Temperature: 215, Humidity: 480},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(c.published) != 1 {
		t.Fatalf("expected 1 message, got %d", len(c.published))
	}
	msg := c.published[0]
	if msg.topic != "environment/dht/loft/readings" {
		t.Errorf("topic: got %s", msg.topic)
	}
	if msg.qos != 0 || msg.retained {
		t.Errorf("expected qos 0 not retained, got qos=%d retained=%v", msg.qos, msg.retained)
	}
}

func TestRealPublisherSystemEventQoS(t *testing.T) {
	c := &fakeClient{open: true}
	p := newPublisher(c, "loft")

	if err := p.PublishSystem(SystemEvent{Event: "STARTUP", Retained: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msg := c.published[0]
	if msg.topic != "environment/dht/loft/system" {
		t.Errorf("topic: got %s", msg.topic)
	}
	if msg.qos != 1 || !msg.retained {
		t.Errorf("expected qos 1 retained, got qos=%d retained=%v", msg.qos, msg.retained)
	}
}

func TestRealPublisherPublishError(t *testing.T) {
	c := &fakeClient{open: true, publishErr: errors.New("write failed")}
	p := newPublisher(c, "loft")

	if err := p.Publish(ReadingEvent{}); err == nil {
		t.Error("expected error")
	}
}

func TestRealPublisherBuffersWhileDisconnected(t *testing.T) {
	c := &fakeClient{open: true}
	p := newPublisher(c, "loft")
	p.onConnect() // initial connect

	c.setOpen(false)
	for i := 1; i <= 3; i++ {
		if err := p.Publish(ReadingEvent{Reading: dht.Reading{Temperature: int16(i)}}); err != nil {
			t.Fatalf("publish while disconnected should not fail: %v", err)
		}
	}
	if len(c.published) != 0 {
		t.Fatalf("expected nothing sent while disconnected, got %d", len(c.published))
	}
	if p.buffer.len() != 3 {
		t.Fatalf("expected 3 buffered, got %d", p.buffer.len())
	}

	c.setOpen(true)
	p.onConnect()

	if len(c.published) != 4 {
		t.Fatalf("expected RECONNECTED plus 3 replayed, got %d", len(c.published))
	}
	if ev := systemEvent(t, c.published[0]); ev != "RECONNECTED" {
		t.Errorf("first message: got %s, want RECONNECTED", ev)
	}
	for i, msg := range c.published[1:] {
		var parsed Payload
		json.Unmarshal(msg.payload, &parsed)
		if want := float64(i+1) / 10; parsed.Reading.TemperatureC != want {
			t.Errorf("replay %d: got %v, want %v", i, parsed.Reading.TemperatureC, want)
		}
	}
	if p.buffer.len() != 0 {
		t.Errorf("buffer should be empty after replay, got %d", p.buffer.len())
	}
}

func TestRealPublisherFirstConnectSendsNothing(t *testing.T) {
	c := &fakeClient{open: true}
	p := newPublisher(c, "loft")

	p.onConnect()

	if len(c.published) != 0 {
		t.Errorf("expected no messages on first connect, got %d", len(c.published))
	}
}

func TestRealPublisherFirstConnectFlushesBuffer(t *testing.T) {
	c := &fakeClient{}
	p := newPublisher(c, "loft")

	// broker unreachable at startup
	p.PublishSystem(SystemEvent{Event: "STARTUP", Retained: true})
	p.Publish(ReadingEvent{Reading: dht.Reading{Temperature: 200}})

	c.setOpen(true)
	p.onConnect()

	if len(c.published) != 2 {
		t.Fatalf("expected 2 replayed messages and no RECONNECTED, got %d", len(c.published))
	}
	if ev := systemEvent(t, c.published[0]); ev != "STARTUP" {
		t.Errorf("first message: got %s, want STARTUP", ev)
	}
	if !c.published[0].retained {
		t.Error("replayed STARTUP should keep its retained flag")
	}
	if c.published[1].topic != "environment/dht/loft/readings" {
		t.Errorf("second message topic: got %s", c.published[1].topic)
	}
}

func TestRealPublisherReplayInterrupted(t *testing.T) {
	c := &fakeClient{open: true}
	p := newPublisher(c, "loft")
	p.onConnect()

	c.setOpen(false)
	p.Publish(ReadingEvent{})
	p.Publish(ReadingEvent{})

	c.setOpen(true)
	c.publishErr = errors.New("connection reset")
	p.onConnect()

	if p.buffer.len() != 2 {
		t.Errorf("expected 2 messages kept for next reconnect, got %d", p.buffer.len())
	}
}

func TestRealPublisherIsConnectedAndClose(t *testing.T) {
	c := &fakeClient{open: true}
	p := newPublisher(c, "loft")

	var _ ConnectionStatus = p
	var _ Publisher = p

	if !p.IsConnected() {
		t.Error("expected IsConnected=true")
	}
	c.setOpen(false)
	if p.IsConnected() {
		t.Error("expected IsConnected=false")
	}

	p.Close()
	if !c.disconnect {
		t.Error("expected Disconnect to be called")
	}
}
