package mqtt

import (
	"errors"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/go-cmp/cmp"
)

type fakeToken struct{ err error }

func (t fakeToken) Wait() bool                     { return true }
func (t fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t fakeToken) Error() error { return t.err }

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type fakeBroker struct {
	handlers map[string]paho.MessageHandler
	fail     string
}

func (b *fakeBroker) Subscribe(topic string, qos byte, cb paho.MessageHandler) paho.Token {
	if topic == b.fail {
		return fakeToken{err: errors.New("not authorized")}
	}
	if b.handlers == nil {
		b.handlers = make(map[string]paho.MessageHandler)
	}
	b.handlers[topic] = cb
	return fakeToken{}
}

type update struct {
	entityID string
	value    any
	source   string
}

type fakeStates struct{ updates []update }

func (s *fakeStates) Set(entityID string, value any, source string) {
	s.updates = append(s.updates, update{entityID, value, source})
}

func TestClient_MessagesUpdateStates(t *testing.T) {
	states := &fakeStates{}
	c := New(Options{
		Broker:   "tcp://127.0.0.1:1883",
		ClientID: "test",
		Subscriptions: map[string]string{
			"sky/color":   "sensor.sky",
			"sky/+/level": "sensor.level",
		},
	}, states)

	broker := &fakeBroker{}
	if err := c.subscribeAll(broker); err != nil {
		t.Fatalf("subscribeAll() error = %v", err)
	}

	broker.handlers["sky/color"](nil, fakeMessage{topic: "sky/color", payload: []byte(`{"hue":120}`)})
	broker.handlers["sky/+/level"](nil, fakeMessage{topic: "sky/east/level", payload: []byte("42")})

	want := []update{
		{"sensor.sky", `{"hue":120}`, Source},
		{"sensor.level", "42", Source},
	}
	if diff := cmp.Diff(want, states.updates, cmp.AllowUnexported(update{})); diff != "" {
		t.Errorf("updates mismatch (-want +got):\n%s", diff)
	}
}

func TestClient_SubscribeErrorsJoined(t *testing.T) {
	c := New(Options{
		Broker:        "tcp://127.0.0.1:1883",
		Subscriptions: map[string]string{"a": "sensor.a", "b": "sensor.b"},
	}, &fakeStates{})

	broker := &fakeBroker{fail: "a"}
	err := c.subscribeAll(broker)
	if err == nil {
		t.Fatal("subscribeAll() error = nil")
	}
	if _, ok := broker.handlers["b"]; !ok {
		t.Error("later topic not subscribed after a failure")
	}
}
