package states

import (
	"sync"
	"testing"
	"time"

	"github.com/dokzlo13/huerizon/internal/eventbus"
)

type recorder struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (r *recorder) Publish(e eventbus.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func TestStore_SetPublishesOnChange(t *testing.T) {
	rec := &recorder{}
	s := New(rec, 0)

	s.Set("sensor.sky_hue", "120", "mqtt")
	s.Set("sensor.sky_hue", "120", "mqtt")
	s.Set("sensor.sky_hue", "121", "webhook")

	if len(rec.events) != 2 {
		t.Fatalf("published %d events, want 2", len(rec.events))
	}
	last := rec.events[1]
	if last.Type != eventbus.EventTypeStateChanged || last.Data["state"] != "121" || last.Data["source"] != "webhook" {
		t.Errorf("last event = %+v", last)
	}

	st, ok := s.Get("sensor.sky_hue")
	if !ok || st.Value != "121" || st.Source != "webhook" {
		t.Errorf("Get() = %+v, %v", st, ok)
	}
}

func TestStore_ValueAndAll(t *testing.T) {
	s := New(nil, 0)
	if v := s.Value("missing"); v != nil {
		t.Errorf("Value(missing) = %v", v)
	}

	s.Set("a", 1, "test")
	s.Set("b", []byte(`{"hue":1}`), "test")
	all := s.All()
	if len(all) != 2 || all["a"].Value != 1 {
		t.Errorf("All() = %+v", all)
	}

	s.Delete("a")
	if _, ok := s.Get("a"); ok {
		t.Error("deleted state still present")
	}
}

func TestStore_TTLExpires(t *testing.T) {
	s := New(nil, 20*time.Millisecond)
	s.Set("sensor.x", 0.3, "test")
	if s.Value("sensor.x") == nil {
		t.Fatal("state missing right after Set")
	}
	time.Sleep(40 * time.Millisecond)
	if v := s.Value("sensor.x"); v != nil {
		t.Errorf("expired state still readable: %v", v)
	}
}
