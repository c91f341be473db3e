package webhook

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/dokzlo13/huerizon/internal/color"
	"github.com/dokzlo13/huerizon/internal/dispatch"
	"github.com/dokzlo13/huerizon/internal/gate"
	"github.com/dokzlo13/huerizon/internal/monitor"
	"github.com/dokzlo13/huerizon/internal/states"
)

type fakeQueue struct {
	mu   sync.Mutex
	cmds []dispatch.Command
	err  error
}

func (q *fakeQueue) Enqueue(cmd dispatch.Command) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.cmds = append(q.cmds, cmd)
	return nil
}

type fakeMonitors []monitor.Status

func (f fakeMonitors) Statuses() []monitor.Status { return f }

func newTestServer() (*Server, *states.Store, *fakeQueue) {
	store := states.New(nil, 0)
	queue := &fakeQueue{}
	mons := fakeMonitors{{ID: "living", State: gate.StateIdle, Targets: []string{"light.living"}}}
	return NewServer("127.0.0.1", 0, store, queue, mons), store, queue
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestSetState(t *testing.T) {
	tests := []struct {
		name string
		body string
		want any
	}{
		{name: "plain_text", body: "  42% \n", want: "42%"},
		{name: "wrapped_number", body: `{"state": 0.5}`, want: 0.5},
		{name: "wrapped_string", body: `{"state": "120°"}`, want: "120°"},
		{name: "wrapped_object_kept_as_json", body: `{"state": {"hue": 10}}`, want: `{"hue": 10}`},
		{name: "raw_json_payload", body: `{"hue":120,"saturation":50}`, want: `{"hue":120,"saturation":50}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, store, _ := newTestServer()
			rec := do(t, s, http.MethodPost, "/api/states/sensor.sky", tt.body)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			st, ok := store.Get("sensor.sky")
			if !ok {
				t.Fatal("state not stored")
			}
			if diff := cmp.Diff(tt.want, st.Value); diff != "" {
				t.Errorf("value mismatch (-want +got):\n%s", diff)
			}
			if st.Source != Source {
				t.Errorf("source = %q", st.Source)
			}
		})
	}
}

func TestListStates(t *testing.T) {
	s, store, _ := newTestServer()
	store.Set("sensor.a", "1", "test")

	rec := do(t, s, http.MethodGet, "/api/states", "")
	var got map[string]states.State
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got["sensor.a"].Value != "1" {
		t.Errorf("states = %+v", got)
	}
}

func TestApplySky(t *testing.T) {
	b100 := 100.0
	b50 := 50.0
	b0 := 0.0

	tests := []struct {
		name       string
		body       string
		wantColor  color.Reading
		wantMode   dispatch.ApplyMode
		targets    []string
		transition *time.Duration
	}{
		{
			name:      "xy_wins_over_hs",
			body:      `{"entity_id":"light.a","xy_color":[0.3,0.4],"hs_color":[10,20]}`,
			wantColor: color.NewXY(0.3, 0.4, nil),
			wantMode:  dispatch.PreferXY,
			targets:   []string{"light.a"},
		},
		{
			name:      "hs_with_brightness_byte",
			body:      `{"entity_id":["light.a","light.b"],"hs_color":[200,"60"],"brightness":255}`,
			wantColor: color.NewHS(200, 60, &b100),
			wantMode:  dispatch.PreferHS,
			targets:   []string{"light.a", "light.b"},
		},
		{
			name:      "rgb_rounded",
			body:      `{"entity_id":"light.a","rgb_color":[255,127.6,0],"brightness_pct":50}`,
			wantColor: color.NewRGB(color.RGB{255, 128, 0}, &b50),
			wantMode:  dispatch.PreferRGB,
			targets:   []string{"light.a"},
		},
		{
			name:      "legacy_hue_saturation",
			body:      `{"entity_id":"light.a","hue":30,"saturation":40,"brightness":-5}`,
			wantColor: color.NewHS(30, 40, &b0),
			wantMode:  dispatch.PreferHS,
			targets:   []string{"light.a"},
		},
		{
			name:      "brightness_wins_over_pct",
			body:      `{"entity_id":"light.a","hs_color":[1,2],"brightness":300,"brightness_pct":10}`,
			wantColor: color.NewHS(1, 2, &b100),
			wantMode:  dispatch.PreferHS,
			targets:   []string{"light.a"},
		},
		{
			name:      "invalid_member_skipped",
			body:      `{"entity_id":"light.a","xy_color":["a","b"],"hs_color":[10,20]}`,
			wantColor: color.Reading{},
			wantMode:  dispatch.PreferHS,
			targets:   []string{"light.a"},
		},
		{
			name:      "wrong_shape_falls_through",
			body:      `{"entity_id":"light.a","xy_color":[0.3],"hs_color":[10,20],"transition":1.5}`,
			wantColor: color.NewHS(10, 20, nil),
			wantMode:  dispatch.PreferHS,
			targets:   []string{"light.a"},
			transition: func() *time.Duration {
				d := 1500 * time.Millisecond
				return &d
			}(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _, queue := newTestServer()
			rec := do(t, s, http.MethodPost, "/api/services/apply_sky", tt.body)
			if rec.Code != http.StatusAccepted {
				t.Fatalf("status = %d body = %s", rec.Code, rec.Body)
			}
			if len(queue.cmds) != 1 {
				t.Fatalf("queued %d commands", len(queue.cmds))
			}
			cmd := queue.cmds[0]
			if diff := cmp.Diff(tt.wantColor, cmd.Color, cmpopts.EquateApprox(0, 0.01)); diff != "" {
				t.Errorf("color mismatch (-want +got):\n%s", diff)
			}
			if cmd.Mode != tt.wantMode || cmd.Source != dispatch.SourceService {
				t.Errorf("mode = %q source = %q", cmd.Mode, cmd.Source)
			}
			if diff := cmp.Diff(tt.targets, cmd.Targets); diff != "" {
				t.Errorf("targets mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.transition, cmd.Transition); diff != "" {
				t.Errorf("transition mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestApplySky_Rejected(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "no_targets", body: `{"hs_color":[10,20]}`, want: http.StatusBadRequest},
		{name: "empty_target_list", body: `{"entity_id":[],"hs_color":[10,20]}`, want: http.StatusBadRequest},
		{name: "bad_json", body: `{`, want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _, queue := newTestServer()
			rec := do(t, s, http.MethodPost, "/api/services/apply_sky", tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			if len(queue.cmds) != 0 {
				t.Errorf("queued %d commands", len(queue.cmds))
			}
		})
	}
}

func TestApplySky_QueueFull(t *testing.T) {
	s, _, queue := newTestServer()
	queue.err = dispatch.ErrQueueFull
	rec := do(t, s, http.MethodPost, "/api/services/apply_sky", `{"entity_id":"light.a"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestMonitors(t *testing.T) {
	s, _, _ := newTestServer()
	rec := do(t, s, http.MethodGet, "/api/monitors", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0]["id"] != "living" || got[0]["state"] != "idle" {
		t.Errorf("monitors = %+v", got)
	}

	if rec := do(t, s, http.MethodPost, "/api/monitors", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /api/monitors status = %d", rec.Code)
	}
}
