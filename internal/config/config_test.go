package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/dokzlo13/huerizon/internal/color"
	"github.com/dokzlo13/huerizon/internal/dispatch"
	"github.com/dokzlo13/huerizon/internal/extract"
	"github.com/dokzlo13/huerizon/internal/gate"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("monitors:\n  - id: porch\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Log.Level != "info" {
		t.Errorf("log.level = %q", cfg.Log.Level)
	}
	if cfg.Database.Path != "huerizon.db" {
		t.Errorf("database.path = %q", cfg.Database.Path)
	}
	if cfg.ShutdownTimeout.Duration() != 5*time.Second {
		t.Errorf("shutdown_timeout = %s", cfg.ShutdownTimeout.Duration())
	}
	if cfg.Dispatch.Backend != BackendLog || cfg.Dispatch.QueueSize != 64 || cfg.Dispatch.Timeout.Duration() != 10*time.Second {
		t.Errorf("dispatch = %+v", cfg.Dispatch)
	}
	if cfg.Ledger.Retention() != 30*24*time.Hour {
		t.Errorf("ledger retention = %s", cfg.Ledger.Retention())
	}
	if cfg.Healthcheck.Port != 9090 || cfg.Webhook.Port != 8080 {
		t.Errorf("ports = %d, %d", cfg.Healthcheck.Port, cfg.Webhook.Port)
	}

	m := cfg.Monitors[0]
	if m.InputFormat != "xy" || m.ApplyMode != "prefer_xy" || m.Scales.Hue != "auto" {
		t.Errorf("monitor defaults = %+v", m)
	}
	if m.Transition != nil {
		t.Errorf("transition = %v, want unset", *m.Transition)
	}
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("HUERIZON_TEST_TOKEN", "abc123")

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
dispatch:
  backend: hue
hue:
  bridge: ${HUERIZON_TEST_BRIDGE:192.168.1.2}
  token: ${HUERIZON_TEST_TOKEN}
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Hue.Bridge != "192.168.1.2" || cfg.Hue.Token != "abc123" {
		t.Errorf("hue = %+v", cfg.Hue)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load() error = nil")
	}
}

func TestFlag(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"true", true},
		{"false", false},
		{`"yes"`, true},
		{`"on"`, true},
		{`"1"`, true},
		{`"off"`, false},
		{`"No"`, false},
		{`""`, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			doc := "geo:\n  lat: 52.5\n  lon: 13.4\nmonitors:\n  - id: m\n    schedule:\n      only_at_night: " + tt.in + "\n"
			cfg, err := Parse([]byte(doc))
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if got := bool(cfg.Monitors[0].Schedule.OnlyAtNight); got != tt.want {
				t.Errorf("only_at_night = %v, want %v", got, tt.want)
			}
		})
	}

	if _, err := Parse([]byte("monitors:\n  - id: m\n    schedule:\n      only_at_night: maybe\n")); err == nil {
		t.Error("invalid boolean accepted")
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{name: "hue_without_bridge", doc: "dispatch:\n  backend: hue\n", want: "hue.bridge"},
		{name: "ha_without_token", doc: "dispatch:\n  backend: homeassistant\nhomeassistant:\n  url: http://ha.local:8123\n", want: "homeassistant.token"},
		{name: "unknown_backend", doc: "dispatch:\n  backend: zigbee\n", want: "Backend"},
		{name: "lat_without_lon", doc: "geo:\n  lat: 10\n", want: "geo.lat"},
		{name: "lat_out_of_range", doc: "geo:\n  lat: 95\n  lon: 0\n", want: "Lat"},
		{name: "missing_id", doc: "monitors:\n  - input_format: xy\n", want: "ID"},
		{name: "duplicate_id", doc: "monitors:\n  - id: a\n  - id: a\n", want: "duplicate"},
		{name: "unknown_format", doc: "monitors:\n  - id: a\n    input_format: cmyk\n", want: "InputFormat"},
		{name: "unknown_mode", doc: "monitors:\n  - id: a\n    apply_mode: prefer_cmyk\n", want: "ApplyMode"},
		{name: "bad_start", doc: "monitors:\n  - id: a\n    schedule:\n      active_start: noon\n", want: "ActiveStart"},
		{name: "day_out_of_range", doc: "monitors:\n  - id: a\n    schedule:\n      active_days: [0, 7]\n", want: "ActiveDays"},
		{name: "negative_delta", doc: "monitors:\n  - id: a\n    schedule:\n      min_delta: -1\n", want: "MinDelta"},
		{name: "night_without_geo", doc: "monitors:\n  - id: a\n    schedule:\n      only_at_night: true\n", want: "geo"},
		{name: "hour_out_of_range", doc: "monitors:\n  - id: a\n    schedule:\n      active_start: \"25:00\"\n", want: "monitor \"a\": invalid schedule"},
		{name: "minute_out_of_range", doc: "monitors:\n  - id: a\n    schedule:\n      active_end: \"21:75\"\n", want: "invalid schedule"},
		{name: "bad_duration", doc: "shutdown_timeout: soon\n", want: "duration"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			if err == nil {
				t.Fatal("Parse() error = nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestMonitorConfig_Conversions(t *testing.T) {
	doc := `
monitors:
  - id: living
    input_format: hsb_states
    entities:
      hue: sensor.sky_hue
      saturation: sensor.sky_sat
      brightness: sensor.sky_bri
    json_keys:
      hue: .sky.h
    scales:
      hue: 0_1
      percent: 0_255
      brightness: 0_100
    apply_mode: prefer_rgb
    transition: 1500ms
    targets: ["Living *"]
    schedule:
      active_start: "22:00"
      active_end: ""
      active_days: [0, 4]
      min_delta: 2.5
      rate_limit_sec: 0.5
`
	cfg, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	m := cfg.Monitors[0]

	wantExtract := extract.Config{
		Format: extract.FormatHSBStates,
		Keys:   extract.Keys{Hue: ".sky.h"},
		Scales: extract.Scales{Hue: color.ScaleUnit, Saturation: color.ScaleByte, Brightness: color.ScalePercent},
	}
	if diff := cmp.Diff(wantExtract, m.Extract()); diff != "" {
		t.Errorf("Extract() mismatch (-want +got):\n%s", diff)
	}

	wantChannels := map[extract.Channel]string{
		extract.ChannelHue:        "sensor.sky_hue",
		extract.ChannelSaturation: "sensor.sky_sat",
		extract.ChannelBrightness: "sensor.sky_bri",
	}
	if diff := cmp.Diff(wantChannels, m.Channels()); diff != "" {
		t.Errorf("Channels() mismatch (-want +got):\n%s", diff)
	}

	if m.Mode() != dispatch.PreferRGB {
		t.Errorf("Mode() = %q", m.Mode())
	}
	if tr := m.TransitionDuration(); tr == nil || *tr != 1500*time.Millisecond {
		t.Errorf("TransitionDuration() = %v", tr)
	}

	sched, err := m.Schedule.Gate()
	if err != nil {
		t.Fatalf("Gate() error = %v", err)
	}
	start := gate.TimeOfDay(22 * time.Hour)
	wantSched := gate.Schedule{
		ActiveStart: &start,
		ActiveDays:  []gate.Weekday{0, 4},
		MinDelta:    2.5,
		RateLimit:   500 * time.Millisecond,
	}
	if diff := cmp.Diff(wantSched, sched); diff != "" {
		t.Errorf("Gate() mismatch (-want +got):\n%s", diff)
	}
}

func TestScheduleConfig_GateRejectsBadTime(t *testing.T) {
	if _, err := (ScheduleConfig{ActiveEnd: "25:00"}).Gate(); err == nil {
		t.Error("Gate() accepted hour 25")
	}
}
