package config

import (
	"fmt"
	"math"
	"time"

	"github.com/dokzlo13/huerizon/internal/color"
	"github.com/dokzlo13/huerizon/internal/dispatch"
	"github.com/dokzlo13/huerizon/internal/extract"
	"github.com/dokzlo13/huerizon/internal/gate"
)

// Extract returns the extractor settings of the monitor.
func (m MonitorConfig) Extract() extract.Config {
	return extract.Config{
		Format: extract.Format(m.InputFormat),
		Keys: extract.Keys{
			Hue:        m.JSONKeys.Hue,
			Saturation: m.JSONKeys.Saturation,
			Brightness: m.JSONKeys.Brightness,
		},
		Scales: m.Scales.resolve(),
	}
}

func (s ScalesConfig) resolve() extract.Scales {
	pick := func(v string) color.Scale {
		if v == "" {
			v = s.Percent
		}
		return color.ParseScale(v)
	}
	return extract.Scales{
		Hue:        color.ParseScale(s.Hue),
		Saturation: pick(s.Saturation),
		Brightness: pick(s.Brightness),
	}
}

// Channels maps each configured input channel to its entity id.
func (m MonitorConfig) Channels() map[extract.Channel]string {
	e := m.Entities
	all := map[extract.Channel]string{
		extract.ChannelJSON:       e.JSON,
		extract.ChannelHue:        e.Hue,
		extract.ChannelSaturation: e.Saturation,
		extract.ChannelBrightness: e.Brightness,
		extract.ChannelX:          e.X,
		extract.ChannelY:          e.Y,
		extract.ChannelRed:        e.Red,
		extract.ChannelGreen:      e.Green,
		extract.ChannelBlue:       e.Blue,
		extract.ChannelMireds:     e.Mireds,
		extract.ChannelKelvin:     e.Kelvin,
	}
	out := make(map[extract.Channel]string)
	for ch, id := range all {
		if id != "" {
			out[ch] = id
		}
	}
	return out
}

// Mode returns the parsed apply mode.
func (m MonitorConfig) Mode() dispatch.ApplyMode {
	mode, err := dispatch.ParseApplyMode(m.ApplyMode)
	if err != nil {
		return dispatch.PreferXY
	}
	return mode
}

// TransitionDuration returns the configured transition, or nil.
func (m MonitorConfig) TransitionDuration() *time.Duration {
	if m.Transition == nil {
		return nil
	}
	d := m.Transition.Duration()
	return &d
}

// Gate converts the schedule options into gate settings.
func (s ScheduleConfig) Gate() (gate.Schedule, error) {
	out := gate.Schedule{
		OnlyAtNight: bool(s.OnlyAtNight),
		MinDelta:    s.MinDelta,
		RateLimit:   time.Duration(math.Round(s.RateLimit * float64(time.Second))),
	}

	for _, b := range []struct {
		raw string
		dst **gate.TimeOfDay
	}{
		{s.ActiveStart, &out.ActiveStart},
		{s.ActiveEnd, &out.ActiveEnd},
	} {
		if b.raw == "" {
			continue
		}
		t, err := gate.ParseTimeOfDay(b.raw)
		if err != nil {
			return gate.Schedule{}, fmt.Errorf("invalid schedule: %w", err)
		}
		*b.dst = &t
	}

	for _, d := range s.ActiveDays {
		out.ActiveDays = append(out.ActiveDays, gate.Weekday(d))
	}

	if err := out.Validate(); err != nil {
		return gate.Schedule{}, fmt.Errorf("invalid schedule: %w", err)
	}
	return out, nil
}
