package extract

import (
	"fmt"
	"math"

	"github.com/dokzlo13/huerizon/internal/color"
)

// Format selects the source shape of a monitor's observations.
type Format string

const (
	FormatHSBJSON   Format = "hsb_json"   // one JSON entity with hue/saturation/brightness
	FormatHSBStates Format = "hsb_states" // three entities, one per channel
	FormatXY        Format = "xy"
	FormatHS        Format = "hs"
	FormatRGB       Format = "rgb"
	FormatColorTemp Format = "color_temp"
)

// Channel is a logical input of a monitor.
type Channel string

const (
	ChannelJSON       Channel = "json"
	ChannelHue        Channel = "hue"
	ChannelSaturation Channel = "saturation"
	ChannelBrightness Channel = "brightness"
	ChannelX          Channel = "x"
	ChannelY          Channel = "y"
	ChannelRed        Channel = "red"
	ChannelGreen      Channel = "green"
	ChannelBlue       Channel = "blue"
	ChannelMireds     Channel = "mireds"
	ChannelKelvin     Channel = "kelvin"
)

// Values carries the current raw observation per channel. Absent channels
// are simply missing from the map.
type Values map[Channel]any

// Config describes how an Extractor reads its channels.
type Config struct {
	Format Format
	Keys   Keys
	Scales Scales
}

// Extractor produces a single discriminated color reading from the raw
// values of one monitor.
type Extractor struct {
	cfg Config
}

// New creates an Extractor, rejecting unknown formats.
func New(cfg Config) (*Extractor, error) {
	if _, err := RequiredChannels(cfg.Format); err != nil {
		return nil, err
	}
	cfg.Keys = cfg.Keys.withDefaults()
	return &Extractor{cfg: cfg}, nil
}

// Format returns the configured source format.
func (e *Extractor) Format() Format {
	return e.cfg.Format
}

// RequiredChannels lists the channels a format needs to produce a color.
// Brightness is optional for every format except the HSB ones, where it is
// part of the triple. Color temperature needs either mireds or kelvin, so
// both are returned and the caller treats them as alternatives.
func RequiredChannels(f Format) ([]Channel, error) {
	switch f {
	case FormatHSBJSON:
		return []Channel{ChannelJSON}, nil
	case FormatHSBStates:
		return []Channel{ChannelHue, ChannelSaturation, ChannelBrightness}, nil
	case FormatXY:
		return []Channel{ChannelX, ChannelY}, nil
	case FormatHS:
		return []Channel{ChannelHue, ChannelSaturation}, nil
	case FormatRGB:
		return []Channel{ChannelRed, ChannelGreen, ChannelBlue}, nil
	case FormatColorTemp:
		return []Channel{ChannelMireds, ChannelKelvin}, nil
	}
	return nil, fmt.Errorf("unknown input format %q", f)
}

// Extract reads the configured shape out of values. The boolean is false
// when a required field is missing or unreadable; that is not an error,
// the observation is simply skipped.
func (e *Extractor) Extract(values Values) (color.Reading, color.Trail, bool) {
	switch e.cfg.Format {
	case FormatHSBJSON:
		payload, ok := values[ChannelJSON]
		if !ok || payload == nil {
			return color.Reading{}, color.Trail{"json: missing payload"}, false
		}
		return fromHSB(HSBFromJSON(payloadString(payload), e.cfg.Keys, e.cfg.Scales))

	case FormatHSBStates:
		return fromHSB(HSBFromStates(
			values[ChannelHue], values[ChannelSaturation], values[ChannelBrightness], e.cfg.Scales,
		))

	case FormatXY:
		return e.xy(values)
	case FormatHS:
		return e.hs(values)
	case FormatRGB:
		return e.rgb(values)
	case FormatColorTemp:
		return e.colorTemp(values)
	}
	return color.Reading{}, color.Trail{"unknown format"}, false
}

func payloadString(v any) string {
	switch p := v.(type) {
	case string:
		return p
	case []byte:
		return string(p)
	}
	return fmt.Sprint(v)
}

func fromHSB(r HSB) (color.Reading, color.Trail, bool) {
	c, ok := r.Canonical()
	if !ok {
		return color.Reading{}, r.Trail, false
	}
	return color.FromHSB(c), r.Trail, true
}

// brightness normalizes the optional brightness channel.
func (e *Extractor) brightness(values Values, trail *color.Trail) *float64 {
	raw, ok := values[ChannelBrightness]
	if !ok {
		return nil
	}
	b, notes := color.NormalizePercent(raw, e.cfg.Scales.Brightness)
	trail.Merge(notes)
	return b
}

func (e *Extractor) xy(values Values) (color.Reading, color.Trail, bool) {
	var trail color.Trail
	x, okX := color.CoerceFloat(values[ChannelX])
	y, okY := color.CoerceFloat(values[ChannelY])
	if !okX || !okY {
		trail = append(trail, "xy: not a number")
		return color.Reading{}, trail, false
	}
	b := e.brightness(values, &trail)
	return color.NewXY(color.Clamp(x, 0, 1), color.Clamp(y, 0, 1), b), trail, true
}

func (e *Extractor) hs(values Values) (color.Reading, color.Trail, bool) {
	var trail color.Trail
	h, n1 := color.NormalizeHue(values[ChannelHue], e.cfg.Scales.Hue)
	s, n2 := color.NormalizePercent(values[ChannelSaturation], e.cfg.Scales.Saturation)
	trail.Merge(n1, n2)
	if h == nil || s == nil {
		return color.Reading{}, trail, false
	}
	b := e.brightness(values, &trail)
	return color.NewHS(*h, *s, b), trail, true
}

func (e *Extractor) rgb(values Values) (color.Reading, color.Trail, bool) {
	var trail color.Trail
	var c color.RGB
	for i, ch := range []Channel{ChannelRed, ChannelGreen, ChannelBlue} {
		v, ok := color.CoerceFloat(values[ch])
		if !ok {
			trail = append(trail, string(ch)+": not a number")
			return color.Reading{}, trail, false
		}
		c[i] = uint8(math.Round(color.Clamp(v, 0, color.MaxByte)))
	}
	b := e.brightness(values, &trail)
	return color.NewRGB(c, b), trail, true
}

// colorTemp prefers kelvin when both kelvin and mireds are readable.
func (e *Extractor) colorTemp(values Values) (color.Reading, color.Trail, bool) {
	var trail color.Trail
	var kelvin float64
	if k, ok := color.CoerceFloat(values[ChannelKelvin]); ok {
		kelvin = math.Max(k, 1)
		trail = append(trail, "temp: kelvin")
	} else if m, ok := color.CoerceFloat(values[ChannelMireds]); ok {
		kelvin = color.MiredsToKelvin(m)
		trail = append(trail, "temp: mireds→kelvin")
	} else {
		trail = append(trail, "temp: not a number")
		return color.Reading{}, trail, false
	}
	b := e.brightness(values, &trail)
	return color.NewKelvin(kelvin, b), trail, true
}
