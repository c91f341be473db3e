package webhook

import (
	"errors"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huerizon/internal/color"
	"github.com/dokzlo13/huerizon/internal/dispatch"
)

// errNoTargets is returned when an apply_sky call names no lights.
var errNoTargets = errors.New("apply_sky called without target lights")

// ApplySkyRequest is the body of POST /api/services/apply_sky. Only the
// first well-shaped color member is used, in the order xy, hs, rgb, then
// the legacy hue and saturation pair.
type ApplySkyRequest struct {
	EntityID      any    `json:"entity_id"`
	XYColor       []any  `json:"xy_color"`
	HSColor       []any  `json:"hs_color"`
	RGBColor      []any  `json:"rgb_color"`
	Hue           any    `json:"hue"`
	Saturation    any    `json:"saturation"`
	Brightness    any    `json:"brightness"`
	BrightnessPct any    `json:"brightness_pct"`
	Transition    any    `json:"transition"`
	Source        string `json:"source"`
}

// Command converts the request into a dispatch command.
func (r ApplySkyRequest) Command() (dispatch.Command, error) {
	targets := r.targets()
	if len(targets) == 0 {
		return dispatch.Command{}, errNoTargets
	}

	reading, mode := r.color()
	reading.Brightness = r.brightness()

	var transition *time.Duration
	if secs, ok := color.CoerceFloat(r.Transition); ok && secs >= 0 {
		d := time.Duration(secs * float64(time.Second))
		transition = &d
	}

	cmd := dispatch.NewCommand(dispatch.SourceService, targets, reading, transition, mode)
	if r.Source != "" {
		log.Debug().Str("source", r.Source).Fields(cmd.Fields()).Msg("apply_sky called")
	}
	return cmd, nil
}

func (r ApplySkyRequest) targets() []string {
	switch v := r.EntityID.(type) {
	case string:
		if v != "" {
			return []string{v}
		}
	case []any:
		var out []string
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func floats(values []any) ([]float64, bool) {
	out := make([]float64, len(values))
	for i, v := range values {
		f, ok := color.CoerceFloat(v)
		if !ok {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}

func (r ApplySkyRequest) color() (color.Reading, dispatch.ApplyMode) {
	switch {
	case len(r.XYColor) == 2:
		if v, ok := floats(r.XYColor); ok {
			return color.NewXY(v[0], v[1], nil), dispatch.PreferXY
		}
		log.Debug().Interface("xy_color", r.XYColor).Msg("Invalid xy_color payload")
	case len(r.HSColor) == 2:
		if v, ok := floats(r.HSColor); ok {
			return color.NewHS(v[0], v[1], nil), dispatch.PreferHS
		}
		log.Debug().Interface("hs_color", r.HSColor).Msg("Invalid hs_color payload")
	case len(r.RGBColor) == 3:
		if v, ok := floats(r.RGBColor); ok {
			var c color.RGB
			for i := range c {
				c[i] = uint8(color.Clamp(math.Round(v[i]), 0, color.MaxByte))
			}
			return color.NewRGB(c, nil), dispatch.PreferRGB
		}
		log.Debug().Interface("rgb_color", r.RGBColor).Msg("Invalid rgb_color payload")
	case r.Hue != nil && r.Saturation != nil:
		h, okH := color.CoerceFloat(r.Hue)
		s, okS := color.CoerceFloat(r.Saturation)
		if okH && okS {
			return color.NewHS(h, s, nil), dispatch.PreferHS
		}
		log.Debug().Interface("hue", r.Hue).Interface("saturation", r.Saturation).Msg("Invalid legacy hue/saturation payload")
	}
	return color.Reading{}, dispatch.PreferHS
}

// brightness prefers the 0..255 value, clamped, over brightness_pct.
func (r ApplySkyRequest) brightness() *float64 {
	if r.Brightness != nil {
		b, ok := color.CoerceFloat(r.Brightness)
		if !ok {
			log.Debug().Interface("brightness", r.Brightness).Msg("Invalid brightness payload")
			return nil
		}
		pct := math.Trunc(color.Clamp(b, 0, color.MaxByte)) / color.MaxByte * color.MaxPercent
		return &pct
	}
	if r.BrightnessPct != nil {
		b, ok := color.CoerceFloat(r.BrightnessPct)
		if !ok {
			log.Debug().Interface("brightness_pct", r.BrightnessPct).Msg("Invalid brightness_pct payload")
			return nil
		}
		return &b
	}
	return nil
}
