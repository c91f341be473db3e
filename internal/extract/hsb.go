// Package extract turns raw sensor observations into color readings.
package extract

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/savaki/jq"

	"github.com/dokzlo13/huerizon/internal/color"
)

// Keys names the fields read from a JSON payload. A key starting with "."
// is a jq path into nested objects (".sky.hue").
type Keys struct {
	Hue        string
	Saturation string
	Brightness string
}

// DefaultKeys are the field names used when none are configured.
var DefaultKeys = Keys{Hue: "hue", Saturation: "saturation", Brightness: "brightness"}

func (k Keys) withDefaults() Keys {
	if k.Hue == "" {
		k.Hue = DefaultKeys.Hue
	}
	if k.Saturation == "" {
		k.Saturation = DefaultKeys.Saturation
	}
	if k.Brightness == "" {
		k.Brightness = DefaultKeys.Brightness
	}
	return k
}

// Scales holds the scale hint per channel.
type Scales struct {
	Hue        color.Scale
	Saturation color.Scale
	Brightness color.Scale
}

// AutoScales infers every channel.
var AutoScales = Scales{Hue: color.ScaleAuto, Saturation: color.ScaleAuto, Brightness: color.ScaleAuto}

// HSB is the per-field result of an HSB extraction. Nil fields were missing
// or unreadable.
type HSB struct {
	Hue        *float64
	Saturation *float64
	Brightness *float64
	Trail      color.Trail
}

// Complete reports whether all three fields are present.
func (r HSB) Complete() bool {
	return r.Hue != nil && r.Saturation != nil && r.Brightness != nil
}

// Canonical returns the canonical color when the result is complete.
func (r HSB) Canonical() (color.HSB, bool) {
	if !r.Complete() {
		return color.HSB{}, false
	}
	return color.HSB{H: *r.Hue, S: *r.Saturation, B: *r.Brightness}.Clamped(), true
}

// HSBFromJSON parses a single JSON object and normalizes the hue, saturation and
// brightness fields independently. Malformed JSON fails the whole payload;
// a missing field only nils that field.
func HSBFromJSON(payload string, keys Keys, scales Scales) HSB {
	keys = keys.withDefaults()

	var obj map[string]any
	dec := json.NewDecoder(strings.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&obj); err != nil {
		return HSB{Trail: color.Trail{"json_error(" + err.Error() + ")"}}
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return HSB{Trail: color.Trail{"json_error(extra data after object)"}}
	}

	return HSBFromStates(
		lookup(obj, payload, keys.Hue),
		lookup(obj, payload, keys.Saturation),
		lookup(obj, payload, keys.Brightness),
		scales,
	)
}

// HSBFromStates normalizes three independent raw readings. There is no
// cross-field validation.
func HSBFromStates(hue, sat, bri any, scales Scales) HSB {
	h, n1 := color.NormalizeHue(hue, scales.Hue)
	s, n2 := color.NormalizePercent(sat, scales.Saturation)
	b, n3 := color.NormalizePercent(bri, scales.Brightness)

	var trail color.Trail
	trail.Merge(n1, n2, n3)
	return HSB{Hue: h, Saturation: s, Brightness: b, Trail: trail}
}

// lookup reads a top-level key, or applies a jq path when the key starts
// with a dot. Missing values come back as nil.
func lookup(obj map[string]any, payload, key string) any {
	if !strings.HasPrefix(key, ".") {
		return obj[key]
	}

	op, err := jq.Parse(key)
	if err != nil {
		log.Debug().Err(err).Str("path", key).Msg("Invalid jq path")
		return nil
	}
	raw, err := op.Apply([]byte(payload))
	if err != nil {
		return nil
	}

	var v any
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil
	}
	return v
}
