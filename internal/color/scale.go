package color

import (
	"strings"
)

// Scale describes how the magnitude of a raw reading is interpreted.
type Scale string

const (
	ScaleAuto    Scale = "auto"
	ScaleDegrees Scale = "deg"   // 0..360, hue only
	ScalePercent Scale = "0_100" // 0..100, percent channels only
	ScaleUnit    Scale = "0_1"
	ScaleByte    Scale = "0_255"
)

// Canonical ranges.
const (
	MaxHue     = 360.0
	MaxPercent = 100.0
	MaxByte    = 255.0
)

// ParseScale normalizes a scale token. Separators are unified and the
// spelled-out aliases are accepted. Unknown tokens are kept as-is so the
// normalizer can fall back to the channel's native scale.
func ParseScale(s string) Scale {
	key := strings.ToLower(strings.TrimSpace(strings.ReplaceAll(s, "-", "_")))
	switch key {
	case "", "auto":
		return ScaleAuto
	case "deg", "degrees", "0_360":
		return ScaleDegrees
	case "0_100", "percent", "percent_0_100":
		return ScalePercent
	case "0_1", "unit", "unit_interval", "unit_interval_0_1":
		return ScaleUnit
	case "0_255", "byte", "byte_0_255":
		return ScaleByte
	}
	return Scale(key)
}

// Trail records the inference decisions taken while normalizing.
// It is for logging only.
type Trail []string

func (t *Trail) add(note string) {
	*t = append(*t, note)
}

// Merge appends the notes of other trails.
func (t *Trail) Merge(others ...Trail) {
	for _, o := range others {
		*t = append(*t, o...)
	}
}

// String joins the notes with semicolons.
func (t Trail) String() string {
	return strings.Join(t, ";")
}

// NormalizeHue maps a raw hue reading to degrees in [0, 360].
// A nil result means the reading was not a number.
func NormalizeHue(raw any, scale Scale) (*float64, Trail) {
	var trail Trail

	val, ok := CoerceFloat(raw)
	if !ok {
		trail.add("hue: not a number")
		return nil, trail
	}

	eff := scale
	if scale == ScaleAuto {
		switch {
		case hasSymbol(raw, "°"):
			eff = ScaleDegrees
			trail.add("auto→deg(symbol)")
		case val >= 0 && val <= 1:
			eff = ScaleUnit
			trail.add("auto→0_1")
		case val > 1 && val <= MaxHue:
			eff = ScaleDegrees
			trail.add("auto→deg(range)")
		case val >= 0 && val <= MaxByte:
			eff = ScaleByte
			trail.add("auto→0_255(range)")
		default:
			eff = ScaleDegrees
			trail.add("auto→deg(default)")
		}
	}

	var hue float64
	switch eff {
	case ScaleDegrees:
		hue = Clamp(val, 0, MaxHue)
	case ScaleUnit:
		hue = Clamp(val, 0, 1) * MaxHue
	case ScaleByte:
		hue = Clamp(val, 0, MaxByte) / MaxByte * MaxHue
	default:
		hue = Clamp(val, 0, MaxHue)
		trail.add("unknown_scale(" + string(eff) + ")→deg")
	}

	// 360 stays 360; hue is clamped, never wrapped.
	hue = Clamp(hue, 0, MaxHue)
	return &hue, trail
}

// NormalizePercent maps a raw percent-like reading to [0, 100].
// A nil result means the reading was not a number.
func NormalizePercent(raw any, scale Scale) (*float64, Trail) {
	var trail Trail

	val, ok := CoerceFloat(raw)
	if !ok {
		trail.add("percent: not a number")
		return nil, trail
	}

	eff := scale
	if scale == ScaleAuto {
		switch {
		case hasSymbol(raw, "%"):
			eff = ScalePercent
			trail.add("auto→0_100(symbol)")
		case val >= 0 && val <= 1:
			eff = ScaleUnit
			trail.add("auto→0_1")
		case val > 1 && val <= MaxPercent:
			eff = ScalePercent
			trail.add("auto→0_100(range)")
		case val > MaxPercent && val <= MaxByte:
			eff = ScaleByte
			trail.add("auto→0_255(range)")
		default:
			eff = ScalePercent
			trail.add("auto→0_100(default)")
		}
	}

	var pct float64
	switch eff {
	case ScalePercent:
		pct = Clamp(val, 0, MaxPercent)
	case ScaleUnit:
		pct = Clamp(val, 0, 1) * MaxPercent
	case ScaleByte:
		pct = Clamp(val, 0, MaxByte) / MaxByte * MaxPercent
	default:
		pct = Clamp(val, 0, MaxPercent)
		trail.add("unknown_scale(" + string(eff) + ")→0_100")
	}

	pct = Clamp(pct, 0, MaxPercent)
	return &pct, trail
}
