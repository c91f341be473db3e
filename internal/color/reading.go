package color

import "fmt"

// HSB is the canonical color: hue in degrees, saturation and brightness in
// percent.
type HSB struct {
	H float64 `json:"hue"`
	S float64 `json:"saturation"`
	B float64 `json:"brightness"`
}

// Clamped returns the color with every field clamped into range.
func (c HSB) Clamped() HSB {
	return HSB{
		H: Clamp(c.H, 0, MaxHue),
		S: Clamp(c.S, 0, MaxPercent),
		B: Clamp(c.B, 0, MaxPercent),
	}
}

// RGB is an 8-bit red/green/blue triple.
type RGB [3]uint8

// XY is a CIE 1931 chromaticity pair.
type XY [2]float64

// Kind tags which representation a Reading carries.
type Kind int

const (
	KindNone Kind = iota
	KindXY
	KindHS
	KindRGB
	KindKelvin
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindXY:
		return "xy"
	case KindHS:
		return "hs"
	case KindRGB:
		return "rgb"
	case KindKelvin:
		return "kelvin"
	default:
		return "none"
	}
}

// Reading is a discriminated color value: exactly one representation,
// selected by Kind, plus an optional brightness in percent.
type Reading struct {
	Kind       Kind
	XY         XY
	HS         [2]float64 // hue degrees, saturation percent
	RGB        RGB
	Kelvin     float64
	Brightness *float64
}

// NewXY builds an xy reading.
func NewXY(x, y float64, brightness *float64) Reading {
	return Reading{Kind: KindXY, XY: XY{x, y}, Brightness: brightness}
}

// NewHS builds a hue/saturation reading.
func NewHS(hue, sat float64, brightness *float64) Reading {
	return Reading{Kind: KindHS, HS: [2]float64{hue, sat}, Brightness: brightness}
}

// NewRGB builds an RGB reading.
func NewRGB(c RGB, brightness *float64) Reading {
	return Reading{Kind: KindRGB, RGB: c, Brightness: brightness}
}

// NewKelvin builds a color temperature reading.
func NewKelvin(kelvin float64, brightness *float64) Reading {
	return Reading{Kind: KindKelvin, Kelvin: kelvin, Brightness: brightness}
}

// FromHSB builds an hs reading carrying the canonical brightness.
func FromHSB(c HSB) Reading {
	c = c.Clamped()
	b := c.B
	return NewHS(c.H, c.S, &b)
}

// Valid reports whether a representation is populated.
func (r Reading) Valid() bool {
	return r.Kind != KindNone
}

// Fields renders the reading as a flat map, used for logs and the ledger.
func (r Reading) Fields() map[string]any {
	m := map[string]any{"kind": r.Kind.String()}
	switch r.Kind {
	case KindXY:
		m["xy"] = []float64{r.XY[0], r.XY[1]}
	case KindHS:
		m["hs"] = []float64{r.HS[0], r.HS[1]}
	case KindRGB:
		m["rgb"] = []int{int(r.RGB[0]), int(r.RGB[1]), int(r.RGB[2])}
	case KindKelvin:
		m["kelvin"] = r.Kelvin
	}
	if r.Brightness != nil {
		m["brightness_pct"] = *r.Brightness
	}
	return m
}

func (r Reading) String() string {
	var s string
	switch r.Kind {
	case KindXY:
		s = fmt.Sprintf("xy(%.4f,%.4f)", r.XY[0], r.XY[1])
	case KindHS:
		s = fmt.Sprintf("hs(%.1f,%.1f)", r.HS[0], r.HS[1])
	case KindRGB:
		s = fmt.Sprintf("rgb(%d,%d,%d)", r.RGB[0], r.RGB[1], r.RGB[2])
	case KindKelvin:
		s = fmt.Sprintf("kelvin(%.0f)", r.Kelvin)
	default:
		s = "none"
	}
	if r.Brightness != nil {
		s += fmt.Sprintf(" bri=%.1f%%", *r.Brightness)
	}
	return s
}
