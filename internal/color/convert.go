package color

import "math"

// HSBToRGB converts hue (degrees), saturation and brightness (percent) to
// 8-bit RGB. Saturation and brightness are clamped first; hue wraps modulo
// 360. Channels are rounded once at the end, halves to even.
func HSBToRGB(hDeg, sPct, bPct float64) RGB {
	h := math.Mod(hDeg, MaxHue)
	if h < 0 {
		h += MaxHue
	}
	h /= MaxHue
	s := Clamp(sPct, 0, MaxPercent) / MaxPercent
	v := Clamp(bPct, 0, MaxPercent) / MaxPercent

	if s == 0 {
		x := toByte(v)
		return RGB{x, x, x}
	}

	i := math.Floor(h * 6)
	f := h*6 - i
	p := v * (1 - s)
	q := v * (1 - f*s)
	t := v * (1 - (1-f)*s)

	var r, g, b float64
	switch int(i) % 6 {
	case 0:
		r, g, b = v, t, p
	case 1:
		r, g, b = q, v, p
	case 2:
		r, g, b = p, v, t
	case 3:
		r, g, b = p, q, v
	case 4:
		r, g, b = t, p, v
	default:
		r, g, b = v, p, q
	}

	return RGB{toByte(r), toByte(g), toByte(b)}
}

// RGBToHSB converts 8-bit RGB to hue (degrees), saturation and brightness
// (percent).
func RGBToHSB(c RGB) HSB {
	r := float64(c[0]) / MaxByte
	g := float64(c[1]) / MaxByte
	b := float64(c[2]) / MaxByte

	maxC := math.Max(r, math.Max(g, b))
	minC := math.Min(r, math.Min(g, b))
	delta := maxC - minC

	var h float64
	switch {
	case delta == 0:
		h = 0
	case maxC == r:
		h = math.Mod((g-b)/delta, 6)
	case maxC == g:
		h = (b-r)/delta + 2
	default:
		h = (r-g)/delta + 4
	}
	h *= 60
	if h < 0 {
		h += MaxHue
	}

	var s float64
	if maxC > 0 {
		s = delta / maxC
	}

	return HSB{H: h, S: s * MaxPercent, B: maxC * MaxPercent}
}

// MiredsToKelvin converts a reciprocal color temperature to kelvin.
// Mireds are floored at 1.
func MiredsToKelvin(mireds float64) float64 {
	return 1_000_000 / math.Max(mireds, 1)
}

// KelvinToMireds converts kelvin to mireds. Kelvin is floored at 1.
func KelvinToMireds(kelvin float64) float64 {
	return 1_000_000 / math.Max(kelvin, 1)
}

// toByte scales a 0..1 channel to 0..255. Halves round to even, so 2.5
// becomes 2 and 25.5 becomes 26.
func toByte(unit float64) uint8 {
	return uint8(Clamp(math.RoundToEven(unit*MaxByte), 0, MaxByte))
}
