package gate

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/dokzlo13/huerizon/internal/color"
)

// Distance is the min-delta metric between two normalized readings.
//
// Each reading is mapped to a vector whose components are roughly on a
// 0..100 scale, then the Euclidean distance is taken:
//
//	hs      circular hue difference in degrees, saturation in percent
//	xy      x*100, y*100
//	rgb     each channel *100/255
//	kelvin  color temperature in mireds
//
// Brightness percent is appended as one more component when both readings
// carry it. Readings of different kinds are infinitely far apart, so a
// change of representation always passes the min-delta check.
func Distance(a, b color.Reading) float64 {
	if a.Kind != b.Kind || !a.Valid() {
		return math.Inf(1)
	}

	var va, vb []float64
	switch a.Kind {
	case color.KindHS:
		dh := math.Abs(a.HS[0] - b.HS[0])
		if dh > 180 {
			dh = 360 - dh
		}
		va = []float64{0, a.HS[1]}
		vb = []float64{dh, b.HS[1]}
	case color.KindXY:
		va = []float64{a.XY[0] * 100, a.XY[1] * 100}
		vb = []float64{b.XY[0] * 100, b.XY[1] * 100}
	case color.KindRGB:
		for i := range a.RGB {
			va = append(va, float64(a.RGB[i])*100/color.MaxByte)
			vb = append(vb, float64(b.RGB[i])*100/color.MaxByte)
		}
	case color.KindKelvin:
		va = []float64{color.KelvinToMireds(a.Kelvin)}
		vb = []float64{color.KelvinToMireds(b.Kelvin)}
	}

	if a.Brightness != nil && b.Brightness != nil {
		va = append(va, *a.Brightness)
		vb = append(vb, *b.Brightness)
	}

	return floats.Distance(va, vb, 2)
}
