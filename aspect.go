package demmosaic

import "math"

// An Interpolation selects the resampling used by AspectCorrect.
type Interpolation int

const (
	InterpolationNearest Interpolation = iota
	InterpolationBilinear
)

// AspectFactor returns the ratio of ground distance per degree of
// longitude to ground distance per degree of latitude at the extent's
// mid latitude. One factor covers the whole batch.
func AspectFactor(extent Envelope) float64 {
	return math.Cos(extent.MidLat() * math.Pi / 180)
}

// AspectCorrect resamples the mosaic so its pixel aspect ratio
// approximates the true ground distance ratio at the extent's mid
// latitude. The height is preserved; the width is rescaled by the ratio
// of per-pixel ground spans. The result is a new raster; the input is
// untouched.
func AspectCorrect(m *Mosaic, extent Envelope, interpolation Interpolation) *Mosaic {
	lonPerPixel := (extent.LonMax - extent.LonMin) / float64(m.Width)
	latPerPixel := (extent.LatMax - extent.LatMin) / float64(m.Height)
	aspect := 1.0
	if latPerPixel > 0 && lonPerPixel > 0 {
		aspect = lonPerPixel * AspectFactor(extent) / latPerPixel
	}
	width := max(int(math.Round(float64(m.Width)*aspect)), 1)

	out := &Mosaic{
		Width:  width,
		Height: m.Height,
		Data:   make([]float32, width*m.Height),
	}
	scale := float64(m.Width) / float64(width)
	for y := range out.Height {
		row := out.Data[y*width : (y+1)*width]
		for x := range row {
			switch interpolation {
			case InterpolationBilinear:
				row[x] = float32(m.SampleBilinear((float64(x)+0.5)*scale-0.5, float64(y)))
			default:
				sx := min(int(float64(x)*scale), m.Width-1)
				row[x] = m.At(sx, y)
			}
		}
	}
	return out
}
