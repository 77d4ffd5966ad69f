// Package relief turns a height matrix into a textured 3D surface and
// path-traces it to a PNG.
package relief

import (
	"image"
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/mat"

	"github.com/sells-group/hexrelief/internal/ramp"
)

// Sun is the light used for the hillshade baked into the texture.
// Azimuth is degrees clockwise from north; Altitude degrees above the
// horizon. Strength in [0,1] is how dark a fully shadowed slope gets.
type Sun struct {
	Azimuth  float64
	Altitude float64
	Strength float64
}

// hillshadeRelief scales normalized heights against the longest grid side
// before slopes are taken.
const hillshadeRelief = 0.1

// Shade colors each cell of m through colors and darkens slopes facing
// away from sun. Null cells are transparent. Row 0 of m is the top row of
// the image.
func Shade(m *mat.Dense, colors []colorful.Color, sun Sun) *image.NRGBA {
	rows, cols := m.Dims()
	img := image.NewNRGBA(image.Rect(0, 0, cols, rows))
	if len(colors) == 0 {
		return img
	}

	lo, hi := valueRange(m)
	if math.IsNaN(lo) {
		return img
	}

	z := func(r, c int) float64 {
		v := m.At(r, c)
		if math.IsNaN(v) || hi <= lo {
			return 0
		}
		return (v - lo) / (hi - lo) * hillshadeRelief * float64(max(rows, cols))
	}

	az := sun.Azimuth * math.Pi / 180
	alt := sun.Altitude * math.Pi / 180
	lx, ly, lz := math.Cos(alt)*math.Sin(az), math.Cos(alt)*math.Cos(az), math.Sin(alt)
	strength := math.Max(0, math.Min(1, sun.Strength))

	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			v := m.At(r, c)
			if math.IsNaN(v) {
				continue
			}
			base := ramp.Pick(colors, v, lo, hi)

			here := z(r, c)
			at := func(rr, cc int) float64 {
				if rr < 0 || rr >= rows || cc < 0 || cc >= cols || math.IsNaN(m.At(rr, cc)) {
					return here
				}
				return z(rr, cc)
			}
			// x runs east, y runs north (up the image).
			dzdx := (at(r, c+1) - at(r, c-1)) / 2
			dzdy := (at(r-1, c) - at(r+1, c)) / 2
			n := 1 / math.Sqrt(dzdx*dzdx+dzdy*dzdy+1)
			lambert := (-dzdx*lx - dzdy*ly + lz) * n

			light := 1.0
			if lz > 0 {
				light = math.Max(0, math.Min(1, lambert/lz))
			}
			f := 1 - strength*(1-light)

			shaded := colorful.Color{R: base.R * f, G: base.G * f, B: base.B * f}
			r8, g8, b8 := shaded.Clamped().RGB255()
			img.SetNRGBA(c, r, color.NRGBA{R: r8, G: g8, B: b8, A: 255})
		}
	}
	return img
}

func valueRange(m *mat.Dense) (lo, hi float64) {
	lo, hi = math.NaN(), math.NaN()
	rows, cols := m.Dims()
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			v := m.At(r, c)
			if math.IsNaN(v) {
				continue
			}
			if math.IsNaN(lo) || v < lo {
				lo = v
			}
			if math.IsNaN(hi) || v > hi {
				hi = v
			}
		}
	}
	return lo, hi
}
