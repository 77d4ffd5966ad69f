// Package ramp builds the color gradient used to texture the relief.
package ramp

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/rotisserie/eris"
)

// ErrInvalidRamp is returned for unusable palette parameters.
var ErrInvalidRamp = eris.New("ramp: invalid palette")

// Keypoint is a seed color at a position in [0,1].
type Keypoint struct {
	Col colorful.Color
	Pos float64
}

// Gradient is a sorted table of keypoints.
type Gradient []Keypoint

// NewGradient places seeds at (i/(k-1))^bias. A bias above 1 pushes the
// seeds toward the low end so most of the ramp is spent on high values.
func NewGradient(seeds []string, bias float64) (Gradient, error) {
	if len(seeds) == 0 {
		return nil, eris.Wrap(ErrInvalidRamp, "ramp: no seed colors")
	}
	if bias <= 0 || math.IsNaN(bias) || math.IsInf(bias, 0) {
		return nil, eris.Wrapf(ErrInvalidRamp, "ramp: bias %g", bias)
	}

	g := make(Gradient, len(seeds))
	for i, s := range seeds {
		c, err := colorful.Hex(s)
		if err != nil {
			return nil, eris.Wrapf(ErrInvalidRamp, "ramp: seed %d %q: %v", i, s, err)
		}
		pos := 0.0
		if len(seeds) > 1 {
			pos = math.Pow(float64(i)/float64(len(seeds)-1), bias)
		}
		g[i] = Keypoint{Col: c, Pos: pos}
	}
	return g, nil
}

// At returns the Lab blend between the keypoints around t.
func (g Gradient) At(t float64) colorful.Color {
	if t <= g[0].Pos || len(g) == 1 {
		return g[0].Col
	}
	if last := g[len(g)-1]; t >= last.Pos {
		return last.Col
	}
	for i := 0; i < len(g)-1; i++ {
		c1, c2 := g[i], g[i+1]
		if c1.Pos <= t && t <= c2.Pos {
			if c2.Pos == c1.Pos {
				return c2.Col
			}
			u := (t - c1.Pos) / (c2.Pos - c1.Pos)
			return c1.Col.BlendLab(c2.Col, u).Clamped()
		}
	}
	return g[len(g)-1].Col
}

// Generate returns n colors sampled evenly over [0,1] from the gradient
// of seeds. The result is deterministic for fixed inputs.
func Generate(seeds []string, n int, bias float64) ([]colorful.Color, error) {
	if n < 1 {
		return nil, eris.Wrapf(ErrInvalidRamp, "ramp: %d colors requested", n)
	}
	g, err := NewGradient(seeds, bias)
	if err != nil {
		return nil, err
	}

	out := make([]colorful.Color, n)
	for i := range out {
		t := 0.0
		if n > 1 {
			t = float64(i) / float64(n-1)
		}
		out[i] = g.At(t)
	}
	return out, nil
}

// Pick maps v in [lo, hi] onto colors. Values outside the range clamp to
// the ends.
func Pick(colors []colorful.Color, v, lo, hi float64) colorful.Color {
	if len(colors) == 1 || hi <= lo {
		return colors[len(colors)-1]
	}
	t := (v - lo) / (hi - lo)
	t = math.Max(0, math.Min(1, t))
	return colors[int(math.Round(t*float64(len(colors)-1)))]
}

// Hex renders colors as #rrggbb strings.
func Hex(colors []colorful.Color) []string {
	out := make([]string, len(colors))
	for i, c := range colors {
		out[i] = c.Hex()
	}
	return out
}
