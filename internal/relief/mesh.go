package relief

import (
	"image"
	"math"

	"github.com/fogleman/pt/pt"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/mat"
)

// ErrEmptySurface is returned when a matrix has no drawable quads.
var ErrEmptySurface = eris.New("relief: height matrix has no drawable cells")

// MeshOptions controls surface construction.
type MeshOptions struct {
	// ZScale divides each value to get its height in cell units. Smaller
	// values give taller relief.
	ZScale float64
	// Solid closes the surface with walls down to the base.
	Solid bool
	// ShadowDepth places a ground plane this far below the base. Zero
	// disables the plane.
	ShadowDepth float64
	// SideColor is the hex color of the walls.
	SideColor string
}

// Mesh is a textured relief surface in cell units: x runs east, y north
// and z up, with the base at z=0.
type Mesh struct {
	Triangles []*pt.Triangle
	Surface   int // top-face triangles
	Walls     int // side triangles
	Rows      int
	Cols      int
	MaxHeight float64
	Ground    float64 // z of the shadow plane, 0 when absent
	HasGround bool
}

// Center is the middle of the mesh footprint at half its height.
func (m *Mesh) Center() pt.Vector {
	return pt.V(float64(m.Cols-1)/2, float64(m.Rows-1)/2, m.MaxHeight/2)
}

// Diagonal is the length of the footprint diagonal.
func (m *Mesh) Diagonal() float64 {
	return math.Hypot(float64(m.Cols-1), float64(m.Rows-1))
}

// BuildMesh extrudes hm into a surface textured with texture. Quads with a
// null corner are left open.
func BuildMesh(hm *mat.Dense, texture image.Image, opts MeshOptions) (*Mesh, error) {
	if opts.ZScale <= 0 || math.IsNaN(opts.ZScale) {
		return nil, eris.Errorf("relief: zscale must be positive, got %g", opts.ZScale)
	}
	rows, cols := hm.Dims()
	if rows < 2 || cols < 2 {
		return nil, eris.Wrapf(ErrEmptySurface, "relief: %dx%d matrix", rows, cols)
	}

	top := pt.DiffuseMaterial(pt.Color{R: 1, G: 1, B: 1})
	if texture != nil {
		top.Texture = pt.NewTexture(texture)
	}
	side := pt.DiffuseMaterial(pt.Color{R: 0.2, G: 0.2, B: 0.2})
	if opts.SideColor != "" {
		c, err := hexColor(opts.SideColor)
		if err != nil {
			return nil, err
		}
		side = pt.DiffuseMaterial(c)
	}

	m := &Mesh{Rows: rows, Cols: cols}

	height := func(r, c int) float64 { return hm.At(r, c) / opts.ZScale }
	vertex := func(r, c int) pt.Vector {
		return pt.V(float64(c), float64(rows-1-r), height(r, c))
	}
	uv := func(r, c int) pt.Vector {
		return pt.V(float64(c)/float64(cols-1), 1-float64(r)/float64(rows-1), 0)
	}
	present := func(r, c int) bool {
		if r < 0 || r >= rows-1 || c < 0 || c >= cols-1 {
			return false
		}
		return !math.IsNaN(hm.At(r, c)) && !math.IsNaN(hm.At(r+1, c)) &&
			!math.IsNaN(hm.At(r, c+1)) && !math.IsNaN(hm.At(r+1, c+1))
	}

	for r := 0; r < rows-1; r++ {
		for c := 0; c < cols-1; c++ {
			if !present(r, c) {
				continue
			}
			for _, h := range []float64{height(r, c), height(r+1, c), height(r, c+1), height(r+1, c+1)} {
				m.MaxHeight = math.Max(m.MaxHeight, h)
			}

			nw, ne := vertex(r, c), vertex(r, c+1)
			sw, se := vertex(r+1, c), vertex(r+1, c+1)
			m.Triangles = append(m.Triangles,
				pt.NewTriangle(sw, se, ne, uv(r+1, c), uv(r+1, c+1), uv(r, c+1), top),
				pt.NewTriangle(sw, ne, nw, uv(r+1, c), uv(r, c+1), uv(r, c), top),
			)
			m.Surface += 2

			if !opts.Solid {
				continue
			}
			// Each open side of a quad gets a wall from its top edge to the base.
			if !present(r-1, c) {
				m.wall(nw, ne, side)
			}
			if !present(r+1, c) {
				m.wall(se, sw, side)
			}
			if !present(r, c-1) {
				m.wall(sw, nw, side)
			}
			if !present(r, c+1) {
				m.wall(ne, se, side)
			}
		}
	}

	if m.Surface == 0 {
		return nil, ErrEmptySurface
	}
	if opts.ShadowDepth > 0 {
		m.Ground = -opts.ShadowDepth
		m.HasGround = true
	}
	return m, nil
}

func (m *Mesh) wall(a, b pt.Vector, side pt.Material) {
	a0, b0 := pt.V(a.X, a.Y, 0), pt.V(b.X, b.Y, 0)
	zero := pt.Vector{}
	for _, t := range [][3]pt.Vector{{a0, b0, b}, {a0, b, a}} {
		// Zero-height edges collapse to slivers with no area.
		if t[1].Sub(t[0]).Cross(t[2].Sub(t[0])).Length() < 1e-12 {
			continue
		}
		m.Triangles = append(m.Triangles, pt.NewTriangle(t[0], t[1], t[2], zero, zero, zero, side))
		m.Walls++
	}
}

// hexColor converts an sRGB hex string into linear pt color.
func hexColor(s string) (pt.Color, error) {
	c, err := colorful.Hex(s)
	if err != nil {
		return pt.Color{}, eris.Wrapf(err, "relief: color %q", s)
	}
	r, g, b := c.LinearRgb()
	return pt.Color{R: r, G: g, B: b}, nil
}
