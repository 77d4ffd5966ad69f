// Package raster samples a polygon attribute onto a regular grid and
// exposes it as a dense height matrix.
package raster

import (
	"context"
	"math"
	"runtime"

	ctgeom "github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
	"github.com/ctessum/geom/proj"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/sells-group/hexrelief/internal/aspect"
	"github.com/sells-group/hexrelief/internal/geodata"
)

// ErrInvalidDims is returned when a grid would have no rows or columns.
var ErrInvalidDims = eris.New("raster: grid dimensions must be positive")

// Grid is a row-major raster. Row 0 is the northern edge; cells without a
// containing feature hold NaN.
type Grid struct {
	Rows   int
	Cols   int
	Extent aspect.BBox
	Values []float64
}

// Stats summarizes the non-null cells of a grid.
type Stats struct {
	Count    int
	Min, Max float64
	Sum      float64
}

// feature is an indexed polygon with its attribute value. The rtree
// stores ctgeom.Geom values, so feature stands in for its bounding box.
type feature struct {
	box   *ctgeom.Bounds
	idx   int
	poly  *geom.MultiPolygon
	value float64
}

var _ ctgeom.Geom = (*feature)(nil)

func (f *feature) Bounds() *ctgeom.Bounds { return f.box }
func (f *feature) Len() int { return f.box.Len() }
func (f *feature) Points() func() ctgeom.Point { return f.box.Points() }

func (f *feature) Similar(g ctgeom.Geom, tol float64) bool {
	return f.box.Similar(g, tol)
}

func (f *feature) Transform(t proj.Transformer) (ctgeom.Geom, error) {
	return f.box.Transform(t)
}

// Rasterize samples field over the extent of c at d. Each cell takes the
// value of the lowest-indexed polygon containing its center.
func Rasterize(ctx context.Context, c *geodata.Collection, field string, d aspect.Dims) (*Grid, error) {
	log := zap.L().With(
		zap.String("component", "raster.rasterize"),
		zap.String("field", field),
		zap.Int("cols", d.Cols),
		zap.Int("rows", d.Rows),
	)

	if !d.Valid() {
		return nil, eris.Wrapf(ErrInvalidDims, "raster: %dx%d", d.Cols, d.Rows)
	}
	if err := c.RequireFields(field); err != nil {
		return nil, eris.Wrap(err, "raster: value field")
	}

	extent, err := aspect.FromBounds(c.Bounds())
	if err != nil {
		return nil, eris.Wrap(err, "raster: data extent")
	}
	if extent.Width() <= 0 || extent.Height() <= 0 {
		return nil, eris.Wrap(aspect.ErrDegenerateBounds, "raster: data extent")
	}

	tree := rtree.NewTree(25, 50)
	indexed, skipped := 0, 0
	for i := range c.Features {
		mp := c.Polygons(i)
		if mp == nil || mp.NumPolygons() == 0 {
			continue
		}
		v, ok := c.Float(i, field)
		if !ok {
			skipped++
			continue
		}
		tree.Insert(&feature{box: toBounds(mp.Bounds()), idx: i, poly: mp, value: v})
		indexed++
	}
	log.Debug("features indexed", zap.Int("indexed", indexed), zap.Int("skipped", skipped))

	g := &Grid{
		Rows:   d.Rows,
		Cols:   d.Cols,
		Extent: extent,
		Values: make([]float64, d.Rows*d.Cols),
	}

	workers := runtime.GOMAXPROCS(0)
	band := (g.Rows + workers - 1) / workers
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for start := 0; start < g.Rows; start += band {
		end := min(start+band, g.Rows)
		eg.Go(func() error {
			for r := start; r < end; r++ {
				if err := gctx.Err(); err != nil {
					return eris.Wrap(err, "raster: cancelled")
				}
				for col := 0; col < g.Cols; col++ {
					x, y := g.Center(r, col)
					g.Values[r*g.Cols+col] = sample(tree, x, y)
				}
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	s := g.Stats()
	log.Info("rasterized",
		zap.Int("cells", len(g.Values)),
		zap.Int("non_null", s.Count),
		zap.Float64("sum", s.Sum),
	)
	return g, nil
}

func sample(tree *rtree.Rtree, x, y float64) float64 {
	pt := ctgeom.Point{X: x, Y: y}
	best := -1
	value := math.NaN()
	for _, s := range tree.SearchIntersect(pt.Bounds()) {
		f, ok := s.(*feature)
		if !ok {
			continue
		}
		if best >= 0 && f.idx > best {
			continue
		}
		if Contains(f.poly, x, y) {
			best = f.idx
			value = f.value
		}
	}
	return value
}

// Contains reports whether (x, y) lies inside mp, outside every hole.
func Contains(mp *geom.MultiPolygon, x, y float64) bool {
	p := geom.Coord{x, y}
	for i := 0; i < mp.NumPolygons(); i++ {
		poly := mp.Polygon(i)
		if poly.NumLinearRings() == 0 {
			continue
		}
		if !xy.IsPointInRing(poly.Layout(), p, poly.LinearRing(0).FlatCoords()) {
			continue
		}
		inHole := false
		for j := 1; j < poly.NumLinearRings(); j++ {
			if xy.IsPointInRing(poly.Layout(), p, poly.LinearRing(j).FlatCoords()) {
				inHole = true
				break
			}
		}
		if !inHole {
			return true
		}
	}
	return false
}

func toBounds(b *geom.Bounds) *ctgeom.Bounds {
	return &ctgeom.Bounds{
		Min: ctgeom.Point{X: b.Min(0), Y: b.Min(1)},
		Max: ctgeom.Point{X: b.Max(0), Y: b.Max(1)},
	}
}

// CellSize returns the planar width and height of one cell.
func (g *Grid) CellSize() (dx, dy float64) {
	return (g.Extent.MaxX - g.Extent.MinX) / float64(g.Cols),
		(g.Extent.MaxY - g.Extent.MinY) / float64(g.Rows)
}

// Center returns the planar center of cell (row, col).
func (g *Grid) Center(row, col int) (x, y float64) {
	dx, dy := g.CellSize()
	return g.Extent.MinX + (float64(col)+0.5)*dx, g.Extent.MaxY - (float64(row)+0.5)*dy
}

// At returns the value of cell (row, col).
func (g *Grid) At(row, col int) float64 { return g.Values[row*g.Cols+col] }

// Matrix returns a Rows×Cols view of the grid values. The matrix shares
// storage with g, so reshaping always uses the rasterized dimensions.
func (g *Grid) Matrix() *mat.Dense {
	return mat.NewDense(g.Rows, g.Cols, g.Values)
}

// Flatten returns the row-major values of m.
func Flatten(m mat.Matrix) []float64 {
	r, c := m.Dims()
	out := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out = append(out, m.At(i, j))
		}
	}
	return out
}

// Stats returns the count, range and sum of the non-null cells. Min and
// Max are NaN when every cell is null.
func (g *Grid) Stats() Stats {
	s := Stats{Min: math.NaN(), Max: math.NaN()}
	for _, v := range g.Values {
		if math.IsNaN(v) {
			continue
		}
		if s.Count == 0 || v < s.Min {
			s.Min = v
		}
		if s.Count == 0 || v > s.Max {
			s.Max = v
		}
		s.Sum += v
		s.Count++
	}
	return s
}

// Clip nulls every cell whose center falls outside outline and returns
// the number of cells cleared.
func (g *Grid) Clip(outline *geom.MultiPolygon) int {
	if outline == nil {
		return 0
	}
	box, err := aspect.FromBounds(outline.Bounds())
	if err != nil {
		return 0
	}

	cleared := 0
	for r := 0; r < g.Rows; r++ {
		for col := 0; col < g.Cols; col++ {
			i := r*g.Cols + col
			if math.IsNaN(g.Values[i]) {
				continue
			}
			x, y := g.Center(r, col)
			if box.Contains(x, y) && Contains(outline, x, y) {
				continue
			}
			g.Values[i] = math.NaN()
			cleared++
		}
	}
	zap.L().Debug("raster clipped to boundary",
		zap.String("component", "raster.clip"),
		zap.Int("cleared", cleared),
	)
	return cleared
}
