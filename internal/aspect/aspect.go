// Package aspect sizes the output raster from the proportions of a
// boundary's bounding box.
package aspect

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// HeightBias is the height ratio used when the box is at least as tall as
// it is wide. It is 1.1, not 1.0: tall countries get 10% extra rows so the
// extruded relief is not cropped at the top of the frame.
const HeightBias = 1.1

// ErrDegenerateBounds is returned for boxes with zero width or height.
var ErrDegenerateBounds = eris.New("aspect: bounding box has no area")

// BBox is a planar extent.
type BBox struct {
	MinX, MinY, MaxX, MaxY float64
}

// Point is a planar coordinate.
type Point struct{ X, Y float64 }

// Corners of a BBox.
type Corners struct {
	BottomLeft, BottomRight, TopLeft, TopRight Point
}

// Ratios are normalized width/height factors applied to the raster size.
type Ratios struct {
	Width, Height float64
}

// Dims are integer raster dimensions.
type Dims struct {
	Cols, Rows int
}

// BoundsOf returns the bounding box of g.
func BoundsOf(g geom.T) (BBox, error) {
	if g == nil {
		return BBox{}, eris.Wrap(ErrDegenerateBounds, "aspect: nil geometry")
	}
	return FromBounds(g.Bounds())
}

// FromBounds converts go-geom bounds into a BBox.
func FromBounds(b *geom.Bounds) (BBox, error) {
	if b == nil || b.IsEmpty() {
		return BBox{}, eris.Wrap(ErrDegenerateBounds, "aspect: empty geometry")
	}
	return BBox{MinX: b.Min(0), MinY: b.Min(1), MaxX: b.Max(0), MaxY: b.Max(1)}, nil
}

// Corners returns the four corner points of b.
func (b BBox) Corners() Corners {
	return Corners{
		BottomLeft:  Point{b.MinX, b.MinY},
		BottomRight: Point{b.MaxX, b.MinY},
		TopLeft:     Point{b.MinX, b.MaxY},
		TopRight:    Point{b.MaxX, b.MaxY},
	}
}

// Width is the length of the bottom edge.
func (b BBox) Width() float64 {
	c := b.Corners()
	return distance(c.BottomLeft, c.BottomRight)
}

// Height is the length of the left edge.
func (b BBox) Height() float64 {
	c := b.Corners()
	return distance(c.BottomLeft, c.TopLeft)
}

// Contains reports whether (x, y) lies inside b, edges included.
func (b BBox) Contains(x, y float64) bool {
	return x >= b.MinX && x <= b.MaxX && y >= b.MinY && y <= b.MaxY
}

func distance(a, b Point) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

// Compute derives raster ratios from b. A box wider than tall gets
// width 1 and height h/w; otherwise width w/h and height HeightBias.
func Compute(b BBox) (Ratios, error) {
	w, h := b.Width(), b.Height()
	if w <= 0 || h <= 0 || math.IsNaN(w) || math.IsNaN(h) {
		return Ratios{}, eris.Wrapf(ErrDegenerateBounds, "aspect: width %g height %g", w, h)
	}
	if w > h {
		return Ratios{Width: 1, Height: h / w}, nil
	}
	return Ratios{Width: w / h, Height: HeightBias}, nil
}

// Dimensions scales size by r and floors each axis.
func Dimensions(size int, r Ratios) Dims {
	return Dims{
		Cols: int(math.Floor(float64(size) * r.Width)),
		Rows: int(math.Floor(float64(size) * r.Height)),
	}
}

// Valid reports whether both dimensions are positive.
func (d Dims) Valid() bool { return d.Cols > 0 && d.Rows > 0 }
