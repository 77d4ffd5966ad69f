// Package boundary derives a single national boundary polygon by
// unioning administrative units selected by name.
package boundary

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"
	"github.com/twpayne/go-geos"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/hexrelief/internal/geodata"
)

// Geometry error classes.
var (
	ErrEmptyBoundary   = eris.New("boundary: no features matched the name filter")
	ErrInvalidBoundary = eris.New("boundary: union is not a valid polygon")
)

// Boundary is a valid, non-empty polygonal outline in a collection's CRS.
type Boundary struct {
	Geometry *geom.MultiPolygon
	CRS      string
	Names    []string // distinct attribute values that matched
	Features int      // number of unioned features
}

// Area returns the unsigned planar area of the boundary.
func (b *Boundary) Area() float64 { return math.Abs(b.Geometry.Area()) }

// Build selects the features of c whose field matches one of names,
// unions them and repairs the result. An empty names list selects every
// feature.
func Build(c *geodata.Collection, field string, names []string) (*Boundary, error) {
	log := zap.L().With(
		zap.String("component", "boundary.builder"),
		zap.String("field", field),
	)

	if err := c.RequireFields(field); err != nil {
		return nil, eris.Wrap(err, "boundary: filter field")
	}

	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[Fold(n)] = true
	}

	selected := geom.NewMultiPolygon(geom.XY)
	matched := make(map[string]bool)
	count := 0
	for i, f := range c.Features {
		mp := c.Polygons(i)
		if mp == nil {
			continue
		}
		name := f.Props[field]
		if len(want) > 0 && !want[Fold(name)] {
			continue
		}
		for j := 0; j < mp.NumPolygons(); j++ {
			if err := selected.Push(mp.Polygon(j)); err != nil {
				return nil, eris.Wrapf(err, "boundary: collect feature %d", i)
			}
		}
		matched[name] = true
		count++
	}

	if count == 0 {
		return nil, eris.Wrapf(ErrEmptyBoundary, "boundary: %s in %v", field, names)
	}

	union, err := Union(selected)
	if err != nil {
		return nil, err
	}

	b := &Boundary{Geometry: union, CRS: c.CRS, Features: count}
	for n := range matched {
		b.Names = append(b.Names, n)
	}
	sort.Strings(b.Names)

	log.Info("boundary built",
		zap.Int("features", count),
		zap.Strings("names", b.Names),
		zap.Int("polygons", union.NumPolygons()),
		zap.Float64("area", b.Area()),
	)

	return b, nil
}

// Union dissolves the polygons of mp with GEOS. Each input polygon is
// repaired first when invalid, and the dissolved result is repaired again
// before only its polygonal parts are kept.
func Union(mp *geom.MultiPolygon) (*geom.MultiPolygon, error) {
	if mp == nil || mp.NumPolygons() == 0 {
		return nil, ErrEmptyBoundary
	}

	gctx := geos.NewContext()

	parts := geom.NewMultiPolygon(geom.XY)
	for i := 0; i < mp.NumPolygons(); i++ {
		g, err := toGEOS(gctx, mp.Polygon(i))
		if err != nil {
			return nil, err
		}
		if !g.IsValid() {
			zap.L().Debug("boundary: repairing input polygon",
				zap.Int("polygon", i),
				zap.String("reason", g.IsValidReason()),
			)
			g = g.MakeValid()
		}
		repaired, err := fromGEOS(g)
		if err != nil {
			return nil, err
		}
		for j := 0; repaired != nil && j < repaired.NumPolygons(); j++ {
			if err := parts.Push(repaired.Polygon(j)); err != nil {
				return nil, eris.Wrapf(err, "boundary: collect repaired polygon %d", i)
			}
		}
	}
	if parts.NumPolygons() == 0 {
		return nil, eris.Wrap(ErrInvalidBoundary, "boundary: nothing left after repair")
	}

	g, err := toGEOS(gctx, parts)
	if err != nil {
		return nil, err
	}
	u := g.UnaryUnion()
	if u == nil || u.IsEmpty() {
		return nil, eris.Wrap(ErrEmptyBoundary, "boundary: empty union")
	}
	if !u.IsValid() {
		zap.L().Debug("boundary: repairing union", zap.String("reason", u.IsValidReason()))
		u = u.MakeValid()
		if u == nil || u.IsEmpty() || !u.IsValid() {
			return nil, ErrInvalidBoundary
		}
	}

	if u.Area() <= 0 {
		return nil, eris.Wrap(ErrInvalidBoundary, "boundary: union has no area")
	}

	// GEOS overlay output winds shells clockwise.
	result, err := fromGEOS(u)
	if err != nil {
		return nil, err
	}
	if result == nil || result.NumPolygons() == 0 {
		return nil, eris.Wrap(ErrInvalidBoundary, "boundary: union has no polygons")
	}
	return geodata.Orient(result), nil
}

func toGEOS(gctx *geos.Context, g geom.T) (*geos.Geom, error) {
	data, err := wkb.Marshal(g, wkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "boundary: encode wkb")
	}
	out, err := gctx.NewGeomFromWKB(data)
	if err != nil {
		return nil, eris.Wrap(err, "boundary: load geometry into geos")
	}
	return out, nil
}

func fromGEOS(g *geos.Geom) (*geom.MultiPolygon, error) {
	out, err := wkb.Unmarshal(g.ToWKB())
	if err != nil {
		return nil, eris.Wrap(err, "boundary: decode geos result")
	}
	return polygonal(out), nil
}

// polygonal keeps the polygon parts of g.
func polygonal(g geom.T) *geom.MultiPolygon {
	switch t := g.(type) {
	case *geom.MultiPolygon:
		return t
	case *geom.Polygon:
		mp := geom.NewMultiPolygon(geom.XY)
		if err := mp.Push(t); err != nil {
			return nil
		}
		return mp
	case *geom.GeometryCollection:
		mp := geom.NewMultiPolygon(geom.XY)
		for _, part := range t.Geoms() {
			sub := polygonal(part)
			if sub == nil {
				continue
			}
			for i := 0; i < sub.NumPolygons(); i++ {
				if err := mp.Push(sub.Polygon(i)); err != nil {
					return nil
				}
			}
		}
		return mp
	default:
		return nil
	}
}

// Fold normalizes an administrative name for matching: diacritics are
// stripped, case is folded and surrounding space trimmed.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return cases.Fold().String(strings.TrimSpace(out))
}
