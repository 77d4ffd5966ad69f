// Package geodata loads vector feature collections (population hexagons,
// administrative boundaries) from disk and reprojects them into a common
// planar coordinate reference system.
package geodata

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// Input error classes. Callers match them with errors.Is.
var (
	ErrUnsupportedFormat = eris.New("geodata: unsupported file format")
	ErrMissingField      = eris.New("geodata: missing attribute field")
	ErrNoFeatures        = eris.New("geodata: no features")
	ErrUnknownCRS        = eris.New("geodata: unknown coordinate reference system")
)

// Feature is a single geometry with its attribute values.
// Polygonal geometries are always *geom.MultiPolygon.
type Feature struct {
	Geometry geom.T
	Props    map[string]string
}

// Collection is an ordered set of features sharing one CRS.
type Collection struct {
	Name     string
	CRS      string
	Fields   []string
	Features []Feature
}

// LoadOptions configures a single dataset load.
type LoadOptions struct {
	Layer     string   // GeoPackage table; empty = first feature table
	Fields    []string // attribute columns that must be present
	SourceCRS string   // overrides the CRS detected from the file
	TargetCRS string   // reproject into this CRS; empty = keep source
}

// Load reads the dataset at path, validates required fields and
// reprojects it to opts.TargetCRS.
func Load(ctx context.Context, path string, opts LoadOptions) (*Collection, error) {
	log := zap.L().With(
		zap.String("component", "geodata.loader"),
		zap.String("path", path),
	)

	var (
		c   *Collection
		err error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".gpkg":
		c, err = ReadGeoPackage(ctx, path, opts.Layer)
	case ".shp":
		c, err = ReadShapefile(path)
	case ".geojson", ".json":
		c, err = ReadGeoJSON(path)
	case ".csv":
		c, err = ReadH3CSV(path)
	default:
		return nil, eris.Wrapf(ErrUnsupportedFormat, "geodata: %q", ext)
	}
	if err != nil {
		return nil, err
	}

	if opts.SourceCRS != "" {
		c.CRS = opts.SourceCRS
	}
	if len(c.Features) == 0 {
		return nil, eris.Wrapf(ErrNoFeatures, "geodata: %s", path)
	}
	if err := c.RequireFields(opts.Fields...); err != nil {
		return nil, eris.Wrapf(err, "geodata: %s", path)
	}
	for i := range c.Features {
		if mp := c.Polygons(i); mp != nil {
			c.Features[i].Geometry = Orient(mp)
		}
	}

	log.Info("dataset read",
		zap.String("layer", c.Name),
		zap.String("crs", c.CRS),
		zap.Int("features", len(c.Features)),
	)

	if opts.TargetCRS != "" {
		if err := Reproject(c, opts.TargetCRS); err != nil {
			return nil, eris.Wrapf(err, "geodata: reproject %s", path)
		}
		log.Debug("dataset reprojected", zap.String("crs", c.CRS))
	}

	return c, nil
}

// RequireFields returns ErrMissingField if any name is not an attribute of c.
func (c *Collection) RequireFields(names ...string) error {
	have := make(map[string]bool, len(c.Fields))
	for _, f := range c.Fields {
		have[f] = true
	}
	for _, n := range names {
		if !have[n] {
			return eris.Wrapf(ErrMissingField, "geodata: field %q not in %v", n, c.Fields)
		}
	}
	return nil
}

// Bounds returns the planar extent of every geometry in c.
func (c *Collection) Bounds() *geom.Bounds {
	b := geom.NewBounds(geom.XY)
	for _, f := range c.Features {
		if f.Geometry == nil {
			continue
		}
		b.Extend(f.Geometry)
	}
	return b
}

// Float parses the numeric attribute field of feature i. A missing or
// empty value reports ok=false.
func (c *Collection) Float(i int, field string) (float64, bool) {
	s, ok := c.Features[i].Props[field]
	if !ok || s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Polygons returns the polygonal geometry of feature i, or nil for points.
func (c *Collection) Polygons(i int) *geom.MultiPolygon {
	mp, _ := c.Features[i].Geometry.(*geom.MultiPolygon)
	return mp
}

// toMultiPolygon normalizes polygonal geometries. Non-polygonal input
// returns nil.
func toMultiPolygon(g geom.T) *geom.MultiPolygon {
	switch t := g.(type) {
	case *geom.MultiPolygon:
		return t
	case *geom.Polygon:
		mp := geom.NewMultiPolygon(t.Layout())
		if err := mp.Push(t); err != nil {
			return nil
		}
		return mp
	case *geom.GeometryCollection:
		var mp *geom.MultiPolygon
		for _, part := range t.Geoms() {
			sub := toMultiPolygon(part)
			if sub == nil {
				continue
			}
			if mp == nil {
				mp = geom.NewMultiPolygon(sub.Layout())
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

// normalize converts a decoded geometry into the Feature representation.
// It returns nil for unsupported geometry kinds.
func normalize(g geom.T) geom.T {
	if g == nil {
		return nil
	}
	switch t := g.(type) {
	case *geom.Point:
		return t
	default:
		if mp := toMultiPolygon(g); mp != nil && mp.NumPolygons() > 0 {
			return forceXY(mp)
		}
		return nil
	}
}

// forceXY drops Z and M ordinates so every downstream stage sees a
// 2D layout.
func forceXY(mp *geom.MultiPolygon) *geom.MultiPolygon {
	if mp.Layout() == geom.XY {
		return mp
	}
	stride := mp.Stride()
	src := mp.FlatCoords()
	flat := make([]float64, 0, len(src)/stride*2)
	for i := 0; i+1 < len(src); i += stride {
		flat = append(flat, src[i], src[i+1])
	}
	endss := mp.Endss()
	out := make([][]int, len(endss))
	for i, ends := range endss {
		out[i] = make([]int, len(ends))
		for j, e := range ends {
			out[i][j] = e / stride * 2
		}
	}
	return geom.NewMultiPolygonFlat(geom.XY, flat, out)
}
