package geodata

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// ReadShapefile reads every record of a shapefile. Shapefiles carry no
// CRS we parse, so the collection defaults to WGS84; LoadOptions.SourceCRS
// overrides it.
func ReadShapefile(shpPath string) (*Collection, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "geodata: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = strings.TrimRight(f.String(), "\x00")
	}

	c := &Collection{Name: strings.TrimSuffix(shpPath, ".shp"), CRS: WGS84, Fields: names}
	var skipped int

	for reader.Next() {
		_, shape := reader.Shape()

		g := shapeToGeom(shape)
		if g == nil {
			skipped++
			continue
		}

		props := make(map[string]string, len(names))
		for i, name := range names {
			val := strings.TrimRight(reader.Attribute(i), "\x00")
			props[name] = strings.TrimSpace(val)
		}
		c.Features = append(c.Features, Feature{Geometry: g, Props: props})
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(err, "geodata: read shapefile %s", shpPath)
	}

	if skipped > 0 {
		zap.L().Debug("geodata: skipped shapefile records",
			zap.String("path", shpPath),
			zap.Int("skipped", skipped),
		)
	}

	return c, nil
}

// shapeToGeom converts a go-shp shape. Returns nil for unsupported or
// empty shapes.
func shapeToGeom(shape shp.Shape) geom.T {
	switch s := shape.(type) {
	case *shp.Point:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y})
	case *shp.Polygon:
		return polygonToMultiPolygon(s)
	default:
		return nil
	}
}

// polygonToMultiPolygon groups shapefile rings into polygons. Shapefiles
// store outer rings clockwise and holes counter-clockwise; a clockwise
// ring starts a new polygon and each following counter-clockwise ring is
// a hole of it.
func polygonToMultiPolygon(p *shp.Polygon) *geom.MultiPolygon {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY)
	var current *geom.Polygon

	flush := func() {
		if current == nil {
			return
		}
		if err := mp.Push(current); err != nil {
			zap.L().Debug("geodata: skipping malformed polygon part", zap.Error(err))
		}
		current = nil
	}

	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}
		if end-start < 4 {
			continue
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}
		ring := geom.NewLinearRingFlat(geom.XY, flat)

		if current == nil || signedArea(flat) < 0 {
			flush()
			current = geom.NewPolygon(geom.XY)
		}
		if err := current.Push(ring); err != nil {
			zap.L().Debug("geodata: skipping malformed polygon ring", zap.Int32("part", i), zap.Error(err))
		}
	}
	flush()

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

// signedArea is the shoelace sum over an XY ring; negative for clockwise.
func signedArea(flat []float64) float64 {
	var a float64
	n := len(flat) / 2
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		a += flat[2*i]*flat[2*j+1] - flat[2*j]*flat[2*i+1]
	}
	return a / 2
}
