package geodata

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// ReadGeoJSON reads a GeoJSON FeatureCollection. Coordinates are WGS84
// longitude/latitude.
func ReadGeoJSON(path string) (*Collection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "geodata: read geojson %s", path)
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, eris.Wrapf(err, "geodata: parse geojson %s", path)
	}

	c := &Collection{
		Name: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		CRS:  WGS84,
	}
	seen := make(map[string]bool)

	for _, f := range fc.Features {
		g := orbToGeom(f.Geometry)
		if g == nil {
			continue
		}
		props := make(map[string]string, len(f.Properties))
		for k, v := range f.Properties {
			props[k] = propString(v)
			if !seen[k] {
				seen[k] = true
				c.Fields = append(c.Fields, k)
			}
		}
		c.Features = append(c.Features, Feature{Geometry: g, Props: props})
	}
	sort.Strings(c.Fields)

	return c, nil
}

func propString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

func orbToGeom(g orb.Geometry) geom.T {
	switch t := g.(type) {
	case orb.Point:
		return geom.NewPointFlat(geom.XY, []float64{t[0], t[1]})
	case orb.Polygon:
		return normalize(orbPolygon(t))
	case orb.MultiPolygon:
		mp := geom.NewMultiPolygon(geom.XY)
		for _, p := range t {
			if err := mp.Push(orbPolygon(p)); err != nil {
				return nil
			}
		}
		return normalize(mp)
	default:
		return nil
	}
}

func orbPolygon(p orb.Polygon) *geom.Polygon {
	flat := make([]float64, 0)
	ends := make([]int, 0, len(p))
	for _, ring := range p {
		for _, pt := range ring {
			flat = append(flat, pt[0], pt[1])
		}
		ends = append(ends, len(flat))
	}
	return geom.NewPolygonFlat(geom.XY, flat, ends)
}
