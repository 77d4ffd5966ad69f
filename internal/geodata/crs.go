package geodata

import (
	"strings"

	"github.com/ctessum/geom/proj"
	"github.com/rotisserie/eris"
)

// CRS identifiers understood without a raw proj4 definition.
const (
	WGS84        = "EPSG:4326"
	WebMercator  = "EPSG:3857"
	webMercAlias = "EPSG:900913"
)

var knownCRS = map[string]string{
	WGS84:        "+proj=longlat +datum=WGS84 +no_defs",
	WebMercator:  "+proj=merc +a=6378137 +b=6378137 +lat_ts=0.0 +lon_0=0.0 +x_0=0.0 +y_0=0 +k=1.0 +units=m +nadgrids=@null +no_defs",
	webMercAlias: "+proj=merc +a=6378137 +b=6378137 +lat_ts=0.0 +lon_0=0.0 +x_0=0.0 +y_0=0 +k=1.0 +units=m +nadgrids=@null +no_defs",
}

// ErrUnsupportedProjection is returned for proj4 definitions whose
// projection has no transformer. Supported: longlat, merc, tmerc, utm, lcc,
// eqdc, krovak and aea (Albers, the equal-area option).
var ErrUnsupportedProjection = eris.New("geodata: unsupported projection")

// ProjDefinition resolves a CRS identifier to a proj4 definition. Raw
// proj4 strings pass through unchanged.
func ProjDefinition(id string) (string, error) {
	id = strings.TrimSpace(id)
	if strings.HasPrefix(id, "+proj=") {
		return id, nil
	}
	def, ok := knownCRS[strings.ToUpper(id)]
	if !ok {
		return "", eris.Wrapf(ErrUnknownCRS, "geodata: %q", id)
	}
	return def, nil
}

// SameCRS reports whether two identifiers resolve to the same definition.
func SameCRS(a, b string) bool {
	da, errA := ProjDefinition(a)
	db, errB := ProjDefinition(b)
	return errA == nil && errB == nil && da == db
}

// Reproject transforms every coordinate of c into target. Coordinates are
// transformed into copies first, so c is left unchanged on error.
func Reproject(c *Collection, target string) error {
	if SameCRS(c.CRS, target) {
		c.CRS = target
		return nil
	}

	srcDef, err := ProjDefinition(c.CRS)
	if err != nil {
		return err
	}
	dstDef, err := ProjDefinition(target)
	if err != nil {
		return err
	}

	src, err := parseSR(c.CRS, srcDef)
	if err != nil {
		return err
	}
	dst, err := parseSR(target, dstDef)
	if err != nil {
		return err
	}
	trans, err := src.NewTransform(dst)
	if err != nil {
		return eris.Wrapf(err, "geodata: transform %s -> %s", c.CRS, target)
	}
	if trans == nil {
		c.CRS = target
		return nil
	}

	out := make([][]float64, len(c.Features))
	for i, f := range c.Features {
		if f.Geometry == nil {
			continue
		}
		stride := f.Geometry.Stride()
		flat := append([]float64(nil), f.Geometry.FlatCoords()...)
		for j := 0; j+1 < len(flat); j += stride {
			x, y, err := trans(flat[j], flat[j+1])
			if err != nil {
				return eris.Wrapf(err, "geodata: transform feature %d", i)
			}
			flat[j], flat[j+1] = x, y
		}
		out[i] = flat
	}
	for i, f := range c.Features {
		if out[i] != nil {
			copy(f.Geometry.FlatCoords(), out[i])
		}
	}

	c.CRS = target
	return nil
}

// parseSR parses def and checks that its projection can be transformed.
func parseSR(id, def string) (*proj.SR, error) {
	sr, err := proj.Parse(def)
	if err != nil {
		return nil, eris.Wrapf(err, "geodata: parse CRS %q", id)
	}
	if _, _, err := sr.Transformers(); err != nil {
		return nil, eris.Wrapf(ErrUnsupportedProjection, "geodata: %q: %v", id, err)
	}
	return sr, nil
}
