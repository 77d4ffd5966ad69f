// Package geodatatest builds synthetic geodata fixtures for tests.
package geodatatest

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	gjson "github.com/twpayne/go-geom/encoding/geojson"
	_ "modernc.org/sqlite"

	"github.com/sells-group/hexrelief/internal/geodata"
)

// Square returns an axis-aligned rectangle as a MultiPolygon.
func Square(minX, minY, maxX, maxY float64) *geom.MultiPolygon {
	flat := []float64{
		minX, minY,
		maxX, minY,
		maxX, maxY,
		minX, maxY,
		minX, minY,
	}
	return geom.NewMultiPolygonFlat(geom.XY, flat, [][]int{{len(flat)}})
}

// Hexagon returns a pointy-top hexagon centered on (cx, cy).
func Hexagon(cx, cy, radius float64) *geom.MultiPolygon {
	flat := make([]float64, 0, 14)
	for k := 0; k <= 6; k++ {
		a := (30 + 60*float64(k%6)) * math.Pi / 180
		flat = append(flat, cx+radius*math.Cos(a), cy+radius*math.Sin(a))
	}
	return geom.NewMultiPolygonFlat(geom.XY, flat, [][]int{{len(flat)}})
}

// HexGrid lays out cols×rows pointy-top hexagons starting at (x0, y0) with
// odd rows shifted half a cell. Every feature carries field=value.
func HexGrid(cols, rows int, x0, y0, radius float64, field string, value float64) *geodata.Collection {
	w := math.Sqrt(3) * radius
	c := &geodata.Collection{Name: "hexgrid", CRS: geodata.WGS84, Fields: []string{field}}
	for r := 0; r < rows; r++ {
		for q := 0; q < cols; q++ {
			cx := x0 + w/2 + float64(q)*w
			if r%2 == 1 {
				cx += w / 2
			}
			cy := y0 + radius + float64(r)*1.5*radius
			c.Features = append(c.Features, geodata.Feature{
				Geometry: Hexagon(cx, cy, radius),
				Props:    map[string]string{field: strconv.FormatFloat(value, 'f', -1, 64)},
			})
		}
	}
	return c
}

// Regions returns one square feature per name, laid side by side along x
// starting at (x0, y0), each size×size, with field=name.
func Regions(field string, x0, y0, size float64, names ...string) *geodata.Collection {
	c := &geodata.Collection{Name: "regions", CRS: geodata.WGS84, Fields: []string{field}}
	for i, n := range names {
		minX := x0 + float64(i)*size
		c.Features = append(c.Features, geodata.Feature{
			Geometry: Square(minX, y0, minX+size, y0+size),
			Props:    map[string]string{field: n},
		})
	}
	return c
}

// WriteGeoJSON writes c as a FeatureCollection. Numeric attribute values
// are written as JSON numbers.
func WriteGeoJSON(t testing.TB, path string, c *geodata.Collection) {
	t.Helper()
	fc := &gjson.FeatureCollection{}
	for _, f := range c.Features {
		props := make(map[string]any, len(f.Props))
		for k, v := range f.Props {
			if n, err := strconv.ParseFloat(v, 64); err == nil {
				props[k] = n
			} else {
				props[k] = v
			}
		}
		fc.Features = append(fc.Features, &gjson.Feature{Geometry: f.Geometry, Properties: props})
	}
	data, err := json.Marshal(fc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

// WriteGeoPackage writes c as a single feature table with the given
// EPSG code.
func WriteGeoPackage(t testing.TB, path, layer string, epsg int32, c *geodata.Collection) {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close() //nolint:errcheck

	fields := append([]string(nil), c.Fields...)
	sort.Strings(fields)

	cols := []string{"fid INTEGER PRIMARY KEY AUTOINCREMENT", "geom BLOB"}
	for _, f := range fields {
		cols = append(cols, fmt.Sprintf("%q %s", f, columnType(c, f)))
	}

	stmts := []string{
		`CREATE TABLE gpkg_spatial_ref_sys (srs_name TEXT NOT NULL, srs_id INTEGER PRIMARY KEY,
			organization TEXT NOT NULL, organization_coordsys_id INTEGER NOT NULL,
			definition TEXT NOT NULL, description TEXT)`,
		`CREATE TABLE gpkg_contents (table_name TEXT NOT NULL PRIMARY KEY, data_type TEXT NOT NULL,
			identifier TEXT, description TEXT DEFAULT '', last_change DATETIME,
			min_x DOUBLE, min_y DOUBLE, max_x DOUBLE, max_y DOUBLE, srs_id INTEGER)`,
		`CREATE TABLE gpkg_geometry_columns (table_name TEXT NOT NULL, column_name TEXT NOT NULL,
			geometry_type_name TEXT NOT NULL, srs_id INTEGER NOT NULL, z TINYINT NOT NULL, m TINYINT NOT NULL)`,
		fmt.Sprintf(`CREATE TABLE %q (%s)`, layer, strings.Join(cols, ", ")),
	}
	for _, s := range stmts {
		_, err := db.Exec(s)
		require.NoError(t, err)
	}

	_, err = db.Exec(`INSERT INTO gpkg_spatial_ref_sys VALUES (?, ?, 'EPSG', ?, 'undefined', '')`,
		fmt.Sprintf("EPSG:%d", epsg), epsg, epsg)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO gpkg_contents (table_name, data_type, identifier, srs_id) VALUES (?, 'features', ?, ?)`,
		layer, layer, epsg)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO gpkg_geometry_columns VALUES (?, 'geom', 'MULTIPOLYGON', ?, 0, 0)`, layer, epsg)
	require.NoError(t, err)

	quoted := make([]string, 0, len(fields)+1)
	marks := make([]string, 0, len(fields)+1)
	quoted = append(quoted, "geom")
	marks = append(marks, "?")
	for _, f := range fields {
		quoted = append(quoted, fmt.Sprintf("%q", f))
		marks = append(marks, "?")
	}
	insert := fmt.Sprintf(`INSERT INTO %q (%s) VALUES (%s)`, layer, strings.Join(quoted, ", "), strings.Join(marks, ", "))

	for _, f := range c.Features {
		blob, err := geodata.EncodeGeoPackageGeometry(f.Geometry, epsg)
		require.NoError(t, err)
		args := []any{blob}
		for _, name := range fields {
			args = append(args, f.Props[name])
		}
		_, err = db.Exec(insert, args...)
		require.NoError(t, err)
	}
}

func columnType(c *geodata.Collection, field string) string {
	for _, f := range c.Features {
		if _, err := strconv.ParseFloat(f.Props[field], 64); err != nil {
			return "TEXT"
		}
	}
	return "REAL"
}

// WriteShapefile writes the polygonal features of c. Attribute fields are
// written as 64-character strings.
func WriteShapefile(t testing.TB, path string, c *geodata.Collection) {
	t.Helper()
	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)
	defer w.Close()

	fields := make([]shp.Field, len(c.Fields))
	for i, f := range c.Fields {
		fields[i] = shp.StringField(f, 64)
	}
	require.NoError(t, w.SetFields(fields))

	for _, f := range c.Features {
		mp, ok := f.Geometry.(*geom.MultiPolygon)
		require.True(t, ok, "shapefile fixtures must be polygonal")

		var parts [][]shp.Point
		for i := 0; i < mp.NumPolygons(); i++ {
			p := mp.Polygon(i)
			for j := 0; j < p.NumLinearRings(); j++ {
				coords := p.LinearRing(j).Coords()
				pts := make([]shp.Point, len(coords))
				// Shapefile outer rings run clockwise.
				for k := range coords {
					src := coords[len(coords)-1-k]
					if j > 0 {
						src = coords[k]
					}
					pts[k] = shp.Point{X: src[0], Y: src[1]}
				}
				parts = append(parts, pts)
			}
		}

		poly := shp.Polygon(*shp.NewPolyLine(parts))
		idx := w.Write(&poly)
		for i, name := range c.Fields {
			require.NoError(t, w.WriteAttribute(int(idx), i, f.Props[name]))
		}
	}
}

// WriteH3CSV writes cells and their population as an h3-keyed CSV.
func WriteH3CSV(t testing.TB, path string, field string, cells map[string]float64) {
	t.Helper()
	keys := make([]string, 0, len(cells))
	for k := range cells {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "h3,%s\n", field)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s,%s\n", k, strconv.FormatFloat(cells[k], 'f', -1, 64))
	}
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
}
