package geodata

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// ReadGeoPackage reads one feature table from a GeoPackage. An empty layer
// selects the first feature table listed in gpkg_contents.
func ReadGeoPackage(ctx context.Context, path, layer string) (*Collection, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, eris.Wrapf(err, "geodata: open geopackage %s", path)
	}
	defer db.Close() //nolint:errcheck

	if layer == "" {
		err = db.QueryRowContext(ctx,
			`SELECT table_name FROM gpkg_contents WHERE data_type = 'features' ORDER BY table_name LIMIT 1`,
		).Scan(&layer)
		if err != nil {
			return nil, eris.Wrapf(err, "geodata: find feature table in %s", path)
		}
	}

	var geomCol string
	var srsID int
	err = db.QueryRowContext(ctx,
		`SELECT column_name, srs_id FROM gpkg_geometry_columns WHERE table_name = ?`, layer,
	).Scan(&geomCol, &srsID)
	if err != nil {
		return nil, eris.Wrapf(err, "geodata: geometry column for layer %q", layer)
	}

	crs, err := gpkgCRS(ctx, db, srsID)
	if err != nil {
		return nil, err
	}

	fields, err := gpkgColumns(ctx, db, layer, geomCol)
	if err != nil {
		return nil, err
	}

	cols := make([]string, 0, len(fields)+1)
	cols = append(cols, quoteIdent(geomCol))
	for _, f := range fields {
		cols = append(cols, quoteIdent(f))
	}
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), quoteIdent(layer))

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, eris.Wrapf(err, "geodata: query layer %q", layer)
	}
	defer rows.Close() //nolint:errcheck

	c := &Collection{Name: layer, CRS: crs, Fields: fields}
	var skipped int

	for rows.Next() {
		var blob []byte
		vals := make([]sql.NullString, len(fields))
		dest := make([]any, 0, len(fields)+1)
		dest = append(dest, &blob)
		for i := range vals {
			dest = append(dest, &vals[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, eris.Wrapf(err, "geodata: scan layer %q", layer)
		}

		g, err := DecodeGeoPackageGeometry(blob)
		if err != nil {
			skipped++
			continue
		}
		g = normalize(g)
		if g == nil {
			skipped++
			continue
		}

		props := make(map[string]string, len(fields))
		for i, f := range fields {
			if vals[i].Valid {
				props[f] = strings.TrimSpace(vals[i].String)
			}
		}
		c.Features = append(c.Features, Feature{Geometry: g, Props: props})
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "geodata: read layer %q", layer)
	}

	if skipped > 0 {
		zap.L().Debug("geodata: skipped geopackage records",
			zap.String("layer", layer),
			zap.Int("skipped", skipped),
		)
	}

	return c, nil
}

func gpkgCRS(ctx context.Context, db *sql.DB, srsID int) (string, error) {
	var org sql.NullString
	var code sql.NullInt64
	err := db.QueryRowContext(ctx,
		`SELECT organization, organization_coordsys_id FROM gpkg_spatial_ref_sys WHERE srs_id = ?`, srsID,
	).Scan(&org, &code)
	if err != nil {
		return "", eris.Wrapf(err, "geodata: spatial ref %d", srsID)
	}
	if org.Valid && code.Valid {
		return fmt.Sprintf("%s:%d", strings.ToUpper(org.String), code.Int64), nil
	}
	return fmt.Sprintf("EPSG:%d", srsID), nil
}

func gpkgColumns(ctx context.Context, db *sql.DB, layer, geomCol string) ([]string, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(layer)))
	if err != nil {
		return nil, eris.Wrapf(err, "geodata: columns of %q", layer)
	}
	defer rows.Close() //nolint:errcheck

	var fields []string
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, eris.Wrap(err, "geodata: scan table_info")
		}
		if name == geomCol || pk == 1 {
			continue
		}
		fields = append(fields, name)
	}
	return fields, eris.Wrap(rows.Err(), "geodata: read table_info")
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// DecodeGeoPackageGeometry strips the GeoPackage binary header and decodes
// the WKB payload. Empty geometries decode to nil.
func DecodeGeoPackageGeometry(b []byte) (geom.T, error) {
	if len(b) < 8 || b[0] != 'G' || b[1] != 'P' {
		return nil, eris.New("geodata: bad geopackage geometry header")
	}
	flags := b[3]
	if flags&0x10 != 0 {
		return nil, nil
	}

	var envLen int
	switch (flags >> 1) & 0x07 {
	case 0:
		envLen = 0
	case 1:
		envLen = 32
	case 2, 3:
		envLen = 48
	case 4:
		envLen = 64
	default:
		return nil, eris.Errorf("geodata: bad geopackage envelope flag %#x", flags)
	}

	off := 8 + envLen
	if len(b) <= off {
		return nil, eris.New("geodata: truncated geopackage geometry")
	}

	g, err := wkb.Unmarshal(b[off:])
	if err != nil {
		return nil, eris.Wrap(err, "geodata: decode wkb")
	}
	return g, nil
}

// EncodeGeoPackageGeometry wraps g in a GeoPackage binary header without
// an envelope.
func EncodeGeoPackageGeometry(g geom.T, srsID int32) ([]byte, error) {
	payload, err := wkb.Marshal(g, wkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "geodata: encode wkb")
	}
	hdr := make([]byte, 8, 8+len(payload))
	hdr[0], hdr[1] = 'G', 'P'
	hdr[2] = 0
	hdr[3] = 0x01 // little-endian header, no envelope
	binary.LittleEndian.PutUint32(hdr[4:], uint32(srsID))
	return append(hdr, payload...), nil
}
