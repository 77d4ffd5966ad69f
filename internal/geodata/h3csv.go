package geodata

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	h3 "github.com/uber/h3-go/v4"
	"go.uber.org/zap"
)

// H3Column is the CSV header naming the cell index column.
const H3Column = "h3"

// ReadH3CSV reads a CSV keyed by H3 cell index, the layout population
// datasets such as Kontur publish. Each row becomes the hexagon of its
// cell in WGS84; the remaining columns are attributes.
func ReadH3CSV(path string) (*Collection, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "geodata: open csv %s", path)
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, eris.Wrapf(err, "geodata: read csv header %s", path)
	}

	cellIdx := -1
	var fields []string
	for i, h := range header {
		h = strings.TrimSpace(h)
		header[i] = h
		if strings.EqualFold(h, H3Column) {
			cellIdx = i
			continue
		}
		fields = append(fields, h)
	}
	if cellIdx < 0 {
		return nil, eris.Wrapf(ErrMissingField, "geodata: csv %s has no %q column", path, H3Column)
	}

	c := &Collection{
		Name:   strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		CRS:    WGS84,
		Fields: fields,
	}
	var skipped int

	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "geodata: read csv %s", path)
		}

		g, err := cellPolygon(rec[cellIdx])
		if err != nil {
			skipped++
			continue
		}

		props := make(map[string]string, len(fields))
		for i, v := range rec {
			if i == cellIdx {
				continue
			}
			props[header[i]] = strings.TrimSpace(v)
		}
		c.Features = append(c.Features, Feature{Geometry: g, Props: props})
	}

	if skipped > 0 {
		zap.L().Debug("geodata: skipped invalid h3 cells",
			zap.String("path", path),
			zap.Int("skipped", skipped),
		)
	}

	return c, nil
}

// cellPolygon returns the closed hexagon (or pentagon) of an H3 cell as
// a single-polygon MultiPolygon in lon/lat.
func cellPolygon(s string) (*geom.MultiPolygon, error) {
	var cell h3.Cell
	if err := cell.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return nil, eris.Wrapf(err, "geodata: parse h3 cell %q", s)
	}
	if !cell.IsValid() {
		return nil, eris.Errorf("geodata: invalid h3 cell %q", s)
	}

	boundary, err := cell.Boundary()
	if err != nil {
		return nil, eris.Wrapf(err, "geodata: h3 boundary %q", s)
	}
	if len(boundary) < 3 {
		return nil, eris.Errorf("geodata: degenerate h3 cell %q", s)
	}

	flat := make([]float64, 0, (len(boundary)+1)*2)
	for _, ll := range boundary {
		flat = append(flat, ll.Lng, ll.Lat)
	}
	flat = append(flat, boundary[0].Lng, boundary[0].Lat)

	return geom.NewMultiPolygonFlat(geom.XY, flat, [][]int{{len(flat)}}), nil
}
