package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/hexrelief/internal/atomicfile"
	"github.com/sells-group/hexrelief/internal/config"
)

// Manifest describes a finished run.
type Manifest struct {
	RunID      string         `yaml:"run_id"`
	StartedAt  time.Time      `yaml:"started_at"`
	FinishedAt time.Time      `yaml:"finished_at"`
	Inputs     ManifestInputs `yaml:"inputs"`
	Raster     ManifestRaster `yaml:"raster"`
	Outputs    ManifestOutput `yaml:"outputs"`
	Stages     []StageResult  `yaml:"stages"`
}

// ManifestInputs records where the data came from.
type ManifestInputs struct {
	Population string   `yaml:"population"`
	Boundary   string   `yaml:"boundary"`
	CRS        string   `yaml:"crs"`
	NameField  string   `yaml:"name_field"`
	Names      []string `yaml:"names"`
}

// ManifestRaster records the sizing and contents of the grid.
type ManifestRaster struct {
	WidthRatio  float64 `yaml:"width_ratio"`
	HeightRatio float64 `yaml:"height_ratio"`
	Cols        int     `yaml:"cols"`
	Rows        int     `yaml:"rows"`
	Field       string  `yaml:"field"`
	NonNull     int     `yaml:"non_null"`
	Min         float64 `yaml:"min"`
	Max         float64 `yaml:"max"`
	Sum         float64 `yaml:"sum"`
}

// ManifestOutput lists the files written.
type ManifestOutput struct {
	Render    string `yaml:"render"`
	Annotated string `yaml:"annotated"`
}

// NewManifest summarizes res.
func NewManifest(cfg *config.Config, res *Result, started time.Time) *Manifest {
	m := &Manifest{
		RunID:      res.RunID,
		StartedAt:  started.UTC(),
		FinishedAt: time.Now().UTC(),
		Inputs: ManifestInputs{
			Population: cfg.Input.PopulationPath,
			Boundary:   cfg.Input.BoundaryPath,
			CRS:        cfg.Input.TargetCRS,
			NameField:  cfg.Boundary.NameField,
		},
		Outputs: ManifestOutput{Render: res.RenderPath, Annotated: res.AnnotatedPath},
		Stages:  res.Stages,
	}
	if p := res.Prepared; p != nil {
		if p.Boundary != nil {
			m.Inputs.Names = p.Boundary.Names
		}
		m.Raster = ManifestRaster{
			WidthRatio:  p.Ratios.Width,
			HeightRatio: p.Ratios.Height,
			Cols:        p.Dims.Cols,
			Rows:        p.Dims.Rows,
			Field:       cfg.Raster.Field,
		}
		if p.Grid != nil {
			s := p.Grid.Stats()
			m.Raster.NonNull, m.Raster.Min, m.Raster.Max, m.Raster.Sum = s.Count, s.Min, s.Max, s.Sum
		}
	}
	return m
}

// WriteManifest writes m as YAML to path.
func WriteManifest(ctx context.Context, path string, m *Manifest) error {
	err := atomicfile.Write(ctx, path, func(w io.Writer) error {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(m); err != nil {
			return err
		}
		return enc.Close()
	})
	return eris.Wrap(err, "pipeline: write manifest")
}

// LastRun reads the manifest at path. An empty path or a missing file
// returns nil without error.
func LastRun(path string) (*Manifest, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: open manifest")
	}
	defer f.Close() //nolint:errcheck
	return readManifest(f)
}

// Describe is a one-line summary of the run: short id, finish time and
// the final image.
func (m *Manifest) Describe() string {
	id := m.RunID
	if len(id) > 8 {
		id = id[:8]
	}
	out := m.Outputs.Annotated
	if out == "" {
		out = m.Outputs.Render
	}
	return fmt.Sprintf("%s at %s, %s", id, m.FinishedAt.Format(time.DateTime), out)
}

func readManifest(r io.Reader) (*Manifest, error) {
	var m Manifest
	if err := yaml.NewDecoder(r).Decode(&m); err != nil {
		return nil, eris.Wrap(err, "pipeline: decode manifest")
	}
	return &m, nil
}
