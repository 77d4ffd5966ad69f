package pipeline

import (
	"context"
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/hexrelief/internal/annotate"
	"github.com/sells-group/hexrelief/internal/boundary"
	"github.com/sells-group/hexrelief/internal/config"
	"github.com/sells-group/hexrelief/internal/geodata/geodatatest"
	"github.com/sells-group/hexrelief/internal/ramp"
)

// testConfig writes a hexagon population grid and two square regions
// covering it, and returns a config small enough to render quickly.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	pop := filepath.Join(dir, "population.geojson")
	geodatatest.WriteGeoJSON(t, pop, geodatatest.HexGrid(10, 6, 0, 0, 0.1, "population", 5))
	admin := filepath.Join(dir, "regions.geojson")
	geodatatest.WriteGeoJSON(t, admin, geodatatest.Regions("NAME_1", 0, 0, 1, "Alpha", "Beta"))

	return &config.Config{
		Input:    config.InputConfig{PopulationPath: pop, BoundaryPath: admin},
		Boundary: config.BoundaryConfig{NameField: "NAME_1", Names: []string{"alpha", "Beta"}},
		Raster:   config.RasterConfig{Size: 20, Field: "population"},
		Ramp:     config.RampConfig{Palette: []string{"#0b1e3f", "#fef4e8"}, Bias: 1, Colors: 16},
		Relief:   config.ReliefConfig{ZScale: 2, SunAzimuth: 315, SunAltitude: 45, ShadeStrength: 0.3},
		Camera:   config.CameraConfig{Theta: -20, Phi: 45, Zoom: 1},
		Render: config.RenderConfig{
			Path:             filepath.Join(dir, "relief.png"),
			LightDirections:  []float64{280},
			LightAltitudes:   []float64{30},
			LightColors:      []string{"#ffffff"},
			LightIntensities: []float64{100},
			Width:            8,
			Height:           6,
			Samples:          1,
			Bounces:          1,
		},
		Annotate: config.AnnotateConfig{
			Path:   filepath.Join(dir, "annotated.png"),
			Color:  "#2a4d69",
			Labels: []config.LabelConfig{{Text: "A", Gravity: "northeast", Font: "Go", Size: 4, Weight: "bold"}},
		},
	}
}

func stageNames(stages []StageResult) []string {
	out := make([]string, len(stages))
	for i, s := range stages {
		out[i] = s.Name
	}
	return out
}

func TestPrepare_GeoJSON(t *testing.T) {
	cfg := testConfig(t)

	p, err := Prepare(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, []string{"Alpha", "Beta"}, p.Boundary.Names)
	assert.InDelta(t, 1.0, p.Ratios.Width, 1e-9)
	assert.InDelta(t, 0.5, p.Ratios.Height, 1e-9)
	assert.Equal(t, 20, p.Dims.Cols)
	assert.Equal(t, 10, p.Dims.Rows)
	assert.Equal(t, 20, p.Grid.Cols)
	assert.Equal(t, 10, p.Grid.Rows)
	assert.Len(t, p.Colors, 16)

	s := p.Grid.Stats()
	assert.Positive(t, s.Count)
	assert.InDelta(t, 5.0, s.Max, 1e-9)
	assert.Equal(t, []string{StageLoad, StageBoundary, StageAspect, StageRasterize}, stageNames(p.Stages))
}

func TestPrepare_GeoPackage(t *testing.T) {
	cfg := testConfig(t)
	dir := t.TempDir()

	pop := filepath.Join(dir, "population.gpkg")
	geodatatest.WriteGeoPackage(t, pop, "population", 4326, geodatatest.HexGrid(10, 6, 0, 0, 0.1, "population", 5))
	admin := filepath.Join(dir, "regions.gpkg")
	geodatatest.WriteGeoPackage(t, admin, "adm1", 4326, geodatatest.Regions("NAME_1", 0, 0, 1, "Alpha", "Beta"))
	cfg.Input.PopulationPath = pop
	cfg.Input.BoundaryPath = admin

	p, err := Prepare(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 20, p.Dims.Cols)
	assert.Equal(t, 10, p.Dims.Rows)
	assert.Positive(t, p.Grid.Stats().Count)
}

func TestPrepare_EmptyFilter(t *testing.T) {
	cfg := testConfig(t)
	cfg.Boundary.Names = []string{"Gamma"}

	_, err := Prepare(context.Background(), cfg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, boundary.ErrEmptyBoundary))
}

func TestPrepare_Clip(t *testing.T) {
	cfg := testConfig(t)
	cfg.Boundary.Names = []string{"Alpha"}

	full, err := Prepare(context.Background(), cfg)
	require.NoError(t, err)

	cfg.Raster.Clip = true
	clipped, err := Prepare(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, full.Dims, clipped.Dims)
	assert.Less(t, clipped.Grid.Stats().Count, full.Grid.Stats().Count)
}

func TestPrepare_MissingInput(t *testing.T) {
	cfg := testConfig(t)
	cfg.Input.PopulationPath = filepath.Join(t.TempDir(), "absent.geojson")

	_, err := Prepare(context.Background(), cfg)
	require.Error(t, err)
}

func TestPreflight(t *testing.T) {
	require.NoError(t, Preflight(testConfig(t)))

	t.Run("missing output dir", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Render.Path = filepath.Join(t.TempDir(), "nope", "relief.png")
		assert.True(t, errors.Is(Preflight(cfg), ErrOutputDir))
	})

	t.Run("missing manifest dir", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Output.Manifest = filepath.Join(t.TempDir(), "nope", "run.yaml")
		assert.True(t, errors.Is(Preflight(cfg), ErrOutputDir))
	})

	t.Run("same output twice", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Annotate.Path = cfg.Render.Path
		require.Error(t, Preflight(cfg))
	})

	t.Run("unknown font", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Annotate.Labels[0].Font = "Comic Sans"
		assert.True(t, errors.Is(Preflight(cfg), annotate.ErrFontUnavailable))
	})

	t.Run("bad palette", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Ramp.Palette = []string{"#0b1e3f", "teal-ish"}
		assert.True(t, errors.Is(Preflight(cfg), ramp.ErrInvalidRamp))
	})

	t.Run("light lengths differ", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Render.LightAltitudes = []float64{30, 60}
		require.Error(t, Preflight(cfg))
	})

	t.Run("bad light color", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Render.LightColors = []string{"warm"}
		require.Error(t, Preflight(cfg))
	})

	t.Run("zero size", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Raster.Size = 0
		require.Error(t, Preflight(cfg))
	})
}

func TestRun_PreflightBeforeLoad(t *testing.T) {
	cfg := testConfig(t)
	cfg.Input.PopulationPath = filepath.Join(t.TempDir(), "absent.geojson")
	cfg.Annotate.Labels[0].Weight = "black"

	_, err := Run(context.Background(), cfg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, annotate.ErrFontUnavailable))
}

func TestRun_WritesOutputs(t *testing.T) {
	cfg := testConfig(t)
	cfg.Output.Manifest = filepath.Join(filepath.Dir(cfg.Render.Path), "run.yaml")

	res, err := Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, cfg.Output.Manifest, res.ManifestPath)
	assert.Equal(t,
		[]string{StageLoad, StageBoundary, StageAspect, StageRasterize, StageRender, StageAnnotate},
		stageNames(res.Stages))

	for _, path := range []string{cfg.Render.Path, cfg.Annotate.Path} {
		f, err := os.Open(path)
		require.NoError(t, err)
		img, err := png.Decode(f)
		require.NoError(t, f.Close())
		require.NoError(t, err, path)
		assert.Equal(t, 8, img.Bounds().Dx())
		assert.Equal(t, 6, img.Bounds().Dy())
	}

	m, err := LastRun(cfg.Output.Manifest)
	require.NoError(t, err)
	require.NotNil(t, m)

	assert.Equal(t, res.RunID, m.RunID)
	assert.Equal(t, []string{"Alpha", "Beta"}, m.Inputs.Names)
	assert.Equal(t, 20, m.Raster.Cols)
	assert.Equal(t, 10, m.Raster.Rows)
	assert.Equal(t, "population", m.Raster.Field)
	assert.Positive(t, m.Raster.NonNull)
	assert.Len(t, m.Stages, 6)
	assert.Equal(t, cfg.Annotate.Path, m.Outputs.Annotated)
}

func TestRun_Cancelled(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, cfg)
	require.Error(t, err)

	_, statErr := os.Stat(cfg.Annotate.Path)
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
}

func TestLastRun(t *testing.T) {
	dir := t.TempDir()

	m, err := LastRun("")
	require.NoError(t, err)
	assert.Nil(t, m)

	m, err = LastRun(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	assert.Nil(t, m)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("run_id: [unterminated"), 0o644))
	_, err = LastRun(bad)
	require.Error(t, err)

	path := filepath.Join(dir, "run.yaml")
	finished := time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)
	require.NoError(t, WriteManifest(context.Background(), path, &Manifest{
		RunID:      "3f2a9c1e-0000-4000-8000-000000000000",
		FinishedAt: finished,
		Outputs:    ManifestOutput{Render: "out/relief.png"},
	}))

	m, err = LastRun(path)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.True(t, finished.Equal(m.FinishedAt))
	assert.Equal(t, "3f2a9c1e at 2026-10-17 09:30:00, out/relief.png", m.Describe())
}
