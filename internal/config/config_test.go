package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no hexrelief.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "EPSG:3857", cfg.Input.TargetCRS)
	assert.Equal(t, "NAME_1", cfg.Boundary.NameField)
	assert.Equal(t, 1000, cfg.Raster.Size)
	assert.Equal(t, "population", cfg.Raster.Field)
	assert.Equal(t, 256, cfg.Ramp.Colors)
	assert.InDelta(t, 3.5, cfg.Ramp.Bias, 0.001)
	assert.Len(t, cfg.Ramp.Palette, 5)
	assert.InDelta(t, 20.0, cfg.Relief.ZScale, 0.001)
	assert.InDelta(t, -20.0, cfg.Camera.Theta, 0.001)
	assert.InDelta(t, 45.0, cfg.Camera.Phi, 0.001)
	assert.InDelta(t, 0.8, cfg.Camera.Zoom, 0.001)
	assert.Equal(t, []float64{280, 100}, cfg.Render.LightDirections)
	assert.Equal(t, []string{"#f2e1d0", "#ffffff"}, cfg.Render.LightColors)
	assert.Equal(t, 300, cfg.Render.Samples)
	assert.Equal(t, "out/relief.png", cfg.Render.Path)
	assert.Equal(t, "out/relief_annotated.png", cfg.Annotate.Path)
	require.Len(t, cfg.Annotate.Labels, 3)
	assert.Equal(t, "northeast", cfg.Annotate.Labels[0].Gravity)
	assert.Equal(t, "bold", cfg.Annotate.Labels[0].Weight)
	assert.InDelta(t, 64.0, cfg.Annotate.Labels[0].Size, 0.001)
	assert.Equal(t, 3, cfg.Fetch.Retries)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
log:
  level: debug
  format: console
boundary:
  name_field: NAME_0
  names: [Portugal]
raster:
  size: 600
camera:
  theta: 10
annotate:
  labels:
    - text: Portugal
      gravity: south
      size: 40
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hexrelief.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "NAME_0", cfg.Boundary.NameField)
	assert.Equal(t, []string{"Portugal"}, cfg.Boundary.Names)
	assert.Equal(t, 600, cfg.Raster.Size)
	assert.InDelta(t, 10.0, cfg.Camera.Theta, 0.001)
	require.Len(t, cfg.Annotate.Labels, 1)
	assert.Equal(t, "Portugal", cfg.Annotate.Labels[0].Text)
	// Defaults still apply for unset values
	assert.InDelta(t, 45.0, cfg.Camera.Phi, 0.001)
	assert.Equal(t, 256, cfg.Ramp.Colors)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
raster:
  size: 600
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hexrelief.yaml"), []byte(yaml), 0644))

	t.Setenv("HEXRELIEF_RASTER_SIZE", "800")
	t.Setenv("HEXRELIEF_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 800, cfg.Raster.Size)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadMalformedYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hexrelief.yaml"), []byte("raster: [size"), 0644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
}

func TestInitLoggerBadLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "loud", Format: "json"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse log level")
}
