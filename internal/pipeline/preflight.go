package pipeline

import (
	"os"
	"path/filepath"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/rotisserie/eris"

	"github.com/sells-group/hexrelief/internal/annotate"
	"github.com/sells-group/hexrelief/internal/config"
	"github.com/sells-group/hexrelief/internal/ramp"
)

// ErrOutputDir is returned when an output file's directory is missing.
var ErrOutputDir = eris.New("pipeline: output directory does not exist")

// Preflight validates everything the render and annotate stages need
// before any data is read.
func Preflight(cfg *config.Config) error {
	outputs := []string{cfg.Render.Path, cfg.Annotate.Path}
	if cfg.Output.Manifest != "" {
		outputs = append(outputs, cfg.Output.Manifest)
	}
	for _, p := range outputs {
		if err := checkDir(p); err != nil {
			return err
		}
	}
	if cfg.Render.Path == cfg.Annotate.Path {
		return eris.Errorf("pipeline: render and annotate outputs are both %s", cfg.Render.Path)
	}

	if cfg.Raster.Size < 1 {
		return eris.Errorf("pipeline: raster size must be positive, got %d", cfg.Raster.Size)
	}
	if _, err := ramp.Generate(cfg.Ramp.Palette, cfg.Ramp.Colors, cfg.Ramp.Bias); err != nil {
		return err
	}
	if _, err := Lights(cfg); err != nil {
		return err
	}
	for i, c := range cfg.Render.LightColors {
		if _, err := colorful.Hex(c); err != nil {
			return eris.Wrapf(err, "pipeline: light %d color %q", i, c)
		}
	}
	if err := annotate.CheckFonts(AnnotationSpec(cfg)); err != nil {
		return err
	}
	return nil
}

func checkDir(path string) error {
	if path == "" {
		return eris.New("pipeline: empty output path")
	}
	dir := filepath.Dir(path)
	info, err := os.Stat(dir)
	if err != nil {
		return eris.Wrapf(ErrOutputDir, "pipeline: %s: %v", dir, err)
	}
	if !info.IsDir() {
		return eris.Wrapf(ErrOutputDir, "pipeline: %s is not a directory", dir)
	}
	return nil
}
