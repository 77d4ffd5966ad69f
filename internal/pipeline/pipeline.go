// Package pipeline runs the relief stages in order:
// load, boundary, aspect, rasterize, render, annotate.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/hexrelief/internal/annotate"
	"github.com/sells-group/hexrelief/internal/aspect"
	"github.com/sells-group/hexrelief/internal/boundary"
	"github.com/sells-group/hexrelief/internal/config"
	"github.com/sells-group/hexrelief/internal/geodata"
	"github.com/sells-group/hexrelief/internal/ramp"
	"github.com/sells-group/hexrelief/internal/raster"
	"github.com/sells-group/hexrelief/internal/relief"
)

// Stage names, in execution order.
const (
	StageLoad      = "load"
	StageBoundary  = "boundary"
	StageAspect    = "aspect"
	StageRasterize = "rasterize"
	StageRender    = "render"
	StageAnnotate  = "annotate"
)

// StageResult records one completed stage.
type StageResult struct {
	Name       string `yaml:"name"`
	DurationMS int64  `yaml:"duration_ms"`
}

// Prepared is the output of the geo stages, ready to shade.
type Prepared struct {
	Population *geodata.Collection
	Boundary   *boundary.Boundary
	Extent     aspect.BBox
	Ratios     aspect.Ratios
	Dims       aspect.Dims
	Grid       *raster.Grid
	Colors     []colorful.Color
	Stages     []StageResult
}

// Result is a finished run.
type Result struct {
	RunID         string
	Prepared      *Prepared
	RenderPath    string
	AnnotatedPath string
	ManifestPath  string
	Stages        []StageResult
}

// tracker times stages and stops at the first failure.
type tracker struct {
	log    *zap.Logger
	stages []StageResult
}

func (t *tracker) stage(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	d := time.Since(start)
	if err != nil {
		t.log.Error("pipeline: stage failed",
			zap.String("stage", name),
			zap.Duration("duration", d),
			zap.Error(err),
		)
		return eris.Wrapf(err, "pipeline: %s", name)
	}
	t.stages = append(t.stages, StageResult{Name: name, DurationMS: d.Milliseconds()})
	t.log.Info("pipeline: stage complete",
		zap.String("stage", name),
		zap.Duration("duration", d),
	)
	return nil
}

// Prepare runs load, boundary, aspect and rasterize.
func Prepare(ctx context.Context, cfg *config.Config) (*Prepared, error) {
	colors, err := ramp.Generate(cfg.Ramp.Palette, cfg.Ramp.Colors, cfg.Ramp.Bias)
	if err != nil {
		return nil, err
	}
	t := &tracker{log: zap.L().With(zap.String("component", "pipeline.prepare"))}
	p, err := prepare(ctx, cfg, t)
	if err != nil {
		return nil, err
	}
	p.Colors = colors
	p.Stages = t.stages
	return p, nil
}

func prepare(ctx context.Context, cfg *config.Config, t *tracker) (*Prepared, error) {
	p := &Prepared{}
	var admin *geodata.Collection

	err := t.stage(StageLoad, func() error {
		var err error
		p.Population, err = geodata.Load(ctx, cfg.Input.PopulationPath, geodata.LoadOptions{
			Layer:     cfg.Input.PopulationLayer,
			Fields:    []string{cfg.Raster.Field},
			SourceCRS: cfg.Input.PopulationCRS,
			TargetCRS: cfg.Input.TargetCRS,
		})
		if err != nil {
			return err
		}
		admin, err = geodata.Load(ctx, cfg.Input.BoundaryPath, geodata.LoadOptions{
			Layer:     cfg.Input.BoundaryLayer,
			Fields:    []string{cfg.Boundary.NameField},
			SourceCRS: cfg.Input.BoundaryCRS,
			TargetCRS: cfg.Input.TargetCRS,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	err = t.stage(StageBoundary, func() error {
		var err error
		p.Boundary, err = boundary.Build(admin, cfg.Boundary.NameField, cfg.Boundary.Names)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = t.stage(StageAspect, func() error {
		var err error
		if p.Extent, err = aspect.BoundsOf(p.Boundary.Geometry); err != nil {
			return err
		}
		if p.Ratios, err = aspect.Compute(p.Extent); err != nil {
			return err
		}
		p.Dims = aspect.Dimensions(cfg.Raster.Size, p.Ratios)
		if !p.Dims.Valid() {
			return eris.Wrapf(raster.ErrInvalidDims, "pipeline: size %d gives %dx%d",
				cfg.Raster.Size, p.Dims.Cols, p.Dims.Rows)
		}
		t.log.Debug("pipeline: raster sized",
			zap.Float64("width_ratio", p.Ratios.Width),
			zap.Float64("height_ratio", p.Ratios.Height),
			zap.Int("cols", p.Dims.Cols),
			zap.Int("rows", p.Dims.Rows),
		)
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = t.stage(StageRasterize, func() error {
		var err error
		p.Grid, err = raster.Rasterize(ctx, p.Population, cfg.Raster.Field, p.Dims)
		if err != nil {
			return err
		}
		if cfg.Raster.Clip {
			p.Grid.Clip(p.Boundary.Geometry)
		}
		if p.Grid.Stats().Count == 0 {
			return eris.New("pipeline: raster has no populated cells")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Run executes every stage. Preflight checks run first so a bad font or
// output directory fails before any expensive work.
func Run(ctx context.Context, cfg *config.Config) (*Result, error) {
	runID := uuid.NewString()
	log := zap.L().With(
		zap.String("component", "pipeline.run"),
		zap.String("run_id", runID),
	)
	started := time.Now()

	if err := Preflight(cfg); err != nil {
		return nil, err
	}
	colors, err := ramp.Generate(cfg.Ramp.Palette, cfg.Ramp.Colors, cfg.Ramp.Bias)
	if err != nil {
		return nil, err
	}
	lights, err := Lights(cfg)
	if err != nil {
		return nil, err
	}

	log.Info("pipeline: starting",
		zap.String("population", cfg.Input.PopulationPath),
		zap.String("boundary", cfg.Input.BoundaryPath),
		zap.Strings("names", cfg.Boundary.Names),
	)

	t := &tracker{log: log}
	p, err := prepare(ctx, cfg, t)
	if err != nil {
		return nil, err
	}
	p.Colors = colors

	err = t.stage(StageRender, func() error {
		return render(ctx, cfg, p, lights)
	})
	if err != nil {
		return nil, err
	}

	err = t.stage(StageAnnotate, func() error {
		return annotate.Annotate(ctx, cfg.Render.Path, cfg.Annotate.Path, AnnotationSpec(cfg))
	})
	if err != nil {
		return nil, err
	}
	p.Stages = t.stages

	res := &Result{
		RunID:         runID,
		Prepared:      p,
		RenderPath:    cfg.Render.Path,
		AnnotatedPath: cfg.Annotate.Path,
		Stages:        t.stages,
	}

	if cfg.Output.Manifest != "" {
		if err := WriteManifest(ctx, cfg.Output.Manifest, NewManifest(cfg, res, started)); err != nil {
			return nil, err
		}
		res.ManifestPath = cfg.Output.Manifest
	}

	log.Info("pipeline: complete",
		zap.Duration("duration", time.Since(started)),
		zap.String("output", cfg.Annotate.Path),
	)
	return res, nil
}

func render(ctx context.Context, cfg *config.Config, p *Prepared, lights []relief.Light) error {
	hm := p.Grid.Matrix()
	texture := relief.Shade(hm, p.Colors, relief.Sun{
		Azimuth:  cfg.Relief.SunAzimuth,
		Altitude: cfg.Relief.SunAltitude,
		Strength: cfg.Relief.ShadeStrength,
	})
	mesh, err := relief.BuildMesh(hm, texture, relief.MeshOptions{
		ZScale:      cfg.Relief.ZScale,
		Solid:       cfg.Relief.Solid,
		ShadowDepth: cfg.Relief.ShadowDepth,
	})
	if err != nil {
		return err
	}

	v := relief.NewViewer()
	if err := v.Open(mesh); err != nil {
		return err
	}
	defer v.Close() //nolint:errcheck

	if err := v.SetCamera(relief.Camera{
		Theta: cfg.Camera.Theta,
		Phi:   cfg.Camera.Phi,
		Zoom:  cfg.Camera.Zoom,
		FOV:   cfg.Camera.FOV,
	}); err != nil {
		return err
	}

	return v.RenderHighQuality(ctx, relief.HighQuality{
		Path:    cfg.Render.Path,
		Lights:  lights,
		Width:   cfg.Render.Width,
		Height:  cfg.Render.Height,
		Samples: cfg.Render.Samples,
		Bounces: cfg.Render.Bounces,
	})
}

// Lights zips the per-light render settings.
func Lights(cfg *config.Config) ([]relief.Light, error) {
	return relief.Lights(cfg.Render.LightDirections, cfg.Render.LightAltitudes,
		cfg.Render.LightColors, cfg.Render.LightIntensities)
}

// AnnotationSpec converts the annotate config section.
func AnnotationSpec(cfg *config.Config) annotate.Spec {
	spec := annotate.Spec{Color: cfg.Annotate.Color}
	for _, l := range cfg.Annotate.Labels {
		spec.Layers = append(spec.Layers, annotate.Layer{
			Text:    l.Text,
			Gravity: l.Gravity,
			OffsetX: l.OffsetX,
			OffsetY: l.OffsetY,
			Font:    l.Font,
			Size:    l.Size,
			Weight:  l.Weight,
			Color:   l.Color,
		})
	}
	return spec
}
