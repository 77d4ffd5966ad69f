package relief

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/fogleman/pt/pt"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Viewer lifecycle errors.
var (
	ErrViewerOpen   = eris.New("relief: viewer already has an open mesh")
	ErrViewerClosed = eris.New("relief: viewer is not open")
)

// HighQuality configures a path-traced still.
type HighQuality struct {
	Path       string
	Lights     []Light
	Width      int
	Height     int
	Samples    int // samples per pixel
	Bounces    int
	Background string // hex sky color; empty = white
}

func (hq HighQuality) validate() error {
	if hq.Path == "" {
		return eris.New("relief: render path is empty")
	}
	if hq.Width < 1 || hq.Height < 1 {
		return eris.Errorf("relief: render size %dx%d", hq.Width, hq.Height)
	}
	if hq.Samples < 1 {
		return eris.Errorf("relief: samples must be positive, got %d", hq.Samples)
	}
	if hq.Bounces < 1 {
		return eris.Errorf("relief: bounces must be positive, got %d", hq.Bounces)
	}
	return nil
}

// Viewer owns one mesh at a time and renders it. A mesh must be closed
// before another is opened. Viewer is safe for concurrent use; renders
// are serialized.
type Viewer struct {
	mu     sync.Mutex
	mesh   *Mesh
	camera Camera
	log    *zap.Logger
}

// NewViewer returns a closed viewer.
func NewViewer() *Viewer {
	return &Viewer{
		camera: Camera{Phi: 45, Zoom: 1},
		log:    zap.L().With(zap.String("component", "relief.viewer")),
	}
}

// Open loads m into the viewer.
func (v *Viewer) Open(m *Mesh) error {
	if m == nil {
		return eris.New("relief: nil mesh")
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.mesh != nil {
		return ErrViewerOpen
	}
	v.mesh = m
	v.log.Debug("mesh opened",
		zap.Int("triangles", len(m.Triangles)),
		zap.Int("rows", m.Rows),
		zap.Int("cols", m.Cols),
		zap.Float64("max_height", m.MaxHeight),
	)
	return nil
}

// Close releases the open mesh.
func (v *Viewer) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.mesh == nil {
		return ErrViewerClosed
	}
	v.mesh = nil
	v.log.Debug("mesh closed")
	return nil
}

// IsOpen reports whether a mesh is loaded.
func (v *Viewer) IsOpen() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.mesh != nil
}

// SetCamera positions the camera for the next render.
func (v *Viewer) SetCamera(c Camera) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.mesh == nil {
		return ErrViewerClosed
	}
	v.camera = c
	return nil
}

// RenderHighQuality path-traces the open mesh and writes a PNG to hq.Path.
// The path is reserved with a placeholder first; the final image replaces
// it atomically. On failure nothing is left behind except a file that
// already existed.
func (v *Viewer) RenderHighQuality(ctx context.Context, hq HighQuality) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.mesh == nil {
		return ErrViewerClosed
	}
	if err := hq.validate(); err != nil {
		return err
	}

	scene, err := v.scene(hq)
	if err != nil {
		return err
	}
	camera := v.camera.lookAt(v.mesh)

	out, err := reserve(hq.Path)
	if err != nil {
		return err
	}

	log := v.log.With(
		zap.String("path", hq.Path),
		zap.Int("width", hq.Width),
		zap.Int("height", hq.Height),
		zap.Int("samples", hq.Samples),
	)
	log.Info("render started", zap.Int("lights", len(hq.Lights)))
	start := time.Now()

	img, err := trace(ctx, scene, &camera, hq)
	if err != nil {
		out.abort()
		return err
	}
	if err := out.commit(ctx, img); err != nil {
		return err
	}

	log.Info("render finished", zap.Duration("duration", time.Since(start)))
	return nil
}

func (v *Viewer) scene(hq HighQuality) (*pt.Scene, error) {
	scene := &pt.Scene{}
	scene.Color = pt.Color{R: 1, G: 1, B: 1}
	if hq.Background != "" {
		c, err := hexColor(hq.Background)
		if err != nil {
			return nil, err
		}
		scene.Color = c
	}

	scene.Add(pt.NewMesh(v.mesh.Triangles))
	if v.mesh.HasGround {
		ground := pt.NewPlane(pt.V(0, 0, v.mesh.Ground), pt.V(0, 0, 1), pt.DiffuseMaterial(pt.Color{R: 1, G: 1, B: 1}))
		scene.Add(ground)
	}
	for i, l := range hq.Lights {
		s, err := l.emitter(v.mesh)
		if err != nil {
			return nil, eris.Wrapf(err, "relief: light %d", i)
		}
		scene.Add(s)
	}
	return scene, nil
}

// trace runs the path tracer. pt has no cancellation hook, so a cancelled
// context returns immediately and abandons the render goroutine, which
// keeps every core busy until its last pass completes. Callers that
// cancel are expected to exit soon after, as the CLI does on a signal.
func trace(ctx context.Context, scene *pt.Scene, camera *pt.Camera, hq HighQuality) (image.Image, error) {
	sampler := pt.NewSampler(4, hq.Bounces)
	renderer := pt.NewRenderer(scene, camera, sampler, hq.Width, hq.Height)
	renderer.SamplesPerPixel = hq.Samples
	renderer.Verbose = false

	done := make(chan image.Image, 1)
	go func() {
		done <- renderer.Render()
	}()

	select {
	case img := <-done:
		return img, nil
	case <-ctx.Done():
		return nil, eris.Wrap(ctx.Err(), "relief: render cancelled")
	}
}
