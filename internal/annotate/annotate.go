// Package annotate draws text layers onto a rendered image.
package annotate

import (
	"context"
	"image/color"
	"io"
	"strings"

	"github.com/fogleman/gg"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/hexrelief/internal/atomicfile"
)

// Layer is one piece of text anchored to the image.
type Layer struct {
	Text    string
	Gravity string
	OffsetX float64
	OffsetY float64
	Font    string
	Size    float64
	Weight  string
	Color   string // overrides Spec.Color
}

// Spec is the full overlay: a base color and layers drawn in order.
type Spec struct {
	Color  string
	Layers []Layer
}

// Anchor is a resolved draw position for gg.DrawStringAnchored.
type Anchor struct {
	X, Y   float64
	AX, AY float64
}

// Position resolves gravity against a w×h image. Offsets push the text
// inward from the anchored edges; for centered axes they shift it right
// and down.
func Position(gravity string, w, h int, offsetX, offsetY float64) (Anchor, error) {
	g := strings.ToLower(strings.TrimSpace(gravity))
	if g == "" {
		g = "northwest"
	}

	var a Anchor
	switch {
	case strings.HasSuffix(g, "west"):
		a.X, a.AX = offsetX, 0
	case strings.HasSuffix(g, "east"):
		a.X, a.AX = float64(w)-offsetX, 1
	default:
		a.X, a.AX = float64(w)/2+offsetX, 0.5
	}

	switch {
	case strings.HasPrefix(g, "north"):
		a.Y, a.AY = offsetY, 1
	case strings.HasPrefix(g, "south"):
		a.Y, a.AY = float64(h)-offsetY, 0
	default:
		a.Y, a.AY = float64(h)/2+offsetY, 0.5
	}

	switch g {
	case "northwest", "north", "northeast", "west", "center", "east", "southwest", "south", "southeast":
		return a, nil
	}
	return Anchor{}, eris.Errorf("annotate: unknown gravity %q", gravity)
}

// CheckFonts resolves every font and color in spec without touching any
// image.
func CheckFonts(spec Spec) error {
	if _, err := parseColor(spec.Color, color.Black); err != nil {
		return err
	}
	for i, l := range spec.Layers {
		if _, err := Face(l.Font, l.Weight, l.Size); err != nil {
			return eris.Wrapf(err, "annotate: layer %d", i)
		}
		if _, err := Position(l.Gravity, 1, 1, 0, 0); err != nil {
			return eris.Wrapf(err, "annotate: layer %d", i)
		}
		if _, err := parseColor(l.Color, color.Black); err != nil {
			return eris.Wrapf(err, "annotate: layer %d", i)
		}
	}
	return nil
}

// Annotate draws spec onto the image at src and writes the result to dst
// as a PNG. dst is replaced atomically.
func Annotate(ctx context.Context, src, dst string, spec Spec) error {
	log := zap.L().With(
		zap.String("component", "annotate.annotate"),
		zap.String("src", src),
		zap.String("dst", dst),
	)

	im, err := gg.LoadImage(src)
	if err != nil {
		return eris.Wrapf(err, "annotate: read %s", src)
	}
	dc := gg.NewContextForImage(im)
	w, h := dc.Width(), dc.Height()

	base, err := parseColor(spec.Color, color.Black)
	if err != nil {
		return err
	}

	for i, l := range spec.Layers {
		face, err := Face(l.Font, l.Weight, l.Size)
		if err != nil {
			return eris.Wrapf(err, "annotate: layer %d", i)
		}
		a, err := Position(l.Gravity, w, h, l.OffsetX, l.OffsetY)
		if err != nil {
			return eris.Wrapf(err, "annotate: layer %d", i)
		}
		c, err := parseColor(l.Color, base)
		if err != nil {
			return eris.Wrapf(err, "annotate: layer %d", i)
		}

		dc.SetFontFace(face)
		dc.SetColor(c)
		dc.DrawStringAnchored(l.Text, a.X, a.Y, a.AX, a.AY)
		log.Debug("layer drawn",
			zap.Int("layer", i),
			zap.String("gravity", l.Gravity),
			zap.Float64("x", a.X),
			zap.Float64("y", a.Y),
		)
	}

	err = atomicfile.Write(ctx, dst, func(out io.Writer) error {
		return dc.EncodePNG(out)
	})
	if err != nil {
		return eris.Wrap(err, "annotate: write output")
	}

	log.Info("image annotated", zap.Int("layers", len(spec.Layers)), zap.Int("width", w), zap.Int("height", h))
	return nil
}

func parseColor(hex string, fallback color.Color) (color.Color, error) {
	if strings.TrimSpace(hex) == "" {
		return fallback, nil
	}
	c, err := colorful.Hex(hex)
	if err != nil {
		return nil, eris.Wrapf(err, "annotate: color %q", hex)
	}
	return c, nil
}
