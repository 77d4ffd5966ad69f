package annotate

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/freetype/truetype"
	"github.com/rotisserie/eris"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomedium"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/goregular"
)

// ErrFontUnavailable is returned when a font family, weight or file cannot
// be resolved.
var ErrFontUnavailable = eris.New("annotate: font unavailable")

// Built-in families.
const (
	FamilyGo     = "Go"
	FamilyGoMono = "Go Mono"
)

var builtin = map[string]map[string][]byte{
	"go": {
		"regular": goregular.TTF,
		"medium":  gomedium.TTF,
		"bold":    gobold.TTF,
		"italic":  goitalic.TTF,
	},
	"go mono": {
		"regular": gomono.TTF,
		"bold":    gomonobold.TTF,
	},
}

// fontData returns the TrueType bytes for family and weight. A family
// ending in .ttf is read from disk and the weight ignored.
func fontData(family, weight string) ([]byte, error) {
	if strings.EqualFold(filepath.Ext(family), ".ttf") {
		data, err := os.ReadFile(family)
		if err != nil {
			return nil, eris.Wrapf(ErrFontUnavailable, "annotate: read %s: %v", family, err)
		}
		return data, nil
	}

	fam := strings.ToLower(strings.TrimSpace(family))
	if fam == "" {
		fam = "go"
	}
	weights, ok := builtin[fam]
	if !ok {
		return nil, eris.Wrapf(ErrFontUnavailable, "annotate: family %q", family)
	}
	w := strings.ToLower(strings.TrimSpace(weight))
	if w == "" {
		w = "regular"
	}
	data, ok := weights[w]
	if !ok {
		return nil, eris.Wrapf(ErrFontUnavailable, "annotate: %q has no %q weight", family, weight)
	}
	return data, nil
}

// Face loads a font face at size points (72 DPI, so points equal pixels).
func Face(family, weight string, size float64) (font.Face, error) {
	if size <= 0 {
		return nil, eris.Errorf("annotate: font size must be positive, got %g", size)
	}
	data, err := fontData(family, weight)
	if err != nil {
		return nil, err
	}
	f, err := truetype.Parse(data)
	if err != nil {
		return nil, eris.Wrapf(ErrFontUnavailable, "annotate: parse %s: %v", family, err)
	}
	return truetype.NewFace(f, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	}), nil
}
