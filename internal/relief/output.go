package relief

import (
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"os"

	"github.com/rotisserie/eris"

	"github.com/sells-group/hexrelief/internal/atomicfile"
)

// pending is an output path reserved for a render.
type pending struct {
	path        string
	placeholder bool // we created the file at path
}

// reserve claims path with a 1×1 transparent PNG when nothing is there yet.
func reserve(path string) (*pending, error) {
	p := &pending{path: path}
	if _, err := os.Stat(path); err == nil {
		return p, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, eris.Wrapf(err, "relief: stat %s", path)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, atomicfile.Perm)
	if err != nil {
		return nil, eris.Wrapf(err, "relief: reserve %s", path)
	}
	p.placeholder = true
	if err := png.Encode(f, image.NewNRGBA(image.Rect(0, 0, 1, 1))); err != nil {
		f.Close() //nolint:errcheck
		p.abort()
		return nil, eris.Wrapf(err, "relief: write placeholder %s", path)
	}
	if err := f.Close(); err != nil {
		p.abort()
		return nil, eris.Wrapf(err, "relief: close placeholder %s", path)
	}
	return p, nil
}

// abort removes the placeholder if this render created it.
func (p *pending) abort() {
	if p.placeholder {
		os.Remove(p.path) //nolint:errcheck
	}
}

// commit encodes img next to the target and renames it into place.
func (p *pending) commit(ctx context.Context, img image.Image) error {
	err := atomicfile.Write(ctx, p.path, func(w io.Writer) error {
		return png.Encode(w, img)
	})
	if err != nil {
		p.abort()
		return eris.Wrap(err, "relief: write render")
	}
	return nil
}
