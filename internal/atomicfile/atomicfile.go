// Package atomicfile writes files through a sibling temp file so readers
// never observe a partial write.
package atomicfile

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// Perm is the mode of every file Write produces.
const Perm os.FileMode = 0o644

// Write calls fn with a temp file in the directory of path and renames it
// over path once fn and the close succeed. The temp file is removed on
// every failure, including a context cancelled before the rename.
func Write(ctx context.Context, path string, fn func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return eris.Wrapf(err, "atomicfile: create temp for %s", path)
	}
	name := tmp.Name()
	defer os.Remove(name) //nolint:errcheck

	if err := fn(tmp); err != nil {
		_ = tmp.Close()
		return eris.Wrapf(err, "atomicfile: write %s", path)
	}
	if err := tmp.Chmod(Perm); err != nil {
		_ = tmp.Close()
		return eris.Wrapf(err, "atomicfile: chmod temp for %s", path)
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrapf(err, "atomicfile: close temp for %s", path)
	}
	if err := ctx.Err(); err != nil {
		return eris.Wrapf(err, "atomicfile: cancelled before replacing %s", path)
	}
	if err := os.Rename(name, path); err != nil {
		return eris.Wrapf(err, "atomicfile: rename into %s", path)
	}
	return nil
}

// Copy streams r into path atomically and returns the bytes written.
func Copy(ctx context.Context, path string, r io.Reader) (int64, error) {
	var n int64
	err := Write(ctx, path, func(w io.Writer) error {
		var err error
		n, err = io.Copy(w, r)
		return err
	})
	return n, err
}
