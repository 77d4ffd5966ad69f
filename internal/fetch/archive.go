package fetch

import (
	"archive/zip"
	"compress/gzip"
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/hexrelief/internal/atomicfile"
)

// extractZIP unpacks every file of zipPath into destDir and returns the
// one matching ext.
func extractZIP(zipPath, destDir, ext string) (string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", eris.Wrap(err, "fetch: open zip")
	}
	defer r.Close() //nolint:errcheck

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", eris.Wrap(err, "fetch: create extract dir")
	}
	for _, f := range r.File {
		if err := extractEntry(f, destDir); err != nil {
			return "", err
		}
	}
	return findFile(destDir, ext)
}

func extractEntry(f *zip.File, destDir string) error {
	destPath := filepath.Join(destDir, f.Name)
	if !strings.HasPrefix(filepath.Clean(destPath), filepath.Clean(destDir)+string(os.PathSeparator)) {
		return eris.Errorf("fetch: illegal path %q in zip", f.Name)
	}
	if f.FileInfo().IsDir() {
		return eris.Wrap(os.MkdirAll(destPath, 0o755), "fetch: create directory")
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return eris.Wrap(err, "fetch: create parent directory")
	}

	rc, err := f.Open()
	if err != nil {
		return eris.Wrapf(err, "fetch: open zip entry %s", f.Name)
	}
	defer rc.Close() //nolint:errcheck

	out, err := os.Create(destPath)
	if err != nil {
		return eris.Wrapf(err, "fetch: create %s", destPath)
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return eris.Wrapf(err, "fetch: write %s", destPath)
	}
	return eris.Wrapf(out.Close(), "fetch: close %s", destPath)
}

// findFile returns the first file under dir, in lexical order, whose
// extension matches ext. An empty ext requires exactly one file.
func findFile(dir, ext string) (string, error) {
	var matches []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if ext == "" || strings.EqualFold(filepath.Ext(p), ext) {
			matches = append(matches, p)
		}
		return nil
	})
	if err != nil {
		return "", eris.Wrapf(err, "fetch: scan %s", dir)
	}
	sort.Strings(matches)

	switch {
	case ext == "" && len(matches) != 1:
		return "", eris.Errorf("fetch: expected exactly 1 file in %s, got %d", dir, len(matches))
	case len(matches) == 0:
		return "", eris.Errorf("fetch: no %s file in %s", ext, dir)
	}
	return matches[0], nil
}

// gunzip decompresses src into dst atomically.
func gunzip(ctx context.Context, src, dst string) error {
	f, err := os.Open(src)
	if err != nil {
		return eris.Wrap(err, "fetch: open gzip")
	}
	defer f.Close() //nolint:errcheck

	zr, err := gzip.NewReader(f)
	if err != nil {
		return eris.Wrapf(err, "fetch: read gzip header %s", src)
	}
	defer zr.Close() //nolint:errcheck

	if _, err := atomicfile.Copy(ctx, dst, zr); err != nil {
		return eris.Wrapf(err, "fetch: decompress %s", src)
	}
	return nil
}
