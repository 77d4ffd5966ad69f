// Package fetch downloads input datasets and unpacks them next to the
// pipeline's data directory.
package fetch

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/hexrelief/internal/atomicfile"
)

// Options configures a single download.
type Options struct {
	// Ext selects the file to return from an archive, e.g. ".gpkg".
	// Empty accepts an archive holding exactly one file.
	Ext string

	// RateKBps caps download throughput. 0 disables throttling.
	RateKBps int

	// Retries is the number of attempts for transient failures.
	Retries int

	// Timeout bounds each attempt. Default: 10m.
	Timeout time.Duration

	// Backoff is the delay before the first retry. Default: 1s.
	Backoff time.Duration

	UserAgent string
	Client    *http.Client
}

func (o Options) client() *http.Client {
	if o.Client != nil {
		return o.Client
	}
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &http.Client{Timeout: timeout}
}

// Fetch downloads rawURL into destDir unless it is already there,
// unpacks .zip and .gz archives, and returns the path of the usable file.
func Fetch(ctx context.Context, rawURL, destDir string, opts Options) (string, error) {
	log := zap.L().With(
		zap.String("component", "fetch.download"),
		zap.String("url", rawURL),
	)

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", eris.Wrapf(err, "fetch: parse url %q", rawURL)
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return "", eris.Errorf("fetch: no file name in %q", rawURL)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", eris.Wrap(err, "fetch: create dest dir")
	}

	lower := strings.ToLower(name)
	archive := filepath.Join(destDir, name)

	switch {
	case strings.HasSuffix(lower, ".zip"):
		extractDir := filepath.Join(destDir, strings.TrimSuffix(name, filepath.Ext(name)))
		if p, err := findFile(extractDir, opts.Ext); err == nil {
			log.Debug("fetch: already extracted, skipping", zap.String("path", p))
			return p, nil
		}
		if err := ensure(ctx, rawURL, archive, opts, log); err != nil {
			return "", err
		}
		return extractZIP(archive, extractDir, opts.Ext)

	case strings.HasSuffix(lower, ".gz"):
		target := filepath.Join(destDir, strings.TrimSuffix(name, filepath.Ext(name)))
		if exists(target) {
			log.Debug("fetch: already decompressed, skipping", zap.String("path", target))
			return target, nil
		}
		if err := ensure(ctx, rawURL, archive, opts, log); err != nil {
			return "", err
		}
		if err := gunzip(ctx, archive, target); err != nil {
			return "", err
		}
		return target, nil

	default:
		if err := ensure(ctx, rawURL, archive, opts, log); err != nil {
			return "", err
		}
		return archive, nil
	}
}

// ensure downloads rawURL to dest unless a non-empty file is already there.
func ensure(ctx context.Context, rawURL, dest string, opts Options, log *zap.Logger) error {
	if exists(dest) {
		log.Debug("fetch: file exists, skipping download", zap.String("path", dest))
		return nil
	}

	log.Info("fetch: downloading", zap.String("dest", dest), zap.Int("rate_kbps", opts.RateKBps))
	start := time.Now()

	client := opts.client()
	var written int64
	err := Retry(ctx, RetryConfig{
		MaxAttempts:    opts.Retries,
		InitialBackoff: opts.Backoff,
		JitterFraction: 0.25,
		OnRetry:        retryLogger(rawURL),
	}, func(ctx context.Context) error {
		var err error
		written, err = download(ctx, client, rawURL, dest, opts)
		return err
	})
	if err != nil {
		return eris.Wrapf(err, "fetch: download %s", rawURL)
	}

	log.Info("fetch: download complete",
		zap.String("dest", dest),
		zap.Int64("bytes", written),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

func download(ctx context.Context, client *http.Client, rawURL, dest string, opts Options) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, eris.Wrap(err, "fetch: build request")
	}
	if opts.UserAgent != "" {
		req.Header.Set("User-Agent", opts.UserAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		statusErr := eris.Errorf("fetch: status %d from %s", resp.StatusCode, rawURL)
		if IsTransientStatus(resp.StatusCode) {
			return 0, &TransientError{Err: statusErr, StatusCode: resp.StatusCode}
		}
		return 0, statusErr
	}

	var body io.Reader = resp.Body
	if opts.RateKBps > 0 {
		body = newThrottledReader(ctx, body, opts.RateKBps)
	}

	var (
		n       int64
		copyErr error
	)
	err = atomicfile.Write(ctx, dest, func(w io.Writer) error {
		n, copyErr = io.Copy(w, body)
		return copyErr
	})
	if copyErr != nil && ctx.Err() == nil && IsTransient(copyErr) {
		return n, &TransientError{Err: copyErr}
	}
	return n, err
}

// throttledReader paces reads through a token bucket measured in bytes.
type throttledReader struct {
	ctx context.Context
	r   io.Reader
	lim *rate.Limiter
}

func newThrottledReader(ctx context.Context, r io.Reader, kbps int) *throttledReader {
	bps := kbps * 1024
	return &throttledReader{ctx: ctx, r: r, lim: rate.NewLimiter(rate.Limit(bps), bps)}
}

func (t *throttledReader) Read(p []byte) (int, error) {
	if b := t.lim.Burst(); len(p) > b {
		p = p[:b]
	}
	n, err := t.r.Read(p)
	if n > 0 {
		if werr := t.lim.WaitN(t.ctx, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}

func exists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir() && info.Size() > 0
}
