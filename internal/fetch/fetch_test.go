package fetch

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, body []byte, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func fastOpts() Options {
	return Options{Retries: 3, Backoff: time.Millisecond}
}

func TestFetch_PlainFileSkipsSecondDownload(t *testing.T) {
	var hits atomic.Int32
	srv := serve(t, []byte("hexagons"), &hits)
	dir := t.TempDir()

	p, err := Fetch(context.Background(), srv.URL+"/data/population.csv", dir, fastOpts())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "population.csv"), p)
	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "hexagons", string(data))

	p2, err := Fetch(context.Background(), srv.URL+"/data/population.csv", dir, fastOpts())
	require.NoError(t, err)
	assert.Equal(t, p, p2)
	assert.Equal(t, int32(1), hits.Load())
}

func TestFetch_ZipPicksExtension(t *testing.T) {
	var hits atomic.Int32
	srv := serve(t, zipBytes(t, map[string]string{
		"license.txt":      "cc-by",
		"gadm/adm1.gpkg":   "geopackage",
		"gadm/readme.html": "<p>",
	}), &hits)
	dir := t.TempDir()

	opts := fastOpts()
	opts.Ext = ".gpkg"
	p, err := Fetch(context.Background(), srv.URL+"/gadm41_PRT.zip", dir, opts)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "gadm41_PRT", "gadm", "adm1.gpkg"), p)
	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "geopackage", string(data))

	_, err = Fetch(context.Background(), srv.URL+"/gadm41_PRT.zip", dir, opts)
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestFetch_ZipMissingExtension(t *testing.T) {
	var hits atomic.Int32
	srv := serve(t, zipBytes(t, map[string]string{"a.txt": "a"}), &hits)

	opts := fastOpts()
	opts.Ext = ".shp"
	_, err := Fetch(context.Background(), srv.URL+"/bundle.zip", t.TempDir(), opts)
	require.Error(t, err)
}

func TestFetch_ZipSlip(t *testing.T) {
	var hits atomic.Int32
	srv := serve(t, zipBytes(t, map[string]string{"../evil.gpkg": "x"}), &hits)
	dir := t.TempDir()

	opts := fastOpts()
	opts.Ext = ".gpkg"
	_, err := Fetch(context.Background(), srv.URL+"/evil.zip", filepath.Join(dir, "data"), opts)
	require.Error(t, err)
	_, statErr := os.Stat(filepath.Join(dir, "data", "evil.gpkg"))
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
}

func TestFetch_Gzip(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(strings.Repeat("h3", 1000)))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	var hits atomic.Int32
	srv := serve(t, buf.Bytes(), &hits)
	dir := t.TempDir()

	p, err := Fetch(context.Background(), srv.URL+"/kontur_population_PT.gpkg.gz", dir, fastOpts())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "kontur_population_PT.gpkg"), p)
	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Len(t, data, 2000)

	_, err = Fetch(context.Background(), srv.URL+"/kontur_population_PT.gpkg.gz", dir, fastOpts())
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestFetch_RetriesTransientStatus(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	p, err := Fetch(context.Background(), srv.URL+"/f.csv", t.TempDir(), fastOpts())
	require.NoError(t, err)
	assert.Equal(t, int32(3), hits.Load())
	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(data))
}

func TestFetch_RetriesExhausted(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()
	dir := t.TempDir()

	opts := fastOpts()
	opts.Retries = 2
	_, err := Fetch(context.Background(), srv.URL+"/f.csv", dir, opts)
	require.Error(t, err)
	assert.Equal(t, int32(2), hits.Load())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFetch_NotFoundIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := Fetch(context.Background(), srv.URL+"/f.csv", t.TempDir(), fastOpts())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
	assert.Equal(t, int32(1), hits.Load())
}

func TestFetch_Throttled(t *testing.T) {
	var hits atomic.Int32
	srv := serve(t, bytes.Repeat([]byte{'x'}, 4096), &hits)

	opts := fastOpts()
	opts.RateKBps = 64
	p, err := Fetch(context.Background(), srv.URL+"/f.bin", t.TempDir(), opts)
	require.NoError(t, err)
	info, err := os.Stat(p)
	require.NoError(t, err)
	assert.Equal(t, int64(4096), info.Size())
}

func TestFetch_Cancelled(t *testing.T) {
	var hits atomic.Int32
	srv := serve(t, []byte("x"), &hits)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dir := t.TempDir()
	_, err := Fetch(ctx, srv.URL+"/f.csv", dir, fastOpts())
	require.Error(t, err)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFetch_NoFileName(t *testing.T) {
	_, err := Fetch(context.Background(), "http://example.invalid/", t.TempDir(), fastOpts())
	require.Error(t, err)
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.True(t, IsTransient(&TransientError{Err: errors.New("503")}))
	assert.True(t, IsTransient(errors.New("read tcp: connection reset by peer")))
	assert.False(t, IsTransient(errors.New("permission denied")))

	assert.True(t, IsTransientStatus(http.StatusBadGateway))
	assert.False(t, IsTransientStatus(http.StatusForbidden))
}

func TestBackoff(t *testing.T) {
	cfg := RetryConfig{InitialBackoff: 100 * time.Millisecond, MaxBackoff: time.Second}.withDefaults()
	cfg.JitterFraction = 0
	assert.Equal(t, 100*time.Millisecond, backoff(0, cfg))
	assert.Equal(t, 400*time.Millisecond, backoff(2, cfg))
	assert.Equal(t, time.Second, backoff(10, cfg))
}
