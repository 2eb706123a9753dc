package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheResolve_DownloadsOnce(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		_, _ = w.Write([]byte("archive bytes"))
	}))
	defer srv.Close()

	dir := filepath.Join(t.TempDir(), "cache")
	c := NewCache(dir, newTestFetcher(), nil)

	p, err := c.Resolve(context.Background(), srv.URL+"/dump/cities15000.zip")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "cities15000.zip"), p)
	assert.Equal(t, 1, calls)

	// Second resolve reuses the cached copy.
	p2, err := c.Resolve(context.Background(), srv.URL+"/dump/cities15000.zip")
	require.NoError(t, err)
	assert.Equal(t, p, p2)
	assert.Equal(t, 1, calls)

	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "archive bytes", string(data))
}

func TestCacheResolve_FailedDownloadLeavesNoFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	dir := t.TempDir()
	c := NewCache(dir, newTestFetcher(), nil)

	_, err := c.Resolve(context.Background(), srv.URL+"/cities.zip")
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCacheResolve_LocalPaths(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, "places.txt")
	require.NoError(t, writeTestFile(local, "1\tA"))

	c := NewCache(t.TempDir(), nil, nil)

	p, err := c.Resolve(context.Background(), local)
	require.NoError(t, err)
	assert.Equal(t, local, p)

	p, err = c.Resolve(context.Background(), "file://"+local)
	require.NoError(t, err)
	assert.Equal(t, local, p)

	_, err = c.Resolve(context.Background(), filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)

	_, err = c.Resolve(context.Background(), dir)
	assert.Error(t, err)
}

func TestCacheResolve_UnsupportedScheme(t *testing.T) {
	c := NewCache(t.TempDir(), nil, nil)
	_, err := c.Resolve(context.Background(), "s3://bucket/cities.zip")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported scheme")

	_, err = c.Resolve(context.Background(), "ftp://example.com/cities.zip")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no fetcher configured")
}
