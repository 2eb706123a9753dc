package fetcher

import (
	"context"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Cache resolves source locations to local files. Remote URLs are downloaded
// into Dir once and reused on later runs; local paths are used in place.
type Cache struct {
	Dir  string
	HTTP Fetcher
	FTP  Fetcher
}

// NewCache creates a Cache that stores downloads under dir.
func NewCache(dir string, httpFetcher, ftpFetcher Fetcher) *Cache {
	return &Cache{Dir: dir, HTTP: httpFetcher, FTP: ftpFetcher}
}

// Resolve returns a local path holding the content at location.
// Supported forms: http(s)://, ftp://, file:// and bare filesystem paths.
func (c *Cache) Resolve(ctx context.Context, location string) (string, error) {
	u, err := url.Parse(location)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// Bare path (a one-letter scheme is a Windows drive letter).
		return statLocal(location)
	}

	var f Fetcher
	switch u.Scheme {
	case "file":
		return statLocal(u.Path)
	case "http", "https":
		f = c.HTTP
	case "ftp":
		f = c.FTP
	default:
		return "", eris.Errorf("fetcher: unsupported scheme %q in %s", u.Scheme, location)
	}
	if f == nil {
		return "", eris.Errorf("fetcher: no fetcher configured for %s", u.Scheme)
	}

	name := path.Base(u.Path)
	if name == "" || name == "/" || name == "." {
		return "", eris.Errorf("fetcher: cannot derive file name from %s", location)
	}
	dest := filepath.Join(c.Dir, name)

	log := zap.L().With(
		zap.String("component", "fetcher.cache"),
		zap.String("url", location),
		zap.String("path", dest),
	)

	if info, err := os.Stat(dest); err == nil && info.Size() > 0 {
		log.Debug("cached copy found, skipping download")
		return dest, nil
	}

	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return "", eris.Wrap(err, "fetcher: create cache dir")
	}

	// Download next to the destination so the rename stays on one filesystem.
	part := dest + ".part"
	log.Info("downloading source")
	n, err := f.DownloadToFile(ctx, location, part)
	if err != nil {
		_ = os.Remove(part)
		return "", eris.Wrapf(err, "fetcher: download %s", location)
	}
	if err := os.Rename(part, dest); err != nil {
		_ = os.Remove(part)
		return "", eris.Wrap(err, "fetcher: finalize download")
	}

	log.Info("download complete", zap.Int64("bytes", n))
	return dest, nil
}

func statLocal(p string) (string, error) {
	info, err := os.Stat(p)
	if err != nil {
		return "", eris.Wrapf(err, "fetcher: stat %s", p)
	}
	if info.IsDir() {
		return "", eris.Errorf("fetcher: %s is a directory", p)
	}
	return p, nil
}
