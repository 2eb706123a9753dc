package fetcher

import (
	"context"
	"errors"
	"io"
	"net"
	"net/textproto"
	"net/url"
	"os"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ashkite/cityseed/internal/resilience"
)

// FTPOptions configures the FTP fetcher.
type FTPOptions struct {
	Timeout  time.Duration
	User     string // default "anonymous"
	Password string
	Retry    resilience.Policy
}

// FTPFetcher downloads dumps from FTP mirrors. Transfers are checked against
// the size the server reports, so a cut-off archive never reaches the cache.
type FTPFetcher struct {
	opts FTPOptions
}

// errShortTransfer marks a transfer that ended before the advertised size.
var errShortTransfer = errors.New("ftp: short transfer")

// NewFTPFetcher creates a new FTPFetcher with the given options.
func NewFTPFetcher(opts FTPOptions) *FTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.User == "" {
		opts.User = "anonymous"
		if opts.Password == "" {
			opts.Password = "anonymous@"
		}
	}
	if opts.Retry.Attempts == 0 {
		opts.Retry = resilience.DefaultPolicy()
	}
	opts.Retry.Retryable = isTransientFTP
	return &FTPFetcher{opts: opts}
}

// isTransientFTP treats 4xx replies (transient negative completion) and short
// transfers as retryable, on top of the usual network failures.
func isTransientFTP(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, errShortTransfer) {
		return true
	}
	var pe *textproto.Error
	if errors.As(err, &pe) {
		return pe.Code >= 400 && pe.Code < 500
	}
	return resilience.IsTransient(err)
}

// parseFTPURL extracts host (with port) and path from an FTP URL.
func parseFTPURL(rawURL string) (host string, path string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", eris.Wrap(err, "parse ftp url")
	}
	if u.Scheme != "ftp" {
		return "", "", eris.Errorf("expected ftp scheme, got %q", u.Scheme)
	}

	host = u.Host
	if _, _, splitErr := net.SplitHostPort(host); splitErr != nil {
		host = net.JoinHostPort(host, "21")
	}

	path = u.Path
	if path == "" || path == "/" {
		return "", "", eris.New("empty path in ftp url")
	}
	return host, path, nil
}

// ftpTransfer streams one RETR. It stops early when ctx is done and fails
// with errShortTransfer when the stream ends before want bytes (want < 0
// when the server did not answer SIZE).
type ftpTransfer struct {
	ctx     context.Context
	r       io.Reader
	closeFn func() error
	want    int64
	got     int64
}

func (t *ftpTransfer) Read(p []byte) (int, error) {
	if err := t.ctx.Err(); err != nil {
		return 0, eris.Wrap(err, "ftp: transfer cancelled")
	}
	n, err := t.r.Read(p)
	t.got += int64(n)
	if errors.Is(err, io.EOF) && t.want >= 0 && t.got != t.want {
		return n, eris.Wrapf(errShortTransfer, "got %d of %d bytes", t.got, t.want)
	}
	return n, err
}

func (t *ftpTransfer) Close() error {
	return t.closeFn()
}

// open dials, logs in and starts the transfer. Only this setup is retried
// by Download; DownloadToFile retries whole transfers.
func (f *FTPFetcher) open(ctx context.Context, host, path string) (*ftpTransfer, error) {
	conn, err := ftp.Dial(host, ftp.DialWithTimeout(f.opts.Timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, eris.Wrap(err, "ftp dial")
	}

	if err := conn.Login(f.opts.User, f.opts.Password); err != nil {
		_ = conn.Quit()
		return nil, eris.Wrap(err, "ftp login")
	}

	want, err := conn.FileSize(path)
	if err != nil {
		// SIZE is an extension; some mirrors refuse it.
		want = -1
	}

	resp, err := conn.Retr(path)
	if err != nil {
		_ = conn.Quit()
		return nil, eris.Wrapf(err, "ftp retrieve %s", path)
	}

	return &ftpTransfer{
		ctx:  ctx,
		r:    resp,
		want: want,
		closeFn: func() error {
			respErr := resp.Close()
			quitErr := conn.Quit()
			if respErr != nil {
				return eris.Wrap(respErr, "close ftp response")
			}
			return eris.Wrap(quitErr, "quit ftp connection")
		},
	}, nil
}

// Download connects to the server and returns a reader over the file.
// The caller must close the returned ReadCloser to release the connection.
func (f *FTPFetcher) Download(ctx context.Context, ftpURL string) (io.ReadCloser, error) {
	host, path, err := parseFTPURL(ftpURL)
	if err != nil {
		return nil, err
	}

	zap.L().Debug("ftp: connecting", zap.String("host", host), zap.String("path", path))

	t, err := resilience.Do(ctx, f.opts.Retry, "ftp.download", func(ctx context.Context) (*ftpTransfer, error) {
		return f.open(ctx, host, path)
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// DownloadToFile downloads the FTP URL to path and returns the bytes
// written. A transfer that drops mid-file is restarted from scratch.
func (f *FTPFetcher) DownloadToFile(ctx context.Context, ftpURL string, path string) (int64, error) {
	host, remote, err := parseFTPURL(ftpURL)
	if err != nil {
		return 0, err
	}

	return resilience.Do(ctx, f.opts.Retry, "ftp.download_to_file", func(ctx context.Context) (int64, error) {
		t, err := f.open(ctx, host, remote)
		if err != nil {
			return 0, err
		}
		defer t.Close() //nolint:errcheck

		return copyToFile(path, t)
	})
}

// copyToFile truncates path and fills it from r.
func copyToFile(path string, r io.Reader) (int64, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, eris.Wrap(err, "create file")
	}
	defer file.Close() //nolint:errcheck

	n, err := io.Copy(file, r)
	if err != nil {
		return n, eris.Wrap(err, "write file")
	}
	return n, eris.Wrap(file.Close(), "close file")
}
