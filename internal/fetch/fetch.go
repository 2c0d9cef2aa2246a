// Package fetch acquires package sources into the download cache: archives
// over http, ftp, s3 or the local filesystem, and rsync mirrors of remote
// trees.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/google/renameio"
	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/NeoGeographyToolkit/binarybuilder/internal/runner"
)

// Acquirer fetches sources into CacheDir.
type Acquirer struct {
	CacheDir string
	Exec     runner.Executor
	HTTP     *http.Client
	S3       ObjectGetter // nil disables s3:// locators

	// Progress, when non-nil, receives a progress bar for each download.
	Progress io.Writer
	Log      logrus.FieldLogger
}

// NewAcquirer returns an Acquirer caching into dir.
func NewAcquirer(dir string, exec runner.Executor, log logrus.FieldLogger) *Acquirer {
	return &Acquirer{
		CacheDir: dir,
		Exec:     exec,
		HTTP:     &http.Client{Timeout: 30 * time.Minute},
		Log:      log,
	}
}

func (a *Acquirer) log() logrus.FieldLogger {
	if a.Log == nil {
		return logrus.StandardLogger()
	}
	return a.Log
}

// CachePath returns the cache file a locator is stored under.
func (a *Acquirer) CachePath(locator string) (string, error) {
	u, err := url.Parse(locator)
	if err != nil {
		return "", fmt.Errorf("invalid locator %q: %w", locator, err)
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return "", fmt.Errorf("locator %q has no file name", locator)
	}
	return filepath.Join(a.CacheDir, name), nil
}

// Archive makes sure the archive named by locator is in the cache and
// matches checksum, downloading it when absent or stale, and returns its
// path. A download that fails verification never reaches the cache.
func (a *Acquirer) Archive(ctx context.Context, locator, checksum string) (string, error) {
	sum, err := ParseSum(checksum)
	if err != nil {
		return "", err
	}
	dest, err := a.CachePath(locator)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(a.CacheDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create cache directory %s: %w", a.CacheDir, err)
	}
	unlock, err := lockFile(dest + ".lock")
	if err != nil {
		return "", err
	}
	defer unlock()

	log := a.log().WithField("file", filepath.Base(dest))
	if _, err := os.Stat(dest); err == nil {
		err := sum.Verify(dest)
		if err == nil {
			log.Debug("using cached archive")
			return dest, nil
		}
		if !errors.Is(err, ErrChecksumMismatch) {
			return "", err
		}
		log.WithError(err).Warn("cached archive is stale, fetching again")
	}

	if err := a.download(ctx, locator, dest, sum); err != nil {
		return "", err
	}
	log.Info("fetched")
	return dest, nil
}

func (a *Acquirer) download(ctx context.Context, locator, dest string, sum Sum) error {
	u, err := url.Parse(locator)
	if err != nil {
		return err
	}
	pending, err := renameio.TempFile("", dest)
	if err != nil {
		return err
	}
	defer pending.Cleanup()

	var w io.Writer = pending
	h := sum.New()
	if h != nil {
		w = io.MultiWriter(pending, h)
	}

	switch u.Scheme {
	case "http", "https":
		err = a.fetchHTTP(ctx, locator, w)
	case "s3":
		err = a.fetchS3(ctx, u, w)
	case "ftp":
		err = a.fetchCurl(ctx, locator, dest, w)
	case "file", "":
		err = copyLocal(u.Path, w)
	default:
		err = fmt.Errorf("unsupported locator scheme %q", u.Scheme)
	}
	if err != nil {
		return fmt.Errorf("fetch %s: %w", locator, err)
	}
	if h != nil {
		if err := sum.check(locator, h); err != nil {
			return err
		}
	}
	return pending.CloseAtomicallyReplace()
}

func (a *Acquirer) fetchHTTP(ctx context.Context, locator string, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return err
	}
	client := a.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return a.copyWithProgress(w, resp.Body, resp.ContentLength, path.Base(req.URL.Path))
}

// fetchCurl hands protocols the native client lacks to curl, then streams
// the result into w.
func (a *Acquirer) fetchCurl(ctx context.Context, locator, dest string, w io.Writer) error {
	if a.Exec == nil {
		return errors.New("no command runner for curl")
	}
	part := dest + ".part"
	defer os.Remove(part)
	if _, err := a.Exec.Run(ctx, runner.Cmd{Args: []string{"curl", "-L", "--fail", "-sS", "-o", part, locator}}); err != nil {
		return err
	}
	return copyLocal(part, w)
}

func copyLocal(src string, w io.Writer) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}

func (a *Acquirer) copyWithProgress(w io.Writer, r io.Reader, size int64, name string) error {
	if a.Progress != nil {
		bar := progressbar.NewOptions64(size,
			progressbar.OptionSetWriter(a.Progress),
			progressbar.OptionSetDescription(name),
			progressbar.OptionShowBytes(true),
			progressbar.OptionClearOnFinish(),
		)
		defer bar.Finish()
		w = io.MultiWriter(w, bar)
	}
	_, err := io.Copy(w, r)
	return err
}

// lockFile takes an exclusive flock on path, blocking while another
// process holds it.
func lockFile(path string) (func(), error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create lock file: %w", err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to acquire lock for download: %w", err)
	}
	return func() {
		unix.Flock(int(f.Fd()), unix.LOCK_UN)
		f.Close()
	}, nil
}
