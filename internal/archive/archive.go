// Package archive unpacks downloaded source archives.
package archive

import (
	"archive/tar"
	"compress/bzip2"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	"github.com/sirupsen/logrus"
	"github.com/ulikunitz/xz"
	"golang.org/x/sys/unix"

	"github.com/NeoGeographyToolkit/binarybuilder/internal/runner"
)

// Format identifies an archive encoding.
type Format int

const (
	Unknown Format = iota
	Tar
	TarGzip
	TarBzip2
	TarXz
	TarZstd
	Zip
)

var suffixes = []struct {
	suffix string
	format Format
}{
	{".tar.gz", TarGzip},
	{".tgz", TarGzip},
	{".tar.bz2", TarBzip2},
	{".tbz2", TarBzip2},
	{".tar.xz", TarXz},
	{".txz", TarXz},
	{".tar.zst", TarZstd},
	{".tar", Tar},
	{".zip", Zip},
}

// DetectFormat returns the format implied by name's extension.
func DetectFormat(name string) Format {
	lower := strings.ToLower(name)
	for _, s := range suffixes {
		if strings.HasSuffix(lower, s.suffix) {
			return s.format
		}
	}
	return Unknown
}

// ErrIllegalPath is returned for entries that would land outside the
// destination directory.
var ErrIllegalPath = errors.New("illegal file path in archive")

// Extract unpacks src into dest, creating dest if needed. Formats without a
// native reader (.tar.Z and anything unrecognised) are handed to the system
// tar through exec. A nil log uses the standard logrus logger.
func Extract(ctx context.Context, exec runner.Executor, log logrus.FieldLogger, src, dest string) error {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}
	dest, err := filepath.Abs(dest)
	if err != nil {
		return err
	}
	if dest, err = filepath.EvalSymlinks(dest); err != nil {
		return err
	}
	format := DetectFormat(src)
	log = log.WithField("archive", filepath.Base(src))
	log.Debugf("extracting into %s", dest)
	switch format {
	case Zip:
		return extractZip(src, dest)
	case Unknown:
		if exec == nil {
			return fmt.Errorf("unsupported archive format: %s", src)
		}
		_, err := exec.Run(ctx, runner.Cmd{Args: []string{"tar", "xf", src, "-C", dest}})
		return err
	}

	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open archive %s: %w", src, err)
	}
	defer f.Close()

	var r io.Reader = f
	switch format {
	case TarGzip:
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("failed to create gzip reader for %s: %w", src, err)
		}
		defer gz.Close()
		r = gz
	case TarBzip2:
		r = bzip2.NewReader(f)
	case TarXz:
		xr, err := xz.NewReader(f)
		if err != nil {
			return fmt.Errorf("failed to create xz reader for %s: %w", src, err)
		}
		r = xr
	case TarZstd:
		zr, err := zstd.NewReader(f)
		if err != nil {
			return fmt.Errorf("failed to create zstd reader for %s: %w", src, err)
		}
		defer zr.Close()
		r = zr
	}
	if err := extractTar(ctx, log, r, dest); err != nil {
		return fmt.Errorf("extract %s: %w", filepath.Base(src), err)
	}
	return nil
}

func under(dest, p string) bool {
	return p == dest || strings.HasPrefix(p, dest+string(os.PathSeparator))
}

// within resolves name under dest, rejecting traversal both as written and
// through symlinks planted by earlier entries. dest must have no symlinks.
func within(dest, name string) (string, error) {
	p := filepath.Join(dest, name)
	if !under(dest, p) {
		return "", fmt.Errorf("%w: %s", ErrIllegalPath, name)
	}
	// The deepest existing ancestor decides where new files really land.
	for dir := filepath.Dir(p); under(dest, dir) && dir != dest; dir = filepath.Dir(dir) {
		resolved, err := filepath.EvalSymlinks(dir)
		if errors.Is(err, fs.ErrNotExist) {
			if _, lerr := os.Lstat(dir); lerr == nil {
				// dangling symlink
				return "", fmt.Errorf("%w: %s", ErrIllegalPath, name)
			}
			continue
		}
		if err != nil {
			return "", err
		}
		if !under(dest, resolved) {
			return "", fmt.Errorf("%w: %s", ErrIllegalPath, name)
		}
		break
	}
	return p, nil
}

// replaceable removes an existing symlink at target so a write cannot
// follow it.
func replaceable(target string) error {
	if fi, err := os.Lstat(target); err == nil && fi.Mode()&fs.ModeSymlink != 0 {
		return os.Remove(target)
	}
	return nil
}

func extractTar(ctx context.Context, log logrus.FieldLogger, r io.Reader, dest string) error {
	tr := tar.NewReader(r)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("error reading tar header: %w", err)
		}
		target, err := within(dest, hdr.Name)
		if err != nil {
			return err
		}
		if target == dest {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}

		mode := os.FileMode(hdr.Mode).Perm()
		if mode == 0 {
			mode = 0o644
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, mode|0o700); err != nil {
				return fmt.Errorf("failed to create dir %s: %w", target, err)
			}
		case tar.TypeReg:
			if err := replaceable(target); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
			if err != nil {
				return fmt.Errorf("failed to create file %s: %w", target, err)
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return fmt.Errorf("failed to write file %s: %w", target, err)
			}
			if err := out.Close(); err != nil {
				return err
			}
			if err := os.Chtimes(target, hdr.AccessTime, hdr.ModTime); err != nil {
				return fmt.Errorf("failed to set times for file %s: %w", target, err)
			}
		case tar.TypeSymlink:
			_ = os.Remove(target)
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return fmt.Errorf("failed to create symlink %s -> %s: %w", target, hdr.Linkname, err)
			}
			tv := []unix.Timeval{
				unix.NsecToTimeval(hdr.ModTime.UnixNano()),
				unix.NsecToTimeval(hdr.ModTime.UnixNano()),
			}
			_ = unix.Lutimes(target, tv)
		case tar.TypeLink:
			old, err := within(dest, hdr.Linkname)
			if err != nil {
				return err
			}
			_ = os.Remove(target)
			if err := os.Link(old, target); err != nil {
				return fmt.Errorf("failed to create hard link %s: %w", target, err)
			}
		case tar.TypeXHeader, tar.TypeXGlobalHeader:
		default:
			log.Debugf("skipping unsupported tar entry type %c: %s", hdr.Typeflag, hdr.Name)
		}
	}
}

func extractZip(src, dest string) error {
	r, err := zip.OpenReader(src)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		target, err := within(dest, f.Name)
		if err != nil {
			return err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		mode := f.Mode().Perm()
		if mode == 0 {
			mode = 0o644
		}
		if err := replaceable(target); err != nil {
			return err
		}
		out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
		if err != nil {
			return err
		}
		rc, err := f.Open()
		if err != nil {
			out.Close()
			return err
		}
		_, err = io.Copy(out, rc)
		out.Close()
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// TopDir returns the directory sources should be built in: the single
// top-level directory of dir when there is exactly one entry and it is a
// directory, otherwise dir itself.
func TopDir(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	if len(entries) == 1 && entries[0].IsDir() {
		return filepath.Join(dir, entries[0].Name()), nil
	}
	return dir, nil
}
