package build

import (
	"context"
	"os"
	"path/filepath"
	"strings"
)

// FixDevSymlinks creates the unversioned libfoo.so link next to every
// versioned libfoo.so.N in dir that lacks one. It does nothing off Linux.
func (b *Context) FixDevSymlinks(dir string) error {
	if b.Arch.OS != "linux" {
		return nil
	}
	libs, err := filepath.Glob(filepath.Join(dir, "*.so.*"))
	if err != nil {
		return err
	}
	for _, lib := range libs {
		if info, err := os.Lstat(lib); err != nil || info.Mode()&os.ModeSymlink != 0 {
			continue
		}
		base := filepath.Base(lib)
		dev := filepath.Join(dir, base[:strings.Index(base, ".so.")]+".so")
		if _, err := os.Lstat(dev); err == nil {
			continue
		}
		b.Log.Warnf("creating dev symlink %s for %s", filepath.Base(dev), base)
		if err := os.Symlink(base, dev); err != nil {
			return err
		}
	}
	return nil
}

// FixInstallNames rewrites the install name of every dylib in dir to its
// own path. Failures are logged and skipped. It does nothing off macOS.
func (b *Context) FixInstallNames(ctx context.Context, dir string) error {
	if b.Arch.OS != "osx" {
		return nil
	}
	libs, err := filepath.Glob(filepath.Join(dir, "*.dylib"))
	if err != nil {
		return err
	}
	for _, lib := range libs {
		if info, err := os.Lstat(lib); err != nil || info.Mode()&os.ModeSymlink != 0 {
			continue
		}
		if err := b.RunIn(ctx, dir, "install_name_tool", "-id", lib, lib); err != nil {
			b.Log.WithError(err).Warnf("unable to process %s", lib)
		}
	}
	return nil
}

// fixLibraries renders each directory template and applies both fix-ups.
func (b *Context) fixLibraries(ctx context.Context, dirs []string) error {
	for _, tmpl := range dirs {
		dir, err := b.Render(tmpl)
		if err != nil {
			return err
		}
		if err := b.FixDevSymlinks(dir); err != nil {
			return err
		}
		if err := b.FixInstallNames(ctx, dir); err != nil {
			return err
		}
	}
	return nil
}
