package build

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/kballard/go-shellquote"
	"github.com/sirupsen/logrus"

	"github.com/NeoGeographyToolkit/binarybuilder/internal/arch"
	"github.com/NeoGeographyToolkit/binarybuilder/internal/env"
	"github.com/NeoGeographyToolkit/binarybuilder/internal/fetch"
	"github.com/NeoGeographyToolkit/binarybuilder/internal/runner"
	"github.com/NeoGeographyToolkit/binarybuilder/pkgs/buildsys"
	"github.com/NeoGeographyToolkit/binarybuilder/pkgs/buildsys/autotools"
	"github.com/NeoGeographyToolkit/binarybuilder/pkgs/buildsys/cmake"
)

// Context is what a stage sees of the package being built.
type Context struct {
	Package *Package
	Env     *env.Environment // the package's overlay
	Arch    arch.Arch
	Stage   Stage
	WorkDir string // set by unpack, or restored from its marker
	Log     logrus.FieldLogger

	m *Machine
}

// Render substitutes the overlay into tmpl.
func (b *Context) Render(tmpl string) (string, error) {
	return b.Env.Render(tmpl)
}

// Run executes args in the working directory with the overlay as the
// complete process environment.
func (b *Context) Run(ctx context.Context, args ...string) error {
	return b.RunIn(ctx, b.WorkDir, args...)
}

// RunIn is Run with an explicit directory.
func (b *Context) RunIn(ctx context.Context, dir string, args ...string) error {
	_, err := b.m.Exec.Run(ctx, runner.Cmd{Args: args, Dir: dir, Env: b.Env.Environ()})
	return err
}

// Path resolves name against the working directory.
func (b *Context) Path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(b.WorkDir, name)
}

// Glob matches pattern relative to the working directory. Results are
// sorted.
func (b *Context) Glob(pattern string) ([]string, error) {
	return filepath.Glob(b.Path(pattern))
}

// CopyTree copies src to dst with rsync.
func (b *Context) CopyTree(ctx context.Context, src, dst string, opts fetch.CopyOptions) error {
	return fetch.CopyTree(ctx, b.m.Exec, src, dst, opts)
}

// SourcePath returns where the fetch stage leaves the package's sources:
// the cached archive, the git checkout or the mirror directory.
func (b *Context) SourcePath() (string, error) {
	p := b.Package
	switch p.Source.Kind {
	case Archive:
		loc, err := b.Render(p.Source.Locator)
		if err != nil {
			return "", err
		}
		return b.m.Fetcher.CachePath(loc)
	case Git:
		dl, err := b.Env.Get(env.DownloadDir)
		if err != nil {
			return "", err
		}
		return filepath.Join(dl, "git", p.Name), nil
	case RemoteSync:
		return b.MirrorDir(), nil
	}
	return "", fmt.Errorf("package has no source")
}

// MirrorDir is the local copy of a remote-sync source.
func (b *Context) MirrorDir() string {
	return b.m.Fetcher.MirrorDir(b.Package.Name)
}

// OutputDir is BUILD_DIR/<package>, the directory unpack extracts into.
func (b *Context) OutputDir() (string, error) {
	dir, err := b.Env.Get(env.BuildDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, b.Package.Name), nil
}

// MakeOpts splits MAKEOPTS with shell quoting rules.
func (b *Context) MakeOpts() ([]string, error) {
	v, ok := b.Env.Lookup(env.MakeOpts)
	if !ok {
		return nil, nil
	}
	return shellquote.Split(v)
}

// BuildSystem returns the package's build helper rooted at the working
// directory and installing into INSTALL_DIR. CMake projects build Release.
func (b *Context) BuildSystem() (buildsys.BuildSystem, error) {
	install, err := b.Env.Get(env.InstallDir)
	if err != nil {
		return nil, err
	}
	opts, err := b.MakeOpts()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", env.MakeOpts, err)
	}
	var bs buildsys.BuildSystem
	switch b.Package.System {
	case buildsys.CMake:
		bs = cmake.New(b.m.Exec, b.WorkDir, b.Env.Environ()).BuildType("Release").MakeOpts(opts...)
	default:
		bs = autotools.New(b.m.Exec, b.WorkDir, b.Env.Environ()).MakeOpts(opts...)
	}
	bs.InstallDir(install)
	return bs, nil
}

// Configure renders the package's options merged with extra and runs the
// build system's configure step. Each tweak adjusts the build helper first,
// for example to override a variable for configure alone.
func (b *Context) Configure(ctx context.Context, extra buildsys.Options, tweaks ...func(buildsys.BuildSystem)) error {
	opts, err := b.Package.Configure.Merge(extra).Render(b.Env)
	if err != nil {
		return err
	}
	bs, err := b.BuildSystem()
	if err != nil {
		return err
	}
	for _, tweak := range tweaks {
		tweak(bs)
	}
	return bs.Configure(ctx, opts)
}
