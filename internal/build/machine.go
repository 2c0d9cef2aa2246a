package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gookit/color"
	"github.com/kballard/go-shellquote"
	"github.com/sirupsen/logrus"

	"github.com/NeoGeographyToolkit/binarybuilder/internal/arch"
	"github.com/NeoGeographyToolkit/binarybuilder/internal/archive"
	"github.com/NeoGeographyToolkit/binarybuilder/internal/env"
	"github.com/NeoGeographyToolkit/binarybuilder/internal/fetch"
	"github.com/NeoGeographyToolkit/binarybuilder/internal/patch"
	"github.com/NeoGeographyToolkit/binarybuilder/internal/runner"
	"github.com/NeoGeographyToolkit/binarybuilder/internal/vcs"
	"github.com/NeoGeographyToolkit/binarybuilder/pkgs/buildsys"
)

var (
	colArrow = color.HEX("#FFEB3B")
	colStage = color.HEX("#1976D2")
)

// Machine drives packages through their stages.
type Machine struct {
	Exec    runner.Executor
	Fetcher *fetch.Acquirer
	VCS     vcs.VCS
	Arch    arch.Arch
	Log     logrus.FieldLogger

	// Out, when non-nil, receives one progress line per stage.
	Out io.Writer
}

func (m *Machine) log() logrus.FieldLogger {
	if m.Log == nil {
		return logrus.StandardLogger()
	}
	return m.Log
}

// Build runs every stage of pkg in order with overlay as its environment.
// Stages with a completion marker are skipped; running a stage first
// clears the markers of all later ones. The first failure stops the
// package and is returned as a *PackageError.
func (m *Machine) Build(ctx context.Context, pkg *Package, overlay *env.Environment) error {
	buildDir, err := overlay.Get(env.BuildDir)
	if err != nil {
		return newPackageError(pkg.Name, InitStage, err)
	}
	markers := MarkersFor(buildDir)
	log := m.log().WithField("package", pkg.Name)
	b := &Context{
		Package: pkg,
		Env:     overlay,
		Arch:    m.Arch,
		m:       m,
	}

	for _, st := range Stages {
		b.Stage = st
		b.Log = log.WithField("stage", st.String())

		if mk, err := markers.load(pkg.Name, st); err == nil {
			if st == Unpack && mk.WorkDir != "" {
				b.WorkDir = mk.WorkDir
			}
			b.Log.Info("already done")
			continue
		} else if !errors.Is(err, os.ErrNotExist) {
			b.Log.WithError(err).Warn("unreadable marker, running stage again")
		}

		if err := markers.ClearFrom(pkg.Name, st+1); err != nil {
			return newPackageError(pkg.Name, st.String(), err)
		}
		m.progress(pkg.Name, st)
		start := time.Now()
		if err := m.run(ctx, b, st); err != nil {
			var ce *runner.CommandError
			if errors.As(err, &ce) {
				if tail := ce.Tail(20); tail != "" {
					b.Log.WithField("command", shellquote.Join(ce.Args...)).Debugf("output tail:\n%s", tail)
				}
			}
			return newPackageError(pkg.Name, st.String(), err)
		}
		mk := &marker{Stage: st.String(), Time: time.Now(), WorkDir: b.WorkDir}
		if err := markers.save(pkg.Name, st, mk); err != nil {
			return newPackageError(pkg.Name, st.String(), err)
		}
		b.Log.WithField("elapsed", time.Since(start).Round(time.Millisecond)).Info("done")
	}
	return nil
}

func (m *Machine) progress(pkg string, st Stage) {
	if m.Out == nil {
		return
	}
	fmt.Fprintf(m.Out, "%s %s\n", colArrow.Sprint("->"), colStage.Sprintf("%s: %s", pkg, st))
}

func (m *Machine) run(ctx context.Context, b *Context, st Stage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if fn := b.Package.override(st); fn != nil {
		return fn(ctx, b)
	}
	switch st {
	case Fetch:
		return m.fetch(ctx, b)
	case Unpack:
		return m.unpack(ctx, b)
	case Patch:
		return m.patch(ctx, b)
	case Configure:
		return b.Configure(ctx, buildsys.Options{})
	case Compile:
		bs, err := b.BuildSystem()
		if err != nil {
			return err
		}
		return bs.Build(ctx)
	case Install:
		bs, err := b.BuildSystem()
		if err != nil {
			return err
		}
		if err := bs.Install(ctx); err != nil {
			return err
		}
		b.Log.WithField("output", bs.OutputDir()).Debug("installed")
		return nil
	}
	return fmt.Errorf("unknown stage %v", st)
}

func (m *Machine) fetch(ctx context.Context, b *Context) error {
	p := b.Package
	if p.Source.Kind == NoSource {
		return nil
	}
	loc, err := b.Render(p.Source.Locator)
	if err != nil {
		return err
	}
	switch p.Source.Kind {
	case Archive:
		_, err = m.Fetcher.Archive(ctx, loc, p.Checksum)
		return err
	case Git:
		dir, err := b.SourcePath()
		if err != nil {
			return err
		}
		if err := m.VCS.Sync(ctx, loc, p.Source.Ref, dir, b.Env.Environ()); err != nil {
			return err
		}
		if head, err := m.VCS.Head(ctx, dir, b.Env.Environ()); err == nil {
			b.Log.WithField("commit", head).Info("checked out")
		}
		return nil
	case RemoteSync:
		_, err = m.Fetcher.Mirror(ctx, loc, p.Name, p.TreeSum)
		return err
	}
	return fmt.Errorf("unsupported source kind %v", p.Source.Kind)
}

func (m *Machine) unpack(ctx context.Context, b *Context) error {
	p := b.Package
	if p.Source.Kind == NoSource {
		return nil
	}
	src, err := b.SourcePath()
	if err != nil {
		return err
	}
	out, err := b.OutputDir()
	if err != nil {
		return err
	}
	if err := os.RemoveAll(out); err != nil {
		return err
	}
	if err := os.MkdirAll(out, 0o755); err != nil {
		return err
	}

	switch p.Source.Kind {
	case Archive:
		if err := archive.Extract(ctx, m.Exec, b.Log, src, out); err != nil {
			return err
		}
		b.WorkDir, err = archive.TopDir(out)
		return err
	case Git:
		b.WorkDir = filepath.Join(out, p.Name)
		return b.CopyTree(ctx, src+"/", b.WorkDir, fetch.CopyOptions{})
	case RemoteSync:
		b.WorkDir = filepath.Join(out, p.Name)
		return b.CopyTree(ctx, src+"/", b.WorkDir, fetch.CopyOptions{LinkDest: src})
	}
	return fmt.Errorf("unsupported source kind %v", p.Source.Kind)
}

func (m *Machine) patch(ctx context.Context, b *Context) error {
	if len(b.Package.Patches) == 0 {
		return nil
	}
	base := ""
	if anyRelative(b.Package.Patches) {
		var err error
		if base, err = b.Env.Get(env.PatchesDir); err != nil {
			return err
		}
	}
	patches, err := patch.Expand(base, b.Package.Patches)
	if err != nil {
		return err
	}
	return patch.Apply(ctx, m.Exec, b.Log, b.WorkDir, b.Env.Environ(), patches)
}

func anyRelative(paths []string) bool {
	for _, p := range paths {
		if !filepath.IsAbs(p) {
			return true
		}
	}
	return false
}
