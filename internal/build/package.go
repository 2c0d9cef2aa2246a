package build

import (
	"context"

	"github.com/NeoGeographyToolkit/binarybuilder/internal/env"
	"github.com/NeoGeographyToolkit/binarybuilder/internal/fetch"
	"github.com/NeoGeographyToolkit/binarybuilder/pkgs/buildsys"
)

// SourceKind selects how a package's sources are acquired.
type SourceKind int

const (
	NoSource SourceKind = iota
	Archive
	Git
	RemoteSync
)

func (k SourceKind) String() string {
	switch k {
	case Archive:
		return "archive"
	case Git:
		return "git"
	case RemoteSync:
		return "remote-sync"
	}
	return "none"
}

// Source locates a package's sources. Locator may hold %(NAME)s
// placeholders; Ref is the git ref for Git sources.
type Source struct {
	Kind    SourceKind
	Locator string
	Ref     string
}

// StageFunc replaces the default behaviour of one stage.
type StageFunc func(ctx context.Context, b *Context) error

// Noop is a StageFunc that does nothing.
func Noop(context.Context, *Context) error { return nil }

// Package describes one buildable unit. The zero value of every override
// selects the default behaviour of its stage.
type Package struct {
	Name     string
	Source   Source
	Checksum string // archive checksum, see fetch.ParseSum
	TreeSum  string // dirhash of a remote-sync tree
	Patches  []string

	System    buildsys.Kind
	Configure buildsys.Options

	Fetch, Unpack, Patch, ConfigureStage, Compile, Install StageFunc
}

func (p *Package) override(s Stage) StageFunc {
	switch s {
	case Fetch:
		return p.Fetch
	case Unpack:
		return p.Unpack
	case Patch:
		return p.Patch
	case Configure:
		return p.ConfigureStage
	case Compile:
		return p.Compile
	case Install:
		return p.Install
	}
	return nil
}

// NewArchive returns a package built from a checksummed archive with the
// default lifecycle.
func NewArchive(name, locator, checksum string) *Package {
	return &Package{
		Name:     name,
		Source:   Source{Kind: Archive, Locator: locator},
		Checksum: checksum,
	}
}

// NewGit returns a package built from a git repository at ref.
func NewGit(name, url, ref string) *Package {
	return &Package{
		Name:   name,
		Source: Source{Kind: Git, Locator: url, Ref: ref},
	}
}

// NewHeaders returns a package that only installs headers and data into
// NOINSTALL_DIR: configure targets that prefix, compile is skipped and
// install runs make install-data.
func NewHeaders(name, locator, checksum string) *Package {
	p := NewArchive(name, locator, checksum)
	p.Configure.Prefix = "%(" + env.NoInstallDir + ")s"
	p.Compile = Noop
	p.Install = func(ctx context.Context, b *Context) error {
		return b.Run(ctx, "make", "install-data")
	}
	return p
}

// NewRemoteSync returns a package mirrored from a remote tree. The mirror
// is instantiated with hard links, then copied into installTo (a template)
// and each fixDirs entry (templates) gets the platform library fix-ups.
func NewRemoteSync(name, locator, installTo string, fixDirs ...string) *Package {
	p := &Package{
		Name:   name,
		Source: Source{Kind: RemoteSync, Locator: locator},
	}
	p.ConfigureStage = Noop
	p.Compile = Noop
	p.Install = func(ctx context.Context, b *Context) error {
		dest, err := b.Render(installTo)
		if err != nil {
			return err
		}
		if err := b.CopyTree(ctx, b.WorkDir+"/", dest, fetch.CopyOptions{LinkDest: b.MirrorDir()}); err != nil {
			return err
		}
		return b.fixLibraries(ctx, fixDirs)
	}
	return p
}

// NewLocal returns a package that uses a tree already present on the host:
// only the library fix-ups of fixDirs run, at install.
func NewLocal(name string, fixDirs ...string) *Package {
	return &Package{
		Name:           name,
		Fetch:          Noop,
		Unpack:         Noop,
		Patch:          Noop,
		ConfigureStage: Noop,
		Compile:        Noop,
		Install: func(ctx context.Context, b *Context) error {
			return b.fixLibraries(ctx, fixDirs)
		},
	}
}
