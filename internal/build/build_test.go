package build

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/NeoGeographyToolkit/binarybuilder/internal/arch"
	"github.com/NeoGeographyToolkit/binarybuilder/internal/env"
	"github.com/NeoGeographyToolkit/binarybuilder/internal/fetch"
	"github.com/NeoGeographyToolkit/binarybuilder/internal/runner"
)

// recorder is an Executor that records commands instead of running them.
type recorder struct {
	mu   sync.Mutex
	cmds []runner.Cmd
	fail func(runner.Cmd) bool
}

func (r *recorder) Run(_ context.Context, cmd runner.Cmd) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cmds = append(r.cmds, cmd)
	if r.fail != nil && r.fail(cmd) {
		return "boom", &runner.CommandError{Args: cmd.Args, Dir: cmd.Dir, Output: "boom", ExitCode: 2, Err: errors.New("exit status 2")}
	}
	return "", nil
}

func (r *recorder) lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, c := range r.cmds {
		out = append(out, strings.Join(c.Args, " "))
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.cmds = nil
	r.mu.Unlock()
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.Out = io.Discard
	return l
}

type fixture struct {
	root    string
	exec    *recorder
	machine *Machine
	base    *env.Environment
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	rec := &recorder{}
	log := quietLogger()
	base := env.New(
		env.BuildDir, filepath.Join(root, "build"),
		env.InstallDir, filepath.Join(root, "install"),
		env.NoInstallDir, filepath.Join(root, "noinstall"),
		env.DownloadDir, filepath.Join(root, "downloads"),
		env.MakeOpts, "-j2",
	)
	if err := os.MkdirAll(filepath.Join(root, "build"), 0o755); err != nil {
		t.Fatal(err)
	}
	return &fixture{
		root: root,
		exec: rec,
		base: base,
		machine: &Machine{
			Exec:    rec,
			Fetcher: fetch.NewAcquirer(filepath.Join(root, "downloads"), rec, log),
			Arch:    arch.Arch{OS: "linux", Dist: "ubuntu", DistVersion: "22.04", Machine: "x86_64", Bits: 64},
			Log:     log,
		},
	}
}

// writeTarball creates <dir>/<top>.tar.gz holding top/configure and
// returns its path and sha1.
func writeTarball(t *testing.T, dir, top string) (string, string) {
	t.Helper()
	path := filepath.Join(dir, top+".tar.gz")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	h := sha1.New()
	gz := gzip.NewWriter(io.MultiWriter(f, h))
	tw := tar.NewWriter(gz)
	body := []byte("#!/bin/sh\nexit 0\n")
	if err := tw.WriteHeader(&tar.Header{Name: top + "/", Typeflag: tar.TypeDir, Mode: 0o755}); err != nil {
		t.Fatal(err)
	}
	if err := tw.WriteHeader(&tar.Header{Name: top + "/configure", Typeflag: tar.TypeReg, Mode: 0o755, Size: int64(len(body))}); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write(body); err != nil {
		t.Fatal(err)
	}
	for _, c := range []io.Closer{tw, gz, f} {
		if err := c.Close(); err != nil {
			t.Fatal(err)
		}
	}
	return path, hex.EncodeToString(h.Sum(nil))
}

func (f *fixture) archivePackage(t *testing.T, name string) *Package {
	t.Helper()
	path, sum := writeTarball(t, t.TempDir(), name+"-1.0")
	return NewArchive(name, "file://"+path, sum)
}

func (f *fixture) markers() Markers {
	return MarkersFor(filepath.Join(f.root, "build"))
}

func TestBuildArchiveLifecycle(t *testing.T) {
	f := newFixture(t)
	pkg := f.archivePackage(t, "zlib")
	pkg.Configure.Other = []string{"shared"}

	if err := f.machine.Build(context.Background(), pkg, f.base.Clone()); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	install := filepath.Join(f.root, "install")
	want := []string{
		"./configure --prefix=" + install + " --shared",
		"make -j2",
		"make install",
	}
	if got := f.exec.lines(); !reflect.DeepEqual(got, want) {
		t.Errorf("commands = %q, want %q", got, want)
	}
	workDir := filepath.Join(f.root, "build", "zlib", "zlib-1.0")
	for _, c := range f.exec.cmds {
		if c.Dir != workDir {
			t.Errorf("%v ran in %s, want %s", c.Args, c.Dir, workDir)
		}
	}
	if _, err := os.Stat(filepath.Join(workDir, "configure")); err != nil {
		t.Errorf("sources not unpacked: %v", err)
	}
	if got := f.markers().Completed("zlib"); !reflect.DeepEqual(got, Stages) {
		t.Errorf("Completed() = %v, want %v", got, Stages)
	}
}

func TestBuildIsIdempotent(t *testing.T) {
	f := newFixture(t)
	pkg := f.archivePackage(t, "png")
	ctx := context.Background()
	if err := f.machine.Build(ctx, pkg, f.base.Clone()); err != nil {
		t.Fatal(err)
	}
	f.exec.reset()
	if err := f.machine.Build(ctx, pkg, f.base.Clone()); err != nil {
		t.Fatal(err)
	}
	if got := f.exec.lines(); len(got) != 0 {
		t.Errorf("second build ran %q, want nothing", got)
	}
}

func TestBuildChecksumMismatch(t *testing.T) {
	f := newFixture(t)
	pkg := f.archivePackage(t, "jpeg")
	pkg.Checksum = strings.Repeat("0", 40)

	err := f.machine.Build(context.Background(), pkg, f.base.Clone())
	var pe *PackageError
	if !errors.As(err, &pe) {
		t.Fatalf("Build() error = %v, want *PackageError", err)
	}
	if pe.Package != "jpeg" || pe.Stage != "fetch" || pe.Kind != KindVerification {
		t.Errorf("error = %+v, want jpeg/fetch/verification", pe)
	}
	if !errors.Is(err, fetch.ErrChecksumMismatch) {
		t.Errorf("error does not wrap ErrChecksumMismatch: %v", err)
	}
	if _, err := os.Stat(filepath.Join(f.root, "build", "jpeg")); !os.IsNotExist(err) {
		t.Errorf("unpack ran after a failed fetch")
	}
	if _, err := os.Stat(filepath.Join(f.root, "downloads", "jpeg-1.0.tar.gz")); !os.IsNotExist(err) {
		t.Errorf("unverified archive was cached")
	}
	if got := f.markers().Completed("jpeg"); len(got) != 0 {
		t.Errorf("Completed() = %v, want none", got)
	}
}

func TestBuildResumesAfterFailure(t *testing.T) {
	f := newFixture(t)
	pkg := f.archivePackage(t, "proj")
	ctx := context.Background()

	f.exec.fail = func(c runner.Cmd) bool { return c.Args[0] == "make" }
	err := f.machine.Build(ctx, pkg, f.base.Clone())
	var pe *PackageError
	if !errors.As(err, &pe) || pe.Stage != "compile" || pe.Kind != KindCommand {
		t.Fatalf("Build() error = %v, want compile command failure", err)
	}
	want := []Stage{Fetch, Unpack, Patch, Configure}
	if got := f.markers().Completed("proj"); !reflect.DeepEqual(got, want) {
		t.Errorf("Completed() = %v, want %v", got, want)
	}

	f.exec.fail = nil
	f.exec.reset()
	if err := f.machine.Build(ctx, pkg, f.base.Clone()); err != nil {
		t.Fatal(err)
	}
	if got := f.exec.lines(); !reflect.DeepEqual(got, []string{"make -j2", "make install"}) {
		t.Errorf("resumed commands = %q", got)
	}
	workDir := filepath.Join(f.root, "build", "proj", "proj-1.0")
	for _, c := range f.exec.cmds {
		if c.Dir != workDir {
			t.Errorf("%v ran in %q, want restored %q", c.Args, c.Dir, workDir)
		}
	}
}

func TestBuildFailureLogsOutputTail(t *testing.T) {
	f := newFixture(t)
	log, hook := logtest.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	f.machine.Log = log
	f.exec.fail = func(c runner.Cmd) bool { return c.Args[0] == "make" }

	err := f.machine.Build(context.Background(), f.archivePackage(t, "gdal"), f.base.Clone())
	if err == nil {
		t.Fatal("Build() succeeded")
	}
	if msg := err.Error(); strings.Contains(msg, "\n") || !strings.HasPrefix(msg, "package gdal: compile: ") {
		t.Errorf("Error() = %q, want one line", msg)
	}
	var tail *logrus.Entry
	for _, e := range hook.AllEntries() {
		if strings.HasPrefix(e.Message, "output tail:") {
			tail = e
		}
	}
	if tail == nil {
		t.Fatal("output tail not logged")
	}
	if tail.Level != logrus.DebugLevel || !strings.HasSuffix(tail.Message, "boom") {
		t.Errorf("tail entry = %v %q", tail.Level, tail.Message)
	}
	if tail.Data["package"] != "gdal" || tail.Data["stage"] != "compile" || tail.Data["command"] != "make -j2" {
		t.Errorf("tail fields = %v", tail.Data)
	}
}

func TestRerunClearsLaterMarkers(t *testing.T) {
	f := newFixture(t)
	pkg := f.archivePackage(t, "curl")
	ctx := context.Background()
	if err := f.machine.Build(ctx, pkg, f.base.Clone()); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(f.markers().path("curl", Configure)); err != nil {
		t.Fatal(err)
	}
	f.exec.reset()
	if err := f.machine.Build(ctx, pkg, f.base.Clone()); err != nil {
		t.Fatal(err)
	}
	got := f.exec.lines()
	if len(got) != 3 || !strings.HasPrefix(got[0], "./configure") {
		t.Errorf("commands after clearing configure = %q, want configure, compile, install", got)
	}
}

func TestBuildOverrides(t *testing.T) {
	f := newFixture(t)
	var seen []string
	pkg := &Package{
		Name: "custom",
		Unpack: func(_ context.Context, b *Context) error {
			b.WorkDir = "/src/custom"
			return nil
		},
		ConfigureStage: func(ctx context.Context, b *Context) error {
			seen = append(seen, b.Stage.String()+" "+b.WorkDir)
			return b.Run(ctx, "./autogen.sh")
		},
		Compile: Noop,
	}
	if err := f.machine.Build(context.Background(), pkg, f.base.Clone()); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(seen, []string{"configure /src/custom"}) {
		t.Errorf("override saw %q", seen)
	}
	if got := f.exec.lines(); !reflect.DeepEqual(got, []string{"./autogen.sh", "make install"}) {
		t.Errorf("commands = %q", got)
	}
}

func TestBuildUndefinedVariable(t *testing.T) {
	f := newFixture(t)
	pkg := NewArchive("gsl", "%(MIRROR)s/gsl-1.13.tar.gz", "")
	err := f.machine.Build(context.Background(), pkg, f.base.Clone())
	var pe *PackageError
	if !errors.As(err, &pe) || pe.Stage != "fetch" || pe.Kind != KindUndefined {
		t.Fatalf("Build() error = %v, want fetch undefined-variable failure", err)
	}
	if !errors.Is(err, env.ErrUndefined) {
		t.Errorf("error does not wrap ErrUndefined")
	}
}

func TestBuildWithoutBuildDir(t *testing.T) {
	f := newFixture(t)
	overlay := f.base.Clone()
	overlay.Delete(env.BuildDir)
	err := f.machine.Build(context.Background(), f.archivePackage(t, "geos"), overlay)
	var pe *PackageError
	if !errors.As(err, &pe) || pe.Stage != InitStage {
		t.Fatalf("Build() error = %v, want init failure", err)
	}
}

func TestBuildCanceled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := f.machine.Build(ctx, f.archivePackage(t, "qwt"), f.base.Clone())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Build() error = %v, want context.Canceled", err)
	}
	if got := f.markers().Completed("qwt"); len(got) != 0 {
		t.Errorf("Completed() = %v, want none", got)
	}
}

func TestHeadersPackage(t *testing.T) {
	f := newFixture(t)
	path, sum := writeTarball(t, t.TempDir(), "superlu-3.0")
	pkg := NewHeaders("superlu", "file://"+path, sum)
	if err := f.machine.Build(context.Background(), pkg, f.base.Clone()); err != nil {
		t.Fatal(err)
	}
	want := []string{
		"./configure --prefix=" + filepath.Join(f.root, "noinstall"),
		"make install-data",
	}
	if got := f.exec.lines(); !reflect.DeepEqual(got, want) {
		t.Errorf("commands = %q, want %q", got, want)
	}
}

func TestPackageErrorMessage(t *testing.T) {
	err := newPackageError("boost", "compile", &runner.CommandError{Args: []string{"./b2"}, ExitCode: 1, Err: errors.New("exit status 1")})
	if err.Kind != KindCommand {
		t.Errorf("Kind = %v, want command", err.Kind)
	}
	if !strings.HasPrefix(err.Error(), "package boost: compile: ") {
		t.Errorf("Error() = %q", err.Error())
	}
	if again := newPackageError("other", "install", err); again != err {
		t.Errorf("an existing PackageError was wrapped again")
	}
	if k := classify(Configf("ISIS3RDPARTY %s does not exist", "/x")); k != KindConfiguration {
		t.Errorf("classify(ConfigError) = %v", k)
	}
	if k := classify(&arch.VariantError{Arch: arch.Arch{OS: "plan9", Bits: 64}}); k != KindConfiguration {
		t.Errorf("classify(VariantError) = %v", k)
	}
	if k := classify(errors.New("x")); k != KindPackage {
		t.Errorf("classify(other) = %v", k)
	}
}

func TestParseStage(t *testing.T) {
	for _, s := range Stages {
		got, err := ParseStage(strings.ToUpper(s.String()))
		if err != nil || got != s {
			t.Errorf("ParseStage(%q) = %v, %v", s, got, err)
		}
	}
	if _, err := ParseStage("deploy"); err == nil {
		t.Error("ParseStage(deploy) succeeded")
	}
}

func TestMarkersClearFrom(t *testing.T) {
	m := MarkersFor(t.TempDir())
	for _, s := range Stages {
		if err := m.save("gdal", s, &marker{Stage: s.String()}); err != nil {
			t.Fatal(err)
		}
	}
	if err := m.ClearFrom("gdal", Configure); err != nil {
		t.Fatal(err)
	}
	want := []Stage{Fetch, Unpack, Patch}
	if got := m.Completed("gdal"); !reflect.DeepEqual(got, want) {
		t.Errorf("Completed() = %v, want %v", got, want)
	}
	if err := m.ClearFrom("never-built", Fetch); err != nil {
		t.Errorf("ClearFrom on unknown package: %v", err)
	}
}

func TestFormatConfigOptions(t *testing.T) {
	got := FormatConfigOptions([]ConfigEntry{
		{"ENABLE_DEBUG", "no"},
		{"PKG_GDAL_CPPFLAGS", `-I"/opt/x" $HOME`},
	})
	want := "ENABLE_DEBUG=\"no\"\nPKG_GDAL_CPPFLAGS=\"-I\\\"/opt/x\\\" \\$HOME\"\n"
	if got != want {
		t.Errorf("FormatConfigOptions() = %q, want %q", got, want)
	}
}

func TestFixDevSymlinks(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"libgeos.so.3", "libproj.so.0.5"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "libproj.so"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	b := &Context{Arch: arch.Arch{OS: "linux"}, Log: quietLogger()}
	if err := b.FixDevSymlinks(dir); err != nil {
		t.Fatal(err)
	}
	target, err := os.Readlink(filepath.Join(dir, "libgeos.so"))
	if err != nil || target != "libgeos.so.3" {
		t.Errorf("libgeos.so -> %q, %v", target, err)
	}
	if info, _ := os.Lstat(filepath.Join(dir, "libproj.so")); info.Mode()&os.ModeSymlink != 0 {
		t.Error("existing libproj.so was replaced")
	}

	osx := &Context{Arch: arch.Arch{OS: "osx"}, Log: quietLogger()}
	empty := t.TempDir()
	if err := os.WriteFile(filepath.Join(empty, "libz.so.1"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := osx.FixDevSymlinks(empty); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Lstat(filepath.Join(empty, "libz.so")); !os.IsNotExist(err) {
		t.Error("dev symlink created off linux")
	}
}

func TestFixInstallNames(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "libqt.dylib"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	f.exec.fail = func(runner.Cmd) bool { return true }
	b := &Context{Arch: arch.Arch{OS: "osx"}, Env: f.base, Log: quietLogger(), m: f.machine}
	if err := b.FixInstallNames(context.Background(), dir); err != nil {
		t.Errorf("FixInstallNames() = %v, want failures skipped", err)
	}
	lib := filepath.Join(dir, "libqt.dylib")
	want := []string{"install_name_tool -id " + lib + " " + lib}
	if got := f.exec.lines(); !reflect.DeepEqual(got, want) {
		t.Errorf("commands = %q, want %q", got, want)
	}
}
