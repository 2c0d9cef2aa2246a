package internal

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/NeoGeographyToolkit/binarybuilder/internal/arch"
	"github.com/NeoGeographyToolkit/binarybuilder/internal/build"
)

// setup isolates a test from the user's cache directory and the host.
func setup(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", filepath.Join(root, "cache"))
	t.Setenv("BINARYBUILDER_BUILD_DIR", filepath.Join(root, "build"))
	t.Setenv("BINARYBUILDER_INSTALL_DIR", filepath.Join(root, "install"))
	t.Setenv("BINARYBUILDER_NOINSTALL_DIR", filepath.Join(root, "noinstall"))
	t.Setenv("BINARYBUILDER_DOWNLOAD_DIR", filepath.Join(root, "downloads"))
	t.Setenv("ISISROOT", filepath.Join(root, "isis"))

	saved := detectArch
	detectArch = func() (arch.Arch, error) {
		return arch.Arch{OS: "linux", Dist: "ubuntu", Machine: "x86_64", Bits: 64}, nil
	}
	t.Cleanup(func() {
		detectArch = saved
		configPath, logLevel, verbose, forceStage = "", "", false, ""
	})
	return root
}

func execute(args ...string) (string, error) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestListCommand(t *testing.T) {
	setup(t)
	out, err := execute("list")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"default order:", "   1  gsl_headers", "  20  stereopipeline", "      isis_local"} {
		if !strings.Contains(out, want) {
			t.Errorf("list output lacks %q:\n%s", want, out)
		}
	}
}

func TestConfigCommand(t *testing.T) {
	root := setup(t)
	t.Setenv("BINARYBUILDER_S3_SECRET_ACCESS_KEY", "hunter2")
	out, err := execute("config", "--log-level", "debug")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"build_dir: " + filepath.Join(root, "build"), "log_level: debug", "secret_access_key:", "********"} {
		if !strings.Contains(out, want) {
			t.Errorf("config output lacks %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "hunter2") {
		t.Error("secret printed")
	}
}

func TestConfigCommandMissingFile(t *testing.T) {
	root := setup(t)
	if _, err := execute("config", "--config", filepath.Join(root, "absent.yaml")); err == nil {
		t.Fatal("a missing --config file was accepted")
	}
}

func TestBuildUnknownPackage(t *testing.T) {
	root := setup(t)
	_, err := execute("build", "zlib", "no-such-package")
	if !errors.Is(err, build.ErrUnknownPackage) {
		t.Fatalf("build error = %v, want ErrUnknownPackage", err)
	}
	if _, err := os.Stat(filepath.Join(root, "build", ".stamps")); !os.IsNotExist(err) {
		t.Error("markers written although resolution failed")
	}
}

func TestBuildBadForceStage(t *testing.T) {
	setup(t)
	if _, err := execute("build", "--force-stage", "deploy", "zlib"); err == nil {
		t.Fatal("an unknown --force-stage was accepted")
	}
}

func TestResetCommand(t *testing.T) {
	root := setup(t)
	stamps := filepath.Join(root, "build", ".stamps", "zlib")
	if err := os.MkdirAll(stamps, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, s := range build.Stages {
		data := []byte(`{"stage":"` + s.String() + `"}`)
		if err := os.WriteFile(filepath.Join(stamps, s.String()+".json"), data, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := execute("reset", "zlib", "configure"); err != nil {
		t.Fatal(err)
	}
	got := build.MarkersFor(filepath.Join(root, "build")).Completed("zlib")
	want := []build.Stage{build.Fetch, build.Unpack, build.Patch}
	if len(got) != len(want) {
		t.Fatalf("Completed() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Completed() = %v, want %v", got, want)
		}
	}
}
