package patch

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/NeoGeographyToolkit/binarybuilder/internal/runner"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, body := range files {
		p := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestExpand(t *testing.T) {
	base := t.TempDir()
	writeFiles(t, base, map[string]string{
		"gdal/0002-second.patch": "",
		"gdal/0001-first.diff":   "",
		"gdal/README":            "",
		"extra.patch":            "",
	})
	got, err := Expand(base, []string{"extra.patch", "gdal"})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		filepath.Join(base, "extra.patch"),
		filepath.Join(base, "gdal", "0001-first.diff"),
		filepath.Join(base, "gdal", "0002-second.patch"),
	}
	if len(got) != len(want) {
		t.Fatalf("Expand = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Expand[%d] = %s, want %s", i, got[i], want[i])
		}
	}

	if _, err := Expand(base, []string{"missing"}); err == nil {
		t.Error("Expand of a missing path succeeded")
	}
}

type recorder struct {
	patches []string
	failAt  int
}

func (r *recorder) Run(_ context.Context, cmd runner.Cmd) (string, error) {
	r.patches = append(r.patches, cmd.Args[len(cmd.Args)-1])
	if len(r.patches)-1 == r.failAt {
		return "Hunk #1 FAILED", &runner.CommandError{Args: cmd.Args, ExitCode: 1, Err: errors.New("exit status 1")}
	}
	return "", nil
}

func TestApplyOrderAndFailure(t *testing.T) {
	rec := &recorder{failAt: 1}
	patches := []string{"/p/a.patch", "/p/b.patch", "/p/c.patch"}
	err := Apply(context.Background(), rec, nil, "/src", nil, patches)
	var perr *Error
	if !errors.As(err, &perr) {
		t.Fatalf("Apply error = %v, want *Error", err)
	}
	if perr.Index != 1 || perr.Patch != "/p/b.patch" {
		t.Errorf("failure = %+v", perr)
	}
	var cerr *runner.CommandError
	if !errors.As(err, &cerr) {
		t.Error("command failure not reachable through the patch error")
	}
	if len(rec.patches) != 2 || rec.patches[0] != "/p/a.patch" {
		t.Errorf("applied = %v; c.patch must not be attempted", rec.patches)
	}
}

func TestApplyEmpty(t *testing.T) {
	rec := &recorder{failAt: -1}
	if err := Apply(context.Background(), rec, nil, "/src", nil, nil); err != nil {
		t.Fatal(err)
	}
	if len(rec.patches) != 0 {
		t.Errorf("commands ran for empty list: %v", rec.patches)
	}
}

func TestApplyReal(t *testing.T) {
	if _, err := exec.LookPath("patch"); err != nil {
		t.Skip("patch not found in PATH")
	}
	src := t.TempDir()
	writeFiles(t, src, map[string]string{"configure.ac": "CFLAGS=-Wno-long-double\n"})
	patchDir := t.TempDir()
	writeFiles(t, patchDir, map[string]string{
		"0001-flags.patch": `--- a/configure.ac
+++ b/configure.ac
@@ -1 +1 @@
-CFLAGS=-Wno-long-double
+CFLAGS=-O2
`,
	})
	patches, err := Expand(patchDir, []string{"."})
	if err != nil {
		t.Fatal(err)
	}
	if err := Apply(context.Background(), runner.New(nil), nil, src, nil, patches); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	got, _ := os.ReadFile(filepath.Join(src, "configure.ac"))
	if string(got) != "CFLAGS=-O2\n" {
		t.Errorf("configure.ac = %q", got)
	}
}
