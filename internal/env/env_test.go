package env

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestWorkDir(t *testing.T) {
	dir, err := WorkDir()
	if err != nil {
		t.Fatalf("WorkDir() returned error: %v", err)
	}
	userCacheDir, err := os.UserCacheDir()
	if err != nil {
		t.Fatalf("os.UserCacheDir() returned error: %v", err)
	}
	if want := filepath.Join(userCacheDir, "binarybuilder"); dir != want {
		t.Errorf("WorkDir() = %q, want %q", dir, want)
	}
}

func TestGetUndefined(t *testing.T) {
	e := New("CC", "gcc")
	if v, err := e.Get("CC"); err != nil || v != "gcc" {
		t.Fatalf("Get(CC) = %q, %v", v, err)
	}
	_, err := e.Get("CXX")
	if !errors.Is(err, ErrUndefined) {
		t.Fatalf("Get(CXX) error = %v, want ErrUndefined", err)
	}
	var uerr *UndefinedError
	if !errors.As(err, &uerr) || !reflect.DeepEqual(uerr.Names, []string{"CXX"}) {
		t.Fatalf("Get(CXX) error = %#v", err)
	}
}

func TestSetKeepsOrder(t *testing.T) {
	e := New("A", "1", "B", "2")
	e.Set("C", "3")
	e.Set("A", "10")
	if got, want := e.Keys(), []string{"A", "B", "C"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Keys() = %v, want %v", got, want)
	}
	if got, want := e.Environ(), []string{"A=10", "B=2", "C=3"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Environ() = %v, want %v", got, want)
	}
	e.Delete("B")
	if got, want := e.Keys(), []string{"A", "C"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Keys() after Delete = %v, want %v", got, want)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	base := New("INSTALL_DIR", "/opt/x", "CFLAGS", "-O2")
	base.Freeze()

	overlay := base.Clone()
	overlay.Set("CFLAGS", "-O0")
	overlay.Set("NO_ZLIB", "1")

	if v, _ := base.Get("CFLAGS"); v != "-O2" {
		t.Errorf("base CFLAGS = %q after overlay change", v)
	}
	if base.Has("NO_ZLIB") {
		t.Error("base gained a key set on the overlay")
	}
	if overlay.Frozen() {
		t.Error("clone of a frozen environment must be mutable")
	}
}

func TestFrozenSetPanics(t *testing.T) {
	e := New("A", "1")
	e.Freeze()
	defer func() {
		if recover() == nil {
			t.Fatal("Set on frozen environment did not panic")
		}
	}()
	e.Set("A", "2")
}

func TestRender(t *testing.T) {
	e := New("INSTALL_DIR", "/opt/bb", "NOINSTALL_DIR", "/opt/nb")
	tests := []struct {
		tmpl string
		want string
	}{
		{"--prefix=%(INSTALL_DIR)s", "--prefix=/opt/bb"},
		{"%(INSTALL_DIR)s:%(NOINSTALL_DIR)s", "/opt/bb:/opt/nb"},
		{"plain", "plain"},
		{"100%% done", "100% done"},
		{"trailing %", "trailing %"},
		{"50%d", "50%d"},
		{"", ""},
	}
	for _, tt := range tests {
		got, err := e.Render(tt.tmpl)
		if err != nil {
			t.Errorf("Render(%q) error: %v", tt.tmpl, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Render(%q) = %q, want %q", tt.tmpl, got, tt.want)
		}
	}
}

func TestRenderUndefinedIsTotal(t *testing.T) {
	e := New("INSTALL_DIR", "/opt/bb")
	got, err := e.Render("%(INSTALL_DIR)s/%(MISSING)s/%(OTHER)s/%(MISSING)s")
	if got != "" {
		t.Errorf("Render returned partial output %q", got)
	}
	var uerr *UndefinedError
	if !errors.As(err, &uerr) {
		t.Fatalf("Render error = %v, want *UndefinedError", err)
	}
	if want := []string{"MISSING", "OTHER"}; !reflect.DeepEqual(uerr.Names, want) {
		t.Errorf("missing names = %v, want %v", uerr.Names, want)
	}
}

func TestRenderEmptyValueIsDefined(t *testing.T) {
	e := New("CFLAGS", "")
	got, err := e.Render("[%(CFLAGS)s]")
	if err != nil || got != "[]" {
		t.Fatalf("Render = %q, %v", got, err)
	}
}

func TestRenderMalformed(t *testing.T) {
	e := New("A", "1")
	for _, tmpl := range []string{"%(A", "%(A)", "%(A)d"} {
		if _, err := e.Render(tmpl); err == nil {
			t.Errorf("Render(%q) succeeded, want error", tmpl)
		}
	}
}

func TestRenderAll(t *testing.T) {
	e := New("INSTALL_DIR", "/i")
	got, err := e.RenderAll([]string{"jpeg=%(INSTALL_DIR)s", "png=%(INSTALL_DIR)s"})
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"jpeg=/i", "png=/i"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("RenderAll = %v, want %v", got, want)
	}
	got, err = e.RenderAll([]string{"jpeg=%(INSTALL_DIR)s", "isis=%(ISISROOT)s"})
	if got != nil || !errors.Is(err, ErrUndefined) {
		t.Fatalf("RenderAll = %v, %v; want nil, ErrUndefined", got, err)
	}
}

func TestFlagHelpers(t *testing.T) {
	e := New("LDFLAGS", "-L/a -Wl,-rpath,/x -L/b")
	e.AppendFlag("CPPFLAGS", "-I/inc")
	e.AppendFlag("CPPFLAGS", "-I/inc2")
	if v, _ := e.Get("CPPFLAGS"); v != "-I/inc -I/inc2" {
		t.Errorf("CPPFLAGS = %q", v)
	}

	removed := e.StripFlags("LDFLAGS", func(f string) bool { return strings.HasPrefix(f, "-L") })
	if want := []string{"-L/a", "-L/b"}; !reflect.DeepEqual(removed, want) {
		t.Errorf("removed = %v, want %v", removed, want)
	}
	if v, _ := e.Get("LDFLAGS"); v != "-Wl,-rpath,/x" {
		t.Errorf("LDFLAGS = %q", v)
	}

	e.StripFlags("LDFLAGS", func(string) bool { return true })
	if e.Has("LDFLAGS") {
		t.Error("LDFLAGS should be deleted when every flag is stripped")
	}
}
