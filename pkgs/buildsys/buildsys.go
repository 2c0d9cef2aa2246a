package buildsys

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/NeoGeographyToolkit/binarybuilder/internal/env"
)

// Kind selects the build system a package is configured with.
type Kind int

const (
	Autotools Kind = iota
	CMake
)

func (k Kind) String() string {
	switch k {
	case Autotools:
		return "autotools"
	case CMake:
		return "cmake"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// BuildSystem captures shared capabilities of build helpers (CMake, Autotools).
// Every command runs with the package's environment overlay.
type BuildSystem interface {
	InstallDir(dir string)

	// Environment helper; affects only commands run by this helper.
	Env(key, val string)

	// Lifecycle.
	Configure(ctx context.Context, opts Options) error
	Build(ctx context.Context, args ...string) error
	Install(ctx context.Context, args ...string) error

	// Where artifacts land.
	OutputDir() string
}

// Options groups configure arguments the way recipes declare them. Entries
// may hold %(NAME)s placeholders until rendered.
type Options struct {
	Prefix  string // install prefix; empty means the helper's install dir
	With    []string
	Without []string
	Enable  []string
	Disable []string
	Other   []string // passed through, after the grouped options
}

// Merge returns o extended by more. A non-empty more.Prefix wins.
func (o Options) Merge(more Options) Options {
	out := Options{
		Prefix:  o.Prefix,
		With:    append(append([]string(nil), o.With...), more.With...),
		Without: append(append([]string(nil), o.Without...), more.Without...),
		Enable:  append(append([]string(nil), o.Enable...), more.Enable...),
		Disable: append(append([]string(nil), o.Disable...), more.Disable...),
		Other:   append(append([]string(nil), o.Other...), more.Other...),
	}
	if more.Prefix != "" {
		out.Prefix = more.Prefix
	}
	return out
}

// Render substitutes e into every entry. It fails without partial output
// if any placeholder is undefined.
func (o Options) Render(e *env.Environment) (Options, error) {
	var out Options
	var err error
	if o.Prefix != "" {
		if out.Prefix, err = e.Render(o.Prefix); err != nil {
			return Options{}, err
		}
	}
	groups := []struct {
		src []string
		dst *[]string
	}{
		{o.With, &out.With},
		{o.Without, &out.Without},
		{o.Enable, &out.Enable},
		{o.Disable, &out.Disable},
		{o.Other, &out.Other},
	}
	for _, g := range groups {
		if len(g.src) == 0 {
			continue
		}
		if *g.dst, err = e.RenderAll(g.src); err != nil {
			return Options{}, err
		}
	}
	return out, nil
}

// MergeEnv overlays override onto base and returns a sorted KEY=VALUE list.
func MergeEnv(base []string, override map[string]string) []string {
	envMap := make(map[string]string, len(base))
	for _, kv := range base {
		if k, v, ok := strings.Cut(kv, "="); ok {
			envMap[k] = v
		}
	}
	for k, v := range override {
		envMap[k] = v
	}
	keys := make([]string, 0, len(envMap))
	for k := range envMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+envMap[k])
	}
	return out
}
