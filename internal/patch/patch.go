// Package patch applies ordered patch files to an unpacked source tree.
package patch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/NeoGeographyToolkit/binarybuilder/internal/runner"
)

// Error reports the patch that failed to apply and its position.
type Error struct {
	Patch string
	Index int
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("patch %d (%s) failed: %v", e.Index+1, filepath.Base(e.Patch), e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsPatch reports whether name carries a patch extension.
func IsPatch(name string) bool {
	return strings.HasSuffix(name, ".patch") || strings.HasSuffix(name, ".diff")
}

// Expand resolves paths against base and replaces every directory with
// the patch files it contains, sorted by name. Files are kept in the
// order given.
func Expand(base string, paths []string) ([]string, error) {
	var out []string
	for _, p := range paths {
		if !filepath.IsAbs(p) && base != "" {
			p = filepath.Join(base, p)
		}
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, p)
			continue
		}
		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, err
		}
		var names []string
		for _, e := range entries {
			if !e.IsDir() && IsPatch(e.Name()) {
				names = append(names, e.Name())
			}
		}
		slices.Sort(names)
		for _, n := range names {
			out = append(out, filepath.Join(p, n))
		}
	}
	return out, nil
}

// Apply applies patches in order inside dir with patch -p1. It stops at the
// first failure. A nil log uses the standard logrus logger.
func Apply(ctx context.Context, exec runner.Executor, log logrus.FieldLogger, dir string, env []string, patches []string) error {
	if log == nil {
		log = logrus.StandardLogger()
	}
	for i, p := range patches {
		abs, err := filepath.Abs(p)
		if err != nil {
			return &Error{Patch: p, Index: i, Err: err}
		}
		log.WithField("patch", filepath.Base(abs)).Debug("applying")
		_, err = exec.Run(ctx, runner.Cmd{
			Args: []string{"patch", "-p1", "-N", "-i", abs},
			Dir:  dir,
			Env:  env,
		})
		if err != nil {
			return &Error{Patch: abs, Index: i, Err: err}
		}
	}
	return nil
}
