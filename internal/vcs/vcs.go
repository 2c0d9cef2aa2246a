package vcs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/NeoGeographyToolkit/binarybuilder/internal/runner"
)

// VCS defines the interface for version control operations.
type VCS interface {
	// Sync ensures the local repo exists and is at the specified ref.
	// ref can be branch, tag, or commit hash; empty means the remote HEAD.
	// If dir doesn't exist, the repo is initialised there first.
	// If dir exists, updates are fetched and the ref checked out.
	// git runs with environ; nil inherits the process environment.
	Sync(ctx context.Context, remote, ref, dir string, environ []string) error

	// Head returns the commit hash checked out in dir.
	Head(ctx context.Context, dir string, environ []string) (string, error)
}

// gitVCS implements VCS using git.
type gitVCS struct {
	git  string
	exec runner.Executor
}

// GitOption configures gitVCS.
type GitOption func(*gitVCS)

// WithGitPath sets a custom git executable path.
func WithGitPath(path string) GitOption {
	return func(g *gitVCS) {
		g.git = path
	}
}

// NewGitVCS creates a git VCS whose commands run through exec.
func NewGitVCS(exec runner.Executor, opts ...GitOption) VCS {
	g := &gitVCS{git: "git", exec: exec}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *gitVCS) ensureInit(ctx context.Context, dir string, environ []string) error {
	if _, err := os.Stat(filepath.Join(dir, ".git")); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		return g.run(ctx, dir, environ, "init", "--quiet")
	}
	return nil
}

func (g *gitVCS) Sync(ctx context.Context, remote, ref, dir string, environ []string) error {
	if ref == "" {
		ref = "HEAD"
	}
	if err := g.ensureInit(ctx, dir, environ); err != nil {
		return err
	}
	if err := g.fetch(ctx, remote, dir, ref, environ); err != nil {
		return err
	}
	return g.checkout(ctx, dir, "FETCH_HEAD", environ)
}

func (g *gitVCS) fetch(ctx context.Context, remote, dir, ref string, environ []string) error {
	args := []string{"fetch", "--depth", "1", remote, ref}
	if err := g.run(ctx, dir, environ, args...); err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	return nil
}

func (g *gitVCS) checkout(ctx context.Context, dir, ref string, environ []string) error {
	if err := g.run(ctx, dir, environ, "checkout", "--force", "--quiet", ref); err != nil {
		return fmt.Errorf("checkout %s: %w", ref, err)
	}
	return nil
}

func (g *gitVCS) Head(ctx context.Context, dir string, environ []string) (string, error) {
	output, err := g.output(ctx, dir, environ, "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("resolve HEAD: %w", err)
	}
	return strings.TrimSpace(output), nil
}

func (g *gitVCS) run(ctx context.Context, dir string, environ []string, args ...string) error {
	_, err := g.output(ctx, dir, environ, args...)
	return err
}

func (g *gitVCS) output(ctx context.Context, dir string, environ []string, args ...string) (string, error) {
	if environ == nil {
		environ = os.Environ()
	}
	env := append(slices.Clip(environ), "GIT_TERMINAL_PROMPT=0")
	return g.exec.Run(ctx, runner.Cmd{
		Args: append([]string{g.git}, args...),
		Dir:  dir,
		Env:  env,
	})
}
