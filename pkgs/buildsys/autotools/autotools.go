package autotools

import (
	"context"
	"strings"

	"github.com/NeoGeographyToolkit/binarybuilder/internal/runner"
	"github.com/NeoGeographyToolkit/binarybuilder/pkgs/buildsys"
)

// AutoTools wraps common Autotools build steps with chainable configuration.
type AutoTools struct {
	SourceDir  string
	installDir string
	makeOpts   []string
	exec       runner.Executor
	environ    []string
	env        map[string]string
}

var _ buildsys.BuildSystem = (*AutoTools)(nil)

// New creates an AutoTools helper building sourceDir in place. Commands run
// through exec with environ as their environment.
func New(exec runner.Executor, sourceDir string, environ []string) *AutoTools {
	return &AutoTools{
		SourceDir: sourceDir,
		exec:      exec,
		environ:   environ,
		env:       map[string]string{},
	}
}

func (a *AutoTools) InstallDir(dir string) {
	a.installDir = dir
}

func (a *AutoTools) Env(key, value string) {
	if a.env == nil {
		a.env = map[string]string{}
	}
	a.env[key] = value
}

// MakeOpts sets extra arguments for every make invocation (e.g. -j4).
func (a *AutoTools) MakeOpts(opts ...string) *AutoTools {
	a.makeOpts = opts
	return a
}

// Args renders opts as ./configure arguments.
func (a *AutoTools) Args(opts buildsys.Options) []string {
	var args []string
	prefix := opts.Prefix
	if prefix == "" {
		prefix = a.installDir
	}
	if prefix != "" {
		args = append(args, "--prefix="+prefix)
	}
	for _, w := range opts.With {
		args = append(args, "--with-"+w)
	}
	for _, w := range opts.Without {
		args = append(args, "--without-"+w)
	}
	for _, e := range opts.Enable {
		args = append(args, "--enable-"+e)
	}
	for _, d := range opts.Disable {
		args = append(args, "--disable-"+d)
	}
	for _, o := range opts.Other {
		if !strings.HasPrefix(o, "-") {
			o = "--" + o
		}
		args = append(args, o)
	}
	return args
}

// Configure runs ./configure with the rendered options in the source directory.
func (a *AutoTools) Configure(ctx context.Context, opts buildsys.Options) error {
	return a.run(ctx, append([]string{"./configure"}, a.Args(opts)...))
}

// Build runs make (or provided args) in the source directory.
func (a *AutoTools) Build(ctx context.Context, args ...string) error {
	if len(args) == 0 {
		args = append([]string{"make"}, a.makeOpts...)
	}
	return a.run(ctx, args)
}

// Install runs make install (or provided args) in the source directory.
func (a *AutoTools) Install(ctx context.Context, args ...string) error {
	cmdArgs := []string{"make", "install"}
	if len(args) > 0 {
		cmdArgs = args
	}
	return a.run(ctx, cmdArgs)
}

// OutputDir returns the install dir if set, otherwise the source dir.
func (a *AutoTools) OutputDir() string {
	if a.installDir != "" {
		return a.installDir
	}
	return a.SourceDir
}

func (a *AutoTools) run(ctx context.Context, args []string) error {
	cmd := runner.Cmd{Args: args, Dir: a.SourceDir, Env: a.environ}
	if len(a.env) > 0 {
		cmd.Env = buildsys.MergeEnv(a.environ, a.env)
	}
	_, err := a.exec.Run(ctx, cmd)
	return err
}
