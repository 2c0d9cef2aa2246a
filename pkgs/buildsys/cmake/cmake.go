package cmake

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/NeoGeographyToolkit/binarybuilder/internal/runner"
	"github.com/NeoGeographyToolkit/binarybuilder/pkgs/buildsys"
)

type defineValue struct {
	value    string
	typeName string
}

// CMake wraps common CMake build steps with chainable configuration.
type CMake struct {
	SourceDir  string
	buildDir   string
	installDir string
	buildType  string
	makeOpts   []string
	Defines    map[string]defineValue
	exec       runner.Executor
	environ    []string
	env        map[string]string
}

var _ buildsys.BuildSystem = (*CMake)(nil)

// New creates a CMake helper for sourceDir with an out-of-tree build
// directory at sourceDir/build.
func New(exec runner.Executor, sourceDir string, environ []string) *CMake {
	return &CMake{
		SourceDir: sourceDir,
		buildDir:  filepath.Join(sourceDir, "build"),
		Defines:   map[string]defineValue{},
		exec:      exec,
		environ:   environ,
		env:       map[string]string{},
	}
}

func (c *CMake) InstallDir(dir string) {
	c.installDir = dir
}

func (c *CMake) BuildType(name string) *CMake {
	c.buildType = name
	return c
}

// MakeOpts sets arguments passed to the native build tool (e.g. -j4).
func (c *CMake) MakeOpts(opts ...string) *CMake {
	c.makeOpts = opts
	return c
}

func (c *CMake) Define(key, value string) *CMake {
	if c.Defines == nil {
		c.Defines = map[string]defineValue{}
	}
	c.Defines[key] = defineValue{value: value, typeName: "STRING"}
	return c
}

func (c *CMake) DefineBool(key string, value bool) *CMake {
	if c.Defines == nil {
		c.Defines = map[string]defineValue{}
	}
	if value {
		c.Defines[key] = defineValue{value: "ON", typeName: "BOOL"}
		return c
	}
	c.Defines[key] = defineValue{value: "OFF", typeName: "BOOL"}
	return c
}

func (c *CMake) Env(key, value string) {
	if c.env == nil {
		c.env = map[string]string{}
	}
	c.env[key] = value
}

// apply turns grouped options into defines: with/without toggle WITH_<X>,
// enable/disable toggle ENABLE_<X>, and an X=value entry becomes a string.
func (c *CMake) apply(opts buildsys.Options) {
	toggle := func(group, entry string, on bool) {
		name, value, hasValue := strings.Cut(entry, "=")
		key := group + "_" + strings.ToUpper(name)
		if hasValue && on {
			c.Define(key, value)
			return
		}
		c.DefineBool(key, on)
	}
	for _, w := range opts.With {
		toggle("WITH", w, true)
	}
	for _, w := range opts.Without {
		toggle("WITH", w, false)
	}
	for _, e := range opts.Enable {
		toggle("ENABLE", e, true)
	}
	for _, d := range opts.Disable {
		toggle("ENABLE", d, false)
	}
	if opts.Prefix != "" {
		c.installDir = opts.Prefix
	}
}

// Args renders the configure command line for opts.
func (c *CMake) Args(opts buildsys.Options) []string {
	c.apply(opts)
	if c.installDir != "" {
		c.Define("CMAKE_INSTALL_PREFIX", c.installDir)
	}
	if c.buildType != "" {
		c.Define("CMAKE_BUILD_TYPE", c.buildType)
	}
	args := []string{"cmake", "-S", c.SourceDir, "-B", c.buildDir}
	args = append(args, c.definesArgs()...)
	return append(args, opts.Other...)
}

func (c *CMake) Configure(ctx context.Context, opts buildsys.Options) error {
	if err := os.MkdirAll(c.buildDir, 0o755); err != nil {
		return err
	}
	return c.run(ctx, c.Args(opts))
}

func (c *CMake) Build(ctx context.Context, args ...string) error {
	cmdArgs := []string{"cmake", "--build", c.buildDir}
	if c.buildType != "" {
		cmdArgs = append(cmdArgs, "--config", c.buildType)
	}
	cmdArgs = append(cmdArgs, args...)
	if len(c.makeOpts) > 0 {
		cmdArgs = append(append(cmdArgs, "--"), c.makeOpts...)
	}
	return c.run(ctx, cmdArgs)
}

func (c *CMake) Install(ctx context.Context, args ...string) error {
	cmdArgs := []string{"cmake", "--install", c.buildDir}
	if c.installDir != "" {
		cmdArgs = append(cmdArgs, "--prefix", c.installDir)
	}
	cmdArgs = append(cmdArgs, args...)
	return c.run(ctx, cmdArgs)
}

// OutputDir returns the install dir if set, otherwise the build dir.
func (c *CMake) OutputDir() string {
	if c.installDir != "" {
		return c.installDir
	}
	return c.buildDir
}

func (c *CMake) definesArgs() []string {
	if len(c.Defines) == 0 {
		return nil
	}
	keys := make([]string, 0, len(c.Defines))
	for k := range c.Defines {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	args := make([]string, 0, len(keys))
	for _, k := range keys {
		def := c.Defines[k]
		if def.typeName != "" {
			args = append(args, "-D"+k+":"+def.typeName+"="+def.value)
			continue
		}
		args = append(args, "-D"+k+"="+def.value)
	}
	return args
}

func (c *CMake) run(ctx context.Context, args []string) error {
	cmd := runner.Cmd{Args: args, Dir: c.SourceDir, Env: c.environ}
	if len(c.env) > 0 {
		cmd.Env = buildsys.MergeEnv(c.environ, c.env)
	}
	_, err := c.exec.Run(ctx, cmd)
	return err
}
