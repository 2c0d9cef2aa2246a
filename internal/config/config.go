// Package config loads binarybuilder settings from an optional YAML file
// and BINARYBUILDER_* environment variables, and derives the base build
// environment from them.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/NeoGeographyToolkit/binarybuilder/internal/env"
)

// EnvPrefix prefixes the environment variables that override file settings.
const EnvPrefix = "BINARYBUILDER_"

// S3 holds object-store settings for s3:// locators.
type S3 struct {
	Region          string `yaml:"region,omitempty"`
	Endpoint        string `yaml:"endpoint,omitempty"`
	AccessKeyID     string `yaml:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty"`
}

// Config is the resolved configuration of one run.
type Config struct {
	BuildDir     string `yaml:"build_dir"`
	InstallDir   string `yaml:"install_dir"`
	NoInstallDir string `yaml:"noinstall_dir"`
	DownloadDir  string `yaml:"download_dir"`
	PatchesDir   string `yaml:"patches_dir"`
	IsisRoot     string `yaml:"isisroot,omitempty"`
	MakeOpts     string `yaml:"makeopts"`
	LogLevel     string `yaml:"log_level"`
	Verbose      bool   `yaml:"verbose"`
	S3           S3     `yaml:"s3,omitempty"`
}

// Default returns the settings used when nothing is configured, rooted
// at workDir.
func Default(workDir string) *Config {
	return &Config{
		BuildDir:     filepath.Join(workDir, "build"),
		InstallDir:   filepath.Join(workDir, "install"),
		NoInstallDir: filepath.Join(workDir, "noinstall"),
		DownloadDir:  filepath.Join(workDir, "downloads"),
		PatchesDir:   filepath.Join(workDir, "patches"),
		MakeOpts:     "-j4",
		LogLevel:     "info",
	}
}

// DefaultPath is where the configuration file is looked for when none is
// named.
func DefaultPath(workDir string) string {
	return filepath.Join(workDir, "config.yaml")
}

// Load reads path over the defaults rooted at workDir, then applies
// environment overrides from lookup. A missing file is an error only when
// mustExist is set.
func Load(path, workDir string, mustExist bool, lookup func(string) (string, bool)) (*Config, error) {
	c := Default(workDir)
	if v, ok := lookup(env.IsisRoot); ok {
		c.IsisRoot = v
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := c.decode(data); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !mustExist:
	default:
		return nil, err
	}
	if err := c.applyEnv(lookup); err != nil {
		return nil, err
	}
	if err := c.absolute(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) overrides() map[string]*string {
	return map[string]*string{
		"BUILD_DIR":            &c.BuildDir,
		"INSTALL_DIR":          &c.InstallDir,
		"NOINSTALL_DIR":        &c.NoInstallDir,
		"DOWNLOAD_DIR":         &c.DownloadDir,
		"PATCHES_DIR":          &c.PatchesDir,
		"ISISROOT":             &c.IsisRoot,
		"MAKEOPTS":             &c.MakeOpts,
		"LOG_LEVEL":            &c.LogLevel,
		"S3_REGION":            &c.S3.Region,
		"S3_ENDPOINT":          &c.S3.Endpoint,
		"S3_ACCESS_KEY_ID":     &c.S3.AccessKeyID,
		"S3_SECRET_ACCESS_KEY": &c.S3.SecretAccessKey,
	}
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	for name, field := range c.overrides() {
		if v, ok := lookup(EnvPrefix + name); ok {
			*field = v
		}
	}
	if v, ok := lookup(EnvPrefix + "VERBOSE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sVERBOSE: %w", EnvPrefix, err)
		}
		c.Verbose = b
	}
	return nil
}

func (c *Config) absolute() error {
	for _, p := range []*string{&c.BuildDir, &c.InstallDir, &c.NoInstallDir, &c.DownloadDir, &c.PatchesDir, &c.IsisRoot} {
		if *p == "" {
			continue
		}
		abs, err := filepath.Abs(*p)
		if err != nil {
			return err
		}
		*p = abs
	}
	return nil
}

// Dirs returns the directories a run writes into.
func (c *Config) Dirs() []string {
	return []string{c.BuildDir, c.InstallDir, c.NoInstallDir, c.DownloadDir}
}

// MkdirAll creates every directory a run writes into.
func (c *Config) MkdirAll() error {
	for _, d := range c.Dirs() {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// rpathPadding reserves room in every binary's rpath so installed trees
// can be relocated by rewriting it in place.
var rpathPadding = "-Wl,-rpath,/" + strings.Repeat("a", 100)

// passthrough names the process variables copied into the base
// environment when set. Compiler variables replace the defaults.
var passthrough = []string{
	env.CC, env.CXX, env.CFlags, env.CXXFlags, env.CPPFlags, env.LDFlags,
	env.Path, env.Home, "TMPDIR",
}

// Environment builds the base environment of a run from c and the process
// variables visible through lookup.
func (c *Config) Environment(lookup func(string) (string, bool)) *env.Environment {
	e := env.New(
		env.CC, "gcc",
		env.CXX, "g++",
		env.CFlags, "",
		env.CXXFlags, "",
		env.LDFlags, rpathPadding,
	)
	for _, k := range passthrough {
		if v, ok := lookup(k); ok {
			e.Set(k, v)
		}
	}
	if c.MakeOpts != "" {
		e.Set(env.MakeOpts, c.MakeOpts)
	}
	e.Set(env.BuildDir, c.BuildDir)
	e.Set(env.InstallDir, c.InstallDir)
	e.Set(env.NoInstallDir, c.NoInstallDir)
	e.Set(env.DownloadDir, c.DownloadDir)
	e.Set(env.PatchesDir, c.PatchesDir)
	if c.IsisRoot != "" {
		e.Set(env.IsisRoot, c.IsisRoot)
		e.Set(env.Isis3rdParty, filepath.Join(c.IsisRoot, "3rdParty", "lib"))
	}
	return e
}

// Write encodes c as YAML to w.
func (c *Config) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return err
	}
	return enc.Close()
}
