package internal

import (
	"context"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/NeoGeographyToolkit/binarybuilder/internal/arch"
	"github.com/NeoGeographyToolkit/binarybuilder/internal/build"
	"github.com/NeoGeographyToolkit/binarybuilder/internal/config"
	"github.com/NeoGeographyToolkit/binarybuilder/internal/env"
	"github.com/NeoGeographyToolkit/binarybuilder/internal/fetch"
	"github.com/NeoGeographyToolkit/binarybuilder/internal/logging"
	"github.com/NeoGeographyToolkit/binarybuilder/internal/recipes"
	"github.com/NeoGeographyToolkit/binarybuilder/internal/runner"
	"github.com/NeoGeographyToolkit/binarybuilder/internal/vcs"
)

// detectArch is replaced in tests.
var detectArch = arch.Detect

// loadConfig resolves the configuration from the file, the environment and
// the persistent flags, in increasing precedence.
func loadConfig() (*config.Config, error) {
	workDir, err := env.WorkDir()
	if err != nil {
		return nil, err
	}
	path, mustExist := configPath, true
	if path == "" {
		path, mustExist = config.DefaultPath(workDir), false
	}
	cfg, err := config.Load(path, workDir, mustExist, os.LookupEnv)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if verbose {
		cfg.Verbose = true
	}
	return cfg, nil
}

type session struct {
	cfg    *config.Config
	log    *logrus.Entry
	driver *build.Driver
}

// newSession wires a driver for one invocation: logger, host detection,
// runner, fetcher, VCS and the recipe registry.
func newSession(ctx context.Context, stdout, stderr io.Writer) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(stderr, cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	log := logging.ForRun(logger)

	host, err := detectArch()
	if err != nil {
		return nil, err
	}
	log.WithField("arch", host.String()).Debug("detected host")

	if err := cfg.MkdirAll(); err != nil {
		return nil, err
	}

	exec := runner.New(log)
	if cfg.Verbose {
		exec.Stream = stderr
	}
	acq := fetch.NewAcquirer(cfg.DownloadDir, exec, log)
	if f, ok := stderr.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		acq.Progress = stderr
	}
	if cfg.S3 != (config.S3{}) {
		client, err := fetch.NewS3Client(ctx, fetch.S3Options{
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})
		if err != nil {
			return nil, err
		}
		acq.S3 = client
	}

	registry, err := recipes.NewRegistry()
	if err != nil {
		return nil, err
	}
	return &session{
		cfg: cfg,
		log: log,
		driver: &build.Driver{
			Registry: registry,
			Machine: &build.Machine{
				Exec:    exec,
				Fetcher: acq,
				VCS:     vcs.NewGitVCS(exec),
				Arch:    host,
				Log:     log,
				Out:     stdout,
			},
			Base: cfg.Environment(os.LookupEnv),
			Log:  log,
		},
	}, nil
}
