package build

import (
	"errors"
	"fmt"

	"github.com/NeoGeographyToolkit/binarybuilder/internal/arch"
	"github.com/NeoGeographyToolkit/binarybuilder/internal/env"
	"github.com/NeoGeographyToolkit/binarybuilder/internal/fetch"
	"github.com/NeoGeographyToolkit/binarybuilder/internal/runner"
)

// Kind classifies the cause of a PackageError.
type Kind int

const (
	KindPackage       Kind = iota // any other failure
	KindCommand                   // an external command failed
	KindVerification              // downloaded content failed its checksum
	KindConfiguration             // the package or host is misconfigured
	KindUndefined                 // a template named an undefined variable
)

func (k Kind) String() string {
	switch k {
	case KindCommand:
		return "command"
	case KindVerification:
		return "verification"
	case KindConfiguration:
		return "configuration"
	case KindUndefined:
		return "undefined variable"
	}
	return "package"
}

// InitStage names the construction step that precedes fetch.
const InitStage = "init"

// PackageError is the single failure record of a build run.
type PackageError struct {
	Package string
	Stage   string
	Kind    Kind
	Err     error
}

func (e *PackageError) Error() string {
	return fmt.Sprintf("package %s: %s: %v", e.Package, e.Stage, e.Err)
}

func (e *PackageError) Unwrap() error { return e.Err }

// ConfigError reports a package that cannot be built as configured, such
// as a required directory missing from the host.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return e.Msg }

// Configf returns a *ConfigError with a formatted message.
func Configf(format string, args ...any) error {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}

// classify derives the Kind of err from the types it wraps.
func classify(err error) Kind {
	var (
		sumErr *fetch.ChecksumError
		cmdErr *runner.CommandError
		undErr *env.UndefinedError
		cfgErr *ConfigError
	)
	switch {
	case errors.As(err, &sumErr):
		return KindVerification
	case errors.As(err, &undErr):
		return KindUndefined
	case errors.As(err, &cfgErr), errors.Is(err, arch.ErrNoVariant):
		return KindConfiguration
	case errors.As(err, &cmdErr):
		return KindCommand
	}
	return KindPackage
}

func newPackageError(pkg, stage string, err error) *PackageError {
	var pe *PackageError
	if errors.As(err, &pe) {
		return pe
	}
	return &PackageError{Package: pkg, Stage: stage, Kind: classify(err), Err: err}
}
