package build

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/NeoGeographyToolkit/binarybuilder/internal/env"
)

// Target is a resolved request to build one registered package.
type Target struct {
	Name string
	New  Constructor
}

// Driver builds an ordered list of packages, stopping at the first failure.
type Driver struct {
	Registry *Registry
	Machine  *Machine
	Base     *env.Environment // frozen before the first package is built
	Log      logrus.FieldLogger
}

// Resolve maps names to targets in the given order; no names selects the
// registry's default list. Every unknown name is reported together,
// before anything is built.
func (d *Driver) Resolve(names []string) ([]Target, error) {
	if len(names) == 0 {
		names = d.Registry.Default()
	}
	var (
		targets []Target
		unknown []string
	)
	for _, n := range names {
		c, err := d.Registry.Lookup(n)
		if err != nil {
			unknown = append(unknown, n)
			continue
		}
		targets = append(targets, Target{Name: n, New: c})
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPackage, strings.Join(unknown, ", "))
	}
	return targets, nil
}

// Instantiate constructs t against a fresh overlay of the base
// environment. Construction failures are configuration errors of the
// init stage.
func (d *Driver) Instantiate(t Target) (*Package, *env.Environment, error) {
	overlay := d.Base.Clone()
	pkg, err := t.New(d.Machine.Arch, overlay)
	if err != nil {
		return nil, nil, &PackageError{Package: t.Name, Stage: InitStage, Kind: KindConfiguration, Err: err}
	}
	return pkg, overlay, nil
}

// Run builds names in order. The first failing package stops the run;
// packages completed before it keep their results.
func (d *Driver) Run(ctx context.Context, names []string) error {
	targets, err := d.Resolve(names)
	if err != nil {
		return err
	}
	d.Base.Freeze()
	log := d.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	for _, t := range targets {
		pkg, overlay, err := d.Instantiate(t)
		if err != nil {
			return err
		}
		if err := d.Machine.Build(ctx, pkg, overlay); err != nil {
			return err
		}
		log.WithField("package", pkg.Name).Info("built")
	}
	return nil
}

// Reset removes the completion markers of names from stage from onwards,
// so the next run repeats those stages.
func (d *Driver) Reset(names []string, from Stage) error {
	targets, err := d.Resolve(names)
	if err != nil {
		return err
	}
	buildDir, err := d.Base.Get(env.BuildDir)
	if err != nil {
		return err
	}
	markers := MarkersFor(buildDir)
	for _, t := range targets {
		pkg, _, err := d.Instantiate(t)
		if err != nil {
			return err
		}
		if err := markers.ClearFrom(pkg.Name, from); err != nil {
			return err
		}
	}
	return nil
}
