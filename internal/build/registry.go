package build

import (
	"errors"
	"fmt"
	"slices"

	"github.com/NeoGeographyToolkit/binarybuilder/internal/arch"
	"github.com/NeoGeographyToolkit/binarybuilder/internal/env"
)

// ErrUnknownPackage is returned for names absent from the registry.
var ErrUnknownPackage = errors.New("unknown package")

// Constructor instantiates a package for an architecture. It receives the
// package's own overlay and may adjust it; returning an error aborts the
// run before any stage of that package executes.
type Constructor func(a arch.Arch, e *env.Environment) (*Package, error)

// Registry maps package names to constructors.
type Registry struct {
	ctors    map[string]Constructor
	defaults []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{ctors: map[string]Constructor{}}
}

// Register adds a constructor. Registering a name twice panics.
func (r *Registry) Register(name string, c Constructor) {
	if _, dup := r.ctors[name]; dup {
		panic(fmt.Sprintf("build: package %s registered twice", name))
	}
	r.ctors[name] = c
}

// Lookup returns the constructor registered as name.
func (r *Registry) Lookup(name string) (Constructor, error) {
	c, ok := r.ctors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPackage, name)
	}
	return c, nil
}

// Names returns every registered name, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.ctors))
	for n := range r.ctors {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// SetDefault records the list built when no names are requested. Every
// name must already be registered.
func (r *Registry) SetDefault(names ...string) error {
	for _, n := range names {
		if _, err := r.Lookup(n); err != nil {
			return err
		}
	}
	r.defaults = slices.Clone(names)
	return nil
}

// Default returns the default ordered list.
func (r *Registry) Default() []string {
	return slices.Clone(r.defaults)
}
