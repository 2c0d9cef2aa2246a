package arch

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrNoVariant is matched by every *VariantError.
var ErrNoVariant = errors.New("no variant for architecture")

// VariantError reports a variant table without an entry for an architecture.
type VariantError struct {
	Arch  Arch
	Known []string
}

func (e *VariantError) Error() string {
	return fmt.Sprintf("no variant for %s or %s (known: %s)", e.Arch.Dist, e.Arch.OSBits(), strings.Join(e.Known, ", "))
}

func (e *VariantError) Unwrap() error { return ErrNoVariant }

// Locator is a source address paired with its checksum.
type Locator struct {
	Src      string
	Checksum string
}

// Variants maps architecture keys (a distribution name or an os+bits key)
// to platform-specific values.
type Variants[T any] map[string]T

// Lookup returns the entry for a's distribution, falling back to its
// os+bits key. A missing entry is an error, never a default.
func (v Variants[T]) Lookup(a Arch) (T, string, error) {
	if a.Dist != "" {
		if val, ok := v[a.Dist]; ok {
			return val, a.Dist, nil
		}
	}
	if val, ok := v[a.OSBits()]; ok {
		return val, a.OSBits(), nil
	}
	var zero T
	known := make([]string, 0, len(v))
	for k := range v {
		known = append(known, k)
	}
	slices.Sort(known)
	return zero, "", &VariantError{Arch: a, Known: known}
}
