package env

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrUndefined is matched by every *UndefinedError.
var ErrUndefined = errors.New("undefined variable")

// UndefinedError reports the variables a lookup or template referenced
// that are not present in the Environment.
type UndefinedError struct {
	Names []string
}

func (e *UndefinedError) Error() string {
	return fmt.Sprintf("undefined variable: %s", strings.Join(e.Names, ", "))
}

func (e *UndefinedError) Unwrap() error { return ErrUndefined }

// Environment is an ordered mapping of build variables. The zero value is
// not usable; call New.
type Environment struct {
	keys   []string
	values map[string]string
	frozen bool
}

// New returns an Environment populated from alternating key, value pairs.
func New(kv ...string) *Environment {
	if len(kv)%2 != 0 {
		panic("env: New requires key/value pairs")
	}
	e := &Environment{values: make(map[string]string, len(kv)/2)}
	for i := 0; i < len(kv); i += 2 {
		e.Set(kv[i], kv[i+1])
	}
	return e
}

// Get returns the value of key or an *UndefinedError.
func (e *Environment) Get(key string) (string, error) {
	v, ok := e.values[key]
	if !ok {
		return "", &UndefinedError{Names: []string{key}}
	}
	return v, nil
}

// Lookup returns the value of key and whether it is present.
func (e *Environment) Lookup(key string) (string, bool) {
	v, ok := e.values[key]
	return v, ok
}

// Has reports whether key is present.
func (e *Environment) Has(key string) bool {
	_, ok := e.values[key]
	return ok
}

// Set stores value under key, keeping the original position of an existing key.
func (e *Environment) Set(key, value string) {
	e.mustBeMutable()
	if _, ok := e.values[key]; !ok {
		e.keys = append(e.keys, key)
	}
	e.values[key] = value
}

// Delete removes key if present.
func (e *Environment) Delete(key string) {
	e.mustBeMutable()
	if _, ok := e.values[key]; !ok {
		return
	}
	delete(e.values, key)
	e.keys = slices.DeleteFunc(e.keys, func(k string) bool { return k == key })
}

// Keys returns the variable names in insertion order.
func (e *Environment) Keys() []string {
	return slices.Clone(e.keys)
}

// Len returns the number of variables.
func (e *Environment) Len() int { return len(e.keys) }

// Clone returns an independent, mutable copy. Cloning a frozen base is how
// per-package overlays are made.
func (e *Environment) Clone() *Environment {
	c := &Environment{
		keys:   slices.Clone(e.keys),
		values: make(map[string]string, len(e.values)),
	}
	for k, v := range e.values {
		c.values[k] = v
	}
	return c
}

// Freeze makes e read-only. Set and Delete panic afterwards.
func (e *Environment) Freeze() { e.frozen = true }

// Frozen reports whether Freeze was called.
func (e *Environment) Frozen() bool { return e.frozen }

func (e *Environment) mustBeMutable() {
	if e.frozen {
		panic("env: modification of a frozen environment")
	}
}

// Environ returns the variables as KEY=VALUE pairs in insertion order.
func (e *Environment) Environ() []string {
	out := make([]string, 0, len(e.keys))
	for _, k := range e.keys {
		out = append(out, k+"="+e.values[k])
	}
	return out
}

// Render substitutes every %(NAME)s placeholder in tmpl. "%%" yields a
// literal "%". If any placeholder is undefined, Render returns "" and an
// *UndefinedError naming all of them.
func (e *Environment) Render(tmpl string) (string, error) {
	var (
		b       strings.Builder
		missing []string
	)
	for i := 0; i < len(tmpl); i++ {
		c := tmpl[i]
		if c != '%' || i+1 == len(tmpl) {
			b.WriteByte(c)
			continue
		}
		switch tmpl[i+1] {
		case '%':
			b.WriteByte('%')
			i++
			continue
		case '(':
			end := strings.Index(tmpl[i+2:], ")")
			if end < 0 || i+2+end+1 >= len(tmpl) || tmpl[i+2+end+1] != 's' {
				return "", fmt.Errorf("malformed placeholder at offset %d in %q", i, tmpl)
			}
			name := tmpl[i+2 : i+2+end]
			if v, ok := e.values[name]; ok {
				b.WriteString(v)
			} else if !slices.Contains(missing, name) {
				missing = append(missing, name)
			}
			i += 2 + end + 1
			continue
		}
		b.WriteByte(c)
	}
	if len(missing) > 0 {
		return "", &UndefinedError{Names: missing}
	}
	return b.String(), nil
}

// RenderAll renders every template. Either all succeed or none is returned.
func (e *Environment) RenderAll(tmpls []string) ([]string, error) {
	out := make([]string, 0, len(tmpls))
	var missing []string
	for _, t := range tmpls {
		s, err := e.Render(t)
		var uerr *UndefinedError
		if errors.As(err, &uerr) {
			for _, n := range uerr.Names {
				if !slices.Contains(missing, n) {
					missing = append(missing, n)
				}
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if len(missing) > 0 {
		return nil, &UndefinedError{Names: missing}
	}
	return out, nil
}

// AppendFlag appends a space-separated flag to key.
func (e *Environment) AppendFlag(key, flag string) {
	if cur := e.values[key]; cur != "" {
		flag = cur + " " + flag
	}
	e.Set(key, flag)
}

// StripFlags removes every whitespace-separated word of key for which drop
// returns true and returns the removed words. The key is deleted when
// nothing remains.
func (e *Environment) StripFlags(key string, drop func(flag string) bool) []string {
	cur, ok := e.values[key]
	if !ok {
		return nil
	}
	var kept, removed []string
	for _, f := range strings.Fields(cur) {
		if drop(f) {
			removed = append(removed, f)
			continue
		}
		kept = append(kept, f)
	}
	if len(kept) == 0 {
		e.Delete(key)
	} else {
		e.Set(key, strings.Join(kept, " "))
	}
	return removed
}
