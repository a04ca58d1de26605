// Package registry provides an immutable, case-insensitive lookup from a name
// to a strategy value. It backs the URL scheme and auth scheme tables.
package registry

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

var (
	// ErrEmptyName is returned when a value is registered without a name.
	ErrEmptyName = errors.New("registry: empty name")
	// ErrDuplicate is returned when a name is registered twice.
	ErrDuplicate = errors.New("registry: duplicate name")
	// ErrNilValue is returned when a nil value is registered.
	ErrNilValue = errors.New("registry: nil value")
)

// Registry maps lowercase names to values. It is safe for concurrent reads.
type Registry[T any] struct {
	entries map[string]T
}

// Lookup returns the value registered under name, ignoring case.
func (r *Registry[T]) Lookup(name string) (T, bool) {
	var zero T
	if r == nil {
		return zero, false
	}
	v, ok := r.entries[strings.ToLower(name)]
	return v, ok
}

// Names returns the registered names, sorted.
func (r *Registry[T]) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered entries.
func (r *Registry[T]) Len() int {
	if r == nil {
		return 0
	}
	return len(r.entries)
}

type entry[T any] struct {
	name  string
	value T
}

// Builder accumulates registrations. Errors are reported by Build.
type Builder[T any] struct {
	entries []entry[T]
}

// NewBuilder creates an empty builder.
func NewBuilder[T any]() *Builder[T] {
	return &Builder[T]{}
}

// Register adds a value under name and returns the builder for chaining.
func (b *Builder[T]) Register(name string, value T) *Builder[T] {
	b.entries = append(b.entries, entry[T]{name: name, value: value})
	return b
}

// Build validates the registrations and freezes them into a Registry.
func (b *Builder[T]) Build() (*Registry[T], error) {
	entries := make(map[string]T, len(b.entries))
	for _, e := range b.entries {
		key := strings.ToLower(strings.TrimSpace(e.name))
		if key == "" {
			return nil, ErrEmptyName
		}
		if isNil(e.value) {
			return nil, fmt.Errorf("%w: %q", ErrNilValue, e.name)
		}
		if _, exists := entries[key]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicate, e.name)
		}
		entries[key] = e.value
	}
	return &Registry[T]{entries: entries}, nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
