// Package filters provides the background filter registry and the built-in
// pixel transforms.
package filters

import (
	"errors"
	"fmt"
	"image"
)

var (
	// ErrUnknownFilter is returned when looking up a filter id that was
	// never registered.
	ErrUnknownFilter = errors.New("filters: unknown filter")

	// ErrDuplicateFilter is returned when registering an id twice.
	ErrDuplicateFilter = errors.New("filters: duplicate filter id")
)

// Transform is a pure function from a full frame to a fully transformed
// frame. It must not depend on processing history: the same input always
// yields the same output. The compositor applies it to the whole frame and
// keeps the result only for background pixels.
type Transform func(src *image.RGBA) *image.RGBA

// Filter pairs a registered id with its transform.
type Filter struct {
	ID        string
	Transform Transform
}

// Registry maps filter ids to transforms, preserving registration order.
// Adding a filter never requires touching the compositor or the pipeline.
type Registry struct {
	order   []string
	byID    map[string]Transform
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]Transform)}
}

// Default returns a registry with the built-in filters registered:
// none, grayscale, sepia, rio.
func Default() *Registry {
	r := NewRegistry()
	// Registration of built-ins cannot collide.
	_ = r.Register(None, Identity)
	_ = r.Register(Grayscale, GrayscaleTransform)
	_ = r.Register(Sepia, SepiaTransform)
	_ = r.Register(Rio, RioTransform)
	return r
}

// Register adds a filter under id. Registering a duplicate id is rejected.
func (r *Registry) Register(id string, transform Transform) error {
	if _, ok := r.byID[id]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateFilter, id)
	}
	r.byID[id] = transform
	r.order = append(r.order, id)
	return nil
}

// Get returns the transform registered under id.
func (r *Registry) Get(id string) (Transform, error) {
	t, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFilter, id)
	}
	return t, nil
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	_, ok := r.byID[id]
	return ok
}

// IDs returns all registered ids in registration order.
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.order))
	copy(ids, r.order)
	return ids
}

// Filters returns all registered filters in registration order.
func (r *Registry) Filters() []Filter {
	fs := make([]Filter, 0, len(r.order))
	for _, id := range r.order {
		fs = append(fs, Filter{ID: id, Transform: r.byID[id]})
	}
	return fs
}

// Select returns the filters for the given ids, in the given order.
func (r *Registry) Select(ids []string) ([]Filter, error) {
	fs := make([]Filter, 0, len(ids))
	for _, id := range ids {
		t, err := r.Get(id)
		if err != nil {
			return nil, err
		}
		fs = append(fs, Filter{ID: id, Transform: t})
	}
	return fs, nil
}
