// Package registry binds the transformer names used in pipeline manifests to
// the Go constructors compiled into the binary.
package registry

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/vk/fitgrid/internal/transform"
)

// Module is the interface a built-in transformer package implements to be
// registered.
type Module interface {
	Register(r *Registry)
}

// Factory builds a transformer variant from the manifest-supplied arguments.
type Factory func(args map[string]any) (transform.Variant, error)

// Registry holds the named factories for a single application instance.
type Registry struct {
	factories map[string]Factory
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// Register binds a factory to a name. Registering the same name twice is a
// programmer error and panics.
func (r *Registry) Register(name string, f Factory) {
	if _, exists := r.factories[name]; exists {
		panic(fmt.Sprintf("transformer factory %q already registered", name))
	}
	slog.Debug("Registering transformer factory.", "name", name)
	r.factories[name] = f
}

// Build instantiates the transformer registered under name.
func (r *Registry) Build(name string, args map[string]any) (transform.Variant, error) {
	f, ok := r.factories[name]
	if !ok {
		return transform.Variant{}, fmt.Errorf("unknown transformer %q (registered: %v)", name, r.Names())
	}
	return f(args)
}

// Names returns the sorted registered names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
