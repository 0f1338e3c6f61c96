// Package identity provides the f(x)=x transformer module.
package identity

import (
	"github.com/vk/fitgrid/internal/registry"
	"github.com/vk/fitgrid/internal/transform"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the identity transformer factory.
func (m *Module) Register(r *registry.Registry) {
	r.Register("identity", func(map[string]any) (transform.Variant, error) {
		return transform.FromUnsupervised(transform.Identity{}), nil
	})
}
