// Package selectkeys provides a projection transformer that keeps only the
// configured payload keys. It learns nothing.
package selectkeys

import (
	"context"
	"fmt"

	"github.com/vk/fitgrid/internal/payload"
	"github.com/vk/fitgrid/internal/registry"
	"github.com/vk/fitgrid/internal/transform"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Projection keeps the listed keys and drops everything else. A listed key
// missing from the input is an error, not a silent drop.
type Projection struct {
	Keys []string
}

// Fit implements transform.Unsupervised.
func (Projection) Fit(context.Context, payload.Payload) error { return nil }

// Transform implements transform.Unsupervised.
func (p Projection) Transform(_ context.Context, in payload.Payload) (payload.Payload, error) {
	out := make(payload.Payload, len(p.Keys))
	for _, key := range p.Keys {
		value, ok := in[key]
		if !ok {
			return nil, fmt.Errorf("selectkeys: input has no key %q", key)
		}
		out[key] = value
	}
	return out, nil
}

// Register registers the selectkeys factory.
func (m *Module) Register(r *registry.Registry) {
	r.Register("selectkeys", func(args map[string]any) (transform.Variant, error) {
		p := Projection{}
		keys, ok := args["keys"]
		if !ok {
			return transform.Variant{}, fmt.Errorf("selectkeys: keys argument is required")
		}
		list, ok := keys.([]any)
		if !ok {
			return transform.Variant{}, fmt.Errorf("selectkeys: keys must be a list, got %T", keys)
		}
		for _, item := range list {
			str, ok := item.(string)
			if !ok {
				return transform.Variant{}, fmt.Errorf("selectkeys: keys must be strings, got %T", item)
			}
			p.Keys = append(p.Keys, str)
		}
		return transform.FromUnsupervised(p), nil
	})
}
