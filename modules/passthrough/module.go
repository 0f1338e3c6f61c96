// Package passthrough provides the most basic data loader: it hands the
// external run payload through unchanged. An optional "key" argument narrows
// the load to one sub-payload of the external data.
package passthrough

import (
	"context"
	"fmt"

	"github.com/vk/fitgrid/internal/payload"
	"github.com/vk/fitgrid/internal/registry"
	"github.com/vk/fitgrid/internal/transform"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Loader loads the external payload, or one sub-payload of it.
type Loader struct {
	// Key, when non-empty, selects data[Key] as the output instead of the
	// whole external payload. The selected value must itself be a payload.
	Key string
}

// LoadData implements transform.DataSource.
func (l *Loader) LoadData(_ context.Context, external payload.Payload) (payload.Payload, error) {
	if l.Key == "" {
		return payload.Clone(external), nil
	}
	part, ok := external[l.Key]
	if !ok {
		return nil, fmt.Errorf("external data has no key %q", l.Key)
	}
	sub, ok := part.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("external data key %q is not a payload mapping", l.Key)
	}
	return payload.Clone(sub), nil
}

// Register registers the passthrough loader factory.
func (m *Module) Register(r *registry.Registry) {
	r.Register("passthrough", func(args map[string]any) (transform.Variant, error) {
		l := &Loader{}
		if key, ok := args["key"]; ok {
			s, ok := key.(string)
			if !ok {
				return transform.Variant{}, fmt.Errorf("passthrough: key must be a string, got %T", key)
			}
			l.Key = s
		}
		return transform.FromDataSource(l), nil
	})
}
