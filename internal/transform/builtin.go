package transform

import (
	"context"

	"github.com/vk/fitgrid/internal/payload"
)

// Identity passes its input through unchanged, f(x)=x. Fit is a no-op.
type Identity struct{}

// Fit implements Unsupervised.
func (Identity) Fit(context.Context, payload.Payload) error { return nil }

// Transform implements Unsupervised.
func (Identity) Transform(_ context.Context, in payload.Payload) (payload.Payload, error) {
	return payload.Clone(in), nil
}

// Func wraps a stateless function as an unsupervised transformer. Useful for
// one-off feature computations that learn nothing.
type Func struct {
	Fn func(in payload.Payload) (payload.Payload, error)
}

// Fit implements Unsupervised.
func (Func) Fit(context.Context, payload.Payload) error { return nil }

// Transform implements Unsupervised.
func (f Func) Transform(_ context.Context, in payload.Payload) (payload.Payload, error) {
	return f.Fn(in)
}

// Passthrough is the trivial data source: it hands the external payload back
// as this node's output.
type Passthrough struct{}

// LoadData implements DataSource.
func (Passthrough) LoadData(_ context.Context, external payload.Payload) (payload.Payload, error) {
	return payload.Clone(external), nil
}
