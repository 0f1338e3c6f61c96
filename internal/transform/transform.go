// Package transform defines the polymorphic unit of computation wrapped by
// every pipeline node.
//
// Node capabilities form a closed set: a node either loads data, fits and
// transforms without supervision, or fits with separate supervision labels.
// The engines switch on Kind exhaustively; there is no runtime capability
// probing beyond the optional Persistable interface.
package transform

import (
	"context"

	"github.com/vk/fitgrid/internal/payload"
)

// Kind tags the capability of a node.
type Kind int

const (
	// KindDataSource nodes only load data; they never fit or transform.
	KindDataSource Kind = iota
	// KindUnsupervised nodes fit on their input payload alone.
	KindUnsupervised
	// KindSupervised nodes fit on an input payload plus separate supervision
	// labels.
	KindSupervised
)

// String implements fmt.Stringer for log and error output.
func (k Kind) String() string {
	switch k {
	case KindDataSource:
		return "dataloader"
	case KindUnsupervised:
		return "unsupervised"
	case KindSupervised:
		return "supervised"
	default:
		return "unknown"
	}
}

// DataSource loads data from the caller-supplied external payload.
type DataSource interface {
	LoadData(ctx context.Context, external payload.Payload) (payload.Payload, error)
}

// Unsupervised estimates its parameters from the input payload alone and
// applies them in Transform. Transform must not estimate anything.
type Unsupervised interface {
	Fit(ctx context.Context, in payload.Payload) error
	Transform(ctx context.Context, in payload.Payload) (payload.Payload, error)
}

// Supervised estimates its parameters from an input payload and a separate
// supervision payload.
type Supervised interface {
	Fit(ctx context.Context, in, labels payload.Payload) error
	Transform(ctx context.Context, in payload.Payload) (payload.Payload, error)
}

// Persistable is implemented by transformers whose learned state survives
// process restarts. Transformers that learn nothing may skip it; the store
// writes a marker artifact in that case so existence checks keep working.
type Persistable interface {
	Save(path string) error
	Load(path string) error
}

// FitTransform runs Fit followed by Transform on the same inputs.
func FitTransform(ctx context.Context, t Unsupervised, in payload.Payload) (payload.Payload, error) {
	if err := t.Fit(ctx, in); err != nil {
		return nil, err
	}
	return t.Transform(ctx, in)
}

// FitTransformSupervised runs Fit followed by Transform on the same inputs.
func FitTransformSupervised(ctx context.Context, t Supervised, in, labels payload.Payload) (payload.Payload, error) {
	if err := t.Fit(ctx, in, labels); err != nil {
		return nil, err
	}
	return t.Transform(ctx, in)
}

// Variant carries exactly one capability, tagged by Kind.
type Variant struct {
	kind   Kind
	source DataSource
	unsup  Unsupervised
	sup    Supervised
}

// FromDataSource wraps a loader into a Variant.
func FromDataSource(s DataSource) Variant {
	return Variant{kind: KindDataSource, source: s}
}

// FromUnsupervised wraps an unsupervised transformer into a Variant.
func FromUnsupervised(t Unsupervised) Variant {
	return Variant{kind: KindUnsupervised, unsup: t}
}

// FromSupervised wraps a supervised transformer into a Variant.
func FromSupervised(t Supervised) Variant {
	return Variant{kind: KindSupervised, sup: t}
}

// Kind returns the capability tag.
func (v Variant) Kind() Kind { return v.kind }

// DataSource returns the wrapped loader; valid only for KindDataSource.
func (v Variant) DataSource() DataSource { return v.source }

// Unsupervised returns the wrapped transformer; valid only for KindUnsupervised.
func (v Variant) Unsupervised() Unsupervised { return v.unsup }

// Supervised returns the wrapped transformer; valid only for KindSupervised.
func (v Variant) Supervised() Supervised { return v.sup }

// Persistable returns the wrapped transformer's persistence hooks, if any.
func (v Variant) Persistable() (Persistable, bool) {
	var t any
	switch v.kind {
	case KindUnsupervised:
		t = v.unsup
	case KindSupervised:
		t = v.sup
	default:
		return nil, false
	}
	p, ok := t.(Persistable)
	return p, ok
}
