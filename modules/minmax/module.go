// Package minmax provides a min-max scaling transformer: Fit learns the
// per-key minimum and maximum of numeric series, Transform rescales them to
// [0, 1]. The learned ranges persist across runs.
package minmax

import (
	"context"
	"fmt"
	"os"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/vk/fitgrid/internal/payload"
	"github.com/vk/fitgrid/internal/registry"
	"github.com/vk/fitgrid/internal/transform"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Range is the learned bounds of one series.
type Range struct {
	Min float64 `msgpack:"min"`
	Max float64 `msgpack:"max"`
}

// Scaler learns per-key ranges on fit and rescales on transform.
type Scaler struct {
	// Keys restricts fitting to the listed payload keys. Empty means every
	// key holding a numeric series.
	Keys []string

	ranges map[string]Range
}

// Fit implements transform.Unsupervised.
func (s *Scaler) Fit(_ context.Context, in payload.Payload) error {
	keys := s.Keys
	if len(keys) == 0 {
		keys = payload.Keys(in)
	}
	s.ranges = map[string]Range{}
	for _, key := range keys {
		series, err := numericSeries(in, key)
		if err != nil {
			if len(s.Keys) == 0 {
				continue // fitting everything: skip non-numeric keys
			}
			return err
		}
		if len(series) == 0 {
			return fmt.Errorf("minmax: key %q holds an empty series", key)
		}
		r := Range{Min: series[0], Max: series[0]}
		for _, v := range series[1:] {
			if v < r.Min {
				r.Min = v
			}
			if v > r.Max {
				r.Max = v
			}
		}
		s.ranges[key] = r
	}
	return nil
}

// Transform implements transform.Unsupervised. Keys without a learned range
// pass through unchanged.
func (s *Scaler) Transform(_ context.Context, in payload.Payload) (payload.Payload, error) {
	if s.ranges == nil {
		return nil, fmt.Errorf("minmax: transform called before fit or load")
	}
	out := payload.Clone(in)
	for key, r := range s.ranges {
		series, err := numericSeries(in, key)
		if err != nil {
			return nil, err
		}
		span := r.Max - r.Min
		scaled := make([]float64, len(series))
		for i, v := range series {
			if span == 0 {
				scaled[i] = 0
			} else {
				scaled[i] = (v - r.Min) / span
			}
		}
		out[key] = scaled
	}
	return out, nil
}

// Save implements transform.Persistable.
func (s *Scaler) Save(path string) error {
	data, err := msgpack.Marshal(s.ranges)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Load implements transform.Persistable.
func (s *Scaler) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return msgpack.Unmarshal(data, &s.ranges)
}

// numericSeries reads a payload key as a []float64, accepting the loosely
// typed shapes the codec and manifest layers produce.
func numericSeries(in payload.Payload, key string) ([]float64, error) {
	raw, ok := in[key]
	if !ok {
		return nil, fmt.Errorf("minmax: input has no key %q", key)
	}
	switch v := raw.(type) {
	case []float64:
		return v, nil
	case []any:
		out := make([]float64, len(v))
		for i, item := range v {
			f, ok := toFloat(item)
			if !ok {
				return nil, fmt.Errorf("minmax: key %q item %d is not numeric (%T)", key, i, item)
			}
			out[i] = f
		}
		return out, nil
	default:
		return nil, fmt.Errorf("minmax: key %q is not a numeric series (%T)", key, raw)
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// Register registers the minmax scaler factory.
func (m *Module) Register(r *registry.Registry) {
	r.Register("minmax", func(args map[string]any) (transform.Variant, error) {
		s := &Scaler{}
		if keys, ok := args["keys"]; ok {
			list, ok := keys.([]any)
			if !ok {
				return transform.Variant{}, fmt.Errorf("minmax: keys must be a list, got %T", keys)
			}
			for _, item := range list {
				str, ok := item.(string)
				if !ok {
					return transform.Variant{}, fmt.Errorf("minmax: keys must be strings, got %T", item)
				}
				s.Keys = append(s.Keys, str)
			}
		}
		return transform.FromUnsupervised(s), nil
	})
}
