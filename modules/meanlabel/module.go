// Package meanlabel provides a minimal supervised transformer: Fit learns
// the mean of a supervision series, Transform predicts that constant for
// every input row. It exists as the supervised baseline and as the reference
// wiring for supervised manifest nodes.
package meanlabel

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

// Predictor learns one number: the mean of the labels it was fitted on.
type Predictor struct {
	// LabelKey is the supervision payload key holding the label series.
	// Defaults to "y".
	LabelKey string
	// InputKey is the input payload key whose series length sizes the
	// prediction. Defaults to "X".
	InputKey string

	mean   float64
	fitted bool
}

func (p *Predictor) labelKey() string {
	if p.LabelKey == "" {
		return "y"
	}
	return p.LabelKey
}

func (p *Predictor) inputKey() string {
	if p.InputKey == "" {
		return "X"
	}
	return p.InputKey
}

// Fit implements transform.Supervised.
func (p *Predictor) Fit(_ context.Context, _, labels payload.Payload) error {
	series, err := floatSeries(labels, p.labelKey())
	if err != nil {
		return fmt.Errorf("meanlabel: %w", err)
	}
	if len(series) == 0 {
		return fmt.Errorf("meanlabel: label series %q is empty", p.labelKey())
	}
	var sum float64
	for _, v := range series {
		sum += v
	}
	p.mean = sum / float64(len(series))
	p.fitted = true
	return nil
}

// Transform implements transform.Supervised.
func (p *Predictor) Transform(_ context.Context, in payload.Payload) (payload.Payload, error) {
	if !p.fitted {
		return nil, fmt.Errorf("meanlabel: transform called before fit or load")
	}
	series, err := floatSeries(in, p.inputKey())
	if err != nil {
		return nil, fmt.Errorf("meanlabel: %w", err)
	}
	prediction := make([]float64, len(series))
	for i := range prediction {
		prediction[i] = p.mean
	}
	return payload.Payload{"prediction": prediction}, nil
}

type persistedState struct {
	Mean float64 `msgpack:"mean"`
}

// Save implements transform.Persistable.
func (p *Predictor) Save(path string) error {
	data, err := msgpack.Marshal(persistedState{Mean: p.mean})
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Load implements transform.Persistable.
func (p *Predictor) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var state persistedState
	if err := msgpack.Unmarshal(data, &state); err != nil {
		return err
	}
	p.mean = state.Mean
	p.fitted = true
	return nil
}

func floatSeries(p payload.Payload, key string) ([]float64, error) {
	raw, ok := p[key]
	if !ok {
		return nil, fmt.Errorf("payload has no key %q", key)
	}
	switch v := raw.(type) {
	case []float64:
		return v, nil
	case []any:
		out := make([]float64, len(v))
		for i, item := range v {
			f, ok := item.(float64)
			if !ok {
				return nil, fmt.Errorf("key %q item %d is not numeric (%T)", key, i, item)
			}
			out[i] = f
		}
		return out, nil
	default:
		return nil, fmt.Errorf("key %q is not a numeric series (%T)", key, raw)
	}
}

// Register registers the meanlabel factory.
func (m *Module) Register(r *registry.Registry) {
	r.Register("meanlabel", func(args map[string]any) (transform.Variant, error) {
		p := &Predictor{}
		if v, ok := args["label_key"]; ok {
			s, ok := v.(string)
			if !ok {
				return transform.Variant{}, fmt.Errorf("meanlabel: label_key must be a string, got %T", v)
			}
			p.LabelKey = s
		}
		if v, ok := args["input_key"]; ok {
			s, ok := v.(string)
			if !ok {
				return transform.Variant{}, fmt.Errorf("meanlabel: input_key must be a string, got %T", v)
			}
			p.InputKey = s
		}
		return transform.FromSupervised(p), nil
	})
}
