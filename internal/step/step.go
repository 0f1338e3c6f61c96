// Package step implements the tree-recursive pipeline engine. A Step wraps
// one transformer (or data loader), owns references to its predecessor steps,
// and executes the whole ancestor closure depth-first on demand, with
// fit-or-transform dispatch and per-node output caching.
package step

import (
	"fmt"

	"github.com/vk/fitgrid/internal/adapter"
	"github.com/vk/fitgrid/internal/payload"
	"github.com/vk/fitgrid/internal/store"
	"github.com/vk/fitgrid/internal/telemetry"
	"github.com/vk/fitgrid/internal/transform"
)

// ConfigError reports an invalid step declaration.
type ConfigError struct {
	Step   string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("step %q: %s", e.Step, e.Reason)
}

// NotFittedError reports that a non-fitting execution path reached a step
// with no persisted transformer available. There is no implicit
// fit-on-transform.
type NotFittedError struct {
	Step string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("step %q has no fitted transformer", e.Step)
}

// Step is a named unit of the pipeline graph.
type Step struct {
	name string
	tr   transform.Variant

	// sharedFrom, when set, overrides tr: this step reuses the referenced
	// step's fitted transformer instead of owning one.
	sharedFrom *Step

	inputSteps []*Step
	inputData  []string

	adapter     *adapter.Adapter
	supervision *adapter.Adapter

	cacheOutput     bool
	saveOutput      bool
	loadSavedOutput bool
	forceFitting    bool

	fs      *store.FS
	metrics *telemetry.Metrics

	// Per-run memo. Valid only within one Run invocation; reset before each.
	output    payload.Payload
	hasOutput bool
}

// Option configures a Step at construction time.
type Option func(*Step)

// WithInputSteps declares the predecessor steps whose outputs feed this step.
func WithInputSteps(steps ...*Step) Option {
	return func(s *Step) { s.inputSteps = append(s.inputSteps, steps...) }
}

// WithInputData declares the external-data keys pulled from the run payload.
func WithInputData(keys ...string) Option {
	return func(s *Step) { s.inputData = append(s.inputData, keys...) }
}

// WithAdapter declares the recipes translating gathered inputs into the
// transformer's argument payload. Without an adapter, gathered payloads are
// merged flat and key collisions are fatal.
func WithAdapter(a *adapter.Adapter) Option {
	return func(s *Step) { s.adapter = a }
}

// WithSupervision declares the recipes producing the supervision labels for a
// supervised transformer's fit. Required for supervised steps, rejected for
// any other kind.
func WithSupervision(a *adapter.Adapter) Option {
	return func(s *Step) { s.supervision = a }
}

// WithTransformerFrom makes this step reuse another step's fitted
// transformer. The referenced step's persisted artifact is copied into this
// step's own slot before execution, so a validation branch can reuse a
// training branch's parameters without re-fitting.
func WithTransformerFrom(other *Step) Option {
	return func(s *Step) { s.sharedFrom = other }
}

// CacheOutput persists the step output under tmp/ after execution. A later
// visit to the same step loads the artifact instead of re-executing. Run
// CleanCache before re-running on new data.
func CacheOutput() Option {
	return func(s *Step) { s.cacheOutput = true }
}

// SaveOutput persists the step output durably under outputs/ after every
// execution.
func SaveOutput() Option {
	return func(s *Step) { s.saveOutput = true }
}

// LoadSavedOutput makes the step prefer a durably saved output over
// executing. Re-running on new data with this flag set loads stale outputs;
// use deliberately.
func LoadSavedOutput() Option {
	return func(s *Step) { s.loadSavedOutput = true }
}

// ForceFitting refits the transformer even when a persisted one exists, and
// disables the cached-output fast paths for this step.
func ForceFitting() Option {
	return func(s *Step) { s.forceFitting = true }
}

// WithMetrics attaches run metrics collection to this step.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Step) { s.metrics = m }
}

// New registers a step wrapping the given transformer variant. The name must
// be unique within the graph the step joins; collisions with any step already
// reachable through the declared predecessors are a *ConfigError. Disconnected
// graphs are not cross-checked.
func New(name string, tr transform.Variant, fs *store.FS, opts ...Option) (*Step, error) {
	if name == "" {
		return nil, &ConfigError{Step: name, Reason: "name must not be empty"}
	}
	if fs == nil {
		return nil, &ConfigError{Step: name, Reason: "artifact store must not be nil"}
	}

	s := &Step{name: name, tr: tr, fs: fs}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Step) validate() error {
	upstream := map[string]*Step{}
	for _, pred := range s.inputSteps {
		if err := pred.collect(upstream); err != nil {
			return err
		}
	}
	if existing, ok := upstream[s.name]; ok && existing != s {
		return &ConfigError{Step: s.name, Reason: "name already used by another step in this graph"}
	}

	kind := s.kind()
	switch kind {
	case transform.KindDataSource:
		if len(s.inputSteps) > 0 || s.adapter != nil {
			return &ConfigError{Step: s.name, Reason: "a data source only loads data; it takes no step inputs or adapter"}
		}
	case transform.KindSupervised:
		if s.supervision == nil {
			return &ConfigError{Step: s.name, Reason: "a supervised step requires supervision wiring"}
		}
	default:
		if s.supervision != nil {
			return &ConfigError{Step: s.name, Reason: fmt.Sprintf("supervision wiring is only valid for supervised steps, not %s", kind)}
		}
	}
	return nil
}

// Name returns the step's unique name.
func (s *Step) Name() string { return s.name }

// kind resolves the capability tag, following a shared-transformer reference.
func (s *Step) kind() transform.Kind {
	return s.variant().Kind()
}

// variant resolves the transformer variant, following a shared-transformer
// reference to the owning step.
func (s *Step) variant() transform.Variant {
	if s.sharedFrom != nil {
		return s.sharedFrom.variant()
	}
	return s.tr
}

// collect walks the upstream closure depth-first and records every step by
// name. Two distinct steps carrying the same name is a *ConfigError: they
// would share one artifact slot in the store.
func (s *Step) collect(into map[string]*Step) error {
	if existing, ok := into[s.name]; ok {
		if existing != s {
			return &ConfigError{Step: s.name, Reason: "name already used by another step in this graph"}
		}
		return nil
	}
	into[s.name] = s
	for _, pred := range s.inputSteps {
		if err := pred.collect(into); err != nil {
			return err
		}
	}
	return nil
}

// AllSteps returns every step in the upstream closure, keyed by name,
// including the step itself. Name collisions were rejected at construction
// time.
func (s *Step) AllSteps() map[string]*Step {
	all := map[string]*Step{}
	_ = s.collect(all)
	return all
}

// GetStep extracts a step by name from the upstream closure. The extracted
// step is a fully functional sub-pipeline.
func (s *Step) GetStep(name string) (*Step, bool) {
	st, ok := s.AllSteps()[name]
	return st, ok
}
