package step

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vk/fitgrid/internal/ctxlog"
	"github.com/vk/fitgrid/internal/payload"
	"github.com/vk/fitgrid/internal/store"
	"github.com/vk/fitgrid/internal/transform"
)

// FitTransform executes this step and its full ancestor closure in dependency
// order, fitting every transformer that has no persisted parameters (or all
// of them under ForceFitting), and returns this step's output payload.
//
// Per-run memo slots across the closure are cleared before execution starts.
func (s *Step) FitTransform(ctx context.Context, data payload.Payload) (payload.Payload, error) {
	s.resetRun()
	start := time.Now()
	out, err := s.run(ctx, data, true)
	s.metrics.ObserveRunDuration(time.Since(start).Seconds())
	return out, err
}

// Transform executes like FitTransform but never fits: every participating
// transformer must already be persisted, otherwise the run fails with a
// *NotFittedError.
func (s *Step) Transform(ctx context.Context, data payload.Payload) (payload.Payload, error) {
	s.resetRun()
	start := time.Now()
	out, err := s.run(ctx, data, false)
	s.metrics.ObserveRunDuration(time.Since(start).Seconds())
	return out, err
}

// CleanCache removes the scratch output artifacts for this step and all its
// ancestors. Durable outputs and transformer artifacts are left in place;
// partial-run artifacts are deliberately resumable and this is the explicit
// cleanup entry point.
func (s *Step) CleanCache(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	for name := range s.AllSteps() {
		logger.Debug("Removing scratch output.", "step", name)
		if err := s.fs.RemoveOutput(store.Scratch, name); err != nil {
			return fmt.Errorf("cleaning cache of step %q: %w", name, err)
		}
	}
	return nil
}

// resetRun clears the per-run memo slot of every step in the closure.
func (s *Step) resetRun() {
	for _, st := range s.AllSteps() {
		st.output = nil
		st.hasOutput = false
	}
}

// run is the per-node recursion shared by FitTransform and Transform.
func (s *Step) run(ctx context.Context, data payload.Payload, fitting bool) (payload.Payload, error) {
	logger := ctxlog.FromContext(ctx).With("step", s.name)

	// Within one run each step executes at most once.
	if s.hasOutput {
		logger.Debug("Reusing output computed earlier in this run.")
		return s.output, nil
	}

	out, err := s.produce(ctx, data, fitting, logger)
	if err != nil {
		s.metrics.ObserveFailure(s.name)
		return nil, err
	}

	s.output = out
	s.hasOutput = true
	return out, nil
}

func (s *Step) produce(ctx context.Context, data payload.Payload, fitting bool, logger *slog.Logger) (payload.Payload, error) {
	// Fast paths: a scratch artifact from an earlier visit, then a durable
	// output the step was configured to prefer. ForceFitting disables both.
	if !s.forceFitting && s.fs.OutputExists(store.Scratch, s.name) {
		logger.Info("Loading cached output.")
		s.metrics.ObserveCacheHit(s.name, "scratch")
		return s.fs.LoadOutput(store.Scratch, s.name)
	}
	if !s.forceFitting && s.loadSavedOutput && s.fs.OutputExists(store.Durable, s.name) {
		logger.Info("Loading saved output.")
		s.metrics.ObserveCacheHit(s.name, "saved")
		return s.fs.LoadOutput(store.Durable, s.name)
	}

	var out payload.Payload
	var err error
	if s.kind() == transform.KindDataSource {
		logger.Info("Loading data.")
		s.metrics.ObserveExecution(s.name, "load_data")
		out, err = s.variant().DataSource().LoadData(ctx, data)
		if err != nil {
			return nil, fmt.Errorf("step %q loading data: %w", s.name, err)
		}
	} else {
		out, err = s.executeTransformer(ctx, data, fitting, logger)
		if err != nil {
			return nil, err
		}
	}

	if s.cacheOutput {
		logger.Debug("Caching output to scratch.")
		if err := s.fs.SaveOutput(store.Scratch, s.name, out); err != nil {
			return nil, fmt.Errorf("step %q caching output: %w", s.name, err)
		}
	}
	if s.saveOutput {
		logger.Debug("Saving output durably.")
		if err := s.fs.SaveOutput(store.Durable, s.name, out); err != nil {
			return nil, fmt.Errorf("step %q saving output: %w", s.name, err)
		}
	}
	return out, nil
}

func (s *Step) executeTransformer(ctx context.Context, data payload.Payload, fitting bool, logger *slog.Logger) (payload.Payload, error) {
	inputs, err := s.gather(ctx, data, fitting)
	if err != nil {
		return nil, err
	}

	var args payload.Payload
	if s.adapter != nil {
		logger.Debug("Adapting inputs.")
		args, err = s.adapter.Adapt(inputs)
		if err != nil {
			return nil, fmt.Errorf("step %q: %w", s.name, err)
		}
	} else {
		logger.Debug("Merging inputs.")
		args, err = payload.Merge(inputs)
		if err != nil {
			return nil, fmt.Errorf("step %q: %w", s.name, err)
		}
	}

	if err := s.resolveShared(logger); err != nil {
		return nil, err
	}

	v := s.variant()
	persisted := s.fs.TransformerExists(s.name)

	if persisted && !s.forceFitting {
		logger.Info("Loading fitted transformer and transforming.")
		p, _ := v.Persistable()
		if err := s.fs.LoadTransformer(s.name, p); err != nil {
			return nil, fmt.Errorf("step %q: %w", s.name, err)
		}
		s.metrics.ObserveExecution(s.name, "transform")
		out, err := s.callTransform(ctx, v, args)
		if err != nil {
			return nil, fmt.Errorf("step %q transforming: %w", s.name, err)
		}
		return out, nil
	}

	if !fitting {
		return nil, &NotFittedError{Step: s.name}
	}

	logger.Info("Fitting and transforming.")
	s.metrics.ObserveExecution(s.name, "fit_transform")
	out, err := s.callFitTransform(ctx, v, args, inputs)
	if err != nil {
		return nil, fmt.Errorf("step %q fitting: %w", s.name, err)
	}

	logger.Debug("Saving fitted transformer.")
	p, _ := v.Persistable()
	if err := s.fs.SaveTransformer(s.name, p); err != nil {
		return nil, fmt.Errorf("step %q saving transformer: %w", s.name, err)
	}
	return out, nil
}

// gather pulls declared external-data keys from the run payload and executes
// every predecessor step, collecting each output under the predecessor's name.
func (s *Step) gather(ctx context.Context, data payload.Payload, fitting bool) (map[string]payload.Payload, error) {
	inputs := make(map[string]payload.Payload, len(s.inputData)+len(s.inputSteps))
	for _, key := range s.inputData {
		part, ok := data[key]
		if !ok {
			return nil, fmt.Errorf("step %q: external input %q missing from run payload", s.name, key)
		}
		sub, ok := part.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("step %q: external input %q is not a payload mapping", s.name, key)
		}
		inputs[key] = sub
	}
	for _, pred := range s.inputSteps {
		out, err := pred.run(ctx, data, fitting)
		if err != nil {
			return nil, err
		}
		inputs[pred.name] = out
	}
	return inputs, nil
}

func (s *Step) callTransform(ctx context.Context, v transform.Variant, args payload.Payload) (payload.Payload, error) {
	switch v.Kind() {
	case transform.KindSupervised:
		return v.Supervised().Transform(ctx, args)
	default:
		return v.Unsupervised().Transform(ctx, args)
	}
}

func (s *Step) callFitTransform(ctx context.Context, v transform.Variant, args payload.Payload, inputs map[string]payload.Payload) (payload.Payload, error) {
	switch v.Kind() {
	case transform.KindSupervised:
		labels, err := s.supervision.Adapt(inputs)
		if err != nil {
			return nil, fmt.Errorf("resolving supervision: %w", err)
		}
		return transform.FitTransformSupervised(ctx, v.Supervised(), args, labels)
	default:
		return transform.FitTransform(ctx, v.Unsupervised(), args)
	}
}

// resolveShared copies the referenced step's persisted transformer artifact
// into this step's own slot, so the shared parameters dispatch under this
// step's name.
func (s *Step) resolveShared(logger *slog.Logger) error {
	if s.sharedFrom == nil {
		return nil
	}
	if !s.fs.TransformerExists(s.sharedFrom.name) {
		return &NotFittedError{Step: s.sharedFrom.name}
	}
	logger.Debug("Copying shared transformer artifact.", "from", s.sharedFrom.name)
	if err := s.fs.CopyTransformer(s.sharedFrom.name, s.name); err != nil {
		return fmt.Errorf("step %q: %w", s.name, err)
	}
	return nil
}
