package app

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vk/fitgrid/internal/ctxlog"
	"github.com/vk/fitgrid/internal/manifest"
	"github.com/vk/fitgrid/internal/payload"
)

// Run loads the manifests and executes every selected pipeline.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run started.")

	if a.config.MetricsPort > 0 {
		a.startMetricsServer(ctx)
		defer a.stopMetricsServer(ctx)
	}

	external, err := loadExternalData(a.config.DataPath)
	if err != nil {
		return err
	}

	pipelines, err := manifest.Load(ctx, []string{a.config.ManifestPath}, a.reg, a.metrics)
	if err != nil {
		return fmt.Errorf("loading manifests: %w", err)
	}
	a.logger.Debug("Pipelines built.", "count", len(pipelines))

	selected, err := a.selectPipelines(pipelines)
	if err != nil {
		return err
	}

	for _, p := range selected {
		if err := a.runPipeline(ctx, p, external); err != nil {
			return err
		}
	}
	a.logger.Info("All pipelines finished.", "count", len(selected))
	return nil
}

func (a *App) selectPipelines(pipelines []*manifest.Pipeline) ([]*manifest.Pipeline, error) {
	if a.config.Pipeline == "" {
		return pipelines, nil
	}
	for _, p := range pipelines {
		if p.Name == a.config.Pipeline {
			return []*manifest.Pipeline{p}, nil
		}
	}
	return nil, fmt.Errorf("pipeline %q not found in loaded manifests", a.config.Pipeline)
}

func (a *App) runPipeline(ctx context.Context, p *manifest.Pipeline, external payload.Payload) error {
	outputs := p.Outputs
	if len(a.config.Outputs) > 0 {
		outputs = a.config.Outputs
	}
	fit := p.Fit
	if len(a.config.Fit) > 0 {
		fit = a.config.Fit
	}
	if len(outputs) == 0 {
		return fmt.Errorf("pipeline %q declares no outputs and none were requested", p.Name)
	}

	a.logger.Info("Running pipeline.", "pipeline", p.Name, "outputs", outputs, "fit", fit)
	results, err := p.Graph.Run(ctx, external, outputs, fit)
	if err != nil {
		return fmt.Errorf("pipeline %q: %w", p.Name, err)
	}
	for name, out := range results {
		a.logger.Info("Output ready.", "pipeline", p.Name, "node", name, "keys", payload.Keys(out))
	}
	return nil
}

// loadExternalData reads the external run payload from a YAML file. An empty
// path yields an empty payload.
func loadExternalData(path string) (payload.Payload, error) {
	if path == "" {
		return payload.Payload{}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading external data %q: %w", path, err)
	}
	var data map[string]any
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decoding external data %q: %w", path, err)
	}
	return data, nil
}
