// Package manifest loads declarative pipeline definitions from .hcl files and
// builds them into executable graph-container pipelines, binding each node's
// `uses` name through the transformer registry.
package manifest

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/vk/fitgrid/internal/ctxlog"
	"github.com/vk/fitgrid/internal/fsutil"
	"github.com/vk/fitgrid/internal/pipeline"
	"github.com/vk/fitgrid/internal/registry"
	"github.com/vk/fitgrid/internal/telemetry"
)

// Pipeline is one built, runnable pipeline together with its declared run
// defaults.
type Pipeline struct {
	Name    string
	Graph   *pipeline.Graph
	Outputs []string
	Fit     []string
}

// Load parses every .hcl file reachable from the given paths (files or
// directories) and builds each declared pipeline. Pipeline names must be
// unique across all loaded files. Steps must be declared after the nodes they
// wire from.
func Load(ctx context.Context, paths []string, reg *registry.Registry, metrics *telemetry.Metrics) ([]*Pipeline, error) {
	logger := ctxlog.FromContext(ctx)

	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("manifest path %q: %w", path, err)
		}
		if info.IsDir() {
			found, err := fsutil.FindFilesByExtension(path, ".hcl")
			if err != nil {
				return nil, fmt.Errorf("scanning %q: %w", path, err)
			}
			files = append(files, found...)
		} else {
			files = append(files, path)
		}
	}
	sort.Strings(files)
	logger.Debug("Manifest files resolved.", "count", len(files))

	parser := hclparse.NewParser()
	var pipelines []*Pipeline
	seen := map[string]string{}

	for _, path := range files {
		hclFile, diags := parser.ParseHCLFile(path)
		if diags.HasErrors() {
			return nil, fmt.Errorf("parsing %q: %w", path, diags)
		}
		var file File
		if diags := gohcl.DecodeBody(hclFile.Body, nil, &file); diags.HasErrors() {
			return nil, fmt.Errorf("decoding %q: %w", path, diags)
		}

		for _, block := range file.Pipelines {
			if prev, dup := seen[block.Name]; dup {
				return nil, fmt.Errorf("pipeline %q in %q already declared in %q", block.Name, path, prev)
			}
			seen[block.Name] = path

			built, err := build(ctx, block, reg, metrics)
			if err != nil {
				return nil, fmt.Errorf("pipeline %q in %q: %w", block.Name, path, err)
			}
			pipelines = append(pipelines, built)
		}
	}
	return pipelines, nil
}

func build(ctx context.Context, block *PipelineBlock, reg *registry.Registry, metrics *telemetry.Metrics) (*Pipeline, error) {
	logger := ctxlog.FromContext(ctx).With("pipeline", block.Name)
	g := pipeline.New(pipeline.WithMetrics(metrics))

	for _, loader := range block.Loaders {
		args, err := attrValues(loader.Arguments)
		if err != nil {
			return nil, fmt.Errorf("loader %q: %w", loader.Name, err)
		}
		v, err := reg.Build(loader.Uses, args)
		if err != nil {
			return nil, fmt.Errorf("loader %q: %w", loader.Name, err)
		}
		logger.Debug("Adding loader node.", "name", loader.Name, "uses", loader.Uses)
		if err := g.AddNode(loader.Name, v, nil, nil); err != nil {
			return nil, err
		}
	}

	for _, step := range block.Steps {
		args, err := attrValues(step.Arguments)
		if err != nil {
			return nil, fmt.Errorf("step %q: %w", step.Name, err)
		}
		v, err := reg.Build(step.Uses, args)
		if err != nil {
			return nil, fmt.Errorf("step %q: %w", step.Name, err)
		}

		inputs, err := fieldMap(step.Input)
		if err != nil {
			return nil, fmt.Errorf("step %q input wiring: %w", step.Name, err)
		}
		supervision, err := fieldMap(step.Supervision)
		if err != nil {
			return nil, fmt.Errorf("step %q supervision wiring: %w", step.Name, err)
		}

		logger.Debug("Adding transformer node.", "name", step.Name, "uses", step.Uses, "kind", v.Kind().String())
		if err := g.AddNode(step.Name, v, inputs, supervision); err != nil {
			return nil, err
		}
	}

	built := &Pipeline{Name: block.Name, Graph: g}
	if block.Run != nil {
		built.Outputs = block.Run.Outputs
		built.Fit = block.Run.Fit
	}
	return built, nil
}

// fieldMap evaluates a wiring block into the engine's field map. Every
// attribute must evaluate to a ["source_node", "source_key"] pair.
func fieldMap(block *Args) (pipeline.FieldMap, error) {
	if block == nil {
		return nil, nil
	}
	raw, err := attrValues(block)
	if err != nil {
		return nil, err
	}
	fm := make(pipeline.FieldMap, len(raw))
	for destKey, value := range raw {
		pair, ok := value.([]any)
		if !ok || len(pair) != 2 {
			return nil, fmt.Errorf("%q must be a [source_node, source_key] pair", destKey)
		}
		node, okNode := pair[0].(string)
		key, okKey := pair[1].(string)
		if !okNode || !okKey {
			return nil, fmt.Errorf("%q must name its source node and key as strings", destKey)
		}
		fm[destKey] = pipeline.Source{Node: node, Key: key}
	}
	return fm, nil
}
