package manifest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/fitgrid/internal/payload"
	"github.com/vk/fitgrid/internal/registry"
	"github.com/vk/fitgrid/internal/transform"
	"github.com/vk/fitgrid/modules/meanlabel"
	"github.com/vk/fitgrid/modules/minmax"
	"github.com/vk/fitgrid/modules/passthrough"
)

// probeModule registers a loader factory that captures the arguments it was
// built with.
type probeModule struct {
	capture *map[string]any
}

func (m *probeModule) Register(r *registry.Registry) {
	r.Register("probe", func(args map[string]any) (transform.Variant, error) {
		*m.capture = args
		return transform.FromDataSource(transform.Passthrough{}), nil
	})
}

const scalingManifest = `
pipeline "scaling" {
  loader "raw" {
    uses = "passthrough"
  }

  step "scaled" {
    uses = "minmax"
    arguments {
      keys = ["X"]
    }
    input {
      X = ["raw", "X"]
    }
  }

  step "model" {
    uses = "meanlabel"
    input {
      X = ["scaled", "X"]
    }
    supervision {
      y = ["raw", "y"]
    }
  }

  run {
    outputs = ["model"]
    fit     = ["scaled", "model"]
  }
}
`

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	r := registry.New()
	(&passthrough.Module{}).Register(r)
	(&minmax.Module{}).Register(r)
	(&meanlabel.Module{}).Register(r)
	return r
}

func writeManifest(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_BuildsRunnablePipeline(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	path := writeManifest(t, t.TempDir(), "scaling.hcl", scalingManifest)

	// --- Act ---
	pipelines, err := Load(context.Background(), []string{path}, testRegistry(t), nil)

	// --- Assert ---
	require.NoError(t, err)
	require.Len(t, pipelines, 1)
	p := pipelines[0]
	assert.Equal(t, "scaling", p.Name)
	assert.Equal(t, []string{"model"}, p.Outputs)
	assert.Equal(t, []string{"scaled", "model"}, p.Fit)

	// The built graph runs end to end against external data.
	external := payload.Payload{
		"X": []any{0.0, 10.0},
		"y": []any{2.0, 4.0},
	}
	results, err := p.Graph.Run(context.Background(), external, p.Outputs, p.Fit)
	require.NoError(t, err)
	assert.Equal(t, []float64{3.0, 3.0}, results["model"]["prediction"])
}

func TestLoad_DirectoryScansEveryManifest(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	dir := t.TempDir()
	writeManifest(t, dir, "a.hcl", `
pipeline "first" {
  loader "raw" {
    uses = "passthrough"
  }
  run {
    outputs = ["raw"]
  }
}
`)
	writeManifest(t, dir, "b.hcl", `
pipeline "second" {
  loader "raw" {
    uses = "passthrough"
  }
}
`)

	// --- Act ---
	pipelines, err := Load(context.Background(), []string{dir}, testRegistry(t), nil)

	// --- Assert ---
	require.NoError(t, err)
	require.Len(t, pipelines, 2)
	assert.Equal(t, "first", pipelines[0].Name)
	assert.Equal(t, "second", pipelines[1].Name)
	assert.Empty(t, pipelines[1].Outputs, "a pipeline without a run block has no defaults")
}

func TestLoad_DuplicatePipelineNamesAcrossFiles(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	dir := t.TempDir()
	decl := `
pipeline "dup" {
  loader "raw" {
    uses = "passthrough"
  }
}
`
	writeManifest(t, dir, "a.hcl", decl)
	writeManifest(t, dir, "b.hcl", decl)

	// --- Act ---
	_, err := Load(context.Background(), []string{dir}, testRegistry(t), nil)

	// --- Assert ---
	require.Error(t, err)
	assert.Contains(t, err.Error(), `pipeline "dup"`)
	assert.Contains(t, err.Error(), "already declared")
}

func TestLoad_MissingPath(t *testing.T) {
	t.Parallel()

	_, err := Load(context.Background(), []string{"/no/such/manifest.hcl"}, testRegistry(t), nil)

	require.Error(t, err)
}

func TestLoad_SyntaxError(t *testing.T) {
	t.Parallel()

	path := writeManifest(t, t.TempDir(), "broken.hcl", `pipeline "broken" {`)

	_, err := Load(context.Background(), []string{path}, testRegistry(t), nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing")
}

func TestLoad_UnknownTransformer(t *testing.T) {
	t.Parallel()

	path := writeManifest(t, t.TempDir(), "bad.hcl", `
pipeline "bad" {
  loader "raw" {
    uses = "no_such_loader"
  }
}
`)

	_, err := Load(context.Background(), []string{path}, testRegistry(t), nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), `"no_such_loader"`)
}

func TestLoad_WiringMustBePairs(t *testing.T) {
	t.Parallel()

	path := writeManifest(t, t.TempDir(), "bad.hcl", `
pipeline "bad" {
  loader "raw" {
    uses = "passthrough"
  }
  step "scaled" {
    uses = "minmax"
    input {
      X = "raw"
    }
  }
}
`)

	_, err := Load(context.Background(), []string{path}, testRegistry(t), nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "[source_node, source_key] pair")
}

func TestLoad_StepsWireOnlyFromEarlierNodes(t *testing.T) {
	t.Parallel()

	// The "scaled" step references a node declared after it.
	path := writeManifest(t, t.TempDir(), "bad.hcl", `
pipeline "bad" {
  loader "raw" {
    uses = "passthrough"
  }
  step "scaled" {
    uses = "minmax"
    input {
      X = ["later", "X"]
    }
  }
  step "later" {
    uses = "minmax"
    input {
      X = ["raw", "X"]
    }
  }
}
`)

	_, err := Load(context.Background(), []string{path}, testRegistry(t), nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), `"later"`)
}

func TestAttrValues_ConvertsLiteralShapes(t *testing.T) {
	t.Parallel()

	// --- Arrange: exercise the conversion through a real manifest block.
	path := writeManifest(t, t.TempDir(), "args.hcl", `
pipeline "args" {
  loader "raw" {
    uses = "probe"
    arguments {
      text    = "hello"
      number  = 2.5
      flag    = true
      list    = ["a", "b"]
      nested  = { inner = 1 }
      nothing = null
    }
  }
}
`)
	var captured map[string]any
	r := registry.New()
	(&probeModule{capture: &captured}).Register(r)

	// --- Act ---
	_, err := Load(context.Background(), []string{path}, r, nil)

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, "hello", captured["text"])
	assert.Equal(t, 2.5, captured["number"])
	assert.Equal(t, true, captured["flag"])
	assert.Equal(t, []any{"a", "b"}, captured["list"])
	assert.Equal(t, map[string]any{"inner": 1.0}, captured["nested"])
	assert.Nil(t, captured["nothing"])
}
