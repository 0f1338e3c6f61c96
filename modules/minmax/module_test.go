package minmax

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/fitgrid/internal/payload"
	"github.com/vk/fitgrid/internal/registry"
	"github.com/vk/fitgrid/internal/transform"
)

func TestScaler_FitTransform(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	s := &Scaler{Keys: []string{"X"}}
	in := payload.Payload{
		"X":     []any{2.0, 4.0, 6.0},
		"label": "kept",
	}

	// --- Act ---
	out, err := transform.FitTransform(context.Background(), s, in)

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0.5, 1}, out["X"])
	assert.Equal(t, "kept", out["label"], "unlisted keys pass through")
}

func TestScaler_FitAllNumericKeysByDefault(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	s := &Scaler{}
	in := payload.Payload{
		"a":    []any{0.0, 10.0},
		"b":    []float64{1.0, 3.0},
		"note": "not numeric, skipped",
	}

	// --- Act ---
	out, err := transform.FitTransform(context.Background(), s, in)

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1}, out["a"])
	assert.Equal(t, []float64{0, 1}, out["b"])
	assert.Equal(t, "not numeric, skipped", out["note"])
}

func TestScaler_ConstantSeriesScalesToZero(t *testing.T) {
	t.Parallel()

	s := &Scaler{Keys: []string{"X"}}
	out, err := transform.FitTransform(context.Background(), s, payload.Payload{"X": []any{5.0, 5.0}})

	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0}, out["X"])
}

func TestScaler_TransformAppliesLearnedRange(t *testing.T) {
	t.Parallel()

	// --- Arrange: fit on one payload, transform another.
	s := &Scaler{Keys: []string{"X"}}
	require.NoError(t, s.Fit(context.Background(), payload.Payload{"X": []any{0.0, 10.0}}))

	// --- Act ---
	out, err := s.Transform(context.Background(), payload.Payload{"X": []any{5.0, 20.0}})

	// --- Assert: values outside the fitted range extrapolate past 1.
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 2.0}, out["X"])
}

func TestScaler_TransformBeforeFit(t *testing.T) {
	t.Parallel()

	s := &Scaler{Keys: []string{"X"}}
	_, err := s.Transform(context.Background(), payload.Payload{"X": []any{1.0}})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "before fit or load")
}

func TestScaler_FitErrors(t *testing.T) {
	t.Parallel()

	t.Run("explicit key missing", func(t *testing.T) {
		t.Parallel()
		s := &Scaler{Keys: []string{"absent"}}
		err := s.Fit(context.Background(), payload.Payload{"X": []any{1.0}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), `"absent"`)
	})

	t.Run("explicit key not numeric", func(t *testing.T) {
		t.Parallel()
		s := &Scaler{Keys: []string{"X"}}
		err := s.Fit(context.Background(), payload.Payload{"X": "words"})
		require.Error(t, err)
	})

	t.Run("empty series", func(t *testing.T) {
		t.Parallel()
		s := &Scaler{Keys: []string{"X"}}
		err := s.Fit(context.Background(), payload.Payload{"X": []any{}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "empty series")
	})
}

func TestScaler_PersistRoundTrip(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	fitted := &Scaler{Keys: []string{"X"}}
	require.NoError(t, fitted.Fit(context.Background(), payload.Payload{"X": []any{0.0, 4.0}}))
	path := filepath.Join(t.TempDir(), "scaler")

	// --- Act ---
	require.NoError(t, fitted.Save(path))
	restored := &Scaler{}
	require.NoError(t, restored.Load(path))
	out, err := restored.Transform(context.Background(), payload.Payload{"X": []any{2.0}})

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5}, out["X"])
}

func TestFactory(t *testing.T) {
	t.Parallel()

	r := registry.New()
	(&Module{}).Register(r)

	t.Run("with keys argument", func(t *testing.T) {
		t.Parallel()
		v, err := r.Build("minmax", map[string]any{"keys": []any{"X", "Z"}})
		require.NoError(t, err)
		assert.Equal(t, transform.KindUnsupervised, v.Kind())
	})

	t.Run("keys must be a list of strings", func(t *testing.T) {
		t.Parallel()
		_, err := r.Build("minmax", map[string]any{"keys": "X"})
		require.Error(t, err)
		_, err = r.Build("minmax", map[string]any{"keys": []any{1}})
		require.Error(t, err)
	})
}
