package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/vk/fitgrid/internal/payload"
)

// fileParams is a minimal persistable transformer state for tests.
type fileParams struct {
	Mean float64
}

func (p *fileParams) Save(path string) error {
	data, err := msgpack.Marshal(p)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (p *fileParams) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return msgpack.Unmarshal(data, p)
}

func openTestStore(t *testing.T) *FS {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestOpen_CreatesLayout(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	root := t.TempDir()

	// --- Act ---
	s, err := Open(root)

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, root, s.Root())
	for _, dir := range []string{"transformers", "outputs", "tmp"} {
		info, statErr := os.Stat(filepath.Join(root, dir))
		require.NoError(t, statErr)
		assert.True(t, info.IsDir())
	}
}

func TestOpen_EmptyRootRejected(t *testing.T) {
	t.Parallel()

	_, err := Open("")

	require.Error(t, err)
}

func TestSaveLoadOutput_RoundTrip(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	s := openTestStore(t)
	original := payload.Payload{
		"X":     []any{1.0, 2.5},
		"label": "train",
	}

	// --- Act ---
	require.NoError(t, s.SaveOutput(Scratch, "node_a", original))
	loaded, err := s.LoadOutput(Scratch, "node_a")

	// --- Assert ---
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(original, loaded))
}

func TestOutputAreas_AreIndependent(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	s := openTestStore(t)
	require.NoError(t, s.SaveOutput(Scratch, "node_a", payload.Payload{"v": 1.0}))

	// --- Assert ---
	assert.True(t, s.OutputExists(Scratch, "node_a"))
	assert.False(t, s.OutputExists(Durable, "node_a"))
}

func TestRemoveOutput_MissingIsNotAnError(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)

	require.NoError(t, s.RemoveOutput(Durable, "never_saved"))
}

func TestCleanScratch_KeepsDurableArtifacts(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	s := openTestStore(t)
	require.NoError(t, s.SaveOutput(Scratch, "scratch_node", payload.Payload{"v": 1.0}))
	require.NoError(t, s.SaveOutput(Durable, "durable_node", payload.Payload{"v": 2.0}))

	// --- Act ---
	require.NoError(t, s.CleanScratch())

	// --- Assert ---
	assert.False(t, s.OutputExists(Scratch, "scratch_node"))
	assert.True(t, s.OutputExists(Durable, "durable_node"))
}

func TestTransformer_SaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	s := openTestStore(t)
	fitted := &fileParams{Mean: 3.25}

	// --- Act ---
	require.NoError(t, s.SaveTransformer("scaler", fitted))
	restored := &fileParams{}
	err := s.LoadTransformer("scaler", restored)

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, fitted, restored)
	assert.True(t, s.TransformerExists("scaler"))
}

func TestTransformer_MarkerForStatelessTransformers(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	s := openTestStore(t)
	require.False(t, s.TransformerExists("identity"))

	// --- Act ---
	require.NoError(t, s.SaveTransformer("identity", nil))

	// --- Assert ---
	assert.True(t, s.TransformerExists("identity"))
	assert.NoError(t, s.LoadTransformer("identity", nil))
	assert.Error(t, s.LoadTransformer("never_fitted", nil))
}

func TestCopyTransformer_SharesFittedState(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	s := openTestStore(t)
	require.NoError(t, s.SaveTransformer("train_scaler", &fileParams{Mean: 7.5}))

	// --- Act ---
	require.NoError(t, s.CopyTransformer("train_scaler", "test_scaler"))

	// --- Assert ---
	restored := &fileParams{}
	require.NoError(t, s.LoadTransformer("test_scaler", restored))
	assert.Equal(t, 7.5, restored.Mean)
}

func TestCopyTransformer_MissingSource(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)

	err := s.CopyTransformer("absent", "anywhere")

	require.Error(t, err)
	assert.Contains(t, err.Error(), `"absent"`)
}

func TestSaveOutput_LeavesNoPartialFile(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	s := openTestStore(t)

	// --- Act ---
	require.NoError(t, s.SaveOutput(Durable, "node_a", payload.Payload{"v": 1.0}))

	// --- Assert ---
	_, err := os.Stat(filepath.Join(s.Root(), "outputs", "node_a.partial"))
	assert.True(t, os.IsNotExist(err))
}
