package graphviz

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteDOT_StableOrder(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	st := NewStructure()
	st.AddNode("sink")
	st.AddNode("src")
	st.AddNode("left")
	st.AddEdge("src", "left")
	st.AddEdge("left", "sink")
	// Duplicates collapse.
	st.AddNode("src")
	st.AddEdge("src", "left")

	// --- Act ---
	var buf bytes.Buffer
	err := st.WriteDOT(&buf, "pipeline")

	// --- Assert ---
	require.NoError(t, err)
	want := `digraph "pipeline" {
  "left";
  "sink";
  "src";
  "left" -> "sink";
  "src" -> "left";
}
`
	assert.Equal(t, want, buf.String())
}

func TestWriteDOT_EmptyStructure(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := NewStructure().WriteDOT(&buf, "empty")

	require.NoError(t, err)
	assert.Equal(t, "digraph \"empty\" {\n}\n", buf.String())
}
