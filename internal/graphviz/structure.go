// Package graphviz defines the graph-structure description handed to
// visualization tooling. The engines produce it on demand; rendering is an
// external concern and nothing here depends on it succeeding.
package graphviz

import (
	"fmt"
	"io"
	"sort"
)

// Edge is one directed dependency, from source to destination node name.
type Edge struct {
	From string
	To   string
}

// Structure is the set of nodes and edges of a pipeline graph.
type Structure struct {
	Nodes map[string]struct{}
	Edges map[Edge]struct{}
}

// NewStructure returns an empty Structure.
func NewStructure() Structure {
	return Structure{
		Nodes: map[string]struct{}{},
		Edges: map[Edge]struct{}{},
	}
}

// AddNode records a node.
func (st Structure) AddNode(name string) {
	st.Nodes[name] = struct{}{}
}

// AddEdge records a directed dependency.
func (st Structure) AddEdge(from, to string) {
	st.Edges[Edge{From: from, To: to}] = struct{}{}
}

// WriteDOT writes the structure in Graphviz DOT format. Nodes and edges are
// emitted in sorted order so the output is stable.
func (st Structure) WriteDOT(w io.Writer, name string) error {
	if _, err := fmt.Fprintf(w, "digraph %q {\n", name); err != nil {
		return err
	}

	nodes := make([]string, 0, len(st.Nodes))
	for n := range st.Nodes {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)
	for _, n := range nodes {
		if _, err := fmt.Fprintf(w, "  %q;\n", n); err != nil {
			return err
		}
	}

	edges := make([]Edge, 0, len(st.Edges))
	for e := range st.Edges {
		edges = append(edges, e)
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})
	for _, e := range edges {
		if _, err := fmt.Fprintf(w, "  %q -> %q;\n", e.From, e.To); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintln(w, "}")
	return err
}
