// Package pipeline implements the graph-container engine: the DAG is stored
// explicitly as nodes plus edge-level field mappings, rather than each node
// owning references to its predecessors. A run computes the minimal ancestor
// subgraph needed for the requested outputs and executes it once, in
// lexicographic topological order.
package pipeline

import (
	"fmt"

	"github.com/vk/fitgrid/internal/payload"
	"github.com/vk/fitgrid/internal/telemetry"
	"github.com/vk/fitgrid/internal/transform"
)

// NameError reports a duplicate or unknown node name.
type NameError struct {
	Node   string
	Reason string
}

func (e *NameError) Error() string {
	return fmt.Sprintf("node %q: %s", e.Node, e.Reason)
}

// KindError reports a node capability that does not match what the operation
// requires.
type KindError struct {
	Node string
	Want string
	Got  transform.Kind
}

func (e *KindError) Error() string {
	return fmt.Sprintf("node %q: want %s, got %s", e.Node, e.Want, e.Got)
}

// Source addresses one field of one node's output payload.
type Source struct {
	Node string
	Key  string
}

// FieldMap wires a destination node's expected input keys to fields of
// predecessor outputs.
type FieldMap map[string]Source

// node is one vertex with its per-run output slot.
type node struct {
	name      string
	v         transform.Variant
	output    payload.Payload
	hasOutput bool
}

// edgeKey identifies a directed source→destination pair.
type edgeKey struct {
	from, to string
}

// edge carries the field mappings attached to one source→destination pair.
// Declarations are additive: wiring more keys onto an existing pair extends
// the maps instead of replacing them.
type edge struct {
	inputs      map[string]string // destination key -> source output key
	supervision map[string]string
}

// Graph is the explicit DAG container. Not safe for concurrent use; execution
// is single-threaded by design.
type Graph struct {
	nodes   map[string]*node
	edges   map[edgeKey]*edge
	metrics *telemetry.Metrics
}

// Option configures a Graph.
type Option func(*Graph)

// WithMetrics attaches run metrics collection.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(g *Graph) { g.metrics = m }
}

// New returns an empty Graph.
func New(opts ...Option) *Graph {
	g := &Graph{
		nodes: map[string]*node{},
		edges: map[edgeKey]*edge{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// AddDataLoader registers a data-source node. Loaders take no wiring; they
// read the external run payload directly.
func (g *Graph) AddDataLoader(name string, src transform.DataSource) error {
	return g.AddNode(name, transform.FromDataSource(src), nil, nil)
}

// AddSupervised registers a supervised transformer node with both an input
// field map and a supervision field map.
func (g *Graph) AddSupervised(name string, t transform.Supervised, inputs, supervision FieldMap) error {
	return g.AddNode(name, transform.FromSupervised(t), inputs, supervision)
}

// AddUnsupervised registers an unsupervised transformer node with an input
// field map only.
func (g *Graph) AddUnsupervised(name string, t transform.Unsupervised, inputs FieldMap) error {
	return g.AddNode(name, transform.FromUnsupervised(t), inputs, nil)
}

// AddNode registers a node of any capability, checking the wiring against
// what the capability requires: loaders take no wiring, supervised nodes need
// both channels, unsupervised nodes only the input channel. Duplicate names
// and references to unknown source nodes are *NameErrors.
func (g *Graph) AddNode(name string, v transform.Variant, inputs, supervision FieldMap) error {
	if _, exists := g.nodes[name]; exists {
		return &NameError{Node: name, Reason: "already exists in this graph"}
	}

	switch v.Kind() {
	case transform.KindDataSource:
		if len(inputs) > 0 || len(supervision) > 0 {
			return &KindError{Node: name, Want: "a node accepting wiring", Got: v.Kind()}
		}
	case transform.KindSupervised:
		if len(inputs) == 0 || len(supervision) == 0 {
			return &KindError{Node: name, Want: "supervised wiring on both channels", Got: v.Kind()}
		}
	case transform.KindUnsupervised:
		if len(supervision) > 0 {
			return &KindError{Node: name, Want: "input wiring only", Got: v.Kind()}
		}
	default:
		return &KindError{Node: name, Want: "a recognized capability", Got: v.Kind()}
	}

	for _, src := range inputs {
		if _, ok := g.nodes[src.Node]; !ok {
			return &NameError{Node: src.Node, Reason: fmt.Sprintf("unknown source wired into %q", name)}
		}
	}
	for _, src := range supervision {
		if _, ok := g.nodes[src.Node]; !ok {
			return &NameError{Node: src.Node, Reason: fmt.Sprintf("unknown supervision source wired into %q", name)}
		}
	}

	g.nodes[name] = &node{name: name, v: v}
	for destKey, src := range inputs {
		e := g.edge(src.Node, name)
		e.inputs[destKey] = src.Key
	}
	for destKey, src := range supervision {
		e := g.edge(src.Node, name)
		e.supervision[destKey] = src.Key
	}
	return nil
}

// edge returns the metadata for the given pair, creating it when the pair is
// wired for the first time.
func (g *Graph) edge(from, to string) *edge {
	key := edgeKey{from: from, to: to}
	e, ok := g.edges[key]
	if !ok {
		e = &edge{inputs: map[string]string{}, supervision: map[string]string{}}
		g.edges[key] = e
	}
	return e
}

// Node returns the transformer variant registered under name.
func (g *Graph) Node(name string) (transform.Variant, bool) {
	n, ok := g.nodes[name]
	if !ok {
		return transform.Variant{}, false
	}
	return n.v, true
}

// Output returns the cached output of a node from the most recent run.
func (g *Graph) Output(name string) (payload.Payload, bool) {
	n, ok := g.nodes[name]
	if !ok || !n.hasOutput {
		return nil, false
	}
	return n.output, true
}

// clearOutputs invalidates every per-run output slot.
func (g *Graph) clearOutputs() {
	for _, n := range g.nodes {
		n.output = nil
		n.hasOutput = false
	}
}
