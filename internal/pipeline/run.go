package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/vk/fitgrid/internal/ctxlog"
	"github.com/vk/fitgrid/internal/graphviz"
	"github.com/vk/fitgrid/internal/payload"
	"github.com/vk/fitgrid/internal/transform"
)

// Run executes the subgraph needed to satisfy the requested outputs.
//
// All per-run output slots are cleared first. The set of nodes to execute is
// the ancestor closure of the requested outputs unioned with the ancestor
// closure of the fit targets. That induced subgraph runs in lexicographic
// topological order: independent nodes execute in name order, so runs are
// deterministic. Nodes named in fit are dispatched through fit_transform,
// every other transformer through transform, loaders through load_data
// against the external payload.
//
// The returned mapping has one entry per requested output name. Any node
// failure aborts the whole run; outputs computed before the failure keep
// whatever artifacts they produced.
func (g *Graph) Run(ctx context.Context, external payload.Payload, outputs, fit []string) (map[string]payload.Payload, error) {
	logger := ctxlog.FromContext(ctx)
	start := time.Now()
	defer func() {
		g.metrics.ObserveRunDuration(time.Since(start).Seconds())
	}()

	for _, name := range outputs {
		if _, ok := g.nodes[name]; !ok {
			return nil, &NameError{Node: name, Reason: "requested output is not in this graph"}
		}
	}
	fitSet := make(map[string]struct{}, len(fit))
	for _, name := range fit {
		if _, ok := g.nodes[name]; !ok {
			return nil, &NameError{Node: name, Reason: "fit target is not in this graph"}
		}
		fitSet[name] = struct{}{}
	}

	g.clearOutputs()

	needed := g.closure(append(append([]string{}, outputs...), fit...))
	order, err := g.topoOrder(needed)
	if err != nil {
		return nil, err
	}
	logger.Debug("Execution order resolved.", "nodes", order)

	for _, name := range order {
		n := g.nodes[name]
		_, fitting := fitSet[name]
		if err := g.execute(ctx, n, external, fitting); err != nil {
			g.metrics.ObserveFailure(name)
			return nil, err
		}
	}

	results := make(map[string]payload.Payload, len(outputs))
	for _, name := range outputs {
		results[name] = g.nodes[name].output
	}
	return results, nil
}

func (g *Graph) execute(ctx context.Context, n *node, external payload.Payload, fitting bool) error {
	logger := ctxlog.FromContext(ctx).With("node", n.name)

	var out payload.Payload
	var err error
	switch n.v.Kind() {
	case transform.KindDataSource:
		logger.Info("Loading data.")
		g.metrics.ObserveExecution(n.name, "load_data")
		out, err = n.v.DataSource().LoadData(ctx, external)

	case transform.KindSupervised:
		var in payload.Payload
		in, err = g.translate(n.name, func(e *edge) map[string]string { return e.inputs })
		if err != nil {
			return err
		}
		if fitting {
			var labels payload.Payload
			labels, err = g.translate(n.name, func(e *edge) map[string]string { return e.supervision })
			if err != nil {
				return err
			}
			logger.Info("Fitting and transforming.", "inputs", payload.Keys(in), "labels", payload.Keys(labels))
			g.metrics.ObserveExecution(n.name, "fit_transform")
			out, err = transform.FitTransformSupervised(ctx, n.v.Supervised(), in, labels)
		} else {
			logger.Info("Transforming.", "inputs", payload.Keys(in))
			g.metrics.ObserveExecution(n.name, "transform")
			out, err = n.v.Supervised().Transform(ctx, in)
		}

	case transform.KindUnsupervised:
		var in payload.Payload
		in, err = g.translate(n.name, func(e *edge) map[string]string { return e.inputs })
		if err != nil {
			return err
		}
		if fitting {
			logger.Info("Fitting and transforming.", "inputs", payload.Keys(in))
			g.metrics.ObserveExecution(n.name, "fit_transform")
			out, err = transform.FitTransform(ctx, n.v.Unsupervised(), in)
		} else {
			logger.Info("Transforming.", "inputs", payload.Keys(in))
			g.metrics.ObserveExecution(n.name, "transform")
			out, err = n.v.Unsupervised().Transform(ctx, in)
		}

	default:
		return &KindError{Node: n.name, Want: "a recognized capability", Got: n.v.Kind()}
	}

	if err != nil {
		return fmt.Errorf("node %q: %w", n.name, err)
	}
	n.output = out
	n.hasOutput = true
	return nil
}

// translate replays one wiring channel of every in-edge of the node against
// the already-computed predecessor outputs.
func (g *Graph) translate(name string, channel func(*edge) map[string]string) (payload.Payload, error) {
	out := payload.Payload{}

	// Sorted predecessor order keeps error reporting deterministic.
	froms := make([]string, 0)
	for key := range g.edges {
		if key.to == name {
			froms = append(froms, key.from)
		}
	}
	sort.Strings(froms)

	for _, from := range froms {
		e := g.edges[edgeKey{from: from, to: name}]
		src := g.nodes[from]
		if !src.hasOutput {
			return nil, fmt.Errorf("node %q: predecessor %q has no output yet", name, from)
		}
		for destKey, srcKey := range channel(e) {
			value, ok := src.output[srcKey]
			if !ok {
				return nil, fmt.Errorf("node %q: predecessor %q has no key %q in its output", name, from, srcKey)
			}
			out[destKey] = value
		}
	}
	return out, nil
}

// closure returns the given nodes plus all their ancestors.
func (g *Graph) closure(names []string) map[string]struct{} {
	needed := map[string]struct{}{}
	var visit func(string)
	visit = func(name string) {
		if _, seen := needed[name]; seen {
			return
		}
		needed[name] = struct{}{}
		for key := range g.edges {
			if key.to == name {
				visit(key.from)
			}
		}
	}
	for _, name := range names {
		visit(name)
	}
	return needed
}

// topoOrder returns the induced subgraph in lexicographic topological order:
// among nodes whose dependencies are all satisfied, the smallest name runs
// first.
func (g *Graph) topoOrder(needed map[string]struct{}) ([]string, error) {
	indegree := map[string]int{}
	for name := range needed {
		indegree[name] = 0
	}
	for key := range g.edges {
		_, fromIn := needed[key.from]
		_, toIn := needed[key.to]
		if fromIn && toIn {
			indegree[key.to]++
		}
	}

	ready := make([]string, 0, len(needed))
	for name, deg := range indegree {
		if deg == 0 {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(needed))
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		order = append(order, name)

		unlocked := make([]string, 0)
		for key := range g.edges {
			if key.from != name {
				continue
			}
			if _, ok := needed[key.to]; !ok {
				continue
			}
			indegree[key.to]--
			if indegree[key.to] == 0 {
				unlocked = append(unlocked, key.to)
			}
		}
		sort.Strings(unlocked)
		ready = mergeSorted(ready, unlocked)
	}

	if len(order) != len(needed) {
		remaining := make([]string, 0)
		for name := range needed {
			if indegree[name] > 0 {
				remaining = append(remaining, name)
			}
		}
		sort.Strings(remaining)
		return nil, fmt.Errorf("cycle detected involving nodes %v", remaining)
	}
	return order, nil
}

// mergeSorted merges two sorted string slices into one sorted slice.
func mergeSorted(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i] <= b[j] {
			out = append(out, a[i])
			i++
		} else {
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}

// Structure builds the graph description of every node and edge for
// visualization tooling.
func (g *Graph) Structure() graphviz.Structure {
	st := graphviz.NewStructure()
	for name := range g.nodes {
		st.AddNode(name)
	}
	for key := range g.edges {
		st.AddEdge(key.from, key.to)
	}
	return st
}
