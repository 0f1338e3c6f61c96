// Package payload defines the untyped key-value mapping exchanged between
// pipeline nodes, and the default merge rule applied when a step has no
// adapter to disambiguate its inputs.
package payload

import (
	"fmt"
	"sort"
	"strings"
)

// Payload is the unit of data produced and consumed by every node. Keys are
// the only contract; values are opaque to the engine.
type Payload = map[string]any

// CollisionError reports a key that appeared in payloads gathered from more
// than one source. Which source should win is undefined, so the merge is
// rejected instead.
type CollisionError struct {
	// Collisions maps each ambiguous key to the sorted names of the sources
	// that produced it.
	Collisions map[string][]string
}

func (e *CollisionError) Error() string {
	keys := make([]string, 0, len(e.Collisions))
	for k := range e.Collisions {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("could not merge inputs, keys present in multiple sources:")
	for _, k := range keys {
		fmt.Fprintf(&b, " %q from [%s]", k, strings.Join(e.Collisions[k], ", "))
	}
	return b.String()
}

// Merge flattens per-source payloads into a single payload. A key present in
// two or more sources fails with a *CollisionError naming the key and every
// contributing source.
func Merge(bySource map[string]Payload) (Payload, error) {
	merged := Payload{}
	keyToSources := map[string][]string{}

	// Iterate sources in sorted order so merged values and error messages do
	// not depend on map iteration order.
	sources := make([]string, 0, len(bySource))
	for name := range bySource {
		sources = append(sources, name)
	}
	sort.Strings(sources)

	for _, name := range sources {
		for key, value := range bySource[name] {
			merged[key] = value
			keyToSources[key] = append(keyToSources[key], name)
		}
	}

	collisions := map[string][]string{}
	for key, names := range keyToSources {
		if len(names) > 1 {
			sort.Strings(names)
			collisions[key] = names
		}
	}
	if len(collisions) > 0 {
		return nil, &CollisionError{Collisions: collisions}
	}
	return merged, nil
}

// Clone returns a shallow copy of p. Values are shared; only the top-level
// mapping is fresh.
func Clone(p Payload) Payload {
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Keys returns the sorted key set of p.
func Keys(p Payload) []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
