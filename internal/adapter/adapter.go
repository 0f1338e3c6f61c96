// Package adapter translates outputs gathered from predecessor nodes into the
// exact argument payload a transformer expects, driven by declarative recipes.
//
// A recipe is a closed tagged union built from explicit constructors. The
// shape of the result is a build-time choice, never deduced from the shape of
// the data:
//
//	Literal(v)                 the value itself
//	Extract("source", "key")   one field of one gathered input
//	Seq(r1, r2, ...)           each sub-recipe resolved in order, as []any
//	Map(map[string]Recipe)     each value resolved, as Payload
//	MapKV(e1, e2, ...)         keys AND values resolved, as Payload
//	Reduced(fn, r1, r2, ...)   Seq result folded through fn (First when nil)
//
// Recipes nest arbitrarily.
package adapter

import (
	"fmt"
	"sort"

	"github.com/vk/fitgrid/internal/payload"
)

// Error reports a recipe that referenced a source or field absent from the
// gathered inputs.
type Error struct {
	Source string
	Key    string
}

func (e *Error) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("no such input: %q", e.Source)
	}
	return fmt.Sprintf("input %q has no key %q in its result", e.Source, e.Key)
}

// Reducer folds the resolved elements of a Reduced recipe into one value.
type Reducer func(items []any) (any, error)

// First is the default reducer. It fails on an empty list rather than invent
// a zero value.
func First(items []any) (any, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("cannot take first item of an empty list")
	}
	return items[0], nil
}

// Recipe is one rule of the translation. Implementations are the constructors
// in this package; the union is closed.
type Recipe interface {
	resolve(inputs map[string]payload.Payload) (any, error)
}

type literal struct{ value any }

type extract struct{ source, key string }

type seq struct{ recipes []Recipe }

type mapping struct{ entries map[string]Recipe }

// Entry is one key/value pair of a MapKV recipe.
type Entry struct {
	Key   Recipe
	Value Recipe
}

type kvMapping struct{ entries []Entry }

type reduced struct {
	recipes []Recipe
	fn      Reducer
}

// Literal returns a recipe that resolves to v verbatim.
func Literal(v any) Recipe { return literal{value: v} }

// Extract returns a recipe that pulls one field from one gathered input.
func Extract(source, key string) Recipe { return extract{source: source, key: key} }

// Seq returns a recipe that resolves each sub-recipe in order into a []any.
func Seq(recipes ...Recipe) Recipe { return seq{recipes: recipes} }

// Map returns a recipe that resolves each entry value into a payload keyed by
// the entry names.
func Map(entries map[string]Recipe) Recipe { return mapping{entries: entries} }

// MapKV returns a recipe that resolves both keys and values. Entries resolve
// in order; every key recipe must resolve to a string.
func MapKV(entries ...Entry) Recipe { return kvMapping{entries: entries} }

// Reduced resolves the sub-recipes like Seq, then applies fn to the list. A
// nil fn means First.
func Reduced(fn Reducer, recipes ...Recipe) Recipe {
	if fn == nil {
		fn = First
	}
	return reduced{recipes: recipes, fn: fn}
}

func (r literal) resolve(map[string]payload.Payload) (any, error) {
	return r.value, nil
}

func (r extract) resolve(inputs map[string]payload.Payload) (any, error) {
	source, ok := inputs[r.source]
	if !ok {
		return nil, &Error{Source: r.source}
	}
	value, ok := source[r.key]
	if !ok {
		return nil, &Error{Source: r.source, Key: r.key}
	}
	return value, nil
}

func (r seq) resolve(inputs map[string]payload.Payload) (any, error) {
	items := make([]any, 0, len(r.recipes))
	for _, sub := range r.recipes {
		item, err := sub.resolve(inputs)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (r mapping) resolve(inputs map[string]payload.Payload) (any, error) {
	out := make(payload.Payload, len(r.entries))
	for name, sub := range r.entries {
		value, err := sub.resolve(inputs)
		if err != nil {
			return nil, err
		}
		out[name] = value
	}
	return out, nil
}

func (r kvMapping) resolve(inputs map[string]payload.Payload) (any, error) {
	out := make(payload.Payload, len(r.entries))
	for _, entry := range r.entries {
		key, err := entry.Key.resolve(inputs)
		if err != nil {
			return nil, err
		}
		name, ok := key.(string)
		if !ok {
			return nil, fmt.Errorf("map key recipe resolved to %T, want string", key)
		}
		value, err := entry.Value.resolve(inputs)
		if err != nil {
			return nil, err
		}
		out[name] = value
	}
	return out, nil
}

func (r reduced) resolve(inputs map[string]payload.Payload) (any, error) {
	items, err := seq{recipes: r.recipes}.resolve(inputs)
	if err != nil {
		return nil, err
	}
	return r.fn(items.([]any))
}

// Adapter resolves a set of named recipes against gathered inputs.
type Adapter struct {
	// Recipes maps each argument name the transformer expects to the recipe
	// producing its value.
	Recipes map[string]Recipe
}

// New returns an Adapter over the given recipes.
func New(recipes map[string]Recipe) *Adapter {
	return &Adapter{Recipes: recipes}
}

// Adapt resolves every recipe independently against the gathered inputs.
// Partial results of one entry are never visible to another. Recipes resolve
// in sorted argument-name order so the first failing recipe, and with it the
// reported error, does not depend on map iteration order.
func (a *Adapter) Adapt(inputs map[string]payload.Payload) (payload.Payload, error) {
	names := make([]string, 0, len(a.Recipes))
	for name := range a.Recipes {
		names = append(names, name)
	}
	sort.Strings(names)

	adapted := make(payload.Payload, len(a.Recipes))
	for _, name := range names {
		value, err := a.Recipes[name].resolve(inputs)
		if err != nil {
			return nil, fmt.Errorf("adapting %q: %w", name, err)
		}
		adapted[name] = value
	}
	return adapted, nil
}
