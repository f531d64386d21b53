// Package query is the query kernel (C7): kNN, range, ray, frustum, sphere/
// plane/convex-hull/proximity, and collision detection, all built on the
// same bound -> iterate keys -> refine skeleton over a node store snapshot.
package query

import (
	"iter"

	"github.com/scigolib/spatialidx/internal/entitystore"
	"github.com/scigolib/spatialidx/internal/keys"
	"github.com/scigolib/spatialidx/internal/nodestore"
)

// Engine is the query kernel, generic over the key flavor K and the
// caller's content type C. It never mutates the node or entity stores. Each
// query walks a Snapshot of the node store's key index taken at its start;
// node contents and the entity store are read live, and kNN, ray and
// single-entity collision queries also look nodes up in the live store.
type Engine[K keys.Key, C any] struct {
	flavor   keys.Flavor[K]
	nodes    *nodestore.Store[K]
	entities *entitystore.Store[K, C]
}

// New builds a query engine over the given node/entity stores.
func New[K keys.Key, C any](flavor keys.Flavor[K], nodes *nodestore.Store[K], entities *entitystore.Store[K, C]) *Engine[K, C] {
	return &Engine[K, C]{flavor: flavor, nodes: nodes, entities: entities}
}

// Result wraps every query entry point's output: a materialized slice (the
// common case) that also exposes a lazy iter.Seq view, matching the
// teacher's ChunkIterator Next()/Chunk() idiom adapted to Go 1.23
// range-over-func. Restartable: calling All() twice replays from the start.
type Result[T any] struct {
	items []T
}

// All returns a lazy, restartable sequence over the result items.
func (r Result[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		for _, item := range r.items {
			if !yield(item) {
				return
			}
		}
	}
}

// Slice returns the materialized result, owned by the caller.
func (r Result[T]) Slice() []T { return r.items }

// Len returns the number of items in the result.
func (r Result[T]) Len() int { return len(r.items) }
