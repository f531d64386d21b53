// Package insertion is the insertion engine: single and batch entity
// insert, entity-spanning policy, and the single fail-fast validation gate
// every write path shares.
package insertion

import (
	"sort"

	"github.com/scigolib/spatialidx/internal/entitystore"
	"github.com/scigolib/spatialidx/internal/errs"
	"github.com/scigolib/spatialidx/internal/geometry"
	"github.com/scigolib/spatialidx/internal/keys"
	"github.com/scigolib/spatialidx/internal/lock"
	"github.com/scigolib/spatialidx/internal/nodestore"
)

// SpanningPolicy controls how an entity with bounds larger than its cell is
// replicated across nodes.
type SpanningPolicy int

const (
	// SingleNodeOnly keeps every entity in exactly its enclosing cell,
	// regardless of bounds size.
	SingleNodeOnly SpanningPolicy = iota
	// SpanToOverlapping replicates the entity into every cell, leaf or
	// internal, that its AABB overlaps.
	SpanToOverlapping
	// SpanToLeavesOnly enumerates the same cells at the insert level as
	// SpanToOverlapping; a cell in that set that has since been split
	// into an internal node is not skipped.
	SpanToLeavesOnly
)

// Validate is the single fail-fast gate for InvalidArgument: negative
// coordinates, coordinates past the domain, or inverted/out-of-range
// bounds. Every insert path calls it before any key is computed.
func Validate(pos geometry.Point, bounds *geometry.AABB) error {
	max := float64(keys.DomainExtent)
	if pos.X < 0 || pos.Y < 0 || pos.Z < 0 {
		return errs.New(errs.InvalidArgument, "insertion: negative position coordinate")
	}
	if pos.X >= max || pos.Y >= max || pos.Z >= max {
		return errs.New(errs.InvalidArgument, "insertion: position past domain extent")
	}
	if bounds == nil {
		return nil
	}
	if bounds.Min.X < 0 || bounds.Min.Y < 0 || bounds.Min.Z < 0 {
		return errs.New(errs.InvalidArgument, "insertion: negative bounds coordinate")
	}
	if bounds.Max.X >= max || bounds.Max.Y >= max || bounds.Max.Z >= max {
		return errs.New(errs.InvalidArgument, "insertion: bounds extend past domain extent")
	}
	if bounds.Min.X > bounds.Max.X || bounds.Min.Y > bounds.Max.Y || bounds.Min.Z > bounds.Max.Z {
		return errs.New(errs.InvalidArgument, "insertion: bounds min greater than max")
	}
	return nil
}

// DirtyNotifier receives a leaf node immediately after an insert leaves it
// over capacity. The balancer (internal/rebalance) is the concrete
// implementation; the insertion engine never imports it, to keep C5 and C6
// decoupled as the component design requires.
type DirtyNotifier[K keys.Key] interface {
	NotifyDirty(node *nodestore.Node[K])
}

// Engine is the insertion engine, generic over the key flavor K and the
// caller's content type C.
type Engine[K keys.Key, C any] struct {
	flavor        keys.Flavor[K]
	entities      *entitystore.Store[K, C]
	nodes         *nodestore.Store[K]
	locks         *lock.Manager[K]
	notifier      DirtyNotifier[K]
	capacityHint  uint32
	spanThreshold float64
}

// Config bundles Engine's constructor arguments.
type Config[K keys.Key, C any] struct {
	Flavor        keys.Flavor[K]
	Entities      *entitystore.Store[K, C]
	Nodes         *nodestore.Store[K]
	Locks         *lock.Manager[K]
	Notifier      DirtyNotifier[K]
	CapacityHint  uint32
	SpanThreshold float64
}

// New builds an insertion engine.
func New[K keys.Key, C any](cfg Config[K, C]) *Engine[K, C] {
	return &Engine[K, C]{
		flavor:        cfg.Flavor,
		entities:      cfg.Entities,
		nodes:         cfg.Nodes,
		locks:         cfg.Locks,
		notifier:      cfg.Notifier,
		capacityHint:  cfg.CapacityHint,
		spanThreshold: cfg.SpanThreshold,
	}
}

// Insert validates pos/bounds, computes the entity's key set under the
// given spanning policy, and registers it in every key of that set.
func (e *Engine[K, C]) Insert(
	pos geometry.Point,
	level uint8,
	content C,
	bounds *geometry.AABB,
	policy SpanningPolicy,
) (entitystore.EntityID, error) {
	if err := Validate(pos, bounds); err != nil {
		return 0, err
	}

	id := e.entities.Allocate()
	e.entities.Put(id, pos, bounds, content)

	keySet := e.computeKeySet(pos, level, bounds, policy)
	sort.Slice(keySet, func(i, j int) bool { return keySet[i].Less(keySet[j]) })

	if err := e.writeLocations(id, keySet); err != nil {
		e.entities.Remove(id)
		return 0, err
	}

	for _, k := range keySet {
		if node, ok := e.nodes.Get(k); ok && node.OverCapacity() && e.notifier != nil {
			e.notifier.NotifyDirty(node)
		}
	}

	return id, nil
}

// writeLocations registers id in every node of keySet, bypassing per-node
// locks entirely while bulk-loading is active (the bulk loader already
// holds the coarse index-wide lock and is the sole writer), or else taking
// all of keySet's write locks atomically via WithMultiWriteLock.
func (e *Engine[K, C]) writeLocations(id entitystore.EntityID, keySet []K) error {
	if e.locks.IsBulkLoading() {
		for _, k := range keySet {
			node := e.nodes.GetOrCreate(k, e.capacityHint)
			node.AddEntity(id)
			_ = e.entities.AddLocation(id, k)
		}
		return nil
	}

	sess := lock.NewSession[K]()
	return e.locks.WithMultiWriteLock(sess, keySet, func() error {
		for _, k := range keySet {
			node := e.nodes.GetOrCreate(k, e.capacityHint)
			node.AddEntity(id)
			_ = e.entities.AddLocation(id, k)
		}
		return nil
	})
}

// computeKeySet implements shouldSpan(size, nodeEdge) = spanningEnabled &&
// size > minSpanThreshold*nodeEdge: below threshold, or under
// SingleNodeOnly, the key set is just the enclosing cell; otherwise it is
// every cell at level overlapping bounds.
func (e *Engine[K, C]) computeKeySet(
	pos geometry.Point,
	level uint8,
	bounds *geometry.AABB,
	policy SpanningPolicy,
) []K {
	base := e.flavor.Enclosing(pos, level)
	if bounds == nil || policy == SingleNodeOnly {
		return []K{base}
	}

	nodeEdge := e.flavor.Bounds(base).MaxExtent()
	if bounds.MaxExtent() <= e.spanThreshold*nodeEdge {
		return []K{base}
	}

	return keys.Overlapping[K](e.flavor, *bounds, level)
}

// RemoveEntity drops id from every node it occupies and from the entity
// store. Returns false if id was unknown.
func (e *Engine[K, C]) RemoveEntity(id entitystore.EntityID) bool {
	locs, ok := e.entities.Remove(id)
	if !ok {
		return false
	}
	sort.Slice(locs, func(i, j int) bool { return locs[i].Less(locs[j]) })

	if e.locks.IsBulkLoading() {
		for _, k := range locs {
			if node, ok := e.nodes.Get(k); ok {
				node.RemoveEntity(id)
			}
		}
		return true
	}

	sess := lock.NewSession[K]()
	_ = e.locks.WithMultiWriteLock(sess, locs, func() error {
		for _, k := range locs {
			if node, ok := e.nodes.Get(k); ok {
				node.RemoveEntity(id)
			}
		}
		return nil
	})
	return true
}

// UpdateEntity moves id to newPos at level: remove from its old locations,
// re-run the insert path at the new position, preserving its content and
// bounds.
func (e *Engine[K, C]) UpdateEntity(id entitystore.EntityID, newPos geometry.Point, level uint8, policy SpanningPolicy) error {
	content, ok := e.entities.GetContent(id)
	if !ok {
		return errs.New(errs.NotFound, "insertion: UpdateEntity on unknown entity")
	}
	bounds, _ := e.entities.GetBounds(id)

	if err := Validate(newPos, bounds); err != nil {
		return err
	}

	e.RemoveEntity(id)

	keySet := e.computeKeySet(newPos, level, bounds, policy)
	sort.Slice(keySet, func(i, j int) bool { return keySet[i].Less(keySet[j]) })

	e.entities.Put(id, newPos, bounds, content)
	if err := e.writeLocations(id, keySet); err != nil {
		return err
	}
	for _, k := range keySet {
		if node, ok := e.nodes.Get(k); ok && node.OverCapacity() && e.notifier != nil {
			e.notifier.NotifyDirty(node)
		}
	}
	return nil
}
