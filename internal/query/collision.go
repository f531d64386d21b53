package query

import (
	"sort"

	"github.com/scigolib/spatialidx/internal/entitystore"
	"github.com/scigolib/spatialidx/internal/geometry"
)

// CollisionPair is an unordered pair of colliding entities, normalized so
// A < B for dedup across nodes a spanned entity occupies.
type CollisionPair struct {
	A, B entitystore.EntityID
}

func pairKey(a, b entitystore.EntityID) CollisionPair {
	if a > b {
		a, b = b, a
	}
	return CollisionPair{A: a, B: b}
}

// collides is the narrow phase: AABB-AABB if both entities carry bounds,
// AABB-point if only one does, point-point within GeometricTolerance
// otherwise.
func (e *Engine[K, C]) collides(a, b entitystore.EntityID) bool {
	posA, okA := e.entities.GetPosition(a)
	posB, okB := e.entities.GetPosition(b)
	if !okA || !okB {
		return false
	}
	boundsA, _ := e.entities.GetBounds(a)
	boundsB, _ := e.entities.GetBounds(b)

	switch {
	case boundsA != nil && boundsB != nil:
		return boundsA.Intersects(*boundsB)
	case boundsA != nil:
		return boundsA.ContainsPoint(posB)
	case boundsB != nil:
		return boundsB.ContainsPoint(posA)
	default:
		return geometry.DistanceSquared(posA, posB) <= geometry.GeometricTolerance*geometry.GeometricTolerance
	}
}

func sortPairs(pairs []CollisionPair) {
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].A != pairs[j].A {
			return pairs[i].A < pairs[j].A
		}
		return pairs[i].B < pairs[j].B
	})
}

// FindAllCollisions returns every colliding entity pair in the index.
func (e *Engine[K, C]) FindAllCollisions() Result[CollisionPair] {
	snap := e.nodes.Snapshot()
	seen := make(map[CollisionPair]struct{})
	var out []CollisionPair

	for node := range snap.InOrder() {
		ids := node.EntityIDs()
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				if !e.collides(ids[i], ids[j]) {
					continue
				}
				p := pairKey(ids[i], ids[j])
				if _, ok := seen[p]; ok {
					continue
				}
				seen[p] = struct{}{}
				out = append(out, p)
			}
		}
	}

	sortPairs(out)
	return Result[CollisionPair]{items: out}
}

// FindCollisions returns every entity colliding with id, checked against the
// occupants of every cell id currently spans.
func (e *Engine[K, C]) FindCollisions(id entitystore.EntityID) Result[entitystore.EntityID] {
	locs, ok := e.entities.Locations(id)
	if !ok {
		return Result[entitystore.EntityID]{}
	}

	seen := map[entitystore.EntityID]struct{}{id: {}}
	var out []entitystore.EntityID
	for _, key := range locs {
		node, ok := e.nodes.Get(key)
		if !ok {
			continue
		}
		for _, peer := range node.EntityIDs() {
			if _, ok := seen[peer]; ok {
				continue
			}
			if !e.collides(id, peer) {
				continue
			}
			seen[peer] = struct{}{}
			out = append(out, peer)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return Result[entitystore.EntityID]{items: out}
}

// FindCollisionsInRegion returns every colliding pair whose cell overlaps
// region.
func (e *Engine[K, C]) FindCollisionsInRegion(region geometry.AABB) Result[CollisionPair] {
	snap := e.nodes.Snapshot()
	seen := make(map[CollisionPair]struct{})
	var out []CollisionPair

	for node := range snap.InOrder() {
		cell := e.flavor.Bounds(node.Key)
		if !region.Intersects(cell) {
			continue
		}
		ids := node.EntityIDs()
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				if !e.collides(ids[i], ids[j]) {
					continue
				}
				p := pairKey(ids[i], ids[j])
				if _, ok := seen[p]; ok {
					continue
				}
				seen[p] = struct{}{}
				out = append(out, p)
			}
		}
	}

	sortPairs(out)
	return Result[CollisionPair]{items: out}
}
