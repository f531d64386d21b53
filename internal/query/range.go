package query

import (
	"sort"

	"github.com/scigolib/spatialidx/internal/entitystore"
	"github.com/scigolib/spatialidx/internal/geometry"
)

// BoundedBy returns every entity whose cell is wholly contained in volume's
// AABB (the node's cell, not the entity's exact position, so a leaf that
// straddles the boundary is excluded even if some of its entities would
// individually qualify).
func (e *Engine[K, C]) BoundedBy(volume geometry.Volume) Result[entitystore.EntityID] {
	return e.rangeQuery(volume.AABB(), true)
}

// Bounding returns every entity whose cell merely overlaps volume's AABB.
func (e *Engine[K, C]) Bounding(volume geometry.Volume) Result[entitystore.EntityID] {
	return e.rangeQuery(volume.AABB(), false)
}

func (e *Engine[K, C]) rangeQuery(region geometry.AABB, wholly bool) Result[entitystore.EntityID] {
	snap := e.nodes.Snapshot()
	seen := make(map[entitystore.EntityID]struct{})
	var out []entitystore.EntityID

	for node := range snap.InOrder() {
		cell := e.flavor.Bounds(node.Key)
		match := region.Intersects(cell)
		if wholly {
			match = region.Contains(cell)
		}
		if !match {
			continue
		}
		for id := range node.Entities {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return Result[entitystore.EntityID]{items: out}
}
