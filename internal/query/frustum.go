package query

import (
	"sort"
	"sync"

	"github.com/scigolib/spatialidx/internal/entitystore"
	"github.com/scigolib/spatialidx/internal/geometry"
	"github.com/scigolib/spatialidx/internal/nodestore"
	"golang.org/x/sync/errgroup"
)

// FrustumCull returns every entity visible within frustum: cells classified
// Inside admit every occupant without a per-entity test, cells classified
// Intersecting are refined concurrently via errgroup, cells classified
// Outside are pruned.
func (e *Engine[K, C]) FrustumCull(frustum geometry.Frustum) Result[entitystore.EntityID] {
	snap := e.nodes.Snapshot()

	seen := make(map[entitystore.EntityID]struct{})
	var out []entitystore.EntityID
	var intersecting []*nodestore.Node[K]

	for node := range snap.InOrder() {
		cell := e.flavor.Bounds(node.Key)
		switch frustum.ClassifyAABB(cell) {
		case geometry.Outside:
			continue
		case geometry.Inside:
			for id := range node.Entities {
				if _, ok := seen[id]; ok {
					continue
				}
				seen[id] = struct{}{}
				out = append(out, id)
			}
		case geometry.Intersecting:
			intersecting = append(intersecting, node)
		}
	}

	var mu sync.Mutex
	var g errgroup.Group
	for _, node := range intersecting {
		node := node
		g.Go(func() error {
			var local []entitystore.EntityID
			for id := range node.Entities {
				if !e.entityVisibleInFrustum(frustum, id) {
					continue
				}
				local = append(local, id)
			}
			if len(local) == 0 {
				return nil
			}
			mu.Lock()
			defer mu.Unlock()
			for _, id := range local {
				if _, ok := seen[id]; ok {
					continue
				}
				seen[id] = struct{}{}
				out = append(out, id)
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return Result[entitystore.EntityID]{items: out}
}

// entityVisibleInFrustum is the per-entity test inside an Intersecting
// cell: bare position for an entity with no stored bounds, AABB
// containment/intersection against the frustum for one that has bounds.
// ClassifyAABB's Inside and Intersecting both count as visible here — an
// entity whose bounds straddle a plane is still at least partially in view,
// only a full Outside classification excludes it.
func (e *Engine[K, C]) entityVisibleInFrustum(frustum geometry.Frustum, id entitystore.EntityID) bool {
	bounds, ok := e.entities.GetBounds(id)
	if ok && bounds != nil {
		return frustum.ClassifyAABB(*bounds) != geometry.Outside
	}

	pos, ok := e.entities.GetPosition(id)
	return ok && frustum.ContainsPoint(pos)
}
