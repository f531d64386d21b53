package query

import (
	"math"
	"sort"

	"github.com/scigolib/spatialidx/internal/entitystore"
	"github.com/scigolib/spatialidx/internal/geometry"
)

// RayEntityHit pairs an entity with its ray intersection result.
type RayEntityHit struct {
	ID  entitystore.EntityID
	Hit geometry.RayHit
}

// RayIntersectAll returns every entity the ray hits, ordered by hit
// distance. maxDistance, if positive, caps the search.
func (e *Engine[K, C]) RayIntersectAll(ray geometry.Ray, maxDistance float64) Result[RayEntityHit] {
	return Result[RayEntityHit]{items: e.rayQuery(ray, maxDistance, false)}
}

// RayIntersectFirst returns the nearest entity the ray hits, short-
// circuiting once no remaining cell can possibly beat the current best.
func (e *Engine[K, C]) RayIntersectFirst(ray geometry.Ray, maxDistance float64) (RayEntityHit, bool) {
	hits := e.rayQuery(ray, maxDistance, true)
	if len(hits) == 0 {
		return RayEntityHit{}, false
	}
	return hits[0], true
}

func (e *Engine[K, C]) rayQuery(ray geometry.Ray, maxDistance float64, firstOnly bool) []RayEntityHit {
	snap := e.nodes.Snapshot()

	type nodeEnter struct {
		key    K
		tEnter float64
	}
	var ordered []nodeEnter
	for node := range snap.InOrder() {
		cell := e.flavor.Bounds(node.Key)
		tEnter, _, ok := ray.IntersectAABB(cell)
		if !ok {
			continue
		}
		if maxDistance > 0 && tEnter > maxDistance {
			continue
		}
		ordered = append(ordered, nodeEnter{key: node.Key, tEnter: tEnter})
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].tEnter < ordered[j].tEnter })

	seen := make(map[entitystore.EntityID]struct{})
	var hits []RayEntityHit
	bestDist := math.Inf(1)

	for _, ne := range ordered {
		if firstOnly && ne.tEnter >= bestDist {
			break
		}
		node, ok := e.nodes.Get(ne.key)
		if !ok {
			continue
		}
		for id := range node.Entities {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}

			pos, ok := e.entities.GetPosition(id)
			if !ok {
				continue
			}
			bounds, _ := e.entities.GetBounds(id)

			var hit geometry.RayHit
			var got bool
			if bounds != nil {
				tE, _, okB := ray.IntersectAABB(*bounds)
				if okB && tE >= 0 {
					hit, got = geometry.RayHit{Distance: tE, Point: ray.At(tE)}, true
				}
			} else {
				hit, got = ray.IntersectSphere(geometry.Sphere{Center: pos, Radius: geometry.GeometricTolerance})
			}
			if !got {
				continue
			}
			if maxDistance > 0 && hit.Distance > maxDistance {
				continue
			}
			hits = append(hits, RayEntityHit{ID: id, Hit: hit})
			if firstOnly && hit.Distance < bestDist {
				bestDist = hit.Distance
			}
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Hit.Distance != hits[j].Hit.Distance {
			return hits[i].Hit.Distance < hits[j].Hit.Distance
		}
		return hits[i].ID < hits[j].ID
	})
	if firstOnly && len(hits) > 1 {
		hits = hits[:1]
	}
	return hits
}
