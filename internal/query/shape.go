package query

import (
	"math"
	"sort"

	"github.com/scigolib/spatialidx/internal/entitystore"
	"github.com/scigolib/spatialidx/internal/geometry"
)

// shapeContains narrows a shape down to a ContainsPoint/AABB pair so Sphere,
// Plane, and ConvexHull queries can share one bound-then-refine scaffold.
type shapeContains interface {
	ContainsPoint(geometry.Point) bool
}

// SphereQuery returns every entity inside sphere, ordered by ascending
// distance from the sphere's center.
func (e *Engine[K, C]) SphereQuery(sphere geometry.Sphere) Result[ScoredEntity] {
	out := e.shapeQuery(sphere.AABB(), sphere, func(pos geometry.Point) float64 {
		return geometry.DistanceSquared(sphere.Center, pos)
	})
	return Result[ScoredEntity]{items: out}
}

// ProximityQuery is SphereQuery centered at point with the given radius.
func (e *Engine[K, C]) ProximityQuery(point geometry.Point, radius float64) Result[ScoredEntity] {
	return e.SphereQuery(geometry.Sphere{Center: point, Radius: radius})
}

// PlaneQuery returns every entity on plane's inside half-space within scope,
// ordered by ascending absolute distance to the plane (closest to the
// boundary first). scope is required: a bare plane has no finite AABB.
func (e *Engine[K, C]) PlaneQuery(plane geometry.Plane, scope geometry.AABB) Result[ScoredEntity] {
	out := e.shapeQuery(scope, plane, func(pos geometry.Point) float64 {
		return math.Abs(plane.SignedDistance(pos))
	})
	return Result[ScoredEntity]{items: out}
}

// ConvexHullQuery returns every entity inside hull, ordered by ascending
// distance from hull's bounding box center.
func (e *Engine[K, C]) ConvexHullQuery(hull geometry.ConvexHull) Result[ScoredEntity] {
	center := hull.AABB().Center()
	out := e.shapeQuery(hull.AABB(), hull, func(pos geometry.Point) float64 {
		return geometry.DistanceSquared(center, pos)
	})
	return Result[ScoredEntity]{items: out}
}

func (e *Engine[K, C]) shapeQuery(region geometry.AABB, shape shapeContains, sortKey func(geometry.Point) float64) []ScoredEntity {
	snap := e.nodes.Snapshot()
	seen := make(map[entitystore.EntityID]struct{})
	var out []ScoredEntity

	for node := range snap.InOrder() {
		cell := e.flavor.Bounds(node.Key)
		if !region.Intersects(cell) {
			continue
		}
		for id := range node.Entities {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			pos, ok := e.entities.GetPosition(id)
			if !ok || !shape.ContainsPoint(pos) {
				continue
			}
			out = append(out, ScoredEntity{ID: id, DistanceSquared: sortKey(pos)})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].DistanceSquared != out[j].DistanceSquared {
			return out[i].DistanceSquared < out[j].DistanceSquared
		}
		return out[i].ID < out[j].ID
	})
	return out
}
