package spatial

import (
	"github.com/scigolib/spatialidx/internal/entitystore"
	"github.com/scigolib/spatialidx/internal/geometry"
	"github.com/scigolib/spatialidx/internal/keys"
)

// RayHit is one entity a ray intersected, ordered by Distance when multiple
// hits are collected by RayIntersectAll/RayIntersectWithin.
type RayHit[C any] struct {
	ID                entitystore.EntityID
	Content           C
	Distance          float64
	IntersectionPoint geometry.Point
	Normal            geometry.Point
	Bounds            *geometry.AABB
}

// CollisionPair is an unordered pair of colliding entities (ID1 < ID2),
// enriched with enough geometry to resolve the collision: an approximate
// contact point, a separating normal pointing from entity 2 toward entity
// 1, and a penetration depth. Results are sorted by decreasing
// PenetrationDepth (deepest collisions first).
type CollisionPair[C any] struct {
	ID1, ID2           entitystore.EntityID
	Content1, Content2 C
	Bounds1, Bounds2   *geometry.AABB
	ContactPoint       geometry.Point
	ContactNormal      geometry.Point
	PenetrationDepth   float64
}

// SpatialNode is a read-only view of one occupied cell: its key and the
// entities currently registered there.
type SpatialNode[K keys.Key] struct {
	Key       K
	EntityIDs []entitystore.EntityID
}

// EntityStats summarizes the index's current size, per spec's getStats().
type EntityStats struct {
	NodeCount             int
	EntityCount           int
	TotalEntityReferences int // sum of per-node entity counts; a spanned entity counts once per cell
	MaxDepth              int
}

// BulkConfig tunes bulk-insertion behavior, set via ConfigureBulkOperations
// before EnableBulkLoading.
type BulkConfig struct {
	// MaxDirtyQueueDepth bounds how many leaves may sit in the balancer's
	// deferred/incremental dirty queue during bulk loading before
	// InsertBatch reports CapacityExceeded. Zero means unbounded.
	MaxDirtyQueueDepth int
}
