package spatial

import (
	"github.com/google/uuid"
	"github.com/scigolib/spatialidx/internal/geometry"
	"github.com/scigolib/spatialidx/internal/keys"
)

// PartitionID identifies an owning partition in a forest this library does
// not itself manage — it only carries the identifier around.
type PartitionID = uuid.UUID

// PartitionRouter maps a key to the partition responsible for it. The core
// never calls this itself; it is exposed so a forest-coordination layer
// built on top of this library can route cross-partition queries without
// reimplementing key algebra. Attach one via WithPartitionRouter.
type PartitionRouter[K keys.Key] interface {
	RouteKey(k K) PartitionID
}

// Shape is any caller-supplied collision/ray shape beyond AABB and Sphere —
// an OBB, capsule, or mesh, all explicitly out of scope to implement here.
// Bounds reports a conservative AABB for the shape. Nothing in this module
// calls Shape, Intersector or RayHitTester: the collision and ray queries
// work only on each entity's stored AABB or position.
type Shape interface {
	Bounds() geometry.AABB
}

// Intersector is a Shape that can test intersection against another Shape.
// The collision queries (FindAllCollisions, FindCollisions,
// FindCollisionsInRegion) do not consult it.
type Intersector interface {
	Intersects(other Shape) bool
}

// RayHitTester is a Shape that can report its own ray intersection. The
// RayIntersect* queries do not consult it.
type RayHitTester interface {
	RayHit(r geometry.Ray) (geometry.RayHit, bool)
}
