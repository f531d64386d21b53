package spatial

import (
	"math"
	"sort"

	"github.com/scigolib/spatialidx/internal/entitystore"
	"github.com/scigolib/spatialidx/internal/errs"
	"github.com/scigolib/spatialidx/internal/geometry"
	"github.com/scigolib/spatialidx/internal/insertion"
	"github.com/scigolib/spatialidx/internal/keys"
	"github.com/scigolib/spatialidx/internal/nodestore"
	"github.com/scigolib/spatialidx/internal/query"
	"github.com/scigolib/spatialidx/internal/rebalance"
	"github.com/scigolib/spatialidx/internal/traverse"
)

// BatchInsertionResult reports the outcome of an InsertBatch call.
type BatchInsertionResult = insertion.BatchInsertionResult

// SpanningPolicy controls how an entity with bounds larger than its cell is
// replicated across nodes.
type SpanningPolicy = insertion.SpanningPolicy

const (
	SingleNodeOnly    = insertion.SingleNodeOnly
	SpanToOverlapping = insertion.SpanToOverlapping
	SpanToLeavesOnly  = insertion.SpanToLeavesOnly
)

// Insert adds one entity at pos, under level's granularity, content and an
// optional bounds, returning its newly allocated id. Uses the Index's
// configured default spanning policy.
func (idx *Index[K, C]) Insert(pos geometry.Point, level uint8, content C, bounds *geometry.AABB) (entitystore.EntityID, error) {
	return idx.insert.Insert(pos, level, content, bounds, idx.spanPolicy)
}

// InsertBatch inserts every (position, content, bounds?) triple under a
// single bulk-loading window. If ConfigureBulkOperations set a non-zero
// MaxDirtyQueueDepth and the balancer's deferred queue is already over it
// before or after the batch, reports CapacityExceeded alongside the
// (still valid) result. Under ModeImmediate, leaves the batch pushes over
// capacity are queued rather than split, and are split by the next
// FinalizeBulkLoading.
func (idx *Index[K, C]) InsertBatch(positions []geometry.Point, contents []C, bounds []*geometry.AABB, level uint8) (BatchInsertionResult, error) {
	if idx.bulk.MaxDirtyQueueDepth > 0 && idx.balancer.DirtyQueueLen() > idx.bulk.MaxDirtyQueueDepth {
		return BatchInsertionResult{}, errs.NewStack(errs.CapacityExceeded, "spatial: bulk dirty queue already over configured depth")
	}
	result := idx.insert.InsertBatch(positions, contents, bounds, level, idx.spanPolicy)
	if idx.bulk.MaxDirtyQueueDepth > 0 && idx.balancer.DirtyQueueLen() > idx.bulk.MaxDirtyQueueDepth {
		return result, errs.NewStack(errs.CapacityExceeded, "spatial: bulk dirty queue exceeded configured depth")
	}
	return result, nil
}

// RemoveEntity drops id from every node it occupies. Returns false if id
// was unknown.
func (idx *Index[K, C]) RemoveEntity(id entitystore.EntityID) bool {
	ok := idx.insert.RemoveEntity(id)
	if ok {
		idx.balancer.RecordRemove()
	}
	return ok
}

// UpdateEntity moves id to newPos at level, preserving its content and
// bounds.
func (idx *Index[K, C]) UpdateEntity(id entitystore.EntityID, newPos geometry.Point, level uint8) error {
	err := idx.insert.UpdateEntity(id, newPos, level, idx.spanPolicy)
	if err == nil {
		idx.balancer.RecordUpdate()
	}
	return err
}

// ContainsEntity reports whether id is known to the index.
func (idx *Index[K, C]) ContainsEntity(id entitystore.EntityID) bool {
	return idx.entities.Contains(id)
}

// GetContent returns id's stored content.
func (idx *Index[K, C]) GetContent(id entitystore.EntityID) (C, bool) {
	return idx.entities.GetContent(id)
}

// Lookup returns every entity whose enclosing cell at level is the one
// containing pos.
func (idx *Index[K, C]) Lookup(pos geometry.Point, level uint8) []entitystore.EntityID {
	node, ok := idx.nodes.Get(idx.flavor.Enclosing(pos, level))
	if !ok {
		return nil
	}
	ids := node.EntityIDs()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// EntitiesInRegion returns every entity whose position lies in region (or,
// for an entity with bounds, whose bounds intersect region), narrowing from
// the query kernel's cell-overlap candidates to an exact per-entity test.
func (idx *Index[K, C]) EntitiesInRegion(region geometry.AABB) []entitystore.EntityID {
	candidates := idx.queries.Bounding(region).Slice()
	var out []entitystore.EntityID
	for _, id := range candidates {
		bounds, hasBounds := idx.entities.GetBounds(id)
		if hasBounds && bounds != nil {
			if bounds.Intersects(region) {
				out = append(out, id)
			}
			continue
		}
		pos, ok := idx.entities.GetPosition(id)
		if ok && region.ContainsPoint(pos) {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// KNearestNeighbors returns the k entities closest to q, ties broken by
// ascending EntityID. maxDist, if positive, bounds the search radius.
func (idx *Index[K, C]) KNearestNeighbors(q geometry.Point, k int, maxDist float64) []entitystore.EntityID {
	return scoredIDs(idx.queries.KNearest(q, k, maxDist).Slice())
}

func (idx *Index[K, C]) rayHitRecord(h query.RayEntityHit) RayHit[C] {
	content, _ := idx.entities.GetContent(h.ID)
	bounds, _ := idx.entities.GetBounds(h.ID)
	return RayHit[C]{
		ID:                h.ID,
		Content:           content,
		Distance:          h.Hit.Distance,
		IntersectionPoint: h.Hit.Point,
		Normal:            h.Hit.Normal,
		Bounds:            bounds,
	}
}

// RayIntersectAll returns every entity ray hits, ordered by hit distance.
func (idx *Index[K, C]) RayIntersectAll(ray geometry.Ray) []RayHit[C] {
	return idx.rayIntersect(ray, 0)
}

// RayIntersectWithin is RayIntersectAll bounded to maxDist.
func (idx *Index[K, C]) RayIntersectWithin(ray geometry.Ray, maxDist float64) []RayHit[C] {
	return idx.rayIntersect(ray, maxDist)
}

func (idx *Index[K, C]) rayIntersect(ray geometry.Ray, maxDist float64) []RayHit[C] {
	hits := idx.queries.RayIntersectAll(ray, maxDist).Slice()
	out := make([]RayHit[C], len(hits))
	for i, h := range hits {
		out[i] = idx.rayHitRecord(h)
	}
	return out
}

// RayIntersectFirst returns the nearest entity ray hits, if any.
func (idx *Index[K, C]) RayIntersectFirst(ray geometry.Ray) (RayHit[C], bool) {
	h, ok := idx.queries.RayIntersectFirst(ray, 0)
	if !ok {
		return RayHit[C]{}, false
	}
	return idx.rayHitRecord(h), true
}

// FrustumCullVisible returns every entity visible within frustum.
func (idx *Index[K, C]) FrustumCullVisible(frustum geometry.Frustum) []entitystore.EntityID {
	return idx.queries.FrustumCull(frustum).Slice()
}

// SphereQuery returns every entity inside sphere, nearest to its center
// first.
func (idx *Index[K, C]) SphereQuery(sphere geometry.Sphere) []entitystore.EntityID {
	return scoredIDs(idx.queries.SphereQuery(sphere).Slice())
}

// ProximityQuery is SphereQuery centered at point with the given radius.
func (idx *Index[K, C]) ProximityQuery(point geometry.Point, radius float64) []entitystore.EntityID {
	return scoredIDs(idx.queries.ProximityQuery(point, radius).Slice())
}

// PlaneQuery returns every entity on plane's inside half-space within scope,
// closest to the plane first.
func (idx *Index[K, C]) PlaneQuery(plane geometry.Plane, scope geometry.AABB) []entitystore.EntityID {
	return scoredIDs(idx.queries.PlaneQuery(plane, scope).Slice())
}

// ConvexHullQuery returns every entity inside hull.
func (idx *Index[K, C]) ConvexHullQuery(hull geometry.ConvexHull) []entitystore.EntityID {
	return scoredIDs(idx.queries.ConvexHullQuery(hull).Slice())
}

func scoredIDs(scored []query.ScoredEntity) []entitystore.EntityID {
	out := make([]entitystore.EntityID, len(scored))
	for i, s := range scored {
		out[i] = s.ID
	}
	return out
}

// facePush returns the depth and outward sign of pushing a point at p out
// of the [min, max] interval through its nearer face.
func facePush(min, max, p float64) (depth, sign float64) {
	d1, d2 := p-min, max-p
	if d1 < d2 {
		return d1, -1
	}
	return d2, 1
}

func signAxis(delta float64, axis geometry.Point) geometry.Point {
	if delta < 0 {
		return geometry.Point{X: -axis.X, Y: -axis.Y, Z: -axis.Z}
	}
	return axis
}

func negate(p geometry.Point) geometry.Point { return geometry.Point{X: -p.X, Y: -p.Y, Z: -p.Z} }

// aabbContact computes the minimum-translation contact between two
// overlapping boxes: the center of their overlap region, the axis of least
// penetration as the contact normal (pointing from b's center toward a's),
// and that axis's penetration depth.
func aabbContact(a, b geometry.AABB) (point, normal geometry.Point, depth float64) {
	overlapMin := geometry.Point{
		X: math.Max(a.Min.X, b.Min.X),
		Y: math.Max(a.Min.Y, b.Min.Y),
		Z: math.Max(a.Min.Z, b.Min.Z),
	}
	overlapMax := geometry.Point{
		X: math.Min(a.Max.X, b.Max.X),
		Y: math.Min(a.Max.Y, b.Max.Y),
		Z: math.Min(a.Max.Z, b.Max.Z),
	}
	point = geometry.Point{
		X: (overlapMin.X + overlapMax.X) / 2,
		Y: (overlapMin.Y + overlapMax.Y) / 2,
		Z: (overlapMin.Z + overlapMax.Z) / 2,
	}

	ca, cb := a.Center(), b.Center()
	extentX, extentY, extentZ := overlapMax.X-overlapMin.X, overlapMax.Y-overlapMin.Y, overlapMax.Z-overlapMin.Z

	depth, normal = extentX, signAxis(ca.X-cb.X, geometry.Point{X: 1})
	if extentY < depth {
		depth, normal = extentY, signAxis(ca.Y-cb.Y, geometry.Point{Y: 1})
	}
	if extentZ < depth {
		depth, normal = extentZ, signAxis(ca.Z-cb.Z, geometry.Point{Z: 1})
	}
	return point, normal, depth
}

// pointBoxContact computes the contact between box and a point known to lie
// inside it: the point itself, the outward normal through the nearest face,
// and the distance to that face.
func pointBoxContact(box geometry.AABB, p geometry.Point) (point, normal geometry.Point, depth float64) {
	dx, sx := facePush(box.Min.X, box.Max.X, p.X)
	dy, sy := facePush(box.Min.Y, box.Max.Y, p.Y)
	dz, sz := facePush(box.Min.Z, box.Max.Z, p.Z)

	depth, normal = dx, geometry.Point{X: sx}
	if dy < depth {
		depth, normal = dy, geometry.Point{Y: sy}
	}
	if dz < depth {
		depth, normal = dz, geometry.Point{Z: sz}
	}
	return p, normal, depth
}

// pointPointContact handles two boundless entities: the midpoint, the unit
// direction from b to a, and how far within GeometricTolerance they sit.
func pointPointContact(a, b geometry.Point) (point, normal geometry.Point, depth float64) {
	point = geometry.Point{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2, Z: (a.Z + b.Z) / 2}
	d := geometry.Point{X: a.X - b.X, Y: a.Y - b.Y, Z: a.Z - b.Z}
	dist := math.Sqrt(d.X*d.X + d.Y*d.Y + d.Z*d.Z)
	depth = geometry.GeometricTolerance - dist
	if depth < 0 {
		depth = 0
	}
	if dist > 0 {
		inv := 1 / dist
		normal = geometry.Point{X: d.X * inv, Y: d.Y * inv, Z: d.Z * inv}
	}
	return point, normal, depth
}

// collisionContact dispatches to the AABB-AABB, AABB-point, or point-point
// contact geometry depending on which of a, b carry stored bounds. The
// normal always points from b toward a.
func (idx *Index[K, C]) collisionContact(a, b entitystore.EntityID) (point, normal geometry.Point, depth float64) {
	posA, _ := idx.entities.GetPosition(a)
	posB, _ := idx.entities.GetPosition(b)
	boundsA, _ := idx.entities.GetBounds(a)
	boundsB, _ := idx.entities.GetBounds(b)

	switch {
	case boundsA != nil && boundsB != nil:
		return aabbContact(*boundsA, *boundsB)
	case boundsA != nil:
		point, n, d := pointBoxContact(*boundsA, posB)
		return point, negate(n), d
	case boundsB != nil:
		return pointBoxContact(*boundsB, posA)
	default:
		return pointPointContact(posA, posB)
	}
}

func (idx *Index[K, C]) collisionRecord(p query.CollisionPair) CollisionPair[C] {
	point, normal, depth := idx.collisionContact(p.A, p.B)
	content1, _ := idx.entities.GetContent(p.A)
	content2, _ := idx.entities.GetContent(p.B)
	bounds1, _ := idx.entities.GetBounds(p.A)
	bounds2, _ := idx.entities.GetBounds(p.B)
	return CollisionPair[C]{
		ID1: p.A, ID2: p.B,
		Content1: content1, Content2: content2,
		Bounds1: bounds1, Bounds2: bounds2,
		ContactPoint: point, ContactNormal: normal, PenetrationDepth: depth,
	}
}

func sortByDepthDesc[C any](pairs []CollisionPair[C]) {
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].PenetrationDepth != pairs[j].PenetrationDepth {
			return pairs[i].PenetrationDepth > pairs[j].PenetrationDepth
		}
		if pairs[i].ID1 != pairs[j].ID1 {
			return pairs[i].ID1 < pairs[j].ID1
		}
		return pairs[i].ID2 < pairs[j].ID2
	})
}

// FindAllCollisions returns every colliding entity pair in the index,
// sorted by decreasing penetration depth.
func (idx *Index[K, C]) FindAllCollisions() []CollisionPair[C] {
	raw := idx.queries.FindAllCollisions().Slice()
	out := make([]CollisionPair[C], len(raw))
	for i, p := range raw {
		out[i] = idx.collisionRecord(p)
	}
	sortByDepthDesc(out)
	return out
}

// FindCollisions returns every pair between id and an entity colliding with
// it.
func (idx *Index[K, C]) FindCollisions(id entitystore.EntityID) []CollisionPair[C] {
	peers := idx.queries.FindCollisions(id).Slice()
	out := make([]CollisionPair[C], len(peers))
	for i, peer := range peers {
		a, b := id, peer
		if b < a {
			a, b = b, a
		}
		out[i] = idx.collisionRecord(query.CollisionPair{A: a, B: b})
	}
	sortByDepthDesc(out)
	return out
}

// FindCollisionsInRegion returns every colliding pair whose cell overlaps
// region.
func (idx *Index[K, C]) FindCollisionsInRegion(region geometry.AABB) []CollisionPair[C] {
	raw := idx.queries.FindCollisionsInRegion(region).Slice()
	out := make([]CollisionPair[C], len(raw))
	for i, p := range raw {
		out[i] = idx.collisionRecord(p)
	}
	sortByDepthDesc(out)
	return out
}

// nodeQuery scans every stored node whose cell matches region (wholly
// contained, or merely overlapping), the node-level counterpart to the
// query kernel's entity-level range scan.
func (idx *Index[K, C]) nodeQuery(region geometry.AABB, wholly bool) []SpatialNode[K] {
	snap := idx.nodes.Snapshot()
	var out []SpatialNode[K]
	for node := range snap.InOrder() {
		cell := idx.flavor.Bounds(node.Key)
		match := region.Intersects(cell)
		if wholly {
			match = region.Contains(cell)
		}
		if !match {
			continue
		}
		out = append(out, SpatialNode[K]{Key: node.Key, EntityIDs: node.EntityIDs()})
	}
	return out
}

// Bounding returns every node whose cell overlaps volume.
func (idx *Index[K, C]) Bounding(volume geometry.Volume) []SpatialNode[K] {
	return idx.nodeQuery(volume.AABB(), false)
}

// BoundedBy returns every node whose cell is wholly contained in volume.
func (idx *Index[K, C]) BoundedBy(volume geometry.Volume) []SpatialNode[K] {
	return idx.nodeQuery(volume.AABB(), true)
}

// Enclosing returns the node containing pos at level, if it exists.
func (idx *Index[K, C]) Enclosing(pos geometry.Point, level uint8) (SpatialNode[K], bool) {
	key := idx.flavor.Enclosing(pos, level)
	node, ok := idx.nodes.Get(key)
	if !ok {
		return SpatialNode[K]{}, false
	}
	return SpatialNode[K]{Key: key, EntityIDs: node.EntityIDs()}, true
}

// EnclosingVolume returns the node at level containing volume's center,
// when that single cell wholly contains volume.
func (idx *Index[K, C]) EnclosingVolume(volume geometry.Volume, level uint8) (SpatialNode[K], bool) {
	bounds := volume.AABB()
	key := idx.flavor.Enclosing(bounds.Center(), level)
	if !idx.flavor.Bounds(key).Contains(bounds) {
		return SpatialNode[K]{}, false
	}
	node, ok := idx.nodes.Get(key)
	if !ok {
		return SpatialNode[K]{Key: key}, true
	}
	return SpatialNode[K]{Key: key, EntityIDs: node.EntityIDs()}, true
}

// Strategy selects traversal order: PreOrder, PostOrder, or BreadthFirst.
type Strategy = traverse.Strategy

// Directive is a Visitor's instruction to the walker.
type Directive = traverse.Directive

const (
	PreOrder     = traverse.PreOrder
	PostOrder    = traverse.PostOrder
	BreadthFirst = traverse.BreadthFirst

	Continue    = traverse.Continue
	SkipSubtree = traverse.SkipSubtree
	Stop        = traverse.Stop
)

// Visitor is called once per visited node with its key/occupants and its
// depth relative to the walk's starting point.
type Visitor[K keys.Key] func(node SpatialNode[K], depth int) Directive

func adaptVisitor[K keys.Key](v Visitor[K]) traverse.Visitor[K] {
	return func(key K, node *nodestore.Node[K], depth int, ids []entitystore.EntityID) traverse.Directive {
		return v(SpatialNode[K]{Key: key, EntityIDs: ids}, depth)
	}
}

// Traverse walks every stored node in the given order.
func (idx *Index[K, C]) Traverse(strategy Strategy, visitor Visitor[K]) {
	idx.walker.Walk(strategy, adaptVisitor(visitor))
}

// TraverseFrom walks start and its descendants, as if start were the sole
// root.
func (idx *Index[K, C]) TraverseFrom(strategy Strategy, start K, visitor Visitor[K]) {
	idx.walker.WalkFrom(strategy, start, adaptVisitor(visitor))
}

// TraverseRegion walks only nodes whose cell intersects region.
func (idx *Index[K, C]) TraverseRegion(strategy Strategy, region geometry.Volume, visitor Visitor[K]) {
	idx.walker.WalkRegion(strategy, region, adaptVisitor(visitor))
}

// ConfigureBulkOperations tunes bulk-insertion behavior ahead of
// EnableBulkLoading.
func (idx *Index[K, C]) ConfigureBulkOperations(cfg BulkConfig) {
	idx.bulk = cfg
}

// EnableBulkLoading takes the index-wide write lock, deferring per-node
// locking and split checks until FinalizeBulkLoading.
func (idx *Index[K, C]) EnableBulkLoading() {
	idx.locks.EnableBulkLoading()
	idx.logger.Info().Msg("spatial: bulk loading enabled")
}

// FinalizeBulkLoading releases the index-wide write lock and replays every
// leaf the bulk load left dirty, deepest level first.
func (idx *Index[K, C]) FinalizeBulkLoading() {
	idx.locks.FinalizeBulkLoading()
	idx.balancer.ProcessDeferred()
	idx.logger.Info().Msg("spatial: bulk loading finalized")
}

// Clear drops every node and entity atomically.
func (idx *Index[K, C]) Clear() {
	idx.locks.EnableBulkLoading()
	defer idx.locks.FinalizeBulkLoading()
	traverse.Clear[K, C](idx.nodes, idx.entities)
}

// GetStats reports the index's current size.
func (idx *Index[K, C]) GetStats() EntityStats {
	snap := idx.nodes.Snapshot()
	stats := EntityStats{NodeCount: idx.nodes.Size(), EntityCount: idx.entities.Stats()}
	for node := range snap.InOrder() {
		stats.TotalEntityReferences += node.Count()
		if depth := int(node.Key.Level()); depth > stats.MaxDepth {
			stats.MaxDepth = depth
		}
	}
	return stats
}

// GetMetrics returns the balancer's split/merge counters.
func (idx *Index[K, C]) GetMetrics() rebalance.MetricsSnapshot {
	return idx.balancer.Metrics()
}

// Partition reports the partition responsible for k, if a PartitionRouter
// was attached via WithPartitionRouter.
func (idx *Index[K, C]) Partition(k K) (PartitionID, bool) {
	router, ok := idx.router.(PartitionRouter[K])
	if !ok || router == nil {
		return PartitionID{}, false
	}
	return router.RouteKey(k), true
}
