package spatial

import (
	"testing"

	"github.com/scigolib/spatialidx/internal/geometry"
	"github.com/scigolib/spatialidx/internal/keys"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	Name string
}

func newTestOctree(t *testing.T) *Index[keys.OctKey, fixture] {
	t.Helper()
	idx := NewOctree[fixture](WithCapacityHint(4))
	t.Cleanup(idx.Stop)
	return idx
}

func newTestTetree(t *testing.T) *Index[keys.TetKey, fixture] {
	t.Helper()
	idx := NewTetree[fixture](WithCapacityHint(4))
	t.Cleanup(idx.Stop)
	return idx
}

func TestInsertLookupRoundTrips(t *testing.T) {
	idx := newTestOctree(t)
	pos := geometry.Point{X: 10, Y: 10, Z: 10}
	id, err := idx.Insert(pos, 5, fixture{Name: "alpha"}, nil)
	require.NoError(t, err)

	content, ok := idx.GetContent(id)
	require.True(t, ok)
	assert.Equal(t, "alpha", content.Name)
	assert.True(t, idx.ContainsEntity(id))

	found := idx.Lookup(pos, 5)
	assert.Contains(t, found, id)
}

func TestInsertRejectsOutOfDomainPosition(t *testing.T) {
	idx := newTestOctree(t)
	_, err := idx.Insert(geometry.Point{X: -1}, 5, fixture{}, nil)
	require.Error(t, err)
	assert.True(t, IsKind(err, InvalidArgument))
}

func TestRemoveEntityDropsItFromLookup(t *testing.T) {
	idx := newTestOctree(t)
	pos := geometry.Point{X: 20, Y: 20, Z: 20}
	id, err := idx.Insert(pos, 6, fixture{Name: "gone"}, nil)
	require.NoError(t, err)

	assert.True(t, idx.RemoveEntity(id))
	assert.False(t, idx.RemoveEntity(id))
	assert.False(t, idx.ContainsEntity(id))
	assert.NotContains(t, idx.Lookup(pos, 6), id)
}

func TestUpdateEntityMovesPositionPreservingContent(t *testing.T) {
	idx := newTestOctree(t)
	oldPos := geometry.Point{X: 30, Y: 30, Z: 30}
	newPos := geometry.Point{X: 300, Y: 300, Z: 300}
	id, err := idx.Insert(oldPos, 7, fixture{Name: "mover"}, nil)
	require.NoError(t, err)

	require.NoError(t, idx.UpdateEntity(id, newPos, 7))
	assert.NotContains(t, idx.Lookup(oldPos, 7), id)
	assert.Contains(t, idx.Lookup(newPos, 7), id)

	content, ok := idx.GetContent(id)
	require.True(t, ok)
	assert.Equal(t, "mover", content.Name)
}

func TestEntitiesInRegionFiltersPreciseBounds(t *testing.T) {
	idx := newTestOctree(t)
	region := geometry.AABB{Min: geometry.Point{X: 0, Y: 0, Z: 0}, Max: geometry.Point{X: 100, Y: 100, Z: 100}}

	inside, err := idx.Insert(geometry.Point{X: 50, Y: 50, Z: 50}, 8, fixture{Name: "in"}, nil)
	require.NoError(t, err)
	outside, err := idx.Insert(geometry.Point{X: 500, Y: 500, Z: 500}, 8, fixture{Name: "out"}, nil)
	require.NoError(t, err)

	straddlingBounds := &geometry.AABB{Min: geometry.Point{X: 90, Y: 90, Z: 90}, Max: geometry.Point{X: 110, Y: 110, Z: 110}}
	straddling, err := idx.Insert(geometry.Point{X: 95, Y: 95, Z: 95}, 8, fixture{Name: "straddle"}, straddlingBounds)
	require.NoError(t, err)

	ids := idx.EntitiesInRegion(region)
	assert.Contains(t, ids, inside)
	assert.Contains(t, ids, straddling)
	assert.NotContains(t, ids, outside)
}

func TestKNearestNeighborsOrdersByDistance(t *testing.T) {
	idx := newTestOctree(t)
	near, err := idx.Insert(geometry.Point{X: 10, Y: 10, Z: 10}, 10, fixture{Name: "near"}, nil)
	require.NoError(t, err)
	far, err := idx.Insert(geometry.Point{X: 1000, Y: 1000, Z: 1000}, 10, fixture{Name: "far"}, nil)
	require.NoError(t, err)

	results := idx.KNearestNeighbors(geometry.Point{X: 0, Y: 0, Z: 0}, 2, 0)
	require.Len(t, results, 2)
	assert.Equal(t, near, results[0])
	assert.Equal(t, far, results[1])
}

func TestFindCollisionsDetectsOverlappingBounds(t *testing.T) {
	idx := newTestOctree(t)
	boundsA := &geometry.AABB{Min: geometry.Point{X: 0, Y: 0, Z: 0}, Max: geometry.Point{X: 10, Y: 10, Z: 10}}
	boundsB := &geometry.AABB{Min: geometry.Point{X: 5, Y: 5, Z: 5}, Max: geometry.Point{X: 15, Y: 15, Z: 15}}

	a, err := idx.Insert(geometry.Point{X: 5, Y: 5, Z: 5}, 6, fixture{Name: "a"}, boundsA)
	require.NoError(t, err)
	b, err := idx.Insert(geometry.Point{X: 10, Y: 10, Z: 10}, 6, fixture{Name: "b"}, boundsB)
	require.NoError(t, err)

	pairs := idx.FindAllCollisions()
	require.Len(t, pairs, 1)
	assert.Equal(t, a, pairs[0].ID1)
	assert.Equal(t, b, pairs[0].ID2)
	assert.Greater(t, pairs[0].PenetrationDepth, 0.0)

	fromA := idx.FindCollisions(a)
	require.Len(t, fromA, 1)
	assert.Equal(t, b, fromA[0].ID2)
}

func TestSphereQueryReturnsEntitiesInside(t *testing.T) {
	idx := newTestOctree(t)
	inside, err := idx.Insert(geometry.Point{X: 10, Y: 10, Z: 10}, 8, fixture{Name: "in"}, nil)
	require.NoError(t, err)
	outside, err := idx.Insert(geometry.Point{X: 1000, Y: 1000, Z: 1000}, 8, fixture{Name: "out"}, nil)
	require.NoError(t, err)

	ids := idx.SphereQuery(geometry.Sphere{Center: geometry.Point{X: 10, Y: 10, Z: 10}, Radius: 50})
	assert.Contains(t, ids, inside)
	assert.NotContains(t, ids, outside)
}

func TestEnclosingReturnsRegisteredNode(t *testing.T) {
	idx := newTestOctree(t)
	pos := geometry.Point{X: 40, Y: 40, Z: 40}
	id, err := idx.Insert(pos, 9, fixture{Name: "enc"}, nil)
	require.NoError(t, err)

	node, ok := idx.Enclosing(pos, 9)
	require.True(t, ok)
	assert.Contains(t, node.EntityIDs, id)

	_, ok = idx.Enclosing(geometry.Point{X: 40, Y: 40, Z: 40}, 2)
	assert.False(t, ok)
}

func TestBoundingReturnsNodesOverlappingVolume(t *testing.T) {
	idx := newTestOctree(t)
	pos := geometry.Point{X: 60, Y: 60, Z: 60}
	_, err := idx.Insert(pos, 8, fixture{Name: "n"}, nil)
	require.NoError(t, err)

	region := geometry.AABB{Min: geometry.Point{X: 0, Y: 0, Z: 0}, Max: geometry.Point{X: 128, Y: 128, Z: 128}}
	nodes := idx.Bounding(region)
	require.NotEmpty(t, nodes)
}

func TestGetStatsCountsNodesAndEntities(t *testing.T) {
	idx := newTestOctree(t)
	_, err := idx.Insert(geometry.Point{X: 1, Y: 1, Z: 1}, 4, fixture{Name: "x"}, nil)
	require.NoError(t, err)
	_, err = idx.Insert(geometry.Point{X: 2, Y: 2, Z: 2}, 4, fixture{Name: "y"}, nil)
	require.NoError(t, err)

	stats := idx.GetStats()
	assert.Equal(t, 2, stats.EntityCount)
	assert.GreaterOrEqual(t, stats.NodeCount, 1)
	assert.GreaterOrEqual(t, stats.TotalEntityReferences, 2)
}

func TestClearDropsEverything(t *testing.T) {
	idx := newTestOctree(t)
	id, err := idx.Insert(geometry.Point{X: 3, Y: 3, Z: 3}, 4, fixture{Name: "z"}, nil)
	require.NoError(t, err)

	idx.Clear()
	assert.False(t, idx.ContainsEntity(id))
	stats := idx.GetStats()
	assert.Equal(t, 0, stats.NodeCount)
	assert.Equal(t, 0, stats.EntityCount)
}

func TestTraverseVisitsInsertedNode(t *testing.T) {
	idx := newTestOctree(t)
	pos := geometry.Point{X: 70, Y: 70, Z: 70}
	id, err := idx.Insert(pos, 6, fixture{Name: "t"}, nil)
	require.NoError(t, err)

	var seen bool
	idx.Traverse(PreOrder, func(node SpatialNode[keys.OctKey], depth int) Directive {
		for _, got := range node.EntityIDs {
			if got == id {
				seen = true
			}
		}
		return Continue
	})
	assert.True(t, seen)
}

func TestInsertBatchReportsPerInputResults(t *testing.T) {
	idx := newTestOctree(t)
	positions := []geometry.Point{
		{X: 1, Y: 1, Z: 1},
		{X: -1, Y: 1, Z: 1}, // invalid
	}
	contents := []fixture{{Name: "ok"}, {Name: "bad"}}

	result, err := idx.InsertBatch(positions, contents, nil, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, result.SuccessCount)
	assert.Equal(t, 1, result.FailureCount)
	assert.NotEmpty(t, result.PerInputFailureMessage[1])
}

func TestPartitionWithoutRouterReportsNotFound(t *testing.T) {
	idx := newTestOctree(t)
	id, err := idx.Insert(geometry.Point{X: 1, Y: 1, Z: 1}, 3, fixture{}, nil)
	require.NoError(t, err)
	node, ok := idx.Enclosing(geometry.Point{X: 1, Y: 1, Z: 1}, 3)
	require.True(t, ok)
	require.Contains(t, node.EntityIDs, id)

	_, ok = idx.Partition(node.Key)
	assert.False(t, ok)
}

// The scenarios below run a representative subset of the octree's behaviors
// against the tetree flavor too, since NewTetree previously had no test
// coverage outside internal/keys.

func TestTetreeInsertLookupRoundTrips(t *testing.T) {
	idx := newTestTetree(t)
	pos := geometry.Point{X: 10, Y: 10, Z: 10}
	id, err := idx.Insert(pos, 5, fixture{Name: "alpha"}, nil)
	require.NoError(t, err)

	content, ok := idx.GetContent(id)
	require.True(t, ok)
	assert.Equal(t, "alpha", content.Name)
	assert.True(t, idx.ContainsEntity(id))

	found := idx.Lookup(pos, 5)
	assert.Contains(t, found, id)
}

func TestTetreeInsertRejectsOutOfDomainPosition(t *testing.T) {
	idx := newTestTetree(t)
	_, err := idx.Insert(geometry.Point{X: -1}, 5, fixture{}, nil)
	require.Error(t, err)
	assert.True(t, IsKind(err, InvalidArgument))
}

func TestTetreeRemoveEntityDropsItFromLookup(t *testing.T) {
	idx := newTestTetree(t)
	pos := geometry.Point{X: 20, Y: 20, Z: 20}
	id, err := idx.Insert(pos, 6, fixture{Name: "gone"}, nil)
	require.NoError(t, err)

	assert.True(t, idx.RemoveEntity(id))
	assert.False(t, idx.RemoveEntity(id))
	assert.False(t, idx.ContainsEntity(id))
	assert.NotContains(t, idx.Lookup(pos, 6), id)
}

func TestTetreeUpdateEntityMovesPositionPreservingContent(t *testing.T) {
	idx := newTestTetree(t)
	oldPos := geometry.Point{X: 30, Y: 30, Z: 30}
	newPos := geometry.Point{X: 300, Y: 300, Z: 300}
	id, err := idx.Insert(oldPos, 7, fixture{Name: "mover"}, nil)
	require.NoError(t, err)

	require.NoError(t, idx.UpdateEntity(id, newPos, 7))
	assert.NotContains(t, idx.Lookup(oldPos, 7), id)
	assert.Contains(t, idx.Lookup(newPos, 7), id)

	content, ok := idx.GetContent(id)
	require.True(t, ok)
	assert.Equal(t, "mover", content.Name)
}

func TestTetreeEntitiesInRegionFiltersPreciseBounds(t *testing.T) {
	idx := newTestTetree(t)
	region := geometry.AABB{Min: geometry.Point{X: 0, Y: 0, Z: 0}, Max: geometry.Point{X: 100, Y: 100, Z: 100}}

	inside, err := idx.Insert(geometry.Point{X: 50, Y: 50, Z: 50}, 8, fixture{Name: "in"}, nil)
	require.NoError(t, err)
	outside, err := idx.Insert(geometry.Point{X: 500, Y: 500, Z: 500}, 8, fixture{Name: "out"}, nil)
	require.NoError(t, err)

	ids := idx.EntitiesInRegion(region)
	assert.Contains(t, ids, inside)
	assert.NotContains(t, ids, outside)
}

func TestTetreeKNearestNeighborsOrdersByDistance(t *testing.T) {
	idx := newTestTetree(t)
	near, err := idx.Insert(geometry.Point{X: 10, Y: 10, Z: 10}, 10, fixture{Name: "near"}, nil)
	require.NoError(t, err)
	far, err := idx.Insert(geometry.Point{X: 1000, Y: 1000, Z: 1000}, 10, fixture{Name: "far"}, nil)
	require.NoError(t, err)

	results := idx.KNearestNeighbors(geometry.Point{X: 0, Y: 0, Z: 0}, 2, 0)
	require.Len(t, results, 2)
	assert.Equal(t, near, results[0])
	assert.Equal(t, far, results[1])
}

func TestTetreeEnclosingReturnsRegisteredNode(t *testing.T) {
	idx := newTestTetree(t)
	pos := geometry.Point{X: 40, Y: 40, Z: 40}
	id, err := idx.Insert(pos, 9, fixture{Name: "enc"}, nil)
	require.NoError(t, err)

	node, ok := idx.Enclosing(pos, 9)
	require.True(t, ok)
	assert.Contains(t, node.EntityIDs, id)
}

func TestTetreeGetStatsCountsNodesAndEntities(t *testing.T) {
	idx := newTestTetree(t)
	_, err := idx.Insert(geometry.Point{X: 1, Y: 1, Z: 1}, 4, fixture{Name: "x"}, nil)
	require.NoError(t, err)
	_, err = idx.Insert(geometry.Point{X: 2, Y: 2, Z: 2}, 4, fixture{Name: "y"}, nil)
	require.NoError(t, err)

	stats := idx.GetStats()
	assert.Equal(t, 2, stats.EntityCount)
	assert.GreaterOrEqual(t, stats.NodeCount, 1)
	assert.GreaterOrEqual(t, stats.TotalEntityReferences, 2)
}
