package rebalance

import (
	"testing"
	"time"

	"github.com/scigolib/spatialidx/internal/entitystore"
	"github.com/scigolib/spatialidx/internal/geometry"
	"github.com/scigolib/spatialidx/internal/keys"
	"github.com/scigolib/spatialidx/internal/lock"
	"github.com/scigolib/spatialidx/internal/nodestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct{ Name string }

type harness struct {
	nodes    *nodestore.Store[keys.OctKey]
	entities *entitystore.Store[keys.OctKey, payload]
	locks    *lock.Manager[keys.OctKey]
}

func newHarness() *harness {
	return &harness{
		nodes:    nodestore.New[keys.OctKey](),
		entities: entitystore.New[keys.OctKey, payload](),
		locks:    lock.NewManager[keys.OctKey](),
	}
}

func (h *harness) put(key keys.OctKey, pos geometry.Point) entitystore.EntityID {
	id := h.entities.Allocate()
	h.entities.Put(id, pos, nil, payload{})
	_ = h.entities.AddLocation(id, key)
	h.nodes.GetOrCreate(key, 1).AddEntity(id)
	return id
}

func (h *harness) cfg(capacityHint uint32) Config[keys.OctKey, payload] {
	return Config[keys.OctKey, payload]{
		Flavor:       keys.OctFlavor{},
		Nodes:        h.nodes,
		Entities:     h.entities,
		Locks:        h.locks,
		CapacityHint: capacityHint,
	}
}

func TestDefaultPolicyThresholds(t *testing.T) {
	p := DefaultPolicy()
	assert.True(t, p.ShouldSplit(5, 3, 4))
	assert.False(t, p.ShouldSplit(4, 3, 4))
	assert.False(t, p.ShouldSplit(5, keys.MaxRefinementLevel, 4))
	assert.True(t, p.ShouldMerge(3, 4))
	assert.False(t, p.ShouldMerge(5, 4))
}

func TestBalancerSplitDistributesEntitiesAcrossChildren(t *testing.T) {
	h := newHarness()
	level := uint8(5)
	key := keys.OctFlavor{}.Enclosing(geometry.Point{X: 100, Y: 100, Z: 100}, level)
	// Two positions that share the level-5 cell but land in different
	// octants at level 6: one near the cell's min corner, one offset by
	// half the cell edge along X.
	edge := float64(keys.CellEdgeLength(level))
	a := h.put(key, geometry.Point{X: 100, Y: 100, Z: 100})
	b := h.put(key, geometry.Point{X: 100 + edge/2, Y: 100, Z: 100})

	b2 := New(h.cfg(1), WithMode(ModeImmediate))
	node, ok := h.nodes.Get(key)
	require.True(t, ok)
	require.Equal(t, 2, node.Count())

	b2.NotifyDirty(node)

	node, ok = h.nodes.Get(key)
	require.True(t, ok)
	assert.True(t, node.HasChildren)
	assert.Equal(t, 0, node.Count())

	var total int
	locsA, ok := h.entities.Locations(a)
	require.True(t, ok)
	locsB, ok := h.entities.Locations(b)
	require.True(t, ok)
	assert.NotEqual(t, locsA[0], key)
	assert.NotEqual(t, locsB[0], key)

	for _, childKey := range childKeysOf(key) {
		if cn, ok := h.nodes.Get(childKey); ok {
			total += cn.Count()
		}
	}
	assert.Equal(t, 2, total)
	assert.EqualValues(t, 1, b2.Metrics().SplitsTotal)
}

func TestBalancerSplitMarksUnsplittableWithoutDispersion(t *testing.T) {
	h := newHarness()
	level := uint8(5)
	key := keys.OctFlavor{}.Enclosing(geometry.Point{X: 200, Y: 200, Z: 200}, level)
	h.put(key, geometry.Point{X: 200, Y: 200, Z: 200})
	h.put(key, geometry.Point{X: 200, Y: 200, Z: 200})
	h.put(key, geometry.Point{X: 200, Y: 200, Z: 200})

	b := New(h.cfg(1), WithMode(ModeImmediate))
	node, _ := h.nodes.Get(key)
	b.NotifyDirty(node)

	node, ok := h.nodes.Get(key)
	require.True(t, ok)
	assert.False(t, node.HasChildren)
	assert.Equal(t, 3, node.Count())
	assert.EqualValues(t, 1, b.Metrics().UnsplittableTotal)

	// A second notification must not attempt the split again.
	b.NotifyDirty(node)
	assert.EqualValues(t, 1, b.Metrics().UnsplittableTotal)
}

func TestBalancerDeferredModeQueuesUntilProcessDeferred(t *testing.T) {
	h := newHarness()
	level := uint8(5)
	key := keys.OctFlavor{}.Enclosing(geometry.Point{X: 300, Y: 300, Z: 300}, level)
	edge := float64(keys.CellEdgeLength(level))
	h.put(key, geometry.Point{X: 300, Y: 300, Z: 300})
	h.put(key, geometry.Point{X: 300 + edge/2, Y: 300, Z: 300})

	b := New(h.cfg(1), WithMode(ModeDeferred))
	node, _ := h.nodes.Get(key)
	b.NotifyDirty(node)

	node, _ = h.nodes.Get(key)
	assert.False(t, node.HasChildren)
	assert.EqualValues(t, 1, b.Metrics().DeferredTotal)

	b.ProcessDeferred()
	node, _ = h.nodes.Get(key)
	assert.True(t, node.HasChildren)
	assert.EqualValues(t, 1, b.Metrics().SplitsTotal)
}

func TestBalancerIncrementalModeDrainsInBackground(t *testing.T) {
	h := newHarness()
	level := uint8(5)
	key := keys.OctFlavor{}.Enclosing(geometry.Point{X: 400, Y: 400, Z: 400}, level)
	edge := float64(keys.CellEdgeLength(level))
	h.put(key, geometry.Point{X: 400, Y: 400, Z: 400})
	h.put(key, geometry.Point{X: 400 + edge/2, Y: 400, Z: 400})

	b := New(h.cfg(1), WithIncrementalRebalancing(8, 10*time.Millisecond))
	defer b.Stop()

	node, _ := h.nodes.Get(key)
	b.NotifyDirty(node)

	assert.Eventually(t, func() bool {
		n, ok := h.nodes.Get(key)
		return ok && n.HasChildren
	}, time.Second, 5*time.Millisecond)
}

func TestBalancerTryMergePullsChildrenBack(t *testing.T) {
	h := newHarness()
	level := uint8(5)
	key := keys.OctFlavor{}.Enclosing(geometry.Point{X: 500, Y: 500, Z: 500}, level)
	parent := h.nodes.GetOrCreate(key, 4)
	parent.HasChildren = true

	total := 0
	for _, childKey := range childKeysOf(key) {
		h.put(childKey, geometry.Point{X: 500, Y: 500, Z: 500})
		total++
	}

	b := New(h.cfg(8))
	require.NoError(t, b.TryMerge(key))

	node, ok := h.nodes.Get(key)
	require.True(t, ok)
	assert.False(t, node.HasChildren)
	assert.Equal(t, total, node.Count())

	for _, childKey := range childKeysOf(key) {
		assert.False(t, h.nodes.Contains(childKey))
	}
	assert.EqualValues(t, 1, b.Metrics().MergesTotal)
}

func TestBalancerTryMergeAbortsWhenOverCapacity(t *testing.T) {
	h := newHarness()
	level := uint8(5)
	key := keys.OctFlavor{}.Enclosing(geometry.Point{X: 600, Y: 600, Z: 600}, level)
	parent := h.nodes.GetOrCreate(key, 1)
	parent.HasChildren = true

	for _, childKey := range childKeysOf(key) {
		h.put(childKey, geometry.Point{X: 600, Y: 600, Z: 600})
	}

	b := New(h.cfg(1))
	require.NoError(t, b.TryMerge(key))

	node, ok := h.nodes.Get(key)
	require.True(t, ok)
	assert.True(t, node.HasChildren, "merge should abort when joint count exceeds capacity")
}

func TestDetectorClassifiesBulkInsert(t *testing.T) {
	d := NewDetector(WithMinSampleSize(5))
	for i := 0; i < 20; i++ {
		d.Record(OpInsert)
	}
	assert.Equal(t, WorkloadBulkInsert, d.Classify())
}

func TestDetectorClassifiesChurn(t *testing.T) {
	d := NewDetector(WithMinSampleSize(5))
	for i := 0; i < 10; i++ {
		d.Record(OpRemove)
		d.Record(OpInsert)
	}
	assert.Equal(t, WorkloadChurn, d.Classify())
}

func TestDetectorUnknownBelowMinSampleSize(t *testing.T) {
	d := NewDetector(WithMinSampleSize(50))
	d.Record(OpInsert)
	assert.Equal(t, WorkloadUnknown, d.Classify())
}

func TestSelectorRecommendsModesByWorkload(t *testing.T) {
	s := NewSelector()
	valid := WorkloadFeatures{SampleSize: 10}
	assert.Equal(t, ModeDeferred, s.Recommend(valid, WorkloadBulkInsert))
	assert.Equal(t, ModeIncremental, s.Recommend(valid, WorkloadChurn))
	assert.Equal(t, ModeImmediate, s.Recommend(valid, WorkloadSteady))
	assert.Equal(t, ModeImmediate, s.Recommend(WorkloadFeatures{}, WorkloadBulkInsert))
}
