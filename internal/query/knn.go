package query

import (
	"container/heap"
	"math"
	"sort"

	"github.com/scigolib/spatialidx/internal/entitystore"
	"github.com/scigolib/spatialidx/internal/geometry"
)

// ScoredEntity pairs an entity with a distance used to order query results.
type ScoredEntity struct {
	ID              entitystore.EntityID
	DistanceSquared float64
}

// candidateHeap is a min-heap over the cells still worth visiting, ordered
// by each cell's minimum possible distance to the query point.
type candidateHeap[K any] struct {
	nodeKeys []K
	minDist  []float64
}

func (h *candidateHeap[K]) Len() int            { return len(h.minDist) }
func (h *candidateHeap[K]) Less(i, j int) bool  { return h.minDist[i] < h.minDist[j] }
func (h *candidateHeap[K]) Swap(i, j int) {
	h.nodeKeys[i], h.nodeKeys[j] = h.nodeKeys[j], h.nodeKeys[i]
	h.minDist[i], h.minDist[j] = h.minDist[j], h.minDist[i]
}
func (h *candidateHeap[K]) Push(x any) {
	e := x.(candidateEntry[K])
	h.nodeKeys = append(h.nodeKeys, e.key)
	h.minDist = append(h.minDist, e.minDist)
}
func (h *candidateHeap[K]) Pop() any {
	n := len(h.minDist)
	key, d := h.nodeKeys[n-1], h.minDist[n-1]
	h.nodeKeys = h.nodeKeys[:n-1]
	h.minDist = h.minDist[:n-1]
	return candidateEntry[K]{key: key, minDist: d}
}

type candidateEntry[K any] struct {
	key     K
	minDist float64
}

// resultHeap is a bounded max-heap of the k nearest entities seen so far;
// the root is always the current worst (farthest, then highest id) member,
// the one to evict when a closer candidate arrives.
type resultHeap []ScoredEntity

func (h resultHeap) Len() int { return len(h) }
func (h resultHeap) Less(i, j int) bool {
	if h[i].DistanceSquared != h[j].DistanceSquared {
		return h[i].DistanceSquared > h[j].DistanceSquared
	}
	return h[i].ID > h[j].ID
}
func (h resultHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *resultHeap) Push(x any)        { *h = append(*h, x.(ScoredEntity)) }
func (h *resultHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// KNearest returns the k entities closest to query, ties broken by ascending
// EntityID. maxDistance, if positive, bounds the search radius.
func (e *Engine[K, C]) KNearest(query geometry.Point, k int, maxDistance float64) Result[ScoredEntity] {
	if k <= 0 {
		return Result[ScoredEntity]{}
	}

	snap := e.nodes.Snapshot()
	ch := &candidateHeap[K]{}
	heap.Init(ch)
	maxDistSq := math.Inf(1)
	if maxDistance > 0 {
		maxDistSq = maxDistance * maxDistance
	}
	for node := range snap.InOrder() {
		cell := e.flavor.Bounds(node.Key)
		d := cell.MinDistanceSquared(query)
		if d > maxDistSq {
			continue
		}
		heap.Push(ch, candidateEntry[K]{key: node.Key, minDist: d})
	}

	best := &resultHeap{}
	heap.Init(best)
	seen := make(map[entitystore.EntityID]struct{})
	worst := math.Inf(1)

	for ch.Len() > 0 {
		top := (*ch).minDist[0]
		if best.Len() == k && top > worst {
			break
		}
		entry := heap.Pop(ch).(candidateEntry[K])
		node, ok := e.nodes.Get(entry.key)
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
			d := geometry.DistanceSquared(query, pos)
			if d > maxDistSq {
				continue
			}
			candidate := ScoredEntity{ID: id, DistanceSquared: d}
			switch {
			case best.Len() < k:
				heap.Push(best, candidate)
			case candidate.DistanceSquared < (*best)[0].DistanceSquared,
				candidate.DistanceSquared == (*best)[0].DistanceSquared && candidate.ID < (*best)[0].ID:
				heap.Pop(best)
				heap.Push(best, candidate)
			}
			if best.Len() == k {
				worst = (*best)[0].DistanceSquared
			}
		}
	}

	out := make([]ScoredEntity, best.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(best).(ScoredEntity)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DistanceSquared != out[j].DistanceSquared {
			return out[i].DistanceSquared < out[j].DistanceSquared
		}
		return out[i].ID < out[j].ID
	})
	return Result[ScoredEntity]{items: out}
}
