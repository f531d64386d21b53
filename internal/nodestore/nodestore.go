// Package nodestore is the sparse, ordered mapping from spatial key to
// Node. It is backed by github.com/google/btree, whose copy-on-write
// Clone() gives Snapshot() the "tolerate lock-free read iteration" property
// the design calls for without a hand-rolled skip list.
package nodestore

import (
	"iter"

	"github.com/google/btree"
	"github.com/scigolib/spatialidx/internal/keys"

	"sync"
)

type nodeEntry[K keys.Key] struct {
	key  K
	node *Node[K]
}

// degree is the btree's branching factor; 32 is a reasonable default for an
// in-memory index where entries are pointers (cheap to move during
// rebalancing) and reads dominate writes.
const degree = 32

// Store is the sparse key -> Node map. Structural writes (insert/delete of
// a node) take an internal mutex; Snapshot() clones the tree in O(1) so
// readers never block behind that mutex for the duration of an iteration.
type Store[K keys.Key] struct {
	mu   sync.Mutex
	tree *btree.BTreeG[nodeEntry[K]]
}

func lessFunc[K keys.Key]() func(a, b nodeEntry[K]) bool {
	return func(a, b nodeEntry[K]) bool { return a.key.Less(b.key) }
}

// New returns an empty node store.
func New[K keys.Key]() *Store[K] {
	return &Store[K]{tree: btree.NewG[nodeEntry[K]](degree, lessFunc[K]())}
}

// Get returns the node at key, if any.
func (s *Store[K]) Get(key K) (*Node[K], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.tree.Get(nodeEntry[K]{key: key})
	if !ok {
		return nil, false
	}
	return e.node, true
}

// GetOrCreate returns the existing node at key, or creates and inserts one
// with the given capacity hint.
func (s *Store[K]) GetOrCreate(key K, capacityHint uint32) *Node[K] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.tree.Get(nodeEntry[K]{key: key}); ok {
		return e.node
	}
	n := newNode(key, capacityHint)
	s.tree.ReplaceOrInsert(nodeEntry[K]{key: key, node: n})
	return n
}

// Remove deletes the node at key, if present.
func (s *Store[K]) Remove(key K) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tree.Delete(nodeEntry[K]{key: key})
}

// Contains reports whether key has a node.
func (s *Store[K]) Contains(key K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tree.Get(nodeEntry[K]{key: key})
	return ok
}

// Size returns the number of live nodes.
func (s *Store[K]) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree.Len()
}

// Clear drops every node.
func (s *Store[K]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tree = btree.NewG[nodeEntry[K]](degree, lessFunc[K]())
}

// Snapshot returns a frozen, lock-free-iterable view of the store as of
// this call. Writes after Snapshot do not affect the returned view
// (copy-on-write).
func (s *Store[K]) Snapshot() Snapshot[K] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot[K]{tree: s.tree.Clone()}
}

// Snapshot is a read-only, point-in-time view of the node store.
type Snapshot[K keys.Key] struct {
	tree *btree.BTreeG[nodeEntry[K]]
}

// InOrder iterates every node in key order.
func (s Snapshot[K]) InOrder() iter.Seq[*Node[K]] {
	return func(yield func(*Node[K]) bool) {
		s.tree.Ascend(func(e nodeEntry[K]) bool {
			return yield(e.node)
		})
	}
}

// Subrange iterates nodes with key in [lo, hi).
func (s Snapshot[K]) Subrange(lo, hi K) iter.Seq[*Node[K]] {
	return func(yield func(*Node[K]) bool) {
		s.tree.AscendRange(nodeEntry[K]{key: lo}, nodeEntry[K]{key: hi}, func(e nodeEntry[K]) bool {
			return yield(e.node)
		})
	}
}

// Len returns the number of nodes in this snapshot.
func (s Snapshot[K]) Len() int {
	return s.tree.Len()
}
