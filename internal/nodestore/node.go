package nodestore

import (
	"github.com/scigolib/spatialidx/internal/entitystore"
	"github.com/scigolib/spatialidx/internal/keys"
)

// Node holds the entity ids occupying one spatial cell. Its fields are
// mutated without an internal lock — callers acquire the cell's lock
// through the concurrency controller (internal/lock) before calling any
// mutating method here, exactly as the entity store expects a single
// writer per id.
type Node[K keys.Key] struct {
	Key          K
	Entities     map[entitystore.EntityID]struct{}
	HasChildren  bool
	CapacityHint uint32
}

func newNode[K keys.Key](key K, capacityHint uint32) *Node[K] {
	return &Node[K]{Key: key, Entities: make(map[entitystore.EntityID]struct{}), CapacityHint: capacityHint}
}

// AddEntity records id as occupying this cell.
func (n *Node[K]) AddEntity(id entitystore.EntityID) {
	n.Entities[id] = struct{}{}
}

// RemoveEntity drops id from this cell.
func (n *Node[K]) RemoveEntity(id entitystore.EntityID) {
	delete(n.Entities, id)
}

// Count returns the number of entity ids currently in this cell.
func (n *Node[K]) Count() int {
	return len(n.Entities)
}

// EntityIDs returns a snapshot slice of the occupying entity ids.
func (n *Node[K]) EntityIDs() []entitystore.EntityID {
	out := make([]entitystore.EntityID, 0, len(n.Entities))
	for id := range n.Entities {
		out = append(out, id)
	}
	return out
}

// ClearEntities drops every entity id this node holds, leaving it empty
// (used by the balancer after a successful split distributes them to the
// children).
func (n *Node[K]) ClearEntities() {
	n.Entities = make(map[entitystore.EntityID]struct{})
}

// OverCapacity reports whether this leaf should be enqueued for split per
// the default shouldSplit policy (count > capacityHint && level < maxLevel).
func (n *Node[K]) OverCapacity() bool {
	return uint32(len(n.Entities)) > n.CapacityHint && n.Key.Level() < keys.MaxRefinementLevel
}
