// Package entitystore holds every entity's position, optional bounds,
// caller content, and the set of spatial keys it currently occupies (its
// location set, replicated across nodes when an entity spans more than one
// cell). A coarse-grained lock is sufficient here — the spec expects a
// single writer per entity id at a time, with the fine-grained contention
// living in the node store instead.
package entitystore

import (
	"sync"
	"sync/atomic"

	"github.com/scigolib/spatialidx/internal/errs"
	"github.com/scigolib/spatialidx/internal/geometry"
	"github.com/scigolib/spatialidx/internal/keys"
)

// EntityID is a totally ordered, opaque identifier. The zero value is never
// issued by Allocate, so it doubles as a caller-visible "no entity" sentinel.
type EntityID uint64

type entry[K keys.Key, C any] struct {
	position  geometry.Point
	bounds    *geometry.AABB
	content   C
	locations map[K]struct{}
}

// Store is the entity store, generic over the key flavor K (so its location
// sets hold the concrete key type the index was constructed with) and the
// caller's content type C.
type Store[K keys.Key, C any] struct {
	mu       sync.RWMutex
	entities map[EntityID]*entry[K, C]
	nextID   uint64
}

// New returns an empty store.
func New[K keys.Key, C any]() *Store[K, C] {
	return &Store[K, C]{entities: make(map[EntityID]*entry[K, C])}
}

// Allocate returns the next monotone EntityID. Safe for concurrent use.
func (s *Store[K, C]) Allocate() EntityID {
	return EntityID(atomic.AddUint64(&s.nextID, 1))
}

// Put inserts or overwrites id's position, bounds, and content, leaving any
// existing location set untouched (the insertion engine manages locations
// separately via AddLocation/RemoveLocation).
func (s *Store[K, C]) Put(id EntityID, pos geometry.Point, bounds *geometry.AABB, content C) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entities[id]
	if !ok {
		e = &entry[K, C]{locations: make(map[K]struct{})}
		s.entities[id] = e
	}
	e.position = pos
	e.bounds = bounds
	e.content = content
}

// AddLocation records that id now occupies key. Returns NotFound if id was
// never Put.
func (s *Store[K, C]) AddLocation(id EntityID, key K) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entities[id]
	if !ok {
		return errs.New(errs.NotFound, "entitystore: AddLocation on unknown entity")
	}
	e.locations[key] = struct{}{}
	return nil
}

// RemoveLocation drops key from id's location set. A no-op if either is
// unknown.
func (s *Store[K, C]) RemoveLocation(id EntityID, key K) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entities[id]; ok {
		delete(e.locations, key)
	}
}

// Locations returns id's current set of occupied keys.
func (s *Store[K, C]) Locations(id EntityID) ([]K, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entities[id]
	if !ok {
		return nil, false
	}
	out := make([]K, 0, len(e.locations))
	for k := range e.locations {
		out = append(out, k)
	}
	return out, true
}

// GetPosition returns id's stored position.
func (s *Store[K, C]) GetPosition(id EntityID) (geometry.Point, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entities[id]
	if !ok {
		return geometry.Point{}, false
	}
	return e.position, true
}

// GetBounds returns id's stored bounds, nil if the entity has none.
func (s *Store[K, C]) GetBounds(id EntityID) (*geometry.AABB, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entities[id]
	if !ok {
		return nil, false
	}
	return e.bounds, true
}

// GetContent returns id's stored content.
func (s *Store[K, C]) GetContent(id EntityID) (C, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entities[id]
	if !ok {
		var zero C
		return zero, false
	}
	return e.content, true
}

// Contains reports whether id is known to the store.
func (s *Store[K, C]) Contains(id EntityID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entities[id]
	return ok
}

// Remove deletes id entirely and returns the set of keys it occupied, so the
// caller (the insertion engine) can remove it from those node store entries.
func (s *Store[K, C]) Remove(id EntityID) ([]K, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entities[id]
	if !ok {
		return nil, false
	}
	out := make([]K, 0, len(e.locations))
	for k := range e.locations {
		out = append(out, k)
	}
	delete(s.entities, id)
	return out, true
}

// Stats returns the number of live entities.
func (s *Store[K, C]) Stats() (count int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entities)
}

// Clear drops every entity, used by the lifecycle package's Clear alongside
// nodestore.Store.Clear.
func (s *Store[K, C]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities = make(map[EntityID]*entry[K, C])
}
