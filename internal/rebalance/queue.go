package rebalance

import (
	"sync"

	"github.com/scigolib/spatialidx/internal/keys"
)

// dirtyQueue is a dedup-on-insert FIFO of keys pending a split pass, used
// by ModeDeferred (drained once by ProcessDeferred) and ModeIncremental
// (drained in bounded slices by the background goroutine).
type dirtyQueue[K keys.Key] struct {
	mu    sync.Mutex
	set   map[K]struct{}
	order []K
}

func newDirtyQueue[K keys.Key]() *dirtyQueue[K] {
	return &dirtyQueue[K]{set: make(map[K]struct{})}
}

func (q *dirtyQueue[K]) push(k K) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.set[k]; ok {
		return
	}
	q.set[k] = struct{}{}
	q.order = append(q.order, k)
}

// popAll drains the entire queue.
func (q *dirtyQueue[K]) popAll() []K {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.order
	q.order = nil
	q.set = make(map[K]struct{})
	return out
}

// popN drains up to n keys from the front, oldest first.
func (q *dirtyQueue[K]) popN(n int) []K {
	q.mu.Lock()
	defer q.mu.Unlock()
	if n > len(q.order) {
		n = len(q.order)
	}
	out := q.order[:n]
	q.order = q.order[n:]
	for _, k := range out {
		delete(q.set, k)
	}
	return out
}

func (q *dirtyQueue[K]) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.order)
}
