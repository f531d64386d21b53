// Package lock is the concurrency controller: per-node locks with three
// interchangeable strategies, deadlock-free ascending-key multi-node
// acquisition via an explicitly threaded Session, and a coarse index-wide
// lock for bulk-loading mode.
package lock

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/scigolib/spatialidx/internal/errs"
)

// Strategy selects how a NodeLock arbitrates between readers and writers.
type Strategy int

const (
	// Conservative always takes the full write lock, for both reads and
	// writes. Simplest, safest under heavy write contention.
	Conservative Strategy = iota
	// Adaptive takes a read lock for reads and a write lock for writes,
	// backing off with a short retry instead of blocking indefinitely
	// once the configured timeout is exceeded.
	Adaptive
	// Optimistic reads validate a monotonically increasing write stamp
	// instead of taking any lock; a stamp mismatch falls back to
	// Adaptive's read-lock path.
	Optimistic
)

// retryBackoff is the polling interval LockWrite/LockRead use while
// spinning on TryLock/TryRLock toward their deadline.
const retryBackoff = 200 * time.Microsecond

// NodeLock guards one live node's key. One NodeLock exists per key that has
// ever been looked up through a Manager; Manager evicts unreferenced
// entries via its LRU cache.
type NodeLock struct {
	strategy Strategy
	mu       sync.RWMutex
	stamp    atomic.Uint64
	refCount atomic.Int32
}

func newNodeLock(strategy Strategy) *NodeLock {
	return &NodeLock{strategy: strategy}
}

// LockWrite acquires the lock for writing, honoring timeout. Every write
// acquisition eventually bumps the optimistic stamp on release so
// concurrent optimistic readers can detect the mutation.
func (l *NodeLock) LockWrite(timeout time.Duration) error {
	return l.acquireWithTimeout(timeout, l.mu.TryLock)
}

// UnlockWrite releases a write lock acquired via LockWrite.
func (l *NodeLock) UnlockWrite() {
	l.stamp.Add(1)
	l.mu.Unlock()
}

// LockRead acquires the lock for reading per the node's strategy:
// Conservative takes the full write lock; Adaptive and Optimistic's
// fallback path take the read lock.
func (l *NodeLock) LockRead(timeout time.Duration) error {
	if l.strategy == Conservative {
		return l.acquireWithTimeout(timeout, l.mu.TryLock)
	}
	return l.acquireWithTimeout(timeout, l.mu.TryRLock)
}

// UnlockRead releases a lock acquired via LockRead.
func (l *NodeLock) UnlockRead() {
	if l.strategy == Conservative {
		l.mu.Unlock()
		return
	}
	l.mu.RUnlock()
}

// TryOptimisticRead runs fn without acquiring any lock and reports whether
// no write completed while fn ran. Only meaningful under Optimistic;
// callers fall back to LockRead when it returns false. fn must not mutate
// node state — the whole point is that it only reads.
func (l *NodeLock) TryOptimisticRead(fn func()) (consistent bool) {
	before := l.stamp.Load()
	fn()
	return before == l.stamp.Load()
}

func (l *NodeLock) acquireWithTimeout(timeout time.Duration, tryAcquire func() bool) error {
	if tryAcquire() {
		return nil
	}
	deadline := time.Now().Add(timeout)
	for {
		if time.Now().After(deadline) {
			return errs.NewStack(errs.LockTimeout, "lock: timed out acquiring node lock")
		}
		time.Sleep(retryBackoff)
		if tryAcquire() {
			return nil
		}
	}
}

func (l *NodeLock) acquireRef()  { l.refCount.Add(1) }
func (l *NodeLock) releaseRef()  { l.refCount.Add(-1) }
func (l *NodeLock) inUse() bool  { return l.refCount.Load() > 0 }
