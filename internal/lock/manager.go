package lock

import (
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/scigolib/spatialidx/internal/errs"
	"github.com/scigolib/spatialidx/internal/keys"
)

// defaultLockCacheSize bounds the number of live NodeLocks the manager
// keeps around; entries are only evicted once their refCount reaches zero,
// so a busy lock is never dropped out from under its holder.
const defaultLockCacheSize = 1 << 16

// defaultTimeout is the default deadline for a single lock acquisition.
const defaultTimeout = 5 * time.Second

// Manager owns one NodeLock per live key and the coarse index-wide lock
// used during bulk-loading mode. golang-lru's Cache locks each call on its
// own, but lockFor's Get-then-Add pair must be atomic, so cacheMu
// serializes it; the per-key critical section is tiny (map lookup/insert),
// so this is not a bottleneck relative to the per-node lock contention it
// guards.
type Manager[K keys.Key] struct {
	strategy Strategy
	timeout  time.Duration

	cacheMu sync.Mutex
	cache   *lru.Cache[K, *NodeLock]

	globalMu    sync.RWMutex
	bulkLoading atomic.Bool
}

// Option configures a Manager.
type Option func(*config)

type config struct {
	strategy  Strategy
	timeout   time.Duration
	cacheSize int
}

// WithStrategy selects the per-node lock strategy. Default Adaptive.
func WithStrategy(s Strategy) Option {
	return func(c *config) { c.strategy = s }
}

// WithTimeout sets the default lock-acquisition deadline. Default 5s.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithLockCacheSize bounds the number of cached NodeLocks. Default 1<<16.
func WithLockCacheSize(n int) Option {
	return func(c *config) { c.cacheSize = n }
}

// NewManager builds a Manager with the given options.
func NewManager[K keys.Key](opts ...Option) *Manager[K] {
	cfg := config{strategy: Adaptive, timeout: defaultTimeout, cacheSize: defaultLockCacheSize}
	for _, opt := range opts {
		opt(&cfg)
	}

	var cache *lru.Cache[K, *NodeLock]
	evictGuard := func(key K, value *NodeLock) {
		// lru's OnEvict fires synchronously from within Add; value may
		// still be referenced by an in-flight holder. NodeLock itself
		// has no way to refuse eviction, so Manager re-inserts any
		// in-use lock immediately — correctness over strict cache-size
		// bound under pathological contention.
		if value.inUse() {
			cache.Add(key, value)
		}
	}
	cache, err := lru.NewWithEvict[K, *NodeLock](cfg.cacheSize, evictGuard)
	if err != nil {
		// Only non-positive sizes cause an error, which WithLockCacheSize
		// callers control; a zero/negative size is a programmer mistake.
		panic("lock: invalid lock cache size: " + err.Error())
	}

	return &Manager[K]{strategy: cfg.strategy, timeout: cfg.timeout, cache: cache}
}

func (m *Manager[K]) lockFor(key K) *NodeLock {
	m.cacheMu.Lock()
	defer m.cacheMu.Unlock()

	if l, ok := m.cache.Get(key); ok {
		return l
	}
	l := newNodeLock(m.strategy)
	m.cache.Add(key, l)
	return l
}

// Session tracks the ascending-sorted set of keys the current logical
// operation already holds, so WithWriteLock/WithReadLock can detect and
// reject an out-of-order acquisition before it creates a deadlock cycle.
// Go has no implicit goroutine-local storage, so callers thread a *Session
// explicitly through a call chain instead of the manager tracking it by
// goroutine id.
type Session[K keys.Key] struct {
	held []K
}

// NewSession returns an empty session for one logical operation.
func NewSession[K keys.Key]() *Session[K] {
	return &Session[K]{}
}

func (s *Session[K]) checkAscending(key K) error {
	if len(s.held) == 0 {
		return nil
	}
	last := s.held[len(s.held)-1]
	if key.Less(last) {
		return errs.NewStack(errs.DeadlockHazard, "lock: session already holds a higher key")
	}
	return nil
}

func (s *Session[K]) push(key K) { s.held = append(s.held, key) }
func (s *Session[K]) pop()       { s.held = s.held[:len(s.held)-1] }

// WithReadLock runs fn while holding key's read lock (write lock, under
// Conservative), blocking on the coarse bulk-loading lock if it is held.
func (m *Manager[K]) WithReadLock(sess *Session[K], key K, fn func() error) error {
	if err := sess.checkAscending(key); err != nil {
		return err
	}
	m.globalMu.RLock()
	defer m.globalMu.RUnlock()

	l := m.lockFor(key)
	l.acquireRef()
	defer l.releaseRef()

	if l.strategy == Optimistic {
		var fnErr error
		if l.TryOptimisticRead(func() { fnErr = fn() }) {
			return fnErr
		}
	}

	if err := l.LockRead(m.timeout); err != nil {
		return err
	}
	sess.push(key)
	defer func() {
		sess.pop()
		l.UnlockRead()
	}()
	return fn()
}

// WithWriteLock runs fn while holding key's write lock, blocking on the
// coarse bulk-loading lock if it is held.
func (m *Manager[K]) WithWriteLock(sess *Session[K], key K, fn func() error) error {
	if err := sess.checkAscending(key); err != nil {
		return err
	}
	m.globalMu.RLock()
	defer m.globalMu.RUnlock()

	l := m.lockFor(key)
	l.acquireRef()
	defer l.releaseRef()

	if err := l.LockWrite(m.timeout); err != nil {
		return err
	}
	sess.push(key)
	defer func() {
		sess.pop()
		l.UnlockWrite()
	}()
	return fn()
}

// WithMultiWriteLock acquires write locks on every key in sortedKeys, in
// order, then runs fn. sortedKeys must already be ascending (the caller —
// the balancer or a spanning insert — sorts them); a session already
// holding a higher key, or an unsorted slice, fails fast with
// DeadlockHazard/InvalidArgument before any lock is taken.
func (m *Manager[K]) WithMultiWriteLock(sess *Session[K], sortedKeys []K, fn func() error) error {
	for i := 1; i < len(sortedKeys); i++ {
		if sortedKeys[i].Less(sortedKeys[i-1]) {
			return errs.New(errs.InvalidArgument, "lock: WithMultiWriteLock requires ascending keys")
		}
	}

	m.globalMu.RLock()
	defer m.globalMu.RUnlock()

	acquired := make([]*NodeLock, 0, len(sortedKeys))
	rollback := func() {
		for i := len(acquired) - 1; i >= 0; i-- {
			acquired[i].UnlockWrite()
			acquired[i].releaseRef()
			sess.pop()
		}
	}

	for _, key := range sortedKeys {
		if err := sess.checkAscending(key); err != nil {
			rollback()
			return err
		}
		l := m.lockFor(key)
		l.acquireRef()
		if err := l.LockWrite(m.timeout); err != nil {
			l.releaseRef()
			rollback()
			return err
		}
		sess.push(key)
		acquired = append(acquired, l)
	}

	defer rollback()
	return fn()
}

// EnableBulkLoading takes the coarse index-wide write lock and holds it
// until FinalizeBulkLoading releases it. While held, ordinary
// WithReadLock/WithWriteLock/WithMultiWriteLock callers block on
// globalMu.RLock — the bulk loader itself bypasses per-node locks entirely
// since it is now the sole writer.
func (m *Manager[K]) EnableBulkLoading() {
	m.globalMu.Lock()
	m.bulkLoading.Store(true)
}

// FinalizeBulkLoading releases the coarse lock taken by EnableBulkLoading.
func (m *Manager[K]) FinalizeBulkLoading() {
	m.bulkLoading.Store(false)
	m.globalMu.Unlock()
}

// IsBulkLoading reports whether the index is currently in bulk-loading
// mode, so callers (the insertion engine) know to defer split checks
// instead of triggering them inline.
func (m *Manager[K]) IsBulkLoading() bool {
	return m.bulkLoading.Load()
}
