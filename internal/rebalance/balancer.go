// Package rebalance is the balancer (C6): split/merge of nodes against an
// injected Policy, deferred/incremental scheduling modes, and the
// workload-aware Detector/Selector pair that can recommend a mode when the
// caller opts into ModeAuto.
package rebalance

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/scigolib/spatialidx/internal/entitystore"
	"github.com/scigolib/spatialidx/internal/errs"
	"github.com/scigolib/spatialidx/internal/keys"
	"github.com/scigolib/spatialidx/internal/lock"
	"github.com/scigolib/spatialidx/internal/nodestore"
)

const (
	defaultIncrementalBudget   = 64
	defaultIncrementalInterval = 100 * time.Millisecond
)

// Config bundles a Balancer's required wiring: the same node/entity stores
// and lock manager the insertion engine was built with, plus the flavor
// that lets it locate an entity's child octant.
type Config[K keys.Key, C any] struct {
	Flavor       keys.Flavor[K]
	Nodes        *nodestore.Store[K]
	Entities     *entitystore.Store[K, C]
	Locks        *lock.Manager[K]
	CapacityHint uint32
}

type settings struct {
	policy              Policy
	mode                Mode
	logger              zerolog.Logger
	incrementalBudget   int
	incrementalInterval time.Duration
}

// Option configures optional Balancer behavior.
type Option func(*settings)

// WithPolicy overrides DefaultPolicy's split/merge predicates.
func WithPolicy(p Policy) Option {
	return func(s *settings) { s.policy = p }
}

// WithMode pins the scheduling mode. Default ModeImmediate.
func WithMode(m Mode) Option {
	return func(s *settings) { s.mode = m }
}

// WithLogger attaches a zerolog.Logger for split/merge lifecycle events
// (Info) and non-fatal recoveries like a failed or unsplittable attempt
// (Debug). Default is a no-op logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithIncrementalRebalancing pins ModeIncremental and configures the
// background goroutine's per-tick budget and tick interval.
func WithIncrementalRebalancing(budget int, interval time.Duration) Option {
	return func(s *settings) {
		s.mode = ModeIncremental
		if budget > 0 {
			s.incrementalBudget = budget
		}
		if interval > 0 {
			s.incrementalInterval = interval
		}
	}
}

// Balancer owns the split/merge algorithms and their scheduling. It
// implements insertion.DirtyNotifier[K] so the insertion engine can hand it
// over-capacity leaves without importing this package.
type Balancer[K keys.Key, C any] struct {
	flavor       keys.Flavor[K]
	nodes        *nodestore.Store[K]
	entities     *entitystore.Store[K, C]
	locks        *lock.Manager[K]
	capacityHint uint32

	policy   Policy
	mode     Mode
	logger   zerolog.Logger
	detector *Detector
	selector *Selector
	metrics  Metrics

	dirty               *dirtyQueue[K]
	incrementalBudget   int
	incrementalInterval time.Duration

	unsplittableMu sync.Mutex
	unsplittable   map[K]struct{}

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New builds a Balancer. If opts pins ModeIncremental (directly or via
// WithIncrementalRebalancing), the background draining goroutine starts
// immediately; callers own its lifetime via Stop.
func New[K keys.Key, C any](cfg Config[K, C], opts ...Option) *Balancer[K, C] {
	s := settings{
		policy:              DefaultPolicy(),
		mode:                ModeImmediate,
		logger:              zerolog.Nop(),
		incrementalBudget:   defaultIncrementalBudget,
		incrementalInterval: defaultIncrementalInterval,
	}
	for _, opt := range opts {
		opt(&s)
	}

	b := &Balancer[K, C]{
		flavor:              cfg.Flavor,
		nodes:               cfg.Nodes,
		entities:            cfg.Entities,
		locks:               cfg.Locks,
		capacityHint:        cfg.CapacityHint,
		policy:              s.policy,
		mode:                s.mode,
		logger:              s.logger,
		detector:            NewDetector(),
		selector:            NewSelector(),
		dirty:               newDirtyQueue[K](),
		incrementalBudget:   s.incrementalBudget,
		incrementalInterval: s.incrementalInterval,
		unsplittable:        make(map[K]struct{}),
	}

	if b.mode == ModeIncremental || b.mode == ModeAuto {
		b.startBackground()
	}
	return b
}

// Metrics returns a point-in-time snapshot of the split/merge counters.
func (b *Balancer[K, C]) Metrics() MetricsSnapshot { return b.metrics.Snapshot() }

// DirtyQueueLen reports how many leaves are currently queued for a deferred
// or incremental split, used by the facade to detect a bulk-load queue
// overflow (the CapacityExceeded policy in the error taxonomy).
func (b *Balancer[K, C]) DirtyQueueLen() int { return b.dirty.len() }

// RecommendedMode reports what the Detector/Selector pair would currently
// choose, independent of the mode actually in effect — introspection for a
// caller that wants to watch how the workload is trending before switching.
func (b *Balancer[K, C]) RecommendedMode() Mode {
	return b.selector.Recommend(b.detector.ExtractFeatures(), b.detector.Classify())
}

func (b *Balancer[K, C]) isUnsplittable(key K) bool {
	b.unsplittableMu.Lock()
	defer b.unsplittableMu.Unlock()
	_, ok := b.unsplittable[key]
	return ok
}

func (b *Balancer[K, C]) markUnsplittable(key K) {
	b.unsplittableMu.Lock()
	defer b.unsplittableMu.Unlock()
	b.unsplittable[key] = struct{}{}
}

// forgetUnsplittable clears a key's unsplittable mark, called after a merge
// folds it back into a parent — a future split attempt deserves a fresh
// chance at the (now different) entity set.
func (b *Balancer[K, C]) forgetUnsplittable(key K) {
	b.unsplittableMu.Lock()
	defer b.unsplittableMu.Unlock()
	delete(b.unsplittable, key)
}

// NotifyDirty implements insertion.DirtyNotifier[K]. The effective mode is
// resolved per-call under ModeAuto; an explicitly pinned mode always wins.
func (b *Balancer[K, C]) NotifyDirty(node *nodestore.Node[K]) {
	b.detector.Record(OpInsert)

	key := node.Key
	if b.isUnsplittable(key) {
		return
	}

	mode := b.mode
	if mode == ModeAuto {
		mode = b.selector.Recommend(b.detector.ExtractFeatures(), b.detector.Classify())
	}
	// An inline split would block on the index-wide lock the bulk loader
	// holds, so while bulk loading an immediate split is queued instead and
	// runs in ProcessDeferred.
	if mode == ModeImmediate && b.locks.IsBulkLoading() {
		mode = ModeDeferred
	}

	switch mode {
	case ModeDeferred:
		b.dirty.push(key)
		b.metrics.DeferredTotal.Add(1)
	case ModeIncremental:
		b.dirty.push(key)
	default: // ModeImmediate
		if err := b.trySplit(key); err != nil {
			b.logger.Debug().Err(err).Msg("rebalance: immediate split attempt failed")
		}
	}
}

// RecordRemove/RecordUpdate feed the workload detector from call sites the
// insertion engine doesn't notify through DirtyNotifier (removes never
// leave a node over capacity).
func (b *Balancer[K, C]) RecordRemove() { b.detector.Record(OpRemove) }
func (b *Balancer[K, C]) RecordUpdate() { b.detector.Record(OpUpdate) }

// ProcessDeferred drains the entire dirty queue, deepest level first (the
// teacher's "finalize replays deferred splits bottom-up"), so a node that
// needs a second split after its first one is already dirty-queued by the
// time its turn comes around.
func (b *Balancer[K, C]) ProcessDeferred() {
	pending := b.dirty.popAll()
	sort.Slice(pending, func(i, j int) bool { return pending[i].Level() > pending[j].Level() })
	for _, key := range pending {
		if err := b.trySplit(key); err != nil {
			b.logger.Debug().Err(err).Msg("rebalance: deferred split failed")
		}
	}
}

func (b *Balancer[K, C]) startBackground() {
	b.stopCh = make(chan struct{})
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ticker := time.NewTicker(b.incrementalInterval)
		defer ticker.Stop()
		for {
			select {
			case <-b.stopCh:
				return
			case <-ticker.C:
				for _, key := range b.dirty.popN(b.incrementalBudget) {
					if err := b.trySplit(key); err != nil {
						b.logger.Debug().Err(err).Msg("rebalance: incremental split failed")
					}
				}
			}
		}
	}()
}

// Stop shuts down the incremental background goroutine, if running. Safe to
// call on a Balancer that never started one.
func (b *Balancer[K, C]) Stop() {
	if b.stopCh == nil {
		return
	}
	close(b.stopCh)
	b.wg.Wait()
}

// childKeysOf casts Key.Children()'s [8]Key into [8]K — every concrete Key
// implementation's Children() returns its own type, so the assertion always
// succeeds for a correctly parameterized index.
func childKeysOf[K keys.Key](key K) []K {
	raw := key.Children()
	out := make([]K, len(raw))
	for i, c := range raw {
		out[i] = c.(K)
	}
	return out
}

func ascendingLockSet[K keys.Key](key K, children []K) []K {
	set := make([]K, 0, len(children)+1)
	set = append(set, key)
	set = append(set, children...)
	sort.Slice(set, func(i, j int) bool { return set[i].Less(set[j]) })
	return set
}

// trySplit implements the balancer's split algorithm: lock key and its
// eight children in ascending order, bucket key's entities by which child
// contains them, and either distribute them (clearing key) or mark key
// unsplittable if every entity landed in the same bucket (no spatial
// dispersion — splitting again would recurse forever).
func (b *Balancer[K, C]) trySplit(key K) error {
	node, ok := b.nodes.Get(key)
	if !ok {
		return nil
	}
	if !b.policy.ShouldSplit(node.Count(), key.Level(), b.capacityHint) {
		return nil
	}
	if key.Level() >= keys.MaxRefinementLevel {
		b.logger.Debug().Uint8("level", key.Level()).Msg("rebalance: split attempted at max refinement level")
		return errs.New(errs.LevelOverflow, "rebalance: split attempted at max refinement level")
	}

	children := childKeysOf(key)
	lockSet := ascendingLockSet(key, children)
	sess := lock.NewSession[K]()

	var cascaded []*nodestore.Node[K]
	err := b.locks.WithMultiWriteLock(sess, lockSet, func() error {
		node, ok := b.nodes.Get(key)
		if !ok {
			return nil
		}
		if !b.policy.ShouldSplit(node.Count(), key.Level(), b.capacityHint) {
			return nil
		}

		buckets := make(map[K][]entitystore.EntityID)
		for id := range node.Entities {
			pos, ok := b.entities.GetPosition(id)
			if !ok {
				continue
			}
			child := b.flavor.Enclosing(pos, key.Level()+1)
			buckets[child] = append(buckets[child], id)
		}

		if len(buckets) <= 1 {
			b.markUnsplittable(key)
			b.metrics.UnsplittableTotal.Add(1)
			b.logger.Debug().Msg("rebalance: node marked unsplittable, no spatial dispersion")
			return nil
		}

		for child, ids := range buckets {
			childNode := b.nodes.GetOrCreate(child, b.capacityHint)
			for _, id := range ids {
				childNode.AddEntity(id)
				b.entities.RemoveLocation(id, key)
				_ = b.entities.AddLocation(id, child)
			}
		}

		node.ClearEntities()
		node.HasChildren = true
		b.metrics.SplitsTotal.Add(1)
		b.logger.Info().Int("children", len(buckets)).Uint8("level", key.Level()).Msg("rebalance: split")

		for child := range buckets {
			if cn, ok := b.nodes.Get(child); ok && cn.OverCapacity() {
				cascaded = append(cascaded, cn)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Cascade outside the lock: recursing into NotifyDirty/trySplit while
	// still holding a child's write lock from the multi-lock above would
	// self-deadlock, since NodeLock's RWMutex is not reentrant.
	for _, cn := range cascaded {
		b.NotifyDirty(cn)
	}
	return nil
}

// TryMerge implements the balancer's merge algorithm: if key's eight
// children are all present, childless, and jointly under capacity, pulls
// their entities into key, deletes them, and clears key.HasChildren.
// Exposed directly (the insertion path has no natural "went under capacity"
// trigger the way split has OverCapacity, so a caller — typically
// RemoveEntity's follow-up — decides when to offer a merge candidate).
func (b *Balancer[K, C]) TryMerge(key K) error {
	node, ok := b.nodes.Get(key)
	if !ok || !node.HasChildren {
		return nil
	}

	children := childKeysOf(key)
	lockSet := ascendingLockSet(key, children)
	sess := lock.NewSession[K]()

	return b.locks.WithMultiWriteLock(sess, lockSet, func() error {
		node, ok := b.nodes.Get(key)
		if !ok || !node.HasChildren {
			return nil
		}

		childNodes := make([]*nodestore.Node[K], 0, len(children))
		total := 0
		for _, c := range children {
			cn, ok := b.nodes.Get(c)
			if !ok || cn.HasChildren {
				return nil // not a full family of leaves; abort
			}
			childNodes = append(childNodes, cn)
			total += cn.Count()
		}
		if !b.policy.ShouldMerge(total, b.capacityHint) {
			return nil
		}

		for i, cn := range childNodes {
			for _, id := range cn.EntityIDs() {
				b.entities.RemoveLocation(id, children[i])
				_ = b.entities.AddLocation(id, key)
				node.AddEntity(id)
			}
			b.forgetUnsplittable(children[i])
		}
		for _, c := range children {
			b.nodes.Remove(c)
		}
		node.HasChildren = false
		b.metrics.MergesTotal.Add(1)
		b.logger.Info().Uint8("level", key.Level()).Msg("rebalance: merge")
		return nil
	})
}
