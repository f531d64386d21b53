// Package spatial is the public facade over the nine internal components:
// key algebra, geometry kernel, entity store, node store, insertion engine,
// balancer, query kernel, concurrency controller, and traversal/lifecycle.
// Index[K] is generic over the key flavor so the same implementation backs
// both the octree (NewOctree) and the tetree (NewTetree).
package spatial

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/scigolib/spatialidx/internal/entitystore"
	"github.com/scigolib/spatialidx/internal/insertion"
	"github.com/scigolib/spatialidx/internal/keys"
	"github.com/scigolib/spatialidx/internal/lock"
	"github.com/scigolib/spatialidx/internal/nodestore"
	"github.com/scigolib/spatialidx/internal/query"
	"github.com/scigolib/spatialidx/internal/rebalance"
	"github.com/scigolib/spatialidx/internal/traverse"
)

// defaultLogger writes to stderr at Info level, matching the teacher's
// package-level logger default.
var defaultLogger = zerolog.New(os.Stderr).With().Timestamp().Logger().Level(zerolog.InfoLevel)

// Index is a concurrent 3D spatial index generic over its key flavor K
// (keys.OctKey or keys.TetKey) and the caller's per-entity content type C.
// Build one with NewOctree or NewTetree; the zero value is not usable.
type Index[K keys.Key, C any] struct {
	flavor keys.Flavor[K]

	entities *entitystore.Store[K, C]
	nodes    *nodestore.Store[K]
	locks    *lock.Manager[K]
	insert   *insertion.Engine[K, C]
	balancer *rebalance.Balancer[K, C]
	queries  *query.Engine[K, C]
	walker   *traverse.Walker[K]

	logger        zerolog.Logger
	capacityHint  uint32
	spanPolicy    insertion.SpanningPolicy
	router        any // PartitionRouter[K], type-asserted by Partition
	bulk          BulkConfig
}

// config accumulates Option effects before an Index is built.
type config struct {
	logger        zerolog.Logger
	capacityHint  uint32
	spanThreshold float64
	spanPolicy    insertion.SpanningPolicy
	lockOpts      []lock.Option
	rebalanceOpts []rebalance.Option
	router        any
}

// Option configures an Index at construction. Applies to both NewOctree and
// NewTetree, following the teacher's FileWriterOption convention.
type Option func(*config)

// WithLogger attaches a zerolog.Logger for lifecycle events (Info) and
// non-fatal recoveries (Debug). Default writes to stderr at Info level.
func WithLogger(l zerolog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithCapacityHint sets the per-node entity-count threshold above which the
// balancer enqueues a split. Default 64.
func WithCapacityHint(n uint32) Option {
	return func(c *config) { c.capacityHint = n }
}

// WithSpanThreshold sets the minimum ratio of an entity's AABB extent to its
// enclosing cell's edge length before spanning policies other than
// SingleNodeOnly replicate it across multiple cells. Default 1.0.
func WithSpanThreshold(t float64) Option {
	return func(c *config) { c.spanThreshold = t }
}

// WithSpanningPolicy sets the default entity-spanning policy used by Insert
// and InsertBatch. Default SingleNodeOnly.
func WithSpanningPolicy(p insertion.SpanningPolicy) Option {
	return func(c *config) { c.spanPolicy = p }
}

// WithLockStrategy selects the per-node lock strategy (Conservative,
// Adaptive, or Optimistic). Default Adaptive.
func WithLockStrategy(s lock.Strategy) Option {
	return func(c *config) { c.lockOpts = append(c.lockOpts, lock.WithStrategy(s)) }
}

// WithLockTimeout sets the default lock-acquisition deadline. Default 5s.
func WithLockTimeout(d time.Duration) Option {
	return func(c *config) { c.lockOpts = append(c.lockOpts, lock.WithTimeout(d)) }
}

// WithLockCacheSize bounds the number of cached per-node lock handles.
// Default 1<<16.
func WithLockCacheSize(n int) Option {
	return func(c *config) { c.lockOpts = append(c.lockOpts, lock.WithLockCacheSize(n)) }
}

// WithRebalancePolicy overrides the default split/merge predicates.
func WithRebalancePolicy(p rebalance.Policy) Option {
	return func(c *config) { c.rebalanceOpts = append(c.rebalanceOpts, rebalance.WithPolicy(p)) }
}

// WithRebalanceMode pins the balancer's scheduling mode. Default
// ModeImmediate.
func WithRebalanceMode(m rebalance.Mode) Option {
	return func(c *config) { c.rebalanceOpts = append(c.rebalanceOpts, rebalance.WithMode(m)) }
}

// WithIncrementalRebalancing pins ModeIncremental and configures the
// background goroutine's per-tick budget and interval.
func WithIncrementalRebalancing(budget int, interval time.Duration) Option {
	return func(c *config) {
		c.rebalanceOpts = append(c.rebalanceOpts, rebalance.WithIncrementalRebalancing(budget, interval))
	}
}

// WithPartitionRouter attaches a PartitionRouter, making Index.Partition
// available. The core never calls the router itself; it is exposed purely
// so a forest-coordination layer built on top of this library can route
// cross-partition queries without reimplementing key algebra.
func WithPartitionRouter[K keys.Key](r PartitionRouter[K]) Option {
	return func(c *config) { c.router = r }
}

func defaultConfig() config {
	return config{
		logger:        defaultLogger,
		capacityHint:  64,
		spanThreshold: 1.0,
		spanPolicy:    insertion.SingleNodeOnly,
	}
}

// build wires every internal component together: the node/entity stores,
// the concurrency controller, the insertion engine, the balancer (as the
// insertion engine's DirtyNotifier, keeping C5 and C6 decoupled per the
// component design), the query kernel, and the traversal walker.
func build[K keys.Key, C any](flavor keys.Flavor[K], opts ...Option) *Index[K, C] {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	entities := entitystore.New[K, C]()
	nodes := nodestore.New[K]()
	locks := lock.NewManager[K](cfg.lockOpts...)

	balancer := rebalance.New[K, C](rebalance.Config[K, C]{
		Flavor:       flavor,
		Nodes:        nodes,
		Entities:     entities,
		Locks:        locks,
		CapacityHint: cfg.capacityHint,
	}, append(cfg.rebalanceOpts, rebalance.WithLogger(cfg.logger))...)

	engine := insertion.New[K, C](insertion.Config[K, C]{
		Flavor:        flavor,
		Entities:      entities,
		Nodes:         nodes,
		Locks:         locks,
		Notifier:      balancer,
		CapacityHint:  cfg.capacityHint,
		SpanThreshold: cfg.spanThreshold,
	})

	return &Index[K, C]{
		flavor:       flavor,
		entities:     entities,
		nodes:        nodes,
		locks:        locks,
		insert:       engine,
		balancer:     balancer,
		queries:      query.New[K, C](flavor, nodes, entities),
		walker:       traverse.New[K](flavor, nodes),
		logger:       cfg.logger,
		capacityHint: cfg.capacityHint,
		spanPolicy:   cfg.spanPolicy,
		router:       cfg.router,
	}
}

// Stop shuts down the balancer's incremental background goroutine, if one
// is running. Safe to call on an Index built with ModeImmediate/ModeDeferred.
func (idx *Index[K, C]) Stop() {
	idx.balancer.Stop()
}
