package rebalance

import "sync/atomic"

// Metrics holds the balancer's lock-free counters, read by
// Index.GetMetrics(). Grounded on the teacher's MetricsCollector:
// atomic counters for the hot path, a Snapshot for safe export.
type Metrics struct {
	SplitsTotal       atomic.Int64
	MergesTotal       atomic.Int64
	UnsplittableTotal atomic.Int64
	DeferredTotal     atomic.Int64
}

// MetricsSnapshot is an immutable point-in-time copy of Metrics, safe to
// hand to a caller without exposing the atomics themselves.
type MetricsSnapshot struct {
	SplitsTotal       int64
	MergesTotal       int64
	UnsplittableTotal int64
	DeferredTotal     int64
}

// Snapshot copies the current counter values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		SplitsTotal:       m.SplitsTotal.Load(),
		MergesTotal:       m.MergesTotal.Load(),
		UnsplittableTotal: m.UnsplittableTotal.Load(),
		DeferredTotal:     m.DeferredTotal.Load(),
	}
}
