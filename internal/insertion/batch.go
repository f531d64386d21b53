package insertion

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/scigolib/spatialidx/internal/entitystore"
	"github.com/scigolib/spatialidx/internal/geometry"
	"golang.org/x/sync/errgroup"
)

// BatchInsertionResult reports the outcome of an InsertBatch call, with
// failures collected per-input rather than aborting the whole batch.
type BatchInsertionResult struct {
	SessionID              uuid.UUID
	InsertedIDs            []entitystore.EntityID // zero value at index i means input i failed
	SuccessCount           int
	FailureCount           int
	PerInputFailureMessage []string // empty string at index i means input i succeeded
	ElapsedNanos           int64
	NodesCreated           int
	NodesModified          int
	SubdivisionDeferred    bool
}

// InsertBatch enters bulk-loading mode for the duration (deferring split
// checks — see DirtyNotifier) and inserts every (position, content,
// bounds?) triple under a bounded worker pool. Each input's id is allocated
// by Insert when that input is inserted, so the batch's ids are not
// pre-allocated and need not be contiguous, and an input that fails
// validation is assigned none. Each input's validation/spanning failure is
// recorded independently; the rest of the batch proceeds.
func (e *Engine[K, C]) InsertBatch(
	positions []geometry.Point,
	contents []C,
	bounds []*geometry.AABB,
	level uint8,
	policy SpanningPolicy,
) BatchInsertionResult {
	startNanos := nowFunc()
	n := len(positions)
	result := BatchInsertionResult{
		SessionID:              uuid.New(),
		InsertedIDs:            make([]entitystore.EntityID, n),
		PerInputFailureMessage: make([]string, n),
		SubdivisionDeferred:    true,
	}

	if !e.locks.IsBulkLoading() {
		e.locks.EnableBulkLoading()
		defer e.locks.FinalizeBulkLoading()
	}

	nodesBefore := e.nodes.Size()

	var successCount, failureCount atomic.Int64
	workers := runtime.GOMAXPROCS(0)
	if workers > n {
		workers = n
	}
	if workers < 1 {
		workers = 1
	}

	var g errgroup.Group
	// Bulk mode bypasses per-node locks, so the workers take turns on mu
	// for each Insert rather than writing one node's entity map at once.
	var mu sync.Mutex
	chunk := (n + workers - 1) / workers
	if chunk < 1 {
		chunk = 1
	}

	for start := 0; start < n; start += chunk {
		end := start + chunk
		if end > n {
			end = n
		}
		lo, hi := start, end
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				var b *geometry.AABB
				if bounds != nil {
					b = bounds[i]
				}
				mu.Lock()
				id, err := e.Insert(positions[i], level, contents[i], b, policy)
				mu.Unlock()
				if err != nil {
					result.PerInputFailureMessage[i] = err.Error()
					failureCount.Add(1)
					continue
				}
				result.InsertedIDs[i] = id
				successCount.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	result.SuccessCount = int(successCount.Load())
	result.FailureCount = int(failureCount.Load())
	result.NodesModified = e.nodes.Size()
	if result.NodesModified > nodesBefore {
		result.NodesCreated = result.NodesModified - nodesBefore
	}
	result.ElapsedNanos = nowFunc() - startNanos
	return result
}

// nowFunc is a monotonic nanosecond clock, indirected so tests can
// substitute a deterministic source if ElapsedNanos timing ever needs to be
// asserted exactly.
var nowFunc = func() int64 { return time.Now().UnixNano() }
