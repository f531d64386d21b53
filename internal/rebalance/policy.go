package rebalance

import "github.com/scigolib/spatialidx/internal/keys"

// Policy is the injected pair of split/merge predicates. The balancer never
// hardcodes a threshold; DefaultPolicy is just the spec's default, not a
// privileged implementation.
type Policy struct {
	// ShouldSplit reports whether a leaf with count entities at level
	// should be enqueued for split.
	ShouldSplit func(count int, level uint8, capacityHint uint32) bool
	// ShouldMerge reports whether a parent whose children jointly hold
	// totalCount entities should have them pulled back in.
	ShouldMerge func(totalCount int, capacityHint uint32) bool
}

// DefaultPolicy is shouldSplit(count, level, capacityHint) = count >
// capacityHint && level < maxLevel; shouldMerge(total, capacityHint) =
// total <= capacityHint.
func DefaultPolicy() Policy {
	return Policy{
		ShouldSplit: func(count int, level uint8, capacityHint uint32) bool {
			return uint32(count) > capacityHint && level < keys.MaxRefinementLevel
		},
		ShouldMerge: func(totalCount int, capacityHint uint32) bool {
			return uint32(totalCount) <= capacityHint
		},
	}
}
