// Package errs defines the error taxonomy shared by every spatial index
// component. Each Kind carries a distinct propagation policy, described on
// the Kind itself.
package errs

import (
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Kind distinguishes the taxonomy named in the error handling design.
type Kind int

const (
	// InvalidArgument covers negative coordinates, out-of-range levels,
	// non-positive capacity, and similar caller mistakes. Surfaced
	// immediately, never treated as recoverable.
	InvalidArgument Kind = iota
	// NotFound means an unknown EntityID was referenced. Read APIs return
	// this as a zero value/false instead of an error; it is exported for
	// callers that do want to distinguish "absent" from "zero".
	NotFound
	// LockTimeout means a node lock could not be acquired before the
	// configured deadline. The caller may retry.
	LockTimeout
	// DeadlockHazard means a goroutine requested a lock with a key lower
	// than one it already holds, which the ascending-order acquisition
	// discipline forbids. The caller must reorder its keys.
	DeadlockHazard
	// CapacityExceeded means a bulk-load queue overflowed its configured
	// bound. The caller should finalize the current bulk load and retry.
	CapacityExceeded
	// LevelOverflow means a split was attempted at MaxRefinementLevel.
	// Non-fatal: the leaf remains oversized, logged at debug.
	LevelOverflow
	// GeometryDegenerate means a predicate was asked to reason about
	// collinear/coplanar/zero-volume inputs that defeat an exact test.
	// Non-fatal: queries report no intersection, inserts fall back to AABB.
	GeometryDegenerate
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "InvalidArgument"
	case NotFound:
		return "NotFound"
	case LockTimeout:
		return "LockTimeout"
	case DeadlockHazard:
		return "DeadlockHazard"
	case CapacityExceeded:
		return "CapacityExceeded"
	case LevelOverflow:
		return "LevelOverflow"
	case GeometryDegenerate:
		return "GeometryDegenerate"
	default:
		return "Unknown"
	}
}

// E is a structured spatial-index error: a Kind, a human context string, and
// an optional wrapped cause. Modeled on the teacher's H5Error/WrapError pair.
type E struct {
	Kind    Kind
	Context string
	Cause   error
}

func (e *E) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Context)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Context, e.Cause)
}

// Unwrap lets errors.Is/errors.As see through to the wrapped cause.
func (e *E) Unwrap() error { return e.Cause }

// New creates an error of the given kind with no wrapped cause.
func New(kind Kind, context string) error {
	return &E{Kind: kind, Context: context}
}

// Wrap creates a contextual error around cause. Returns nil if cause is nil,
// matching the teacher's WrapError contract.
func Wrap(kind Kind, context string, cause error) error {
	if cause == nil {
		return nil
	}
	return &E{Kind: kind, Context: context, Cause: cause}
}

// WithStack wraps a contention-related error with a pkg/errors stack trace.
// Only used for the three kinds where an operator actually benefits from a
// stack (LockTimeout, DeadlockHazard, CapacityExceeded) — attaching one on
// every successful read would be wasted cost.
func WithStack(kind Kind, context string, cause error) error {
	base := Wrap(kind, context, cause)
	if base == nil {
		return nil
	}
	return pkgerrors.WithStack(base)
}

// NewStack creates a causeless error of the given kind with a pkg/errors
// stack trace attached, for the contention kinds where a caller benefits
// from knowing where a timeout or deadlock hazard actually occurred.
func NewStack(kind Kind, context string) error {
	return pkgerrors.WithStack(&E{Kind: kind, Context: context})
}

// Is reports whether err is an *E of the given kind, looking through any
// wrapping (including pkg/errors.WithStack frames).
func Is(err error, kind Kind) bool {
	type causer interface{ Cause() error }
	for err != nil {
		if e, ok := err.(*E); ok {
			return e.Kind == kind
		}
		if c, ok := err.(causer); ok {
			err = c.Cause()
			continue
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
