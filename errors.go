package spatial

import "github.com/scigolib/spatialidx/internal/errs"

// Kind distinguishes the error taxonomy described in the error handling
// design: InvalidArgument, NotFound, LockTimeout, DeadlockHazard,
// CapacityExceeded, LevelOverflow, GeometryDegenerate.
type Kind = errs.Kind

const (
	InvalidArgument    = errs.InvalidArgument
	NotFound           = errs.NotFound
	LockTimeout        = errs.LockTimeout
	DeadlockHazard     = errs.DeadlockHazard
	CapacityExceeded   = errs.CapacityExceeded
	LevelOverflow      = errs.LevelOverflow
	GeometryDegenerate = errs.GeometryDegenerate
)

// Error is a structured spatial-index error: a Kind, a human context
// string, and an optional wrapped cause. Supports errors.Is/errors.As via
// Unwrap.
type Error = errs.E

// IsKind reports whether err is an Error of the given Kind, looking
// through any wrapping (including pkg/errors.WithStack frames).
func IsKind(err error, kind Kind) bool { return errs.Is(err, kind) }
