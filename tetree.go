package spatial

import "github.com/scigolib/spatialidx/internal/keys"

// NewTetree builds an Index backed by the Bey-refinement tetrahedral key
// flavor. C is the caller's per-entity content type.
func NewTetree[C any](opts ...Option) *Index[keys.TetKey, C] {
	return build[keys.TetKey, C](keys.TetFlavor{}, opts...)
}
