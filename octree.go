package spatial

import "github.com/scigolib/spatialidx/internal/keys"

// NewOctree builds an Index backed by the cubic-octant key flavor. C is the
// caller's per-entity content type.
func NewOctree[C any](opts ...Option) *Index[keys.OctKey, C] {
	return build[keys.OctKey, C](keys.OctFlavor{}, opts...)
}
