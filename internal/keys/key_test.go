package keys

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var (
	_ Key = OctKey{}
	_ Key = TetKey{}
)

func TestCellEdgeLengthMonotonic(t *testing.T) {
	var prev uint32 = DomainExtent + 1
	for l := uint8(0); l <= MaxRefinementLevel; l++ {
		edge := CellEdgeLength(l)
		assert.Less(t, edge, prev)
		prev = edge
	}
	assert.Equal(t, uint32(1), CellEdgeLength(MaxRefinementLevel))
	assert.Equal(t, DomainExtent, CellEdgeLength(0))
}

func TestOctKeyAndTetKeyLessPanicsOnMismatchedType(t *testing.T) {
	oct := NewOctKey(0, 0, 0, 1)
	tet := EnclosingTet(0, 0, 0, 1)
	assert.Panics(t, func() { oct.Less(tet) })
	assert.Panics(t, func() { tet.Less(oct) })
}
