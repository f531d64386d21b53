package keys

import (
	"testing"

	"github.com/scigolib/spatialidx/internal/geometry"
	"github.com/stretchr/testify/assert"
)

func TestOctFlavorBoundsContainsEnclosingPoint(t *testing.T) {
	var f OctFlavor
	p := geometry.Point{X: 12345, Y: 678, Z: 999}
	k := f.Enclosing(p, 10)
	b := f.Bounds(k)
	assert.True(t, b.ContainsPoint(p))
}

func TestTetFlavorRootsCoverAllSixTypes(t *testing.T) {
	var f TetFlavor
	roots := f.Roots()
	assert.Len(t, roots, 6)
	seen := map[uint8]bool{}
	for _, r := range roots {
		seen[r.Type_] = true
		assert.Equal(t, uint8(0), r.Level_)
	}
	assert.Len(t, seen, 6)
}

func TestOverlappingOctFindsEnclosingCell(t *testing.T) {
	var f OctFlavor
	region := geometry.AABB{Min: geometry.Point{X: 100, Y: 100, Z: 100}, Max: geometry.Point{X: 101, Y: 101, Z: 101}}
	found := Overlapping[OctKey](f, region, 5)
	assert.NotEmpty(t, found)
	for _, k := range found {
		assert.Equal(t, uint8(5), k.Level())
	}
}

func TestOverlappingTetFindsCells(t *testing.T) {
	var f TetFlavor
	region := geometry.AABB{Min: geometry.Point{X: 100, Y: 100, Z: 100}, Max: geometry.Point{X: 200, Y: 200, Z: 200}}
	found := Overlapping[TetKey](f, region, 4)
	assert.NotEmpty(t, found)
	for _, k := range found {
		assert.Equal(t, uint8(4), k.Level())
	}
}
