package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// cubeFrustum builds an axis-aligned frustum equivalent to the cube
// [lo,hi]^3, useful for table-driving classification tests without
// constructing a real perspective frustum.
func cubeFrustum(lo, hi float64) Frustum {
	return NewFrustum(
		PlaneFromPointNormal(Point{lo, lo, lo}, Point{-1, 0, 0}),
		PlaneFromPointNormal(Point{hi, hi, hi}, Point{1, 0, 0}),
		PlaneFromPointNormal(Point{lo, lo, lo}, Point{0, -1, 0}),
		PlaneFromPointNormal(Point{hi, hi, hi}, Point{0, 1, 0}),
		PlaneFromPointNormal(Point{lo, lo, lo}, Point{0, 0, -1}),
		PlaneFromPointNormal(Point{hi, hi, hi}, Point{0, 0, 1}),
	)
}

func TestFrustumClassifyAABBInside(t *testing.T) {
	f := cubeFrustum(0, 100)
	box := AABB{Min: Point{10, 10, 10}, Max: Point{20, 20, 20}}
	assert.Equal(t, Inside, f.ClassifyAABB(box))
}

func TestFrustumClassifyAABBOutside(t *testing.T) {
	f := cubeFrustum(0, 100)
	box := AABB{Min: Point{200, 200, 200}, Max: Point{220, 220, 220}}
	assert.Equal(t, Outside, f.ClassifyAABB(box))
}

func TestFrustumClassifyAABBIntersecting(t *testing.T) {
	f := cubeFrustum(0, 100)
	box := AABB{Min: Point{90, 90, 90}, Max: Point{120, 120, 120}}
	assert.Equal(t, Intersecting, f.ClassifyAABB(box))
}

func TestFrustumContainsPoint(t *testing.T) {
	f := cubeFrustum(0, 100)
	assert.True(t, f.ContainsPoint(Point{50, 50, 50}))
	assert.False(t, f.ContainsPoint(Point{500, 500, 500}))
}
