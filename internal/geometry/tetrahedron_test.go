package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func unitTet() Tetrahedron {
	return Tetrahedron{
		V0: Point{0, 0, 0},
		V1: Point{1, 0, 0},
		V2: Point{1, 1, 0},
		V3: Point{1, 1, 1},
	}
}

func TestTetrahedronContainsCentroid(t *testing.T) {
	tet := unitTet()
	centroid := Point{
		(tet.V0.X + tet.V1.X + tet.V2.X + tet.V3.X) / 4,
		(tet.V0.Y + tet.V1.Y + tet.V2.Y + tet.V3.Y) / 4,
		(tet.V0.Z + tet.V1.Z + tet.V2.Z + tet.V3.Z) / 4,
	}
	assert.True(t, tet.ContainsPoint(centroid))
}

func TestTetrahedronContainsOwnVertices(t *testing.T) {
	tet := unitTet()
	for _, v := range [4]Point{tet.V0, tet.V1, tet.V2, tet.V3} {
		assert.True(t, tet.ContainsPoint(v))
	}
}

func TestTetrahedronRejectsFarPoint(t *testing.T) {
	tet := unitTet()
	assert.False(t, tet.ContainsPoint(Point{100, 100, 100}))
}

func TestTetrahedronDegenerateRejectsEverything(t *testing.T) {
	degenerate := Tetrahedron{
		V0: Point{0, 0, 0},
		V1: Point{1, 0, 0},
		V2: Point{2, 0, 0},
		V3: Point{3, 0, 0},
	}
	assert.False(t, degenerate.ContainsPoint(Point{1, 0, 0}))
}

func TestTetrahedronAABBBounds(t *testing.T) {
	tet := unitTet()
	box := tet.AABB()
	assert.Equal(t, Point{0, 0, 0}, box.Min)
	assert.Equal(t, Point{1, 1, 1}, box.Max)
}

func TestTetrahedronIntersectsAABBVertexInside(t *testing.T) {
	tet := unitTet()
	box := AABB{Min: Point{0.9, -0.1, -0.1}, Max: Point{1.1, 0.1, 0.1}}
	assert.True(t, tet.IntersectsAABB(box))
}

func TestRayIntersectTetrahedron(t *testing.T) {
	tet := unitTet()
	r := Ray{Origin: Point{1, 0.3, 0.1}, Direction: Point{-1, 0, 0}}
	_, ok := r.IntersectTetrahedron(tet)
	assert.True(t, ok)
}
