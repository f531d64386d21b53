package geometry

import "math"

// Tetrahedron is four vertices in the order a TetKey's Vertices() produces
// (V0..V3 of a Bey/Kuhn-simplex cell).
type Tetrahedron struct {
	V0, V1, V2, V3 Point
}

// AABB returns the tetrahedron's conservative bounding box.
func (t Tetrahedron) AABB() AABB {
	min := t.V0
	max := t.V0
	for _, v := range [3]Point{t.V1, t.V2, t.V3} {
		min = Point{min3(min.X, v.X), min3(min.Y, v.Y), min3(min.Z, v.Z)}
		max = Point{max3(max.X, v.X), max3(max.Y, v.Y), max3(max.Z, v.Z)}
	}
	return AABB{Min: min, Max: max}
}

// faces returns the four triangular faces in a winding consistent for
// ray-triangle testing (outward orientation is not required by
// Möller-Trumbore since IntersectTriangle accepts a hit regardless of
// winding sign, only the t>=0 and barycentric bounds are checked).
func (t Tetrahedron) faces() [4][3]Point {
	return [4][3]Point{
		{t.V0, t.V1, t.V2},
		{t.V0, t.V1, t.V3},
		{t.V0, t.V2, t.V3},
		{t.V1, t.V2, t.V3},
	}
}

func signedVolume6(a, b, c, d Point) float64 {
	return dot(b.sub(a), cross(c.sub(a), d.sub(a)))
}

// ContainsPoint is the point-in-tet test: four signed volumes computed by
// replacing one vertex at a time with p. p is inside iff all four share the
// sign of the tetrahedron's own signed volume (a tie against
// GeometricTolerance counts as on-boundary, which this test treats as
// inside, matching the spec's "ties = on-boundary = inside" contract).
func (t Tetrahedron) ContainsPoint(p Point) bool {
	d0 := signedVolume6(t.V0, t.V1, t.V2, t.V3)
	if math.Abs(d0) < GeometricTolerance {
		return false // degenerate tetrahedron, GeometryDegenerate territory
	}
	d1 := signedVolume6(p, t.V1, t.V2, t.V3)
	d2 := signedVolume6(t.V0, p, t.V2, t.V3)
	d3 := signedVolume6(t.V0, t.V1, p, t.V3)
	d4 := signedVolume6(t.V0, t.V1, t.V2, p)

	s0 := sign(d0)
	for _, d := range [3]float64{d1, d2} {
		s := sign(d)
		if s != 0 && s != s0 {
			return false
		}
	}
	for _, d := range [2]float64{d3, d4} {
		s := sign(d)
		if s != 0 && s != s0 {
			return false
		}
	}
	return true
}

func sign(v float64) int {
	switch {
	case v > GeometricTolerance:
		return 1
	case v < -GeometricTolerance:
		return -1
	default:
		return 0
	}
}

// IntersectsAABB is a conservative tet-vs-AABB test: true if any vertex of t
// lies in b, any corner of b lies in t, or their bounding boxes overlap and
// the quick tests are inconclusive (the spec permits "possibly intersecting"
// as a conservative answer here; callers needing a strict separating-axis
// result run their own narrow phase).
func (t Tetrahedron) IntersectsAABB(b AABB) bool {
	for _, v := range [4]Point{t.V0, t.V1, t.V2, t.V3} {
		if b.ContainsPoint(v) {
			return true
		}
	}
	for _, c := range b.Corners() {
		if t.ContainsPoint(c) {
			return true
		}
	}
	return t.AABB().Intersects(b)
}
