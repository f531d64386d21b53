package geometry

import "math"

// Ray is a half-line from Origin in Direction (not required to be
// normalized; RayHit.Distance is reported in units of Direction's length).
type Ray struct {
	Origin    Point
	Direction Point
}

// RayHit is the result of a ray intersecting a shape, ordered by Distance
// when multiple hits are collected by the query kernel.
type RayHit struct {
	Distance float64
	Point    Point
	Normal   Point
}

// At returns the point Origin + t*Direction.
func (r Ray) At(t float64) Point {
	return r.Origin.add(r.Direction.scale(t))
}

// IntersectAABB is the ray-AABB slab test. It returns the entry and exit
// parametric distances; ok is false on a miss (tEnter > tExit or the box is
// entirely behind the ray).
func (r Ray) IntersectAABB(b AABB) (tEnter, tExit float64, ok bool) {
	tEnter, tExit = math.Inf(-1), math.Inf(1)

	axes := [3][2]float64{
		{r.Origin.X, r.Direction.X},
		{r.Origin.Y, r.Direction.Y},
		{r.Origin.Z, r.Direction.Z},
	}
	lo := [3]float64{b.Min.X, b.Min.Y, b.Min.Z}
	hi := [3]float64{b.Max.X, b.Max.Y, b.Max.Z}

	for i := 0; i < 3; i++ {
		origin, dir := axes[i][0], axes[i][1]
		if math.Abs(dir) < GeometricTolerance {
			if origin < lo[i] || origin > hi[i] {
				return 0, 0, false
			}
			continue
		}
		t1 := (lo[i] - origin) / dir
		t2 := (hi[i] - origin) / dir
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		if t1 > tEnter {
			tEnter = t1
		}
		if t2 < tExit {
			tExit = t2
		}
	}

	if tEnter > tExit || tExit < 0 {
		return 0, 0, false
	}
	return tEnter, tExit, true
}

// IntersectSphere returns the nearest non-negative hit distance against s.
func (r Ray) IntersectSphere(s Sphere) (RayHit, bool) {
	oc := r.Origin.sub(s.Center)
	a := dot(r.Direction, r.Direction)
	if a < GeometricTolerance {
		return RayHit{}, false
	}
	b := 2 * dot(oc, r.Direction)
	c := dot(oc, oc) - s.Radius*s.Radius
	disc := b*b - 4*a*c
	if disc < 0 {
		return RayHit{}, false
	}
	sq := math.Sqrt(disc)
	t := (-b - sq) / (2 * a)
	if t < 0 {
		t = (-b + sq) / (2 * a)
	}
	if t < 0 {
		return RayHit{}, false
	}
	p := r.At(t)
	n := p.sub(s.Center)
	if s.Radius > 0 {
		n = n.scale(1 / s.Radius)
	}
	return RayHit{Distance: t, Point: p, Normal: n}, true
}

// IntersectTriangle is the Möller-Trumbore ray-triangle test, used by
// IntersectTetrahedron against each of the tetrahedron's four faces.
func (r Ray) IntersectTriangle(v0, v1, v2 Point) (RayHit, bool) {
	edge1 := v1.sub(v0)
	edge2 := v2.sub(v0)
	pvec := cross(r.Direction, edge2)
	det := dot(edge1, pvec)
	if math.Abs(det) < GeometricTolerance {
		return RayHit{}, false
	}
	invDet := 1 / det
	tvec := r.Origin.sub(v0)
	u := dot(tvec, pvec) * invDet
	if u < 0 || u > 1 {
		return RayHit{}, false
	}
	qvec := cross(tvec, edge1)
	v := dot(r.Direction, qvec) * invDet
	if v < 0 || u+v > 1 {
		return RayHit{}, false
	}
	t := dot(edge2, qvec) * invDet
	if t < 0 {
		return RayHit{}, false
	}
	n := cross(edge1, edge2)
	if nl := math.Sqrt(dot(n, n)); nl > GeometricTolerance {
		n = n.scale(1 / nl)
	}
	return RayHit{Distance: t, Point: r.At(t), Normal: n}, true
}

// IntersectTetrahedron tests r against each of t's four triangular faces and
// returns the nearest positive-t hit.
func (r Ray) IntersectTetrahedron(t Tetrahedron) (RayHit, bool) {
	var (
		best   RayHit
		found  bool
	)
	for _, face := range t.faces() {
		hit, ok := r.IntersectTriangle(face[0], face[1], face[2])
		if !ok {
			continue
		}
		if !found || hit.Distance < best.Distance {
			best, found = hit, true
		}
	}
	return best, found
}
