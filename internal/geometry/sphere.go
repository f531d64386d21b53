package geometry

// Sphere is a bounding sphere, used both as a query volume and as a
// collision narrow-phase shape.
type Sphere struct {
	Center Point
	Radius float64
}

// AABB returns the sphere's conservative bounding box.
func (s Sphere) AABB() AABB {
	r := Point{s.Radius, s.Radius, s.Radius}
	return AABB{Min: s.Center.sub(r), Max: s.Center.add(r)}
}

// ContainsPoint reports whether p lies within s.
func (s Sphere) ContainsPoint(p Point) bool {
	return DistanceSquared(s.Center, p) <= s.Radius*s.Radius
}

// IntersectsAABB reports whether s overlaps b, via closest-point distance.
func (s Sphere) IntersectsAABB(b AABB) bool {
	return b.MinDistanceSquared(s.Center) <= s.Radius*s.Radius
}

// IntersectsSphere reports whether two spheres overlap.
func (s Sphere) IntersectsSphere(other Sphere) bool {
	r := s.Radius + other.Radius
	return DistanceSquared(s.Center, other.Center) <= r*r
}
