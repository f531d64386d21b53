package geometry

// AABB is an axis-aligned bounding box, min <= max componentwise.
type AABB struct {
	Min, Max Point
}

// NewAABB builds an AABB, panicking if min > max on any axis — callers
// validate entity bounds through insertion.Validate before this point, so
// an inverted box here is always a programmer error, never caller input.
func NewAABB(min, max Point) AABB {
	if min.X > max.X || min.Y > max.Y || min.Z > max.Z {
		panic("geometry: AABB min greater than max")
	}
	return AABB{Min: min, Max: max}
}

// AABB satisfies Volume trivially.
func (b AABB) AABB() AABB { return b }

// Extent returns the box's size along each axis.
func (b AABB) Extent() Point {
	return Point{b.Max.X - b.Min.X, b.Max.Y - b.Min.Y, b.Max.Z - b.Min.Z}
}

// MaxExtent returns the largest of the three axis extents, used by the
// insertion engine's span-threshold test.
func (b AABB) MaxExtent() float64 {
	e := b.Extent()
	m := e.X
	if e.Y > m {
		m = e.Y
	}
	if e.Z > m {
		m = e.Z
	}
	return m
}

// Center returns the box's midpoint.
func (b AABB) Center() Point {
	return Point{
		(b.Min.X + b.Max.X) / 2,
		(b.Min.Y + b.Max.Y) / 2,
		(b.Min.Z + b.Max.Z) / 2,
	}
}

// ContainsPoint reports whether p lies within b, inclusive of the boundary.
func (b AABB) ContainsPoint(p Point) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// Contains reports whether b wholly contains other.
func (b AABB) Contains(other AABB) bool {
	return b.ContainsPoint(other.Min) && b.ContainsPoint(other.Max)
}

// Intersects reports whether b and other overlap (touching counts as
// overlap).
func (b AABB) Intersects(other AABB) bool {
	return b.Min.X <= other.Max.X && b.Max.X >= other.Min.X &&
		b.Min.Y <= other.Max.Y && b.Max.Y >= other.Min.Y &&
		b.Min.Z <= other.Max.Z && b.Max.Z >= other.Min.Z
}

// Union returns the smallest AABB containing both b and other.
func (b AABB) Union(other AABB) AABB {
	return AABB{
		Min: Point{min3(b.Min.X, other.Min.X), min3(b.Min.Y, other.Min.Y), min3(b.Min.Z, other.Min.Z)},
		Max: Point{max3(b.Max.X, other.Max.X), max3(b.Max.Y, other.Max.Y), max3(b.Max.Z, other.Max.Z)},
	}
}

// ClosestPoint returns the point within b nearest to p, used by the
// kNN traversal's minDistanceFromPointToCell.
func (b AABB) ClosestPoint(p Point) Point {
	return Point{
		clamp(p.X, b.Min.X, b.Max.X),
		clamp(p.Y, b.Min.Y, b.Max.Y),
		clamp(p.Z, b.Min.Z, b.Max.Z),
	}
}

// MinDistanceSquared returns the squared distance from p to the nearest
// point of b (zero if p is inside b).
func (b AABB) MinDistanceSquared(p Point) float64 {
	return DistanceSquared(p, b.ClosestPoint(p))
}

func min3(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func max3(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Corners returns the box's eight corner points, used by frustum
// classification (AABB inside iff all 8 corners inside every plane).
func (b AABB) Corners() [8]Point {
	return [8]Point{
		{b.Min.X, b.Min.Y, b.Min.Z},
		{b.Max.X, b.Min.Y, b.Min.Z},
		{b.Min.X, b.Max.Y, b.Min.Z},
		{b.Max.X, b.Max.Y, b.Min.Z},
		{b.Min.X, b.Min.Y, b.Max.Z},
		{b.Max.X, b.Min.Y, b.Max.Z},
		{b.Min.X, b.Max.Y, b.Max.Z},
		{b.Max.X, b.Max.Y, b.Max.Z},
	}
}
