package keys

import "github.com/scigolib/spatialidx/internal/geometry"

// Flavor bridges a concrete Key implementation to the geometry kernel: it
// maps a point to its enclosing key at a given level, and a key to the
// geometric cell (AABB) it occupies. The rest of the index (insertion
// engine, balancer, query kernel, traversal) is written once against
// Flavor[K] and Key, never against OctKey/TetKey directly, so it works
// unmodified for either subdivision scheme.
type Flavor[K Key] interface {
	// Enclosing returns the key of the cell containing pos at level.
	Enclosing(pos geometry.Point, level uint8) K
	// Bounds returns the AABB of the cell k occupies (the tetree flavor's
	// tetrahedral cells report their bounding box here; exact point-in-
	// cell still goes through the geometry kernel's Tetrahedron).
	Bounds(k K) geometry.AABB
	// Roots returns the level-0 keys: one whole-domain cube for the
	// octree, six whole-domain tetrahedra (one per congruence type) for
	// the tetree.
	Roots() []K
}

// OctFlavor implements Flavor[OctKey].
type OctFlavor struct{}

func (OctFlavor) Enclosing(pos geometry.Point, level uint8) OctKey {
	return NewOctKey(uint32(pos.X), uint32(pos.Y), uint32(pos.Z), level)
}

func (OctFlavor) Bounds(k OctKey) geometry.AABB {
	x, y, z := k.Origin()
	edge := float64(k.EdgeLength())
	min := geometry.Point{X: float64(x), Y: float64(y), Z: float64(z)}
	return geometry.AABB{Min: min, Max: geometry.Point{X: min.X + edge, Y: min.Y + edge, Z: min.Z + edge}}
}

func (OctFlavor) Roots() []OctKey {
	return []OctKey{{Code: 0, Level_: 0}}
}

// TetFlavor implements Flavor[TetKey].
type TetFlavor struct{}

func (TetFlavor) Enclosing(pos geometry.Point, level uint8) TetKey {
	return EnclosingTet(uint32(pos.X), uint32(pos.Y), uint32(pos.Z), level)
}

func (TetFlavor) Bounds(k TetKey) geometry.AABB {
	v0, v1, v2, v3 := k.Vertices()
	min := v0
	max := v0
	for _, v := range [3][3]uint32{v1, v2, v3} {
		for axis := 0; axis < 3; axis++ {
			if v[axis] < min[axis] {
				min[axis] = v[axis]
			}
			if v[axis] > max[axis] {
				max[axis] = v[axis]
			}
		}
	}
	return geometry.AABB{
		Min: geometry.Point{X: float64(min[0]), Y: float64(min[1]), Z: float64(min[2])},
		Max: geometry.Point{X: float64(max[0]), Y: float64(max[1]), Z: float64(max[2])},
	}
}

func (TetFlavor) Roots() []TetKey {
	roots := make([]TetKey, 6)
	for t := uint8(0); t < 6; t++ {
		roots[t] = TetKey{Type_: t, Level_: 0}
	}
	return roots
}

// Overlapping returns every key at level whose cell (per flavor) intersects
// region, by descending from the flavor's root keys and pruning subtrees
// whose bounds miss region entirely. Used by the insertion engine's
// spanning-policy key-set computation and by the query kernel's range
// scaffold to turn an arbitrary volume into a concrete key set.
func Overlapping[K Key](flavor Flavor[K], region geometry.AABB, level uint8) []K {
	var result []K
	stack := append([]K{}, flavor.Roots()...)

	for len(stack) > 0 {
		k := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !flavor.Bounds(k).Intersects(region) {
			continue
		}
		if k.Level() == level {
			result = append(result, k)
			continue
		}
		for _, c := range k.Children() {
			stack = append(stack, c.(K))
		}
	}
	return result
}
