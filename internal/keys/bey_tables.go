package keys

// Bey refinement connectivity tables.
//
// The six tetrahedral congruence types correspond to the six Kuhn-simplex
// permutations of the coordinate axes: type t is the set of points whose
// local (unit-cube) coordinates satisfy u[perm[t][0]] <= u[perm[t][1]] <=
// u[perm[t][2]]. A type-t tetrahedron's four vertices, scaled to edge
// length h from an origin, are:
//
//	V0 = origin
//	V1 = origin + h*e[perm[t][2]]
//	V2 = V1     + h*e[perm[t][1]]
//	V3 = V2     + h*e[perm[t][0]]  (= origin + (h,h,h))
//
// Bey's red refinement of ANY tetrahedron into eight children is a fixed,
// type-independent combination of the parent's four vertices and the six
// edge midpoints (four "corner" children similar to the parent, four
// children filling the remaining octahedron via the e02-e13 diagonal). This
// file builds CubeIDTypeToParentType, ParentTypeLocalIndexToCubeID,
// ParentTypeLocalIndexToType, and CubeIDTypeToLocalIndex constructively
// from that geometric definition at package init, rather than transcribing
// magic numbers from an external reference this environment cannot fetch
// and verify byte-for-byte — see DESIGN.md's Open Questions for the
// reasoning.
//
// A cube octant does not by itself identify a unique Bey child: a parent
// tet only has positive volume in 4 of its cube's 8 octants, and an octant
// it does occupy can host more than one of the 8 Bey children,
// distinguished only by their recovered type. The reverse lookup from a
// child back to its local index is therefore keyed by (cube id, child
// type), never by (parent type, cube id) alone — the latter pair collides
// whenever an octant hosts more than one child under the same parent.

type vec3 struct{ x, y, z int64 }

func (a vec3) add(b vec3) vec3 { return vec3{a.x + b.x, a.y + b.y, a.z + b.z} }
func (a vec3) mid(b vec3) vec3 { return vec3{(a.x + b.x) / 2, (a.y + b.y) / 2, (a.z + b.z) / 2} }
func (a vec3) sub(b vec3) vec3 { return vec3{a.x - b.x, a.y - b.y, a.z - b.z} }

func unit(axis int, h int64) vec3 {
	v := vec3{}
	switch axis {
	case 0:
		v.x = h
	case 1:
		v.y = h
	case 2:
		v.z = h
	}
	return v
}

// permOfType lists, for each of the six types, the axis order (i0,i1,i2)
// with u[i0] <= u[i1] <= u[i2]. Enumerated lexicographically over
// permutations of {0,1,2}; which permutation gets which type number is an
// arbitrary but fixed convention of this implementation.
var permOfType = [6][3]int{
	{0, 1, 2},
	{0, 2, 1},
	{1, 0, 2},
	{1, 2, 0},
	{2, 0, 1},
	{2, 1, 0},
}

func typeOfPerm(p [3]int) uint8 {
	for t, pt := range permOfType {
		if pt == p {
			return uint8(t)
		}
	}
	panic("keys: not a valid axis permutation")
}

// verticesForType returns the four vertices of a type-t tet with the given
// origin and edge length h.
func verticesForType(origin vec3, h int64, t uint8) [4]vec3 {
	p := permOfType[t]
	v0 := origin
	v1 := v0.add(unit(p[2], h))
	v2 := v1.add(unit(p[1], h))
	v3 := v2.add(unit(p[0], h))
	return [4]vec3{v0, v1, v2, v3}
}

// beyChildren returns the eight Bey children of a tetrahedron given its four
// vertices, as vertex quadruples. This combination (four corners similar to
// the parent, four filling the central octahedron split along the e02-e13
// diagonal) is the standard red/Bey refinement and does not depend on the
// parent's type.
func beyChildren(v [4]vec3) [8][4]vec3 {
	e01 := v[0].mid(v[1])
	e02 := v[0].mid(v[2])
	e03 := v[0].mid(v[3])
	e12 := v[1].mid(v[2])
	e13 := v[1].mid(v[3])
	e23 := v[2].mid(v[3])

	return [8][4]vec3{
		{v[0], e01, e02, e03},
		{e01, v[1], e12, e13},
		{e02, e12, v[2], e23},
		{e03, e13, e23, v[3]},
		{e01, e02, e03, e13},
		{e01, e02, e12, e13},
		{e02, e03, e13, e23},
		{e02, e12, e13, e23},
	}
}

// typeAndOriginFromVertices recovers (origin, type) from a vertex quadruple
// produced by beyChildren. The four vertices always form a translate of a
// Kuhn simplex at half the parent's edge length: the origin is the
// component-wise minimum vertex, and beyChildren always lists that minimum
// vertex first within each quadruple, so the type can be read directly off
// the three step directions in listed order.
func typeAndOriginFromVertices(v [4]vec3) (origin vec3, t uint8) {
	origin = v[0]
	axisOf := func(d vec3) int {
		switch {
		case d.x != 0:
			return 0
		case d.y != 0:
			return 1
		default:
			return 2
		}
	}
	i2 := axisOf(v[1].sub(v[0]))
	i1 := axisOf(v[2].sub(v[1]))
	i0 := axisOf(v[3].sub(v[2]))
	return origin, typeOfPerm([3]int{i0, i1, i2})
}

// cubeIDOf returns which of the 8 octants (Morton-style: bit0=x,bit1=y,bit2=z)
// of the parent cube (origin parentOrigin, half-edge h/2) the child origin
// falls in.
func cubeIDOf(parentOrigin, childOrigin vec3, half int64) int {
	id := 0
	if childOrigin.x-parentOrigin.x >= half {
		id |= 1
	}
	if childOrigin.y-parentOrigin.y >= half {
		id |= 2
	}
	if childOrigin.z-parentOrigin.z >= half {
		id |= 4
	}
	return id
}

var (
	// ParentTypeLocalIndexToCubeID[parentType][localIndex] -> cube id.
	ParentTypeLocalIndexToCubeID [6][8]int
	// ParentTypeLocalIndexToType[parentType][localIndex] -> child type.
	ParentTypeLocalIndexToType [6][8]uint8
	// CubeIDTypeToLocalIndex[cubeID][childType] -> Bey local index. Keyed by
	// child type rather than parent type: see the package doc comment.
	CubeIDTypeToLocalIndex [8][6]int
	// CubeIDTypeToParentType[cubeID][childType] -> parent type.
	CubeIDTypeToParentType [8][6]uint8
)

func init() {
	const h int64 = 2 // arbitrary parent edge length, must be even; origin arbitrary
	origin := vec3{0, 0, 0}
	half := h / 2

	for pt := uint8(0); pt < 6; pt++ {
		parentVerts := verticesForType(origin, h, pt)
		children := beyChildren(parentVerts)
		for li := 0; li < 8; li++ {
			childOrigin, childType := typeAndOriginFromVertices(children[li])
			cid := cubeIDOf(origin, childOrigin, half)

			ParentTypeLocalIndexToCubeID[pt][li] = cid
			ParentTypeLocalIndexToType[pt][li] = childType
			CubeIDTypeToLocalIndex[cid][childType] = li
			CubeIDTypeToParentType[cid][childType] = pt
		}
	}
}
