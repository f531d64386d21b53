package keys

// TetKey is the tetree spatial key: an anchor cube (the same coordinate grid
// OctKey uses) plus a Bey congruence type, giving one of six tetrahedra that
// partition that cube. Level 0 has a single anchor (the whole domain) and six
// possible root tets, one per type. Parent/child navigation (Parent,
// Children, stepUp) walks Bey's red refinement via the connectivity tables
// in bey_tables.go; EnclosingTet itself needs no such walk, since a tet's
// type at any level is a direct function of the query point's offset from
// its anchor.
type TetKey struct {
	X, Y, Z uint32
	Type_   uint8
	Level_  uint8
}

// EnclosingTet returns the TetKey of the tetrahedron containing (x,y,z) at
// level. Coordinates must already be validated within [0, DomainExtent) by
// the caller, same contract as NewOctKey.
//
// The anchor is just the octree anchor at level (clear the low bits below
// the cell's edge length). The type needs no per-level table walk either:
// a Kuhn simplex is self-similar under refinement, so the type at level is
// determined entirely by the ascending order of the point's offset from the
// anchor, i.e. its low (MaxRefinementLevel-level) bits.
func EnclosingTet(x, y, z uint32, level uint8) TetKey {
	shift := MaxRefinementLevel - level
	mask := uint32(1)<<shift - 1

	t := typeOfPerm(ascendingOrder(x&mask, y&mask, z&mask))
	return TetKey{X: x &^ mask, Y: y &^ mask, Z: z &^ mask, Type_: t, Level_: level}
}

// ascendingOrder returns the permutation (i0,i1,i2) of {0,1,2} such that
// coord(i0) <= coord(i1) <= coord(i2), used to pick the Bey type of the tet
// containing a point within any anchor cube (root or otherwise).
func ascendingOrder(x, y, z uint32) [3]int {
	idx := [3]int{0, 1, 2}
	val := [3]uint32{x, y, z}
	// insertion sort over three elements
	if val[idx[0]] > val[idx[1]] {
		idx[0], idx[1] = idx[1], idx[0]
	}
	if val[idx[1]] > val[idx[2]] {
		idx[1], idx[2] = idx[2], idx[1]
	}
	if val[idx[0]] > val[idx[1]] {
		idx[0], idx[1] = idx[1], idx[0]
	}
	return idx
}

func (k TetKey) Level() uint8 { return k.Level_ }

func (k TetKey) Less(other Key) bool {
	o, ok := other.(TetKey)
	if !ok {
		panic("keys: TetKey.Less called with a non-TetKey key")
	}
	if k.Level_ != o.Level_ {
		return k.Level_ < o.Level_
	}
	return k.tmCode() < o.tmCode()
}

// tmCode packs the TM-index (the sequence of Bey local indices from root to
// this tet, 3 bits per level) into a uint64, giving TetKey the same
// level-then-code total order OctKey uses.
func (k TetKey) tmCode() uint64 {
	var code uint64
	cur := k
	for cur.Level_ > 0 {
		parent, localIdx := cur.stepUp()
		code |= uint64(localIdx) << (3 * uint(cur.Level_-1))
		cur = parent
	}
	return code
}

// stepUp returns cur's parent and the Bey local index that produced cur from
// that parent.
func (k TetKey) stepUp() (parent TetKey, localIndex int) {
	shift := MaxRefinementLevel - k.Level_
	cubeID := 0
	if (k.X>>shift)&1 != 0 {
		cubeID |= 1
	}
	if (k.Y>>shift)&1 != 0 {
		cubeID |= 2
	}
	if (k.Z>>shift)&1 != 0 {
		cubeID |= 4
	}
	parentType := CubeIDTypeToParentType[cubeID][k.Type_]
	localIndex = CubeIDTypeToLocalIndex[cubeID][k.Type_]

	mask := ^uint32(0) << (shift + 1)
	parent = TetKey{
		X:      k.X & mask,
		Y:      k.Y & mask,
		Z:      k.Z & mask,
		Type_:  parentType,
		Level_: k.Level_ - 1,
	}
	return parent, localIndex
}

func (k TetKey) Parent() (Key, bool) {
	if k.Level_ == 0 {
		return nil, false
	}
	parent, _ := k.stepUp()
	return parent, true
}

func (k TetKey) Children() [ChildrenPerNode]Key {
	var out [ChildrenPerNode]Key
	shift := MaxRefinementLevel - k.Level_ - 1
	for li := 0; li < ChildrenPerNode; li++ {
		cubeID := ParentTypeLocalIndexToCubeID[k.Type_][li]
		childType := ParentTypeLocalIndexToType[k.Type_][li]
		cx, cy, cz := k.X, k.Y, k.Z
		if cubeID&1 != 0 {
			cx |= 1 << shift
		}
		if cubeID&2 != 0 {
			cy |= 1 << shift
		}
		if cubeID&4 != 0 {
			cz |= 1 << shift
		}
		out[li] = TetKey{X: cx, Y: cy, Z: cz, Type_: childType, Level_: k.Level_ + 1}
	}
	return out
}

// Vertices returns the four corner points of the tetrahedron in
// full-resolution grid units, for use by the geometry kernel's point-in-tet
// and intersection tests.
func (k TetKey) Vertices() (v0, v1, v2, v3 [3]uint32) {
	h := int64(CellEdgeLength(k.Level_))
	origin := vec3{int64(k.X), int64(k.Y), int64(k.Z)}
	verts := verticesForType(origin, h, k.Type_)
	toArr := func(v vec3) [3]uint32 { return [3]uint32{uint32(v.x), uint32(v.y), uint32(v.z)} }
	return toArr(verts[0]), toArr(verts[1]), toArr(verts[2]), toArr(verts[3])
}
