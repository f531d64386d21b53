// Package traverse is the lifecycle & traversal component (C9): visitor-
// pattern walks over the node store (pre-order, post-order, breadth-first),
// region-bounded subtree iteration, and the index-wide clear operation.
//
// The node store holds only the cells that actually exist — a leaf the
// insertion engine created, or an internal node the balancer split — so a
// walk starts from each node whose parent is absent from the store (its
// "forest root") rather than descending the implicit infinite tree from
// the flavor's true roots, which would revisit thousands of empty levels
// above any real data.
package traverse

import (
	"sort"

	"github.com/scigolib/spatialidx/internal/entitystore"
	"github.com/scigolib/spatialidx/internal/geometry"
	"github.com/scigolib/spatialidx/internal/keys"
	"github.com/scigolib/spatialidx/internal/nodestore"
)

// Strategy selects traversal order.
type Strategy int

const (
	PreOrder Strategy = iota
	PostOrder
	BreadthFirst
)

// Directive is a Visitor's instruction to the walker.
type Directive int

const (
	// Continue descends normally into the visited node's children.
	Continue Directive = iota
	// SkipSubtree visits no descendant of the current node. For PostOrder,
	// where children are already visited by the time the visitor runs,
	// this has no effect beyond Continue.
	SkipSubtree
	// Stop ends the walk immediately.
	Stop
)

// Visitor is called once per visited node with its key, the node itself,
// its depth relative to the walk's roots, and a snapshot of its occupant
// entity ids.
type Visitor[K keys.Key] func(key K, node *nodestore.Node[K], depth int, entityIds []entitystore.EntityID) Directive

// Walker runs traversals over a node store.
type Walker[K keys.Key] struct {
	flavor keys.Flavor[K]
	nodes  *nodestore.Store[K]
}

// New builds a Walker over nodes.
func New[K keys.Key](flavor keys.Flavor[K], nodes *nodestore.Store[K]) *Walker[K] {
	return &Walker[K]{flavor: flavor, nodes: nodes}
}

// Walk runs a full traversal of every stored node in the given order.
func (w *Walker[K]) Walk(strategy Strategy, visitor Visitor[K]) {
	byKey, roots := w.index(nil)
	w.dispatch(strategy, byKey, roots, visitor)
}

// WalkRegion traverses only nodes whose cell intersects region, pruning
// whole subtrees up front: a child's cell is always contained in its
// parent's, so a parent failing the intersection test means none of its
// descendants can pass either.
func (w *Walker[K]) WalkRegion(strategy Strategy, region geometry.Volume, visitor Visitor[K]) {
	bounds := region.AABB()
	byKey, roots := w.index(func(k K) bool { return w.flavor.Bounds(k).Intersects(bounds) })
	w.dispatch(strategy, byKey, roots, visitor)
}

// WalkFrom traverses only start and its descendants present in the store,
// as if start were the sole root. Used by the facade's TraverseFrom, which
// resumes a walk at a caller-chosen key rather than every forest root.
func (w *Walker[K]) WalkFrom(strategy Strategy, start K, visitor Visitor[K]) {
	byKey, roots := w.index(func(k K) bool { return isDescendant(k, start) })
	w.dispatch(strategy, byKey, roots, visitor)
}

func isDescendant[K keys.Key](k, ancestor K) bool {
	cur := k
	for {
		if cur == ancestor {
			return true
		}
		p, ok := parentOf(cur)
		if !ok {
			return false
		}
		cur = p
	}
}

func (w *Walker[K]) dispatch(strategy Strategy, byKey map[K]*nodestore.Node[K], roots []K, visitor Visitor[K]) {
	switch strategy {
	case PreOrder:
		w.walkPreOrder(byKey, roots, visitor)
	case PostOrder:
		w.walkPostOrder(byKey, roots, visitor)
	case BreadthFirst:
		w.walkBreadthFirst(byKey, roots, visitor)
	default:
		w.walkPreOrder(byKey, roots, visitor)
	}
}

// index materializes the node store (or the subset passing allowed) into a
// key->node map plus the sorted set of forest roots: nodes whose parent key
// is absent from the map, either because the key is a flavor root or
// because allowed filtered the parent out.
func (w *Walker[K]) index(allowed func(K) bool) (map[K]*nodestore.Node[K], []K) {
	snap := w.nodes.Snapshot()
	byKey := make(map[K]*nodestore.Node[K])
	for node := range snap.InOrder() {
		if allowed != nil && !allowed(node.Key) {
			continue
		}
		byKey[node.Key] = node
	}

	var roots []K
	for key := range byKey {
		if parent, ok := parentOf(key); ok {
			if _, present := byKey[parent]; present {
				continue
			}
		}
		roots = append(roots, key)
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i].Less(roots[j]) })
	return byKey, roots
}

func parentOf[K keys.Key](key K) (K, bool) {
	p, ok := key.Parent()
	if !ok {
		var zero K
		return zero, false
	}
	return p.(K), true
}

func childrenOf[K keys.Key](key K, byKey map[K]*nodestore.Node[K]) []K {
	raw := key.Children()
	out := make([]K, 0, len(raw))
	for _, c := range raw {
		ck := c.(K)
		if _, ok := byKey[ck]; ok {
			out = append(out, ck)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

type frame[K keys.Key] struct {
	key            K
	depth          int
	childrenPushed bool
}

func (w *Walker[K]) walkPreOrder(byKey map[K]*nodestore.Node[K], roots []K, visitor Visitor[K]) {
	stack := make([]frame[K], 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, frame[K]{key: roots[i]})
	}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		node, ok := byKey[f.key]
		if !ok {
			continue
		}
		directive := visitor(f.key, node, f.depth, node.EntityIDs())
		if directive == Stop {
			return
		}
		if directive == SkipSubtree {
			continue
		}
		children := childrenOf(f.key, byKey)
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, frame[K]{key: children[i], depth: f.depth + 1})
		}
	}
}

func (w *Walker[K]) walkPostOrder(byKey map[K]*nodestore.Node[K], roots []K, visitor Visitor[K]) {
	stack := make([]frame[K], 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, frame[K]{key: roots[i]})
	}
	for len(stack) > 0 {
		idx := len(stack) - 1
		f := stack[idx]

		if _, ok := byKey[f.key]; !ok {
			stack = stack[:idx]
			continue
		}
		if !f.childrenPushed {
			stack[idx].childrenPushed = true
			children := childrenOf(f.key, byKey)
			for i := len(children) - 1; i >= 0; i-- {
				stack = append(stack, frame[K]{key: children[i], depth: f.depth + 1})
			}
			continue
		}

		stack = stack[:idx]
		node := byKey[f.key]
		if visitor(f.key, node, f.depth, node.EntityIDs()) == Stop {
			return
		}
	}
}

type queueItem[K keys.Key] struct {
	key   K
	depth int
}

func (w *Walker[K]) walkBreadthFirst(byKey map[K]*nodestore.Node[K], roots []K, visitor Visitor[K]) {
	queue := make([]queueItem[K], 0, len(roots))
	for _, r := range roots {
		queue = append(queue, queueItem[K]{key: r})
	}
	for len(queue) > 0 {
		it := queue[0]
		queue = queue[1:]

		node, ok := byKey[it.key]
		if !ok {
			continue
		}
		directive := visitor(it.key, node, it.depth, node.EntityIDs())
		if directive == Stop {
			return
		}
		if directive == SkipSubtree {
			continue
		}
		for _, c := range childrenOf(it.key, byKey) {
			queue = append(queue, queueItem[K]{key: c, depth: it.depth + 1})
		}
	}
}

// Clear drops every node and entity, the caller's responsibility being to
// hold the index-wide write lock for the duration (spec's "clear() drops
// all nodes and entities atomically").
func Clear[K keys.Key, C any](nodes *nodestore.Store[K], entities *entitystore.Store[K, C]) {
	nodes.Clear()
	entities.Clear()
}
