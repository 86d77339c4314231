// Package rbtree implements an intrusive, index-addressed red-black tree.
// The same generic type drives the claimed-seat tree, every resting-order
// bookside, and the active-loan ledger tree: identical code for claimed
// seats, resting orders, and active loans, distinguished only by the
// payload type and comparator each Tree is constructed with.
package rbtree

import (
	"github.com/nixlabs/nix-engine/pkg/nix/arena"
	"github.com/nixlabs/nix-engine/pkg/nix/nixerr"
)

// Color is the red-black coloring bit.
type Color uint8

const (
	Red Color = iota
	Black
)

// Nil is the sentinel index meaning "no node," reusing the arena's sentinel.
const Nil = arena.NilIndex

// Node is one RB-tree element: parent/left/right indices into the same
// pool, a color bit, and the caller's payload. Node is itself the element
// type of an arena.Arena, so slot tagging (payload vs free) is handled by
// the arena layer; Node only ever appears with arena.TagPayload.
type Node[P any] struct {
	Parent, Left, Right uint32
	Color               Color
	Payload             P
}

// Comparator orders two payloads: negative if a sorts before b, zero if
// equal (for lookup purposes), positive otherwise.
type Comparator[P any] func(a, b P) int

// Tree is one bookside (or the seat tree, or the loan-ledger tree): a root
// index, a cached best (in-order maximum) index, and a comparator, all
// threaded through a shared arena pool. Multiple Tree values over the same
// *arena.Arena[Node[P]] is how a market's single slot pool backs several
// independent trees over one shared buffer: four bookside tree roots plus
// four cached best indices, and the seat tree besides.
type Tree[P any] struct {
	Pool *arena.Arena[Node[P]]
	Root uint32
	Best uint32
	Cmp  Comparator[P]
}

// New constructs an empty tree over the given shared pool.
func New[P any](pool *arena.Arena[Node[P]], cmp Comparator[P]) *Tree[P] {
	return &Tree[P]{Pool: pool, Root: Nil, Best: Nil, Cmp: cmp}
}

// Restore rebuilds a Tree bound to pool with an already-populated root/best
// cache — the inverse of reading (Root, Best) back off a live Tree, used by
// pkg/storage when reloading a persisted account buffer.
func Restore[P any](pool *arena.Arena[Node[P]], cmp Comparator[P], root, best uint32) *Tree[P] {
	return &Tree[P]{Pool: pool, Root: root, Best: best, Cmp: cmp}
}

func (t *Tree[P]) node(idx uint32) *Node[P] {
	return t.Pool.Get(idx)
}

func (t *Tree[P]) colorOf(idx uint32) Color {
	if idx == Nil {
		return Black
	}
	return t.node(idx).Color
}

func (t *Tree[P]) setColor(idx uint32, c Color) {
	if idx != Nil {
		t.node(idx).Color = c
	}
}

func (t *Tree[P]) parentOf(idx uint32) uint32 {
	if idx == Nil {
		return Nil
	}
	return t.node(idx).Parent
}

func (t *Tree[P]) leftOf(idx uint32) uint32 {
	if idx == Nil {
		return Nil
	}
	return t.node(idx).Left
}

func (t *Tree[P]) rightOf(idx uint32) uint32 {
	if idx == Nil {
		return Nil
	}
	return t.node(idx).Right
}

// Payload returns the payload stored at idx. Caller must ensure idx != Nil.
func (t *Tree[P]) Payload(idx uint32) P {
	return t.node(idx).Payload
}

// IsEmpty reports whether the tree has no nodes.
func (t *Tree[P]) IsEmpty() bool { return t.Root == Nil }

func (t *Tree[P]) rotateLeft(x uint32) {
	y := t.node(x).Right
	t.node(x).Right = t.leftOf(y)
	if t.leftOf(y) != Nil {
		t.node(t.leftOf(y)).Parent = x
	}
	t.node(y).Parent = t.parentOf(x)
	if t.parentOf(x) == Nil {
		t.Root = y
	} else if x == t.leftOf(t.parentOf(x)) {
		t.node(t.parentOf(x)).Left = y
	} else {
		t.node(t.parentOf(x)).Right = y
	}
	t.node(y).Left = x
	t.node(x).Parent = y
}

func (t *Tree[P]) rotateRight(x uint32) {
	y := t.node(x).Left
	t.node(x).Left = t.rightOf(y)
	if t.rightOf(y) != Nil {
		t.node(t.rightOf(y)).Parent = x
	}
	t.node(y).Parent = t.parentOf(x)
	if t.parentOf(x) == Nil {
		t.Root = y
	} else if x == t.rightOf(t.parentOf(x)) {
		t.node(t.parentOf(x)).Right = y
	} else {
		t.node(t.parentOf(x)).Left = y
	}
	t.node(y).Right = x
	t.node(x).Parent = y
}

// Insert allocates a new node for payload, links it in BST order, and
// restores the red-black invariants. Requires the backing pool to already
// have a free slot (the caller expands the arena first).
func (t *Tree[P]) Insert(payload P) (uint32, error) {
	idx, err := t.Pool.Allocate()
	if err != nil {
		return 0, err
	}
	n := t.node(idx)
	n.Parent, n.Left, n.Right = Nil, Nil, Nil
	n.Color = Red
	n.Payload = payload

	var parent uint32 = Nil
	cur := t.Root
	for cur != Nil {
		parent = cur
		if t.Cmp(payload, t.node(cur).Payload) < 0 {
			cur = t.node(cur).Left
		} else {
			cur = t.node(cur).Right
		}
	}
	n.Parent = parent
	if parent == Nil {
		t.Root = idx
	} else if t.Cmp(payload, t.node(parent).Payload) < 0 {
		t.node(parent).Left = idx
	} else {
		t.node(parent).Right = idx
	}

	t.insertFixup(idx)
	t.recomputeBest()
	return idx, nil
}

func (t *Tree[P]) insertFixup(z uint32) {
	for t.colorOf(t.parentOf(z)) == Red {
		parent := t.parentOf(z)
		grand := t.parentOf(parent)
		if parent == t.leftOf(grand) {
			uncle := t.rightOf(grand)
			if t.colorOf(uncle) == Red {
				t.setColor(parent, Black)
				t.setColor(uncle, Black)
				t.setColor(grand, Red)
				z = grand
				continue
			}
			if z == t.rightOf(parent) {
				z = parent
				t.rotateLeft(z)
				parent = t.parentOf(z)
				grand = t.parentOf(parent)
			}
			t.setColor(parent, Black)
			t.setColor(grand, Red)
			t.rotateRight(grand)
		} else {
			uncle := t.leftOf(grand)
			if t.colorOf(uncle) == Red {
				t.setColor(parent, Black)
				t.setColor(uncle, Black)
				t.setColor(grand, Red)
				z = grand
				continue
			}
			if z == t.leftOf(parent) {
				z = parent
				t.rotateRight(z)
				parent = t.parentOf(z)
				grand = t.parentOf(parent)
			}
			t.setColor(parent, Black)
			t.setColor(grand, Red)
			t.rotateLeft(grand)
		}
	}
	t.setColor(t.Root, Black)
}

func (t *Tree[P]) transplant(u, v uint32) {
	if t.parentOf(u) == Nil {
		t.Root = v
	} else if u == t.leftOf(t.parentOf(u)) {
		t.node(t.parentOf(u)).Left = v
	} else {
		t.node(t.parentOf(u)).Right = v
	}
	if v != Nil {
		t.node(v).Parent = t.parentOf(u)
	}
}

func (t *Tree[P]) minimum(x uint32) uint32 {
	for t.leftOf(x) != Nil {
		x = t.leftOf(x)
	}
	return x
}

// Remove detaches the node at idx from the tree, restores the red-black
// invariants, and frees its slot back to the pool.
func (t *Tree[P]) Remove(idx uint32) error {
	if t.Pool.TagAt(idx) != arena.TagPayload {
		return nixerr.New(nixerr.InvalidFreeList, "rbtree: index %d is not a live node", idx)
	}
	z := idx
	y := z
	yOriginalColor := t.colorOf(y)
	var x, xParent uint32

	if t.leftOf(z) == Nil {
		x = t.rightOf(z)
		xParent = t.parentOf(z)
		t.transplant(z, t.rightOf(z))
	} else if t.rightOf(z) == Nil {
		x = t.leftOf(z)
		xParent = t.parentOf(z)
		t.transplant(z, t.leftOf(z))
	} else {
		y = t.minimum(t.rightOf(z))
		yOriginalColor = t.colorOf(y)
		x = t.rightOf(y)
		if t.parentOf(y) == z {
			xParent = y
		} else {
			xParent = t.parentOf(y)
			t.transplant(y, t.rightOf(y))
			t.node(y).Right = t.rightOf(z)
			t.node(t.rightOf(y)).Parent = y
		}
		t.transplant(z, y)
		t.node(y).Left = t.leftOf(z)
		t.node(t.leftOf(y)).Parent = y
		t.setColor(y, t.colorOf(z))
	}

	if yOriginalColor == Black {
		t.removeFixup(x, xParent)
	}

	if err := t.Pool.Free(idx); err != nil {
		return err
	}
	t.recomputeBest()
	return nil
}

func (t *Tree[P]) removeFixup(x, parent uint32) {
	for x != t.Root && t.colorOf(x) == Black {
		if x == t.leftOf(parent) {
			w := t.rightOf(parent)
			if t.colorOf(w) == Red {
				t.setColor(w, Black)
				t.setColor(parent, Red)
				t.rotateLeft(parent)
				w = t.rightOf(parent)
			}
			if t.colorOf(t.leftOf(w)) == Black && t.colorOf(t.rightOf(w)) == Black {
				t.setColor(w, Red)
				x = parent
				parent = t.parentOf(x)
				continue
			}
			if t.colorOf(t.rightOf(w)) == Black {
				t.setColor(t.leftOf(w), Black)
				t.setColor(w, Red)
				t.rotateRight(w)
				w = t.rightOf(parent)
			}
			t.setColor(w, t.colorOf(parent))
			t.setColor(parent, Black)
			t.setColor(t.rightOf(w), Black)
			t.rotateLeft(parent)
			x = t.Root
			parent = Nil
		} else {
			w := t.leftOf(parent)
			if t.colorOf(w) == Red {
				t.setColor(w, Black)
				t.setColor(parent, Red)
				t.rotateRight(parent)
				w = t.leftOf(parent)
			}
			if t.colorOf(t.rightOf(w)) == Black && t.colorOf(t.leftOf(w)) == Black {
				t.setColor(w, Red)
				x = parent
				parent = t.parentOf(x)
				continue
			}
			if t.colorOf(t.leftOf(w)) == Black {
				t.setColor(t.rightOf(w), Black)
				t.setColor(w, Red)
				t.rotateLeft(w)
				w = t.leftOf(parent)
			}
			t.setColor(w, t.colorOf(parent))
			t.setColor(parent, Black)
			t.setColor(t.leftOf(w), Black)
			t.rotateRight(parent)
			x = t.Root
			parent = Nil
		}
	}
	t.setColor(x, Black)
}

// recomputeBest resets Best to the in-order maximum: the rightmost node
// reachable from Root. O(log n), called after every Insert/Remove.
func (t *Tree[P]) recomputeBest() {
	if t.Root == Nil {
		t.Best = Nil
		return
	}
	cur := t.Root
	for t.rightOf(cur) != Nil {
		cur = t.rightOf(cur)
	}
	t.Best = cur
}

// Find returns the index of a node whose payload compares equal (Cmp==0)
// to needle, or Nil if none exists.
func (t *Tree[P]) Find(needle P) uint32 {
	cur := t.Root
	for cur != Nil {
		c := t.Cmp(needle, t.node(cur).Payload)
		switch {
		case c == 0:
			return cur
		case c < 0:
			cur = t.leftOf(cur)
		default:
			cur = t.rightOf(cur)
		}
	}
	return Nil
}

// Next returns the in-order successor of idx, or Nil if idx is the maximum.
func (t *Tree[P]) Next(idx uint32) uint32 {
	if t.rightOf(idx) != Nil {
		return t.minimum(t.rightOf(idx))
	}
	cur, parent := idx, t.parentOf(idx)
	for parent != Nil && cur == t.rightOf(parent) {
		cur = parent
		parent = t.parentOf(parent)
	}
	return parent
}

// Prev returns the in-order predecessor of idx, or Nil if idx is the
// minimum. Used by the matching loop to pre-compute the next maker to
// inspect before removing the current one.
func (t *Tree[P]) Prev(idx uint32) uint32 {
	if t.leftOf(idx) != Nil {
		cur := t.leftOf(idx)
		for t.rightOf(cur) != Nil {
			cur = t.rightOf(cur)
		}
		return cur
	}
	cur, parent := idx, t.parentOf(idx)
	for parent != Nil && cur == t.leftOf(parent) {
		cur = parent
		parent = t.parentOf(parent)
	}
	return parent
}

// Walk visits every node from the maximum (Best) down to the minimum,
// calling fn(index) for each, stopping early if fn returns false. This is
// the traversal order the matching engine uses to scan a bookside starting
// from its best resting order.
func (t *Tree[P]) Walk(fn func(idx uint32) bool) {
	cur := t.Best
	for cur != Nil {
		if !fn(cur) {
			return
		}
		// previous (in-order predecessor)
		if t.leftOf(cur) != Nil {
			cur = t.leftOf(cur)
			for t.rightOf(cur) != Nil {
				cur = t.rightOf(cur)
			}
			continue
		}
		child, parent := cur, t.parentOf(cur)
		for parent != Nil && child == t.leftOf(parent) {
			child = parent
			parent = t.parentOf(parent)
		}
		cur = parent
	}
}

// Size counts the number of live nodes by walking from Best. O(n); used by
// tests and invariant checks, never by the hot matching path.
func (t *Tree[P]) Size() int {
	n := 0
	t.Walk(func(uint32) bool { n++; return true })
	return n
}
