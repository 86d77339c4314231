package rbtree

import (
	"testing"

	"github.com/nixlabs/nix-engine/pkg/nix/arena"
)

func intCmp(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func newIntTree(cap int) *Tree[int] {
	pool := arena.New[Node[int]]()
	for i := 0; i < cap; i++ {
		pool.Expand()
	}
	return New(pool, intCmp)
}

func TestInsertFindRemove(t *testing.T) {
	tree := newIntTree(8)
	values := []int{5, 3, 8, 1, 4, 7, 9}
	idxByValue := make(map[int]uint32)
	for _, v := range values {
		idx, err := tree.Insert(v)
		if err != nil {
			t.Fatalf("Insert(%d): %v", v, err)
		}
		idxByValue[v] = idx
	}
	if tree.Size() != len(values) {
		t.Fatalf("Size() = %d, want %d", tree.Size(), len(values))
	}
	for _, v := range values {
		if got := tree.Find(v); got == Nil {
			t.Fatalf("Find(%d) returned Nil", v)
		}
	}
	if tree.Find(100) != Nil {
		t.Fatal("Find should return Nil for a missing value")
	}

	if err := tree.Remove(idxByValue[3]); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if tree.Find(3) != Nil {
		t.Fatal("expected 3 to be gone after Remove")
	}
	if tree.Size() != len(values)-1 {
		t.Fatalf("Size() after Remove = %d, want %d", tree.Size(), len(values)-1)
	}
}

func TestWalkOrderIsDescending(t *testing.T) {
	tree := newIntTree(8)
	for _, v := range []int{5, 3, 8, 1, 4, 7, 9} {
		if _, err := tree.Insert(v); err != nil {
			t.Fatalf("Insert(%d): %v", v, err)
		}
	}
	var seen []int
	tree.Walk(func(idx uint32) bool {
		seen = append(seen, tree.Payload(idx))
		return true
	})
	for i := 1; i < len(seen); i++ {
		if seen[i] >= seen[i-1] {
			t.Fatalf("Walk not descending at %d: %v", i, seen)
		}
	}
	if len(seen) != 7 {
		t.Fatalf("Walk visited %d nodes, want 7", len(seen))
	}
}

func TestWalkStopsEarly(t *testing.T) {
	tree := newIntTree(8)
	for _, v := range []int{1, 2, 3, 4, 5} {
		if _, err := tree.Insert(v); err != nil {
			t.Fatalf("Insert(%d): %v", v, err)
		}
	}
	count := 0
	tree.Walk(func(idx uint32) bool {
		count++
		return count < 2
	})
	if count != 2 {
		t.Fatalf("Walk visited %d nodes, want 2", count)
	}
}

func TestNextPrev(t *testing.T) {
	tree := newIntTree(8)
	idx := make(map[int]uint32)
	for _, v := range []int{1, 2, 3, 4, 5} {
		i, err := tree.Insert(v)
		if err != nil {
			t.Fatalf("Insert(%d): %v", v, err)
		}
		idx[v] = i
	}
	if got := tree.Payload(tree.Next(idx[2])); got != 3 {
		t.Fatalf("Next(2) = %d, want 3", got)
	}
	if got := tree.Payload(tree.Prev(idx[2])); got != 1 {
		t.Fatalf("Prev(2) = %d, want 1", got)
	}
	if tree.Next(idx[5]) != Nil {
		t.Fatal("Next of maximum should be Nil")
	}
	if tree.Prev(idx[1]) != Nil {
		t.Fatal("Prev of minimum should be Nil")
	}
}

func TestRestoreRoundTrip(t *testing.T) {
	tree := newIntTree(8)
	for _, v := range []int{5, 3, 8} {
		if _, err := tree.Insert(v); err != nil {
			t.Fatalf("Insert(%d): %v", v, err)
		}
	}
	restored := Restore(tree.Pool, intCmp, tree.Root, tree.Best)
	if restored.Size() != tree.Size() {
		t.Fatalf("restored Size() = %d, want %d", restored.Size(), tree.Size())
	}
	if restored.Find(8) == Nil {
		t.Fatal("restored tree lost a value")
	}
}
