// Package arena implements a packed slot allocator: a fixed-size slot pool
// with an intrusive free list, grown on demand one slot at a time.
//
// The originating protocol carves this pool out of the raw byte tail of an
// on-chain account. The Go rendering keeps the index-addressed, no-pointers
// discipline but stores a typed Go slice instead of reinterpreting a
// []byte — see DESIGN.md's "Representation choice" entry for why.
package arena

import "github.com/nixlabs/nix-engine/pkg/nix/nixerr"

// Tag identifies what a slot currently holds.
type Tag uint8

const (
	TagEmpty Tag = iota
	TagFree
	TagPayload
)

// NilIndex marks the absence of a slot reference, the Go analog of a null
// pointer for an index-addressed structure.
const NilIndex uint32 = 1<<32 - 1

// Slot is one fixed-size cell of the pool. When Tag == TagFree, Next holds
// the free-list successor (NilIndex if it is the tail). When
// Tag == TagPayload, Payload holds the live value.
type Slot[P any] struct {
	Tag     Tag
	Next    uint32
	Payload P
}

// Arena is a packed slot pool threaded through a free-list head and a count
// of slots ever allocated, mirroring the header fields
// (free_list_head, num_bytes_allocated) the original program keeps inline in
// the account header.
type Arena[P any] struct {
	slots        []Slot[P]
	freeListHead uint32
}

// New creates an empty arena with no slots; the first Expand installs one.
func New[P any]() *Arena[P] {
	return &Arena[P]{freeListHead: NilIndex}
}

// NumSlots returns how many slots have ever been added (occupied or free).
func (a *Arena[P]) NumSlots() uint32 { return uint32(len(a.slots)) }

// Expand grows the pool by exactly one slot and pushes it onto the free
// list (one slot per call; callers needing N slots call Expand N times).
func (a *Arena[P]) Expand() uint32 {
	idx := uint32(len(a.slots))
	a.slots = append(a.slots, Slot[P]{Tag: TagFree, Next: a.freeListHead})
	a.freeListHead = idx
	return idx
}

// HasFreeSlot reports whether Allocate can succeed without expanding first.
func (a *Arena[P]) HasFreeSlot() bool { return a.freeListHead != NilIndex }

// Allocate pops the free-list head and returns its index with Tag reset to
// TagPayload. Fails with InvalidFreeList if the pool has no free slot — the
// caller must Expand first.
func (a *Arena[P]) Allocate() (uint32, error) {
	if a.freeListHead == NilIndex {
		return 0, nixerr.New(nixerr.InvalidFreeList, "arena: no free slot, caller must expand first")
	}
	idx := a.freeListHead
	slot := &a.slots[idx]
	if slot.Tag != TagFree {
		return 0, nixerr.New(nixerr.InvalidFreeList, "arena: free-list head %d is not tagged free", idx)
	}
	a.freeListHead = slot.Next
	slot.Tag = TagPayload
	slot.Next = NilIndex
	var zero P
	slot.Payload = zero
	return idx, nil
}

// Free pushes the slot at index back onto the free list.
func (a *Arena[P]) Free(index uint32) error {
	if index >= uint32(len(a.slots)) {
		return nixerr.New(nixerr.InvalidFreeList, "arena: index %d out of range", index)
	}
	slot := &a.slots[index]
	if slot.Tag == TagFree {
		return nixerr.New(nixerr.InvalidFreeList, "arena: double free of index %d", index)
	}
	var zero P
	slot.Payload = zero
	slot.Tag = TagFree
	slot.Next = a.freeListHead
	a.freeListHead = index
	return nil
}

// Get returns a pointer to the payload at index. The caller must have
// already verified Tag == TagPayload (via TagAt()).
func (a *Arena[P]) Get(index uint32) *P {
	return &a.slots[index].Payload
}

// TagAt returns the tag of the slot at index.
func (a *Arena[P]) TagAt(index uint32) Tag {
	if index >= uint32(len(a.slots)) {
		return TagEmpty
	}
	return a.slots[index].Tag
}

// FreeListHead returns the current head of the free list, NilIndex if empty.
func (a *Arena[P]) FreeListHead() uint32 { return a.freeListHead }

// OccupiedIndices returns, in ascending order, every index currently tagged
// TagPayload.
func (a *Arena[P]) OccupiedIndices() []uint32 {
	out := make([]uint32, 0, len(a.slots))
	for i, s := range a.slots {
		if s.Tag == TagPayload {
			out = append(out, uint32(i))
		}
	}
	return out
}

// CheckInvariant verifies that free-list slots and occupied slots partition
// the pool exactly: every slot is tagged free or payload (or empty only if
// never expanded into), and the free list visits every free slot exactly
// once.
func (a *Arena[P]) CheckInvariant() error {
	seen := make([]bool, len(a.slots))
	cur := a.freeListHead
	count := 0
	for cur != NilIndex {
		if cur >= uint32(len(a.slots)) {
			return nixerr.New(nixerr.InvalidFreeList, "arena: free list references out-of-range index %d", cur)
		}
		if seen[cur] {
			return nixerr.New(nixerr.InvalidFreeList, "arena: free list cycle detected at index %d", cur)
		}
		seen[cur] = true
		if a.slots[cur].Tag != TagFree {
			return nixerr.New(nixerr.InvalidFreeList, "arena: free list index %d not tagged free", cur)
		}
		cur = a.slots[cur].Next
		count++
		if count > len(a.slots) {
			return nixerr.New(nixerr.InvalidFreeList, "arena: free list longer than pool")
		}
	}
	for i, s := range a.slots {
		if s.Tag == TagFree && !seen[i] {
			return nixerr.New(nixerr.InvalidFreeList, "arena: slot %d tagged free but absent from free list", i)
		}
	}
	return nil
}

// Slots returns a copy of the pool's slots in index order, for a
// persistence layer snapshotting an account buffer verbatim rather than
// replaying the sequence of calls that produced it.
func (a *Arena[P]) Slots() []Slot[P] {
	out := make([]Slot[P], len(a.slots))
	copy(out, a.slots)
	return out
}

// Restore rebuilds an arena from a previously captured slot snapshot and
// free-list head — the inverse of Slots/FreeListHead, used by pkg/storage
// to reload a persisted account buffer byte-for-byte rather than replaying
// every Allocate/Free call that produced it.
func Restore[P any](slots []Slot[P], freeListHead uint32) *Arena[P] {
	out := make([]Slot[P], len(slots))
	copy(out, slots)
	return &Arena[P]{slots: out, freeListHead: freeListHead}
}
