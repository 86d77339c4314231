package state

import (
	"github.com/nixlabs/nix-engine/pkg/nix/arena"
	"github.com/nixlabs/nix-engine/pkg/nix/ident"
	"github.com/nixlabs/nix-engine/pkg/nix/nixerr"
	"github.com/nixlabs/nix-engine/pkg/nix/rbtree"
)

// PayloadKind tags what a market slot currently holds: a tagged variant
// over inheritance.
type PayloadKind uint8

const (
	KindEmpty PayloadKind = iota
	KindClaimedSeat
	KindRestingOrder
)

// MarketPayload is the tagged union stored in every market slot: a claimed
// seat's bookkeeping or a resting order's bookkeeping, never both at once.
// The same generic rbtree.Tree[MarketPayload] type drives the seat tree and
// all four resting-order booksides.
type MarketPayload struct {
	Kind  PayloadKind
	Seat  ClaimedSeat
	Order RestingOrder
}

// compareSeatPayload and compareRestingOrderPayload are the per-tree
// comparators: the seat tree is built with the first and each bookside with
// the second, so each assumes every payload in its tree has the same Kind.
func compareSeatPayload(a, b MarketPayload) int {
	return CompareSeatByTrader(a.Seat, b.Seat)
}

func compareRestingOrderPayload(ascending bool) func(a, b MarketPayload) int {
	return func(a, b MarketPayload) int {
		if a.Order.RateBps == b.Order.RateBps {
			return 0
		}
		less := a.Order.RateBps < b.Order.RateBps
		if !ascending {
			less = !less
		}
		if less {
			return -1
		}
		return 1
	}
}

// MarketFee holds the market's protocol fee configuration.
type MarketFee struct {
	ProtocolFeeBps uint16
	LTVBufferBps   uint16
	FeeReceiverA   ident.ID
	FeeReceiverB   ident.ID
	Admin          ident.ID
}

// Market is the CLOB account header plus its shared slot pool: two
// independent tree pairs (one per possible "base" asset), a seat tree, two
// sequence numbers, and fee configuration.
type Market struct {
	Address ident.ID
	MintA   ident.ID
	MintB   ident.ID
	DecimalsA uint8
	DecimalsB uint8

	// Money-market bindings, one per side (group/bank/account/vault
	// identifiers bundled together; see external.Binding).
	BankA ident.ID
	BankB ident.ID

	Fee MarketFee

	SeqA uint64
	SeqB uint64

	VolumeA uint64
	VolumeB uint64

	pool *arena.Arena[rbtree.Node[MarketPayload]]

	SeatTree *rbtree.Tree[MarketPayload]

	// use_a_tree selects between these two pairs: for a bid/ask placed
	// with UseATree==true, BidsA/AsksA is the relevant pair and SeqA is
	// the sequence number that advances.
	BidsA *rbtree.Tree[MarketPayload] // ascending rate: max = highest rate (best for a lender)
	AsksA *rbtree.Tree[MarketPayload] // descending rate: max = lowest rate (best for a lender's counterparty)
	BidsB *rbtree.Tree[MarketPayload]
	AsksB *rbtree.Tree[MarketPayload]
}

// NewMarket constructs a zero-initialized market header with one slot
// pre-installed.
func NewMarket(address, mintA, mintB, bankA, bankB ident.ID, decimalsA, decimalsB uint8, fee MarketFee) *Market {
	pool := arena.New[rbtree.Node[MarketPayload]]()
	pool.Expand()
	m := &Market{
		Address:   address,
		MintA:     mintA,
		MintB:     mintB,
		DecimalsA: decimalsA,
		DecimalsB: decimalsB,
		BankA:     bankA,
		BankB:     bankB,
		Fee:       fee,
		pool:      pool,
	}
	m.SeatTree = rbtree.New(pool, compareSeatPayload)
	// Bids sorted so the maximum (best) yields the *highest* rate
	// (best for a seller/lender); asks sorted so the maximum yields the
	// *lowest* rate (best for a buyer/borrower).
	m.BidsA = rbtree.New(pool, compareRestingOrderPayload(true))
	m.AsksA = rbtree.New(pool, compareRestingOrderPayload(false))
	m.BidsB = rbtree.New(pool, compareRestingOrderPayload(true))
	m.AsksB = rbtree.New(pool, compareRestingOrderPayload(false))
	return m
}

// Pool exposes the shared slot pool for invariant checks and expansion.
func (m *Market) Pool() *arena.Arena[rbtree.Node[MarketPayload]] { return m.pool }

// HasFreeBlock reports whether one more slot can be allocated without
// expanding.
func (m *Market) HasFreeBlock() bool { return m.pool.HasFreeSlot() }

// Expand grows the shared pool by one slot.
func (m *Market) Expand() uint32 { return m.pool.Expand() }

// BooksideFor returns the bid and ask trees for the given tree-pair flag.
func (m *Market) BooksideFor(useATree bool) (bids, asks *rbtree.Tree[MarketPayload]) {
	if useATree {
		return m.BidsA, m.AsksA
	}
	return m.BidsB, m.AsksB
}

// NextSequence returns the pair's current sequence number incremented by
// one, without yet committing the increment (caller commits via
// BumpSequence once the operation that consumes it has fully succeeded).
func (m *Market) NextSequence(useATree bool) uint64 {
	if useATree {
		return m.SeqA + 1
	}
	return m.SeqB + 1
}

// BumpSequence advances the sequence number for the given tree pair by
// exactly one, regardless of how many makers were walked to get there.
func (m *Market) BumpSequence(useATree bool) uint64 {
	if useATree {
		m.SeqA++
		return m.SeqA
	}
	m.SeqB++
	return m.SeqB
}

// RecordVolume adds amount to the lifetime volume accumulator for the
// given side, wrapping on overflow.
func (m *Market) RecordVolume(amount uint64, isSideA bool) {
	if isSideA {
		m.VolumeA += amount
	} else {
		m.VolumeB += amount
	}
}

// ClaimSeat registers a new trader seat, failing with AlreadyClaimedSeat if
// one already exists.
func (m *Market) ClaimSeat(trader ident.ID) (uint32, error) {
	existing := m.SeatTree.Find(MarketPayload{Kind: KindClaimedSeat, Seat: ClaimedSeat{Trader: trader}})
	if existing != rbtree.Nil {
		return 0, nixerr.New(nixerr.AlreadyClaimedSeat, "trader %s already has a seat on market %s", trader, m.Address)
	}
	if !m.pool.HasFreeSlot() {
		m.Expand()
	}
	idx, err := m.SeatTree.Insert(MarketPayload{Kind: KindClaimedSeat, Seat: ClaimedSeat{Trader: trader}})
	if err != nil {
		return 0, err
	}
	return idx, nil
}

// Seat returns a pointer to the seat payload at the given slot index.
func (m *Market) Seat(index uint32) *ClaimedSeat {
	return &m.pool.Get(index).Payload.Seat
}

// SeatByTrader finds a trader's seat index, or arena.NilIndex if none.
func (m *Market) SeatByTrader(trader ident.ID) uint32 {
	return m.SeatTree.Find(MarketPayload{Kind: KindClaimedSeat, Seat: ClaimedSeat{Trader: trader}})
}

// IsClaimedSeat reports whether index currently holds a claimed-seat payload
// (as opposed to being free, or holding a resting order).
func (m *Market) IsClaimedSeat(index uint32) bool {
	if index >= m.pool.NumSlots() || m.pool.TagAt(index) != arena.TagPayload {
		return false
	}
	return m.pool.Get(index).Payload.Kind == KindClaimedSeat
}

// BaseQuoteMints returns the (base, quote) mint pair for a given tree-pair
// selector.
func (m *Market) BaseQuoteMints(useATree bool) (base, quote ident.ID) {
	if useATree {
		return m.MintA, m.MintB
	}
	return m.MintB, m.MintA
}

// Order returns a pointer to the resting-order payload at the given slot
// index. Caller must ensure the slot is tagged KindRestingOrder.
func (m *Market) Order(index uint32) *RestingOrder {
	return &m.pool.Get(index).Payload.Order
}

// InsertOrder allocates a slot (expanding first if necessary) and inserts a
// resting order into the correct tree pair/side.
func (m *Market) InsertOrder(order RestingOrder) (uint32, error) {
	if !m.pool.HasFreeSlot() {
		m.Expand()
	}
	bids, asks := m.BooksideFor(order.UseATree)
	tree := asks
	if order.IsBid {
		tree = bids
	}
	idx, err := tree.Insert(MarketPayload{Kind: KindRestingOrder, Order: order})
	if err != nil {
		return 0, err
	}
	return idx, nil
}

// RemoveOrder removes the order at index from its tree (caller supplies
// which side/pair it belongs to) and frees its slot.
func (m *Market) RemoveOrder(index uint32, useATree, isBid bool) error {
	bids, asks := m.BooksideFor(useATree)
	tree := asks
	if isBid {
		tree = bids
	}
	return tree.Remove(index)
}

// SetFeeParameters is an admin-gated parameter update: not a wire
// instruction, exposed as a direct method, gated on the caller matching the
// stored admin identifier.
func (m *Market) SetFeeParameters(caller ident.ID, protocolFeeBps, bufferBps uint16) error {
	if caller != m.Fee.Admin {
		return nixerr.New(nixerr.InvalidAdminKey, "caller %s is not the market admin", caller)
	}
	m.Fee.ProtocolFeeBps = protocolFeeBps
	m.Fee.LTVBufferBps = bufferBps
	return nil
}

// CheckInvariant verifies the shared pool's free-list/occupied partition
// and that the cached best index of every tree equals its true in-order
// maximum.
func (m *Market) CheckInvariant() error {
	if err := m.pool.CheckInvariant(); err != nil {
		return err
	}
	for _, t := range []*rbtree.Tree[MarketPayload]{m.SeatTree, m.BidsA, m.AsksA, m.BidsB, m.AsksB} {
		if t.IsEmpty() {
			if t.Best != rbtree.Nil {
				return nixerr.New(nixerr.InvalidFreeList, "empty tree has non-nil best index")
			}
			continue
		}
		max := t.Root
		for t.Pool.Get(max).Right != rbtree.Nil {
			max = t.Pool.Get(max).Right
		}
		if t.Best != max {
			return nixerr.New(nixerr.InvalidFreeList, "tree cached best index %d is not its maximum %d", t.Best, max)
		}
	}
	return nil
}
