package state

import (
	"github.com/nixlabs/nix-engine/pkg/nix/arena"
	"github.com/nixlabs/nix-engine/pkg/nix/ident"
	"github.com/nixlabs/nix-engine/pkg/nix/rbtree"
)

// MarketSnapshot is the byte-exact serialization unit for a Market: the
// shared slot pool's raw slots plus every tree's cached root/best index.
// A semantic replay of ClaimSeat/InsertOrder calls cannot reproduce the
// original slot indices once any removal has happened (the free list is
// history-dependent), so persistence round-trips through this structural
// form instead.
type MarketSnapshot struct {
	Address   ident.ID
	MintA     ident.ID
	MintB     ident.ID
	DecimalsA uint8
	DecimalsB uint8
	BankA     ident.ID
	BankB     ident.ID
	Fee       MarketFee

	SeqA uint64
	SeqB uint64

	VolumeA uint64
	VolumeB uint64

	Slots        []arena.Slot[rbtree.Node[MarketPayload]]
	FreeListHead uint32

	SeatRoot, SeatBest uint32
	BidsARoot, BidsABest uint32
	AsksARoot, AsksABest uint32
	BidsBRoot, BidsBBest uint32
	AsksBRoot, AsksBBest uint32
}

// Snapshot captures m's complete state, suitable for JSON persistence.
func (m *Market) Snapshot() MarketSnapshot {
	return MarketSnapshot{
		Address:      m.Address,
		MintA:        m.MintA,
		MintB:        m.MintB,
		DecimalsA:    m.DecimalsA,
		DecimalsB:    m.DecimalsB,
		BankA:        m.BankA,
		BankB:        m.BankB,
		Fee:          m.Fee,
		SeqA:         m.SeqA,
		SeqB:         m.SeqB,
		VolumeA:      m.VolumeA,
		VolumeB:      m.VolumeB,
		Slots:        m.pool.Slots(),
		FreeListHead: m.pool.FreeListHead(),
		SeatRoot:     m.SeatTree.Root,
		SeatBest:     m.SeatTree.Best,
		BidsARoot:    m.BidsA.Root,
		BidsABest:    m.BidsA.Best,
		AsksARoot:    m.AsksA.Root,
		AsksABest:    m.AsksA.Best,
		BidsBRoot:    m.BidsB.Root,
		BidsBBest:    m.BidsB.Best,
		AsksBRoot:    m.AsksB.Root,
		AsksBBest:    m.AsksB.Best,
	}
}

// RestoreMarket rebuilds a Market from a snapshot taken by Market.Snapshot,
// reusing the exact slot indices every RestingOrder.TraderSlot and tree node
// pointer depended on.
func RestoreMarket(s MarketSnapshot) *Market {
	pool := arena.Restore(s.Slots, s.FreeListHead)
	m := &Market{
		Address:   s.Address,
		MintA:     s.MintA,
		MintB:     s.MintB,
		DecimalsA: s.DecimalsA,
		DecimalsB: s.DecimalsB,
		BankA:     s.BankA,
		BankB:     s.BankB,
		Fee:       s.Fee,
		SeqA:      s.SeqA,
		SeqB:      s.SeqB,
		VolumeA:   s.VolumeA,
		VolumeB:   s.VolumeB,
		pool:      pool,
	}
	m.SeatTree = rbtree.Restore(pool, compareSeatPayload, s.SeatRoot, s.SeatBest)
	m.BidsA = rbtree.Restore(pool, compareRestingOrderPayload(true), s.BidsARoot, s.BidsABest)
	m.AsksA = rbtree.Restore(pool, compareRestingOrderPayload(false), s.AsksARoot, s.AsksABest)
	m.BidsB = rbtree.Restore(pool, compareRestingOrderPayload(true), s.BidsBRoot, s.BidsBBest)
	m.AsksB = rbtree.Restore(pool, compareRestingOrderPayload(false), s.AsksBRoot, s.AsksBBest)
	return m
}

// MarketLoansSnapshot is MarketLoans' serialization unit, structural for the
// same reason MarketSnapshot is.
type MarketLoansSnapshot struct {
	Market         ident.ID
	SequenceNumber uint64
	NumActiveLoans uint32

	Slots        []arena.Slot[rbtree.Node[ActiveLoan]]
	FreeListHead uint32

	TreeRoot, TreeBest uint32
}

// Snapshot captures m's complete state.
func (m *MarketLoans) Snapshot() MarketLoansSnapshot {
	return MarketLoansSnapshot{
		Market:         m.Market,
		SequenceNumber: m.SequenceNumber,
		NumActiveLoans: m.NumActiveLoans,
		Slots:          m.pool.Slots(),
		FreeListHead:   m.pool.FreeListHead(),
		TreeRoot:       m.tree.Root,
		TreeBest:       m.tree.Best,
	}
}

// RestoreMarketLoans rebuilds a MarketLoans ledger from a snapshot taken by
// MarketLoans.Snapshot.
func RestoreMarketLoans(s MarketLoansSnapshot) *MarketLoans {
	pool := arena.Restore(s.Slots, s.FreeListHead)
	return &MarketLoans{
		Market:         s.Market,
		SequenceNumber: s.SequenceNumber,
		NumActiveLoans: s.NumActiveLoans,
		pool:           pool,
		tree:           rbtree.Restore(pool, CompareLoanBySequence, s.TreeRoot, s.TreeBest),
	}
}

// GlobalSnapshot is Global's serialization unit. Global has no arena-backed
// tree, just a map plus an eviction-order slice, both of which round-trip
// through JSON without the index-preservation concern Market/MarketLoans
// have.
type GlobalSnapshot struct {
	Mint  ident.ID
	Vault ident.ID
	Seats []GlobalSeat
	Order []ident.ID
}

// Snapshot captures g's complete state.
func (g *Global) Snapshot() GlobalSnapshot {
	seats := make([]GlobalSeat, 0, len(g.seats))
	for _, id := range g.order {
		seats = append(seats, *g.seats[id])
	}
	order := make([]ident.ID, len(g.order))
	copy(order, g.order)
	return GlobalSnapshot{Mint: g.Mint, Vault: g.Vault, Seats: seats, Order: order}
}

// RestoreGlobal rebuilds a Global account from a snapshot taken by
// Global.Snapshot.
func RestoreGlobal(s GlobalSnapshot) *Global {
	g := &Global{Mint: s.Mint, Vault: s.Vault, seats: make(map[ident.ID]*GlobalSeat, len(s.Seats))}
	for i := range s.Seats {
		seat := s.Seats[i]
		g.seats[seat.Depositor] = &seat
	}
	g.order = make([]ident.ID, len(s.Order))
	copy(g.order, s.Order)
	return g
}
