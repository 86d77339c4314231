package state

import (
	"github.com/nixlabs/nix-engine/pkg/nix/arena"
	"github.com/nixlabs/nix-engine/pkg/nix/ident"
	"github.com/nixlabs/nix-engine/pkg/nix/nixerr"
	"github.com/nixlabs/nix-engine/pkg/nix/quantities"
	"github.com/nixlabs/nix-engine/pkg/nix/rbtree"
)

// MaxActiveLoans bounds the active-loan ledger's capacity.
const MaxActiveLoans = 5000

// LoanStatus tracks an active loan's lifecycle stage.
type LoanStatus uint8

const (
	LoanActive LoanStatus = iota
	LoanRepaid
	LoanLiquidated
)

// ActiveLoan is the record emitted on every fill: the lender slot backs
// the borrower slot's debt at MatchedRateBps.
type ActiveLoan struct {
	SequenceNumber   uint64
	LenderSlot       uint32
	BorrowerSlot     uint32
	IsSideABorrowed  bool
	Status           LoanStatus
	CollateralShares quantities.Q80_48
	LiabilityShares  quantities.Q80_48
	MatchedRateBps   uint16
	CreatedUnixTime  int64
	CreatedSlot      Slot
	// IsMakerGlobal preserves a suspected defect in the originating program
	// verbatim: it is set from the taker's order type being Global, not the
	// maker's, even though the field name suggests the opposite. Left as-is
	// for reviewers rather than "corrected."
	IsMakerGlobal bool
}

// NewEmptyActiveLoan returns a zero-value ActiveLoan with LoanActive status.
func NewEmptyActiveLoan() ActiveLoan {
	return ActiveLoan{Status: LoanActive, CollateralShares: quantities.Zero(), LiabilityShares: quantities.Zero()}
}

// CompareLoanBySequence orders active loans by sequence number, the
// comparator for the loan ledger's tree.
func CompareLoanBySequence(a, b ActiveLoan) int {
	switch {
	case a.SequenceNumber < b.SequenceNumber:
		return -1
	case a.SequenceNumber > b.SequenceNumber:
		return 1
	default:
		return 0
	}
}

// MarketLoans is the market's companion account: its own fixed header plus
// a slot pool of active-loan tree nodes.
type MarketLoans struct {
	Market          ident.ID
	SequenceNumber  uint64
	NumActiveLoans  uint32
	pool            *arena.Arena[rbtree.Node[ActiveLoan]]
	tree            *rbtree.Tree[ActiveLoan]
}

// NewMarketLoans constructs an empty, zero-initialized ledger bound to the
// given market identifier.
func NewMarketLoans(market ident.ID) *MarketLoans {
	pool := arena.New[rbtree.Node[ActiveLoan]]()
	return &MarketLoans{
		Market: market,
		pool:   pool,
		tree:   rbtree.New(pool, CompareLoanBySequence),
	}
}

// HasFreeSlot reports whether a new loan can be inserted without expanding.
func (m *MarketLoans) HasFreeSlot() bool { return m.pool.HasFreeSlot() }

// Expand grows the ledger's slot pool by one slot.
func (m *MarketLoans) Expand() uint32 { return m.pool.Expand() }

// AddLoan inserts one active loan record, assigning its sequence number from
// the ledger's header and bumping NumActiveLoans, enforcing MaxActiveLoans.
func (m *MarketLoans) AddLoan(loan ActiveLoan) (uint32, error) {
	if m.NumActiveLoans >= MaxActiveLoans {
		return 0, nixerr.New(nixerr.MaxActiveLoansExceeded, "active loan ledger for market %s is at capacity", m.Market)
	}
	m.SequenceNumber++
	loan.SequenceNumber = m.SequenceNumber
	idx, err := m.tree.Insert(loan)
	if err != nil {
		return 0, err
	}
	m.NumActiveLoans++
	return idx, nil
}

// AddLoans inserts a batch of loans in order, stopping at the first error.
func (m *MarketLoans) AddLoans(loans []ActiveLoan) error {
	for _, l := range loans {
		if _, err := m.AddLoan(l); err != nil {
			return err
		}
	}
	return nil
}

// RemoveLoan looks a loan up by sequence number, removes it from the tree,
// frees its slot, and decrements NumActiveLoans (wrapping on underflow).
func (m *MarketLoans) RemoveLoan(sequenceNumber uint64) error {
	idx := m.tree.Find(ActiveLoan{SequenceNumber: sequenceNumber})
	if idx == rbtree.Nil {
		return nixerr.New(nixerr.InvalidActiveLoan, "no active loan with sequence %d", sequenceNumber)
	}
	if err := m.tree.Remove(idx); err != nil {
		return err
	}
	m.NumActiveLoans--
	return nil
}

// Tree exposes the underlying tree for read-only traversal (tests, keepers).
func (m *MarketLoans) Tree() *rbtree.Tree[ActiveLoan] { return m.tree }

// CheckInvariant verifies the backing pool's free-list/occupied partition.
func (m *MarketLoans) CheckInvariant() error { return m.pool.CheckInvariant() }
