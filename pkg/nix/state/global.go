package state

import (
	"github.com/nixlabs/nix-engine/pkg/nix/ident"
	"github.com/nixlabs/nix-engine/pkg/nix/nixerr"
)

// MaxGlobalSeats bounds the number of depositor seats a Global account will
// carry. Tests override this down to a small value to exercise the
// TooManyGlobalSeats capacity rejection without thousands of seats; the override is a
// package-level variable rather than a build tag, flipped only by this
// module's own tests.
var MaxGlobalSeats uint32 = 3000

// GasDepositLamports is the per-order gas prepayment transferred into the
// global account at post time and refunded exactly once on removal.
const GasDepositLamports = 5000

// GlobalSeat is one depositor's balance and gas-escrow bookkeeping within a
// mint-scoped Global account.
type GlobalSeat struct {
	Depositor    ident.ID
	BalanceAtoms uint64
	GasEscrowed  uint64 // lamports currently held against this depositor's orders
}

// MintInfo describes extension flags for a mint that the global liquidity
// book must consult before treating it as reliably transferable.
type MintInfo struct {
	HasTransferFee  bool
	HasTransferHook bool
}

// Global is the cross-market, mint-scoped liquidity pool backing global ask
// orders.
type Global struct {
	Mint  ident.ID
	Vault ident.ID
	seats map[ident.ID]*GlobalSeat
	order []ident.ID // insertion order, for deterministic eviction choice
}

// NewGlobal constructs an empty global account for the given mint.
func NewGlobal(mint, vault ident.ID) *Global {
	return &Global{Mint: mint, Vault: vault, seats: make(map[ident.ID]*GlobalSeat)}
}

// NumSeats reports how many depositors currently hold a seat.
func (g *Global) NumSeats() int { return len(g.seats) }

// AddTrader registers a depositor seat, enforcing MaxGlobalSeats.
func (g *Global) AddTrader(depositor ident.ID) error {
	if _, ok := g.seats[depositor]; ok {
		return nil
	}
	if uint32(len(g.seats)) >= MaxGlobalSeats {
		return nixerr.New(nixerr.TooManyGlobalSeats, "global account for mint %s is at capacity (%d)", g.Mint, MaxGlobalSeats)
	}
	g.seats[depositor] = &GlobalSeat{Depositor: depositor}
	g.order = append(g.order, depositor)
	return nil
}

// Deposit increases a depositor's balance.
func (g *Global) Deposit(depositor ident.ID, amount uint64) error {
	seat, ok := g.seats[depositor]
	if !ok {
		return nixerr.New(nixerr.MissingGlobal, "no global seat for depositor %s", depositor)
	}
	seat.BalanceAtoms += amount
	return nil
}

// AddOrder adds one GasDepositLamports to the maker's gas escrow for a new
// global order. It does not record the order's collateral demand.
func (g *Global) AddOrder(maker ident.ID, gasPayer ident.ID) error {
	seat, ok := g.seats[maker]
	if !ok {
		return nixerr.New(nixerr.MissingGlobal, "no global seat for maker %s", maker)
	}
	seat.GasEscrowed += GasDepositLamports
	return nil
}

// Reduce subtracts desiredAtoms from the maker's balance. Fails with
// GlobalInsufficient if the balance cannot cover it.
func (g *Global) Reduce(maker ident.ID, desiredAtoms uint64) error {
	seat, ok := g.seats[maker]
	if !ok {
		return nixerr.New(nixerr.MissingGlobal, "no global seat for maker %s", maker)
	}
	if seat.BalanceAtoms < desiredAtoms {
		return nixerr.New(nixerr.GlobalInsufficient, "maker %s has %d atoms, needs %d", maker, seat.BalanceAtoms, desiredAtoms)
	}
	seat.BalanceAtoms -= desiredAtoms
	return nil
}

// BalanceAtoms is a read-only view of a maker's current balance.
func (g *Global) BalanceAtoms(maker ident.ID) uint64 {
	if seat, ok := g.seats[maker]; ok {
		return seat.BalanceAtoms
	}
	return 0
}

// RemoveGlobal decrements the maker's escrow by exactly one
// GasDepositLamports and returns that amount as the refund owed.
func (g *Global) RemoveGlobal(maker ident.ID) (refundLamports uint64, err error) {
	seat, ok := g.seats[maker]
	if !ok {
		return 0, nixerr.New(nixerr.MissingGlobal, "no global seat for maker %s", maker)
	}
	if seat.GasEscrowed < GasDepositLamports {
		return 0, nixerr.New(nixerr.InvalidClean, "maker %s gas escrow underflow", maker)
	}
	seat.GasEscrowed -= GasDepositLamports
	return GasDepositLamports, nil
}

// EvictOldestSeat removes the longest-standing depositor seat to make room
// under MaxGlobalSeats, mirroring the eviction protocol a maker order walk
// uses elsewhere. Returns the evicted depositor and its remaining balance
// so the caller can refund it.
func (g *Global) EvictOldestSeat() (ident.ID, uint64, error) {
	if len(g.order) == 0 {
		return ident.ID{}, 0, nixerr.New(nixerr.InvalidEvict, "no seats to evict")
	}
	victim := g.order[0]
	g.order = g.order[1:]
	seat := g.seats[victim]
	delete(g.seats, victim)
	return victim, seat.BalanceAtoms, nil
}

// TryMoveGlobalTokens implements JIT liquidity movement: if the maker's
// deposited balance is insufficient, or the mint carries a transfer fee or
// transfer hook (either of which could skew accounting), the move is
// refused and the caller must treat the maker as unbacked. Otherwise the
// desired amount is debited from the maker.
func (g *Global) TryMoveGlobalTokens(maker ident.ID, desiredAtoms uint64, mint MintInfo) (unbacked bool, err error) {
	seat, ok := g.seats[maker]
	if !ok {
		return true, nil
	}
	if seat.BalanceAtoms < desiredAtoms {
		return true, nil
	}
	if mint.HasTransferFee || mint.HasTransferHook {
		return true, nil
	}
	seat.BalanceAtoms -= desiredAtoms
	return false, nil
}
