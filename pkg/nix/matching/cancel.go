package matching

import (
	"github.com/nixlabs/nix-engine/pkg/nix/ident"
	"github.com/nixlabs/nix-engine/pkg/nix/nixerr"
	"github.com/nixlabs/nix-engine/pkg/nix/quantities"
	"github.com/nixlabs/nix-engine/pkg/nix/rbtree"
	"github.com/nixlabs/nix-engine/pkg/nix/state"
)

// match is one linear-scan hit: which tree pair/side the order lives in and
// its slot index.
type match struct {
	index    uint32
	useATree bool
	isBid    bool
}

func scanForSequence(mkt *state.Market, traderSlot uint32, sequenceNumber uint64) []match {
	var hits []match
	for _, tp := range []struct {
		tree     *rbtree.Tree[state.MarketPayload]
		useATree bool
		isBid    bool
	}{
		{mkt.BidsA, true, true},
		{mkt.AsksA, true, false},
		{mkt.BidsB, false, true},
		{mkt.AsksB, false, false},
	} {
		tree := tp.tree
		tree.Walk(func(idx uint32) bool {
			order := mkt.Order(idx)
			if order.TraderSlot == traderSlot && order.SequenceNumber == sequenceNumber {
				hits = append(hits, match{index: idx, useATree: tp.useATree, isBid: tp.isBid})
			}
			return true
		})
	}
	return hits
}

// CancelOrder cancels a trader's resting order: a linear scan by sequence
// number and trader identity, failing with InvalidCancel if zero or more
// than one resting order matches. hintIndex, when non-nil, is checked
// directly first and must match or the call fails with
// WrongIndexHintParams rather than silently falling back to the scan.
func CancelOrder(mkt *state.Market, loans *state.MarketLoans, global *state.Global, now state.Slot, trader ident.ID, sequenceNumber uint64, hintIndex *uint32) error {
	traderSlot := mkt.SeatByTrader(trader)
	if traderSlot == rbtree.Nil {
		return nixerr.New(nixerr.InvalidMarketParameters, "trader %s has no claimed seat", trader)
	}

	if hintIndex != nil {
		order := mkt.Order(*hintIndex)
		if order.TraderSlot != traderSlot || order.SequenceNumber != sequenceNumber {
			return nixerr.New(nixerr.WrongIndexHintParams, "hinted index %d does not match trader %s sequence %d", *hintIndex, trader, sequenceNumber)
		}
		return cancelOrderByIndex(mkt, loans, global, now, *hintIndex)
	}

	hits := scanForSequence(mkt, traderSlot, sequenceNumber)
	if len(hits) == 0 {
		return nixerr.New(nixerr.InvalidCancel, "no resting order for trader %s at sequence %d", trader, sequenceNumber)
	}
	if len(hits) > 1 {
		return nixerr.New(nixerr.InvalidCancel, "multiple resting orders for trader %s at sequence %d", trader, sequenceNumber)
	}
	return cancelOrderByIndex(mkt, loans, global, now, hits[0].index)
}

// cancelOrderByIndex is the shared settlement logic once the slot to cancel
// is known: a global ask refunds its escrowed gas; a non-global bid
// converts its outstanding liability into a direct active loan against the
// underlying protocol (lender slot zero, rate zero, mirroring the matching
// loop's expired-bid eviction); a non-global ask simply credits its
// remaining collateral back to the trader's own seat.
func cancelOrderByIndex(mkt *state.Market, loans *state.MarketLoans, global *state.Global, now state.Slot, index uint32) error {
	order := *mkt.Order(index)
	useATree := order.UseATree

	if order.IsGlobal() {
		makerTrader := mkt.Seat(order.TraderSlot).Trader
		if _, err := global.RemoveGlobal(makerTrader); err != nil {
			return err
		}
	} else if order.IsBid {
		loan := state.NewEmptyActiveLoan()
		loan.BorrowerSlot = order.TraderSlot
		loan.IsSideABorrowed = useATree
		loan.CollateralShares = order.CollateralShares
		loan.LiabilityShares = order.LiabilityShares
		loan.MatchedRateBps = 0
		loan.CreatedSlot = now
		if !loans.HasFreeSlot() {
			loans.Expand()
		}
		if _, err := loans.AddLoan(loan); err != nil {
			return err
		}
	} else {
		seat := mkt.Seat(order.TraderSlot)
		if err := seat.UpdateBalance(useATree, true, order.CollateralShares); err != nil {
			return err
		}
	}

	return mkt.RemoveOrder(index, useATree, order.IsBid)
}

// EvictExpired sweeps all four booksides of mkt and evicts every resting
// order whose last-valid slot has passed, applying the same refund/loan
// settlement the matching loop applies inline. A standalone entry point
// for keeper-style cleanup rather than waiting for the next taker to walk
// past an expired maker.
func EvictExpired(mkt *state.Market, loans *state.MarketLoans, global *state.Global, now state.Slot) (int, error) {
	evicted := 0
	for _, useATree := range []bool{true, false} {
		bids, asks := mkt.BooksideFor(useATree)
		for _, tree := range []*rbtree.Tree[state.MarketPayload]{bids, asks} {
			for {
				var target uint32 = rbtree.Nil
				tree.Walk(func(idx uint32) bool {
					if mkt.Order(idx).Expired(now) {
						target = idx
						return false
					}
					return true
				})
				if target == rbtree.Nil {
					break
				}
				maker := *mkt.Order(target)
				if err := evictMaker(mkt, loans, global, now, target, maker, useATree); err != nil {
					return evicted, err
				}
				evicted++
			}
		}
	}
	return evicted, nil
}

// CleanUnbacked sweeps the ask side of one tree pair for global makers whose
// deposited global balance no longer covers what their resting order
// claims, evicting each one found unbacked. Unlike the matching loop's
// inline check this does not require a taker to be present.
func CleanUnbacked(mkt *state.Market, global *state.Global, useATree bool, mint state.MintInfo, baseBank quantities.Bank) (int, error) {
	_, asks := mkt.BooksideFor(useATree)
	cleaned := 0
	for {
		var target uint32 = rbtree.Nil
		var targetOrder state.RestingOrder
		asks.Walk(func(idx uint32) bool {
			order := *mkt.Order(idx)
			if !order.IsGlobal() {
				return true
			}
			makerTrader := mkt.Seat(order.TraderSlot).Trader
			needed, err := order.NumBaseAtoms(baseBank)
			if err != nil {
				return true
			}
			if global.BalanceAtoms(makerTrader) < needed || mint.HasTransferFee || mint.HasTransferHook {
				target = idx
				targetOrder = order
				return false
			}
			return true
		})
		if target == rbtree.Nil {
			break
		}
		makerTrader := mkt.Seat(targetOrder.TraderSlot).Trader
		if _, err := global.RemoveGlobal(makerTrader); err != nil {
			return cleaned, err
		}
		if err := mkt.RemoveOrder(target, useATree, false); err != nil {
			return cleaned, err
		}
		cleaned++
	}
	return cleaned, nil
}
