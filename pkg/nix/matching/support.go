package matching

import (
	"context"

	"github.com/nixlabs/nix-engine/pkg/nix/quantities"
	"github.com/nixlabs/nix-engine/pkg/nix/state"
)

// evictMaker handles a maker found expired or with zero collateral at the
// front of the opposite tree, the eviction branch that runs before the
// rate-limit break check. Bids become a direct active loan
// against the underlying protocol at rate 0; asks have their remaining
// collateral refunded to the maker's own seat. Global makers are always
// removed from the global book regardless of side.
func evictMaker(mkt *state.Market, loans *state.MarketLoans, global *state.Global, now state.Slot, idx uint32, maker state.RestingOrder, useATree bool) error {
	makerSeat := mkt.Seat(maker.TraderSlot)

	if maker.IsBid {
		loan := state.NewEmptyActiveLoan()
		loan.BorrowerSlot = maker.TraderSlot
		loan.IsSideABorrowed = useATree
		loan.CollateralShares = maker.CollateralShares
		loan.LiabilityShares = maker.LiabilityShares
		loan.MatchedRateBps = 0
		loan.CreatedSlot = now
		if !loans.HasFreeSlot() {
			loans.Expand()
		}
		if _, err := loans.AddLoan(loan); err != nil {
			return err
		}
	} else {
		if err := makerSeat.UpdateBalance(useATree, true, maker.CollateralShares); err != nil {
			return err
		}
	}

	if maker.IsGlobal() {
		if _, err := global.RemoveGlobal(makerSeat.Trader); err != nil {
			return err
		}
	}

	return mkt.RemoveOrder(idx, useATree, maker.IsBid)
}

// reverseRepostRate computes floor(rateBps * (10000 - spreadBps) / 10000),
// the discounted rate a filled Reverse bid re-lends at. A spread at or past
// 10000bps discounts the rate to zero rather than underflowing.
func reverseRepostRate(rateBps, spreadBps uint16) uint16 {
	if spreadBps >= 10000 {
		return 0
	}
	rate := uint64(rateBps) * uint64(10000-spreadBps) / 10000
	if rate > 0xFFFF {
		rate = 0xFFFF
	}
	return uint16(rate)
}

// repost implements the Reverse order's self-repost: a filled Reverse bid
// immediately re-lends what it just borrowed by resting a new Limit ask on
// the opposite tree pair, at the matched rate discounted by its configured
// spread, rather than crediting the base proceeds to the taker's seat. The
// reposted size covers everything the bid took delivery of: base matched
// against local makers, base matched against the global book, and whatever
// base was left unfilled.
func repost(mkt *state.Market, p PlaceOrderParams, totalBaseTraded, globalBaseTraded, remaining uint64, baseBank quantities.Bank, res *PlaceOrderResult) error {
	reverseRate := reverseRepostRate(p.RateBps, p.ReverseSpreadBps)

	repostAtoms := totalBaseTraded + globalBaseTraded + remaining
	collateralShares, err := quantities.TokensToAssetShares(repostAtoms, baseBank)
	if err != nil {
		return err
	}

	oppositeUseATree := !p.UseATree
	seq := mkt.BumpSequence(oppositeUseATree)
	order, err := state.NewRestingOrder(reverseRate, seq, collateralShares, quantities.Zero(),
		p.TraderSlot, state.NoExpiration, state.Limit, false, oppositeUseATree, 0)
	if err != nil {
		return err
	}

	idx, err := mkt.InsertOrder(order)
	if err != nil {
		return err
	}
	res.Reposted = &order
	res.Rested = true
	res.RestedIndex = idx
	return nil
}

// restRemaining builds the resting-order record for whatever base amount a
// taker order did not immediately fill. Global asks register their pending
// demand with the mint-scoped global book instead of holding local
// collateral.
func restRemaining(mkt *state.Market, global *state.Global, p PlaceOrderParams, remaining uint64, baseBank, quoteBank quantities.Bank, pBaseUSD, pQuoteUSD quantities.Q80_48) (*state.RestingOrder, error) {
	if remaining == 0 || !p.OrderType.CanRest() {
		return nil, nil
	}

	seat := mkt.Seat(p.TraderSlot)
	// The taker's sequence number was already committed by BumpSequence in
	// PlaceOrder; the resting remainder carries that same number.
	seq := mkt.SeqB
	if p.UseATree {
		seq = mkt.SeqA
	}

	if p.IsBid {
		quoteAtoms, err := quantities.RequiredQuoteCollateral(remaining, baseBank, quoteBank, pBaseUSD, pQuoteUSD, mkt.Fee.LTVBufferBps)
		if err != nil {
			return nil, err
		}
		collateralShares, err := quantities.TokensToAssetShares(quoteAtoms, quoteBank)
		if err != nil {
			return nil, err
		}
		liabilityShares, err := quantities.TokensToLiabilityShares(remaining, baseBank)
		if err != nil {
			return nil, err
		}
		if err := seat.UpdateBalance(!p.UseATree, false, collateralShares); err != nil {
			return nil, err
		}
		order, err := state.NewRestingOrder(p.RateBps, seq, collateralShares, liabilityShares,
			p.TraderSlot, p.LastValidSlot, p.OrderType, true, p.UseATree, p.ReverseSpreadBps)
		if err != nil {
			return nil, err
		}
		return &order, nil
	}

	collateralShares, err := quantities.TokensToAssetShares(remaining, baseBank)
	if err != nil {
		return nil, err
	}
	if p.OrderType == state.Global {
		if err := global.AddOrder(seat.Trader, p.Trader); err != nil {
			return nil, err
		}
	} else {
		if err := seat.UpdateBalance(p.UseATree, false, collateralShares); err != nil {
			return nil, err
		}
	}
	order, err := state.NewRestingOrder(p.RateBps, seq, collateralShares, quantities.Zero(),
		p.TraderSlot, p.LastValidSlot, p.OrderType, false, p.UseATree, p.ReverseSpreadBps)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// settleExternalPhase settles the external-protocol leg of a fill: a bid
// taker borrows the base it received and posts the quote it paid as
// collateral backing that borrow; an ask taker supplies the base it lent
// and withdraws the quote proceeds it is owed.
func settleExternalPhase(ctx context.Context, ext Externals, p PlaceOrderParams, totalBaseTraded, totalQuoteTraded uint64) error {
	if totalBaseTraded == 0 {
		return nil
	}
	if p.IsBid {
		if err := ext.MoneyMarket.Borrow(ctx, ext.BaseBinding, totalBaseTraded, nil, ext.BaseOracles...); err != nil {
			return err
		}
		return ext.MoneyMarket.Deposit(ctx, ext.QuoteBinding, totalQuoteTraded, nil, ext.QuoteOracles...)
	}
	if err := ext.MoneyMarket.Deposit(ctx, ext.BaseBinding, totalBaseTraded, nil, ext.BaseOracles...); err != nil {
		return err
	}
	return ext.MoneyMarket.Withdraw(ctx, ext.QuoteBinding, totalQuoteTraded, nil, ext.QuoteOracles...)
}
