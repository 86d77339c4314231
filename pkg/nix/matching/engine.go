// Package matching implements the taker/maker matching loop, the reverse
// self-repost mechanism, and the cancel path: the hard core of the engine.
package matching

import (
	"context"

	"github.com/nixlabs/nix-engine/pkg/nix/external"
	"github.com/nixlabs/nix-engine/pkg/nix/ident"
	"github.com/nixlabs/nix-engine/pkg/nix/nixerr"
	"github.com/nixlabs/nix-engine/pkg/nix/quantities"
	"github.com/nixlabs/nix-engine/pkg/nix/rbtree"
	"github.com/nixlabs/nix-engine/pkg/nix/state"
)

// Externals bundles every out-of-process collaborator a single PlaceOrder
// call may need. BaseBinding/QuoteBinding are resolved by the caller from
// UseATree before the call (base = A's binding when UseATree, otherwise
// B's).
type Externals struct {
	MoneyMarket     external.MoneyMarket
	Oracle          external.OracleReader
	TokenTransfer   external.TokenTransferer
	AuthorityProver external.AuthorityProver

	BaseBinding, QuoteBinding   external.Binding
	BaseMintInfo, QuoteMintInfo state.MintInfo
	BaseOracles, QuoteOracles   []ident.ID // order-sensitive
}

// PlaceOrderParams is the taker-side input to the matching loop: the
// PlaceOrder wire parameters plus the resolved trader slot.
type PlaceOrderParams struct {
	TraderSlot       uint32
	Trader           ident.ID
	BaseAtoms        uint64
	RateBps          uint16
	ReverseSpreadBps uint16
	IsBid            bool
	UseATree         bool
	LastValidSlot    state.Slot
	OrderType        state.OrderType
}

// PlaceOrderResult accumulates everything one PlaceOrder call produced.
type PlaceOrderResult struct {
	Fills          []state.FillLog
	NewLoans       []state.ActiveLoan
	Cleanups       []state.GlobalCleanupEvent
	Reposted       *state.RestingOrder
	Rested         bool
	RestedIndex    uint32
	TakerSequence  uint64
}

func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

func sideAtomsToShares(bank quantities.Bank, atoms uint64) (quantities.Q80_48, error) {
	return quantities.TokensToAssetShares(atoms, bank)
}

// PlaceOrder runs the full matching algorithm against mkt's shared slot
// pool, the companion loan ledger loans, and (when the taker is eligible
// to walk a global maker) the mint-scoped global book.
func PlaceOrder(ctx context.Context, now state.Slot, mkt *state.Market, loans *state.MarketLoans, global *state.Global, ext Externals, p PlaceOrderParams) (*PlaceOrderResult, error) {
	if !mkt.IsClaimedSeat(p.TraderSlot) {
		return nil, nixerr.New(nixerr.InvalidMarketParameters, "taker has no claimed seat")
	}
	if p.LastValidSlot != state.NoExpiration && p.LastValidSlot < now {
		return nil, nixerr.New(nixerr.AlreadyExpired, "order already expired at post time")
	}
	if p.OrderType == state.Global && p.IsBid {
		return nil, nixerr.New(nixerr.InvalidGlobalBidOrder, "global orders may only be asks")
	}
	if p.OrderType == state.Reverse && !p.IsBid {
		return nil, nixerr.New(nixerr.InvalidAskReverseOrder, "reverse orders may only be bids")
	}

	baseBank, err := ext.MoneyMarket.Bank(ctx, ext.BaseBinding)
	if err != nil {
		return nil, err
	}
	quoteBank, err := ext.MoneyMarket.Bank(ctx, ext.QuoteBinding)
	if err != nil {
		return nil, err
	}
	pBaseUSD, err := ext.Oracle.Price(ctx, ext.BaseBinding, external.BiasLow, external.PriceTimeWeighted)
	if err != nil {
		return nil, err
	}
	pQuoteUSD, err := ext.Oracle.Price(ctx, ext.QuoteBinding, external.BiasLow, external.PriceTimeWeighted)
	if err != nil {
		return nil, err
	}

	bids, asks := mkt.BooksideFor(p.UseATree)
	opposite := asks
	if !p.IsBid {
		opposite = bids
	}

	res := &PlaceOrderResult{}
	remaining := p.BaseAtoms
	var totalBaseTraded, totalQuoteTraded, globalBaseTraded, globalQuoteTraded uint64
	// extBaseTraded/extQuoteTraded feed the external-protocol phase only;
	// a P2P2Pool maker matched against a non-Global taker settles directly
	// against both seats' withdrawable shares and never touches the money
	// market CPI, so its atoms are excluded here even though they count
	// toward totalBaseTraded/repost.
	var extBaseTraded, extQuoteTraded uint64

	takerSeat := mkt.Seat(p.TraderSlot)

	cursor := opposite.Best
	for remaining > 0 && cursor != rbtree.Nil {
		maker := mkt.Order(cursor)
		prevCursor := opposite.Prev(cursor)

		if maker.Expired(now) || maker.CollateralShares.IsZero() {
			if err := evictMaker(mkt, loans, global, now, cursor, *maker, p.UseATree); err != nil {
				return nil, err
			}
			cursor = prevCursor
			continue
		}

		if (p.IsBid && maker.RateBps > p.RateBps) || (!p.IsBid && maker.RateBps < p.RateBps) {
			break
		}
		if p.OrderType == state.PostOnly || p.OrderType == state.Global {
			return nil, nixerr.New(nixerr.PostOnlyCrosses, "order would cross at top of book")
		}

		makerAtoms, err := maker.NumBaseAtoms(baseBank)
		if err != nil {
			return nil, err
		}
		fillBase := min64(remaining, makerAtoms)
		if fillBase == 0 {
			break
		}
		fillQuote, err := quantities.RequiredQuoteCollateral(fillBase, baseBank, quoteBank, pBaseUSD, pQuoteUSD, mkt.Fee.LTVBufferBps)
		if err != nil {
			return nil, err
		}

		makerTrader := mkt.Seat(maker.TraderSlot).Trader

		if maker.IsGlobal() {
			mintInfo := ext.BaseMintInfo
			unbacked, err := global.TryMoveGlobalTokens(makerTrader, fillBase, mintInfo)
			if err != nil {
				return nil, err
			}
			if unbacked {
				res.Cleanups = append(res.Cleanups, state.GlobalCleanupEvent{
					Mint:           global.Mint,
					Maker:          makerTrader,
					DesiredAtoms:   fillBase,
					DepositedAtoms: global.BalanceAtoms(makerTrader),
				})
				if _, err := global.RemoveGlobal(makerTrader); err != nil {
					return nil, err
				}
				if err := mkt.RemoveOrder(cursor, p.UseATree, maker.IsBid); err != nil {
					return nil, err
				}
				cursor = prevCursor
				continue
			}
			globalBaseTraded += fillBase
			globalQuoteTraded += fillQuote
		}

		// Decrement the collateral side always; credit the receive side
		// only if the taker is a bid and not placing a Reverse order
		decrementIsSideA := !p.UseATree // quote side
		receiveIsSideA := p.UseATree    // base side
		var decrementAtoms, decrementBank = fillQuote, quoteBank
		if !p.IsBid {
			decrementAtoms, decrementBank = fillBase, baseBank
			decrementIsSideA = p.UseATree
		}
		decrementShares, err := sideAtomsToShares(decrementBank, decrementAtoms)
		if err != nil {
			return nil, err
		}
		if err := takerSeat.UpdateBalance(decrementIsSideA, false, decrementShares); err != nil {
			return nil, err
		}
		if p.IsBid && p.OrderType != state.Reverse {
			receiveShares, err := sideAtomsToShares(baseBank, fillBase)
			if err != nil {
				return nil, err
			}
			if err := takerSeat.UpdateBalance(receiveIsSideA, true, receiveShares); err != nil {
				return nil, err
			}
		}

		mkt.RecordVolume(fillBase, p.UseATree)
		takerSeat.RecordVolume(fillBase, p.UseATree)
		makerSeat := mkt.Seat(maker.TraderSlot)
		makerSeat.RecordVolume(fillBase, p.UseATree)

		baseMint, quoteMint := mkt.BaseQuoteMints(p.UseATree)
		fillLog := state.FillLog{
			Market:     mkt.Address,
			Maker:      makerTrader,
			Taker:      p.Trader,
			BaseMint:   baseMint,
			QuoteMint:  quoteMint,
			RateBps:    maker.RateBps,
			BaseAtoms:  fillBase,
			QuoteAtoms: fillQuote,
			MakerSeq:   maker.SequenceNumber,
			TakerIsBuy: p.IsBid,
			// Preserved verbatim (see DESIGN.md open question 1): this mirrors
			// the TAKER's order type, not the maker's.
			IsMakerGlobal: p.OrderType == state.Global,
		}
		res.Fills = append(res.Fills, fillLog)

		totalBaseTraded += fillBase
		totalQuoteTraded += fillQuote
		if !(maker.OrderType == state.P2P2Pool && p.OrderType != state.Global) {
			extBaseTraded += fillBase
			extQuoteTraded += fillQuote
		}

		if fillBase == makerAtoms {
			lenderSlot, borrowerSlot := maker.TraderSlot, p.TraderSlot
			if !p.IsBid {
				lenderSlot, borrowerSlot = p.TraderSlot, maker.TraderSlot
			}
			loan := state.NewEmptyActiveLoan()
			loan.LenderSlot = lenderSlot
			loan.BorrowerSlot = borrowerSlot
			loan.IsSideABorrowed = p.UseATree
			loan.CollateralShares, _ = sideAtomsToShares(quoteBank, fillQuote)
			loan.LiabilityShares, _ = quantities.TokensToLiabilityShares(fillBase, baseBank)
			loan.MatchedRateBps = maker.RateBps
			loan.CreatedSlot = now
			loan.IsMakerGlobal = p.OrderType == state.Global
			if !loans.HasFreeSlot() {
				loans.Expand()
			}
			if _, err := loans.AddLoan(loan); err != nil {
				return nil, err
			}
			res.NewLoans = append(res.NewLoans, loan)

			if err := mkt.RemoveOrder(cursor, p.UseATree, maker.IsBid); err != nil {
				return nil, err
			}
			cursor = prevCursor
			remaining -= fillBase
		} else {
			if p.IsBid {
				if err := maker.ReduceBid(baseBank, quoteBank, fillQuote, fillBase); err != nil {
					return nil, err
				}
			} else {
				if err := maker.ReduceAsk(baseBank, fillBase); err != nil {
					return nil, err
				}
			}
			remaining = 0
			break
		}
	}

	res.TakerSequence = mkt.BumpSequence(p.UseATree)
	for i := range res.Fills {
		res.Fills[i].TakerSeq = res.TakerSequence
	}

	if err := settleExternalPhase(ctx, ext, p, extBaseTraded, extQuoteTraded); err != nil {
		return nil, err
	}

	if p.IsBid && p.OrderType == state.Reverse {
		if totalBaseTraded > 0 {
			if err := repost(mkt, p, totalBaseTraded, globalBaseTraded, remaining, baseBank, res); err != nil {
				return nil, err
			}
		}
		return res, nil
	}

	if p.OrderType == state.ImmediateOrCancel || remaining == 0 || p.RateBps == 0 {
		return res, nil
	}

	restOrder, err := restRemaining(mkt, global, p, remaining, baseBank, quoteBank, pBaseUSD, pQuoteUSD)
	if err != nil {
		return nil, err
	}
	if restOrder != nil {
		idx, err := mkt.InsertOrder(*restOrder)
		if err != nil {
			return nil, err
		}
		res.Rested = true
		res.RestedIndex = idx
	}

	return res, nil
}
