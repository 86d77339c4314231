package state

import (
	"github.com/nixlabs/nix-engine/pkg/nix/ident"
	"github.com/nixlabs/nix-engine/pkg/nix/nixerr"
	"github.com/nixlabs/nix-engine/pkg/nix/quantities"
)

// Slot is a slot number, as used by LastValidSlot. NoExpiration (0) is the
// no-expiry sentinel (NO_EXPIRATION_LAST_VALID_SLOT = 0).
type Slot uint32

const NoExpiration Slot = 0

// RestingOrder is a maker's resting offer. It lives inside a market's
// shared slot pool, referenced only by tree-node index.
type RestingOrder struct {
	RateBps         uint16
	SequenceNumber  uint64
	CollateralShares quantities.Q80_48
	LiabilityShares  quantities.Q80_48
	TraderSlot       uint32 // index into the market's seat tree pool
	LastValidSlot    Slot   // 0 = no expiry
	OrderType        OrderType
	IsBid            bool
	UseATree         bool
	ReverseSpreadBps uint16
}

// NewRestingOrder constructs a RestingOrder, enforcing that a Reverse order
// never carries an expiry.
func NewRestingOrder(rateBps uint16, seq uint64, collateral, liability quantities.Q80_48,
	traderSlot uint32, lastValidSlot Slot, orderType OrderType, isBid, useATree bool, reverseSpreadBps uint16) (RestingOrder, error) {
	if orderType == Reverse && lastValidSlot != NoExpiration {
		return RestingOrder{}, nixerr.New(nixerr.InvalidMarketParameters, "reverse orders cannot carry an expiry")
	}
	return RestingOrder{
		RateBps:          rateBps,
		SequenceNumber:   seq,
		CollateralShares: collateral,
		LiabilityShares:  liability,
		TraderSlot:       traderSlot,
		LastValidSlot:    lastValidSlot,
		OrderType:        orderType,
		IsBid:            isBid,
		UseATree:         useATree,
		ReverseSpreadBps: reverseSpreadBps,
	}, nil
}

// IsGlobal reports whether this order draws liquidity from the global book.
func (r RestingOrder) IsGlobal() bool { return r.OrderType == Global }

// IsReverse reports whether a fill of this order should trigger a
// self-repost on the opposite tree pair.
func (r RestingOrder) IsReverse() bool { return r.OrderType == Reverse }

// Expired reports whether the order's last-valid slot has passed. An order
// with LastValidSlot == NoExpiration never expires.
func (r RestingOrder) Expired(now Slot) bool {
	return r.LastValidSlot != NoExpiration && r.LastValidSlot < now
}

// NumBaseAtoms returns, for a bid, the token amount required to repay
// LiabilityShares (rounded up); for an ask, the token amount equivalent to
// CollateralShares (rounded down).
func (r RestingOrder) NumBaseAtoms(baseBank quantities.Bank) (uint64, error) {
	if r.IsBid {
		return quantities.LiabilitySharesToTokens(r.LiabilityShares, baseBank)
	}
	return quantities.AssetSharesToTokens(r.CollateralShares, baseBank)
}

// ReduceBid subtracts the collateral and liability share deltas corresponding
// to a partial fill of quoteAtomsFilled/baseAtomsFilled from a resting bid.
// Calling this on an ask is a programming error.
func (r *RestingOrder) ReduceBid(baseBank, quoteBank quantities.Bank, quoteAtomsFilled, baseAtomsFilled uint64) error {
	if !r.IsBid {
		return nixerr.New(nixerr.InvalidMarketParameters, "reduce_bid called on an ask order")
	}
	liabilityDelta, err := quantities.TokensToLiabilityShares(baseAtomsFilled, baseBank)
	if err != nil {
		return err
	}
	collateralDelta, err := quantities.TokensToAssetShares(quoteAtomsFilled, quoteBank)
	if err != nil {
		return err
	}
	newLiability, err := quantities.Sub(r.LiabilityShares, liabilityDelta)
	if err != nil {
		return err
	}
	newCollateral, err := quantities.Sub(r.CollateralShares, collateralDelta)
	if err != nil {
		return err
	}
	r.LiabilityShares = newLiability
	r.CollateralShares = newCollateral
	return nil
}

// ReduceAsk subtracts the collateral shares corresponding to baseAtomsFilled
// from a resting ask and zeroes its liability shares (an ask never carries
// liability). Calling this on a bid is a programming error.
func (r *RestingOrder) ReduceAsk(baseBank quantities.Bank, baseAtomsFilled uint64) error {
	if r.IsBid {
		return nixerr.New(nixerr.InvalidMarketParameters, "reduce_ask called on a bid order")
	}
	delta, err := quantities.TokensToAssetShares(baseAtomsFilled, baseBank)
	if err != nil {
		return err
	}
	newCollateral, err := quantities.Sub(r.CollateralShares, delta)
	if err != nil {
		return err
	}
	r.CollateralShares = newCollateral
	r.LiabilityShares = quantities.Zero()
	return nil
}

// MatchKey identifies a resting order uniquely for tree-lookup-by-equality
// purposes: trader, order type, and rate must match exactly for non-reverse
// orders; reverse orders match within ±1 bps to absorb a repost that only
// shifted the rate by one step.
type MatchKey struct {
	TraderSlot ident.ID // encodes the requesting trader for lookup purposes
	RateBps    uint16
	OrderType  OrderType
	IsReverse  bool
}

// RateEqual implements the ±1bps reverse-order rate tolerance.
func RateEqual(a RestingOrder, rateBps uint16, orderType OrderType) bool {
	if a.OrderType != orderType {
		return false
	}
	if a.IsReverse() {
		diff := int(a.RateBps) - int(rateBps)
		if diff < 0 {
			diff = -diff
		}
		return diff <= 1
	}
	return a.RateBps == rateBps
}
