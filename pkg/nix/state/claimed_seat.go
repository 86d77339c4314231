package state

import (
	"github.com/nixlabs/nix-engine/pkg/nix/ident"
	"github.com/nixlabs/nix-engine/pkg/nix/nixerr"
	"github.com/nixlabs/nix-engine/pkg/nix/quantities"
)

// ClaimedSeat is a trader's per-market account: withdrawable share balances
// on each side plus informational volume counters.
type ClaimedSeat struct {
	Trader        ident.ID
	WithdrawableA quantities.Q80_48
	WithdrawableB quantities.Q80_48
	VolumeA       uint64
	VolumeB       uint64
}

// Deposit increments the withdrawable share balance on the given side.
func (s *ClaimedSeat) Deposit(shares quantities.Q80_48, isSideA bool) error {
	return s.UpdateBalance(isSideA, true, shares)
}

// UpdateBalance is the single mutation point for a seat's withdrawable
// balances. A decrease that would underflow the balance fails with
// InsufficientOut rather than going negative.
func (s *ClaimedSeat) UpdateBalance(isSideA, isIncrease bool, shares quantities.Q80_48) error {
	cur := s.WithdrawableB
	if isSideA {
		cur = s.WithdrawableA
	}
	var next quantities.Q80_48
	var err error
	if isIncrease {
		next, err = quantities.Add(cur, shares)
	} else {
		next, err = quantities.Sub(cur, shares)
		if err == nil && next.IsNegative() {
			return nixerr.New(nixerr.InsufficientOut, "seat balance underflow for trader %s", s.Trader)
		}
	}
	if err != nil {
		return err
	}
	if isSideA {
		s.WithdrawableA = next
	} else {
		s.WithdrawableB = next
	}
	return nil
}

// RecordVolume adds to the lifetime volume counter on the given side, using
// wrapping addition. Informational only; never gates a decision.
func (s *ClaimedSeat) RecordVolume(amount uint64, isSideA bool) {
	if isSideA {
		s.VolumeA += amount
	} else {
		s.VolumeB += amount
	}
}

// CompareSeatByTrader orders claimed seats by trader identifier, the
// comparator used by a market's seat tree.
func CompareSeatByTrader(a, b ClaimedSeat) int {
	ab, bb := a.Trader.Bytes(), b.Trader.Bytes()
	for i := range ab {
		if ab[i] != bb[i] {
			if ab[i] < bb[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}
