package state

import (
	"testing"

	"github.com/nixlabs/nix-engine/pkg/nix/ident"
	"github.com/nixlabs/nix-engine/pkg/nix/quantities"
)

func TestClaimedSeatDepositAndWithdraw(t *testing.T) {
	seat := &ClaimedSeat{Trader: ident.FromHex("0x01")}
	amount := quantities.FromU64(100)
	if err := seat.Deposit(amount, true); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	got, err := seat.WithdrawableA.ToU64Floor()
	if err != nil {
		t.Fatalf("ToU64Floor: %v", err)
	}
	if got != 100 {
		t.Fatalf("WithdrawableA = %d, want 100", got)
	}

	if err := seat.UpdateBalance(true, false, quantities.FromU64(40)); err != nil {
		t.Fatalf("UpdateBalance (decrement): %v", err)
	}
	got, err = seat.WithdrawableA.ToU64Floor()
	if err != nil {
		t.Fatalf("ToU64Floor: %v", err)
	}
	if got != 60 {
		t.Fatalf("WithdrawableA after decrement = %d, want 60", got)
	}
}

func TestClaimedSeatUpdateBalanceRejectsUnderflow(t *testing.T) {
	seat := &ClaimedSeat{Trader: ident.FromHex("0x01")}
	if err := seat.UpdateBalance(false, false, quantities.FromU64(1)); err == nil {
		t.Fatal("expected decrementing an empty balance to fail")
	}
}

func TestClaimedSeatRecordVolume(t *testing.T) {
	seat := &ClaimedSeat{Trader: ident.FromHex("0x01")}
	seat.RecordVolume(10, true)
	seat.RecordVolume(5, true)
	seat.RecordVolume(7, false)
	if seat.VolumeA != 15 {
		t.Fatalf("VolumeA = %d, want 15", seat.VolumeA)
	}
	if seat.VolumeB != 7 {
		t.Fatalf("VolumeB = %d, want 7", seat.VolumeB)
	}
}

func TestCompareSeatByTraderOrdering(t *testing.T) {
	low := ClaimedSeat{Trader: ident.FromHex("0x01")}
	high := ClaimedSeat{Trader: ident.FromHex("0x02")}
	if CompareSeatByTrader(low, high) >= 0 {
		t.Fatal("expected lower trader bytes to compare less than higher")
	}
	if CompareSeatByTrader(high, low) <= 0 {
		t.Fatal("expected higher trader bytes to compare greater than lower")
	}
	if CompareSeatByTrader(low, low) != 0 {
		t.Fatal("expected equal traders to compare equal")
	}
}
