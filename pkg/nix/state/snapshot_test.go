package state

import (
	"testing"

	"github.com/nixlabs/nix-engine/pkg/nix/ident"
	"github.com/nixlabs/nix-engine/pkg/nix/rbtree"
)

func TestMarketLoansSnapshotRoundTrip(t *testing.T) {
	loans := newTestMarketLoans(t, 4)
	if _, err := loans.AddLoan(NewEmptyActiveLoan()); err != nil {
		t.Fatalf("AddLoan: %v", err)
	}
	if _, err := loans.AddLoan(NewEmptyActiveLoan()); err != nil {
		t.Fatalf("AddLoan: %v", err)
	}

	restored := RestoreMarketLoans(loans.Snapshot())
	if restored.Market != loans.Market {
		t.Fatalf("Market mismatch: %s != %s", restored.Market, loans.Market)
	}
	if restored.SequenceNumber != loans.SequenceNumber {
		t.Fatalf("SequenceNumber mismatch: %d != %d", restored.SequenceNumber, loans.SequenceNumber)
	}
	if restored.NumActiveLoans != loans.NumActiveLoans {
		t.Fatalf("NumActiveLoans mismatch: %d != %d", restored.NumActiveLoans, loans.NumActiveLoans)
	}
	if idx := restored.Tree().Find(ActiveLoan{SequenceNumber: 2}); idx == rbtree.Nil {
		t.Fatal("expected restored tree to still contain sequence 2")
	}
	if err := restored.CheckInvariant(); err != nil {
		t.Fatalf("CheckInvariant on restored ledger: %v", err)
	}
}

func TestGlobalSnapshotRoundTrip(t *testing.T) {
	g := NewGlobal(ident.FromHex("0x10"), ident.FromHex("0x11"))
	a := ident.FromHex("0x01")
	b := ident.FromHex("0x02")
	if err := g.AddTrader(a); err != nil {
		t.Fatalf("AddTrader: %v", err)
	}
	if err := g.AddTrader(b); err != nil {
		t.Fatalf("AddTrader: %v", err)
	}
	if err := g.Deposit(a, 100); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if err := g.AddOrder(b, b); err != nil {
		t.Fatalf("AddOrder: %v", err)
	}

	restored := RestoreGlobal(g.Snapshot())
	if restored.Mint != g.Mint || restored.Vault != g.Vault {
		t.Fatal("Mint/Vault mismatch after restore")
	}
	if restored.NumSeats() != 2 {
		t.Fatalf("NumSeats after restore = %d, want 2", restored.NumSeats())
	}
	if restored.BalanceAtoms(a) != 100 {
		t.Fatalf("BalanceAtoms(a) after restore = %d, want 100", restored.BalanceAtoms(a))
	}
	victim, _, err := restored.EvictOldestSeat()
	if err != nil {
		t.Fatalf("EvictOldestSeat: %v", err)
	}
	if victim != a {
		t.Fatalf("evicted %s, want the first-registered seat %s (eviction order must survive the round trip)", victim, a)
	}
}
