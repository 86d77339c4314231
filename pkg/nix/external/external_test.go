package external

import (
	"context"
	"testing"

	"github.com/nixlabs/nix-engine/pkg/nix/ident"
	"github.com/nixlabs/nix-engine/pkg/nix/quantities"
)

func TestDecimalPriceToQ80_48(t *testing.T) {
	price := NewDecimalPrice(15050, -2) // 150.50
	q, err := price.ToQ80_48()
	if err != nil {
		t.Fatalf("ToQ80_48: %v", err)
	}
	got, err := q.ToU64Floor()
	if err != nil {
		t.Fatalf("ToU64Floor: %v", err)
	}
	if got != 150 {
		t.Fatalf("ToU64Floor = %d, want 150", got)
	}
}

func TestDecimalPriceRejectsNegative(t *testing.T) {
	price := NewDecimalPrice(-1, 0)
	if _, err := price.ToQ80_48(); err == nil {
		t.Fatal("expected a negative oracle price to be rejected")
	}
}

func TestMockMoneyMarketDepositBorrowRepay(t *testing.T) {
	mm := NewMockMoneyMarket()
	binding := Binding{Bank: ident.FromHex("0x01"), ProtocolAccount: ident.FromHex("0x02")}
	ctx := context.Background()

	if err := mm.Deposit(ctx, binding, 100, nil); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if err := mm.Borrow(ctx, binding, 40, nil); err != nil {
		t.Fatalf("Borrow: %v", err)
	}
	if err := mm.Repay(ctx, binding, 10, nil); err != nil {
		t.Fatalf("Repay: %v", err)
	}
	if mm.Balances[binding.ProtocolAccount] != 130 {
		t.Fatalf("balance = %d, want 130", mm.Balances[binding.ProtocolAccount])
	}

	bank := quantities.Bank{AssetShareValue: quantities.FromU64(1)}
	mm.SetBank(binding.Bank, bank)
	got, err := mm.Bank(ctx, binding)
	if err != nil {
		t.Fatalf("Bank: %v", err)
	}
	shareValue, err := got.AssetShareValue.ToU64Floor()
	if err != nil {
		t.Fatalf("ToU64Floor: %v", err)
	}
	if shareValue != 1 {
		t.Fatalf("AssetShareValue = %d, want 1", shareValue)
	}
}

func TestMockOraclePrice(t *testing.T) {
	oracle := NewMockOracle()
	bank := ident.FromHex("0x03")
	oracle.SetPrice(bank, quantities.FromU64(42))
	got, err := oracle.Price(context.Background(), Binding{Bank: bank}, BiasLow, PriceTimeWeighted)
	if err != nil {
		t.Fatalf("Price: %v", err)
	}
	price, err := got.ToU64Floor()
	if err != nil {
		t.Fatalf("ToU64Floor: %v", err)
	}
	if price != 42 {
		t.Fatalf("Price = %d, want 42", price)
	}
}

func TestMockTokenTransfererCountsCalls(t *testing.T) {
	tr := NewMockTokenTransferer()
	ctx := context.Background()
	if err := tr.Transfer(ctx, ident.FromHex("0x01"), ident.FromHex("0x02"), 10); err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if err := tr.TransferChecked(ctx, ident.FromHex("0x01"), ident.FromHex("0x02"), ident.FromHex("0x03"), 10, 6); err != nil {
		t.Fatalf("TransferChecked: %v", err)
	}
	if tr.Calls != 2 {
		t.Fatalf("Calls = %d, want 2", tr.Calls)
	}
}

func TestMockAuthorityProverIsDeterministic(t *testing.T) {
	market := ident.FromHex("0x04")
	a, bumpA, err := MockAuthorityProver{}.MarketSigner(market)
	if err != nil {
		t.Fatalf("MarketSigner: %v", err)
	}
	b, bumpB, err := MockAuthorityProver{}.MarketSigner(market)
	if err != nil {
		t.Fatalf("MarketSigner: %v", err)
	}
	if a != b || bumpA != bumpB {
		t.Fatal("expected MarketSigner to be deterministic for the same market")
	}
}
