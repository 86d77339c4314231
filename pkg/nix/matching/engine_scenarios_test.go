package matching

import (
	"context"
	"testing"

	"github.com/nixlabs/nix-engine/pkg/nix/external"
	"github.com/nixlabs/nix-engine/pkg/nix/ident"
	"github.com/nixlabs/nix-engine/pkg/nix/quantities"
	"github.com/nixlabs/nix-engine/pkg/nix/rbtree"
	"github.com/nixlabs/nix-engine/pkg/nix/state"
)

type fixture struct {
	mkt     *state.Market
	loans   *state.MarketLoans
	global  *state.Global
	ext     Externals
	maker   ident.ID
	taker   ident.ID
	bankA   ident.ID
	bankB   ident.ID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	bankA := ident.FromHex("0xA0")
	bankB := ident.FromHex("0xB0")
	mkt := state.NewMarket(
		ident.FromHex("0xC1"), ident.FromHex("0xBASE"), ident.FromHex("0xQUOTE"),
		bankA, bankB, 6, 6,
		state.MarketFee{Admin: ident.FromHex("0xAD"), LTVBufferBps: 0},
	)
	loans := state.NewMarketLoans(mkt.Address)
	global := state.NewGlobal(ident.FromHex("0xG1"), ident.FromHex("0xVAULT"))

	mm := external.NewMockMoneyMarket()
	one := quantities.FromU64(1)
	mm.SetBank(bankA, quantities.Bank{AssetShareValue: one, LiabilityShareValue: one, AssetWeightInit: one, LiabilityWeightInit: one, Decimals: 6})
	mm.SetBank(bankB, quantities.Bank{AssetShareValue: one, LiabilityShareValue: one, AssetWeightInit: one, LiabilityWeightInit: one, Decimals: 6})

	oracle := external.NewMockOracle()
	oracle.SetPrice(bankA, one)
	oracle.SetPrice(bankB, one)

	ext := Externals{
		MoneyMarket:   mm,
		Oracle:        oracle,
		TokenTransfer: external.NewMockTokenTransferer(),
		BaseBinding:   external.Binding{Bank: bankA},
		QuoteBinding:  external.Binding{Bank: bankB},
	}

	maker := ident.FromHex("0x01")
	taker := ident.FromHex("0x02")
	makerSlot, err := mkt.ClaimSeat(maker)
	if err != nil {
		t.Fatalf("ClaimSeat(maker): %v", err)
	}
	takerSlot, err := mkt.ClaimSeat(taker)
	if err != nil {
		t.Fatalf("ClaimSeat(taker): %v", err)
	}
	// Fund both seats generously on both sides so a taker bid's quote
	// decrement and a taker ask's base decrement never underflow.
	ample := quantities.FromU64(1_000_000)
	for _, slot := range []uint32{makerSlot, takerSlot} {
		seat := mkt.Seat(slot)
		if err := seat.Deposit(ample, true); err != nil {
			t.Fatalf("fund side A: %v", err)
		}
		if err := seat.Deposit(ample, false); err != nil {
			t.Fatalf("fund side B: %v", err)
		}
	}

	return &fixture{mkt: mkt, loans: loans, global: global, ext: ext, maker: maker, taker: taker, bankA: bankA, bankB: bankB}
}

func (f *fixture) traderSlot(trader ident.ID) uint32 {
	return f.mkt.SeatByTrader(trader)
}

func TestPlaceOrderFullyMatchesRestingAsk(t *testing.T) {
	f := newFixture(t)
	makerSlot := f.traderSlot(f.maker)

	askOrder, err := state.NewRestingOrder(500, 1, quantities.FromU64(100), quantities.Zero(), makerSlot, state.NoExpiration, state.Limit, false, true, 0)
	if err != nil {
		t.Fatalf("NewRestingOrder: %v", err)
	}
	if _, err := f.mkt.InsertOrder(askOrder); err != nil {
		t.Fatalf("InsertOrder: %v", err)
	}

	takerSlot := f.traderSlot(f.taker)
	res, err := PlaceOrder(context.Background(), state.NoExpiration, f.mkt, f.loans, f.global, f.ext, PlaceOrderParams{
		TraderSlot: takerSlot,
		Trader:     f.taker,
		BaseAtoms:  100,
		RateBps:    500,
		IsBid:      true,
		UseATree:   true,
		OrderType:  state.Limit,
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if len(res.Fills) != 1 {
		t.Fatalf("expected 1 fill, got %d", len(res.Fills))
	}
	if res.Fills[0].BaseAtoms != 100 {
		t.Fatalf("fill BaseAtoms = %d, want 100", res.Fills[0].BaseAtoms)
	}
	if len(res.NewLoans) != 1 {
		t.Fatalf("expected 1 new loan, got %d", len(res.NewLoans))
	}
	if res.Rested {
		t.Fatal("fully matched taker should not rest")
	}
	if err := f.mkt.CheckInvariant(); err != nil {
		t.Fatalf("CheckInvariant: %v", err)
	}
}

func TestPlaceOrderPartialRestsRemainder(t *testing.T) {
	f := newFixture(t)
	makerSlot := f.traderSlot(f.maker)

	askOrder, err := state.NewRestingOrder(500, 1, quantities.FromU64(40), quantities.Zero(), makerSlot, state.NoExpiration, state.Limit, false, true, 0)
	if err != nil {
		t.Fatalf("NewRestingOrder: %v", err)
	}
	if _, err := f.mkt.InsertOrder(askOrder); err != nil {
		t.Fatalf("InsertOrder: %v", err)
	}

	takerSlot := f.traderSlot(f.taker)
	res, err := PlaceOrder(context.Background(), state.NoExpiration, f.mkt, f.loans, f.global, f.ext, PlaceOrderParams{
		TraderSlot: takerSlot,
		Trader:     f.taker,
		BaseAtoms:  100,
		RateBps:    500,
		IsBid:      true,
		UseATree:   true,
		OrderType:  state.Limit,
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if len(res.Fills) != 1 || res.Fills[0].BaseAtoms != 40 {
		t.Fatalf("expected a 40-atom fill, got %+v", res.Fills)
	}
	if !res.Rested {
		t.Fatal("expected remainder to rest")
	}
	rested := f.mkt.Order(res.RestedIndex)
	gotRemaining, err := rested.NumBaseAtoms(quantities.Bank{LiabilityShareValue: quantities.FromU64(1)})
	if err != nil {
		t.Fatalf("NumBaseAtoms: %v", err)
	}
	if gotRemaining != 60 {
		t.Fatalf("rested remainder = %d, want 60", gotRemaining)
	}
}

func TestPlaceOrderPostOnlyRejectsCrossingBook(t *testing.T) {
	f := newFixture(t)
	makerSlot := f.traderSlot(f.maker)
	askOrder, err := state.NewRestingOrder(500, 1, quantities.FromU64(10), quantities.Zero(), makerSlot, state.NoExpiration, state.Limit, false, true, 0)
	if err != nil {
		t.Fatalf("NewRestingOrder: %v", err)
	}
	if _, err := f.mkt.InsertOrder(askOrder); err != nil {
		t.Fatalf("InsertOrder: %v", err)
	}

	takerSlot := f.traderSlot(f.taker)
	_, err = PlaceOrder(context.Background(), state.NoExpiration, f.mkt, f.loans, f.global, f.ext, PlaceOrderParams{
		TraderSlot: takerSlot,
		Trader:     f.taker,
		BaseAtoms:  10,
		RateBps:    500,
		IsBid:      true,
		UseATree:   true,
		OrderType:  state.PostOnly,
	})
	if err == nil {
		t.Fatal("expected PostOnly order crossing the book to fail")
	}
}

func TestPlaceOrderReverseBidReposts(t *testing.T) {
	f := newFixture(t)
	makerSlot := f.traderSlot(f.maker)

	askOrder, err := state.NewRestingOrder(600, 1, quantities.FromU64(100), quantities.Zero(), makerSlot, state.NoExpiration, state.Limit, false, true, 0)
	if err != nil {
		t.Fatalf("NewRestingOrder: %v", err)
	}
	if _, err := f.mkt.InsertOrder(askOrder); err != nil {
		t.Fatalf("InsertOrder: %v", err)
	}

	takerSlot := f.traderSlot(f.taker)
	res, err := PlaceOrder(context.Background(), state.NoExpiration, f.mkt, f.loans, f.global, f.ext, PlaceOrderParams{
		TraderSlot:       takerSlot,
		Trader:           f.taker,
		BaseAtoms:        100,
		RateBps:          600,
		ReverseSpreadBps: 100,
		IsBid:            true,
		UseATree:         true,
		OrderType:        state.Reverse,
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if len(res.Fills) != 1 {
		t.Fatalf("expected 1 fill, got %d", len(res.Fills))
	}
	if res.Reposted == nil {
		t.Fatal("expected a reverse self-repost")
	}
	if res.Reposted.RateBps != 594 {
		t.Fatalf("reposted rate = %d, want 594", res.Reposted.RateBps)
	}
	if res.Reposted.OrderType != state.Limit {
		t.Fatalf("reposted order type = %v, want Limit", res.Reposted.OrderType)
	}
	if res.Reposted.UseATree {
		t.Fatal("reposted order should land on tree B, not tree A")
	}
	if res.Reposted.IsBid {
		t.Fatal("reposted order should be an ask")
	}
	gotAtoms, err := res.Reposted.NumBaseAtoms(quantities.Bank{AssetShareValue: quantities.FromU64(1)})
	if err != nil {
		t.Fatalf("NumBaseAtoms: %v", err)
	}
	if gotAtoms != 100 {
		t.Fatalf("reposted base atoms = %d, want 100", gotAtoms)
	}
	if err := f.mkt.CheckInvariant(); err != nil {
		t.Fatalf("CheckInvariant: %v", err)
	}
}

func TestPlaceOrderEvictsExpiredMaker(t *testing.T) {
	f := newFixture(t)
	makerSlot := f.traderSlot(f.maker)

	bidOrder, err := state.NewRestingOrder(500, 1, quantities.FromU64(100), quantities.FromU64(100), makerSlot, 5, state.Limit, true, true, 0)
	if err != nil {
		t.Fatalf("NewRestingOrder: %v", err)
	}
	if _, err := f.mkt.InsertOrder(bidOrder); err != nil {
		t.Fatalf("InsertOrder: %v", err)
	}

	takerSlot := f.traderSlot(f.taker)
	res, err := PlaceOrder(context.Background(), state.Slot(10), f.mkt, f.loans, f.global, f.ext, PlaceOrderParams{
		TraderSlot: takerSlot,
		Trader:     f.taker,
		BaseAtoms:  50,
		RateBps:    500,
		IsBid:      false,
		UseATree:   true,
		OrderType:  state.Limit,
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if len(res.Fills) != 0 {
		t.Fatalf("expected no fills against an expired maker, got %d", len(res.Fills))
	}
	if f.loans.NumActiveLoans != 1 {
		t.Fatalf("expected the expired bid to become 1 active loan, got %d", f.loans.NumActiveLoans)
	}
	if !res.Rested {
		t.Fatal("taker ask should rest once the only bid is evicted")
	}
	if err := f.mkt.CheckInvariant(); err != nil {
		t.Fatalf("CheckInvariant: %v", err)
	}
}

func TestCancelOrderSettlesRestingBid(t *testing.T) {
	f := newFixture(t)
	takerSlot := f.traderSlot(f.taker)

	seq := f.mkt.NextSequence(true)
	bidOrder, err := state.NewRestingOrder(500, seq, quantities.FromU64(100), quantities.FromU64(80), takerSlot, state.NoExpiration, state.Limit, true, true, 0)
	if err != nil {
		t.Fatalf("NewRestingOrder: %v", err)
	}
	if _, err := f.mkt.InsertOrder(bidOrder); err != nil {
		t.Fatalf("InsertOrder: %v", err)
	}

	if err := CancelOrder(f.mkt, f.loans, f.global, state.NoExpiration, f.taker, seq, nil); err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}

	if f.loans.NumActiveLoans != 1 {
		t.Fatalf("expected cancel of a resting bid to create 1 active loan, got %d", f.loans.NumActiveLoans)
	}
	bids, _ := f.mkt.BooksideFor(true)
	if bids.Best != rbtree.Nil {
		t.Fatal("canceled bid should no longer be in the bookside tree")
	}
	if err := f.mkt.CheckInvariant(); err != nil {
		t.Fatalf("CheckInvariant: %v", err)
	}
}

func TestPlaceOrderCleansUnbackedGlobalMaker(t *testing.T) {
	f := newFixture(t)
	makerSlot := f.traderSlot(f.maker)

	if err := f.global.AddTrader(f.maker); err != nil {
		t.Fatalf("AddTrader: %v", err)
	}

	makerRes, err := PlaceOrder(context.Background(), state.NoExpiration, f.mkt, f.loans, f.global, f.ext, PlaceOrderParams{
		TraderSlot: makerSlot,
		Trader:     f.maker,
		BaseAtoms:  50,
		RateBps:    500,
		IsBid:      false,
		UseATree:   true,
		OrderType:  state.Global,
	})
	if err != nil {
		t.Fatalf("PlaceOrder(maker global ask): %v", err)
	}
	if !makerRes.Rested {
		t.Fatal("expected the global ask to rest")
	}

	takerSlot := f.traderSlot(f.taker)
	res, err := PlaceOrder(context.Background(), state.NoExpiration, f.mkt, f.loans, f.global, f.ext, PlaceOrderParams{
		TraderSlot: takerSlot,
		Trader:     f.taker,
		BaseAtoms:  50,
		RateBps:    500,
		IsBid:      true,
		UseATree:   true,
		OrderType:  state.Limit,
	})
	if err != nil {
		t.Fatalf("PlaceOrder(taker): %v", err)
	}
	if len(res.Fills) != 0 {
		t.Fatalf("expected no fill against an unbacked global maker, got %d", len(res.Fills))
	}
	if len(res.Cleanups) != 1 {
		t.Fatalf("expected 1 cleanup event, got %d", len(res.Cleanups))
	}
	if res.Cleanups[0].Maker != f.maker {
		t.Fatalf("cleanup maker = %s, want %s", res.Cleanups[0].Maker, f.maker)
	}
	if res.Cleanups[0].DesiredAtoms != 50 {
		t.Fatalf("cleanup desired atoms = %d, want 50", res.Cleanups[0].DesiredAtoms)
	}
	if err := f.mkt.CheckInvariant(); err != nil {
		t.Fatalf("CheckInvariant: %v", err)
	}
}

func TestPlaceOrderRejectsUnseatedTrader(t *testing.T) {
	f := newFixture(t)
	_, err := PlaceOrder(context.Background(), state.NoExpiration, f.mkt, f.loans, f.global, f.ext, PlaceOrderParams{
		TraderSlot: 9999,
		Trader:     ident.FromHex("0xFF"),
		BaseAtoms:  1,
		RateBps:    1,
		IsBid:      true,
		UseATree:   true,
		OrderType:  state.Limit,
	})
	if err == nil {
		t.Fatal("expected an unseated taker to be rejected")
	}
}
