package quantities

import "testing"

func TestAddSubRoundTrip(t *testing.T) {
	a := FromU64(10)
	b := FromU64(3)
	sum, err := Add(a, b)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	got, err := sum.ToU64Floor()
	if err != nil {
		t.Fatalf("ToU64Floor: %v", err)
	}
	if got != 13 {
		t.Fatalf("got %d, want 13", got)
	}
	diff, err := Sub(sum, b)
	if err != nil {
		t.Fatalf("Sub: %v", err)
	}
	if Cmp(diff, a) != 0 {
		t.Fatalf("Sub did not invert Add: %s != %s", diff, a)
	}
}

func TestMulDiv(t *testing.T) {
	half, err := FromRatio(1, 2)
	if err != nil {
		t.Fatalf("FromRatio: %v", err)
	}
	ten := FromU64(10)
	product, err := Mul(ten, half)
	if err != nil {
		t.Fatalf("Mul: %v", err)
	}
	got, err := product.ToU64Floor()
	if err != nil {
		t.Fatalf("ToU64Floor: %v", err)
	}
	if got != 5 {
		t.Fatalf("10 * 0.5 = %d, want 5", got)
	}
	quot, err := Div(ten, half)
	if err != nil {
		t.Fatalf("Div: %v", err)
	}
	gotQuot, err := quot.ToU64Floor()
	if err != nil {
		t.Fatalf("ToU64Floor: %v", err)
	}
	if gotQuot != 20 {
		t.Fatalf("10 / 0.5 = %d, want 20", gotQuot)
	}
}

func TestDivisionByZero(t *testing.T) {
	if _, err := Div(FromU64(1), Zero()); err == nil {
		t.Fatal("expected error dividing by zero")
	}
	if _, err := FromRatio(1, 0); err == nil {
		t.Fatal("expected error for zero denominator")
	}
}

func TestCeilFloorRounding(t *testing.T) {
	third, err := FromRatio(1, 3)
	if err != nil {
		t.Fatalf("FromRatio: %v", err)
	}
	floor, err := third.ToU64Floor()
	if err != nil {
		t.Fatalf("ToU64Floor: %v", err)
	}
	if floor != 0 {
		t.Fatalf("floor of 1/3 = %d, want 0", floor)
	}
	ceil, err := third.ToU64Ceil()
	if err != nil {
		t.Fatalf("ToU64Ceil: %v", err)
	}
	if ceil != 1 {
		t.Fatalf("ceil of 1/3 = %d, want 1", ceil)
	}
}

func TestNegativeHasNoUintRepresentation(t *testing.T) {
	neg := FromInt64(-1)
	if !neg.IsNegative() {
		t.Fatal("expected IsNegative true")
	}
	if _, err := neg.ToU64Floor(); err == nil {
		t.Fatal("expected error taking floor of a negative value")
	}
	if _, err := neg.ToU64Ceil(); err == nil {
		t.Fatal("expected error taking ceil of a negative value")
	}
}

func TestShareConversionsRoundTrip(t *testing.T) {
	bank := Bank{
		AssetShareValue:     FromU64(1),
		LiabilityShareValue: FromU64(1),
	}
	shares, err := TokensToAssetShares(1000, bank)
	if err != nil {
		t.Fatalf("TokensToAssetShares: %v", err)
	}
	tokens, err := AssetSharesToTokens(shares, bank)
	if err != nil {
		t.Fatalf("AssetSharesToTokens: %v", err)
	}
	if tokens != 1000 {
		t.Fatalf("round trip produced %d, want 1000", tokens)
	}
}

func TestLiabilitySharesToTokensRoundsUp(t *testing.T) {
	ratio, err := FromRatio(3, 2)
	if err != nil {
		t.Fatalf("FromRatio: %v", err)
	}
	bank := Bank{LiabilityShareValue: ratio}
	oneShare, err := FromRatio(1, 1)
	if err != nil {
		t.Fatalf("FromRatio: %v", err)
	}
	tokens, err := LiabilitySharesToTokens(oneShare, bank)
	if err != nil {
		t.Fatalf("LiabilitySharesToTokens: %v", err)
	}
	if tokens != 2 {
		t.Fatalf("got %d, want 2 (rounded up from 1.5)", tokens)
	}
}

func TestRequiredQuoteCollateralPositivePrice(t *testing.T) {
	baseBank := Bank{Decimals: 6, LiabilityWeightInit: FromU64(1)}
	quoteBank := Bank{Decimals: 6, AssetWeightInit: FromU64(1)}
	price := FromU64(1)
	required, err := RequiredQuoteCollateral(1_000_000, baseBank, quoteBank, price, price, 0)
	if err != nil {
		t.Fatalf("RequiredQuoteCollateral: %v", err)
	}
	if required == 0 {
		t.Fatal("expected a positive collateral requirement")
	}
}

func TestRequiredQuoteCollateralRejectsNonPositivePrice(t *testing.T) {
	baseBank := Bank{Decimals: 6, LiabilityWeightInit: FromU64(1)}
	quoteBank := Bank{Decimals: 6, AssetWeightInit: FromU64(1)}
	if _, err := RequiredQuoteCollateral(1, baseBank, quoteBank, Zero(), FromU64(1), 0); err == nil {
		t.Fatal("expected error for zero base price")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	q, err := FromRatio(7, 3)
	if err != nil {
		t.Fatalf("FromRatio: %v", err)
	}
	data, err := q.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	var back Q80_48
	if err := back.UnmarshalJSON(data); err != nil {
		t.Fatalf("UnmarshalJSON: %v", err)
	}
	if Cmp(q, back) != 0 {
		t.Fatalf("round trip mismatch: %s != %s", q, back)
	}
}
