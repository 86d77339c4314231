// Package quantities implements the engine's signed 80.48 fixed-point type
// and the token/share/collateral conversions built on top of it.
//
// The originating protocol backs this type with a 16-byte little-endian
// buffer (I80F48) interpreted by a fixed-point library. No suitable Go
// library ships a binary fixed-point type of that exact width, so this
// rendering uses math/big scaled by 2^48 — see DESIGN.md for why this is
// a standard-library component rather than a third-party one.
package quantities

import (
	"fmt"
	"math/big"
)

// Frac is the number of fractional bits (the ".48" in 80.48).
const Frac = 48

var scale = new(big.Int).Lsh(big.NewInt(1), Frac)

// bound is the representable range of an 80.48 signed fixed point: the
// integer part fits in 80 bits including sign, so |value| < 2^79.
var bound = new(big.Int).Lsh(big.NewInt(1), 79+Frac)

// Q80_48 is a signed 80.48 fixed-point number.
type Q80_48 struct {
	// raw is the value multiplied by 2^48, i.e. raw = value * 2^Frac.
	raw *big.Int
}

// Zero returns the additive identity.
func Zero() Q80_48 { return Q80_48{raw: new(big.Int)} }

// FromU64 builds a Q80_48 equal to an integer token amount.
func FromU64(tokens uint64) Q80_48 {
	v := new(big.Int).SetUint64(tokens)
	return Q80_48{raw: v.Lsh(v, Frac)}
}

// FromInt64 builds a Q80_48 equal to a signed integer amount.
func FromInt64(v int64) Q80_48 {
	b := big.NewInt(v)
	return Q80_48{raw: b.Lsh(b, Frac)}
}

// FromRatio builds num/den as a Q80_48, rounding toward zero.
func FromRatio(num, den int64) (Q80_48, error) {
	if den == 0 {
		return Q80_48{}, fmt.Errorf("quantities: division by zero")
	}
	n := new(big.Int).SetInt64(num)
	n.Lsh(n, Frac)
	n.Quo(n, big.NewInt(den))
	return checked(n)
}

// FromRawBigInt builds a Q80_48 directly from a pre-scaled raw value
// (raw = value * 2^Frac), checking it against the representable range.
// Used by external.DecimalPrice when converting from a base-10 oracle
// reading that has already been scaled by 2^Frac.
func FromRawBigInt(raw *big.Int) (Q80_48, error) {
	return checked(new(big.Int).Set(raw))
}

func checked(raw *big.Int) (Q80_48, error) {
	abs := new(big.Int).Abs(raw)
	if abs.Cmp(bound) >= 0 {
		return Q80_48{}, fmt.Errorf("quantities: overflow")
	}
	return Q80_48{raw: raw}, nil
}

// Add returns a+b, erroring on overflow.
func Add(a, b Q80_48) (Q80_48, error) {
	return checked(new(big.Int).Add(a.raw, b.raw))
}

// Sub returns a-b, erroring on overflow (including when the result would be
// negative past the representable range, not on sign alone).
func Sub(a, b Q80_48) (Q80_48, error) {
	return checked(new(big.Int).Sub(a.raw, b.raw))
}

// Mul returns a*b, erroring on overflow.
func Mul(a, b Q80_48) (Q80_48, error) {
	prod := new(big.Int).Mul(a.raw, b.raw)
	prod.Rsh(prod, Frac)
	return checked(prod)
}

// Div returns a/b truncated toward zero, erroring on division by zero or
// overflow.
func Div(a, b Q80_48) (Q80_48, error) {
	if b.IsZero() {
		return Q80_48{}, fmt.Errorf("quantities: division by zero")
	}
	n := new(big.Int).Lsh(a.raw, Frac)
	n.Quo(n, b.raw)
	return checked(n)
}

// IsZero reports whether the value is exactly zero.
func (q Q80_48) IsZero() bool { return q.raw.Sign() == 0 }

// IsNegative reports whether the value is strictly negative.
func (q Q80_48) IsNegative() bool { return q.raw.Sign() < 0 }

// Cmp compares two values the way big.Int.Cmp does.
func Cmp(a, b Q80_48) int { return a.raw.Cmp(b.raw) }

// ToU64Floor truncates toward negative infinity and returns the integer
// part as a uint64. Negative values are rejected.
func (q Q80_48) ToU64Floor() (uint64, error) {
	if q.IsNegative() {
		return 0, fmt.Errorf("quantities: negative value has no floor uint64 representation")
	}
	v := new(big.Int).Rsh(q.raw, Frac)
	if !v.IsUint64() {
		return 0, fmt.Errorf("quantities: value exceeds uint64 range")
	}
	return v.Uint64(), nil
}

// ToU64Ceil rounds toward positive infinity and returns the integer part as
// a uint64. Negative values are rejected.
func (q Q80_48) ToU64Ceil() (uint64, error) {
	if q.IsNegative() {
		return 0, fmt.Errorf("quantities: negative value has no ceil uint64 representation")
	}
	rem := new(big.Int).And(q.raw, new(big.Int).Sub(scale, big.NewInt(1)))
	v := new(big.Int).Rsh(q.raw, Frac)
	if rem.Sign() != 0 {
		v.Add(v, big.NewInt(1))
	}
	if !v.IsUint64() {
		return 0, fmt.Errorf("quantities: value exceeds uint64 range")
	}
	return v.Uint64(), nil
}

func (q Q80_48) String() string {
	whole := new(big.Int).Rsh(q.raw, Frac)
	frac := new(big.Int).Sub(q.raw, new(big.Int).Lsh(whole, Frac))
	if frac.Sign() < 0 {
		frac.Neg(frac)
	}
	return fmt.Sprintf("%s.%048b", whole.String(), frac)
}

// RawBigInt exposes the pre-scaled integer backing q (raw = value *
// 2^Frac), for callers — persistence, mainly — that need the exact value
// without losing precision to a float.
func (q Q80_48) RawBigInt() *big.Int {
	if q.raw == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(q.raw)
}

// MarshalJSON renders q as the decimal string of its raw scaled integer, so
// a persisted account buffer round-trips through JSON without precision
// loss.
func (q Q80_48) MarshalJSON() ([]byte, error) {
	return []byte(`"` + q.RawBigInt().String() + `"`), nil
}

// UnmarshalJSON parses the decimal string MarshalJSON produces.
func (q *Q80_48) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	raw, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return fmt.Errorf("quantities: invalid raw value %q", s)
	}
	parsed, err := checked(raw)
	if err != nil {
		return err
	}
	*q = parsed
	return nil
}

// Bank is the read-only snapshot of money-market bank parameters the engine
// is handed at the start of every handler call.
type Bank struct {
	AssetShareValue      Q80_48
	LiabilityShareValue  Q80_48
	AssetWeightInit      Q80_48 // fraction, e.g. 0.80
	LiabilityWeightInit  Q80_48 // fraction, e.g. 1.25
	Decimals             uint8
}

// TokensToAssetShares converts a token amount into asset shares at the
// bank's current asset share value.
func TokensToAssetShares(tokens uint64, bank Bank) (Q80_48, error) {
	return Div(FromU64(tokens), bank.AssetShareValue)
}

// AssetSharesToTokens converts asset shares back into tokens, rounding down.
func AssetSharesToTokens(shares Q80_48, bank Bank) (uint64, error) {
	tokens, err := Mul(shares, bank.AssetShareValue)
	if err != nil {
		return 0, err
	}
	return tokens.ToU64Floor()
}

// TokensToLiabilityShares converts a token amount into liability shares at
// the bank's current liability share value.
func TokensToLiabilityShares(tokens uint64, bank Bank) (Q80_48, error) {
	return Div(FromU64(tokens), bank.LiabilityShareValue)
}

// LiabilitySharesToTokens converts liability shares back into tokens,
// rounding up to protect the lender.
func LiabilitySharesToTokens(shares Q80_48, bank Bank) (uint64, error) {
	tokens, err := Mul(shares, bank.LiabilityShareValue)
	if err != nil {
		return 0, err
	}
	return tokens.ToU64Ceil()
}

// pow10 returns 10^n as a Q80_48.
func pow10(n int) Q80_48 {
	v := big.NewInt(1)
	ten := big.NewInt(10)
	for i := 0; i < n; i++ {
		v.Mul(v, ten)
	}
	return Q80_48{raw: new(big.Int).Lsh(v, Frac)}
}

// RequiredQuoteCollateral computes the quote-side collateral a bid must
// post against baseAtoms of borrowed base, after an LTV buffer discount:
//
//	effective_weight = quote.asset_weight_init * (1 - buffer_bps/10000)
//	base_usd         = base_atoms * p_base_usd / 10^base.decimals
//	required_usd     = base_usd * base.liability_weight_init / effective_weight
//	required_quote   = ceil(required_usd * 10^quote.decimals / p_quote_usd)
//
// Every intermediate uses checked arithmetic; overflow surfaces as an error
// (mapped by callers to nixerr.NumericalOverflow).
func RequiredQuoteCollateral(baseAtoms uint64, baseBank, quoteBank Bank, pBaseUSD, pQuoteUSD Q80_48, bufferBps uint16) (uint64, error) {
	if pBaseUSD.IsNegative() || pBaseUSD.IsZero() || pQuoteUSD.IsNegative() || pQuoteUSD.IsZero() {
		return 0, fmt.Errorf("quantities: price must be positive")
	}

	one := FromU64(1)
	bufferFrac, err := FromRatio(int64(bufferBps), 10000)
	if err != nil {
		return 0, err
	}
	oneMinusBuffer, err := Sub(one, bufferFrac)
	if err != nil {
		return 0, err
	}
	effectiveWeight, err := Mul(quoteBank.AssetWeightInit, oneMinusBuffer)
	if err != nil {
		return 0, err
	}
	if effectiveWeight.IsZero() || effectiveWeight.IsNegative() {
		return 0, fmt.Errorf("quantities: effective weight must be positive")
	}

	baseUSD, err := Mul(FromU64(baseAtoms), pBaseUSD)
	if err != nil {
		return 0, err
	}
	baseUSD, err = Div(baseUSD, pow10(int(baseBank.Decimals)))
	if err != nil {
		return 0, err
	}

	requiredUSD, err := Mul(baseUSD, baseBank.LiabilityWeightInit)
	if err != nil {
		return 0, err
	}
	requiredUSD, err = Div(requiredUSD, effectiveWeight)
	if err != nil {
		return 0, err
	}

	requiredQuote, err := Mul(requiredUSD, pow10(int(quoteBank.Decimals)))
	if err != nil {
		return 0, err
	}
	requiredQuote, err = Div(requiredQuote, pQuoteUSD)
	if err != nil {
		return 0, err
	}

	return requiredQuote.ToU64Ceil()
}
