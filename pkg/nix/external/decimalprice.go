package external

import (
	"fmt"
	"math/big"

	"github.com/nixlabs/nix-engine/pkg/nix/quantities"
	"github.com/shopspring/decimal"
)

// DecimalPrice wraps a shopspring/decimal value for USD prices as reported
// by an oracle adapter, before conversion into the engine's internal
// Q80_48 binary fixed point. Oracle feeds (Pyth/Switchboard in the
// originating protocol) report prices as a base-10 mantissa/exponent pair,
// which decimal.Decimal represents exactly — a real ecosystem type rather
// than a second hand-rolled fixed-point implementation (see DESIGN.md).
type DecimalPrice struct {
	Value decimal.Decimal
}

// NewDecimalPrice builds a DecimalPrice from a mantissa and base-10
// exponent, mirroring how Pyth/Switchboard adapters report prices.
func NewDecimalPrice(mantissa int64, exponent int32) DecimalPrice {
	return DecimalPrice{Value: decimal.New(mantissa, exponent)}
}

// ToQ80_48 converts the decimal price into the engine's internal
// fixed-point representation, erroring if the value cannot be represented.
func (d DecimalPrice) ToQ80_48() (quantities.Q80_48, error) {
	if d.Value.Sign() < 0 {
		return quantities.Q80_48{}, fmt.Errorf("external: oracle price must not be negative")
	}
	twoPow48 := decimal.NewFromBigInt(new(big.Int).Lsh(big.NewInt(1), quantities.Frac), 0)
	raw := d.Value.Mul(twoPow48).Round(0).BigInt()
	return quantities.FromRawBigInt(raw)
}
