// Package external declares the narrow interfaces the matching engine uses
// to reach outside its own arenas: token transfer, the money-market
// bundle, oracle pricing, and the market's authority proof. These are
// deliberately thin — the engine treats them as synchronous,
// request/response collaborators with no callbacks and no suspension.
package external

import (
	"context"

	"github.com/nixlabs/nix-engine/pkg/nix/ident"
	"github.com/nixlabs/nix-engine/pkg/nix/quantities"
)

// Binding bundles the identifiers of one side's money-market presence:
// group, bank, the market's own protocol account, the liquidity vault, and
// the vault's signing authority.
type Binding struct {
	Group           ident.ID
	Bank            ident.ID
	ProtocolAccount ident.ID
	LiquidityVault  ident.ID
	VaultAuthority  ident.ID
}

// PriceBias adjusts an oracle read toward the conservative side for the
// caller's purpose.
type PriceBias uint8

const (
	BiasNone PriceBias = iota
	BiasLow
	BiasHigh
)

// PriceType selects between a spot read and a time-weighted read.
type PriceType uint8

const (
	PriceSpot PriceType = iota
	PriceTimeWeighted
)

// TokenTransferer performs SPL-style token movement: Transfer for a plain
// move, TransferChecked for one that also names the mint and its decimals.
// The matching engine carries one in its Externals but calls neither method.
type TokenTransferer interface {
	Transfer(ctx context.Context, from, to ident.ID, amount uint64) error
	TransferChecked(ctx context.Context, from, to, mint ident.ID, amount uint64, decimals uint8) error
}

// MoneyMarket is the external lending protocol the engine converts through
// and calls into for the four borrow-side actions. Each action takes an
// optional mint (non-nil only for extended mints requiring
// TransferChecked semantics downstream) and a variadic, ORDER-SENSITIVE list
// of oracle account identifiers: the ordering is structural (separate
// baseOracles/quoteOracles arguments on the matching-engine side), but the
// bundle itself still accepts them positionally here to match the
// underlying CPI shape.
type MoneyMarket interface {
	Deposit(ctx context.Context, binding Binding, amount uint64, mint *ident.ID, oracles ...ident.ID) error
	Withdraw(ctx context.Context, binding Binding, amount uint64, mint *ident.ID, oracles ...ident.ID) error
	Borrow(ctx context.Context, binding Binding, amount uint64, mint *ident.ID, oracles ...ident.ID) error
	Repay(ctx context.Context, binding Binding, amount uint64, mint *ident.ID, oracles ...ident.ID) error
	Bank(ctx context.Context, binding Binding) (quantities.Bank, error)
}

// OracleReader returns a fixed-point USD price for a bank's configured
// oracle.
type OracleReader interface {
	Price(ctx context.Context, binding Binding, bias PriceBias, kind PriceType) (quantities.Q80_48, error)
}

// AuthorityProver derives the market-signer PDA and its cached bump.
type AuthorityProver interface {
	MarketSigner(market ident.ID) (ident.ID, uint8, error)
}
