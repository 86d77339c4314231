// Package runtime implements the single-goroutine instruction engine that
// owns every market, loan ledger, and global liquidity pool in the process,
// mirroring pkg/app/perp/app.go's apply-one-transaction-at-a-time state
// machine but routing to the lending-market instruction tags instead of
// perp order/cancel.
package runtime

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/nixlabs/nix-engine/pkg/nix/external"
	"github.com/nixlabs/nix-engine/pkg/nix/ident"
	"github.com/nixlabs/nix-engine/pkg/nix/instruction"
	"github.com/nixlabs/nix-engine/pkg/nix/matching"
	"github.com/nixlabs/nix-engine/pkg/nix/nixerr"
	"github.com/nixlabs/nix-engine/pkg/nix/quantities"
	"github.com/nixlabs/nix-engine/pkg/nix/rbtree"
	"github.com/nixlabs/nix-engine/pkg/nix/state"
	"github.com/nixlabs/nix-engine/pkg/nixlog"
)

// Result is what one dispatched instruction produced, flattened across all
// nine tags so callers (the HTTP layer, tests) have a single return shape.
type Result struct {
	Tag      instruction.Tag
	Market   ident.ID
	PlaceOrder *matching.PlaceOrderResult
	Err      error
}

// Engine owns every account buffer the process has loaded: markets, their
// companion loan ledgers, and mint-scoped global pools, plus the per-market
// external collaborators (money market, oracle, transfer, authority) the
// matching engine needs. Every method here assumes single-goroutine
// exclusive access — Dispatcher is the only intended caller.
type Engine struct {
	log   *zap.Logger
	clock SlotClock

	markets   map[ident.ID]*state.Market
	loans     map[ident.ID]*state.MarketLoans
	globals   map[ident.ID]*state.Global
	externals map[ident.ID]matching.Externals
	domain    instruction.Domain
}

// NewEngine constructs an empty engine. Each market it creates or installs
// gets a NewMockExternals bundle until SetExternals replaces it (tests
// substitute configured external.Mock* collaborators this way).
func NewEngine(log *zap.Logger, clock SlotClock) *Engine {
	return &Engine{
		log:       log,
		clock:     clock,
		markets:   make(map[ident.ID]*state.Market),
		loans:     make(map[ident.ID]*state.MarketLoans),
		globals:   make(map[ident.ID]*state.Global),
		externals: make(map[ident.ID]matching.Externals),
		domain:    instruction.DefaultDomain(),
	}
}

// NewMockExternals assembles a matching.Externals bundle backed entirely by
// pkg/nix/external's deterministic in-memory fakes, the default wiring a
// freshly created market gets until a caller installs a real one via
// SetExternals.
func NewMockExternals(baseBinding, quoteBinding external.Binding) matching.Externals {
	return matching.Externals{
		MoneyMarket:     external.NewMockMoneyMarket(),
		Oracle:          external.NewMockOracle(),
		TokenTransfer:   external.NewMockTokenTransferer(),
		AuthorityProver: external.MockAuthorityProver{},
		BaseBinding:     baseBinding,
		QuoteBinding:    quoteBinding,
	}
}

// SetExternals installs the Externals bundle a market's PlaceOrder calls
// will use going forward.
func (e *Engine) SetExternals(market ident.ID, ext matching.Externals) {
	e.externals[market] = ext
}

// InstallMarket registers a market loaded from persistence, wiring default
// mock externals if none have been installed for it yet.
func (e *Engine) InstallMarket(m *state.Market) {
	e.markets[m.Address] = m
	if _, ok := e.externals[m.Address]; !ok {
		e.externals[m.Address] = NewMockExternals(
			external.Binding{Bank: m.BankA},
			external.Binding{Bank: m.BankB},
		)
	}
}

// InstallLoans registers a loan ledger loaded from persistence.
func (e *Engine) InstallLoans(l *state.MarketLoans) { e.loans[l.Market] = l }

// InstallGlobal registers a global liquidity pool loaded from persistence.
func (e *Engine) InstallGlobal(g *state.Global) { e.globals[g.Mint] = g }

// Market returns the market with the given address, or nil if unknown.
func (e *Engine) Market(address ident.ID) *state.Market { return e.markets[address] }

// MarketLoans returns the loan ledger for the given market, or nil if
// unknown.
func (e *Engine) MarketLoans(market ident.ID) *state.MarketLoans { return e.loans[market] }

// Global returns the global pool for the given mint, or nil if unknown.
func (e *Engine) Global(mint ident.ID) *state.Global { return e.globals[mint] }

// Externals returns the external collaborator bundle installed for market,
// for read-only callers (the API layer's book aggregation) that need a
// Bank snapshot without going through Apply.
func (e *Engine) Externals(market ident.ID) (matching.Externals, bool) {
	ext, ok := e.externals[market]
	return ext, ok
}

// Markets returns every market address currently loaded, for API listing.
func (e *Engine) Markets() []ident.ID {
	out := make([]ident.ID, 0, len(e.markets))
	for id := range e.markets {
		out = append(out, id)
	}
	return out
}

// Globals returns every global pool's mint currently loaded, for periodic
// persistence sweeps.
func (e *Engine) Globals() []ident.ID {
	out := make([]ident.ID, 0, len(e.globals))
	for id := range e.globals {
		out = append(out, id)
	}
	return out
}

// Apply decodes env per its tag, verifies the appropriate signature, and
// dispatches to the matching state mutation. It is the dispatcher's only
// entry point into engine state.
func (e *Engine) Apply(ctx context.Context, env instruction.Envelope) Result {
	res := Result{Tag: env.Tag}
	var err error
	switch env.Tag {
	case instruction.TagCreateMarket:
		err = e.applyCreateMarket(env, &res)
	case instruction.TagCreateMarketLoanAccount:
		err = e.applyCreateMarketLoanAccount(env, &res)
	case instruction.TagClaimSeat:
		err = e.applyClaimSeat(env, &res)
	case instruction.TagDeposit:
		err = e.applyDeposit(env, &res)
	case instruction.TagGlobalCreate:
		err = e.applyGlobalCreate(env, &res)
	case instruction.TagGlobalAddTrader:
		err = e.applyGlobalAddTrader(env, &res)
	case instruction.TagGlobalDeposit:
		err = e.applyGlobalDeposit(env, &res)
	case instruction.TagPlaceOrder:
		err = e.applyPlaceOrder(ctx, env, &res)
	case instruction.TagCancelOrder:
		err = e.applyCancelOrder(env, &res)
	default:
		err = fmt.Errorf("runtime: unknown instruction tag %d", env.Tag)
	}
	if err != nil {
		res.Err = err
		if nerr, ok := err.(*nixerr.Error); ok {
			nixlog.Err(e.log, env.Tag.String(), uint32(nerr.Code), err)
		} else {
			e.log.Error(env.Tag.String(), zap.Error(err))
		}
	}
	return res
}

func (e *Engine) applyCreateMarket(env instruction.Envelope, res *Result) error {
	var p instruction.CreateMarketPayload
	if err := env.Decode(&p); err != nil {
		return err
	}
	ok, err := instruction.VerifyAdminSignature(env.Tag, p, env.Signature, p.Admin.Address())
	if err != nil || !ok {
		return signatureError(env.Tag, err)
	}
	if _, exists := e.markets[p.Market]; exists {
		return fmt.Errorf("runtime: market %s already created", p.Market)
	}
	fee := state.MarketFee{
		ProtocolFeeBps: p.ProtocolFeeBps,
		LTVBufferBps:   p.LTVBufferBps,
		FeeReceiverA:   p.FeeReceiverA,
		FeeReceiverB:   p.FeeReceiverB,
		Admin:          p.Admin,
	}
	m := state.NewMarket(p.Market, p.MintA, p.MintB, p.BankA, p.BankB, p.DecimalsA, p.DecimalsB, fee)
	e.markets[p.Market] = m
	e.externals[p.Market] = NewMockExternals(
		external.Binding{Bank: p.BankA},
		external.Binding{Bank: p.BankB},
	)
	res.Market = p.Market
	return nil
}

func (e *Engine) applyCreateMarketLoanAccount(env instruction.Envelope, res *Result) error {
	var p instruction.CreateMarketLoanAccountPayload
	if err := env.Decode(&p); err != nil {
		return err
	}
	m, ok := e.markets[p.Market]
	if !ok {
		return fmt.Errorf("runtime: no market %s", p.Market)
	}
	ok2, err := instruction.VerifyAdminSignature(env.Tag, p, env.Signature, m.Fee.Admin.Address())
	if err != nil || !ok2 {
		return signatureError(env.Tag, err)
	}
	if _, exists := e.loans[p.Market]; exists {
		return fmt.Errorf("runtime: loan ledger for market %s already created", p.Market)
	}
	e.loans[p.Market] = state.NewMarketLoans(p.Market)
	res.Market = p.Market
	return nil
}

func (e *Engine) applyClaimSeat(env instruction.Envelope, res *Result) error {
	var p instruction.ClaimSeatPayload
	if err := env.Decode(&p); err != nil {
		return err
	}
	ok, err := instruction.VerifyAdminSignature(env.Tag, p, env.Signature, p.Trader.Address())
	if err != nil || !ok {
		return signatureError(env.Tag, err)
	}
	m, ok2 := e.markets[p.Market]
	if !ok2 {
		return fmt.Errorf("runtime: no market %s", p.Market)
	}
	_, err = m.ClaimSeat(p.Trader)
	res.Market = p.Market
	return err
}

func (e *Engine) applyDeposit(env instruction.Envelope, res *Result) error {
	var p instruction.DepositPayload
	if err := env.Decode(&p); err != nil {
		return err
	}
	ok, err := instruction.VerifyAdminSignature(env.Tag, p, env.Signature, p.Trader.Address())
	if err != nil || !ok {
		return signatureError(env.Tag, err)
	}
	m, ok2 := e.markets[p.Market]
	if !ok2 {
		return fmt.Errorf("runtime: no market %s", p.Market)
	}
	slot := m.SeatByTrader(p.Trader)
	if slot == rbtree.Nil {
		return nixerr.New(nixerr.InvalidMarketParameters, "trader %s has no claimed seat on market %s", p.Trader, p.Market)
	}
	ext, ok3 := e.externals[p.Market]
	if !ok3 {
		return fmt.Errorf("runtime: no external bindings for market %s", p.Market)
	}
	binding := ext.QuoteBinding
	if p.IsSideA {
		binding = ext.BaseBinding
	}
	bank, err := ext.MoneyMarket.Bank(context.Background(), binding)
	if err != nil {
		return err
	}
	shares, err := quantities.TokensToAssetShares(p.AmountAtoms, bank)
	if err != nil {
		return err
	}
	seat := m.Seat(slot)
	res.Market = p.Market
	return seat.Deposit(shares, p.IsSideA)
}

func (e *Engine) applyGlobalCreate(env instruction.Envelope, res *Result) error {
	var p instruction.GlobalCreatePayload
	if err := env.Decode(&p); err != nil {
		return err
	}
	if _, exists := e.globals[p.Mint]; exists {
		return fmt.Errorf("runtime: global pool for mint %s already created", p.Mint)
	}
	e.globals[p.Mint] = state.NewGlobal(p.Mint, p.Vault)
	return nil
}

func (e *Engine) applyGlobalAddTrader(env instruction.Envelope, res *Result) error {
	var p instruction.GlobalAddTraderPayload
	if err := env.Decode(&p); err != nil {
		return err
	}
	ok, err := instruction.VerifyAdminSignature(env.Tag, p, env.Signature, p.Trader.Address())
	if err != nil || !ok {
		return signatureError(env.Tag, err)
	}
	g, ok2 := e.globals[p.Mint]
	if !ok2 {
		return fmt.Errorf("runtime: no global pool for mint %s", p.Mint)
	}
	return g.AddTrader(p.Trader)
}

func (e *Engine) applyGlobalDeposit(env instruction.Envelope, res *Result) error {
	var p instruction.GlobalDepositPayload
	if err := env.Decode(&p); err != nil {
		return err
	}
	ok, err := instruction.VerifyAdminSignature(env.Tag, p, env.Signature, p.Trader.Address())
	if err != nil || !ok {
		return signatureError(env.Tag, err)
	}
	g, ok2 := e.globals[p.Mint]
	if !ok2 {
		return fmt.Errorf("runtime: no global pool for mint %s", p.Mint)
	}
	return g.Deposit(p.Trader, p.AmountAtoms)
}

func (e *Engine) applyPlaceOrder(ctx context.Context, env instruction.Envelope, res *Result) error {
	var p instruction.PlaceOrderPayload
	if err := env.Decode(&p); err != nil {
		return err
	}
	ok, err := instruction.VerifyPlaceOrderSignature(e.domain, p, env.Signature)
	if err != nil || !ok {
		return signatureError(env.Tag, err)
	}
	m, ok2 := e.markets[p.Market]
	if !ok2 {
		return fmt.Errorf("runtime: no market %s", p.Market)
	}
	loans, ok3 := e.loans[p.Market]
	if !ok3 {
		return fmt.Errorf("runtime: no loan ledger for market %s", p.Market)
	}
	ext, ok4 := e.externals[p.Market]
	if !ok4 {
		return fmt.Errorf("runtime: no external bindings for market %s", p.Market)
	}
	baseMint, _ := m.BaseQuoteMints(p.UseATree)
	var global *state.Global
	if p.OrderType == uint8(state.Global) {
		global = e.globals[baseMint]
	}
	params := matching.PlaceOrderParams{
		TraderSlot:       p.TraderSlot,
		Trader:           ident.FromAddress(p.Owner),
		BaseAtoms:        p.BaseAtoms.Uint64(),
		RateBps:          p.RateBps,
		ReverseSpreadBps: p.ReverseSpreadBps,
		IsBid:            p.IsBid,
		UseATree:         p.UseATree,
		LastValidSlot:    state.Slot(p.LastValidSlot),
		OrderType:        state.OrderType(p.OrderType),
	}
	out, err := matching.PlaceOrder(ctx, e.clock.CurrentSlot(), m, loans, global, ext, params)
	if err != nil {
		return err
	}
	res.Market = p.Market
	res.PlaceOrder = out
	for _, fill := range out.Fills {
		nixlog.Fill(e.log, fill.Market.Hex(), fill.Maker.Hex(), fill.Taker.Hex(), fill.RateBps, fill.BaseAtoms, fill.QuoteAtoms, fill.MakerSeq, fill.TakerSeq, fill.IsMakerGlobal)
	}
	return nil
}

func (e *Engine) applyCancelOrder(env instruction.Envelope, res *Result) error {
	var p instruction.CancelOrderPayload
	if err := env.Decode(&p); err != nil {
		return err
	}
	ok, err := instruction.VerifyCancelOrderSignature(e.domain, p, env.Signature)
	if err != nil || !ok {
		return signatureError(env.Tag, err)
	}
	m, ok2 := e.markets[p.Market]
	if !ok2 {
		return fmt.Errorf("runtime: no market %s", p.Market)
	}
	loans, ok3 := e.loans[p.Market]
	if !ok3 {
		return fmt.Errorf("runtime: no loan ledger for market %s", p.Market)
	}
	trader := ident.FromAddress(p.Owner)
	// A cancelled order's side (and so which mint's global pool, if any, it
	// draws from) isn't known until the scan inside CancelOrder locates it;
	// the market's two mints are the only two candidates, so both are tried.
	global := e.globals[m.MintA]
	if global == nil {
		global = e.globals[m.MintB]
	}
	if err := matching.CancelOrder(m, loans, global, e.clock.CurrentSlot(), trader, p.SequenceNumber.Uint64(), nil); err != nil {
		return err
	}
	nixlog.Cancel(e.log, p.Market.Hex(), trader.Hex(), p.SequenceNumber.Uint64())
	res.Market = p.Market
	return nil
}

func signatureError(tag instruction.Tag, cause error) error {
	if cause != nil {
		return fmt.Errorf("runtime: %s signature verification failed: %w", tag, cause)
	}
	return fmt.Errorf("runtime: %s signature does not match expected signer", tag)
}
