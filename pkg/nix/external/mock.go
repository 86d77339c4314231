package external

import (
	"context"
	"sync"

	"github.com/nixlabs/nix-engine/pkg/nix/ident"
	"github.com/nixlabs/nix-engine/pkg/nix/quantities"
)

// MockMoneyMarket is a deterministic, in-memory stand-in for the external
// lending protocol, used by this module's own tests to exercise the engine
// end to end without a real CPI. It tracks per-binding token balances and a
// fixed bank snapshot per bank identifier.
type MockMoneyMarket struct {
	mu       sync.Mutex
	Banks    map[ident.ID]quantities.Bank
	Balances map[ident.ID]uint64 // protocol-account identifier -> atoms
}

// NewMockMoneyMarket constructs an empty mock bound to no banks.
func NewMockMoneyMarket() *MockMoneyMarket {
	return &MockMoneyMarket{
		Banks:    make(map[ident.ID]quantities.Bank),
		Balances: make(map[ident.ID]uint64),
	}
}

// SetBank installs a fixed-point bank snapshot for a bank identifier.
func (m *MockMoneyMarket) SetBank(bank ident.ID, snapshot quantities.Bank) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Banks[bank] = snapshot
}

func (m *MockMoneyMarket) Deposit(ctx context.Context, binding Binding, amount uint64, mint *ident.ID, oracles ...ident.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Balances[binding.ProtocolAccount] += amount
	return nil
}

func (m *MockMoneyMarket) Withdraw(ctx context.Context, binding Binding, amount uint64, mint *ident.ID, oracles ...ident.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Balances[binding.ProtocolAccount] -= amount
	return nil
}

func (m *MockMoneyMarket) Borrow(ctx context.Context, binding Binding, amount uint64, mint *ident.ID, oracles ...ident.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Balances[binding.ProtocolAccount] += amount
	return nil
}

func (m *MockMoneyMarket) Repay(ctx context.Context, binding Binding, amount uint64, mint *ident.ID, oracles ...ident.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Balances[binding.ProtocolAccount] -= amount
	return nil
}

func (m *MockMoneyMarket) Bank(ctx context.Context, binding Binding) (quantities.Bank, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Banks[binding.Bank], nil
}

// MockOracle returns a fixed price per binding, set by the test.
type MockOracle struct {
	mu     sync.Mutex
	Prices map[ident.ID]quantities.Q80_48 // keyed by Binding.Bank
}

func NewMockOracle() *MockOracle {
	return &MockOracle{Prices: make(map[ident.ID]quantities.Q80_48)}
}

func (o *MockOracle) SetPrice(bank ident.ID, price quantities.Q80_48) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Prices[bank] = price
}

func (o *MockOracle) Price(ctx context.Context, binding Binding, bias PriceBias, kind PriceType) (quantities.Q80_48, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.Prices[binding.Bank], nil
}

// MockTokenTransferer is a no-op ledger-less token mover: the engine's own
// tests assert on seat/global balances, not on vault token movement, so
// this simply records call counts for assertions that care.
type MockTokenTransferer struct {
	mu     sync.Mutex
	Calls  int
}

func NewMockTokenTransferer() *MockTokenTransferer { return &MockTokenTransferer{} }

func (t *MockTokenTransferer) Transfer(ctx context.Context, from, to ident.ID, amount uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Calls++
	return nil
}

func (t *MockTokenTransferer) TransferChecked(ctx context.Context, from, to, mint ident.ID, amount uint64, decimals uint8) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Calls++
	return nil
}

// MockAuthorityProver derives a deterministic signer without a real bump
// search, sufficient for tests.
type MockAuthorityProver struct{}

func (MockAuthorityProver) MarketSigner(market ident.ID) (ident.ID, uint8, error) {
	return ident.Derive("market-signer", market), 255, nil
}
