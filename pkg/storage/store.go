// Package storage persists Market, MarketLoans, and Global account buffers
// to a local Pebble database, grounded on pkg/app/core/account/store.go's
// Pebble-based persistence layer.
package storage

import (
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/nixlabs/nix-engine/pkg/nix/ident"
	"github.com/nixlabs/nix-engine/pkg/nix/state"
)

// Store provides Pebble-based persistence for market, loan-ledger, and
// global liquidity accounts. Thread-safe only insofar as Pebble's own
// concurrent Get/Set are; callers orchestrating a read-modify-write cycle
// (e.g. pkg/nix/runtime.Engine) are responsible for serializing it.
type Store struct {
	db *pebble.DB
}

// NewStore opens (creating if absent) a Pebble database at dbPath, tuned the
// way pkg/app/core/account/store.go tunes its options.
func NewStore(dbPath string) (*Store, error) {
	opts := &pebble.Options{
		Cache:                       pebble.NewCache(128 << 20),
		MemTableSize:                64 << 20,
		MaxConcurrentCompactions:    func() int { return 3 },
		L0CompactionThreshold:       2,
		L0StopWritesThreshold:       12,
		LBaseMaxBytes:               64 << 20,
		MaxOpenFiles:                1000,
		BytesPerSync:                512 << 10,
		DisableAutomaticCompactions: false,
	}

	db, err := pebble.Open(dbPath, opts)
	if err != nil {
		return nil, fmt.Errorf("storage: open pebble db at %s: %w", dbPath, err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// SaveMarket persists a market's complete state, including its shared slot
// pool and every tree's root/best cache.
func (s *Store) SaveMarket(m *state.Market) error {
	record, err := encodeRecord(marketDiscriminant, m.Snapshot())
	if err != nil {
		return err
	}
	if err := s.db.Set(marketKey(m.Address), record, pebble.Sync); err != nil {
		return fmt.Errorf("storage: save market %s: %w", m.Address, err)
	}
	return nil
}

// LoadMarket loads a previously saved market, or (nil, nil) if absent.
func (s *Store) LoadMarket(address ident.ID) (*state.Market, error) {
	data, closer, err := s.db.Get(marketKey(address))
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: load market %s: %w", address, err)
	}
	defer closer.Close()

	var snap state.MarketSnapshot
	if err := decodeRecord(data, marketDiscriminant, &snap); err != nil {
		return nil, err
	}
	return state.RestoreMarket(snap), nil
}

// LoadAllMarkets loads every persisted market, keyed by address.
func (s *Store) LoadAllMarkets() (map[ident.ID]*state.Market, error) {
	prefix := marketPrefix()
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: keyUpperBound(prefix)})
	if err != nil {
		return nil, fmt.Errorf("storage: iterate markets: %w", err)
	}
	defer iter.Close()

	out := make(map[ident.ID]*state.Market)
	for iter.First(); iter.Valid(); iter.Next() {
		var snap state.MarketSnapshot
		if err := decodeRecord(iter.Value(), marketDiscriminant, &snap); err != nil {
			continue
		}
		m := state.RestoreMarket(snap)
		out[m.Address] = m
	}
	return out, nil
}

// SaveMarketLoans persists a market's active-loan ledger.
func (s *Store) SaveMarketLoans(l *state.MarketLoans) error {
	record, err := encodeRecord(loansDiscriminant, l.Snapshot())
	if err != nil {
		return err
	}
	if err := s.db.Set(loansKey(l.Market), record, pebble.Sync); err != nil {
		return fmt.Errorf("storage: save loan ledger for market %s: %w", l.Market, err)
	}
	return nil
}

// LoadMarketLoans loads a market's loan ledger, or (nil, nil) if absent.
func (s *Store) LoadMarketLoans(market ident.ID) (*state.MarketLoans, error) {
	data, closer, err := s.db.Get(loansKey(market))
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: load loan ledger for market %s: %w", market, err)
	}
	defer closer.Close()

	var snap state.MarketLoansSnapshot
	if err := decodeRecord(data, loansDiscriminant, &snap); err != nil {
		return nil, err
	}
	return state.RestoreMarketLoans(snap), nil
}

// SaveGlobal persists a mint's global liquidity pool.
func (s *Store) SaveGlobal(g *state.Global) error {
	record, err := encodeRecord(globalDiscriminant, g.Snapshot())
	if err != nil {
		return err
	}
	if err := s.db.Set(globalKey(g.Mint), record, pebble.Sync); err != nil {
		return fmt.Errorf("storage: save global account for mint %s: %w", g.Mint, err)
	}
	return nil
}

// LoadGlobal loads a previously saved global account, or (nil, nil) if
// absent.
func (s *Store) LoadGlobal(mint ident.ID) (*state.Global, error) {
	data, closer, err := s.db.Get(globalKey(mint))
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: load global account for mint %s: %w", mint, err)
	}
	defer closer.Close()

	var snap state.GlobalSnapshot
	if err := decodeRecord(data, globalDiscriminant, &snap); err != nil {
		return nil, err
	}
	return state.RestoreGlobal(snap), nil
}

// LoadAllGlobals loads every persisted global account, keyed by mint.
func (s *Store) LoadAllGlobals() (map[ident.ID]*state.Global, error) {
	prefix := globalPrefix()
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: keyUpperBound(prefix)})
	if err != nil {
		return nil, fmt.Errorf("storage: iterate globals: %w", err)
	}
	defer iter.Close()

	out := make(map[ident.ID]*state.Global)
	for iter.First(); iter.Valid(); iter.Next() {
		var snap state.GlobalSnapshot
		if err := decodeRecord(iter.Value(), globalDiscriminant, &snap); err != nil {
			continue
		}
		g := state.RestoreGlobal(snap)
		out[g.Mint] = g
	}
	return out, nil
}
