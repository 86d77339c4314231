package storage

import (
	"fmt"

	"github.com/nixlabs/nix-engine/pkg/nix/ident"
)

// Pebble key schema for the three persisted account buffers. Design
// principles mirror pkg/app/core/account/keys.go: prefix-based for range
// scans, the account's own identifier as the primary key.

const (
	prefixMarket = "mkt:" // Market header + shared slot pool snapshot
	prefixLoans  = "ln:"  // MarketLoans ledger snapshot, one per market
	prefixGlobal = "gbl:" // Global liquidity pool snapshot, one per mint
)

func marketKey(market ident.ID) []byte {
	return []byte(fmt.Sprintf("%s%s", prefixMarket, market.Hex()))
}

func loansKey(market ident.ID) []byte {
	return []byte(fmt.Sprintf("%s%s", prefixLoans, market.Hex()))
}

func globalKey(mint ident.ID) []byte {
	return []byte(fmt.Sprintf("%s%s", prefixGlobal, mint.Hex()))
}

func marketPrefix() []byte { return []byte(prefixMarket) }
func globalPrefix() []byte { return []byte(prefixGlobal) }

// keyUpperBound returns the exclusive upper bound for a prefix scan
// (pkg/app/core/account/keys.go's keyUpperBound, unchanged).
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
