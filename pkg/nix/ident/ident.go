// Package ident provides the 32-byte identifier type used for markets,
// mints, traders, vaults, and every other account-shaped reference the
// engine holds, plus the PDA-style derivation helper used to bind a seed to
// a deterministic identifier.
package ident

import (
	"encoding/hex"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ID is a 32-byte identifier — wide enough for an account address, not just
// a 20-byte EVM address, matching the width the originating protocol uses
// for every on-chain pubkey.
type ID common.Hash

// Zero is the sentinel identifier used, among other things, as the
// lender-of-record on a loan created by canceling a resting bid.
var Zero ID

// FromBytes builds an ID from a byte slice, left-padding with zeros if short
// and truncating if long (mirrors common.BytesToHash).
func FromBytes(b []byte) ID {
	return ID(common.BytesToHash(b))
}

// FromHex parses a 0x-prefixed or bare hex string into an ID.
func FromHex(s string) ID {
	return ID(common.HexToHash(s))
}

func (id ID) Bytes() []byte { return common.Hash(id).Bytes() }

func (id ID) Hex() string { return common.Hash(id).Hex() }

func (id ID) String() string { return id.Hex() }

func (id ID) IsZero() bool { return id == Zero }

// Address returns the low 20 bytes of id as an Ethereum-style address — the
// secp256k1-derived address a trader's ID doubles as.
func (id ID) Address() common.Address {
	return common.BytesToAddress(id.Bytes())
}

// FromAddress widens a 20-byte address back into an ID by left-padding with
// zeros, the inverse of Address.
func FromAddress(addr common.Address) ID {
	return FromBytes(addr.Bytes())
}

// MarshalText renders the identifier as a 0x-prefixed hex string, so JSON
// and other text-based encoders (including the API surface's envelopes)
// never see the raw 32-byte array.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.Hex()), nil
}

// UnmarshalText parses the 0x-prefixed hex string produced by MarshalText.
func (id *ID) UnmarshalText(text []byte) error {
	*id = FromHex(string(text))
	return nil
}

// Derive computes a PDA-style identifier as keccak256(seed || parts...),
// the nearest Go-ecosystem analog to find_program_address using a hash
// primitive already present in the dependency graph. Order of parts matters
// and must match every caller deriving the same seed.
func Derive(seed string, parts ...ID) ID {
	buf := make([]byte, 0, len(seed)+len(parts)*32)
	buf = append(buf, []byte(seed)...)
	for _, p := range parts {
		buf = append(buf, p.Bytes()...)
	}
	return ID(crypto.Keccak256Hash(buf))
}

// MustFromHexString is a convenience used by CLI/config code paths where a
// malformed identifier is a configuration error worth failing fast on.
func MustFromHexString(s string) ID {
	b, err := hex.DecodeString(trimHexPrefix(s))
	if err != nil {
		panic(err)
	}
	return FromBytes(b)
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
