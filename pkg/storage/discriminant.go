package storage

import "crypto/sha256"

// Discriminant computes an 8-byte account-type tag the way the originating
// protocol's Anchor framework does: sha256("account:<TypeName>")[0:8],
// grounded in marginfi_utils.rs's discriminator convention. A single Pebble
// keyspace already disambiguates buffer kinds by key prefix, so this tag is
// a defensive second check applied when a record is loaded, not the primary
// dispatch mechanism.
func Discriminant(typeName string) [8]byte {
	sum := sha256.Sum256([]byte("account:" + typeName))
	var out [8]byte
	copy(out[:], sum[:8])
	return out
}

var (
	marketDiscriminant = Discriminant("Market")
	loansDiscriminant  = Discriminant("MarketLoans")
	globalDiscriminant = Discriminant("Global")
)
