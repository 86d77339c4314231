// Package instruction defines the wire-level instruction envelope and the
// EIP-712-style typed-data signing scheme carried over from
// pkg/crypto/eip712.go, retargeted from the order-book-symbol domain to the
// nine lending-market instruction tags.
package instruction

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	nixcrypto "github.com/nixlabs/nix-engine/pkg/crypto"
	"github.com/nixlabs/nix-engine/pkg/nix/ident"
)

// Tag is the single leading byte identifying an instruction's parameter
// record.
type Tag uint8

const (
	TagCreateMarket             Tag = 0
	TagCreateMarketLoanAccount  Tag = 1
	TagClaimSeat                Tag = 2
	TagDeposit                  Tag = 3
	TagGlobalCreate             Tag = 4
	TagGlobalAddTrader          Tag = 5
	TagGlobalDeposit            Tag = 6
	TagPlaceOrder               Tag = 7
	TagCancelOrder              Tag = 8
)

func (t Tag) String() string {
	switch t {
	case TagCreateMarket:
		return "CreateMarket"
	case TagCreateMarketLoanAccount:
		return "CreateMarketLoanAccount"
	case TagClaimSeat:
		return "ClaimSeat"
	case TagDeposit:
		return "Deposit"
	case TagGlobalCreate:
		return "GlobalCreate"
	case TagGlobalAddTrader:
		return "GlobalAddTrader"
	case TagGlobalDeposit:
		return "GlobalDeposit"
	case TagPlaceOrder:
		return "PlaceOrder"
	case TagCancelOrder:
		return "CancelOrder"
	default:
		return "Unknown"
	}
}

// Domain is the EIP-712 domain separator for this deployment, with the
// standard EIP712Domain fields (name, version, chainId, verifyingContract).
type Domain struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract common.Address
}

// DefaultDomain returns the domain used when signing off-chain.
func DefaultDomain() Domain {
	return Domain{
		Name:              "NixEngine",
		Version:           "1",
		ChainID:           big.NewInt(1337),
		VerifyingContract: common.Address{},
	}
}

// PlaceOrderPayload mirrors the taker-facing fields of the PlaceOrder
// parameter record, rendered for wallet signing.
type PlaceOrderPayload struct {
	Market           ident.ID
	TraderSlot       uint32
	BaseAtoms        *big.Int
	RateBps          uint16
	ReverseSpreadBps uint16
	IsBid            bool
	UseATree         bool
	LastValidSlot    uint32
	OrderType        uint8
	Nonce            *big.Int
	Owner            common.Address
}

// CancelOrderPayload mirrors the CancelOrder parameter record.
type CancelOrderPayload struct {
	Market         ident.ID
	SequenceNumber *big.Int
	Nonce          *big.Int
	Owner          common.Address
}

// CreateMarketPayload mirrors the admin-facing CreateMarket parameter record:
// the two mints, their money-market bank bindings, decimals, and initial fee
// configuration.
type CreateMarketPayload struct {
	Market         ident.ID
	MintA          ident.ID
	MintB          ident.ID
	DecimalsA      uint8
	DecimalsB      uint8
	BankA          ident.ID
	BankB          ident.ID
	ProtocolFeeBps uint16
	LTVBufferBps   uint16
	FeeReceiverA   ident.ID
	FeeReceiverB   ident.ID
	Admin          ident.ID
}

// CreateMarketLoanAccountPayload carries only the market identifier: the
// loan ledger is a bare zero-valued account keyed off its parent market.
type CreateMarketLoanAccountPayload struct {
	Market ident.ID
}

// ClaimSeatPayload registers a trader seat on a market.
type ClaimSeatPayload struct {
	Market ident.ID
	Trader ident.ID
}

// DepositPayload credits a seated trader's withdrawable balance on one side
// of a market.
type DepositPayload struct {
	Market     ident.ID
	Trader     ident.ID
	IsSideA    bool
	AmountAtoms uint64
}

// GlobalCreatePayload initializes a mint-scoped global liquidity pool.
type GlobalCreatePayload struct {
	Mint  ident.ID
	Vault ident.ID
}

// GlobalAddTraderPayload registers a depositor seat on a global pool.
type GlobalAddTraderPayload struct {
	Mint   ident.ID
	Trader ident.ID
}

// GlobalDepositPayload credits a depositor's balance on a global pool.
type GlobalDepositPayload struct {
	Mint        ident.ID
	Trader      ident.ID
	AmountAtoms uint64
}

// Envelope is the wire-level instruction submitted to the dispatcher: a tag
// selecting which of the nine parameter records Payload holds, the raw JSON
// encoding of that record, and the signature authorizing it. Payload is kept
// as raw JSON (rather than a concrete Go type) because the envelope crosses
// the HTTP boundary before its tag is known, the same deferred-decode shape
// pkg/app/core/mempool.ClassifyRaw reads a bare "type" field out of before
// fully parsing a transaction.
type Envelope struct {
	Tag       Tag             `json:"tag"`
	Payload   json.RawMessage `json:"payload"`
	Signature []byte          `json:"signature"`
}

// Decode unmarshals e.Payload into dst.
func (e Envelope) Decode(dst interface{}) error {
	if err := json.Unmarshal(e.Payload, dst); err != nil {
		return fmt.Errorf("instruction: decode %s payload: %w", e.Tag, err)
	}
	return nil
}

// Signer pins the signing implementation to the one used everywhere else
// in this module, so callers never need to import pkg/crypto directly.
type Signer = nixcrypto.Signer

var RecoverAddress = nixcrypto.RecoverAddress

func typedDataTypes() apitypes.Types {
	return apitypes.Types{
		"EIP712Domain": []apitypes.Type{
			{Name: "name", Type: "string"},
			{Name: "version", Type: "string"},
			{Name: "chainId", Type: "uint256"},
			{Name: "verifyingContract", Type: "address"},
		},
		"PlaceOrder": []apitypes.Type{
			{Name: "market", Type: "bytes32"},
			{Name: "traderSlot", Type: "uint32"},
			{Name: "baseAtoms", Type: "uint256"},
			{Name: "rateBps", Type: "uint16"},
			{Name: "reverseSpreadBps", Type: "uint16"},
			{Name: "isBid", Type: "bool"},
			{Name: "useATree", Type: "bool"},
			{Name: "lastValidSlot", Type: "uint32"},
			{Name: "orderType", Type: "uint8"},
			{Name: "nonce", Type: "uint256"},
			{Name: "owner", Type: "address"},
		},
		"CancelOrder": []apitypes.Type{
			{Name: "market", Type: "bytes32"},
			{Name: "sequenceNumber", Type: "uint256"},
			{Name: "nonce", Type: "uint256"},
			{Name: "owner", Type: "address"},
		},
	}
}

func domainMap(d Domain) apitypes.TypedDataDomain {
	return apitypes.TypedDataDomain{
		Name:              d.Name,
		Version:           d.Version,
		ChainId:           (*math.HexOrDecimal256)(d.ChainID),
		VerifyingContract: d.VerifyingContract.Hex(),
	}
}

func digest(domain Domain, primaryType string, message apitypes.TypedDataMessage) ([]byte, error) {
	typedData := apitypes.TypedData{
		Types:       typedDataTypes(),
		PrimaryType: primaryType,
		Domain:      domainMap(domain),
		Message:     message,
	}
	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("instruction: hash domain: %w", err)
	}
	messageHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return nil, fmt.Errorf("instruction: hash message: %w", err)
	}
	raw := []byte(fmt.Sprintf("\x19\x01%s%s", string(domainSeparator), string(messageHash)))
	return gethcrypto.Keccak256Hash(raw).Bytes(), nil
}

// HashPlaceOrder computes the EIP-712 digest a trader signs to authorize a
// PlaceOrder instruction.
func HashPlaceOrder(domain Domain, p PlaceOrderPayload) ([]byte, error) {
	return digest(domain, "PlaceOrder", apitypes.TypedDataMessage{
		"market":           common.BytesToHash(p.Market.Bytes()).Hex(),
		"traderSlot":       fmt.Sprintf("%d", p.TraderSlot),
		"baseAtoms":        p.BaseAtoms.String(),
		"rateBps":          fmt.Sprintf("%d", p.RateBps),
		"reverseSpreadBps": fmt.Sprintf("%d", p.ReverseSpreadBps),
		"isBid":            p.IsBid,
		"useATree":         p.UseATree,
		"lastValidSlot":    fmt.Sprintf("%d", p.LastValidSlot),
		"orderType":        fmt.Sprintf("%d", p.OrderType),
		"nonce":            p.Nonce.String(),
		"owner":            p.Owner.Hex(),
	})
}

// SignPlaceOrder signs a PlaceOrder payload with signer.
func SignPlaceOrder(domain Domain, signer *Signer, p PlaceOrderPayload) ([]byte, error) {
	hash, err := HashPlaceOrder(domain, p)
	if err != nil {
		return nil, err
	}
	return signer.Sign(hash)
}

// VerifyPlaceOrderSignature reports whether signature was produced by
// p.Owner over p.
func VerifyPlaceOrderSignature(domain Domain, p PlaceOrderPayload, signature []byte) (bool, error) {
	hash, err := HashPlaceOrder(domain, p)
	if err != nil {
		return false, err
	}
	recovered, err := RecoverAddress(hash, signature)
	if err != nil {
		return false, err
	}
	return recovered == p.Owner, nil
}

// HashCancelOrder computes the EIP-712 digest a trader signs to authorize a
// CancelOrder instruction.
func HashCancelOrder(domain Domain, c CancelOrderPayload) ([]byte, error) {
	return digest(domain, "CancelOrder", apitypes.TypedDataMessage{
		"market":         common.BytesToHash(c.Market.Bytes()).Hex(),
		"sequenceNumber": c.SequenceNumber.String(),
		"nonce":          c.Nonce.String(),
		"owner":          c.Owner.Hex(),
	})
}

// SignCancelOrder signs a CancelOrder payload with signer.
func SignCancelOrder(domain Domain, signer *Signer, c CancelOrderPayload) ([]byte, error) {
	hash, err := HashCancelOrder(domain, c)
	if err != nil {
		return nil, err
	}
	return signer.Sign(hash)
}

// VerifyCancelOrderSignature reports whether signature was produced by
// c.Owner over c.
func VerifyCancelOrderSignature(domain Domain, c CancelOrderPayload, signature []byte) (bool, error) {
	hash, err := HashCancelOrder(domain, c)
	if err != nil {
		return false, err
	}
	recovered, err := RecoverAddress(hash, signature)
	if err != nil {
		return false, err
	}
	return recovered == c.Owner, nil
}

// AdminDigest hashes an administrative instruction's JSON payload the way
// pkg/app/core/transaction.Verifier.VerifyCancelTransaction hashes its
// cancel payload: a plain Keccak256 over a tagged byte string rather than
// a full EIP-712 typed-data digest, since these seven tags are issued by
// the market admin or an already-seated trader rather than signed from a
// wallet's typed-data prompt.
func AdminDigest(tag Tag, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("instruction: marshal admin payload: %w", err)
	}
	message := append([]byte(fmt.Sprintf("NIX:%s:", tag)), body...)
	return gethcrypto.Keccak256Hash(message).Bytes(), nil
}

// SignAdmin signs an administrative instruction payload with signer.
func SignAdmin(tag Tag, signer *Signer, payload interface{}) ([]byte, error) {
	hash, err := AdminDigest(tag, payload)
	if err != nil {
		return nil, err
	}
	return signer.Sign(hash)
}

// VerifyAdminSignature reports whether signature was produced by expected
// over the Keccak256 digest of payload tagged with tag.
func VerifyAdminSignature(tag Tag, payload interface{}, signature []byte, expected common.Address) (bool, error) {
	hash, err := AdminDigest(tag, payload)
	if err != nil {
		return false, err
	}
	recovered, err := RecoverAddress(hash, signature)
	if err != nil {
		return false, err
	}
	return recovered == expected, nil
}

// PlaceOrderToJSON renders a PlaceOrder payload in the eth_signTypedData_v4
// shape a wallet expects. The API server does not call it.
func PlaceOrderToJSON(domain Domain, p PlaceOrderPayload) (string, error) {
	out := map[string]interface{}{
		"types":       typedDataTypesJSON(),
		"primaryType": "PlaceOrder",
		"domain": map[string]interface{}{
			"name":              domain.Name,
			"version":           domain.Version,
			"chainId":           domain.ChainID.String(),
			"verifyingContract": domain.VerifyingContract.Hex(),
		},
		"message": map[string]interface{}{
			"market":           common.BytesToHash(p.Market.Bytes()).Hex(),
			"traderSlot":       p.TraderSlot,
			"baseAtoms":        p.BaseAtoms.String(),
			"rateBps":          p.RateBps,
			"reverseSpreadBps": p.ReverseSpreadBps,
			"isBid":            p.IsBid,
			"useATree":         p.UseATree,
			"lastValidSlot":    p.LastValidSlot,
			"orderType":        p.OrderType,
			"nonce":            p.Nonce.String(),
			"owner":            p.Owner.Hex(),
		},
	}
	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", fmt.Errorf("instruction: marshal typed data: %w", err)
	}
	return string(b), nil
}

func typedDataTypesJSON() map[string]interface{} {
	types := typedDataTypes()
	out := make(map[string]interface{}, len(types))
	for name, fields := range types {
		rendered := make([]map[string]string, len(fields))
		for i, f := range fields {
			rendered[i] = map[string]string{"name": f.Name, "type": f.Type}
		}
		out[name] = rendered
	}
	return out
}
