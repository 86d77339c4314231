package instruction

import (
	"encoding/json"
	"math/big"
	"testing"

	nixcrypto "github.com/nixlabs/nix-engine/pkg/crypto"
	"github.com/nixlabs/nix-engine/pkg/nix/ident"
)

func testSigner(t *testing.T) *Signer {
	t.Helper()
	signer, err := nixcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	return signer
}

func TestPlaceOrderSignVerifyRoundTrip(t *testing.T) {
	signer := testSigner(t)
	domain := DefaultDomain()
	payload := PlaceOrderPayload{
		Market:     ident.FromHex("0x01"),
		TraderSlot: 1,
		BaseAtoms:  big.NewInt(1_000_000),
		RateBps:    500,
		IsBid:      true,
		UseATree:   true,
		Nonce:      big.NewInt(1),
		Owner:      signer.Address(),
	}
	sig, err := SignPlaceOrder(domain, signer, payload)
	if err != nil {
		t.Fatalf("SignPlaceOrder: %v", err)
	}
	ok, err := VerifyPlaceOrderSignature(domain, payload, sig)
	if err != nil {
		t.Fatalf("VerifyPlaceOrderSignature: %v", err)
	}
	if !ok {
		t.Fatal("expected signature to verify")
	}
}

func TestPlaceOrderSignatureRejectsTamperedPayload(t *testing.T) {
	signer := testSigner(t)
	domain := DefaultDomain()
	payload := PlaceOrderPayload{
		Market:    ident.FromHex("0x01"),
		BaseAtoms: big.NewInt(1_000_000),
		RateBps:   500,
		IsBid:     true,
		UseATree:  true,
		Nonce:     big.NewInt(1),
		Owner:     signer.Address(),
	}
	sig, err := SignPlaceOrder(domain, signer, payload)
	if err != nil {
		t.Fatalf("SignPlaceOrder: %v", err)
	}
	payload.RateBps = 600
	ok, err := VerifyPlaceOrderSignature(domain, payload, sig)
	if err != nil {
		t.Fatalf("VerifyPlaceOrderSignature: %v", err)
	}
	if ok {
		t.Fatal("expected signature verification to fail after tampering")
	}
}

func TestCancelOrderSignVerifyRoundTrip(t *testing.T) {
	signer := testSigner(t)
	domain := DefaultDomain()
	payload := CancelOrderPayload{
		Market:         ident.FromHex("0x02"),
		SequenceNumber: big.NewInt(7),
		Nonce:          big.NewInt(1),
		Owner:          signer.Address(),
	}
	sig, err := SignCancelOrder(domain, signer, payload)
	if err != nil {
		t.Fatalf("SignCancelOrder: %v", err)
	}
	ok, err := VerifyCancelOrderSignature(domain, payload, sig)
	if err != nil {
		t.Fatalf("VerifyCancelOrderSignature: %v", err)
	}
	if !ok {
		t.Fatal("expected cancel signature to verify")
	}
}

func TestAdminDigestSignVerifyRoundTrip(t *testing.T) {
	signer := testSigner(t)
	payload := ClaimSeatPayload{
		Market: ident.FromHex("0x03"),
		Trader: ident.FromAddress(signer.Address()),
	}
	sig, err := SignAdmin(TagClaimSeat, signer, payload)
	if err != nil {
		t.Fatalf("SignAdmin: %v", err)
	}
	ok, err := VerifyAdminSignature(TagClaimSeat, payload, sig, signer.Address())
	if err != nil {
		t.Fatalf("VerifyAdminSignature: %v", err)
	}
	if !ok {
		t.Fatal("expected admin signature to verify")
	}
}

func TestEnvelopeDecode(t *testing.T) {
	payload := ClaimSeatPayload{Market: ident.FromHex("0x04"), Trader: ident.FromHex("0x05")}
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("json.Marshal: %v", err)
	}
	env := Envelope{Tag: TagClaimSeat, Payload: raw}
	var got ClaimSeatPayload
	if err := env.Decode(&got); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Market != payload.Market || got.Trader != payload.Trader {
		t.Fatalf("decoded payload mismatch: %+v != %+v", got, payload)
	}
}
