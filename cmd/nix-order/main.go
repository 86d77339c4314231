package main

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	"github.com/nixlabs/nix-engine/pkg/crypto"
	"github.com/nixlabs/nix-engine/pkg/nix/ident"
	"github.com/nixlabs/nix-engine/pkg/nix/instruction"
)

func main() {
	fmt.Println("Generating new keypair...")
	signer, err := crypto.GenerateKey()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Address: %s\n", signer.Address().Hex())
	fmt.Printf("Private Key: %s (KEEP SECRET!)\n\n", signer.PrivateKeyHex())

	market := ident.FromHex("0x01")

	payload := instruction.PlaceOrderPayload{
		Market:           market,
		TraderSlot:       1,
		BaseAtoms:        big.NewInt(1_000_000),
		RateBps:          500,
		ReverseSpreadBps: 0,
		IsBid:            true,
		UseATree:         true,
		LastValidSlot:    0,
		OrderType:        0,
		Nonce:            big.NewInt(1),
		Owner:            signer.Address(),
	}

	fmt.Println("PlaceOrder Details:")
	fmt.Printf("  Market: %s\n", payload.Market.Hex())
	fmt.Printf("  BaseAtoms: %s\n", payload.BaseAtoms.String())
	fmt.Printf("  RateBps: %d\n", payload.RateBps)
	fmt.Printf("  IsBid: %v\n", payload.IsBid)
	fmt.Printf("  Owner: %s\n\n", payload.Owner.Hex())

	domain := instruction.DefaultDomain()
	signature, err := instruction.SignPlaceOrder(domain, signer, payload)
	if err != nil {
		fmt.Printf("Error signing: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Signature: 0x%x\n\n", signature)

	rawPayload, err := json.Marshal(payload)
	if err != nil {
		fmt.Printf("Error marshaling payload: %v\n", err)
		os.Exit(1)
	}
	env := instruction.Envelope{
		Tag:       instruction.TagPlaceOrder,
		Payload:   rawPayload,
		Signature: signature,
	}

	envJSON, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		fmt.Printf("Error marshaling envelope: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Signed Envelope (JSON):")
	fmt.Println(string(envJSON))
	fmt.Println()

	fmt.Println("Verifying signature...")
	ok, err := instruction.VerifyPlaceOrderSignature(domain, payload, signature)
	if err != nil {
		fmt.Printf("Error verifying: %v\n", err)
		os.Exit(1)
	}
	if !ok {
		fmt.Println("signature INVALID")
		os.Exit(1)
	}
	fmt.Println("signature valid")

	fmt.Println("\nTo submit this instruction:")
	fmt.Println("  POST http://localhost:8080/v1/instruction")
	fmt.Println("  Content-Type: application/json")
	fmt.Println("  Body:")
	fmt.Println(string(envJSON))
}
