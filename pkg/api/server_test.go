package api

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/nixlabs/nix-engine/pkg/nix/external"
	"github.com/nixlabs/nix-engine/pkg/nix/ident"
	"github.com/nixlabs/nix-engine/pkg/nix/instruction"
	"github.com/nixlabs/nix-engine/pkg/nix/matching"
	"github.com/nixlabs/nix-engine/pkg/nix/quantities"
	"github.com/nixlabs/nix-engine/pkg/nix/runtime"
	"github.com/nixlabs/nix-engine/pkg/nix/state"
)

func newTestServer(t *testing.T) (*Server, *runtime.Engine) {
	t.Helper()
	engine := runtime.NewEngine(zap.NewNop(), runtime.NewManualSlotClock(0))
	dispatcher := runtime.NewDispatcher(engine)
	go dispatcher.Run(t.Context())
	return NewServer(engine, dispatcher), engine
}

func installTestMarket(t *testing.T, engine *runtime.Engine) *state.Market {
	t.Helper()
	bankA := ident.FromHex("0xA0")
	bankB := ident.FromHex("0xB0")
	m := state.NewMarket(
		ident.FromHex("0xM1"), ident.FromHex("0xBASE"), ident.FromHex("0xQUOTE"),
		bankA, bankB, 6, 6,
		state.MarketFee{Admin: ident.FromHex("0xAD")},
	)
	engine.InstallMarket(m)
	engine.InstallLoans(state.NewMarketLoans(m.Address))

	mm := external.NewMockMoneyMarket()
	one := quantities.FromU64(1)
	bank := quantities.Bank{AssetShareValue: one, LiabilityShareValue: one, AssetWeightInit: one, LiabilityWeightInit: one, Decimals: 6}
	mm.SetBank(bankA, bank)
	mm.SetBank(bankB, bank)
	oracle := external.NewMockOracle()
	oracle.SetPrice(bankA, one)
	oracle.SetPrice(bankB, one)
	engine.SetExternals(m.Address, matching.Externals{
		MoneyMarket:   mm,
		Oracle:        oracle,
		TokenTransfer: external.NewMockTokenTransferer(),
		BaseBinding:   external.Binding{Bank: bankA},
		QuoteBinding:  external.Binding{Bank: bankB},
	})
	return m
}

func TestHandleHealth(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if w.Code != 200 {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("status field = %q, want ok", body["status"])
	}
}

func TestHandleGetMarketNotFound(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest("GET", "/v1/market/0x99", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if w.Code != 404 {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestHandleGetMarketFound(t *testing.T) {
	s, engine := newTestServer(t)
	m := installTestMarket(t, engine)

	req := httptest.NewRequest("GET", "/v1/market/"+m.Address.Hex(), nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if w.Code != 200 {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var view MarketView
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if view.DecimalsA != 6 {
		t.Fatalf("DecimalsA = %d, want 6", view.DecimalsA)
	}
}

func TestHandleGetBookEmptyMarket(t *testing.T) {
	s, engine := newTestServer(t)
	m := installTestMarket(t, engine)

	req := httptest.NewRequest("GET", "/v1/market/"+m.Address.Hex()+"/book", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if w.Code != 200 {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var view BookView
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(view.BidsA) != 0 || len(view.AsksA) != 0 {
		t.Fatal("expected an empty book for a freshly installed market")
	}
}

func TestHandleSubmitInstructionRejectsBadSignature(t *testing.T) {
	s, engine := newTestServer(t)
	installTestMarket(t, engine)

	payload := instruction.ClaimSeatPayload{Market: ident.FromHex("0xM1"), Trader: ident.FromHex("0x01")}
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("json.Marshal: %v", err)
	}
	env := instruction.Envelope{Tag: instruction.TagClaimSeat, Payload: raw, Signature: []byte("not a real signature")}
	body, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("json.Marshal envelope: %v", err)
	}

	req := httptest.NewRequest("POST", "/v1/instruction", bytes.NewReader(body))
	w := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		s.router.ServeHTTP(w, req)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for the submit-instruction handler")
	}

	var resp InstructionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if resp.Error == "" {
		t.Fatal("expected a bad-signature claim-seat submission to report an error")
	}
}
