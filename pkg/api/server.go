package api

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/nixlabs/nix-engine/pkg/nix/ident"
	"github.com/nixlabs/nix-engine/pkg/nix/instruction"
	"github.com/nixlabs/nix-engine/pkg/nix/quantities"
	"github.com/nixlabs/nix-engine/pkg/nix/runtime"
	"github.com/nixlabs/nix-engine/pkg/nix/state"
)

// Server exposes the runtime Dispatcher/Engine over HTTP and websocket.
type Server struct {
	engine     *runtime.Engine
	dispatcher *runtime.Dispatcher
	router     *mux.Router
	hub        *Hub
}

// NewServer wires a Server around an already-running dispatcher.
func NewServer(engine *runtime.Engine, dispatcher *runtime.Dispatcher) *Server {
	s := &Server{
		engine:     engine,
		dispatcher: dispatcher,
		router:     mux.NewRouter(),
		hub:        NewHub(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	v1 := s.router.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/instruction", s.handleSubmitInstruction).Methods("POST")
	v1.HandleFunc("/market/{id}", s.handleGetMarket).Methods("GET")
	v1.HandleFunc("/market/{id}/book", s.handleGetBook).Methods("GET")

	s.router.HandleFunc("/ws/fills", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start runs the websocket hub and blocks serving HTTP on addr.
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:3001"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	handler := c.Handler(s.router)
	log.Printf("[api] server starting on %s", addr)
	return http.ListenAndServe(addr, handler)
}

func (s *Server) handleSubmitInstruction(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read body", err.Error())
		return
	}

	var env instruction.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		respondError(w, http.StatusBadRequest, "invalid instruction envelope", err.Error())
		return
	}

	resultCh := s.dispatcher.Submit(env)

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	select {
	case res := <-resultCh:
		s.broadcastFills(res)
		respondJSON(w, toInstructionResponse(res))
	case <-ctx.Done():
		respondError(w, http.StatusGatewayTimeout, "dispatcher did not respond in time", "")
	}
}

func (s *Server) broadcastFills(res runtime.Result) {
	if res.PlaceOrder == nil {
		return
	}
	for _, fill := range res.PlaceOrder.Fills {
		s.hub.BroadcastToChannel("fills", FillEvent{
			Type:       "fill",
			Market:     fill.Market.Hex(),
			Maker:      fill.Maker.Hex(),
			Taker:      fill.Taker.Hex(),
			BaseMint:   fill.BaseMint.Hex(),
			QuoteMint:  fill.QuoteMint.Hex(),
			RateBps:    fill.RateBps,
			BaseAtoms:  fill.BaseAtoms,
			QuoteAtoms: fill.QuoteAtoms,
			MakerSeq:   fill.MakerSeq,
			TakerSeq:   fill.TakerSeq,
			TakerIsBuy: fill.TakerIsBuy,
		})
	}
}

func (s *Server) handleGetMarket(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	m := s.engine.Market(ident.FromHex(id))
	if m == nil {
		respondError(w, http.StatusNotFound, "market not found", id)
		return
	}
	respondJSON(w, MarketView{
		Address:        m.Address.Hex(),
		MintA:          m.MintA.Hex(),
		MintB:          m.MintB.Hex(),
		DecimalsA:      m.DecimalsA,
		DecimalsB:      m.DecimalsB,
		ProtocolFeeBps: m.Fee.ProtocolFeeBps,
		LTVBufferBps:   m.Fee.LTVBufferBps,
		SeqA:           m.SeqA,
		SeqB:           m.SeqB,
		VolumeA:        m.VolumeA,
		VolumeB:        m.VolumeB,
	})
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	marketID := ident.FromHex(id)
	m := s.engine.Market(marketID)
	if m == nil {
		respondError(w, http.StatusNotFound, "market not found", id)
		return
	}
	ext, ok := s.engine.Externals(marketID)
	if !ok {
		respondError(w, http.StatusInternalServerError, "no external bindings for market", id)
		return
	}
	baseBankA, err := ext.MoneyMarket.Bank(r.Context(), ext.BaseBinding)
	if err != nil {
		respondError(w, http.StatusBadGateway, "failed to read base bank", err.Error())
		return
	}
	quoteBankB, err := ext.MoneyMarket.Bank(r.Context(), ext.QuoteBinding)
	if err != nil {
		respondError(w, http.StatusBadGateway, "failed to read quote bank", err.Error())
		return
	}
	respondJSON(w, BookView{
		Market: m.Address.Hex(),
		BidsA:  aggregateLevels(m.BidsA, m, baseBankA),
		AsksA:  aggregateLevels(m.AsksA, m, baseBankA),
		BidsB:  aggregateLevels(m.BidsB, m, quoteBankB),
		AsksB:  aggregateLevels(m.AsksB, m, quoteBankB),
	})
}

// aggregateLevels walks a single rate tree, accumulating the base-atom size
// resting at each rate, the same walk pattern matching.EvictExpired and
// matching.CleanUnbacked use to scan a tree's payloads by index.
func aggregateLevels(tree interface {
	Walk(func(idx uint32) bool)
}, m *state.Market, bank quantities.Bank) []BookLevel {
	totals := make(map[uint16]uint64)
	var rates []uint16
	tree.Walk(func(idx uint32) bool {
		order := m.Order(idx)
		atoms, err := order.NumBaseAtoms(bank)
		if err != nil {
			return true
		}
		if _, seen := totals[order.RateBps]; !seen {
			rates = append(rates, order.RateBps)
		}
		totals[order.RateBps] += atoms
		return true
	})
	out := make([]BookLevel, 0, len(rates))
	for _, rate := range rates {
		out = append(out, BookLevel{RateBps: rate, BaseAtoms: totals[rate]})
	}
	return out
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, errMsg string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: errMsg, Message: message})
}

func toInstructionResponse(res runtime.Result) InstructionResponse {
	out := InstructionResponse{Tag: res.Tag.String(), Market: res.Market.Hex()}
	if res.Err != nil {
		out.Error = res.Err.Error()
		return out
	}
	if res.PlaceOrder != nil {
		out.Fills = len(res.PlaceOrder.Fills)
		out.Rested = res.PlaceOrder.Rested
	}
	return out
}
