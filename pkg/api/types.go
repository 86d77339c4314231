package api

// API response and request types for the REST and WebSocket surface.

// MarketView is a market header's read-only projection: the fields an API
// consumer needs without reaching into the shared slot pool directly.
type MarketView struct {
	Address        string `json:"address"`
	MintA          string `json:"mintA"`
	MintB          string `json:"mintB"`
	DecimalsA      uint8  `json:"decimalsA"`
	DecimalsB      uint8  `json:"decimalsB"`
	ProtocolFeeBps uint16 `json:"protocolFeeBps"`
	LTVBufferBps   uint16 `json:"ltvBufferBps"`
	SeqA           uint64 `json:"seqA"`
	SeqB           uint64 `json:"seqB"`
	VolumeA        uint64 `json:"volumeA"`
	VolumeB        uint64 `json:"volumeB"`
}

// BookLevel is one aggregated rate level: total base atoms resting at
// RateBps across every order at that rate.
type BookLevel struct {
	RateBps   uint16 `json:"rateBps"`
	BaseAtoms uint64 `json:"baseAtoms"`
}

// BookView is the rate-book aggregation of a market's bid/ask levels, with a
// separate level list for each side of each tree pair.
type BookView struct {
	Market string      `json:"market"`
	BidsA  []BookLevel `json:"bidsA"`
	AsksA  []BookLevel `json:"asksA"`
	BidsB  []BookLevel `json:"bidsB"`
	AsksB  []BookLevel `json:"asksB"`
}

// InstructionResponse is returned from POST /v1/instruction once the
// dispatcher has applied the submitted envelope.
type InstructionResponse struct {
	Tag     string `json:"tag"`
	Market  string `json:"market,omitempty"`
	Fills   int    `json:"fills,omitempty"`
	Rested  bool   `json:"rested,omitempty"`
	Error   string `json:"error,omitempty"`
}

// FillEvent is broadcast on GET /ws/fills whenever a PlaceOrder call
// produces one or more fills.
type FillEvent struct {
	Type       string `json:"type"`
	Market     string `json:"market"`
	Maker      string `json:"maker"`
	Taker      string `json:"taker"`
	BaseMint   string `json:"baseMint"`
	QuoteMint  string `json:"quoteMint"`
	RateBps    uint16 `json:"rateBps"`
	BaseAtoms  uint64 `json:"baseAtoms"`
	QuoteAtoms uint64 `json:"quoteAtoms"`
	MakerSeq   uint64 `json:"makerSeq"`
	TakerSeq   uint64 `json:"takerSeq"`
	TakerIsBuy bool   `json:"takerIsBuy"`
}

// WSSubscribeRequest is sent by a client to subscribe to channels.
type WSSubscribeRequest struct {
	Op       string   `json:"op"`       // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"` // e.g. ["fills"]
}

// ErrorResponse is returned for all REST errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
