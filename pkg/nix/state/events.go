package state

import "github.com/nixlabs/nix-engine/pkg/nix/ident"

// The event structs below describe the engine's emitted events. Of these,
// only fills are logged through nixlog and broadcast on the API websocket
// hub; global cleanups are returned in the place-order result.

type CreateMarketEvent struct {
	Market         ident.ID
	MintA, MintB   ident.ID
	ProtocolFeeBps uint16
	LTVBufferBps   uint16
}

type CreateMarketLoanAccountEvent struct {
	Market ident.ID
}

type ClaimSeatEvent struct {
	Market ident.ID
	Trader ident.ID
	Index  uint32
}

type GlobalCreateEvent struct {
	Mint ident.ID
}

type GlobalAddTraderEvent struct {
	Mint     ident.ID
	Trader   ident.ID
	NumSeats int
}

type GlobalDepositEvent struct {
	Mint     ident.ID
	Trader   ident.ID
	Amount   uint64
}

// GlobalCleanupEvent is emitted when a global maker is found unbacked: a
// distinct event from Fill.
type GlobalCleanupEvent struct {
	Mint           ident.ID
	Maker          ident.ID
	DesiredAtoms   uint64
	DepositedAtoms uint64
}

// FillLog is emitted once per matched maker.
type FillLog struct {
	Market        ident.ID
	Maker         ident.ID
	Taker         ident.ID
	BaseMint      ident.ID
	QuoteMint     ident.ID
	RateBps       uint16
	BaseAtoms     uint64
	QuoteAtoms    uint64
	MakerSeq      uint64
	TakerSeq      uint64
	TakerIsBuy    bool
	IsMakerGlobal bool
}

type PlaceOrderEvent struct {
	Market         ident.ID
	Trader         ident.ID
	SequenceNumber uint64
	UseATree       bool
	IsBid          bool
	OrderType      OrderType
	RateBps        uint16
	BaseAtoms      uint64
}

type CancelOrderEvent struct {
	Market         ident.ID
	Trader         ident.ID
	SequenceNumber uint64
}
