// Package event defines the fixed-size tagged event carried through the
// ring buffer, and the bus that publishes into it.
package event

import "github.com/furkntrg41/opus-trade-bot/internal/core"

// Kind tags which variant of Event is populated.
type Kind uint8

const (
	KindDepth Kind = iota
	KindTimer
	KindShutdown
)

// MaxDepthLevels bounds the number of bid/ask levels a DepthEvent carries;
// deeper updates are truncated since the strategy only reads the top N
// levels anyway.
const MaxDepthLevels = 20

// RawLevel is a raw (price, quantity) pair at the ring-buffer boundary,
// copied by value with no indirection.
type RawLevel struct {
	Price    core.Price
	Quantity core.Quantity
}

// Event is a fixed-size tagged union of the three event variants the
// engine handles. It is stored by value in the ring so the hot path never
// allocates or indirects through a pointer.
type Event struct {
	Kind Kind

	// Depth fields, valid when Kind == KindDepth.
	Symbol    core.Symbol
	TimestampMs int64
	Sequence  uint64
	BidCount  uint8
	AskCount  uint8
	Bids      [MaxDepthLevels]RawLevel
	Asks      [MaxDepthLevels]RawLevel

	// Timer fields, valid when Kind == KindTimer.
	TimerID string

	// ShutdownEvent carries no payload.
}
