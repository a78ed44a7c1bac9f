// Package book implements the per-symbol L2 order book: two sorted,
// fixed-capacity arrays maintained by binary-search insert/shift.
package book

import (
	"sort"

	"github.com/furkntrg41/opus-trade-bot/internal/core"
)

// DefaultCapacity is the default number of price levels retained per side.
const DefaultCapacity = 1000

// PriceLevel is a single resting level on one side of the book.
// Quantity == 0 is used transiently as a "remove this level" delta; it is
// never stored.
type PriceLevel struct {
	Price      core.Price
	Quantity   core.Quantity
	OrderCount uint32
}

// Book is a per-symbol L2 order book. Bids are sorted strictly
// descending by price; asks strictly ascending. Not safe for concurrent
// use — the engine touches it only from the event-loop goroutine.
type Book struct {
	Symbol core.Symbol

	bids []PriceLevel // descending
	asks []PriceLevel // ascending

	capacity      int
	lastUpdateID  uint64
	lastUpdateMs  int64
	initialized   bool
}

// New constructs an empty book with the given per-side capacity.
func New(symbol core.Symbol, capacity int) *Book {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Book{
		Symbol:   symbol,
		bids:     make([]PriceLevel, 0, capacity),
		asks:     make([]PriceLevel, 0, capacity),
		capacity: capacity,
	}
}

// Initialize loads a pre-sorted snapshot, truncating to capacity.
func (b *Book) Initialize(bids, asks []PriceLevel, lastUpdateID uint64) {
	b.bids = b.bids[:0]
	b.asks = b.asks[:0]
	for i := 0; i < len(bids) && i < b.capacity; i++ {
		b.bids = append(b.bids, bids[i])
	}
	for i := 0; i < len(asks) && i < b.capacity; i++ {
		b.asks = append(b.asks, asks[i])
	}
	b.lastUpdateID = lastUpdateID
	b.initialized = true
}

// Clear empties both sides, used by the clear-and-reload semantics the
// engine applies on every depth event (see DESIGN.md open-question
// resolution).
func (b *Book) Clear() {
	b.bids = b.bids[:0]
	b.asks = b.asks[:0]
}

// UpdateBid applies a single bid-side delta: qty==0 removes the level,
// otherwise inserts or updates it in place, preserving descending order.
func (b *Book) UpdateBid(price core.Price, qty core.Quantity, updateMs int64) {
	b.bids = applyDelta(b.bids, b.capacity, price, qty, bidLess)
	b.lastUpdateMs = updateMs
}

// UpdateAsk applies a single ask-side delta, preserving ascending order.
func (b *Book) UpdateAsk(price core.Price, qty core.Quantity, updateMs int64) {
	b.asks = applyDelta(b.asks, b.capacity, price, qty, askLess)
	b.lastUpdateMs = updateMs
}

// UpdateBatch applies a full set of bid/ask deltas sequentially and
// stamps the book's last_update_id, enforcing the caller's obligation to
// apply updates in non-decreasing order (the book itself does not detect
// gaps or out-of-order sequence ids).
func (b *Book) UpdateBatch(bids, asks []PriceLevel, updateID uint64, updateMs int64) {
	for _, lvl := range bids {
		b.UpdateBid(lvl.Price, lvl.Quantity, updateMs)
	}
	for _, lvl := range asks {
		b.UpdateAsk(lvl.Price, lvl.Quantity, updateMs)
	}
	if updateID > b.lastUpdateID {
		b.lastUpdateID = updateID
	}
	b.initialized = true
}

func bidLess(a, b core.Price) bool { return a > b } // descending
func askLess(a, b core.Price) bool { return a < b } // ascending

// applyDelta performs the binary-search insert/shift/remove algorithm
// shared by both sides. less(a,b) reports whether price a sorts before
// price b for this side.
func applyDelta(side []PriceLevel, capacity int, price core.Price, qty core.Quantity, less func(a, b core.Price) bool) []PriceLevel {
	i := sort.Search(len(side), func(i int) bool {
		return !less(side[i].Price, price)
	})

	found := i < len(side) && side[i].Price == price

	if qty == 0 {
		if found {
			side = append(side[:i], side[i+1:]...)
		}
		return side
	}

	if found {
		side[i].Quantity = qty
		return side
	}

	newLevel := PriceLevel{Price: price, Quantity: qty}

	if len(side) < capacity {
		side = append(side, PriceLevel{})
		copy(side[i+1:], side[i:len(side)-1])
		side[i] = newLevel
		return side
	}

	// At capacity: drop the worst level (the tail) and shift the rest
	// right to make room at i, unless i is past the end (worse than
	// everything currently held, so it is simply discarded).
	if i >= capacity {
		return side
	}
	copy(side[i+1:], side[i:len(side)-1])
	side[i] = newLevel
	return side
}

// BestBid returns the highest bid level, if any.
func (b *Book) BestBid() (PriceLevel, bool) {
	if len(b.bids) == 0 {
		return PriceLevel{}, false
	}
	return b.bids[0], true
}

// BestAsk returns the lowest ask level, if any.
func (b *Book) BestAsk() (PriceLevel, bool) {
	if len(b.asks) == 0 {
		return PriceLevel{}, false
	}
	return b.asks[0], true
}

// MidPrice returns the midpoint of best bid/ask, or 0 if either side is
// empty.
func (b *Book) MidPrice() core.Price {
	bid, ok1 := b.BestBid()
	ask, ok2 := b.BestAsk()
	if !ok1 || !ok2 {
		return 0
	}
	return core.Price((int64(bid.Price) + int64(ask.Price)) / 2)
}

// Spread returns best_ask - best_bid, or 0 if either side is empty.
func (b *Book) Spread() core.Price {
	bid, ok1 := b.BestBid()
	ask, ok2 := b.BestAsk()
	if !ok1 || !ok2 {
		return 0
	}
	return ask.Price - bid.Price
}

// SpreadPct returns the spread as a percentage of the best bid price.
func (b *Book) SpreadPct() float64 {
	bid, ok1 := b.BestBid()
	ask, ok2 := b.BestAsk()
	if !ok1 || !ok2 || bid.Price <= 0 {
		return 0
	}
	return (ask.Price.Float64() - bid.Price.Float64()) / bid.Price.Float64() * 100.0
}

// Bids returns up to n top bid levels.
func (b *Book) Bids(n int) []PriceLevel {
	if n > len(b.bids) {
		n = len(b.bids)
	}
	return b.bids[:n]
}

// Asks returns up to n top ask levels.
func (b *Book) Asks(n int) []PriceLevel {
	if n > len(b.asks) {
		n = len(b.asks)
	}
	return b.asks[:n]
}

// BidCount returns the number of resting bid levels.
func (b *Book) BidCount() int { return len(b.bids) }

// AskCount returns the number of resting ask levels.
func (b *Book) AskCount() int { return len(b.asks) }

// LastUpdateID returns the most recently applied update id.
func (b *Book) LastUpdateID() uint64 { return b.lastUpdateID }

// Initialized reports whether the book has received at least one
// snapshot or batch update.
func (b *Book) Initialized() bool { return b.initialized }

// IsCrossed reports whether the book is in a crossed state
// (best_bid >= best_ask), which never happens from a well-formed feed and
// indicates upstream corruption if observed.
func (b *Book) IsCrossed() bool {
	bid, ok1 := b.BestBid()
	ask, ok2 := b.BestAsk()
	if !ok1 || !ok2 {
		return false
	}
	return bid.Price >= ask.Price
}
