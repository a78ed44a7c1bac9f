package event

import (
	"sync/atomic"

	"github.com/furkntrg41/opus-trade-bot/internal/book"
	"github.com/furkntrg41/opus-trade-bot/internal/core"
	"github.com/furkntrg41/opus-trade-bot/internal/metrics"
	"github.com/furkntrg41/opus-trade-bot/internal/ring"
)

// Bus is the facade the network goroutine publishes through and the
// event loop drains. Thread-safe for exactly one producer and one
// consumer, matching the ring it wraps.
type Bus struct {
	r *ring.Ring[Event]

	published atomic.Uint64
	dropped   atomic.Uint64
}

// NewBus wraps a ring of the given capacity.
func NewBus(capacity int) *Bus {
	return &Bus{r: ring.New[Event](capacity)}
}

// DepthUpdate is the minimal shape PublishDepth needs from a richer
// exchange-specific update: a symbol, sequence, timestamp and level slices.
type DepthUpdate struct {
	Symbol      core.Symbol
	SequenceID  uint64
	EventTimeMs int64
	Bids        []book.PriceLevel
	Asks        []book.PriceLevel
}

// PublishDepth constructs a compact DepthEvent from a richer update,
// copying at most MaxDepthLevels per side, and attempts to enqueue it. On
// a full ring it increments the drop counter instead of blocking.
func (b *Bus) PublishDepth(update DepthUpdate) bool {
	ev := Event{
		Kind:        KindDepth,
		Symbol:      update.Symbol,
		TimestampMs: update.EventTimeMs,
		Sequence:    update.SequenceID,
	}
	ev.BidCount = uint8(copyLevels(ev.Bids[:], update.Bids))
	ev.AskCount = uint8(copyLevels(ev.Asks[:], update.Asks))

	if b.r.TryPush(ev) {
		b.published.Add(1)
		metrics.EventsPublishedTotal.Inc()
		return true
	}
	b.dropped.Add(1)
	metrics.EventsDroppedTotal.Inc()
	return false
}

// PublishTimer enqueues a synthetic timer event. Called from the event
// loop's own goroutine, so it can never legitimately fail unless the ring
// is undersized relative to the timer count, which is a configuration
// error.
func (b *Bus) PublishTimer(timerID string) bool {
	ev := Event{Kind: KindTimer, TimerID: timerID}
	if b.r.TryPush(ev) {
		b.published.Add(1)
		return true
	}
	b.dropped.Add(1)
	return false
}

// PublishShutdown enqueues the sentinel shutdown event.
func (b *Bus) PublishShutdown() bool {
	ev := Event{Kind: KindShutdown}
	return b.r.TryPush(ev)
}

// TryPop drains the next event for the consumer goroutine.
func (b *Bus) TryPop() (Event, bool) {
	return b.r.TryPop()
}

func copyLevels(dst []RawLevel, src []book.PriceLevel) int {
	n := len(src)
	if n > MaxDepthLevels {
		n = MaxDepthLevels
	}
	for i := 0; i < n; i++ {
		dst[i] = RawLevel{Price: src[i].Price, Quantity: src[i].Quantity}
	}
	return n
}

// EventsPublished returns the monotonic published counter.
func (b *Bus) EventsPublished() uint64 { return b.published.Load() }

// EventsDropped returns the monotonic dropped counter.
func (b *Bus) EventsDropped() uint64 { return b.dropped.Load() }

// DropRate returns dropped / (published + dropped), or 0 if nothing has
// been attempted yet.
func (b *Bus) DropRate() float64 {
	p := b.published.Load()
	d := b.dropped.Load()
	total := p + d
	if total == 0 {
		return 0
	}
	return float64(d) / float64(total)
}
