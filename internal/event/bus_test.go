package event

import (
	"testing"

	"github.com/furkntrg41/opus-trade-bot/internal/book"
	"github.com/furkntrg41/opus-trade-bot/internal/core"
)

func TestPublishDepthTruncatesLevels(t *testing.T) {
	bus := NewBus(8)
	bids := make([]book.PriceLevel, 30)
	for i := range bids {
		bids[i] = book.PriceLevel{Price: core.PriceFromFloat64(float64(100 - i)), Quantity: core.QuantityFromFloat64(1)}
	}
	ok := bus.PublishDepth(DepthUpdate{
		Symbol:      core.NewSymbol("BTCUSDT"),
		SequenceID:  1,
		EventTimeMs: 1000,
		Bids:        bids,
	})
	if !ok {
		t.Fatal("publish should succeed")
	}
	ev, ok := bus.TryPop()
	if !ok {
		t.Fatal("pop should succeed")
	}
	if ev.BidCount != MaxDepthLevels {
		t.Errorf("BidCount = %d, want %d (truncated)", ev.BidCount, MaxDepthLevels)
	}
}

func TestDropAccounting(t *testing.T) {
	bus := NewBus(4) // usable capacity 3
	for i := 0; i < 3; i++ {
		if !bus.PublishDepth(DepthUpdate{Symbol: core.NewSymbol("BTCUSDT")}) {
			t.Fatalf("publish %d should succeed", i)
		}
	}
	if bus.PublishDepth(DepthUpdate{Symbol: core.NewSymbol("BTCUSDT")}) {
		t.Fatal("publish at capacity should fail")
	}
	if bus.EventsPublished() != 3 || bus.EventsDropped() != 1 {
		t.Errorf("published=%d dropped=%d, want 3,1", bus.EventsPublished(), bus.EventsDropped())
	}
	if rate := bus.DropRate(); rate != 0.25 {
		t.Errorf("DropRate() = %v, want 0.25", rate)
	}
}
