package book

import (
	"testing"

	"github.com/furkntrg41/opus-trade-bot/internal/core"
)

func price(v float64) core.Price       { return core.PriceFromFloat64(v) }
func qty(v float64) core.Quantity      { return core.QuantityFromFloat64(v) }

func TestInsertUpdateRemove(t *testing.T) {
	b := New(core.NewSymbol("BTCUSDT"), 10)

	b.UpdateBid(price(100.00), qty(1), 1)
	b.UpdateBid(price(99.50), qty(2), 2)
	b.UpdateBid(price(100.50), qty(3), 3)

	if b.BidCount() != 3 {
		t.Fatalf("bid count = %d, want 3", b.BidCount())
	}
	bids := b.Bids(3)
	wantPrices := []float64{100.50, 100.00, 99.50}
	for i, want := range wantPrices {
		if got := bids[i].Price.Float64(); got != want {
			t.Errorf("bids[%d].Price = %v, want %v", i, got, want)
		}
	}

	b.UpdateBid(price(100.00), qty(5), 4)
	bids = b.Bids(3)
	if bids[1].Quantity.Float64() != 5 {
		t.Errorf("updated bid quantity = %v, want 5", bids[1].Quantity.Float64())
	}

	b.UpdateBid(price(99.50), core.Quantity(0), 5)
	if b.BidCount() != 2 {
		t.Fatalf("bid count after remove = %d, want 2", b.BidCount())
	}
}

func TestMonotonicOrdering(t *testing.T) {
	b := New(core.NewSymbol("BTCUSDT"), 10)
	prices := []float64{100, 99, 105, 98, 102, 101}
	for i, p := range prices {
		b.UpdateBid(price(p), qty(1), int64(i))
	}
	bids := b.Bids(b.BidCount())
	for i := 0; i+1 < len(bids); i++ {
		if bids[i].Price <= bids[i+1].Price {
			t.Fatalf("bids not strictly descending at %d: %v <= %v", i, bids[i].Price, bids[i+1].Price)
		}
	}

	asks := []float64{50, 55, 48, 60, 52}
	for i, p := range asks {
		b.UpdateAsk(price(p), qty(1), int64(i))
	}
	askLevels := b.Asks(b.AskCount())
	for i := 0; i+1 < len(askLevels); i++ {
		if askLevels[i].Price >= askLevels[i+1].Price {
			t.Fatalf("asks not strictly ascending at %d: %v >= %v", i, askLevels[i].Price, askLevels[i+1].Price)
		}
	}
}

func TestCapacityDropsWorstLevel(t *testing.T) {
	b := New(core.NewSymbol("BTCUSDT"), 3)
	b.UpdateBid(price(100), qty(1), 0)
	b.UpdateBid(price(99), qty(1), 0)
	b.UpdateBid(price(98), qty(1), 0)
	if b.BidCount() != 3 {
		t.Fatalf("bid count = %d, want 3", b.BidCount())
	}

	// A better bid should displace the worst (98).
	b.UpdateBid(price(101), qty(1), 0)
	if b.BidCount() != 3 {
		t.Fatalf("bid count after insert at capacity = %d, want 3", b.BidCount())
	}
	bids := b.Bids(3)
	if bids[2].Price.Float64() != 99 {
		t.Errorf("worst level after insert = %v, want 99 (98 should have been dropped)", bids[2].Price.Float64())
	}

	// A worse bid than everything held should be discarded entirely.
	b.UpdateBid(price(1), qty(1), 0)
	if b.BidCount() != 3 {
		t.Fatalf("bid count should remain 3, got %d", b.BidCount())
	}
}

func TestNoCrossedBookDetection(t *testing.T) {
	b := New(core.NewSymbol("BTCUSDT"), 10)
	b.UpdateBid(price(100), qty(1), 0)
	b.UpdateAsk(price(101), qty(1), 0)
	if b.IsCrossed() {
		t.Error("book should not be crossed")
	}
	b.UpdateAsk(price(99), qty(1), 0)
	if !b.IsCrossed() {
		t.Error("book should be detected as crossed")
	}
}

func TestSpreadPct(t *testing.T) {
	b := New(core.NewSymbol("BTCUSDT"), 10)
	b.UpdateBid(price(100), qty(1), 0)
	b.UpdateAsk(price(101), qty(1), 0)
	got := b.SpreadPct()
	want := 1.0
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("SpreadPct() = %v, want %v", got, want)
	}
}

func TestClearAndReload(t *testing.T) {
	b := New(core.NewSymbol("BTCUSDT"), 10)
	b.UpdateBid(price(100), qty(1), 0)
	b.Clear()
	if b.BidCount() != 0 || b.AskCount() != 0 {
		t.Fatal("Clear() should empty both sides")
	}
}
