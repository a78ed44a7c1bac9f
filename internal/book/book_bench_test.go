package book

import (
	"testing"

	"github.com/furkntrg41/opus-trade-bot/internal/core"
)

func BenchmarkUpdateBidTopOfBook(b *testing.B) {
	book := New(core.NewSymbol("BTCUSDT"), 1000)
	for i := 0; i < 500; i++ {
		book.UpdateBid(price(float64(50000-i)), qty(1), int64(i))
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		book.UpdateBid(price(50000.5), qty(float64(i%10+1)), int64(i))
	}
}
