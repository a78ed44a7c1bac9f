// Package exchange defines the ExchangeClient interface the engine is
// driven through, plus the Binance-style REST/WS implementation and an
// in-memory mock used by tests.
package exchange

import (
	"time"

	"github.com/furkntrg41/opus-trade-bot/internal/book"
	"github.com/furkntrg41/opus-trade-bot/internal/core"
)

// DepthUpdate is a batch of bid/ask deltas for one symbol, as delivered by
// either the WS depth stream or a REST snapshot fetch.
type DepthUpdate struct {
	Symbol      core.Symbol
	SequenceID  uint64
	EventTimeMs int64
	Bids        []book.PriceLevel
	Asks        []book.PriceLevel
}

// TradeUpdate is a single executed trade on the public trade stream.
type TradeUpdate struct {
	Symbol    core.Symbol
	Price     core.Price
	Quantity  core.Quantity
	Side      core.Side
	TradeTime int64
}

// KlineUpdate is a candle update on the kline stream.
type KlineUpdate struct {
	Symbol   core.Symbol
	Interval string
	Kline    Kline
}

// Kline is a single candlestick.
type Kline struct {
	OpenTime    time.Time
	CloseTime   time.Time
	Open        core.Price
	High        core.Price
	Low         core.Price
	Close       core.Price
	Volume      core.Quantity
	QuoteVolume core.Quantity
	TradeCount  uint32
}

// AccountInfo is a minimal account snapshot.
type AccountInfo struct {
	TotalWalletBalanceUSD  float64
	TotalUnrealizedPnLUSD  float64
	AvailableBalanceUSD    float64
}

// PositionInfo is a raw exchange position record (before sign-normalization
// into internal/position.Position).
type PositionInfo struct {
	Symbol         core.Symbol
	PositionSide   core.PositionSide
	Quantity       core.Quantity // always non-negative magnitude on the wire
	EntryPrice     core.Price
	MarkPrice      core.Price
	UnrealizedPnL  float64
	IsLong         bool
}

// OrderRequest describes a new order to place. Exactly one of ReduceOnly
// and ClosePosition may be set.
type OrderRequest struct {
	Symbol        core.Symbol
	Side          core.Side
	PositionSide  core.PositionSide
	Type          core.OrderType
	TimeInForce   core.TimeInForce
	Quantity      core.Quantity
	Price         core.Price
	StopPrice     core.Price
	ClientOrderID string
	ReduceOnly    bool
	ClosePosition bool
}

// OrderInfo is the exchange's view of an order, either just after
// placement or fetched via open_orders.
type OrderInfo struct {
	OrderID       int64
	ClientOrderID string
	Symbol        core.Symbol
	Side          core.Side
	Type          core.OrderType
	Status        core.OrderStatus
	Price         core.Price
	Quantity      core.Quantity
	ExecutedQty   core.Quantity
	CreateTimeMs  int64
	UpdateTimeMs  int64
}

// TradeInfo is a single fill from account trade history, used by the
// position tracker's realized-PnL reconciliation.
type TradeInfo struct {
	Symbol      core.Symbol
	OrderID     int64
	Price       core.Price
	Quantity    core.Quantity
	RealizedPnL float64
	Commission  float64
	TimeMs      int64
}
