package exchange

import (
	"context"

	"github.com/furkntrg41/opus-trade-bot/internal/core"
)

// Client is the polymorphic surface the engine is driven through. It has
// two implementations: BinanceClient (real) and MockClient (deterministic,
// test-only).
type Client interface {
	// REST, synchronous.
	AccountInfo(ctx context.Context) (*AccountInfo, error)
	Positions(ctx context.Context) ([]PositionInfo, error)
	OpenOrders(ctx context.Context, symbol core.Symbol) ([]OrderInfo, error)
	AccountTrades(ctx context.Context, symbol core.Symbol, limit int) ([]TradeInfo, error)
	PlaceOrder(ctx context.Context, req OrderRequest) (*OrderInfo, error)
	CancelOrder(ctx context.Context, symbol core.Symbol, orderID int64) error
	CancelAllOrders(ctx context.Context, symbol core.Symbol) error
	SetLeverage(ctx context.Context, symbol core.Symbol, leverage int) error
	Price(ctx context.Context, symbol core.Symbol) (core.Price, error)
	Depth(ctx context.Context, symbol core.Symbol, limit int) (*DepthUpdate, error)
	Klines(ctx context.Context, symbol core.Symbol, interval string, limit int) ([]Kline, error)

	// WS subscriptions. Callbacks are invoked from the client's own read
	// goroutine, never from the caller's goroutine.
	SubscribeDepth(symbol core.Symbol, cb func(*DepthUpdate)) error
	SubscribeTrades(symbol core.Symbol, cb func(*TradeUpdate)) error
	SubscribeKlines(symbol core.Symbol, interval string, cb func(*KlineUpdate)) error
	Unsubscribe(symbol core.Symbol) error

	// Lifecycle.
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	IsConnected() bool
	OnError(cb func(error))
	OnReconnect(cb func())
	OnWSConnect(cb func())

	// LastError returns a formatted description of the most recent
	// request failure (HTTP status, body excerpt, attempted qty/price/
	// stop where applicable), or "" if nothing has failed yet.
	LastError() string
}
