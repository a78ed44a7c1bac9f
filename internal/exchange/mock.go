package exchange

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/furkntrg41/opus-trade-bot/internal/core"
)

// MockClient is a deterministic, scripted Client implementation used by
// engine and order-manager tests, in place of a real REST/WS connection.
type MockClient struct {
	mu sync.Mutex

	// PlaceOrderFunc, if set, is called for every PlaceOrder invocation
	// instead of the default fill-everything behavior.
	PlaceOrderFunc func(ctx context.Context, req OrderRequest) (*OrderInfo, error)

	// DepthFunc, if set, is called for every Depth invocation instead of
	// the default empty-snapshot behavior.
	DepthFunc func(ctx context.Context, symbol core.Symbol, limit int) (*DepthUpdate, error)

	positions     []PositionInfo
	openOrders    map[string][]OrderInfo
	trades        map[string][]TradeInfo
	connected     bool
	errCallback   func(error)
	reconnectCb   func()
	wsConnectCb   func()

	// LastErrorValue, if set, is what LastError returns — scripted by
	// tests exercising the ExchangeClient.LastError contract.
	LastErrorValue string

	nextOrderID atomic.Int64
	placed      []OrderRequest
}

// NewMockClient constructs an empty mock, ready to be scripted via its
// exported fields or Set* helpers.
func NewMockClient() *MockClient {
	return &MockClient{
		openOrders: make(map[string][]OrderInfo),
		trades:     make(map[string][]TradeInfo),
	}
}

// SetPositions overrides the positions returned by Positions.
func (m *MockClient) SetPositions(p []PositionInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions = p
}

// SetTrades overrides the trade history returned by AccountTrades for a
// symbol.
func (m *MockClient) SetTrades(symbol core.Symbol, trades []TradeInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trades[symbol.String()] = trades
}

// PlacedOrders returns every order request PlaceOrder has been called
// with, in call order — used to assert on bracket/emergency-close
// choreography from tests.
func (m *MockClient) PlacedOrders() []OrderRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]OrderRequest, len(m.placed))
	copy(out, m.placed)
	return out
}

func (m *MockClient) AccountInfo(ctx context.Context) (*AccountInfo, error) {
	return &AccountInfo{}, nil
}

func (m *MockClient) Positions(ctx context.Context) ([]PositionInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PositionInfo, len(m.positions))
	copy(out, m.positions)
	return out, nil
}

func (m *MockClient) OpenOrders(ctx context.Context, symbol core.Symbol) ([]OrderInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.openOrders[symbol.String()], nil
}

func (m *MockClient) AccountTrades(ctx context.Context, symbol core.Symbol, limit int) ([]TradeInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	trades := m.trades[symbol.String()]
	if len(trades) > limit {
		trades = trades[len(trades)-limit:]
	}
	return trades, nil
}

func (m *MockClient) PlaceOrder(ctx context.Context, req OrderRequest) (*OrderInfo, error) {
	m.mu.Lock()
	m.placed = append(m.placed, req)
	m.mu.Unlock()

	if m.PlaceOrderFunc != nil {
		return m.PlaceOrderFunc(ctx, req)
	}

	id := m.nextOrderID.Add(1)
	return &OrderInfo{
		OrderID:       id,
		ClientOrderID: req.ClientOrderID,
		Symbol:        req.Symbol,
		Side:          req.Side,
		Type:          req.Type,
		Status:        core.OrderFilled,
		Price:         req.Price,
		Quantity:      req.Quantity,
		ExecutedQty:   req.Quantity,
	}, nil
}

func (m *MockClient) CancelOrder(ctx context.Context, symbol core.Symbol, orderID int64) error {
	return nil
}

func (m *MockClient) CancelAllOrders(ctx context.Context, symbol core.Symbol) error {
	return nil
}

func (m *MockClient) SetLeverage(ctx context.Context, symbol core.Symbol, leverage int) error {
	return nil
}

func (m *MockClient) Price(ctx context.Context, symbol core.Symbol) (core.Price, error) {
	return 0, nil
}

func (m *MockClient) Depth(ctx context.Context, symbol core.Symbol, limit int) (*DepthUpdate, error) {
	if m.DepthFunc != nil {
		return m.DepthFunc(ctx, symbol, limit)
	}
	return &DepthUpdate{Symbol: symbol}, nil
}

func (m *MockClient) Klines(ctx context.Context, symbol core.Symbol, interval string, limit int) ([]Kline, error) {
	return nil, nil
}

func (m *MockClient) SubscribeDepth(symbol core.Symbol, cb func(*DepthUpdate)) error   { return nil }
func (m *MockClient) SubscribeTrades(symbol core.Symbol, cb func(*TradeUpdate)) error  { return nil }
func (m *MockClient) SubscribeKlines(symbol core.Symbol, interval string, cb func(*KlineUpdate)) error {
	return nil
}
func (m *MockClient) Unsubscribe(symbol core.Symbol) error { return nil }

func (m *MockClient) Start(ctx context.Context) error {
	m.connected = true
	return nil
}

func (m *MockClient) Stop(ctx context.Context) error {
	m.connected = false
	return nil
}

func (m *MockClient) IsConnected() bool { return m.connected }

func (m *MockClient) OnError(cb func(error)) { m.errCallback = cb }

func (m *MockClient) OnReconnect(cb func()) { m.reconnectCb = cb }

func (m *MockClient) OnWSConnect(cb func()) { m.wsConnectCb = cb }

func (m *MockClient) LastError() string { return m.LastErrorValue }

var _ Client = (*MockClient)(nil)
