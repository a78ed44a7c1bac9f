// Package orders implements bracket-order choreography (entry + stop-loss
// + take-profit) against an exchange.Client, with emergency reduce-only
// close on partial bracket failure.
package orders

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/furkntrg41/opus-trade-bot/internal/core"
	"github.com/furkntrg41/opus-trade-bot/internal/exchange"
	"github.com/furkntrg41/opus-trade-bot/internal/logging"
)

// BracketOrderResult holds the (possibly partial) outcome of a bracket
// placement. StopLoss/TakeProfit are nil if that leg failed to place.
type BracketOrderResult struct {
	Entry      *exchange.OrderInfo
	StopLoss   *exchange.OrderInfo
	TakeProfit *exchange.OrderInfo
}

// Manager places orders against an exchange.Client and tracks every
// order it has placed, whatever status the placement response reports
// (an immediately FILLED entry is tracked too). Entries leave the set
// only through CancelOrder, CancelAllOrders or SyncOrders.
type Manager struct {
	client exchange.Client
	log    *logging.Logger

	mu            sync.Mutex
	pendingOrders map[int64]exchange.OrderInfo

	orderCounter atomic.Uint64
}

// New constructs a Manager driving orders through client.
func New(client exchange.Client, log *logging.Logger) *Manager {
	if log == nil {
		log = logging.NewNop()
	}
	return &Manager{
		client:        client,
		log:           log,
		pendingOrders: make(map[int64]exchange.OrderInfo),
	}
}

func (m *Manager) generateClientOrderID() string {
	n := m.orderCounter.Add(1)
	return fmt.Sprintf("opus_%d", n)
}

// PlaceMarketOrder submits a plain market order.
func (m *Manager) PlaceMarketOrder(ctx context.Context, symbol core.Symbol, side core.Side, qty core.Quantity) (*exchange.OrderInfo, error) {
	req := exchange.OrderRequest{
		Symbol:        symbol,
		Side:          side,
		Type:          core.Market,
		Quantity:      qty,
		ClientOrderID: m.generateClientOrderID(),
	}
	info, err := m.client.PlaceOrder(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("place market order: %w", err)
	}
	if info != nil {
		m.mu.Lock()
		m.pendingOrders[info.OrderID] = *info
		m.mu.Unlock()
	}
	return info, nil
}

// PlaceLimitOrder submits a limit order.
func (m *Manager) PlaceLimitOrder(ctx context.Context, symbol core.Symbol, side core.Side, qty core.Quantity, price core.Price, tif core.TimeInForce) (*exchange.OrderInfo, error) {
	req := exchange.OrderRequest{
		Symbol:        symbol,
		Side:          side,
		Type:          core.Limit,
		Quantity:      qty,
		Price:         price,
		TimeInForce:   tif,
		ClientOrderID: m.generateClientOrderID(),
	}
	info, err := m.client.PlaceOrder(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("place limit order: %w", err)
	}
	if info != nil {
		m.mu.Lock()
		m.pendingOrders[info.OrderID] = *info
		m.mu.Unlock()
	}
	return info, nil
}

// PlaceBracketOrder submits an entry market order followed by a
// reduce-only stop-loss and take-profit. If the entry fails, no SL/TP is
// attempted. If either bracket leg fails after a successful entry, the
// result carries a nil leg and the caller (internal/engine) is
// responsible for the emergency reduce-only close.
func (m *Manager) PlaceBracketOrder(ctx context.Context, symbol core.Symbol, side core.Side, qty core.Quantity, stopLoss, takeProfit core.Price) BracketOrderResult {
	var result BracketOrderResult

	entry, err := m.PlaceMarketOrder(ctx, symbol, side, qty)
	if err != nil || entry == nil {
		m.log.ErrorCtx(ctx, "bracket entry failed, aborting bracket")
		return result
	}
	result.Entry = entry

	closeSide := side.Opposite()

	slReq := exchange.OrderRequest{
		Symbol:        symbol,
		Side:          closeSide,
		Type:          core.StopMarket,
		Quantity:      qty,
		StopPrice:     stopLoss,
		ReduceOnly:    true,
		ClientOrderID: m.generateClientOrderID() + "_SL",
	}
	sl, err := m.client.PlaceOrder(ctx, slReq)
	if err != nil || sl == nil {
		m.log.ErrorCtx(ctx, "bracket stop-loss placement failed")
	} else {
		result.StopLoss = sl
		m.mu.Lock()
		m.pendingOrders[sl.OrderID] = *sl
		m.mu.Unlock()
	}

	tpReq := exchange.OrderRequest{
		Symbol:        symbol,
		Side:          closeSide,
		Type:          core.TakeProfitMarket,
		Quantity:      qty,
		StopPrice:     takeProfit,
		ReduceOnly:    true,
		ClientOrderID: m.generateClientOrderID() + "_TP",
	}
	tp, err := m.client.PlaceOrder(ctx, tpReq)
	if err != nil || tp == nil {
		m.log.ErrorCtx(ctx, "bracket take-profit placement failed")
	} else {
		result.TakeProfit = tp
		m.mu.Lock()
		m.pendingOrders[tp.OrderID] = *tp
		m.mu.Unlock()
	}

	return result
}

// EmergencyClose issues a reduce-only market order on the opposite side
// of an entry that placed but whose bracket did not complete. Called by
// internal/engine when PlaceBracketOrder returns a partial result.
func (m *Manager) EmergencyClose(ctx context.Context, symbol core.Symbol, entrySide core.Side, executedQty core.Quantity) (*exchange.OrderInfo, error) {
	req := exchange.OrderRequest{
		Symbol:        symbol,
		Side:          entrySide.Opposite(),
		Type:          core.Market,
		Quantity:      executedQty,
		ReduceOnly:    true,
		ClientOrderID: m.generateClientOrderID() + "_EMERGENCY",
	}
	info, err := m.client.PlaceOrder(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("emergency close: %w", err)
	}
	if info != nil {
		m.mu.Lock()
		m.pendingOrders[info.OrderID] = *info
		m.mu.Unlock()
	}
	return info, nil
}

// CancelOrder cancels a single order and drops it from the pending set
// on success.
func (m *Manager) CancelOrder(ctx context.Context, symbol core.Symbol, orderID int64) error {
	if err := m.client.CancelOrder(ctx, symbol, orderID); err != nil {
		return fmt.Errorf("cancel order %d: %w", orderID, err)
	}
	m.mu.Lock()
	delete(m.pendingOrders, orderID)
	m.mu.Unlock()
	return nil
}

// CancelAllOrders cancels every open order for symbol and clears the
// pending set.
func (m *Manager) CancelAllOrders(ctx context.Context, symbol core.Symbol) error {
	if err := m.client.CancelAllOrders(ctx, symbol); err != nil {
		return fmt.Errorf("cancel all orders for %s: %w", symbol, err)
	}
	m.mu.Lock()
	m.pendingOrders = make(map[int64]exchange.OrderInfo)
	m.mu.Unlock()
	return nil
}

// PendingOrders returns a snapshot of the tracked set: every order this
// manager placed, including ones already terminal, minus those removed by
// a cancel or replaced by the last SyncOrders.
func (m *Manager) PendingOrders() []exchange.OrderInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]exchange.OrderInfo, 0, len(m.pendingOrders))
	for _, o := range m.pendingOrders {
		out = append(out, o)
	}
	return out
}

// SyncOrders replaces the local pending set with the exchange's current
// open-orders view for symbol.
func (m *Manager) SyncOrders(ctx context.Context, symbol core.Symbol) error {
	open, err := m.client.OpenOrders(ctx, symbol)
	if err != nil {
		return fmt.Errorf("sync orders for %s: %w", symbol, err)
	}
	m.mu.Lock()
	m.pendingOrders = make(map[int64]exchange.OrderInfo, len(open))
	for _, o := range open {
		m.pendingOrders[o.OrderID] = o
	}
	m.mu.Unlock()
	return nil
}
