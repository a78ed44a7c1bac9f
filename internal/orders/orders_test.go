package orders

import (
	"context"
	"testing"

	"github.com/furkntrg41/opus-trade-bot/internal/core"
	"github.com/furkntrg41/opus-trade-bot/internal/exchange"
	"github.com/stretchr/testify/require"
)

func TestClientOrderIDFormat(t *testing.T) {
	mock := exchange.NewMockClient()
	m := New(mock, nil)

	entry, err := m.PlaceMarketOrder(context.Background(), core.NewSymbol("BTCUSDT"), core.Buy, core.QuantityFromFloat64(1))
	require.NoError(t, err)
	require.Equal(t, "opus_1", entry.ClientOrderID)

	orders := mock.PlacedOrders()
	require.Len(t, orders, 1)
	require.Equal(t, "opus_1", orders[0].ClientOrderID)
}

func TestBracketOrderChoreography(t *testing.T) {
	mock := exchange.NewMockClient()
	m := New(mock, nil)

	result := m.PlaceBracketOrder(context.Background(), core.NewSymbol("BTCUSDT"), core.Buy,
		core.QuantityFromFloat64(0.002), core.PriceFromFloat64(49000), core.PriceFromFloat64(51000))

	require.NotNil(t, result.Entry)
	require.NotNil(t, result.StopLoss)
	require.NotNil(t, result.TakeProfit)

	placed := mock.PlacedOrders()
	require.Len(t, placed, 3)
	require.Equal(t, core.Market, placed[0].Type)
	require.Equal(t, core.StopMarket, placed[1].Type)
	require.True(t, placed[1].ReduceOnly)
	require.Equal(t, core.Sell, placed[1].Side)
	require.Equal(t, "opus_2_SL", placed[1].ClientOrderID)
	require.Equal(t, core.TakeProfitMarket, placed[2].Type)
	require.True(t, placed[2].ReduceOnly)
	require.Equal(t, "opus_3_TP", placed[2].ClientOrderID)
}

func TestBracketAbortsOnEntryFailure(t *testing.T) {
	mock := exchange.NewMockClient()
	mock.PlaceOrderFunc = func(ctx context.Context, req exchange.OrderRequest) (*exchange.OrderInfo, error) {
		return nil, nil
	}
	m := New(mock, nil)

	result := m.PlaceBracketOrder(context.Background(), core.NewSymbol("BTCUSDT"), core.Buy,
		core.QuantityFromFloat64(0.002), core.PriceFromFloat64(49000), core.PriceFromFloat64(51000))

	require.Nil(t, result.Entry)
	require.Nil(t, result.StopLoss)
	require.Nil(t, result.TakeProfit)
	require.Len(t, mock.PlacedOrders(), 1, "only the entry attempt should have been made")
}

func TestPartialBracketFailureThenEmergencyClose(t *testing.T) {
	mock := exchange.NewMockClient()
	callCount := 0
	mock.PlaceOrderFunc = func(ctx context.Context, req exchange.OrderRequest) (*exchange.OrderInfo, error) {
		callCount++
		if req.Type == core.StopMarket {
			return nil, nil // simulate SL placement failure
		}
		return &exchange.OrderInfo{
			OrderID:       int64(callCount),
			ClientOrderID: req.ClientOrderID,
			Symbol:        req.Symbol,
			Side:          req.Side,
			Type:          req.Type,
			ExecutedQty:   req.Quantity,
			Status:        core.OrderFilled,
		}, nil
	}
	m := New(mock, nil)

	result := m.PlaceBracketOrder(context.Background(), core.NewSymbol("BTCUSDT"), core.Buy,
		core.QuantityFromFloat64(0.002), core.PriceFromFloat64(49000), core.PriceFromFloat64(51000))

	require.NotNil(t, result.Entry)
	require.Nil(t, result.StopLoss, "SL should have failed")
	require.NotNil(t, result.TakeProfit)

	closeInfo, err := m.EmergencyClose(context.Background(), core.NewSymbol("BTCUSDT"), core.Buy, result.Entry.ExecutedQty)
	require.NoError(t, err)
	require.NotNil(t, closeInfo)

	placed := mock.PlacedOrders()
	last := placed[len(placed)-1]
	require.Equal(t, core.Sell, last.Side, "emergency close must be opposite side of entry")
	require.True(t, last.ReduceOnly)
	require.Equal(t, result.Entry.ExecutedQty, last.Quantity)
}
