package engine

import (
	"context"
	"testing"

	"github.com/furkntrg41/opus-trade-bot/internal/book"
	"github.com/furkntrg41/opus-trade-bot/internal/core"
	"github.com/furkntrg41/opus-trade-bot/internal/event"
	"github.com/furkntrg41/opus-trade-bot/internal/exchange"
	"github.com/furkntrg41/opus-trade-bot/internal/filter"
	"github.com/furkntrg41/opus-trade-bot/internal/obi"
	"github.com/furkntrg41/opus-trade-bot/internal/orders"
	"github.com/furkntrg41/opus-trade-bot/internal/position"
	"github.com/furkntrg41/opus-trade-bot/internal/risk"
	"github.com/stretchr/testify/require"
)

func newTestEngine(mock *exchange.MockClient) *Engine {
	symbol := core.NewSymbol("BTCUSDT")
	cfg := DefaultConfig(symbol)
	cfg.Leverage = 0 // skip the SetLeverage round-trip in most tests

	obiCfg := obi.DefaultConfig()
	obiCfg.SmoothingPeriod = 1 // ready on the very first update
	obiCfg.Threshold = 0.1

	filterCfg := filter.DefaultConfig()
	filterCfg.ConfirmationTicks = 1
	filterCfg.HighConvictionTicks = 1
	filterCfg.MaxSpreadPct = 10

	riskCfg := risk.DefaultConfig()
	riskCfg.MaxOpenPositions = 1000
	riskCfg.MinOrderIntervalMs = 0

	orderMgr := orders.New(mock, nil)
	posTracker := position.New(mock, nil)

	return New(cfg, mock, obi.New(obiCfg), filter.New(filterCfg), risk.New(riskCfg), orderMgr, posTracker, nil)
}

func skewedDepthEvent(symbol core.Symbol, bidQty, askQty float64) event.Event {
	ev := event.Event{Kind: event.KindDepth, Symbol: symbol, BidCount: 2, AskCount: 2}
	ev.Bids[0] = event.RawLevel{Price: core.PriceFromFloat64(49990), Quantity: core.QuantityFromFloat64(bidQty)}
	ev.Bids[1] = event.RawLevel{Price: core.PriceFromFloat64(49980), Quantity: core.QuantityFromFloat64(bidQty)}
	ev.Asks[0] = event.RawLevel{Price: core.PriceFromFloat64(50010), Quantity: core.QuantityFromFloat64(askQty)}
	ev.Asks[1] = event.RawLevel{Price: core.PriceFromFloat64(50020), Quantity: core.QuantityFromFloat64(askQty)}
	return ev
}

func TestOnDepthQualifiesAndPlacesBracket(t *testing.T) {
	mock := exchange.NewMockClient()
	e := newTestEngine(mock)

	// Heavy bid-side imbalance should qualify a long entry.
	e.OnDepth(skewedDepthEvent(e.cfg.Symbol, 10, 1))

	stats := e.Stats()
	require.Equal(t, uint64(1), stats.TotalUpdates)
	require.Equal(t, uint64(1), stats.QualifiedBuys)
	require.Equal(t, uint64(1), stats.ApprovedTrades)

	placed := mock.PlacedOrders()
	require.Len(t, placed, 3, "entry + SL + TP")
	require.Equal(t, core.Buy, placed[0].Side)
}

func TestOnDepthRejectsBelowThreshold(t *testing.T) {
	mock := exchange.NewMockClient()
	e := newTestEngine(mock)

	// Balanced book: imbalance near zero, never crosses the filter gate.
	e.OnDepth(skewedDepthEvent(e.cfg.Symbol, 5, 5))

	stats := e.Stats()
	require.Equal(t, uint64(0), stats.QualifiedBuys)
	require.Equal(t, uint64(0), stats.QualifiedSells)
	require.Empty(t, mock.PlacedOrders())
}

func TestPartialBracketFailureTriggersEmergencyClose(t *testing.T) {
	mock := exchange.NewMockClient()
	mock.PlaceOrderFunc = func(ctx context.Context, req exchange.OrderRequest) (*exchange.OrderInfo, error) {
		if req.Type == core.StopMarket {
			return nil, nil
		}
		return &exchange.OrderInfo{
			OrderID: 1, ClientOrderID: req.ClientOrderID, Symbol: req.Symbol,
			Side: req.Side, Type: req.Type, ExecutedQty: req.Quantity, Status: core.OrderFilled,
		}, nil
	}
	e := newTestEngine(mock)

	e.OnDepth(skewedDepthEvent(e.cfg.Symbol, 10, 1))

	placed := mock.PlacedOrders()
	last := placed[len(placed)-1]
	require.Equal(t, core.Sell, last.Side, "emergency close is opposite the long entry")
	require.True(t, last.ReduceOnly)
}

func TestOnTimerStatsDoesNotPanic(t *testing.T) {
	mock := exchange.NewMockClient()
	e := newTestEngine(mock)
	require.NotPanics(t, func() { e.OnTimer(TimerStats) })
}

func TestOnTimerPositionSyncSkippedWithoutExposure(t *testing.T) {
	mock := exchange.NewMockClient()
	e := newTestEngine(mock)
	e.OnTimer(TimerPositionSync)
	require.Equal(t, 0, len(mock.PlacedOrders()))
}

func TestOnTimerPositionSyncReconcilesClose(t *testing.T) {
	mock := exchange.NewMockClient()
	e := newTestEngine(mock)

	e.OnDepth(skewedDepthEvent(e.cfg.Symbol, 10, 1))
	require.Equal(t, uint64(1), e.Stats().ApprovedTrades)

	mock.SetPositions([]exchange.PositionInfo{
		{Symbol: e.cfg.Symbol, PositionSide: core.PositionLong, Quantity: core.QuantityFromFloat64(1), IsLong: true},
	})
	e.OnTimer(TimerPositionSync)
	require.Equal(t, 1, e.risk.OpenPositions())

	mock.SetPositions(nil)
	e.OnTimer(TimerPositionSync)
	require.Equal(t, 0, e.risk.OpenPositions())
}

func TestInitializeSeedsBookFromRESTSnapshot(t *testing.T) {
	mock := exchange.NewMockClient()
	symbol := core.NewSymbol("BTCUSDT")
	mock.DepthFunc = func(ctx context.Context, s core.Symbol, limit int) (*exchange.DepthUpdate, error) {
		return &exchange.DepthUpdate{
			Symbol:     s,
			SequenceID: 42,
			Bids:       []book.PriceLevel{{Price: core.PriceFromFloat64(100), Quantity: core.QuantityFromFloat64(1)}},
			Asks:       []book.PriceLevel{{Price: core.PriceFromFloat64(101), Quantity: core.QuantityFromFloat64(1)}},
		}, nil
	}
	e := newTestEngine(mock)
	e.cfg.Symbol = symbol

	err := e.Initialize(context.Background())
	require.NoError(t, err)

	best, ok := e.book.BestBid()
	require.True(t, ok)
	require.Equal(t, core.PriceFromFloat64(100), best.Price)
}

func TestFilterRateComputation(t *testing.T) {
	s := Stats{BuySignals: 8, SellSignals: 2, QualifiedBuys: 1, QualifiedSells: 1}
	require.InDelta(t, 0.8, s.FilterRate(), 1e-9)
}

func TestOnDepthIgnoresForeignSymbol(t *testing.T) {
	mock := exchange.NewMockClient()
	e := newTestEngine(mock)

	other := core.NewSymbol("ETHUSDT")
	e.OnDepth(skewedDepthEvent(other, 10, 1))

	stats := e.Stats()
	require.Equal(t, uint64(0), stats.TotalUpdates, "event for a non-primary symbol must be ignored entirely")
	require.Empty(t, mock.PlacedOrders())
}

func TestOnDepthSkipsWhenOppositeSideEmpty(t *testing.T) {
	symbol := core.NewSymbol("BTCUSDT")
	cfg := DefaultConfig(symbol)
	cfg.Leverage = 0

	obiCfg := obi.DefaultConfig()
	obiCfg.SmoothingPeriod = 10

	filterCfg := filter.DefaultConfig()
	filterCfg.ConfirmationTicks = 1
	filterCfg.HighConvictionTicks = 1
	filterCfg.MaxSpreadPct = 10
	filterCfg.CooldownSeconds = 0

	riskCfg := risk.DefaultConfig()
	riskCfg.MaxOpenPositions = 1000
	riskCfg.MinOrderIntervalMs = 0

	mock := exchange.NewMockClient()
	orderMgr := orders.New(mock, nil)
	posTracker := position.New(mock, nil)
	e := New(cfg, mock, obi.New(obiCfg), filter.New(filterCfg), risk.New(riskCfg), orderMgr, posTracker, nil)

	// Feed a constant, heavily bid-skewed book until the OBI generator's
	// smoothing window fills (IsReady) and the filter fires its first
	// qualified long, with the ask side still present.
	full := skewedDepthEvent(e.cfg.Symbol, 10, 1)
	for i := 0; i < 10; i++ {
		e.OnDepth(full)
	}
	require.Equal(t, uint64(1), e.Stats().ApprovedTrades)
	placedBefore := len(mock.PlacedOrders())

	// Ask-side liquidity is pulled entirely on the next tick. The smoothed
	// imbalance carried over from the prior ticks still clears the
	// filter, qualifying another long — with no ask price to enter at.
	ev := event.Event{Kind: event.KindDepth, Symbol: e.cfg.Symbol, BidCount: 2, AskCount: 0}
	ev.Bids[0] = event.RawLevel{Price: core.PriceFromFloat64(49990), Quantity: core.QuantityFromFloat64(10)}
	ev.Bids[1] = event.RawLevel{Price: core.PriceFromFloat64(49980), Quantity: core.QuantityFromFloat64(10)}
	e.OnDepth(ev)

	require.Equal(t, uint64(1), e.Stats().ApprovedTrades, "missing ask liquidity must skip execution rather than trade at price 0")
	require.Len(t, mock.PlacedOrders(), placedBefore)
}
