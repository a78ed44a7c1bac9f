// Package engine wires the order book, OBI generator, signal filter,
// risk manager and order manager into the trading decision pipeline,
// and is the sole owner of all of that state — it is driven exclusively
// from the internal/loop goroutine, so nothing here takes a lock.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/furkntrg41/opus-trade-bot/internal/book"
	"github.com/furkntrg41/opus-trade-bot/internal/core"
	"github.com/furkntrg41/opus-trade-bot/internal/event"
	"github.com/furkntrg41/opus-trade-bot/internal/exchange"
	"github.com/furkntrg41/opus-trade-bot/internal/filter"
	"github.com/furkntrg41/opus-trade-bot/internal/logging"
	"github.com/furkntrg41/opus-trade-bot/internal/loop"
	"github.com/furkntrg41/opus-trade-bot/internal/metrics"
	"github.com/furkntrg41/opus-trade-bot/internal/obi"
	"github.com/furkntrg41/opus-trade-bot/internal/orders"
	"github.com/furkntrg41/opus-trade-bot/internal/position"
	"github.com/furkntrg41/opus-trade-bot/internal/risk"
	"go.uber.org/zap"
)

// Timer IDs the engine registers with internal/loop.
const (
	TimerStats         = "stats"
	TimerPositionSync  = "position_sync"
	TimerHeartbeat     = "heartbeat"
)

// Config parameterizes one Engine instance. Leverage is applied once at
// Initialize and is a feature the distilled spec omitted but the
// original engine performs at startup.
type Config struct {
	Symbol             core.Symbol
	Leverage           int
	BookCapacity       int
	DepthLevels        int
	RawSignalThreshold float64
}

// DefaultConfig mirrors the original's top-level defaults.
func DefaultConfig(symbol core.Symbol) Config {
	return Config{
		Symbol:             symbol,
		Leverage:           5,
		BookCapacity:       book.DefaultCapacity,
		DepthLevels:        5,
		RawSignalThreshold: 0.6,
	}
}

// Stats accumulates running counters mirroring the original engine's
// end-of-run report, exposed here continuously for a metrics/health
// endpoint instead of only at shutdown.
type Stats struct {
	TotalUpdates   uint64
	BuySignals     uint64
	SellSignals    uint64
	QualifiedBuys  uint64
	QualifiedSells uint64
	ApprovedTrades uint64
	RejectedTrades uint64
	LastLatencyUs  int64
	AvgLatencyUs   float64
}

// FilterRate returns the fraction of raw signals the filter rejected.
func (s Stats) FilterRate() float64 {
	raw := s.BuySignals + s.SellSignals
	if raw == 0 {
		return 0
	}
	qualified := s.QualifiedBuys + s.QualifiedSells
	return 1.0 - float64(qualified)/float64(raw)
}

// Engine is the per-symbol trading decision pipeline. One Engine trades
// exactly one symbol; the loop package drives it from a single goroutine.
type Engine struct {
	cfg Config

	client   exchange.Client
	book     *book.Book
	obi      *obi.Generator
	filter   *filter.Filter
	risk     *risk.Manager
	orders   *orders.Manager
	position *position.Tracker
	log      *logging.Logger
	now      func() time.Time

	lastImbalance float64
	stats         Stats
}

// New wires an Engine from its components. obiGen, signalFilter, riskMgr
// and orderMgr are constructed by the caller so their configs (and, in
// tests, clocks) can be controlled independently.
func New(cfg Config, client exchange.Client, obiGen *obi.Generator, signalFilter *filter.Filter, riskMgr *risk.Manager, orderMgr *orders.Manager, posTracker *position.Tracker, log *logging.Logger) *Engine {
	if log == nil {
		log = logging.NewNop()
	}
	return &Engine{
		cfg:      cfg,
		client:   client,
		book:     book.New(cfg.Symbol, cfg.BookCapacity),
		obi:      obiGen,
		filter:   signalFilter,
		risk:     riskMgr,
		orders:   orderMgr,
		position: posTracker,
		log:      log,
		now:      time.Now,
	}
}

// Timers returns the periodic timers this engine expects internal/loop
// to fire, at the original engine's cadence (stats every 5s, smart
// position-sync poll every 2s).
func Timers() []loop.TimerSpec {
	return []loop.TimerSpec{
		{ID: TimerStats, Interval: 5 * time.Second},
		{ID: TimerPositionSync, Interval: 2 * time.Second},
		{ID: TimerHeartbeat, Interval: 30 * time.Second},
	}
}

// Initialize sets leverage and seeds the book from a REST depth snapshot
// before the WS stream takes over. Leverage configuration at startup is
// not performed by the distilled spec's trimmed-down flow but is present
// in the original engine's connect() path.
func (e *Engine) Initialize(ctx context.Context) error {
	if e.cfg.Leverage > 0 {
		if err := e.client.SetLeverage(ctx, e.cfg.Symbol, e.cfg.Leverage); err != nil {
			return fmt.Errorf("set leverage: %w", err)
		}
	}

	snapshot, err := e.client.Depth(ctx, e.cfg.Symbol, e.cfg.BookCapacity)
	if err != nil {
		return fmt.Errorf("initial depth snapshot: %w", err)
	}
	e.book.Initialize(snapshot.Bids, snapshot.Asks, snapshot.SequenceID)
	return nil
}

// OnDepth is the loop's depth-event handler: reload the book, refresh
// OBI, and run a qualified signal through risk and order placement.
func (e *Engine) OnDepth(ev event.Event) {
	if !ev.Symbol.Equal(e.cfg.Symbol) {
		return
	}

	start := e.now()

	e.book.Clear()
	for i := 0; i < int(ev.BidCount); i++ {
		e.book.UpdateBid(ev.Bids[i].Price, ev.Bids[i].Quantity, ev.TimestampMs)
	}
	for i := 0; i < int(ev.AskCount); i++ {
		e.book.UpdateAsk(ev.Asks[i].Price, ev.Asks[i].Quantity, ev.TimestampMs)
	}

	bids := e.book.Bids(e.cfg.DepthLevels)
	asks := e.book.Asks(e.cfg.DepthLevels)
	e.obi.Update(bids, asks)

	latencyUs := e.now().Sub(start).Microseconds()
	e.stats.TotalUpdates++
	e.stats.LastLatencyUs = latencyUs
	if e.stats.TotalUpdates == 1 {
		e.stats.AvgLatencyUs = float64(latencyUs)
	} else {
		e.stats.AvgLatencyUs = e.stats.AvgLatencyUs*0.99 + float64(latencyUs)*0.01
	}
	metrics.EventsProcessedTotal.Inc()

	if !e.obi.IsReady() {
		e.lastImbalance = e.obi.SmoothedImbalance()
		return
	}

	imbalance := e.obi.SmoothedImbalance()
	e.lastImbalance = imbalance

	spreadPct := e.book.SpreadPct()
	bestBid, haveBid := e.book.BestBid()
	bestAsk, haveAsk := e.book.BestAsk()

	if abs(imbalance) > e.cfg.RawSignalThreshold {
		if imbalance > 0 {
			e.stats.BuySignals++
		} else {
			e.stats.SellSignals++
		}
	}

	var bidPrice, askPrice core.Price
	if haveBid {
		bidPrice = bestBid.Price
	}
	if haveAsk {
		askPrice = bestAsk.Price
	}

	signal := e.filter.Update(imbalance, spreadPct, bidPrice, askPrice)
	if signal.Direction == filter.None {
		return
	}

	isLong := signal.Direction == filter.Buy
	var entryPrice core.Price
	if isLong {
		entryPrice = askPrice
	} else {
		entryPrice = bidPrice
	}
	if !entryPrice.IsValid() {
		return
	}

	if isLong {
		e.stats.QualifiedBuys++
	} else {
		e.stats.QualifiedSells++
	}

	e.executeSignal(context.Background(), isLong, entryPrice)
}

func (e *Engine) executeSignal(ctx context.Context, isLong bool, entryPrice core.Price) {
	decision := e.risk.CanTrade(entryPrice.Float64(), isLong)
	if decision.Outcome != risk.Approved {
		e.stats.RejectedTrades++
		metrics.TradesRejectedTotal.WithLabelValues(decision.Outcome.String()).Inc()
		if decision.Outcome == risk.RejectedMaxNotional {
			e.log.Error("trade rejected: safety guard triggered", zap.String("reason", decision.Reason))
		} else {
			e.log.Info("trade rejected", zap.String("reason", decision.Reason))
		}
		return
	}
	e.stats.ApprovedTrades++
	metrics.TradesApprovedTotal.Inc()

	side := core.Sell
	if isLong {
		side = core.Buy
	}
	qty := core.QuantityFromFloat64(decision.Quantity)
	sl := core.PriceFromFloat64(decision.StopLossPrice)
	tp := core.PriceFromFloat64(decision.TakeProfitPrice)

	result := e.orders.PlaceBracketOrder(ctx, e.cfg.Symbol, side, qty, sl, tp)
	if result.Entry == nil {
		e.log.Warn("bracket entry failed, no position opened")
		return
	}
	e.risk.OnOrderPlaced()

	if result.StopLoss == nil || result.TakeProfit == nil {
		metrics.BracketEmergencyClosesTotal.Inc()
		if _, err := e.orders.EmergencyClose(ctx, e.cfg.Symbol, side, result.Entry.ExecutedQty); err != nil {
			e.log.Error("emergency close failed", zap.Error(err))
		} else {
			e.log.Warn("bracket leg failed, emergency-closed entry",
				zap.Bool("sl_failed", result.StopLoss == nil),
				zap.Bool("tp_failed", result.TakeProfit == nil))
		}
	}
}

// OnTimer is the loop's timer-event handler for every TimerSpec this
// engine registers.
func (e *Engine) OnTimer(id string) {
	ctx := context.Background()
	switch id {
	case TimerStats:
		e.logStats()
	case TimerPositionSync:
		e.syncPositionIfExposed(ctx)
	case TimerHeartbeat:
		e.log.Debug("heartbeat")
	}
}

// syncPositionIfExposed polls the exchange only when the risk manager or
// position tracker believe there is open exposure — the original
// engine's "Smart Polling" behavior, avoiding a REST call every tick.
func (e *Engine) syncPositionIfExposed(ctx context.Context) {
	if e.risk.OpenPositions() == 0 && !e.position.HasOpenPosition() {
		return
	}
	closed, err := e.position.SyncWithExchange(ctx)
	if err != nil {
		e.log.Warn("position sync failed", zap.Error(err))
		return
	}
	if closed {
		e.risk.OnPositionClosed(e.position.LastRealizedPnL())
		e.log.Info("position closed via sync",
			zap.Float64("realized_pnl", e.position.LastRealizedPnL()),
			zap.Bool("pnl_approximate", e.position.LastRealizedPnLApproximate()))
	}
}

func (e *Engine) logStats() {
	s := e.stats
	e.log.Info("stats",
		zap.Uint64("total_updates", s.TotalUpdates),
		zap.Uint64("buy_signals", s.BuySignals),
		zap.Uint64("sell_signals", s.SellSignals),
		zap.Uint64("qualified_buys", s.QualifiedBuys),
		zap.Uint64("qualified_sells", s.QualifiedSells),
		zap.Uint64("approved_trades", s.ApprovedTrades),
		zap.Uint64("rejected_trades", s.RejectedTrades),
		zap.Float64("filter_rate", s.FilterRate()),
		zap.Float64("avg_latency_us", s.AvgLatencyUs),
		zap.Float64("last_imbalance", e.lastImbalance),
	)
}

// Stats returns a snapshot of the running counters.
func (e *Engine) Stats() Stats { return e.stats }

// LastImbalance returns the most recently computed smoothed imbalance.
func (e *Engine) LastImbalance() float64 { return e.lastImbalance }

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
