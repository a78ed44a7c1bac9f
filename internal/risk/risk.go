// Package risk implements the hardcoded-floor risk gate: pre-trade
// checks, SL/TP computation, and daily-loss/rate accounting. The floors
// and ceilings in this package cannot be relaxed by configuration.
package risk

import (
	"fmt"
	"math"
	"time"
)

// Hardcoded minimums/maximums. These are never overridable — they are
// applied once at construction via clampHardcodedLimits and are not
// re-checked against config afterward.
const (
	MinStopLossPct     = 0.20  // never less than 0.20%
	MaxPositionUSD     = 500.0 // never more than $500
	MinOrderIntervalMs = 10000 // never less than 10s
	MaxDailyTrades     = 20    // never more than 20/day

	// MinNotionalUSD and MaxNotionalUSD bound a sized position after
	// step-rounding: below the floor the order is bumped up to the
	// nearest step at or above it; above the ceiling the trade is
	// refused outright rather than silently truncated.
	MinNotionalUSD = 5.0
	MaxNotionalUSD = 600.0
)

// Config is the tunable risk configuration; hardcoded limits are applied
// on top of it at construction time.
type Config struct {
	MaxPositionUSD      float64
	MaxOpenPositions    int
	MaxOrdersPerMinute  int
	MinOrderIntervalMs  int
	StopLossPct         float64
	TakeProfitPct       float64
	MaxDailyLossUSD     float64
	MakerFeePct         float64
	TakerFeePct         float64
}

// DefaultConfig mirrors the original's defaults, pre-clamp.
func DefaultConfig() Config {
	return Config{
		MaxPositionUSD:     100.0,
		MaxOpenPositions:   1,
		MaxOrdersPerMinute: 2,
		MinOrderIntervalMs: 30000,
		StopLossPct:        0.25,
		TakeProfitPct:      0.50,
		MaxDailyLossUSD:    50.0,
		MakerFeePct:        0.02,
		TakerFeePct:        0.05,
	}
}

// clampHardcodedLimits applies the immutable floors/ceilings on top of a
// user-supplied config. Applied exactly once, at construction.
func clampHardcodedLimits(c Config) Config {
	if c.StopLossPct < MinStopLossPct {
		c.StopLossPct = MinStopLossPct
	}
	if c.MaxPositionUSD > MaxPositionUSD {
		c.MaxPositionUSD = MaxPositionUSD
	}
	if c.MinOrderIntervalMs < MinOrderIntervalMs {
		c.MinOrderIntervalMs = MinOrderIntervalMs
	}
	return c
}

// DecisionOutcome enumerates the possible results of CanTrade.
type DecisionOutcome int

const (
	Approved DecisionOutcome = iota
	RejectedPositionLimit
	RejectedRateLimit
	RejectedDailyLoss
	RejectedCooldown
	RejectedMaxTrades
	RejectedMaxNotional
)

func (d DecisionOutcome) String() string {
	switch d {
	case Approved:
		return "approved"
	case RejectedPositionLimit:
		return "rejected_position_limit"
	case RejectedRateLimit:
		return "rejected_rate_limit"
	case RejectedDailyLoss:
		return "rejected_daily_loss"
	case RejectedCooldown:
		return "rejected_cooldown"
	case RejectedMaxTrades:
		return "rejected_max_trades"
	case RejectedMaxNotional:
		return "rejected_max_notional"
	default:
		return "unknown"
	}
}

// Decision is the result of a CanTrade check.
type Decision struct {
	Outcome         DecisionOutcome
	Reason          string
	PositionSizeUSD float64
	Quantity        float64
	StopLossPrice   float64
	TakeProfitPrice float64
}

// stepSizeForPrice returns the quantity step size for entryPrice's tier,
// mirroring an exchange's price-dependent quantity precision grid: the
// more expensive the instrument, the coarser the quantity grid.
func stepSizeForPrice(entryPrice float64) float64 {
	switch {
	case entryPrice >= 10000:
		return 0.001
	case entryPrice >= 1000:
		return 0.01
	case entryPrice >= 100:
		return 0.1
	default:
		return 1.0
	}
}

// sizePosition converts a USD notional target into a step-rounded
// quantity at entryPrice: rounded down to the price tier's step size,
// then bumped up by ceiling to the nearest step if that leaves the
// notional below MinNotionalUSD. refused reports whether the resulting
// notional breaches the MaxNotionalUSD hard safety ceiling, in which
// case qty/notional are not meant to be used.
func sizePosition(usdTarget, entryPrice float64) (qty, notional float64, refused bool) {
	step := stepSizeForPrice(entryPrice)

	qty = math.Floor(usdTarget/entryPrice/step) * step
	notional = qty * entryPrice

	if notional < MinNotionalUSD {
		qty = math.Ceil(MinNotionalUSD/entryPrice/step) * step
		notional = qty * entryPrice
	}

	if notional > MaxNotionalUSD {
		return 0, notional, true
	}
	return qty, notional, false
}

// Clock abstracts monotonic time for deterministic cooldown tests.
type Clock func() time.Time

// Manager enforces the ordered pre-trade checks and tracks daily/session
// state. Not safe for concurrent use; the engine touches it only from the
// event-loop goroutine.
type Manager struct {
	cfg   Config
	clock Clock

	openPositions   int
	dailyTrades     int
	dailyPnL        float64
	lastOrderTime   time.Time
}

// New constructs a Manager, clamping cfg to the hardcoded floors/ceilings.
func New(cfg Config) *Manager {
	return NewWithClock(cfg, time.Now)
}

// NewWithClock constructs a Manager with an injected clock.
func NewWithClock(cfg Config, clock Clock) *Manager {
	m := &Manager{cfg: clampHardcodedLimits(cfg), clock: clock}
	m.ResetDailyStats()
	return m
}

// Config returns the effective (post-clamp) configuration.
func (m *Manager) Config() Config { return m.cfg }

// CanTrade runs the ordered pre-trade check sequence: daily loss, max
// daily trades, position limit, cooldown. On approval it computes
// stop-loss/take-profit prices and the position size in USD.
func (m *Manager) CanTrade(entryPrice float64, isLong bool) Decision {
	if m.dailyPnL <= -m.cfg.MaxDailyLossUSD {
		return Decision{
			Outcome: RejectedDailyLoss,
			Reason:  fmt.Sprintf("daily loss limit reached: $%.2f", -m.dailyPnL),
		}
	}

	if m.dailyTrades >= MaxDailyTrades {
		return Decision{
			Outcome: RejectedMaxTrades,
			Reason:  fmt.Sprintf("max daily trades reached: %d", m.dailyTrades),
		}
	}

	if m.openPositions >= m.cfg.MaxOpenPositions {
		return Decision{
			Outcome: RejectedPositionLimit,
			Reason:  fmt.Sprintf("max open positions: %d", m.openPositions),
		}
	}

	now := m.clock()
	cooldown := time.Duration(m.cfg.MinOrderIntervalMs) * time.Millisecond
	if !m.lastOrderTime.IsZero() {
		if elapsed := now.Sub(m.lastOrderTime); elapsed < cooldown {
			remaining := (cooldown - elapsed).Round(time.Second)
			return Decision{
				Outcome: RejectedCooldown,
				Reason:  fmt.Sprintf("cooldown active: %s remaining", remaining),
			}
		}
	}

	qty, notional, refused := sizePosition(m.cfg.MaxPositionUSD, entryPrice)
	if refused {
		return Decision{
			Outcome: RejectedMaxNotional,
			Reason:  fmt.Sprintf("sized notional $%.2f exceeds max safety ceiling $%.2f", notional, MaxNotionalUSD),
		}
	}

	slOffset := entryPrice * (m.cfg.StopLossPct / 100.0)
	tpOffset := entryPrice * (m.cfg.TakeProfitPct / 100.0)

	var sl, tp float64
	if isLong {
		sl = entryPrice - slOffset
		tp = entryPrice + tpOffset
	} else {
		sl = entryPrice + slOffset
		tp = entryPrice - tpOffset
	}

	return Decision{
		Outcome:         Approved,
		PositionSizeUSD: notional,
		Quantity:        qty,
		StopLossPrice:   sl,
		TakeProfitPrice: tp,
	}
}

// OnOrderPlaced stamps the cooldown clock and increments open-position
// and daily-trade counters. Call after a bracket entry is confirmed.
func (m *Manager) OnOrderPlaced() {
	m.lastOrderTime = m.clock()
	m.openPositions++
	m.dailyTrades++
}

// OnPositionClosed decrements the open-position counter (floored at
// zero) and folds the realized pnl into the daily total.
func (m *Manager) OnPositionClosed(pnl float64) {
	if m.openPositions > 0 {
		m.openPositions--
	}
	m.dailyPnL += pnl
}

// ResetDailyStats zeros the daily pnl and trade counters. Call at day
// rollover.
func (m *Manager) ResetDailyStats() {
	m.dailyPnL = 0
	m.dailyTrades = 0
}

// DailyPnL returns the accumulated realized pnl for the current day.
func (m *Manager) DailyPnL() float64 { return m.dailyPnL }

// DailyTrades returns the count of trades placed today.
func (m *Manager) DailyTrades() int { return m.dailyTrades }

// OpenPositions returns the current open-position count.
func (m *Manager) OpenPositions() int { return m.openPositions }

// EstimateFees returns the expected round-trip fee for a position of the
// given USD notional, at the taker rate when isTaker is true and the
// maker rate otherwise.
func (m *Manager) EstimateFees(positionUSD float64, isTaker bool) float64 {
	feeRate := m.cfg.MakerFeePct
	if isTaker {
		feeRate = m.cfg.TakerFeePct
	}
	return positionUSD * (feeRate / 100.0) * 2
}
