// Package filter implements the multi-stage signal filter that turns raw
// OBI imbalance into rare, qualified entry signals.
package filter

import (
	"time"

	"github.com/furkntrg41/opus-trade-bot/internal/core"
)

// Direction is the qualified signal's side, or None if nothing qualified.
type Direction int

const (
	None Direction = 0
	Buy  Direction = 1
	Sell Direction = -1
)

// Config parameterizes the filter's gates.
type Config struct {
	ImbalanceThreshold      float64
	HighConvictionThreshold float64
	ConfirmationTicks       int
	HighConvictionTicks     int
	CooldownSeconds         int
	MaxSpreadPct            float64
}

// DefaultConfig mirrors the original's defaults.
func DefaultConfig() Config {
	return Config{
		ImbalanceThreshold:      0.6,
		HighConvictionThreshold: 0.7,
		ConfirmationTicks:       3,
		HighConvictionTicks:     1,
		CooldownSeconds:         30,
		MaxSpreadPct:            0.05,
	}
}

// Signal is a qualified filter output. Direction == None for every
// rejected tick.
type Signal struct {
	Direction        Direction
	Imbalance        float64
	Confidence       float64
	IsHighConviction bool
}

// Clock abstracts monotonic time so tests can control cooldown behavior
// without sleeping.
type Clock func() time.Time

// Filter holds the per-symbol running state of the 7-step algorithm.
type Filter struct {
	cfg   Config
	clock Clock

	lastDirection    Direction
	consecutiveTicks int

	lastBuyTime  time.Time
	lastSellTime time.Time
}

// New constructs a Filter using time.Now as its clock.
func New(cfg Config) *Filter {
	return NewWithClock(cfg, time.Now)
}

// NewWithClock constructs a Filter with an injected clock, for
// deterministic cooldown tests.
func NewWithClock(cfg Config, clock Clock) *Filter {
	return &Filter{cfg: cfg, clock: clock}
}

// Update runs one tick through the filter, returning a qualified Signal
// or a zero-value Signal (Direction == None) if any gate rejected it.
func (f *Filter) Update(imbalance, spreadPct float64, bid, ask core.Price) Signal {
	direction := directionOf(imbalance)
	if direction != f.lastDirection {
		f.consecutiveTicks = 0
		f.lastDirection = direction
	}

	if spreadPct > f.cfg.MaxSpreadPct {
		f.consecutiveTicks = 0
		return Signal{}
	}

	absImb := abs(imbalance)
	if absImb < f.cfg.ImbalanceThreshold {
		f.consecutiveTicks = 0
		return Signal{}
	}

	f.consecutiveTicks++

	isHighConviction := absImb >= f.cfg.HighConvictionThreshold
	requiredTicks := f.cfg.ConfirmationTicks
	if isHighConviction {
		requiredTicks = f.cfg.HighConvictionTicks
	}
	if f.consecutiveTicks < requiredTicks {
		return Signal{}
	}

	now := f.clock()
	cooldown := time.Duration(f.cfg.CooldownSeconds) * time.Second
	switch direction {
	case Buy:
		if !f.lastBuyTime.IsZero() && now.Sub(f.lastBuyTime) < cooldown {
			return Signal{}
		}
	case Sell:
		if !f.lastSellTime.IsZero() && now.Sub(f.lastSellTime) < cooldown {
			return Signal{}
		}
	}

	sig := Signal{
		Direction:        direction,
		Imbalance:        imbalance,
		IsHighConviction: isHighConviction,
		Confidence:       confidence(absImb, f.cfg.ImbalanceThreshold),
	}

	if direction == Buy {
		f.lastBuyTime = now
	} else {
		f.lastSellTime = now
	}
	f.consecutiveTicks = 0

	return sig
}

func directionOf(imbalance float64) Direction {
	switch {
	case imbalance > 0:
		return Buy
	case imbalance < 0:
		return Sell
	default:
		return None
	}
}

// confidence maps [threshold, 1] linearly to [0.5, 1.0], clamped.
func confidence(absImb, threshold float64) float64 {
	normalized := (absImb - threshold) / (1.0 - threshold)
	v := 0.5 + normalized*0.5
	if v < 0.5 {
		return 0.5
	}
	if v > 1.0 {
		return 1.0
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
