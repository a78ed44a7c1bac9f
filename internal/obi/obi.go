// Package obi computes the depth-weighted Order Book Imbalance signal and
// smooths it with an EMA.
package obi

import (
	"math"

	"github.com/furkntrg41/opus-trade-bot/internal/book"
)

// Config parameterizes the generator.
type Config struct {
	Threshold        float64 // minimum |smoothed imbalance| for a non-zero signal
	DepthLevels      int     // number of book levels to weight
	SmoothingPeriod  int     // EMA period P; is_ready() after P samples
}

// DefaultConfig mirrors the original's defaults.
func DefaultConfig() Config {
	return Config{
		Threshold:       0.3,
		DepthLevels:     5,
		SmoothingPeriod: 10,
	}
}

// Generator maintains EMA-smoothed depth-weighted imbalance across calls
// to Update.
type Generator struct {
	cfg Config

	smoothed    float64
	raw         float64
	sampleCount int
}

// New constructs a Generator with the given config.
func New(cfg Config) *Generator {
	return &Generator{cfg: cfg}
}

// CalculateWeighted computes the depth-weighted imbalance over up to
// levels top-of-book entries on each side, with linearly decaying
// weights w_i = 1 - i/levels. Returns 0 if either side is empty or if
// the total weighted volume is zero.
func CalculateWeighted(bids, asks []book.PriceLevel, levels int) float64 {
	if len(bids) == 0 || len(asks) == 0 {
		return 0
	}
	n := levels
	if len(bids) < n {
		n = len(bids)
	}
	if len(asks) < n {
		n = len(asks)
	}

	var bidVol, askVol float64
	for i := 0; i < n; i++ {
		weight := 1.0 - float64(i)/float64(levels)
		bidVol += bids[i].Quantity.Float64() * weight
		askVol += asks[i].Quantity.Float64() * weight
	}

	total := bidVol + askVol
	if total == 0 {
		return 0
	}
	return (bidVol - askVol) / total
}

// Update folds a new book snapshot into the smoothed imbalance.
func (g *Generator) Update(bids, asks []book.PriceLevel) {
	raw := CalculateWeighted(bids, asks, g.cfg.DepthLevels)

	if g.sampleCount == 0 {
		g.smoothed = raw
	} else {
		alpha := 2.0 / (float64(g.cfg.SmoothingPeriod) + 1.0)
		g.smoothed = alpha*raw + (1.0-alpha)*g.smoothed
	}
	g.raw = raw
	g.sampleCount++
}

// IsReady reports whether at least SmoothingPeriod samples have been fed
// in, so the EMA has converged past its initial transient.
func (g *Generator) IsReady() bool {
	return g.sampleCount >= g.cfg.SmoothingPeriod
}

// SmoothedImbalance returns the current EMA-smoothed imbalance in [-1, 1].
func (g *Generator) SmoothedImbalance() float64 { return g.smoothed }

// RawImbalance returns the most recent unsmoothed imbalance.
func (g *Generator) RawImbalance() float64 { return g.raw }

// Signal maps the smoothed imbalance to a strength in [-1, 1]: zero below
// Threshold, otherwise linearly scaled from [Threshold, 1] to [0, 1] and
// signed by direction.
func (g *Generator) Signal() float64 {
	imb := math.Abs(g.smoothed)
	if imb < g.cfg.Threshold {
		return 0
	}
	strength := (imb - g.cfg.Threshold) / (1.0 - g.cfg.Threshold)
	strength = clamp(strength, 0, 1)
	if g.smoothed > 0 {
		return strength
	}
	return -strength
}

// Reset clears all accumulated state.
func (g *Generator) Reset() {
	g.smoothed = 0
	g.raw = 0
	g.sampleCount = 0
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
