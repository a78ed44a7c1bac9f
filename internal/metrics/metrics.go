// Package metrics exposes the Prometheus counters/gauges the engine's
// components update as they run.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsPublishedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "opus",
		Name:      "events_published_total",
		Help:      "Total depth events successfully published into the ring buffer.",
	})
	EventsDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "opus",
		Name:      "events_dropped_total",
		Help:      "Total depth events dropped because the ring buffer was full.",
	})
	EventsProcessedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "opus",
		Name:      "events_processed_total",
		Help:      "Total primary-symbol depth events processed by the engine.",
	})

	TradesApprovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "opus",
		Name:      "trades_approved_total",
		Help:      "Total trade decisions approved by the risk manager.",
	})
	TradesRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "opus",
		Name:      "trades_rejected_total",
		Help:      "Total trade decisions rejected by the risk manager, by reason.",
	}, []string{"reason"})

	BracketEmergencyClosesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "opus",
		Name:      "bracket_emergency_closes_total",
		Help:      "Total emergency reduce-only closes issued after a partial bracket failure.",
	})

	PositionSyncDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "opus",
		Name:      "position_sync_duration_seconds",
		Help:      "Latency of PositionTracker.SyncWithExchange calls.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	})

	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "opus",
		Name:      "circuitbreaker_state",
		Help:      "Exchange REST circuit breaker state (0=closed,1=half-open,2=open).",
	}, []string{"name"})
	CircuitBreakerRejectTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "opus",
		Name:      "circuitbreaker_reject_total",
		Help:      "Total REST calls rejected by an open circuit breaker.",
	}, []string{"name"})
)
