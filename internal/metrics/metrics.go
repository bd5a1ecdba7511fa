// Package metrics exposes the engine's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ChecksTotal counts product checks by outcome (valid, fetch_failure,
	// invalid_data, persistence_failure).
	ChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "monitor_checks_total",
		Help: "Total product checks by outcome",
	}, []string{"outcome"})

	// EventsTotal counts detected transitions by type.
	EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "monitor_events_total",
		Help: "Total detected transition events by type",
	}, []string{"type"})

	// TickDuration tracks wall time of full scheduler ticks.
	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "monitor_tick_duration_seconds",
		Help:    "Duration of scheduler ticks",
		Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300},
	})

	// TicksSkipped counts tick triggers dropped by the single-flight guard.
	TicksSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "monitor_ticks_skipped_total",
		Help: "Tick triggers skipped because a tick was already running",
	})

	// ProductsInStock is the last observed number of in-stock products.
	ProductsInStock = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "monitor_products_in_stock",
		Help: "Number of monitored products currently in stock",
	})

	// ProductsByState tracks product counts per monitor state.
	ProductsByState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "monitor_products_by_state",
		Help: "Number of products per monitor state",
	}, []string{"state"})

	// RateLimitWaits counts times the tick slept for the rate limiter.
	RateLimitWaits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "monitor_rate_limit_waits_total",
		Help: "Times the scheduler slept waiting for the rate limit window",
	})
)
