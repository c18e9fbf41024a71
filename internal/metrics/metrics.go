// Package metrics exposes prometheus instrumentation for the agent.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "limitagent"

// Metrics holds every collector the agent records into.
type Metrics struct {
	QuotesTotal        *prometheus.CounterVec
	QuoteLatency       *prometheus.HistogramVec
	ExecutionsTotal    *prometheus.CounterVec
	ExecutionLatency   prometheus.Histogram
	OrdersAdmitted     *prometheus.CounterVec
	OrderOutcomes      *prometheus.CounterVec
	OrdersActive       prometheus.Gauge
	OrderPriceChecks   *prometheus.HistogramVec
	FilledInputTotal   *prometheus.CounterVec
	ReceivedTotal      *prometheus.CounterVec
	HeartbeatTimestamp prometheus.Gauge
	ErrorsTotal        *prometheus.CounterVec
	BuildInfo          *prometheus.GaugeVec
}

// New registers the agent collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		QuotesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quotes_total",
			Help:      "Quotes requested, by source and result (ok, zero, error).",
		}, []string{"source", "result"}),
		QuoteLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "quote_latency_seconds",
			Help:      "Quote round-trip latency.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"source"}),
		ExecutionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_total",
			Help:      "Executor calls, by result.",
		}, []string{"result"}),
		ExecutionLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "execution_latency_seconds",
			Help:      "Executor call latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		OrdersAdmitted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_admitted_total",
			Help:      "Orders admitted to the engine, by time in force.",
		}, []string{"tif"}),
		OrderOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_outcomes_total",
			Help:      "Terminal order outcomes, by time in force and status.",
		}, []string{"tif", "status"}),
		OrdersActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "orders_active",
			Help:      "Orders currently being monitored.",
		}),
		OrderPriceChecks: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "order_price_checks",
			Help:      "Quotes obtained per order before it terminated.",
			Buckets:   []float64{1, 2, 3, 5, 10, 20, 50, 100},
		}, []string{"tif"}),
		FilledInputTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "filled_input_units_total",
			Help:      "Input token units executed.",
		}, []string{"tif"}),
		ReceivedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "received_output_units_total",
			Help:      "Output token units credited by fills.",
		}, []string{"tif"}),
		HeartbeatTimestamp: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "heartbeat_timestamp_seconds",
			Help:      "Unix time of the last engine heartbeat.",
		}),
		ErrorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Errors by type.",
		}, []string{"type"}),
		BuildInfo: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build information, always 1.",
		}, []string{"version", "commit"}),
	}
}
