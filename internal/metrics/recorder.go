package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Quote results used as label values.
const (
	QuoteOK    = "ok"
	QuoteZero  = "zero"
	QuoteError = "error"
)

// Recorder provides methods for recording metrics. A nil *Recorder is valid
// and records nothing.
type Recorder struct {
	m *Metrics
}

// NewRecorder creates a recorder whose collectors are registered with reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	return &Recorder{m: New(reg)}
}

// RecordQuote records one quote call.
func (r *Recorder) RecordQuote(source string, output uint64, err error, d time.Duration) {
	if r == nil {
		return
	}
	result := QuoteOK
	switch {
	case err != nil:
		result = QuoteError
	case output == 0:
		result = QuoteZero
	}
	r.m.QuotesTotal.WithLabelValues(source, result).Inc()
	r.m.QuoteLatency.WithLabelValues(source).Observe(d.Seconds())
}

// RecordExecution records one executor call.
func (r *Recorder) RecordExecution(err error, d time.Duration) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.m.ExecutionsTotal.WithLabelValues(result).Inc()
	r.m.ExecutionLatency.Observe(d.Seconds())
}

// RecordAdmitted records an order entering the engine.
func (r *Recorder) RecordAdmitted(tif string) {
	if r == nil {
		return
	}
	r.m.OrdersAdmitted.WithLabelValues(tif).Inc()
	r.m.OrdersActive.Inc()
}

// RecordOutcome records an order reaching a terminal status.
func (r *Recorder) RecordOutcome(tif, status string, priceChecks int, filled, received uint64) {
	if r == nil {
		return
	}
	r.m.OrdersActive.Dec()
	r.m.OrderOutcomes.WithLabelValues(tif, status).Inc()
	r.m.OrderPriceChecks.WithLabelValues(tif).Observe(float64(priceChecks))
	if filled > 0 {
		r.m.FilledInputTotal.WithLabelValues(tif).Add(float64(filled))
		r.m.ReceivedTotal.WithLabelValues(tif).Add(float64(received))
	}
}

// RecordHeartbeat records a heartbeat.
func (r *Recorder) RecordHeartbeat() {
	if r == nil {
		return
	}
	r.m.HeartbeatTimestamp.Set(float64(time.Now().Unix()))
}

// RecordError records an error.
func (r *Recorder) RecordError(errorType string) {
	if r == nil {
		return
	}
	r.m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// SetBuildInfo publishes the running version.
func (r *Recorder) SetBuildInfo(version, commit string) {
	if r == nil {
		return
	}
	r.m.BuildInfo.WithLabelValues(version, commit).Set(1)
}

// Timer is a helper for measuring latency.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Elapsed returns the elapsed duration.
func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}
