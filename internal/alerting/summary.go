package alerting

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tathienbao/amm-limit-agent/internal/order"
)

// SessionSummary aggregates the outcomes of one agent run.
type SessionSummary struct {
	Started     time.Time
	Finished    time.Time
	Total       int
	ByStatus    map[order.Status]int
	FilledInput uint64
	Received    uint64
	PriceChecks int
	// FillRate is the share of orders that executed at least in part, in percent.
	FillRate decimal.Decimal
}

// NewSessionSummary summarizes the given terminal snapshots.
func NewSessionSummary(started, finished time.Time, outcomes []order.Snapshot) SessionSummary {
	s := SessionSummary{
		Started:  started,
		Finished: finished,
		Total:    len(outcomes),
		ByStatus: make(map[order.Status]int),
	}

	executed := 0
	for _, o := range outcomes {
		s.ByStatus[o.Status]++
		s.FilledInput += o.Filled
		s.Received += o.Received
		s.PriceChecks += o.PriceChecks
		if o.Filled > 0 {
			executed++
		}
	}

	if s.Total > 0 {
		s.FillRate = decimal.NewFromInt(int64(executed)).
			Div(decimal.NewFromInt(int64(s.Total))).
			Mul(decimal.NewFromInt(100))
	}

	return s
}

// Fields returns the summary as alert key/value pairs.
func (s SessionSummary) Fields() []any {
	fields := []any{
		"orders", s.Total,
		"duration", s.Finished.Sub(s.Started).Round(time.Millisecond).String(),
	}
	for _, st := range order.TerminalStatuses {
		if n := s.ByStatus[st]; n > 0 {
			fields = append(fields, strings.ToLower(st.String()), n)
		}
	}
	return append(fields,
		"filled_input", s.FilledInput,
		"received", s.Received,
		"price_checks", s.PriceChecks,
		"fill_rate_pct", s.FillRate.StringFixed(1),
	)
}

// Message returns a one-line description.
func (s SessionSummary) Message() string {
	return fmt.Sprintf("Session finished: %d orders, %d filled, %d partial",
		s.Total, s.ByStatus[order.StatusFilled], s.ByStatus[order.StatusPartiallyFilled])
}
