package venue

import (
	"context"

	"github.com/tathienbao/amm-limit-agent/internal/metrics"
)

// InstrumentedQuotes records latency and result of every quote.
type InstrumentedQuotes struct {
	next     QuoteSource
	source   string
	recorder *metrics.Recorder
}

// NewInstrumentedQuotes wraps next, labelling its metrics with source.
func NewInstrumentedQuotes(next QuoteSource, source string, recorder *metrics.Recorder) *InstrumentedQuotes {
	return &InstrumentedQuotes{next: next, source: source, recorder: recorder}
}

// Quote delegates and records.
func (q *InstrumentedQuotes) Quote(ctx context.Context, in, out int, amount uint64) (uint64, error) {
	timer := metrics.NewTimer()
	output, err := q.next.Quote(ctx, in, out, amount)
	q.recorder.RecordQuote(q.source, output, err, timer.Elapsed())
	return output, err
}

// InstrumentedExecutor records latency and result of every execution.
type InstrumentedExecutor struct {
	next     Executor
	recorder *metrics.Recorder
}

// NewInstrumentedExecutor wraps next.
func NewInstrumentedExecutor(next Executor, recorder *metrics.Recorder) *InstrumentedExecutor {
	return &InstrumentedExecutor{next: next, recorder: recorder}
}

// Execute delegates and records.
func (e *InstrumentedExecutor) Execute(ctx context.Context, in, out int, amount, minOut uint64) (string, error) {
	timer := metrics.NewTimer()
	ref, err := e.next.Execute(ctx, in, out, amount, minOut)
	e.recorder.RecordExecution(err, timer.Elapsed())
	return ref, err
}
