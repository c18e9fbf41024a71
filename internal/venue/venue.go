// Package venue defines the quote and execution contracts of an AMM pool and
// the adapters the agent ships with.
package venue

import "context"

// QuoteSource estimates the output of a trade at current pool conditions.
// A zero output is a valid result meaning no output is available at that
// size. Errors are transient and wrap types.ErrQuoteUnavailable.
type QuoteSource interface {
	Quote(ctx context.Context, in, out int, amount uint64) (uint64, error)
}

// Executor performs a trade that must yield at least minOut and returns a
// settlement reference. Errors wrap types.ErrExecutionFailed and must not be
// retried by the caller.
type Executor interface {
	Execute(ctx context.Context, in, out int, amount, minOut uint64) (string, error)
}

// Venue is a pool that can both quote and execute.
type Venue interface {
	QuoteSource
	Executor
}

// QuoteFunc adapts a function to QuoteSource.
type QuoteFunc func(ctx context.Context, in, out int, amount uint64) (uint64, error)

// Quote calls f.
func (f QuoteFunc) Quote(ctx context.Context, in, out int, amount uint64) (uint64, error) {
	return f(ctx, in, out, amount)
}
