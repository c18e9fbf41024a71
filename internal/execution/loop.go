// Package execution drives one order at a time through its time-in-force
// policy: it obtains quotes, decides, and settles fills through an Executor.
package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tathienbao/amm-limit-agent/internal/order"
	"github.com/tathienbao/amm-limit-agent/internal/types"
	"github.com/tathienbao/amm-limit-agent/internal/venue"
)

// Config holds execution loop configuration.
type Config struct {
	// PollInterval is the wait between checks of GTC and GTT orders.
	PollInterval time.Duration
	// MaxChecks caps the number of GTC check attempts.
	MaxChecks int
	// ProbeFactor sizes the FOK liquidity probe relative to the input.
	ProbeFactor decimal.Decimal
	// LiquidityCheck enables the FOK liquidity probe.
	LiquidityCheck bool
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		PollInterval:   2 * time.Second,
		MaxChecks:      10,
		ProbeFactor:    decimal.RequireFromString("1.01"),
		LiquidityCheck: true,
	}
}

// Observer receives a snapshot after every check and at the terminal
// transition. It is called from the loop's goroutine.
type Observer func(order.Snapshot)

// policy drives an ACTIVE order to a terminal state.
type policy func(ctx context.Context, r *run) error

// Loop runs orders against a quote source and an executor. A Loop holds no
// per-order state and may run many orders concurrently.
type Loop struct {
	cfg      Config
	quotes   venue.QuoteSource
	exec     venue.Executor
	logger   *zap.Logger
	now      func() time.Time
	policies map[order.TimeInForce]policy
}

// NewLoop creates an execution loop.
func NewLoop(cfg Config, quotes venue.QuoteSource, exec venue.Executor, logger *zap.Logger) *Loop {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{
		cfg:    cfg,
		quotes: quotes,
		exec:   exec,
		logger: logger,
		now:    time.Now,
		policies: map[order.TimeInForce]policy{
			order.GTC: goodTillCanceled,
			order.GTT: goodTillTime,
			order.IOC: immediateOrCancel,
			order.FOK: fillOrKill,
		},
	}
}

// Run drives o until it reaches a terminal state. It returns nil whenever a
// terminal state was reached, including FAILED; errors report misuse such as
// running an order that is not ACTIVE. Canceling ctx ends a waiting order as
// CANCELED; a cause of types.ErrCanceledByUser marks it as a user cancel.
func (l *Loop) Run(ctx context.Context, o *order.Order, observe Observer) error {
	if o.Status() != order.StatusActive {
		return fmt.Errorf("%w: %s is %s", types.ErrOrderNotActive, o.ID(), o.Status())
	}
	p, ok := l.policies[o.TIF()]
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrUnknownTIF, o.TIF())
	}

	r := &run{
		Loop:    l,
		o:       o,
		observe: observe,
		log: l.logger.With(
			zap.String("order_id", o.ID()),
			zap.String("tif", o.TIFString()),
		),
	}

	r.log.Info("order started",
		zap.Uint64("input", o.InputAmount()),
		zap.String("limit_rate", o.LimitRate().String()),
		zap.Uint64("min_output", o.MinOutput()),
		zap.Stringer("route", o.Route()),
	)

	return p(ctx, r)
}

// run is the state of one Run call.
type run struct {
	*Loop
	o       *order.Order
	observe Observer
	log     *zap.Logger
}

func (r *run) publish() {
	if r.observe != nil {
		r.observe(r.o.Snapshot())
	}
}

// quote obtains one quote for amount and counts it on the order.
func (r *run) quote(ctx context.Context, amount uint64) (uint64, error) {
	route := r.o.Route()
	out, err := r.quotes.Quote(ctx, route.In, route.Out, amount)
	if err != nil {
		return 0, err
	}
	if err := r.o.RecordPriceCheck(amount, out, r.now()); err != nil {
		return 0, err
	}

	r.log.Debug("price check",
		zap.Int("check", r.o.PriceChecks()),
		zap.Uint64("amount", amount),
		zap.Uint64("quote", out),
	)
	r.publish()
	return out, nil
}

// fill executes amount with a floor derived from the triggering quote.
// Executor errors fail the order; they are never retried.
func (r *run) fill(ctx context.Context, amount, quote uint64, partial bool) error {
	route := r.o.Route()
	minOut := r.o.MinOutputWithSlippage(quote)

	r.log.Info("executing",
		zap.Uint64("amount", amount),
		zap.Uint64("quote", quote),
		zap.Uint64("min_out", minOut),
		zap.Bool("partial", partial),
	)

	ref, err := r.exec.Execute(ctx, route.In, route.Out, amount, minOut)
	if err != nil {
		r.log.Error("execution failed", zap.Error(err))
		return r.finish(r.o.Fail(err.Error()))
	}

	if partial {
		return r.finish(r.o.PartialFill(ref, amount, quote))
	}
	return r.finish(r.o.Fill(ref, amount, quote))
}

// failQuote ends a single-shot order whose quote could not be obtained.
func (r *run) failQuote(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return r.abandon(ctx)
	}
	r.log.Error("quote failed", zap.Error(err))
	return r.finish(r.o.Fail(err.Error()))
}

// abandon cancels the order because ctx ended.
func (r *run) abandon(ctx context.Context) error {
	reason := order.ReasonShutdown
	if errors.Is(context.Cause(ctx), types.ErrCanceledByUser) {
		reason = order.ReasonCanceledByUser
	}
	return r.finish(r.o.Cancel(reason))
}

// finish publishes and logs a terminal transition. A non-nil err means the
// transition itself was refused.
func (r *run) finish(err error) error {
	if err != nil {
		r.log.Error("transition refused", zap.Error(err))
		return err
	}
	r.publish()

	r.log.Info("order finished",
		zap.String("status", r.o.StatusString()),
		zap.String("reason", r.o.Reason()),
		zap.Int("price_checks", r.o.PriceChecks()),
		zap.Uint64("filled", r.o.Filled()),
		zap.Uint64("received", r.o.Received()),
		zap.String("settlement", r.o.Settlement()),
	)
	return nil
}

// sleep waits one poll interval, never past deadline when it is set.
func (r *run) sleep(ctx context.Context, deadline time.Time) error {
	d := r.cfg.PollInterval
	if !deadline.IsZero() {
		if until := deadline.Sub(r.now()); until < d {
			d = until
		}
	}
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
