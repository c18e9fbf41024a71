package execution

import (
	"context"

	"go.uber.org/zap"

	"github.com/tathienbao/amm-limit-agent/internal/order"
)

// goodTillCanceled polls until the limit is met or MaxChecks attempts ran.
func goodTillCanceled(ctx context.Context, r *run) error {
	limit := r.cfg.MaxChecks
	return r.poll(ctx, stopRule{
		exhausted: func(attempt int) bool { return attempt >= limit },
		stop:      func() error { return r.o.Cancel(order.ReasonCheckLimit) },
	})
}

// goodTillTime polls until the limit is met or the order expires.
func goodTillTime(ctx context.Context, r *run) error {
	return r.poll(ctx, stopRule{
		exhausted: func(int) bool { return r.o.IsExpired(r.now()) },
		deadline:  r.o.ExpiresAt(),
		stop:      func() error { return r.o.Expire(order.ReasonExpired) },
	})
}

// immediateOrCancel takes one quote. It fills everything the quote allows and
// cancels the rest of the order.
func immediateOrCancel(ctx context.Context, r *run) error {
	if ctx.Err() != nil {
		return r.abandon(ctx)
	}

	amount := r.o.Remaining()
	q, err := r.quote(ctx, amount)
	if err != nil {
		return r.failQuote(ctx, err)
	}
	if r.o.PriceMetFor(q, amount) {
		return r.fill(ctx, amount, q, false)
	}

	// MaxFillable is all-or-nothing, so size is zero whenever the full amount missed.
	size := r.o.MaxFillable(q)
	if size == 0 {
		return r.finish(r.o.Cancel(order.ReasonNoExecution))
	}

	// The reduced size gets its own quote so the floor reflects it.
	pq, err := r.quote(ctx, size)
	if err != nil {
		return r.failQuote(ctx, err)
	}
	return r.fill(ctx, size, pq, true)
}

// fillOrKill fills the whole order from one quote or cancels it. When
// enabled, an oversized probe must show the pool has output at all.
func fillOrKill(ctx context.Context, r *run) error {
	if ctx.Err() != nil {
		return r.abandon(ctx)
	}

	amount := r.o.Remaining()
	q, err := r.quote(ctx, amount)
	if err != nil {
		return r.failQuote(ctx, err)
	}
	if !r.o.PriceMetFor(q, amount) {
		return r.finish(r.o.Cancel(order.ReasonKilled))
	}

	if r.cfg.LiquidityCheck {
		probe := r.o.ProbeAmount(r.cfg.ProbeFactor)
		pq, err := r.quote(ctx, probe)
		switch {
		case err != nil && ctx.Err() != nil:
			return r.abandon(ctx)
		case err != nil:
			r.log.Warn("liquidity probe failed, proceeding", zap.Uint64("probe", probe), zap.Error(err))
		case pq == 0:
			return r.finish(r.o.Cancel(order.ReasonNoLiquidity))
		}
	}

	return r.fill(ctx, amount, q, false)
}
