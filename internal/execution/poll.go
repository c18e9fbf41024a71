package execution

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// stopRule parameterizes poll for one monitoring policy.
type stopRule struct {
	// exhausted reports whether the check numbered attempt (from zero) may
	// no longer start.
	exhausted func(attempt int) bool
	// deadline, when set, is re-checked after every quote so a late quote is
	// never acted on, and bounds the wait between checks.
	deadline time.Time
	// stop performs the terminal transition once the rule is exhausted.
	stop func() error
}

func (s stopRule) passed(now time.Time) bool {
	return !s.deadline.IsZero() && !now.Before(s.deadline)
}

// poll checks the full remaining quantity until a quote meets the limit or
// the rule is exhausted. Quote errors are logged and retried on the next
// check; they still count as an attempt.
func (r *run) poll(ctx context.Context, rule stopRule) error {
	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			return r.abandon(ctx)
		}
		if rule.exhausted(attempt) {
			return r.finish(rule.stop())
		}

		amount := r.o.Remaining()
		q, err := r.quote(ctx, amount)
		switch {
		case err != nil && ctx.Err() != nil:
			return r.abandon(ctx)
		case err != nil:
			r.log.Warn("quote failed, retrying after interval",
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
		case rule.passed(r.now()):
			r.log.Info("deadline reached during check, quote discarded", zap.Uint64("quote", q))
			return r.finish(rule.stop())
		case r.o.PriceMetFor(q, amount):
			return r.fill(ctx, amount, q, false)
		default:
			r.log.Debug("price not met",
				zap.Uint64("quote", q),
				zap.Uint64("min_output", r.o.MinOutput()),
			)
		}

		if rule.exhausted(attempt + 1) {
			continue
		}
		if err := r.sleep(ctx, rule.deadline); err != nil {
			return r.abandon(ctx)
		}
	}
}
