package venue

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/tathienbao/amm-limit-agent/internal/types"
)

// RateLimitedQuotes bounds the request rate of a QuoteSource. Callers block
// until a token is available or their context ends.
type RateLimitedQuotes struct {
	next    QuoteSource
	limiter *rate.Limiter
}

// NewRateLimitedQuotes wraps next with a limiter of perSecond requests and the
// given burst. A non-positive perSecond disables limiting.
func NewRateLimitedQuotes(next QuoteSource, perSecond float64, burst int) *RateLimitedQuotes {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedQuotes{
		next:    next,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Quote waits for the limiter, then delegates.
func (r *RateLimitedQuotes) Quote(ctx context.Context, in, out int, amount uint64) (uint64, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("%w: %w: %w", types.ErrQuoteUnavailable, types.ErrRateLimited, err)
	}
	return r.next.Quote(ctx, in, out, amount)
}
