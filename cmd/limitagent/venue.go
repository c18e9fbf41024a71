package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/tathienbao/amm-limit-agent/internal/config"
	"github.com/tathienbao/amm-limit-agent/internal/metrics"
	"github.com/tathienbao/amm-limit-agent/internal/venue"
	"github.com/tathienbao/amm-limit-agent/internal/venue/curve"
)

// buildVenue connects the configured pool and wraps it with rate limiting
// and instrumentation. The returned func releases the connection.
func buildVenue(ctx context.Context, cfg *config.Config, logger *zap.Logger, rec *metrics.Recorder) (venue.QuoteSource, venue.Executor, func(), error) {
	var (
		quotes venue.QuoteSource
		exec   venue.Executor
		closer = func() {}
	)

	switch cfg.Venue.Kind {
	case config.VenuePaper:
		pool := venue.NewPaperPool(cfg.ToPaperConfig(), logger.Named("paper"))
		quotes, exec = pool, pool
	case config.VenueCurve:
		client, err := curve.Dial(ctx, cfg.Venue.RPCURL)
		if err != nil {
			return nil, nil, nil, err
		}
		qs, err := curve.NewQuoteSource(client, cfg.Venue.Pool, logger.Named("curve"))
		if err != nil {
			client.Close()
			return nil, nil, nil, err
		}
		dry, err := curve.NewDryRunExecutor(cfg.Venue.Pool, logger.Named("curve"))
		if err != nil {
			client.Close()
			return nil, nil, nil, err
		}
		quotes, exec, closer = qs, dry, client.Close
	default:
		return nil, nil, nil, fmt.Errorf("unknown venue kind %q", cfg.Venue.Kind)
	}

	quotes = venue.NewRateLimitedQuotes(quotes, cfg.Venue.RateLimitPerSecond, cfg.Venue.RateLimitBurst)
	quotes = venue.NewInstrumentedQuotes(quotes, cfg.Venue.Kind, rec)
	exec = venue.NewInstrumentedExecutor(exec, rec)

	return quotes, exec, closer, nil
}
