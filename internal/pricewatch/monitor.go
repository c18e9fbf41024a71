// Package pricewatch samples pool quotes over time and summarizes the rate.
package pricewatch

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tathienbao/amm-limit-agent/internal/journal"
	"github.com/tathienbao/amm-limit-agent/internal/order"
	"github.com/tathienbao/amm-limit-agent/internal/venue"
	"github.com/tathienbao/amm-limit-agent/pkg/ratestats"
)

// Config holds monitor settings.
type Config struct {
	Route  order.Route
	Amount uint64
	// Interval is the time between samples.
	Interval time.Duration
	// Duration bounds the run; zero runs until ctx is canceled.
	Duration time.Duration
	// Target, when positive, is compared against the last observed rate.
	Target decimal.Decimal
}

// SampleStore persists samples.
type SampleStore interface {
	RecordSample(ctx context.Context, s journal.Sample) error
}

// Report summarizes one monitoring run.
type Report struct {
	Route     order.Route
	Amount    uint64
	Started   time.Time
	Finished  time.Time
	Samples   int
	Errors    int
	Zero      int
	Min       decimal.Decimal
	Max       decimal.Decimal
	Mean      decimal.Decimal
	StdDev    decimal.Decimal
	Last      decimal.Decimal
	ChangePct decimal.Decimal
	RangePct  decimal.Decimal
	TargetMet bool
	// Rates holds every observed rate in sampling order.
	Rates []decimal.Decimal
}

// Fields returns the report as log fields.
func (r Report) Fields() []zap.Field {
	return []zap.Field{
		zap.Stringer("route", r.Route),
		zap.Uint64("amount", r.Amount),
		zap.Duration("elapsed", r.Finished.Sub(r.Started)),
		zap.Int("samples", r.Samples),
		zap.Int("errors", r.Errors),
		zap.Int("zero_quotes", r.Zero),
		zap.String("min_rate", r.Min.String()),
		zap.String("max_rate", r.Max.String()),
		zap.String("mean_rate", r.Mean.StringFixed(8)),
		zap.String("stddev", r.StdDev.StringFixed(8)),
		zap.String("change_pct", r.ChangePct.StringFixed(4)),
		zap.String("range_pct", r.RangePct.StringFixed(4)),
	}
}

// Monitor samples one route at a fixed interval.
type Monitor struct {
	cfg    Config
	quotes venue.QuoteSource
	store  SampleStore
	logger *zap.Logger
	now    func() time.Time
}

// NewMonitor creates a monitor. store may be nil.
func NewMonitor(cfg Config, quotes venue.QuoteSource, store SampleStore, logger *zap.Logger) (*Monitor, error) {
	if cfg.Amount == 0 {
		return nil, errors.New("sample amount must be positive")
	}
	if cfg.Interval <= 0 {
		return nil, errors.New("sample interval must be positive")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		cfg:    cfg,
		quotes: quotes,
		store:  store,
		logger: logger.With(zap.Stringer("route", cfg.Route)),
		now:    time.Now,
	}, nil
}

// Run samples until the configured duration elapses or ctx is canceled and
// returns the summary. Quote failures are counted, not returned.
func (m *Monitor) Run(ctx context.Context) (Report, error) {
	if m.cfg.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.Duration)
		defer cancel()
	}

	stats := ratestats.New(0)
	report := Report{
		Route:   m.cfg.Route,
		Amount:  m.cfg.Amount,
		Started: m.now(),
	}

	m.logger.Info("price monitor started",
		zap.Uint64("amount", m.cfg.Amount),
		zap.Duration("interval", m.cfg.Interval),
		zap.Duration("duration", m.cfg.Duration),
	)

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		m.sample(ctx, stats, &report)

		select {
		case <-ctx.Done():
			return m.finish(stats, report), nil
		case <-ticker.C:
		}
	}
}

func (m *Monitor) sample(ctx context.Context, stats *ratestats.Stats, report *Report) {
	out, err := m.quotes.Quote(ctx, m.cfg.Route.In, m.cfg.Route.Out, m.cfg.Amount)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		report.Errors++
		m.logger.Warn("quote failed", zap.Error(err))
		return
	}
	if out == 0 {
		report.Zero++
		m.logger.Warn("pool returned zero output", zap.Uint64("amount", m.cfg.Amount))
		return
	}

	rate := decimal.NewFromBigInt(new(big.Int).SetUint64(out), 0).
		Div(decimal.NewFromBigInt(new(big.Int).SetUint64(m.cfg.Amount), 0))
	prev := stats.Last()
	stats.Add(rate)
	report.Samples++
	report.Rates = append(report.Rates, rate)

	fields := []zap.Field{
		zap.Int("sample", stats.Count()),
		zap.Uint64("output", out),
		zap.String("rate", rate.StringFixed(8)),
	}
	if !prev.IsZero() {
		fields = append(fields, zap.String("change_pct", rate.Sub(prev).Div(prev).Mul(decimal.NewFromInt(100)).StringFixed(4)))
	}
	m.logger.Info("price sample", fields...)

	if m.store != nil {
		s := journal.Sample{
			Timestamp: m.now(),
			Route:     m.cfg.Route.String(),
			Amount:    m.cfg.Amount,
			Output:    out,
			Rate:      rate,
		}
		if err := m.store.RecordSample(context.WithoutCancel(ctx), s); err != nil {
			m.logger.Warn("failed to store sample", zap.Error(err))
		}
	}
}

func (m *Monitor) finish(stats *ratestats.Stats, report Report) Report {
	report.Finished = m.now()
	report.Min = stats.Min()
	report.Max = stats.Max()
	report.Mean = stats.Mean()
	report.StdDev = stats.StdDev()
	report.Last = stats.Last()
	report.ChangePct = stats.ChangePct()
	report.RangePct = stats.RangePct()
	if m.cfg.Target.IsPositive() && report.Samples > 0 {
		report.TargetMet = report.Last.GreaterThanOrEqual(m.cfg.Target)
	}

	m.logger.Info("price monitor finished", report.Fields()...)
	return report
}

// String returns a one-line description.
func (r Report) String() string {
	return fmt.Sprintf("%s: %d samples, %d errors, rate %s..%s mean %s, change %s%%",
		r.Route, r.Samples, r.Errors, r.Min, r.Max, r.Mean.StringFixed(6), r.ChangePct.StringFixed(4))
}
