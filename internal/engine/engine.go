// Package engine admits limit orders, runs each through the execution loop
// and reports every terminal outcome.
package engine

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tathienbao/amm-limit-agent/internal/alerting"
	"github.com/tathienbao/amm-limit-agent/internal/execution"
	"github.com/tathienbao/amm-limit-agent/internal/metrics"
	"github.com/tathienbao/amm-limit-agent/internal/order"
	"github.com/tathienbao/amm-limit-agent/internal/types"
)

// Config holds engine configuration.
type Config struct {
	// Concurrency is the number of orders run at once. 1 runs orders
	// sequentially in admission order.
	Concurrency int
	// ShutdownTimeout bounds outcome reporting after ctx is canceled.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns default engine config.
func DefaultConfig() Config {
	return Config{
		Concurrency:     1,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Journal stores terminal outcomes.
type Journal interface {
	RecordOutcome(ctx context.Context, snap order.Snapshot) error
}

// Option configures an Engine.
type Option func(*Engine)

// WithJournal records every terminal outcome in j.
func WithJournal(j Journal) Option {
	return func(e *Engine) { e.journal = j }
}

// WithAlerter sends an event alert for every terminal outcome.
func WithAlerter(a alerting.EventAlerter) Option {
	return func(e *Engine) { e.alerter = a }
}

// WithRecorder records admission and outcome metrics.
func WithRecorder(r *metrics.Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// entry is one admitted order. snap is the registry view; the order itself
// is only touched by the goroutine running it.
type entry struct {
	o      *order.Order
	ctx    context.Context
	cancel context.CancelCauseFunc
	snap   order.Snapshot
}

// Engine coordinates the execution of admitted orders.
type Engine struct {
	cfg      Config
	loop     *execution.Loop
	logger   *zap.Logger
	journal  Journal
	alerter  alerting.EventAlerter
	recorder *metrics.Recorder

	mu      sync.RWMutex
	running bool
	entries []*entry
	byID    map[string]*entry
}

// New creates an engine that runs orders through loop.
func New(cfg Config, loop *execution.Loop, logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultConfig().ShutdownTimeout
	}

	e := &Engine{
		cfg:    cfg,
		loop:   loop,
		logger: logger,
		byID:   make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Add admits a PENDING order, moving it to ACTIVE.
func (e *Engine) Add(o *order.Order) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.byID[o.ID()]; ok {
		return fmt.Errorf("%w: %s", types.ErrDuplicateOrder, o.ID())
	}
	if err := o.Activate(); err != nil {
		return fmt.Errorf("admit %s: %w", o.ID(), err)
	}

	ctx, cancel := context.WithCancelCause(context.Background())
	ent := &entry{o: o, ctx: ctx, cancel: cancel, snap: o.Snapshot()}
	e.entries = append(e.entries, ent)
	e.byID[o.ID()] = ent

	e.recorder.RecordAdmitted(o.TIFString())
	e.logger.Info("order admitted",
		zap.String("order_id", o.ID()),
		zap.String("tif", o.TIFString()),
		zap.Uint64("input", o.InputAmount()),
		zap.String("limit_rate", o.LimitRate().String()),
	)
	return nil
}

// Run drives every admitted, non-terminal order to a terminal state and
// returns the outcomes in admission order. Canceling ctx cancels orders that
// are still waiting. One order's failure never stops the others.
func (e *Engine) Run(ctx context.Context) ([]order.Snapshot, error) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil, types.ErrEngineRunning
	}
	e.running = true
	var pending []*entry
	for _, ent := range e.entries {
		if !ent.snap.Status.IsTerminal() {
			pending = append(pending, ent)
		}
	}
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	e.logger.Info("engine started",
		zap.Int("orders", len(pending)),
		zap.Int("concurrency", e.cfg.Concurrency),
	)

	var (
		errMu sync.Mutex
		errs  error
	)
	runOne := func(ent *entry) {
		if err := e.runOrder(ctx, ent); err != nil {
			errMu.Lock()
			errs = multierr.Append(errs, err)
			errMu.Unlock()
		}
	}

	if e.cfg.Concurrency == 1 {
		for _, ent := range pending {
			runOne(ent)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(e.cfg.Concurrency)
		for _, ent := range pending {
			ent := ent
			g.Go(func() error {
				runOne(ent)
				return nil
			})
		}
		_ = g.Wait()
	}

	outcomes := make([]order.Snapshot, 0, len(pending))
	e.mu.RLock()
	for _, ent := range pending {
		outcomes = append(outcomes, ent.snap)
	}
	e.mu.RUnlock()

	e.logger.Info("engine finished", zap.Int("orders", len(outcomes)))
	return outcomes, errs
}

// runOrder runs one order with a context canceled by either ctx or Cancel.
func (e *Engine) runOrder(ctx context.Context, ent *entry) error {
	stop := context.AfterFunc(ctx, func() {
		ent.cancel(context.Cause(ctx))
	})
	defer stop()

	observe := func(s order.Snapshot) {
		e.recorder.RecordHeartbeat()
		e.mu.Lock()
		ent.snap = s
		e.mu.Unlock()
	}

	if err := e.loop.Run(ent.ctx, ent.o, observe); err != nil {
		e.logger.Error("order run failed",
			zap.String("order_id", ent.o.ID()),
			zap.Error(err),
		)
		return fmt.Errorf("run %s: %w", ent.o.ID(), err)
	}

	snap := ent.o.Snapshot()
	e.mu.Lock()
	ent.snap = snap
	e.mu.Unlock()

	e.report(ctx, snap)
	return nil
}

// report records a terminal outcome in the journal, alerts and metrics.
// Reporting outlives ctx by at most ShutdownTimeout.
func (e *Engine) report(ctx context.Context, snap order.Snapshot) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.ShutdownTimeout)
	defer cancel()

	e.recorder.RecordOutcome(snap.TIF.String(), snap.Status.String(), snap.PriceChecks, snap.Filled, snap.Received)

	if e.journal != nil {
		if err := e.journal.RecordOutcome(rctx, snap); err != nil {
			e.logger.Warn("failed to journal outcome", zap.String("order_id", snap.ID), zap.Error(err))
			e.recorder.RecordError("journal")
		}
	}

	if e.alerter != nil {
		event, msg := outcomeEvent(snap.Status)
		fields := []any{
			"order_id", snap.ID,
			"tif", snap.TIF.String(),
			"route", snap.Route.String(),
			"filled", snap.Filled,
			"received", snap.Received,
			"price_checks", snap.PriceChecks,
		}
		if snap.Reason != "" {
			fields = append(fields, "reason", snap.Reason)
		}
		if snap.Settlement != "" {
			fields = append(fields, "settlement", snap.Settlement)
		}
		if err := e.alerter.AlertEvent(rctx, event, msg, fields...); err != nil {
			e.logger.Warn("failed to send outcome alert", zap.String("order_id", snap.ID), zap.Error(err))
			e.recorder.RecordError("alert")
		}
	}
}

func outcomeEvent(s order.Status) (alerting.AlertEvent, string) {
	switch s {
	case order.StatusFilled:
		return alerting.EventOrderFilled, "Order filled"
	case order.StatusPartiallyFilled:
		return alerting.EventOrderPartiallyFilled, "Order partially filled"
	case order.StatusCanceled:
		return alerting.EventOrderCanceled, "Order canceled"
	case order.StatusExpired:
		return alerting.EventOrderExpired, "Order expired"
	default:
		return alerting.EventOrderFailed, "Order failed"
	}
}

// Cancel cancels one order on behalf of its user. A waiting order ends as
// CANCELED at its next wait; an order that has not started yet is canceled
// as soon as it is run.
func (e *Engine) Cancel(id string) error {
	e.mu.RLock()
	ent, ok := e.byID[id]
	var status order.Status
	if ok {
		status = ent.snap.Status
	}
	e.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", types.ErrOrderNotFound, id)
	}
	if status.IsTerminal() {
		return fmt.Errorf("%w: %s is %s", types.ErrOrderTerminal, id, status)
	}

	ent.cancel(types.ErrCanceledByUser)
	e.logger.Info("order cancel requested", zap.String("order_id", id))
	return nil
}

// Orders returns a snapshot of every admitted order in admission order.
func (e *Engine) Orders() []order.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]order.Snapshot, len(e.entries))
	for i, ent := range e.entries {
		out[i] = ent.snap
	}
	return out
}

// Order returns the snapshot of one order.
func (e *Engine) Order(id string) (order.Snapshot, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ent, ok := e.byID[id]
	if !ok {
		return order.Snapshot{}, fmt.Errorf("%w: %s", types.ErrOrderNotFound, id)
	}
	return ent.snap, nil
}

// Summary returns the number of orders per status.
func (e *Engine) Summary() map[order.Status]int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	counts := make(map[order.Status]int)
	for _, ent := range e.entries {
		counts[ent.snap.Status]++
	}
	return counts
}

// IsRunning returns true while Run is in progress.
func (e *Engine) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// Close releases per-order contexts and closes the journal and alerter when
// they hold resources.
func (e *Engine) Close() error {
	e.mu.Lock()
	for _, ent := range e.entries {
		ent.cancel(types.ErrShutdown)
	}
	e.mu.Unlock()

	var err error
	for _, v := range []any{e.journal, e.alerter} {
		if c, ok := v.(io.Closer); ok {
			err = multierr.Append(err, c.Close())
		}
	}
	if err != nil {
		return fmt.Errorf("close engine: %w", err)
	}
	return nil
}
