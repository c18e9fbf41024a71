package engine

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tathienbao/amm-limit-agent/internal/alerting"
	"github.com/tathienbao/amm-limit-agent/internal/execution"
	"github.com/tathienbao/amm-limit-agent/internal/journal"
	"github.com/tathienbao/amm-limit-agent/internal/metrics"
	"github.com/tathienbao/amm-limit-agent/internal/order"
	"github.com/tathienbao/amm-limit-agent/internal/types"
	"github.com/tathienbao/amm-limit-agent/internal/venue"
)

func loopConfig(interval time.Duration) execution.Config {
	cfg := execution.DefaultConfig()
	cfg.PollInterval = interval
	cfg.MaxChecks = 3
	return cfg
}

func newPool(rate string) *venue.PaperPool {
	cfg := venue.DefaultPaperConfig()
	cfg.Rate = decimal.RequireFromString(rate)
	return venue.NewPaperPool(cfg, nil)
}

func createTestEngine(t *testing.T, cfg Config, pool *venue.PaperPool, interval time.Duration, opts ...Option) *Engine {
	t.Helper()
	loop := execution.NewLoop(loopConfig(interval), pool, pool, nil)
	e := New(cfg, loop, nil, opts...)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func newTestOrder(t *testing.T, id string, tif order.TimeInForce, amount uint64) *order.Order {
	t.Helper()
	o, err := order.New(order.Params{
		ID:          id,
		InputToken:  "USDC",
		OutputToken: "USDT",
		InputAmount: amount,
		LimitRate:   decimal.RequireFromString("1.00"),
		Slippage:    decimal.RequireFromString("0.005"),
		TIF:         tif,
		Route:       order.Route{Pool: "paper", In: 1, Out: 0},
		ExpiresIn:   time.Hour,
	}, time.Now())
	require.NoError(t, err)
	return o
}

func TestNew_Defaults(t *testing.T) {
	e := New(Config{}, nil, nil)

	assert.Equal(t, 1, e.cfg.Concurrency)
	assert.Equal(t, DefaultConfig().ShutdownTimeout, e.cfg.ShutdownTimeout)
	assert.False(t, e.IsRunning())
	assert.Empty(t, e.Orders())
}

func TestEngine_Add(t *testing.T) {
	e := createTestEngine(t, DefaultConfig(), newPool("1.01"), time.Millisecond)

	o := newTestOrder(t, "ord-1", order.GTC, 1_000_000)
	require.NoError(t, e.Add(o))
	assert.Equal(t, order.StatusActive, o.Status())

	snap, err := e.Order("ord-1")
	require.NoError(t, err)
	assert.Equal(t, order.StatusActive, snap.Status)

	err = e.Add(newTestOrder(t, "ord-1", order.IOC, 5))
	assert.ErrorIs(t, err, types.ErrDuplicateOrder)
	assert.Len(t, e.Orders(), 1)
}

func TestEngine_Add_RejectsActiveOrder(t *testing.T) {
	e := createTestEngine(t, DefaultConfig(), newPool("1.01"), time.Millisecond)

	o := newTestOrder(t, "ord-1", order.GTC, 1_000_000)
	require.NoError(t, o.Activate())

	err := e.Add(o)
	assert.ErrorIs(t, err, types.ErrIllegalTransition)
	assert.Empty(t, e.Orders())
}

func TestEngine_Run_Sequential(t *testing.T) {
	pool := newPool("1.01")
	alerter := alerting.NewMockAlerter()
	e := createTestEngine(t, DefaultConfig(), pool, time.Millisecond, WithAlerter(alerter))

	ids := []string{"gtc", "gtt", "ioc", "fok"}
	for i, tif := range []order.TimeInForce{order.GTC, order.GTT, order.IOC, order.FOK} {
		require.NoError(t, e.Add(newTestOrder(t, ids[i], tif, 1_000_000)))
	}

	outcomes, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, outcomes, 4)

	for i, snap := range outcomes {
		assert.Equal(t, ids[i], snap.ID, "admission order")
		assert.Equal(t, order.StatusFilled, snap.Status, snap.ID)
		assert.Equal(t, uint64(1_010_000), snap.Received, snap.ID)
		assert.NotEmpty(t, snap.Settlement, snap.ID)
	}

	fills := pool.Fills()
	require.Len(t, fills, 4)
	for _, f := range fills {
		assert.Equal(t, uint64(1_004_950), f.MinOut)
	}

	assert.Equal(t, 4, alerter.CountEvent(alerting.EventOrderFilled))
	assert.Equal(t, map[order.Status]int{order.StatusFilled: 4}, e.Summary())
	assert.False(t, e.IsRunning())
}

func TestEngine_Run_QuoteFailureIsIsolated(t *testing.T) {
	pool := newPool("1.01")
	const badAmount = 777_000
	quotes := venue.QuoteFunc(func(ctx context.Context, in, out int, amount uint64) (uint64, error) {
		if amount == badAmount {
			return 0, errors.Join(types.ErrQuoteUnavailable, errors.New("rpc down"))
		}
		return pool.Quote(ctx, in, out, amount)
	})
	alerter := alerting.NewMockAlerter()
	loop := execution.NewLoop(loopConfig(time.Millisecond), quotes, pool, nil)
	e := New(DefaultConfig(), loop, nil, WithAlerter(alerter))
	t.Cleanup(func() { _ = e.Close() })

	require.NoError(t, e.Add(newTestOrder(t, "bad", order.IOC, badAmount)))
	require.NoError(t, e.Add(newTestOrder(t, "next", order.FOK, 1_000_000)))
	require.NoError(t, e.Add(newTestOrder(t, "last", order.GTC, 1_000_000)))

	outcomes, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, outcomes, 3)

	assert.Equal(t, "bad", outcomes[0].ID)
	assert.Equal(t, order.StatusFailed, outcomes[0].Status)
	assert.Contains(t, outcomes[0].Reason, "rpc down")
	assert.Zero(t, outcomes[0].Filled)

	for _, snap := range outcomes[1:] {
		assert.Equal(t, order.StatusFilled, snap.Status, snap.ID)
		assert.Equal(t, uint64(1_010_000), snap.Received, snap.ID)
	}
	assert.Len(t, pool.Fills(), 2)
	assert.Equal(t, map[order.Status]int{order.StatusFailed: 1, order.StatusFilled: 2}, e.Summary())
}

func TestEngine_Run_TerminalOrdersSkipped(t *testing.T) {
	pool := newPool("1.01")
	e := createTestEngine(t, DefaultConfig(), pool, time.Millisecond)

	require.NoError(t, e.Add(newTestOrder(t, "ord-1", order.IOC, 1_000_000)))
	_, err := e.Run(context.Background())
	require.NoError(t, err)

	outcomes, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, outcomes)
	assert.Len(t, pool.Fills(), 1)
}

func TestEngine_Run_AlreadyRunning(t *testing.T) {
	e := createTestEngine(t, DefaultConfig(), newPool("0.90"), time.Hour)
	require.NoError(t, e.Add(newTestOrder(t, "slow", order.GTC, 1_000_000)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = e.Run(ctx)
	}()

	require.Eventually(t, e.IsRunning, time.Second, time.Millisecond)

	_, err := e.Run(context.Background())
	assert.ErrorIs(t, err, types.ErrEngineRunning)

	cancel()
	<-done
}

func TestEngine_Cancel(t *testing.T) {
	alerter := alerting.NewMockAlerter()
	e := createTestEngine(t, DefaultConfig(), newPool("0.90"), time.Hour, WithAlerter(alerter))
	require.NoError(t, e.Add(newTestOrder(t, "wait", order.GTC, 1_000_000)))

	var (
		outcomes []order.Snapshot
		runErr   error
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		outcomes, runErr = e.Run(context.Background())
	}()

	require.Eventually(t, func() bool {
		s, _ := e.Order("wait")
		return s.PriceChecks == 1
	}, time.Second, time.Millisecond)

	require.NoError(t, e.Cancel("wait"))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("engine did not stop after cancel")
	}

	require.NoError(t, runErr)
	require.Len(t, outcomes, 1)
	assert.Equal(t, order.StatusCanceled, outcomes[0].Status)
	assert.Equal(t, order.ReasonCanceledByUser, outcomes[0].Reason)
	assert.Equal(t, 1, alerter.CountEvent(alerting.EventOrderCanceled))

	assert.ErrorIs(t, e.Cancel("wait"), types.ErrOrderTerminal)
}

func TestEngine_Cancel_BeforeRun(t *testing.T) {
	pool := newPool("1.01")
	e := createTestEngine(t, DefaultConfig(), pool, time.Millisecond)
	require.NoError(t, e.Add(newTestOrder(t, "a", order.GTC, 1_000_000)))
	require.NoError(t, e.Add(newTestOrder(t, "b", order.GTC, 1_000_000)))

	require.NoError(t, e.Cancel("a"))

	outcomes, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, outcomes, 2)

	assert.Equal(t, order.StatusCanceled, outcomes[0].Status)
	assert.Equal(t, order.ReasonCanceledByUser, outcomes[0].Reason)
	assert.Equal(t, 0, outcomes[0].PriceChecks)
	assert.Equal(t, order.StatusFilled, outcomes[1].Status)
}

func TestEngine_Cancel_Unknown(t *testing.T) {
	e := createTestEngine(t, DefaultConfig(), newPool("1.01"), time.Millisecond)
	assert.ErrorIs(t, e.Cancel("nope"), types.ErrOrderNotFound)

	_, err := e.Order("nope")
	assert.ErrorIs(t, err, types.ErrOrderNotFound)
}

func TestEngine_Shutdown(t *testing.T) {
	cfg := Config{Concurrency: 3, ShutdownTimeout: time.Second}
	e := createTestEngine(t, cfg, newPool("0.90"), time.Hour)
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, e.Add(newTestOrder(t, id, order.GTC, 1_000_000)))
	}

	ctx, cancel := context.WithCancel(context.Background())
	var outcomes []order.Snapshot
	done := make(chan struct{})
	go func() {
		defer close(done)
		outcomes, _ = e.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		for _, s := range e.Orders() {
			if s.PriceChecks == 0 {
				return false
			}
		}
		return true
	}, time.Second, time.Millisecond)

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("engine did not stop on shutdown")
	}

	require.Len(t, outcomes, 3)
	for _, s := range outcomes {
		assert.Equal(t, order.StatusCanceled, s.Status, s.ID)
		assert.Equal(t, order.ReasonShutdown, s.Reason, s.ID)
	}
}

func TestEngine_Run_Concurrent(t *testing.T) {
	cfg := venue.DefaultPaperConfig()
	cfg.Rate = decimal.RequireFromString("1.01")
	cfg.Latency = 20 * time.Millisecond
	pool := venue.NewPaperPool(cfg, nil)

	e := createTestEngine(t, Config{Concurrency: 4}, pool, time.Millisecond)
	ids := []string{"a", "b", "c", "d"}
	for _, id := range ids {
		require.NoError(t, e.Add(newTestOrder(t, id, order.IOC, 1_000_000)))
	}

	start := time.Now()
	outcomes, err := e.Run(context.Background())
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.Len(t, outcomes, 4)
	for i, s := range outcomes {
		assert.Equal(t, ids[i], s.ID)
		assert.Equal(t, order.StatusFilled, s.Status)
	}
	// Sequentially this takes 8 latencies (quote and execute per order).
	assert.Less(t, elapsed, 6*cfg.Latency)
}

func TestEngine_Journal(t *testing.T) {
	j, err := journal.NewSQLiteJournal(filepath.Join(t.TempDir(), "outcomes.db"))
	require.NoError(t, err)

	e := createTestEngine(t, DefaultConfig(), newPool("1.01"), time.Millisecond, WithJournal(j))
	require.NoError(t, e.Add(newTestOrder(t, "ord-1", order.FOK, 1_000_000)))

	_, err = e.Run(context.Background())
	require.NoError(t, err)

	got, err := j.GetOutcome(context.Background(), "ord-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "FILLED", got.Status)
	assert.Equal(t, uint64(1_010_000), got.Received)
	// FOK counts the price quote and the liquidity probe.
	assert.Equal(t, 2, got.PriceChecks)
}

func TestEngine_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := metrics.NewRecorder(reg)

	e := createTestEngine(t, DefaultConfig(), newPool("1.01"), time.Millisecond, WithRecorder(rec))
	require.NoError(t, e.Add(newTestOrder(t, "a", order.IOC, 1_000_000)))
	require.NoError(t, e.Add(newTestOrder(t, "b", order.GTC, 1_000_000)))

	_, err := e.Run(context.Background())
	require.NoError(t, err)

	n, err := testutil.GatherAndCount(reg, "limitagent_order_outcomes_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "one series per tif")

	n, err = testutil.GatherAndCount(reg, "limitagent_orders_admitted_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

// blockingJournal holds RecordOutcome until released.
type blockingJournal struct {
	mu      sync.Mutex
	release chan struct{}
	got     []string
}

func (b *blockingJournal) RecordOutcome(ctx context.Context, snap order.Snapshot) error {
	select {
	case <-b.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	b.mu.Lock()
	b.got = append(b.got, snap.ID)
	b.mu.Unlock()
	return nil
}

func TestEngine_ReportOutlivesShutdown(t *testing.T) {
	j := &blockingJournal{release: make(chan struct{})}
	e := createTestEngine(t, Config{Concurrency: 1, ShutdownTimeout: time.Second}, newPool("0.90"), time.Hour, WithJournal(j))
	require.NoError(t, e.Add(newTestOrder(t, "a", order.GTC, 1_000_000)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = e.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		s, _ := e.Order("a")
		return s.PriceChecks == 1
	}, time.Second, time.Millisecond)
	cancel()
	close(j.release)
	<-done

	j.mu.Lock()
	defer j.mu.Unlock()
	assert.Equal(t, []string{"a"}, j.got)
}

type closingJournal struct {
	err error
}

func (c *closingJournal) RecordOutcome(context.Context, order.Snapshot) error { return nil }
func (c *closingJournal) Close() error                                        { return c.err }

func TestEngine_Close(t *testing.T) {
	boom := errors.New("boom")
	e := New(DefaultConfig(), nil, nil, WithJournal(&closingJournal{err: boom}))
	assert.ErrorIs(t, e.Close(), boom)

	e = New(DefaultConfig(), nil, nil, WithJournal(&closingJournal{}))
	assert.NoError(t, e.Close())
}
