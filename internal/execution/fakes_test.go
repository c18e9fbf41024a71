package execution

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tathienbao/amm-limit-agent/internal/order"
	"github.com/tathienbao/amm-limit-agent/internal/types"
)

// step is one scripted quote response.
type step struct {
	out   uint64
	err   error
	delay time.Duration
}

// scriptedQuotes replays steps in order; the last step repeats.
type scriptedQuotes struct {
	mu      sync.Mutex
	steps   []step
	amounts []uint64
}

func quotes(steps ...step) *scriptedQuotes {
	return &scriptedQuotes{steps: steps}
}

func (s *scriptedQuotes) Quote(ctx context.Context, in, out int, amount uint64) (uint64, error) {
	s.mu.Lock()
	i := len(s.amounts)
	s.amounts = append(s.amounts, amount)
	if i >= len(s.steps) {
		i = len(s.steps) - 1
	}
	st := s.steps[i]
	s.mu.Unlock()

	if st.delay > 0 {
		time.Sleep(st.delay)
	}
	return st.out, st.err
}

func (s *scriptedQuotes) calls() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uint64(nil), s.amounts...)
}

type execCall struct {
	in, out        int
	amount, minOut uint64
}

// recordingExecutor records calls and returns ref or err.
type recordingExecutor struct {
	mu    sync.Mutex
	ref   string
	err   error
	calls []execCall
}

func (e *recordingExecutor) Execute(ctx context.Context, in, out int, amount, minOut uint64) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, execCall{in: in, out: out, amount: amount, minOut: minOut})
	if e.err != nil {
		return "", e.err
	}
	return e.ref, nil
}

func (e *recordingExecutor) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

var errRPC = errors.New("rpc timeout")

func quoteErr() error {
	return errors.Join(types.ErrQuoteUnavailable, errRPC)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.PollInterval = 5 * time.Millisecond
	cfg.MaxChecks = 10
	return cfg
}

func newOrder(t *testing.T, tif order.TimeInForce, limit string, mutate ...func(p *order.Params)) *order.Order {
	t.Helper()
	p := order.Params{
		ID:          "ord-" + tif.String(),
		InputToken:  "USDC",
		OutputToken: "USDT",
		InputAmount: 1_000_000,
		LimitRate:   decimal.RequireFromString(limit),
		Slippage:    decimal.RequireFromString("0.005"),
		TIF:         tif,
		Route:       order.Route{Pool: "0xpool", In: 1, Out: 0},
	}
	for _, m := range mutate {
		m(&p)
	}
	o, err := order.New(p, time.Now())
	if err != nil {
		t.Fatalf("order.New failed: %v", err)
	}
	if err := o.Activate(); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	return o
}
