package venue

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tathienbao/amm-limit-agent/internal/types"
)

// PaperConfig holds paper pool configuration.
type PaperConfig struct {
	// Rate is the output per unit of input, applied to every direction.
	Rate decimal.Decimal
	// Path, when set, replaces Rate with the next element on each quote.
	// The last element repeats once the path is exhausted.
	Path []decimal.Decimal
	// Depth is the largest input the pool can absorb; zero means unlimited.
	Depth uint64
	// Latency simulates the round trip of every call.
	Latency time.Duration
}

// DefaultPaperConfig returns a 1:1 pool with unlimited depth.
func DefaultPaperConfig() PaperConfig {
	return PaperConfig{
		Rate: decimal.NewFromInt(1),
	}
}

// PaperFill is one execution performed by the paper pool.
type PaperFill struct {
	Ref    string
	In     int
	Out    int
	Amount uint64
	MinOut uint64
	Output uint64
	At     time.Time
}

// PaperPool is an in-process pool simulation implementing Venue.
type PaperPool struct {
	cfg    PaperConfig
	logger *zap.Logger

	mu     sync.Mutex
	rate   decimal.Decimal
	step   int
	quotes int
	fills  []PaperFill
}

// NewPaperPool creates a paper pool.
func NewPaperPool(cfg PaperConfig, logger *zap.Logger) *PaperPool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaperPool{
		cfg:    cfg,
		logger: logger,
		rate:   cfg.Rate,
	}
}

// SetRate overrides the current rate.
func (p *PaperPool) SetRate(rate decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rate = rate
}

// Quote returns floor(amount * rate), or zero above the configured depth.
func (p *PaperPool) Quote(ctx context.Context, in, out int, amount uint64) (uint64, error) {
	if err := p.wait(ctx); err != nil {
		return 0, fmt.Errorf("%w: %w", types.ErrQuoteUnavailable, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.step < len(p.cfg.Path) {
		p.rate = p.cfg.Path[p.step]
		p.step++
	}
	p.quotes++

	return p.outputFor(amount), nil
}

// Execute fills at the current rate and rejects outputs below minOut.
func (p *PaperPool) Execute(ctx context.Context, in, out int, amount, minOut uint64) (string, error) {
	if err := p.wait(ctx); err != nil {
		return "", fmt.Errorf("%w: %w", types.ErrExecutionFailed, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	output := p.outputFor(amount)
	if output == 0 {
		return "", fmt.Errorf("%w: no liquidity for %d", types.ErrExecutionFailed, amount)
	}
	if output < minOut {
		return "", fmt.Errorf("%w: %w: got %d, minimum %d", types.ErrExecutionFailed, types.ErrSlippageExceeded, output, minOut)
	}

	fill := PaperFill{
		Ref:    "paper-" + uuid.NewString(),
		In:     in,
		Out:    out,
		Amount: amount,
		MinOut: minOut,
		Output: output,
		At:     time.Now(),
	}
	p.fills = append(p.fills, fill)

	p.logger.Info("paper fill",
		zap.String("ref", fill.Ref),
		zap.Int("in", in),
		zap.Int("out", out),
		zap.Uint64("amount", amount),
		zap.Uint64("output", output),
		zap.Uint64("min_out", minOut),
	)

	return fill.Ref, nil
}

// Fills returns a copy of all executions.
func (p *PaperPool) Fills() []PaperFill {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PaperFill, len(p.fills))
	copy(out, p.fills)
	return out
}

// Quotes returns how many quotes were served.
func (p *PaperPool) Quotes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.quotes
}

// outputFor must be called with mu held.
func (p *PaperPool) outputFor(amount uint64) uint64 {
	if p.cfg.Depth > 0 && amount > p.cfg.Depth {
		return 0
	}
	d := decimal.NewFromBigInt(new(big.Int).SetUint64(amount), 0).Mul(p.rate).Floor()
	if d.IsNegative() {
		return 0
	}
	b := d.BigInt()
	if !b.IsUint64() {
		return 0
	}
	return b.Uint64()
}

func (p *PaperPool) wait(ctx context.Context) error {
	if p.cfg.Latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(p.cfg.Latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
