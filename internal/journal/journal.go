// Package journal persists order outcomes and price samples.
package journal

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tathienbao/amm-limit-agent/internal/order"
)

// Journal defines the interface for outcome persistence.
type Journal interface {
	// Outcome operations
	RecordOutcome(ctx context.Context, snap order.Snapshot) error
	ListOutcomes(ctx context.Context, limit int) ([]Outcome, error)
	GetOutcome(ctx context.Context, orderID string) (*Outcome, error)

	// Sample operations
	RecordSample(ctx context.Context, sample Sample) error
	ListSamples(ctx context.Context, from, to time.Time) ([]Sample, error)

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}

// Outcome is a persisted terminal order.
type Outcome struct {
	ID          int64
	OrderID     string
	TIF         string
	Status      string
	Route       string
	InputToken  string
	OutputToken string
	InputAmount uint64
	LimitRate   decimal.Decimal
	Filled      uint64
	Received    uint64
	Settlement  string
	Reason      string
	PriceChecks int
	CreatedAt   time.Time
	RecordedAt  time.Time
}

// Sample is a single observed quote.
type Sample struct {
	ID        int64
	Timestamp time.Time
	Route     string
	Amount    uint64
	Output    uint64
	Rate      decimal.Decimal
}
