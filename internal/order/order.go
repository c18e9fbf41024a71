// Package order defines the limit order entity, its lifecycle state machine
// and the arithmetic every time-in-force policy shares.
package order

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tathienbao/amm-limit-agent/internal/types"
)

// DefaultGTTExpiry is applied to GTT orders created without an expiry.
const DefaultGTTExpiry = time.Hour

// Route identifies the trade direction within a venue.
type Route struct {
	Pool string `json:"pool" yaml:"pool"`
	In   int    `json:"in" yaml:"in"`
	Out  int    `json:"out" yaml:"out"`
}

func (r Route) String() string {
	return fmt.Sprintf("%s[%d->%d]", r.Pool, r.In, r.Out)
}

// Params is the caller supplied intent of a new order.
type Params struct {
	ID          string
	InputToken  string
	OutputToken string
	InputAmount uint64
	LimitRate   decimal.Decimal
	Slippage    decimal.Decimal
	TIF         TimeInForce
	Route       Route
	User        string
	// Credential references the signing key. It is carried, never logged.
	Credential string
	// ExpiresAt or ExpiresIn set the GTT deadline; ExpiresAt wins when both are set.
	ExpiresAt time.Time
	ExpiresIn time.Duration
}

// Quote is the most recent quote observed for an order.
type Quote struct {
	Amount uint64    `json:"amount"`
	Output uint64    `json:"output"`
	At     time.Time `json:"at"`
}

// Order is one trade intent and its progress. An order is owned by a single
// execution loop at a time and is not safe for concurrent use; observers
// read a Snapshot instead.
type Order struct {
	id          string
	createdAt   time.Time
	inputToken  string
	outputToken string
	inputAmount uint64
	limitRate   decimal.Decimal
	slippage    decimal.Decimal
	tif         TimeInForce
	expiresAt   time.Time
	route       Route
	user        string
	credential  string
	minOutput   uint64

	status      Status
	filled      uint64
	received    uint64
	settlement  string
	reason      string
	priceChecks int
	lastQuote   Quote
}

// New validates p and creates a PENDING order.
func New(p Params, now time.Time) (*Order, error) {
	if err := validate(p); err != nil {
		return nil, err
	}

	minOutput, ok := floorUnits(units(p.InputAmount).Mul(p.LimitRate))
	if !ok {
		return nil, fmt.Errorf("%w: minimum output overflows", types.ErrInvalidOrder)
	}

	id := p.ID
	if id == "" {
		id = uuid.NewString()
	}

	o := &Order{
		id:          id,
		createdAt:   now,
		inputToken:  p.InputToken,
		outputToken: p.OutputToken,
		inputAmount: p.InputAmount,
		limitRate:   p.LimitRate,
		slippage:    p.Slippage,
		tif:         p.TIF,
		route:       p.Route,
		user:        p.User,
		credential:  p.Credential,
		minOutput:   minOutput,
		status:      StatusPending,
	}

	if p.TIF == GTT {
		switch {
		case !p.ExpiresAt.IsZero():
			o.expiresAt = p.ExpiresAt
		case p.ExpiresIn > 0:
			o.expiresAt = now.Add(p.ExpiresIn)
		default:
			o.expiresAt = now.Add(DefaultGTTExpiry)
		}
		if !o.expiresAt.After(now) {
			return nil, fmt.Errorf("%w: expiry %s is not after creation", types.ErrInvalidOrder, o.expiresAt.Format(time.RFC3339))
		}
	}

	return o, nil
}

func validate(p Params) error {
	switch {
	case p.InputAmount == 0:
		return fmt.Errorf("%w: input amount must be positive", types.ErrInvalidOrder)
	case !p.LimitRate.IsPositive():
		return fmt.Errorf("%w: limit rate must be positive, got %s", types.ErrInvalidOrder, p.LimitRate)
	case p.Slippage.IsNegative() || p.Slippage.GreaterThanOrEqual(one):
		return fmt.Errorf("%w: slippage must be in [0,1), got %s", types.ErrInvalidOrder, p.Slippage)
	case p.Route.In == p.Route.Out:
		return fmt.Errorf("%w: input and output index are both %d", types.ErrInvalidOrder, p.Route.In)
	case p.Route.In < 0 || p.Route.Out < 0:
		return fmt.Errorf("%w: negative token index", types.ErrInvalidOrder)
	case !p.TIF.Valid():
		return fmt.Errorf("%w: %w", types.ErrInvalidOrder, types.ErrUnknownTIF)
	}
	return nil
}

// ID returns the order identifier.
func (o *Order) ID() string { return o.id }

// CreatedAt returns the creation time.
func (o *Order) CreatedAt() time.Time { return o.createdAt }

// InputToken returns the input token reference.
func (o *Order) InputToken() string { return o.inputToken }

// OutputToken returns the output token reference.
func (o *Order) OutputToken() string { return o.outputToken }

// InputAmount returns the quantity to sell, in token units.
func (o *Order) InputAmount() uint64 { return o.inputAmount }

// LimitRate returns the minimum output/input ratio.
func (o *Order) LimitRate() decimal.Decimal { return o.limitRate }

// Slippage returns the slippage tolerance.
func (o *Order) Slippage() decimal.Decimal { return o.slippage }

// TIF returns the time-in-force policy.
func (o *Order) TIF() TimeInForce { return o.tif }

// ExpiresAt returns the GTT deadline, zero for other policies.
func (o *Order) ExpiresAt() time.Time { return o.expiresAt }

// Route returns the pool and direction.
func (o *Order) Route() Route { return o.route }

// User returns the counterparty reference.
func (o *Order) User() string { return o.user }

// Credential returns the signing credential reference.
func (o *Order) Credential() string { return o.credential }

// MinOutput returns floor(input * limit), fixed at creation.
func (o *Order) MinOutput() uint64 { return o.minOutput }

// Status returns the lifecycle state.
func (o *Order) Status() Status { return o.status }

// Filled returns the executed input quantity.
func (o *Order) Filled() uint64 { return o.filled }

// Received returns the output quantity credited by fills.
func (o *Order) Received() uint64 { return o.received }

// Remaining returns input minus filled.
func (o *Order) Remaining() uint64 { return o.inputAmount - o.filled }

// Settlement returns the settlement reference of the fill, if any.
func (o *Order) Settlement() string { return o.settlement }

// Reason explains a cancel, expiry, failure or partial fill.
func (o *Order) Reason() string { return o.reason }

// PriceChecks returns how many quotes have been obtained for the order.
func (o *Order) PriceChecks() int { return o.priceChecks }

// LastQuote returns the most recent quote.
func (o *Order) LastQuote() Quote { return o.lastQuote }

// TIFString returns the display string of the policy.
func (o *Order) TIFString() string { return o.tif.String() }

// StatusString returns the display string of the status.
func (o *Order) StatusString() string { return o.status.String() }

// IsExpired reports whether a GTT order has reached its deadline at now.
// Orders under any other policy never expire.
func (o *Order) IsExpired(now time.Time) bool {
	return o.tif == GTT && !now.Before(o.expiresAt)
}

// String implements fmt.Stringer. The credential is never included.
func (o *Order) String() string {
	return fmt.Sprintf("Order{id=%s tif=%s status=%s in=%d limit=%s filled=%d}",
		o.id, o.tif, o.status, o.inputAmount, o.limitRate, o.filled)
}

// Snapshot is a point-in-time copy of an order for observers.
type Snapshot struct {
	ID          string          `json:"id"`
	CreatedAt   time.Time       `json:"created_at"`
	InputToken  string          `json:"input_token"`
	OutputToken string          `json:"output_token"`
	Route       Route           `json:"route"`
	User        string          `json:"user,omitempty"`
	TIF         TimeInForce     `json:"tif"`
	InputAmount uint64          `json:"input_amount"`
	LimitRate   decimal.Decimal `json:"limit_rate"`
	Slippage    decimal.Decimal `json:"slippage"`
	MinOutput   uint64          `json:"min_output"`
	ExpiresAt   time.Time       `json:"expires_at,omitzero"`
	Status      Status          `json:"status"`
	Filled      uint64          `json:"filled"`
	Received    uint64          `json:"received"`
	FillPct     decimal.Decimal `json:"fill_pct"`
	Settlement  string          `json:"settlement,omitempty"`
	Reason      string          `json:"reason,omitempty"`
	PriceChecks int             `json:"price_checks"`
	LastQuote   Quote           `json:"last_quote"`
}

// Snapshot copies the current state of the order.
func (o *Order) Snapshot() Snapshot {
	return Snapshot{
		ID:          o.id,
		CreatedAt:   o.createdAt,
		InputToken:  o.inputToken,
		OutputToken: o.outputToken,
		Route:       o.route,
		User:        o.user,
		TIF:         o.tif,
		InputAmount: o.inputAmount,
		LimitRate:   o.limitRate,
		Slippage:    o.slippage,
		MinOutput:   o.minOutput,
		ExpiresAt:   o.expiresAt,
		Status:      o.status,
		Filled:      o.filled,
		Received:    o.received,
		FillPct:     o.FillPercentage(),
		Settlement:  o.settlement,
		Reason:      o.reason,
		PriceChecks: o.priceChecks,
		LastQuote:   o.lastQuote,
	}
}
