package order

import (
	"fmt"
	"time"

	"github.com/tathienbao/amm-limit-agent/internal/types"
)

// Reasons attached to terminal transitions.
const (
	ReasonPartialFill    = "partial fill executed"
	ReasonCheckLimit     = "iteration limit reached"
	ReasonExpired        = "order expired"
	ReasonNoExecution    = "price not met for any execution"
	ReasonKilled         = "price not met, order killed"
	ReasonNoLiquidity    = "insufficient liquidity"
	ReasonCanceledByUser = "canceled by user"
	ReasonShutdown       = "canceled on shutdown"
)

// transitions lists the legal edges of the lifecycle. Terminal states have none.
var transitions = map[Status][]Status{
	StatusPending: {StatusActive},
	StatusActive: {
		StatusFilled,
		StatusPartiallyFilled,
		StatusCanceled,
		StatusExpired,
		StatusFailed,
	},
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (o *Order) checkTransition(to Status) error {
	if o.status.IsTerminal() {
		return fmt.Errorf("%w: %s is %s, cannot move to %s", types.ErrOrderTerminal, o.id, o.status, to)
	}
	if !CanTransition(o.status, to) {
		return fmt.Errorf("%w: %s -> %s", types.ErrIllegalTransition, o.status, to)
	}
	return nil
}

func (o *Order) transition(to Status, reason string) error {
	if err := o.checkTransition(to); err != nil {
		return err
	}
	o.status = to
	o.reason = reason
	return nil
}

// Activate admits a PENDING order.
func (o *Order) Activate() error {
	return o.transition(StatusActive, "")
}

// RecordPriceCheck counts one obtained quote. It is refused once the order
// has left ACTIVE.
func (o *Order) RecordPriceCheck(amount, output uint64, at time.Time) error {
	if o.status.IsTerminal() {
		return fmt.Errorf("%w: %s", types.ErrOrderTerminal, o.id)
	}
	if o.status != StatusActive {
		return fmt.Errorf("%w: %s is %s", types.ErrOrderNotActive, o.id, o.status)
	}
	o.priceChecks++
	o.lastQuote = Quote{Amount: amount, Output: output, At: at}
	return nil
}

// Fill completes the order. amount must equal the remaining quantity.
func (o *Order) Fill(settlement string, amount, received uint64) error {
	if err := o.checkTransition(StatusFilled); err != nil {
		return err
	}
	if amount == 0 || amount != o.Remaining() {
		return fmt.Errorf("%w: fill of %d against remaining %d", types.ErrInvalidFill, amount, o.Remaining())
	}
	o.applyFill(settlement, amount, received)
	return o.transition(StatusFilled, "")
}

// PartialFill records an execution of part of the order and ends it.
func (o *Order) PartialFill(settlement string, amount, received uint64) error {
	if err := o.checkTransition(StatusPartiallyFilled); err != nil {
		return err
	}
	if amount == 0 || amount > o.Remaining() {
		return fmt.Errorf("%w: partial fill of %d against remaining %d", types.ErrInvalidFill, amount, o.Remaining())
	}
	o.applyFill(settlement, amount, received)
	return o.transition(StatusPartiallyFilled, ReasonPartialFill)
}

func (o *Order) applyFill(settlement string, amount, received uint64) {
	o.filled += amount
	o.received += received
	o.settlement = settlement
}

// Cancel ends the order as CANCELED.
func (o *Order) Cancel(reason string) error {
	return o.transition(StatusCanceled, reason)
}

// Expire ends the order as EXPIRED.
func (o *Order) Expire(reason string) error {
	return o.transition(StatusExpired, reason)
}

// Fail ends the order as FAILED.
func (o *Order) Fail(reason string) error {
	return o.transition(StatusFailed, reason)
}
