package order

import (
	"fmt"
	"strings"

	"github.com/tathienbao/amm-limit-agent/internal/types"
)

// TimeInForce selects the policy that decides how long an order may wait.
type TimeInForce int

const (
	GTC TimeInForce = iota // good till canceled (bounded by a check cap)
	GTT                    // good till time
	IOC                    // immediate or cancel
	FOK                    // fill or kill
)

func (t TimeInForce) String() string {
	switch t {
	case GTC:
		return "GTC"
	case GTT:
		return "GTT"
	case IOC:
		return "IOC"
	case FOK:
		return "FOK"
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether t is one of the known policies.
func (t TimeInForce) Valid() bool {
	return t >= GTC && t <= FOK
}

// ParseTimeInForce parses a policy name, case-insensitively.
func ParseTimeInForce(s string) (TimeInForce, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "GTC":
		return GTC, nil
	case "GTT":
		return GTT, nil
	case "IOC":
		return IOC, nil
	case "FOK":
		return FOK, nil
	default:
		return 0, fmt.Errorf("%w: %q", types.ErrUnknownTIF, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t TimeInForce) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *TimeInForce) UnmarshalText(b []byte) error {
	v, err := ParseTimeInForce(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Status is the lifecycle state of an order.
type Status int

const (
	StatusPending Status = iota
	StatusActive
	StatusPartiallyFilled
	StatusFilled
	StatusCanceled
	StatusExpired
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "PENDING"
	case StatusActive:
		return "ACTIVE"
	case StatusPartiallyFilled:
		return "PARTIALLY_FILLED"
	case StatusFilled:
		return "FILLED"
	case StatusCanceled:
		return "CANCELED"
	case StatusExpired:
		return "EXPIRED"
	case StatusFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// IsTerminal returns true once no further transition is allowed.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusPartiallyFilled, StatusFilled, StatusCanceled, StatusExpired, StatusFailed:
		return true
	default:
		return false
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// TerminalStatuses lists every terminal status in display order.
var TerminalStatuses = []Status{
	StatusFilled,
	StatusPartiallyFilled,
	StatusCanceled,
	StatusExpired,
	StatusFailed,
}
