package types

import "errors"

// Sentinel errors for the limit-order agent.
var (
	// Order errors
	ErrInvalidOrder      = errors.New("invalid order")
	ErrInvalidFill       = errors.New("invalid fill amount")
	ErrOrderTerminal     = errors.New("order already in terminal state")
	ErrIllegalTransition = errors.New("illegal state transition")
	ErrDuplicateOrder    = errors.New("duplicate order id")
	ErrOrderNotFound     = errors.New("order not found")
	ErrOrderNotActive    = errors.New("order not active")
	ErrUnknownTIF        = errors.New("unknown time in force")

	// Venue errors
	ErrQuoteUnavailable = errors.New("quote unavailable")
	ErrExecutionFailed  = errors.New("execution failed")
	ErrSlippageExceeded = errors.New("output below minimum")
	ErrRateLimited      = errors.New("rate limit wait aborted")

	// Lifecycle errors
	ErrCanceledByUser = errors.New("canceled by user")
	ErrShutdown       = errors.New("canceled on shutdown")
	ErrEngineRunning  = errors.New("engine already running")

	// Validation errors
	ErrInvalidConfig = errors.New("invalid configuration")
)
