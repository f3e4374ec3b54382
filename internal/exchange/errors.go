package exchange

import (
	"errors"
	"fmt"
)

// Error classes. Adapters wrap the underlying cause with one of these so the
// control loop can pick a recovery policy with errors.Is.
var (
	// ErrTradeRejected means the exchange refused an order for a pair-specific
	// reason (filters, market closed, insufficient lot). The pair is blacklisted.
	ErrTradeRejected = errors.New("trade rejected by exchange")

	// ErrTransient means a network or decoding failure. The cycle is retried later.
	ErrTransient = errors.New("transient exchange error")

	// ErrOperational means a non-retryable condition such as invalid credentials.
	// Trading stops until restarted by an operator.
	ErrOperational = errors.New("operational exchange fault")
)

// Rejected wraps err as ErrTradeRejected.
func Rejected(pair string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrTradeRejected, pair, err)
}

// Transient wraps err as ErrTransient.
func Transient(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrTransient, op, err)
}

// Operational wraps err as ErrOperational.
func Operational(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrOperational, op, err)
}

// Class names the error class of err for logs and metrics.
func Class(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTradeRejected):
		return "rejected"
	case errors.Is(err, ErrTransient):
		return "transient"
	case errors.Is(err, ErrOperational):
		return "operational"
	default:
		return "unknown"
	}
}
