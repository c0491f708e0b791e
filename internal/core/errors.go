package core

import (
	"context"
	"errors"
	"net"
)

var (
	// ErrConfig indicates missing or invalid client configuration. Fatal at
	// construction time.
	ErrConfig = errors.New("invalid configuration")
	// ErrNotConnected indicates an operation was attempted before Connect.
	ErrNotConnected = errors.New("not connected")
	// ErrConnection indicates a session, auth or network-layer failure. The
	// caller may retry with backoff.
	ErrConnection = errors.New("connection failed")
	// ErrTimeout indicates a bounded wait expired; the outcome of the request
	// is unknown and must not be treated as a rejection.
	ErrTimeout = errors.New("request timed out")
	// ErrOrderNotFound indicates the order does not exist on the venue.
	ErrOrderNotFound = errors.New("order not found")
	// ErrSymbolNotFound indicates the market is unknown to the venue.
	ErrSymbolNotFound = errors.New("symbol not found")
	// ErrInsufficientBalance indicates the venue declined the action for lack
	// of margin or funds.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrOrderRejected indicates the venue rejected the order.
	ErrOrderRejected = errors.New("order rejected")
	// ErrDuplicateOrder indicates the client order identifier was already
	// accepted before.
	ErrDuplicateOrder = errors.New("duplicate order")
)

// IsTimeout reports whether err represents an expired bounded wait, as
// opposed to a venue rejection. Callers use this to tell "we don't know what
// happened" apart from "the venue said no".
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
