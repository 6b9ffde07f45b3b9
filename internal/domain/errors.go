package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by services and repositories.
var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidInput = errors.New("invalid input")

	// ErrEventUnavailable is returned when an event is not accepting registrations (cancelled or completed).
	ErrEventUnavailable = errors.New("event is not open for registration")
	// ErrInsufficientCapacity is returned when the requested attendees do not fit in the remaining seats.
	ErrInsufficientCapacity = errors.New("not enough available spots")
	// ErrInvalidTransition is returned when a registration or payment is not in a state that allows the operation.
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrAmountMismatch    = errors.New("amount does not match registration total")
	ErrInvalidCode       = errors.New("invalid or expired code")
	ErrRateLimited       = errors.New("too many requests")
	ErrPaymentTimeout    = errors.New("payment did not complete in time")
	ErrInvalidSignature  = errors.New("invalid signature")
)

// ProviderError wraps a failure reported by the mobile money aggregator.
// Message is the provider's own text and is safe to show to the user.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("payment provider error (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("payment provider error: %s", e.Message)
}
