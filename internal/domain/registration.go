package domain

import (
	"context"
	"time"
)

// RegistrationStatus is the attendance state of a registration.
type RegistrationStatus string

const (
	RegistrationPending   RegistrationStatus = "pending"
	RegistrationConfirmed RegistrationStatus = "confirmed"
	RegistrationCancelled RegistrationStatus = "cancelled"
)

// PaymentState is the payment side of a registration.
type PaymentState string

const (
	PaymentStatePending   PaymentState = "pending"
	PaymentStateCompleted PaymentState = "completed"
	PaymentStateFailed    PaymentState = "failed"
)

// MaxAttendeesPerRegistration bounds the attendee count of a single registration.
const MaxAttendeesPerRegistration = 10

// Registration is a user's request to attend an event.
//
// Seats are held on the event while the registration is pending with a pending payment, or confirmed.
// payment_status completed is only ever written together with status confirmed.
// swagger:model Registration
type Registration struct {
	ID            string             `json:"id"`
	EventID       string             `json:"event_id"`
	UserID        string             `json:"user_id"`
	Attendees     int                `json:"attendees"`
	Status        RegistrationStatus `json:"status"`
	PaymentStatus PaymentState       `json:"payment_status"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// NewRegistration creates a pending registration. ID is set by the repository on create.
func NewRegistration(eventID, userID string, attendees int, createdAt, updatedAt time.Time) *Registration {
	return &Registration{
		EventID:       eventID,
		UserID:        userID,
		Attendees:     attendees,
		Status:        RegistrationPending,
		PaymentStatus: PaymentStatePending,
		CreatedAt:     createdAt,
		UpdatedAt:     updatedAt,
	}
}

// HoldsSeats reports whether the registration currently counts against event capacity.
func (r *Registration) HoldsSeats() bool {
	switch r.Status {
	case RegistrationConfirmed:
		return true
	case RegistrationPending:
		return r.PaymentStatus == PaymentStatePending
	}
	return false
}

// AwaitingPayment reports whether a payment may be started for the registration.
func (r *Registration) AwaitingPayment() bool {
	return r.Status == RegistrationPending && r.PaymentStatus != PaymentStateCompleted
}

// RegistrationWithEvent bundles a registration with its related event.
type RegistrationWithEvent struct {
	Registration *Registration `json:"registration"`
	Event        *Event        `json:"event"`
}

// RegistrationRepository defines storage operations for event registrations.
type RegistrationRepository interface {
	// CreateWithSeats inserts reg and reserves reg.Attendees seats on the event in one transaction.
	// Returns ErrNotFound, ErrEventUnavailable or ErrInsufficientCapacity when the seats cannot be held.
	CreateWithSeats(ctx context.Context, reg *Registration) error
	GetByID(ctx context.Context, id string) (*Registration, error)
	ListByUserID(ctx context.Context, userID string) ([]*Registration, error)
	ListByEventID(ctx context.Context, eventID string) ([]*Registration, error)
	CountByEventID(ctx context.Context, eventID string) (int, error)
	// Cancel moves a pending registration to cancelled, releasing its seats if it held any.
	Cancel(ctx context.Context, id string) (*Registration, error)
	// ReopenPayment moves a pending/failed registration back to pending/pending, re-acquiring its seats.
	ReopenPayment(ctx context.Context, id string) (*Registration, error)
	// ExpirePending cancels pending registrations created before olderThan that have no payment in flight
	// since then. Returns the number of registrations cancelled.
	ExpirePending(ctx context.Context, olderThan time.Time) (int, error)
}

// RegistrationService defines attendee-facing registration operations.
type RegistrationService interface {
	CreateRegistration(ctx context.Context, eventID, userID string, attendees int) (*Registration, error)
	GetRegistration(ctx context.Context, id string, caller Principal) (*RegistrationWithEvent, error)
	ListMyRegistrations(ctx context.Context, userID string) ([]*RegistrationWithEvent, error)
	ListEventRegistrations(ctx context.Context, eventID string, caller Principal) ([]*Registration, error)
	CancelRegistration(ctx context.Context, id string, caller Principal) (*Registration, error)
	ExpireStalePending(ctx context.Context) (int, error)
}
