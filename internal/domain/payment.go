package domain

import (
	"context"
	"time"
)

// PaymentProvider is a mobile money operator.
type PaymentProvider string

const (
	ProviderMTN    PaymentProvider = "mtn"
	ProviderOrange PaymentProvider = "orange"
)

// Valid reports whether p is a supported operator.
func (p PaymentProvider) Valid() bool {
	return p == ProviderMTN || p == ProviderOrange
}

// PaymentStatus mirrors the aggregator's transaction state.
type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "PENDING"
	PaymentSuccessful PaymentStatus = "SUCCESSFUL"
	PaymentFailed     PaymentStatus = "FAILED"
)

// Terminal reports whether no further transition is expected.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentSuccessful || s == PaymentFailed
}

// Payment is one mobile money collection attempt for a registration.
// swagger:model Payment
type Payment struct {
	ID             string          `json:"id"`
	RegistrationID string          `json:"registration_id"`
	TransactionID  string          `json:"transaction_id"`
	Reference      string          `json:"reference"`
	Provider       PaymentProvider `json:"provider"`
	PhoneNumber    string          `json:"phone_number"`
	Amount         int64           `json:"amount"`
	Status         PaymentStatus   `json:"status"`
	Message        string          `json:"message"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// PaymentRequest is what gets sent to the aggregator to start a collection.
type PaymentRequest struct {
	Reference   string
	Amount      int64
	Provider    PaymentProvider
	PhoneNumber string
	Description string
}

// PaymentStatusResult is a status answer from the aggregator (or from storage for terminal payments).
type PaymentStatusResult struct {
	Status  PaymentStatus `json:"status"`
	Message string        `json:"message"`
}

// PaymentGateway is the mobile money aggregator port.
type PaymentGateway interface {
	Initiate(ctx context.Context, req PaymentRequest) (transactionID string, err error)
	Status(ctx context.Context, transactionID string, provider PaymentProvider) (PaymentStatusResult, error)
}

// SettleResult describes the outcome of settling a payment.
type SettleResult struct {
	Payment *Payment
	// Registration is the registration after its transition, nil when it could not transition
	// (for example it was cancelled before the payment succeeded).
	Registration *Registration
	// Changed is false when the payment was already terminal.
	Changed bool
}

// PaymentRepository defines storage operations for payments.
type PaymentRepository interface {
	// Create stores an attempt. A PENDING row is inserted before the aggregator is called,
	// with an empty TransactionID, so a second concurrent attempt fails with
	// ErrInvalidTransition instead of reaching the provider.
	Create(ctx context.Context, p *Payment) error
	// AttachTransaction sets the aggregator's transaction id on a reserved attempt.
	AttachTransaction(ctx context.Context, reference, transactionID string) error
	// Abandon fails a reserved attempt that the aggregator never accepted. The registration
	// keeps its seats and can be paid again.
	Abandon(ctx context.Context, reference, message string) error
	GetByTransactionID(ctx context.Context, transactionID string) (*Payment, error)
	// GetPendingByRegistrationID returns the registration's in-flight payment, or ErrNotFound.
	GetPendingByRegistrationID(ctx context.Context, registrationID string) (*Payment, error)
	// ListPending returns PENDING payments that already carry a transaction id.
	ListPending(ctx context.Context) ([]*Payment, error)
	// Settle moves a PENDING payment to a terminal status and applies the matching registration
	// transition in the same transaction: SUCCESSFUL confirms, FAILED marks the payment failed
	// and releases the seats.
	Settle(ctx context.Context, transactionID string, status PaymentStatus, message string) (*SettleResult, error)
}

// InitiatePaymentInput is the caller-supplied part of a payment request.
type InitiatePaymentInput struct {
	RegistrationID string
	Amount         int64
	Provider       PaymentProvider
	PhoneNumber    string
}

// PaymentWebhook is the aggregator callback payload.
type PaymentWebhook struct {
	TransactionID string          `json:"transactionId"`
	Provider      PaymentProvider `json:"provider"`
	Status        PaymentStatus   `json:"status"`
	Message       string          `json:"message"`
}

// PaymentService drives the payment side of the registration lifecycle.
type PaymentService interface {
	InitiatePayment(ctx context.Context, in InitiatePaymentInput, caller Principal) (*Payment, error)
	// CheckStatus queries the aggregator once and applies any terminal transition. Only the
	// registration owner or an admin may ask.
	CheckStatus(ctx context.Context, transactionID string, provider PaymentProvider, caller Principal) (PaymentStatusResult, error)
	// AwaitCompletion polls with exponential backoff until the payment is terminal or the
	// maximum wait elapses (ErrPaymentTimeout).
	AwaitCompletion(ctx context.Context, transactionID string) (*Payment, error)
	HandleWebhook(ctx context.Context, body []byte, signature string) error
	ListPending(ctx context.Context) ([]*Payment, error)
}

// PaymentWatcher takes initiated payments and confirms them in the background.
type PaymentWatcher interface {
	Watch(transactionID string)
}
