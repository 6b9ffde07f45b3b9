package domain

import (
	"context"
	"time"
)

// RegistrationConfirmedMessage is published once a registration's payment succeeds.
type RegistrationConfirmedMessage struct {
	RegistrationID string    `json:"registration_id"`
	EventID        string    `json:"event_id"`
	UserID         string    `json:"user_id"`
	Attendees      int       `json:"attendees"`
	TransactionID  string    `json:"transaction_id"`
	Amount         int64     `json:"amount"`
	ConfirmedAt    time.Time `json:"confirmed_at"`
}

// ConfirmationPublisher hands confirmation messages to whatever delivers notifications.
type ConfirmationPublisher interface {
	PublishRegistrationConfirmed(ctx context.Context, msg RegistrationConfirmedMessage) error
}

// NotificationService turns domain messages into user-facing notifications.
type NotificationService interface {
	NotifyRegistrationConfirmed(ctx context.Context, msg RegistrationConfirmedMessage) error
}
