package domain

import (
	"context"
	"time"
)

// VerificationCode is a short-lived numeric code sent by SMS to confirm a registration action.
// Only the hash is stored.
type VerificationCode struct {
	ID             string     `json:"id"`
	RegistrationID string     `json:"registration_id"`
	CodeHash       string     `json:"-"`
	ExpiresAt      time.Time  `json:"expires_at"`
	ConsumedAt     *time.Time `json:"consumed_at"`
	CreatedAt      time.Time  `json:"created_at"`
}

// VerificationCodeRepository stores registration verification codes.
type VerificationCodeRepository interface {
	Create(ctx context.Context, code *VerificationCode) error
	// GetLatest returns the most recently issued code for the registration, consumed or not.
	// Issuing a new code supersedes older ones.
	GetLatest(ctx context.Context, registrationID string) (*VerificationCode, error)
	// MarkConsumed consumes the code once; false means it was already consumed.
	MarkConsumed(ctx context.Context, id string, at time.Time) (bool, error)
	// Delete withdraws a code that never reached the user.
	Delete(ctx context.Context, id string) error
}

// CodeHasher hashes and compares short secrets.
type CodeHasher interface {
	Hash(code string) (string, error)
	Compare(hash, code string) error
}

// RateLimiter reports whether another action under key is allowed within the window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// SMSSender delivers a text message to a phone number in E.164 form.
type SMSSender interface {
	Send(ctx context.Context, to, message string) error
}

// VerificationService issues and checks registration verification codes.
type VerificationService interface {
	GenerateCode(ctx context.Context, registrationID string, caller Principal) (codeID string, err error)
	VerifyCode(ctx context.Context, registrationID, code string, caller Principal) error
}
