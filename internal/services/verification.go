package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"eventportal/internal/domain"
)

const (
	verificationCodeDigits = 6
	verificationCodeTTL    = 15 * time.Minute
	verificationRateLimit  = 5
	verificationRateWindow = 15 * time.Minute
)

type verificationService struct {
	codeRepo         domain.VerificationCodeRepository
	registrationRepo domain.RegistrationRepository
	userRepo         domain.UserRepository
	hasher           domain.CodeHasher
	sms              domain.SMSSender
	limiter          domain.RateLimiter
	contextTimeout   time.Duration
	logger           *slog.Logger
	now              func() time.Time
}

// NewVerificationService creates a VerificationService. Codes are sent by SMS to the caller's
// profile phone number.
func NewVerificationService(codeRepo domain.VerificationCodeRepository,
	registrationRepo domain.RegistrationRepository,
	userRepo domain.UserRepository,
	hasher domain.CodeHasher,
	sms domain.SMSSender,
	limiter domain.RateLimiter,
	timeout time.Duration,
	logger *slog.Logger,
) domain.VerificationService {
	return &verificationService{
		codeRepo:         codeRepo,
		registrationRepo: registrationRepo,
		userRepo:         userRepo,
		hasher:           hasher,
		sms:              sms,
		limiter:          limiter,
		contextTimeout:   timeout,
		logger:           logger,
		now:              time.Now,
	}
}

func (s *verificationService) GenerateCode(ctx context.Context, registrationID string, caller domain.Principal) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if registrationID == "" {
		return "", fmt.Errorf("%w: registrationId is required", domain.ErrInvalidInput)
	}
	if _, err := s.ownedRegistration(ctx, registrationID, caller); err != nil {
		return "", err
	}
	if err := s.allow(ctx, "verification:"+registrationID); err != nil {
		return "", err
	}

	user, err := s.userRepo.GetByID(ctx, caller.UserID)
	if err != nil {
		return "", fmt.Errorf("failed to get user: %w", err)
	}
	phone, ok := NormalizeCameroonMobile(user.PhoneNumber)
	if !ok {
		return "", fmt.Errorf("%w: add a mobile phone number to your profile first", domain.ErrInvalidInput)
	}

	code, err := randomDigits(verificationCodeDigits)
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	hash, err := s.hasher.Hash(code)
	if err != nil {
		return "", fmt.Errorf("failed to hash code: %w", err)
	}
	now := s.now()
	vc := &domain.VerificationCode{
		RegistrationID: registrationID,
		CodeHash:       hash,
		ExpiresAt:      now.Add(verificationCodeTTL),
		CreatedAt:      now,
	}
	if err := s.codeRepo.Create(ctx, vc); err != nil {
		return "", fmt.Errorf("failed to store verification code: %w", err)
	}

	msg := fmt.Sprintf("Your Event Portal verification code is %s. It expires in %d minutes.", code, int(verificationCodeTTL.Minutes()))
	if err := s.sms.Send(ctx, "+"+phone, msg); err != nil {
		// An undelivered code must not supersede the one the user already holds.
		if derr := s.codeRepo.Delete(context.WithoutCancel(ctx), vc.ID); derr != nil {
			s.logger.ErrorContext(ctx, "failed to withdraw undelivered code", "code_id", vc.ID, "err", derr)
		}
		return "", fmt.Errorf("failed to send verification code: %w", err)
	}
	s.logger.InfoContext(ctx, "verification code sent", "registration_id", registrationID, "code_id", vc.ID)
	return vc.ID, nil
}

// VerifyCode checks the latest code issued for the registration and consumes it.
// Every mismatch is reported as ErrInvalidCode.
func (s *verificationService) VerifyCode(ctx context.Context, registrationID, code string, caller domain.Principal) error {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if registrationID == "" {
		return fmt.Errorf("%w: registrationId is required", domain.ErrInvalidInput)
	}
	if _, err := s.ownedRegistration(ctx, registrationID, caller); err != nil {
		return err
	}
	if err := s.allow(ctx, "verification-attempts:"+registrationID); err != nil {
		return err
	}
	code = strings.TrimSpace(code)
	if !sixDigitsRegexp.MatchString(code) {
		return domain.ErrInvalidCode
	}

	vc, err := s.codeRepo.GetLatest(ctx, registrationID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrInvalidCode
		}
		return fmt.Errorf("failed to get verification code: %w", err)
	}
	now := s.now()
	if vc.ConsumedAt != nil || !now.Before(vc.ExpiresAt) {
		return domain.ErrInvalidCode
	}
	if err := s.hasher.Compare(vc.CodeHash, code); err != nil {
		return domain.ErrInvalidCode
	}
	consumed, err := s.codeRepo.MarkConsumed(ctx, vc.ID, now)
	if err != nil {
		return fmt.Errorf("failed to consume verification code: %w", err)
	}
	if !consumed {
		return domain.ErrInvalidCode
	}
	return nil
}

func (s *verificationService) ownedRegistration(ctx context.Context, id string, caller domain.Principal) (*domain.Registration, error) {
	reg, err := s.registrationRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if reg.UserID != caller.UserID {
		return nil, domain.ErrForbidden
	}
	return reg, nil
}

func (s *verificationService) allow(ctx context.Context, key string) error {
	if s.limiter == nil {
		return nil
	}
	ok, err := s.limiter.Allow(ctx, key, verificationRateLimit, verificationRateWindow)
	if err != nil {
		s.logger.WarnContext(ctx, "rate limiter unavailable", "key", key, "err", err)
		return nil
	}
	if !ok {
		return domain.ErrRateLimited
	}
	return nil
}
