package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"eventportal/internal/domain"
)

var (
	cameroonMobileRegexp = regexp.MustCompile(`^(?:\+?237)?(6\d{8})$`)
	phoneSeparators      = strings.NewReplacer(" ", "", "-", "", ".", "", "(", "", ")", "")
)

// PollPolicy bounds how long and how often a pending payment is polled.
type PollPolicy struct {
	Initial     time.Duration
	MaxInterval time.Duration
	Multiplier  float64
	MaxElapsed  time.Duration
}

// DefaultPollPolicy starts at 5s, doubles up to 1m and gives up after 10m.
var DefaultPollPolicy = PollPolicy{
	Initial:     5 * time.Second,
	MaxInterval: time.Minute,
	Multiplier:  2,
	MaxElapsed:  10 * time.Minute,
}

// sanitized replaces settings that would poll in a tight loop or never stop with the
// defaults.
func (p PollPolicy) sanitized() PollPolicy {
	if p.Initial <= 0 {
		p.Initial = DefaultPollPolicy.Initial
	}
	if p.MaxInterval < p.Initial {
		p.MaxInterval = max(p.Initial, DefaultPollPolicy.MaxInterval)
	}
	if p.Multiplier < 1 {
		p.Multiplier = DefaultPollPolicy.Multiplier
	}
	if p.MaxElapsed <= 0 {
		p.MaxElapsed = DefaultPollPolicy.MaxElapsed
	}
	return p
}

func (p PollPolicy) next(d time.Duration) time.Duration {
	n := time.Duration(float64(d) * p.Multiplier)
	if n > p.MaxInterval {
		return p.MaxInterval
	}
	if n < d {
		return d
	}
	return n
}

type paymentService struct {
	paymentRepo      domain.PaymentRepository
	registrationRepo domain.RegistrationRepository
	eventRepo        domain.EventRepository
	gateway          domain.PaymentGateway
	publisher        domain.ConfirmationPublisher
	watcher          domain.PaymentWatcher
	webhookSecret    []byte
	poll             PollPolicy
	contextTimeout   time.Duration
	logger           *slog.Logger
	now              func() time.Time
}

// NewPaymentService creates a PaymentService. watcher and publisher may be nil.
func NewPaymentService(paymentRepo domain.PaymentRepository,
	registrationRepo domain.RegistrationRepository,
	eventRepo domain.EventRepository,
	gateway domain.PaymentGateway,
	publisher domain.ConfirmationPublisher,
	watcher domain.PaymentWatcher,
	webhookSecret string,
	poll PollPolicy,
	timeout time.Duration,
	logger *slog.Logger,
) domain.PaymentService {
	return &paymentService{
		paymentRepo:      paymentRepo,
		registrationRepo: registrationRepo,
		eventRepo:        eventRepo,
		gateway:          gateway,
		publisher:        publisher,
		watcher:          watcher,
		webhookSecret:    []byte(webhookSecret),
		poll:             poll.sanitized(),
		contextTimeout:   timeout,
		logger:           logger,
		now:              time.Now,
	}
}

// NormalizeCameroonMobile accepts 6XXXXXXXX with an optional +237/237 prefix, ignoring
// separators, and returns 2376XXXXXXXX.
func NormalizeCameroonMobile(phone string) (string, bool) {
	m := cameroonMobileRegexp.FindStringSubmatch(phoneSeparators.Replace(strings.TrimSpace(phone)))
	if m == nil {
		return "", false
	}
	return "237" + m[1], true
}

func (s *paymentService) InitiatePayment(ctx context.Context, in domain.InitiatePaymentInput, caller domain.Principal) (*domain.Payment, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if in.RegistrationID == "" || in.Amount <= 0 || in.Provider == "" || strings.TrimSpace(in.PhoneNumber) == "" {
		return nil, fmt.Errorf("%w: missing required fields", domain.ErrInvalidInput)
	}
	if !in.Provider.Valid() {
		return nil, fmt.Errorf("%w: provider must be mtn or orange", domain.ErrInvalidInput)
	}
	phone, ok := NormalizeCameroonMobile(in.PhoneNumber)
	if !ok {
		return nil, fmt.Errorf("%w: phone number must be a Cameroon mobile number", domain.ErrInvalidInput)
	}

	reg, err := s.registrationRepo.GetByID(ctx, in.RegistrationID)
	if err != nil {
		return nil, err
	}
	if reg.UserID != caller.UserID {
		return nil, domain.ErrForbidden
	}
	if !reg.AwaitingPayment() {
		return nil, fmt.Errorf("%w: registration is not awaiting payment", domain.ErrInvalidTransition)
	}
	if _, err := s.paymentRepo.GetPendingByRegistrationID(ctx, reg.ID); err == nil {
		return nil, fmt.Errorf("%w: a payment is already in progress", domain.ErrInvalidTransition)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("failed to check pending payments: %w", err)
	}

	event, err := s.eventRepo.GetByID(ctx, reg.EventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	if want := event.Price * int64(reg.Attendees); in.Amount != want {
		return nil, fmt.Errorf("%w: expected %d XAF", domain.ErrAmountMismatch, want)
	}

	if reg.PaymentStatus == domain.PaymentStateFailed {
		// A failed attempt released the seats; take them back before charging again.
		if reg, err = s.registrationRepo.ReopenPayment(ctx, reg.ID); err != nil {
			if errors.Is(err, domain.ErrInsufficientCapacity) || errors.Is(err, domain.ErrEventUnavailable) || errors.Is(err, domain.ErrInvalidTransition) {
				return nil, err
			}
			return nil, fmt.Errorf("failed to reopen registration: %w", err)
		}
	}

	// Reserve the attempt first: the one-pending-per-registration constraint then decides
	// which of two concurrent requests may call the aggregator.
	now := s.now()
	payment := &domain.Payment{
		RegistrationID: reg.ID,
		Reference:      uuid.NewString(),
		Provider:       in.Provider,
		PhoneNumber:    phone,
		Amount:         in.Amount,
		Status:         domain.PaymentPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			return nil, fmt.Errorf("%w: a payment is already in progress", domain.ErrInvalidTransition)
		}
		return nil, fmt.Errorf("failed to reserve payment: %w", err)
	}

	txID, err := s.gateway.Initiate(ctx, domain.PaymentRequest{
		Reference:   payment.Reference,
		Amount:      in.Amount,
		Provider:    in.Provider,
		PhoneNumber: phone,
		Description: fmt.Sprintf("%s x%d", event.Title, reg.Attendees),
	})
	if err != nil {
		var pe *domain.ProviderError
		if !errors.As(err, &pe) {
			s.logger.ErrorContext(ctx, "payment provider unreachable", "registration_id", reg.ID, "err", err)
			pe = &domain.ProviderError{Message: "payment provider unavailable, please try again"}
		}
		if aerr := s.paymentRepo.Abandon(context.WithoutCancel(ctx), payment.Reference, pe.Message); aerr != nil {
			s.logger.ErrorContext(ctx, "failed to release payment reservation", "reference", payment.Reference, "err", aerr)
		}
		return nil, pe
	}

	if err := s.paymentRepo.AttachTransaction(context.WithoutCancel(ctx), payment.Reference, txID); err != nil {
		// The aggregator holds a collection request; the reference ties it back to this row.
		s.logger.ErrorContext(ctx, "failed to record transaction id", "transaction_id", txID, "reference", payment.Reference, "err", err)
		return nil, fmt.Errorf("failed to record payment: %w", err)
	}
	payment.TransactionID = txID
	s.logger.InfoContext(ctx, "payment initiated", "registration_id", reg.ID, "transaction_id", txID, "provider", in.Provider)

	if s.watcher != nil {
		s.watcher.Watch(txID)
	}
	return payment, nil
}

func (s *paymentService) CheckStatus(ctx context.Context, transactionID string, provider domain.PaymentProvider, caller domain.Principal) (domain.PaymentStatusResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	payment, err := s.paymentRepo.GetByTransactionID(ctx, transactionID)
	if err != nil {
		return domain.PaymentStatusResult{}, err
	}
	if provider != "" && provider != payment.Provider {
		return domain.PaymentStatusResult{}, fmt.Errorf("%w: provider does not match the transaction", domain.ErrInvalidInput)
	}
	if !caller.IsAdmin() {
		reg, err := s.registrationRepo.GetByID(ctx, payment.RegistrationID)
		if err != nil {
			return domain.PaymentStatusResult{}, fmt.Errorf("failed to get registration: %w", err)
		}
		if reg.UserID != caller.UserID {
			return domain.PaymentStatusResult{}, domain.ErrForbidden
		}
	}
	if payment.Status.Terminal() {
		return domain.PaymentStatusResult{Status: payment.Status, Message: payment.Message}, nil
	}

	res, err := s.gateway.Status(ctx, transactionID, payment.Provider)
	if err != nil {
		return domain.PaymentStatusResult{}, err
	}
	if res.Status.Terminal() {
		settled, err := s.settle(ctx, transactionID, res.Status, res.Message)
		if err != nil {
			return domain.PaymentStatusResult{}, err
		}
		return domain.PaymentStatusResult{Status: settled.Status, Message: settled.Message}, nil
	}
	return res, nil
}

// AwaitCompletion polls with exponential backoff until the payment is terminal. It gives up with
// ErrPaymentTimeout after poll.MaxElapsed, leaving the payment pending for the webhook or reaper.
func (s *paymentService) AwaitCompletion(ctx context.Context, transactionID string) (*domain.Payment, error) {
	deadline := s.now().Add(s.poll.MaxElapsed)
	interval := s.poll.Initial
	for {
		wait := interval
		remaining := deadline.Sub(s.now())
		if remaining <= 0 {
			return nil, domain.ErrPaymentTimeout
		}
		if wait > remaining {
			wait = remaining
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		payment, err := s.pollOnce(ctx, transactionID)
		if err != nil {
			return nil, err
		}
		if payment.Status.Terminal() {
			return payment, nil
		}
		interval = s.poll.next(interval)
	}
}

// pollOnce reloads the payment (the webhook may have settled it) and asks the provider once.
// Provider errors are logged and treated as still pending.
func (s *paymentService) pollOnce(ctx context.Context, transactionID string) (*domain.Payment, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	payment, err := s.paymentRepo.GetByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if payment.Status.Terminal() {
		return payment, nil
	}
	res, err := s.gateway.Status(ctx, transactionID, payment.Provider)
	if err != nil {
		s.logger.WarnContext(ctx, "payment status check failed", "transaction_id", transactionID, "err", err)
		return payment, nil
	}
	if !res.Status.Terminal() {
		return payment, nil
	}
	return s.settle(ctx, transactionID, res.Status, res.Message)
}

// settle applies a terminal status once and publishes the confirmation on the transition to SUCCESSFUL.
func (s *paymentService) settle(ctx context.Context, transactionID string, status domain.PaymentStatus, message string) (*domain.Payment, error) {
	res, err := s.paymentRepo.Settle(ctx, transactionID, status, message)
	if err != nil {
		return nil, fmt.Errorf("failed to settle payment: %w", err)
	}
	if !res.Changed {
		return res.Payment, nil
	}

	p := res.Payment
	switch {
	case status == domain.PaymentFailed:
		s.logger.InfoContext(ctx, "payment failed", "transaction_id", transactionID, "registration_id", p.RegistrationID, "message", message)
	case res.Registration == nil:
		s.logger.WarnContext(ctx, "payment succeeded for a registration that is no longer pending",
			"transaction_id", transactionID, "registration_id", p.RegistrationID)
	default:
		s.logger.InfoContext(ctx, "registration confirmed", "transaction_id", transactionID, "registration_id", p.RegistrationID)
		if s.publisher != nil {
			msg := domain.RegistrationConfirmedMessage{
				RegistrationID: res.Registration.ID,
				EventID:        res.Registration.EventID,
				UserID:         res.Registration.UserID,
				Attendees:      res.Registration.Attendees,
				TransactionID:  transactionID,
				Amount:         p.Amount,
				ConfirmedAt:    res.Registration.UpdatedAt,
			}
			if err := s.publisher.PublishRegistrationConfirmed(ctx, msg); err != nil {
				s.logger.ErrorContext(ctx, "failed to publish registration confirmation", "registration_id", msg.RegistrationID, "err", err)
			}
		}
	}
	return p, nil
}

// HandleWebhook applies an aggregator callback. The body must carry a hex HMAC-SHA256 signature
// made with the webhook secret. Deliveries for payments already settled are ignored.
func (s *paymentService) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if !s.validSignature(body, signature) {
		return domain.ErrInvalidSignature
	}
	var hook domain.PaymentWebhook
	if err := json.Unmarshal(body, &hook); err != nil {
		return fmt.Errorf("%w: malformed webhook payload", domain.ErrInvalidInput)
	}
	hook.Status = domain.PaymentStatus(strings.ToUpper(strings.TrimSpace(string(hook.Status))))
	if hook.TransactionID == "" || hook.Status == "" {
		return fmt.Errorf("%w: missing required fields", domain.ErrInvalidInput)
	}
	if !hook.Status.Terminal() {
		return nil
	}

	payment, err := s.paymentRepo.GetByTransactionID(ctx, hook.TransactionID)
	if err != nil {
		return err
	}
	if hook.Provider != "" && hook.Provider != payment.Provider {
		return fmt.Errorf("%w: provider does not match the transaction", domain.ErrInvalidInput)
	}
	_, err = s.settle(ctx, hook.TransactionID, hook.Status, hook.Message)
	return err
}

func (s *paymentService) validSignature(body []byte, signature string) bool {
	if len(s.webhookSecret) == 0 {
		return false
	}
	got, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(signature), "sha256="))
	if err != nil {
		return false
	}
	return hmac.Equal(got, SignWebhook(s.webhookSecret, body))
}

// SignWebhook returns the HMAC-SHA256 of body under secret.
func SignWebhook(secret, body []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return mac.Sum(nil)
}

func (s *paymentService) ListPending(ctx context.Context) ([]*domain.Payment, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	payments, err := s.paymentRepo.ListPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending payments: %w", err)
	}
	return payments, nil
}
