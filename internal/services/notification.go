package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"eventportal/internal/domain"
)

const eventDateLayout = "Monday 2 January 2006"

type notificationService struct {
	userRepo     domain.UserRepository
	eventRepo    domain.EventRepository
	emailService domain.EmailService
	timeout      time.Duration
}

// NewNotificationService returns a NotificationService that emails the registration owner.
func NewNotificationService(userRepo domain.UserRepository, eventRepo domain.EventRepository, emailService domain.EmailService, timeout time.Duration) domain.NotificationService {
	return &notificationService{userRepo: userRepo, eventRepo: eventRepo, emailService: emailService, timeout: timeout}
}

func (s *notificationService) NotifyRegistrationConfirmed(ctx context.Context, msg domain.RegistrationConfirmedMessage) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	user, err := s.userRepo.GetByID(ctx, msg.UserID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	event, err := s.eventRepo.GetByID(ctx, msg.EventID)
	if err != nil {
		return fmt.Errorf("failed to get event: %w", err)
	}
	return s.emailService.SendRegistrationConfirmed(ctx, &domain.RegistrationConfirmedEmailData{
		Email:          user.Email,
		FullName:       user.FullName,
		EventTitle:     event.Title,
		EventLocation:  event.Location,
		EventDate:      event.Date.Format(eventDateLayout),
		EventTime:      event.Time,
		Attendees:      msg.Attendees,
		Amount:         msg.Amount,
		RegistrationID: msg.RegistrationID,
		TransactionID:  msg.TransactionID,
	})
}

// directPublisher delivers confirmations in-process when no broker is configured.
type directPublisher struct {
	notifier domain.NotificationService
	logger   *slog.Logger
}

// NewDirectPublisher returns a ConfirmationPublisher that notifies in a background goroutine,
// detached from the caller's context.
func NewDirectPublisher(notifier domain.NotificationService, logger *slog.Logger) domain.ConfirmationPublisher {
	return &directPublisher{notifier: notifier, logger: logger}
}

func (p *directPublisher) PublishRegistrationConfirmed(ctx context.Context, msg domain.RegistrationConfirmedMessage) error {
	go func() {
		if err := p.notifier.NotifyRegistrationConfirmed(context.WithoutCancel(ctx), msg); err != nil {
			p.logger.Error("failed to send registration confirmation", "registration_id", msg.RegistrationID, "err", err)
		}
	}()
	return nil
}
