package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"eventportal/internal/domain"
)

type registrationService struct {
	registrationRepo domain.RegistrationRepository
	eventRepo        domain.EventRepository
	pendingTTL       time.Duration
	contextTimeout   time.Duration
	now              func() time.Time
}

// NewRegistrationService creates a RegistrationService. Pending registrations older than
// pendingTTL are cancelled by ExpireStalePending.
func NewRegistrationService(registrationRepo domain.RegistrationRepository, eventRepo domain.EventRepository, pendingTTL, timeout time.Duration) domain.RegistrationService {
	return &registrationService{
		registrationRepo: registrationRepo,
		eventRepo:        eventRepo,
		pendingTTL:       pendingTTL,
		contextTimeout:   timeout,
		now:              time.Now,
	}
}

func (s *registrationService) CreateRegistration(ctx context.Context, eventID, userID string, attendees int) (*domain.Registration, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if eventID == "" || userID == "" {
		return nil, fmt.Errorf("%w: event and user are required", domain.ErrInvalidInput)
	}
	if attendees < 1 || attendees > domain.MaxAttendeesPerRegistration {
		return nil, fmt.Errorf("%w: attendees must be between 1 and %d", domain.ErrInvalidInput, domain.MaxAttendeesPerRegistration)
	}

	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !event.OpenForRegistration() {
		return nil, domain.ErrEventUnavailable
	}

	now := s.now()
	reg := domain.NewRegistration(eventID, userID, attendees, now, now)
	if event.Price == 0 {
		// Nothing to pay: free registrations are confirmed as soon as the seats are held.
		reg.Status = domain.RegistrationConfirmed
		reg.PaymentStatus = domain.PaymentStateCompleted
	}
	// The seat check above is advisory; CreateWithSeats re-checks atomically.
	if err := s.registrationRepo.CreateWithSeats(ctx, reg); err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrEventUnavailable) || errors.Is(err, domain.ErrInsufficientCapacity) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create registration: %w", err)
	}
	return reg, nil
}

func (s *registrationService) GetRegistration(ctx context.Context, id string, caller domain.Principal) (*domain.RegistrationWithEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	reg, err := s.registrationRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	event, err := s.eventRepo.GetByID(ctx, reg.EventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	if reg.UserID != caller.UserID && !canManageEvent(event, caller) {
		return nil, domain.ErrForbidden
	}
	return &domain.RegistrationWithEvent{Registration: reg, Event: event}, nil
}

func (s *registrationService) ListMyRegistrations(ctx context.Context, userID string) ([]*domain.RegistrationWithEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	regs, err := s.registrationRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list registrations: %w", err)
	}
	events := make(map[string]*domain.Event)
	out := make([]*domain.RegistrationWithEvent, 0, len(regs))
	for _, reg := range regs {
		event, ok := events[reg.EventID]
		if !ok {
			event, err = s.eventRepo.GetByID(ctx, reg.EventID)
			if err != nil {
				return nil, fmt.Errorf("failed to get event %s: %w", reg.EventID, err)
			}
			events[reg.EventID] = event
		}
		out = append(out, &domain.RegistrationWithEvent{Registration: reg, Event: event})
	}
	return out, nil
}

func (s *registrationService) ListEventRegistrations(ctx context.Context, eventID string, caller domain.Principal) ([]*domain.Registration, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !canManageEvent(event, caller) {
		return nil, domain.ErrForbidden
	}
	regs, err := s.registrationRepo.ListByEventID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list registrations: %w", err)
	}
	return regs, nil
}

func (s *registrationService) CancelRegistration(ctx context.Context, id string, caller domain.Principal) (*domain.Registration, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	reg, err := s.registrationRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if reg.UserID != caller.UserID && !caller.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	if reg.Status != domain.RegistrationPending {
		return nil, domain.ErrInvalidTransition
	}
	cancelled, err := s.registrationRepo.Cancel(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInvalidTransition) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to cancel registration: %w", err)
	}
	return cancelled, nil
}

func (s *registrationService) ExpireStalePending(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	n, err := s.registrationRepo.ExpirePending(ctx, s.now().Add(-s.pendingTTL))
	if err != nil {
		return 0, fmt.Errorf("failed to expire pending registrations: %w", err)
	}
	return n, nil
}
