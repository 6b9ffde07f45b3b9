package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"eventportal/internal/domain"
)

var eventTimeRegexp = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

type eventService struct {
	eventRepo        domain.EventRepository
	categoryRepo     domain.CategoryRepository
	registrationRepo domain.RegistrationRepository
	contextTimeout   time.Duration
}

func NewEventService(eventRepo domain.EventRepository,
	categoryRepo domain.CategoryRepository,
	registrationRepo domain.RegistrationRepository,
	timeout time.Duration,
) domain.EventService {
	return &eventService{
		eventRepo:        eventRepo,
		categoryRepo:     categoryRepo,
		registrationRepo: registrationRepo,
		contextTimeout:   timeout,
	}
}

func (s *eventService) ListEvents(ctx context.Context, filter domain.EventFilter, params domain.PaginationParams) ([]*domain.Event, int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if filter.Status == "" {
		filter.Status = domain.EventStatusActive
	}
	if !filter.Status.Valid() {
		return nil, 0, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidInput, filter.Status)
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, 0, fmt.Errorf("%w: date range end is before its start", domain.ErrInvalidInput)
	}
	events, total, err := s.eventRepo.List(ctx, filter, params)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list events: %w", err)
	}
	return events, total, nil
}

func (s *eventService) GetEvent(ctx context.Context, id string) (*domain.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	event, err := s.eventRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return event, nil
}

func (s *eventService) CreateEvent(ctx context.Context, event *domain.Event) error {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if event.OrganizerID == "" {
		return fmt.Errorf("%w: event organizer is required", domain.ErrInvalidInput)
	}
	event.Title = strings.TrimSpace(event.Title)
	event.Location = strings.TrimSpace(event.Location)
	event.Time = strings.TrimSpace(event.Time)
	if err := validateEventFields(event.Title, event.Location, event.Time, event.Price, event.Capacity); err != nil {
		return err
	}
	if event.Date.IsZero() {
		return fmt.Errorf("%w: date is required", domain.ErrInvalidInput)
	}

	now := time.Now()
	event.Status = domain.EventStatusActive
	event.RegisteredAttendees = 0
	event.CreatedAt = now
	event.UpdatedAt = now

	if err := s.eventRepo.Create(ctx, event); err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}
	return nil
}

func validateEventFields(title, location, startTime string, price int64, capacity int) error {
	switch {
	case title == "":
		return fmt.Errorf("%w: title is required", domain.ErrInvalidInput)
	case location == "":
		return fmt.Errorf("%w: location is required", domain.ErrInvalidInput)
	case startTime != "" && !eventTimeRegexp.MatchString(startTime):
		return fmt.Errorf("%w: time must be HH:MM", domain.ErrInvalidInput)
	case price < 0:
		return fmt.Errorf("%w: price cannot be negative", domain.ErrInvalidInput)
	case capacity < 1:
		return fmt.Errorf("%w: capacity must be at least 1", domain.ErrInvalidInput)
	}
	return nil
}

func (s *eventService) UpdateEvent(ctx context.Context, id string, caller domain.Principal, update domain.EventUpdate) (*domain.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	event, err := s.eventRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canManageEvent(event, caller) {
		return nil, domain.ErrForbidden
	}

	title, location, startTime := event.Title, event.Location, event.Time
	price, capacity := event.Price, event.Capacity
	if update.Title != nil {
		*update.Title = strings.TrimSpace(*update.Title)
		title = *update.Title
	}
	if update.Location != nil {
		*update.Location = strings.TrimSpace(*update.Location)
		location = *update.Location
	}
	if update.Time != nil {
		*update.Time = strings.TrimSpace(*update.Time)
		startTime = *update.Time
	}
	if update.Price != nil {
		price = *update.Price
	}
	if update.Capacity != nil {
		capacity = *update.Capacity
	}
	if err := validateEventFields(title, location, startTime, price, capacity); err != nil {
		return nil, err
	}
	if update.Date != nil && update.Date.IsZero() {
		return nil, fmt.Errorf("%w: date is required", domain.ErrInvalidInput)
	}
	if update.Status != nil && !update.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidInput, *update.Status)
	}

	updated, err := s.eventRepo.Update(ctx, id, update)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInsufficientCapacity) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update event: %w", err)
	}
	return updated, nil
}

// DeleteEvent removes events nobody registered for. Events with registrations keep their history
// and are retired by setting status to cancelled.
func (s *eventService) DeleteEvent(ctx context.Context, id string, caller domain.Principal) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	event, err := s.eventRepo.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if !canManageEvent(event, caller) {
		return false, domain.ErrForbidden
	}

	count, err := s.registrationRepo.CountByEventID(ctx, id)
	if err != nil {
		return false, fmt.Errorf("failed to count registrations: %w", err)
	}
	if count == 0 {
		err = s.eventRepo.Delete(ctx, id)
		if err == nil {
			return false, nil
		}
		// A registration slipped in after the count.
		if !errors.Is(err, domain.ErrInvalidTransition) {
			return false, fmt.Errorf("failed to delete event: %w", err)
		}
	}

	cancelled := domain.EventStatusCancelled
	if _, err := s.eventRepo.Update(ctx, id, domain.EventUpdate{Status: &cancelled}); err != nil {
		return false, fmt.Errorf("failed to retire event: %w", err)
	}
	return true, nil
}

func (s *eventService) ListCategories(ctx context.Context) ([]*domain.EventCategory, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	categories, err := s.categoryRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}

func canManageEvent(event *domain.Event, caller domain.Principal) bool {
	return caller.IsAdmin() || (caller.UserID != "" && event.OrganizerID == caller.UserID)
}
