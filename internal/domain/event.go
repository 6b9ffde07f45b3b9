package domain

import (
	"context"
	"time"
)

// EventStatus is the lifecycle state of an event.
type EventStatus string

const (
	EventStatusActive    EventStatus = "active"
	EventStatusCancelled EventStatus = "cancelled"
	EventStatusCompleted EventStatus = "completed"
)

// Valid reports whether s is a known event status.
func (s EventStatus) Valid() bool {
	switch s {
	case EventStatusActive, EventStatusCancelled, EventStatusCompleted:
		return true
	}
	return false
}

// Event represents a listed activity attendees can register for.
// Price is in XAF (no minor unit).
// swagger:model Event
type Event struct {
	ID                  string      `json:"id"`
	Title               string      `json:"title"`
	Description         string      `json:"description"`
	Location            string      `json:"location"`
	Date                time.Time   `json:"date"`
	Time                string      `json:"time"`
	Price               int64       `json:"price"`
	Capacity            int         `json:"capacity"`
	RegisteredAttendees int         `json:"registered_attendees"`
	OrganizerID         string      `json:"organizer_id"`
	Category            string      `json:"category"`
	ImageURL            *string     `json:"image_url"`
	Status              EventStatus `json:"status"`
	CreatedAt           time.Time   `json:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at"`
}

// NewEvent returns a new active Event. ID is typically set by the repository on create.
func NewEvent(title, description, location string, date time.Time, startTime string, price int64, capacity int, organizerID, category string, createdAt, updatedAt time.Time) *Event {
	return &Event{
		Title:       title,
		Description: description,
		Location:    location,
		Date:        date,
		Time:        startTime,
		Price:       price,
		Capacity:    capacity,
		OrganizerID: organizerID,
		Category:    category,
		Status:      EventStatusActive,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}
}

// AvailableSpots returns the number of seats not yet held by registrations.
func (e *Event) AvailableSpots() int {
	n := e.Capacity - e.RegisteredAttendees
	if n < 0 {
		return 0
	}
	return n
}

// OpenForRegistration reports whether new registrations may be made for the event.
func (e *Event) OpenForRegistration() bool {
	return e.Status == EventStatusActive
}

// EventCategory is a catalog category (music, tech, sport, ...).
// swagger:model EventCategory
type EventCategory struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// EventFilter narrows catalog queries. Zero values mean "no filter", except Status which
// defaults to active in the service layer.
type EventFilter struct {
	Category      string
	Status        EventStatus
	Search        string
	From          *time.Time
	To            *time.Time
	OrganizerID   string
	AvailableOnly bool
}

// EventUpdate holds the optional fields of a partial event update. Nil fields are unchanged.
type EventUpdate struct {
	Title       *string
	Description *string
	Location    *string
	Date        *time.Time
	Time        *string
	Price       *int64
	Capacity    *int
	Category    *string
	ImageURL    *string
	Status      *EventStatus
}

// Empty reports whether the update changes nothing.
func (u EventUpdate) Empty() bool {
	return u.Title == nil && u.Description == nil && u.Location == nil && u.Date == nil && u.Time == nil &&
		u.Price == nil && u.Capacity == nil && u.Category == nil && u.ImageURL == nil && u.Status == nil
}

// EventRepository defines the interface for event storage.
type EventRepository interface {
	Create(ctx context.Context, event *Event) error
	GetByID(ctx context.Context, id string) (*Event, error)
	List(ctx context.Context, filter EventFilter, params PaginationParams) ([]*Event, int, error)
	// Update applies the partial update. Returns ErrInsufficientCapacity when the new capacity
	// would be below the seats already held.
	Update(ctx context.Context, id string, update EventUpdate) (*Event, error)
	Delete(ctx context.Context, id string) error
}

// CategoryRepository lists event categories.
type CategoryRepository interface {
	List(ctx context.Context) ([]*EventCategory, error)
}

// EventService defines catalog and admin operations on events.
type EventService interface {
	ListEvents(ctx context.Context, filter EventFilter, params PaginationParams) ([]*Event, int, error)
	GetEvent(ctx context.Context, id string) (*Event, error)
	CreateEvent(ctx context.Context, event *Event) error
	UpdateEvent(ctx context.Context, id string, caller Principal, update EventUpdate) (*Event, error)
	// DeleteEvent hard-deletes an event without registrations and soft-retires (cancels) one that has them.
	// Returns true when the event was retired instead of deleted.
	DeleteEvent(ctx context.Context, id string, caller Principal) (retired bool, err error)
	ListCategories(ctx context.Context) ([]*EventCategory, error)
}
