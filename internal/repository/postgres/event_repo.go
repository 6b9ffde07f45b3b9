package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"eventportal/internal/domain"
)

const eventColumns = `id, title, description, location, date, time, price, capacity, registered_attendees,
		organizer_id, category, image_url, status, created_at, updated_at`

type eventRepository struct {
	DB *sql.DB
}

func NewEventRepository(db *sql.DB) domain.EventRepository {
	return &eventRepository{
		DB: db,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(s rowScanner) (*domain.Event, error) {
	e := &domain.Event{}
	var imageNull sql.NullString
	err := s.Scan(
		&e.ID, &e.Title, &e.Description, &e.Location, &e.Date, &e.Time, &e.Price, &e.Capacity, &e.RegisteredAttendees,
		&e.OrganizerID, &e.Category, &imageNull, &e.Status, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if imageNull.Valid {
		e.ImageURL = &imageNull.String
	}
	return e, nil
}

func (r *eventRepository) Create(ctx context.Context, e *domain.Event) error {
	query := `
		INSERT INTO events (title, description, location, date, time, price, capacity, registered_attendees,
			organizer_id, category, image_url, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`
	return r.DB.QueryRowContext(ctx, query,
		e.Title, e.Description, e.Location, e.Date, e.Time, e.Price, e.Capacity,
		e.OrganizerID, e.Category, e.ImageURL, e.Status, e.CreatedAt, e.UpdatedAt,
	).Scan(&e.ID)
}

func (r *eventRepository) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	e, err := scanEvent(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

func (r *eventRepository) List(ctx context.Context, filter domain.EventFilter, params domain.PaginationParams) ([]*domain.Event, int, error) {
	where, args := eventWhere(filter)

	var total int
	countQuery := `SELECT COUNT(*) FROM events` + where
	if err := r.DB.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	query := fmt.Sprintf(`SELECT %s FROM events%s ORDER BY date ASC, created_at ASC LIMIT $%d OFFSET $%d`,
		eventColumns, where, n+1, n+2)
	args = append(args, params.Limit(), params.Offset())
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	events := make([]*domain.Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

// eventWhere builds the WHERE clause for a catalog filter. Placeholders start at $1.
func eventWhere(f domain.EventFilter) (string, []any) {
	var clauses []string
	var args []any
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.Category != "" {
		add("category = $%d", f.Category)
	}
	if f.OrganizerID != "" {
		add("organizer_id = $%d", f.OrganizerID)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		add("(title ILIKE $%[1]d OR location ILIKE $%[1]d)", "%"+escapeLike(s)+"%")
	}
	if f.From != nil {
		add("date >= $%d", *f.From)
	}
	if f.To != nil {
		add("date <= $%d", *f.To)
	}
	if f.AvailableOnly {
		clauses = append(clauses, "registered_attendees < capacity")
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (r *eventRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM events WHERE id = $1`
	result, err := r.DB.ExecContext(ctx, query, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrInvalidTransition
		}
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *eventRepository) Update(ctx context.Context, eventID string, u domain.EventUpdate) (*domain.Event, error) {
	setClauses := []string{"updated_at = NOW()"}
	args := []any{}
	set := func(column string, value any) {
		args = append(args, value)
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if u.Title != nil {
		set("title", *u.Title)
	}
	if u.Description != nil {
		set("description", *u.Description)
	}
	if u.Location != nil {
		set("location", *u.Location)
	}
	if u.Date != nil {
		set("date", *u.Date)
	}
	if u.Time != nil {
		set("time", *u.Time)
	}
	if u.Price != nil {
		set("price", *u.Price)
	}
	if u.Capacity != nil {
		set("capacity", *u.Capacity)
	}
	if u.Category != nil {
		set("category", *u.Category)
	}
	if u.ImageURL != nil {
		set("image_url", *u.ImageURL)
	}
	if u.Status != nil {
		set("status", *u.Status)
	}
	if len(args) == 0 {
		// No fields to update; just fetch current row
		return r.GetByID(ctx, eventID)
	}

	args = append(args, eventID)
	where := fmt.Sprintf("id = $%d", len(args))
	if u.Capacity != nil {
		args = append(args, *u.Capacity)
		where += fmt.Sprintf(" AND registered_attendees <= $%d", len(args))
	}
	query := fmt.Sprintf(`UPDATE events SET %s WHERE %s RETURNING %s`, strings.Join(setClauses, ", "), where, eventColumns)
	e, err := scanEvent(r.DB.QueryRowContext(ctx, query, args...))
	if err == nil {
		return e, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if u.Capacity == nil {
		return nil, domain.ErrNotFound
	}
	// Distinguish a missing event from a capacity below the seats already held.
	if _, err := r.GetByID(ctx, eventID); err != nil {
		return nil, err
	}
	return nil, domain.ErrInsufficientCapacity
}
