package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"eventportal/internal/domain"
)

// withTx runs fn in a transaction, rolling back when fn fails.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23503"
}

// reserveSeats adds n held seats to an active event, refusing to go past capacity.
// The conditional update is the only path that increases registered_attendees.
func reserveSeats(ctx context.Context, tx *sql.Tx, eventID string, n int) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE events
		SET registered_attendees = registered_attendees + $2, updated_at = NOW()
		WHERE id = $1 AND status = 'active' AND registered_attendees + $2 <= capacity
	`, eventID, n)
	if err != nil {
		return err
	}
	if rows, _ := res.RowsAffected(); rows == 1 {
		return nil
	}

	var status domain.EventStatus
	err = tx.QueryRowContext(ctx, `SELECT status FROM events WHERE id = $1`, eventID).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		return err
	}
	if status != domain.EventStatusActive {
		return domain.ErrEventUnavailable
	}
	return domain.ErrInsufficientCapacity
}

// releaseSeats gives back n seats, never going below zero.
func releaseSeats(ctx context.Context, tx *sql.Tx, eventID string, n int) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE events
		SET registered_attendees = GREATEST(registered_attendees - $2, 0), updated_at = NOW()
		WHERE id = $1
	`, eventID, n)
	return err
}
