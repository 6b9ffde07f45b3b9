package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"eventportal/internal/domain"
)

const registrationColumns = `id, event_id, user_id, attendees, status, payment_status, created_at, updated_at`

type registrationRepository struct {
	DB *sql.DB
}

func NewRegistrationRepository(db *sql.DB) domain.RegistrationRepository {
	return &registrationRepository{
		DB: db,
	}
}

func scanRegistration(s rowScanner) (*domain.Registration, error) {
	reg := &domain.Registration{}
	err := s.Scan(&reg.ID, &reg.EventID, &reg.UserID, &reg.Attendees, &reg.Status, &reg.PaymentStatus, &reg.CreatedAt, &reg.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return reg, nil
}

func (r *registrationRepository) CreateWithSeats(ctx context.Context, reg *domain.Registration) error {
	return withTx(ctx, r.DB, func(tx *sql.Tx) error {
		if err := reserveSeats(ctx, tx, reg.EventID, reg.Attendees); err != nil {
			return err
		}
		query := `
			INSERT INTO event_registrations (event_id, user_id, attendees, status, payment_status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id
		`
		return tx.QueryRowContext(ctx, query,
			reg.EventID, reg.UserID, reg.Attendees, reg.Status, reg.PaymentStatus, reg.CreatedAt, reg.UpdatedAt,
		).Scan(&reg.ID)
	})
}

func (r *registrationRepository) GetByID(ctx context.Context, id string) (*domain.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM event_registrations WHERE id = $1`
	reg, err := scanRegistration(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return reg, nil
}

func (r *registrationRepository) ListByUserID(ctx context.Context, userID string) ([]*domain.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM event_registrations WHERE user_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, query, userID)
}

func (r *registrationRepository) ListByEventID(ctx context.Context, eventID string) ([]*domain.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM event_registrations WHERE event_id = $1 ORDER BY created_at ASC`
	return r.list(ctx, query, eventID)
}

func (r *registrationRepository) list(ctx context.Context, query string, arg string) ([]*domain.Registration, error) {
	rows, err := r.DB.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	regs := make([]*domain.Registration, 0)
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		regs = append(regs, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return regs, nil
}

func (r *registrationRepository) CountByEventID(ctx context.Context, eventID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM event_registrations WHERE event_id = $1`, eventID).Scan(&n)
	return n, err
}

// Cancel refuses registrations with a payment still in flight; the payment has to settle first.
func (r *registrationRepository) Cancel(ctx context.Context, id string) (*domain.Registration, error) {
	var reg *domain.Registration
	err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
		query := `
			UPDATE event_registrations r
			SET status = 'cancelled', updated_at = NOW()
			WHERE r.id = $1 AND r.status = 'pending'
				AND NOT EXISTS (SELECT 1 FROM payments p WHERE p.registration_id = r.id AND p.status = 'PENDING')
			RETURNING ` + registrationColumns
		var err error
		reg, err = scanRegistration(tx.QueryRowContext(ctx, query, id))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return r.transitionError(ctx, tx, id)
			}
			return err
		}
		// payment_status is untouched by the update, so it still says whether seats were held.
		if reg.PaymentStatus == domain.PaymentStatePending {
			return releaseSeats(ctx, tx, reg.EventID, reg.Attendees)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reg, nil
}

func (r *registrationRepository) ReopenPayment(ctx context.Context, id string) (*domain.Registration, error) {
	var reg *domain.Registration
	err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
		query := `
			UPDATE event_registrations
			SET payment_status = 'pending', updated_at = NOW()
			WHERE id = $1 AND status = 'pending' AND payment_status = 'failed'
			RETURNING ` + registrationColumns
		var err error
		reg, err = scanRegistration(tx.QueryRowContext(ctx, query, id))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return r.transitionError(ctx, tx, id)
			}
			return err
		}
		return reserveSeats(ctx, tx, reg.EventID, reg.Attendees)
	})
	if err != nil {
		return nil, err
	}
	return reg, nil
}

// ExpirePending cancels stale pending registrations. Payments of those registrations still
// marked PENDING are older than the cutoff too and are failed in the same transaction, so a
// late success for them cannot confirm a cancelled registration.
func (r *registrationRepository) ExpirePending(ctx context.Context, olderThan time.Time) (int, error) {
	expired := 0
	err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
		query := `
			UPDATE event_registrations r
			SET status = 'cancelled', updated_at = NOW()
			WHERE r.status = 'pending' AND r.created_at < $1
				AND NOT EXISTS (
					SELECT 1 FROM payments p
					WHERE p.registration_id = r.id AND p.status = 'PENDING' AND p.created_at >= $1
				)
			RETURNING r.id, r.event_id, r.attendees, r.payment_status
		`
		rows, err := tx.QueryContext(ctx, query, olderThan)
		if err != nil {
			return err
		}
		type hold struct {
			eventID   string
			attendees int
		}
		var ids []string
		var holds []hold
		for rows.Next() {
			var id, eventID string
			var attendees int
			var paymentStatus domain.PaymentState
			if err := rows.Scan(&id, &eventID, &attendees, &paymentStatus); err != nil {
				rows.Close()
				return err
			}
			ids = append(ids, id)
			if paymentStatus == domain.PaymentStatePending {
				holds = append(holds, hold{eventID: eventID, attendees: attendees})
			}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()
		if len(ids) == 0 {
			return nil
		}

		for _, h := range holds {
			if err := releaseSeats(ctx, tx, h.eventID, h.attendees); err != nil {
				return err
			}
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE payments
			SET status = 'FAILED', message = 'expired before confirmation', updated_at = NOW()
			WHERE status = 'PENDING' AND registration_id = ANY($1)
		`, pq.Array(ids))
		if err != nil {
			return err
		}
		expired = len(ids)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return expired, nil
}

// transitionError tells a missing registration apart from one in the wrong state.
func (r *registrationRepository) transitionError(ctx context.Context, tx *sql.Tx, id string) error {
	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM event_registrations WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return domain.ErrNotFound
	}
	return domain.ErrInvalidTransition
}
