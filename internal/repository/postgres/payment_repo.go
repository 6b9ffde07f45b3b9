package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"eventportal/internal/domain"
)

const paymentColumns = `id, registration_id, transaction_id, reference, provider, phone_number, amount, status, message, created_at, updated_at`

type paymentRepository struct {
	DB *sql.DB
}

func NewPaymentRepository(db *sql.DB) domain.PaymentRepository {
	return &paymentRepository{DB: db}
}

func scanPayment(s rowScanner) (*domain.Payment, error) {
	p := &domain.Payment{}
	var txID sql.NullString
	err := s.Scan(&p.ID, &p.RegistrationID, &txID, &p.Reference, &p.Provider, &p.PhoneNumber,
		&p.Amount, &p.Status, &p.Message, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.TransactionID = txID.String
	return p, nil
}

func (r *paymentRepository) Create(ctx context.Context, p *domain.Payment) error {
	query := `
		INSERT INTO payments (registration_id, transaction_id, reference, provider, phone_number, amount, status, message, created_at, updated_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	err := r.DB.QueryRowContext(ctx, query,
		p.RegistrationID, p.TransactionID, p.Reference, p.Provider, p.PhoneNumber, p.Amount, p.Status, p.Message,
		p.CreatedAt, p.UpdatedAt,
	).Scan(&p.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrInvalidTransition
		}
		return err
	}
	return nil
}

// reservedAttempt matches a PENDING row still waiting for the aggregator's id.
const reservedAttempt = `reference = $1 AND transaction_id IS NULL AND status = 'PENDING'`

func (r *paymentRepository) AttachTransaction(ctx context.Context, reference, transactionID string) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE payments SET transaction_id = $2, updated_at = NOW()
		WHERE `+reservedAttempt, reference, transactionID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("transaction id %s already recorded: %w", transactionID, domain.ErrInvalidTransition)
		}
		return err
	}
	return expectOneRow(res, reference)
}

func (r *paymentRepository) Abandon(ctx context.Context, reference, message string) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE payments SET status = 'FAILED', message = $2, updated_at = NOW()
		WHERE `+reservedAttempt, reference, message)
	if err != nil {
		return err
	}
	return expectOneRow(res, reference)
}

// expectOneRow turns a no-op update of a reserved attempt into ErrInvalidTransition; the
// reaper may have failed the attempt in the meantime.
func expectOneRow(res sql.Result, reference string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("payment %s is no longer reserved: %w", reference, domain.ErrInvalidTransition)
	}
	return nil
}

func (r *paymentRepository) GetByTransactionID(ctx context.Context, transactionID string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE transaction_id = $1`
	p, err := scanPayment(r.DB.QueryRowContext(ctx, query, transactionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *paymentRepository) GetPendingByRegistrationID(ctx context.Context, registrationID string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE registration_id = $1 AND status = 'PENDING'`
	p, err := scanPayment(r.DB.QueryRowContext(ctx, query, registrationID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *paymentRepository) ListPending(ctx context.Context) ([]*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE status = 'PENDING' AND transaction_id IS NOT NULL ORDER BY created_at ASC`
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]*domain.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (r *paymentRepository) Settle(ctx context.Context, transactionID string, status domain.PaymentStatus, message string) (*domain.SettleResult, error) {
	if !status.Terminal() {
		return nil, fmt.Errorf("settle with status %q: %w", status, domain.ErrInvalidInput)
	}

	var result *domain.SettleResult
	err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
		query := `
			UPDATE payments
			SET status = $2, message = $3, updated_at = NOW()
			WHERE transaction_id = $1 AND status = 'PENDING'
			RETURNING ` + paymentColumns
		p, err := scanPayment(tx.QueryRowContext(ctx, query, transactionID, status, message))
		if err != nil {
			return err
		}
		result = &domain.SettleResult{Payment: p, Changed: true}

		var regQuery string
		if status == domain.PaymentSuccessful {
			regQuery = `
				UPDATE event_registrations
				SET status = 'confirmed', payment_status = 'completed', updated_at = NOW()
				WHERE id = $1 AND status = 'pending' AND payment_status = 'pending'
				RETURNING ` + registrationColumns
		} else {
			regQuery = `
				UPDATE event_registrations
				SET payment_status = 'failed', updated_at = NOW()
				WHERE id = $1 AND status = 'pending' AND payment_status = 'pending'
				RETURNING ` + registrationColumns
		}
		reg, err := scanRegistration(tx.QueryRowContext(ctx, regQuery, p.RegistrationID))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return err
		}
		result.Registration = reg
		if status == domain.PaymentFailed {
			return releaseSeats(ctx, tx, reg.EventID, reg.Attendees)
		}
		return nil
	})
	if err == nil {
		return result, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	// Already terminal (or unknown): report the stored row without changing anything.
	p, err := r.GetByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	return &domain.SettleResult{Payment: p, Changed: false}, nil
}
