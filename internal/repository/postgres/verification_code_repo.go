package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"eventportal/internal/domain"
)

type verificationCodeRepository struct {
	DB *sql.DB
}

// NewVerificationCodeRepository returns a domain.VerificationCodeRepository implemented with Postgres.
func NewVerificationCodeRepository(db *sql.DB) domain.VerificationCodeRepository {
	return &verificationCodeRepository{DB: db}
}

func (r *verificationCodeRepository) Create(ctx context.Context, c *domain.VerificationCode) error {
	query := `
		INSERT INTO registration_verification_codes (registration_id, code_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	return r.DB.QueryRowContext(ctx, query, c.RegistrationID, c.CodeHash, c.ExpiresAt, c.CreatedAt).Scan(&c.ID)
}

func (r *verificationCodeRepository) GetLatest(ctx context.Context, registrationID string) (*domain.VerificationCode, error) {
	query := `
		SELECT id, registration_id, code_hash, expires_at, consumed_at, created_at
		FROM registration_verification_codes
		WHERE registration_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	c := &domain.VerificationCode{}
	var consumedNull sql.NullTime
	err := r.DB.QueryRowContext(ctx, query, registrationID).
		Scan(&c.ID, &c.RegistrationID, &c.CodeHash, &c.ExpiresAt, &consumedNull, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if consumedNull.Valid {
		c.ConsumedAt = &consumedNull.Time
	}
	return c, nil
}

func (r *verificationCodeRepository) MarkConsumed(ctx context.Context, id string, at time.Time) (bool, error) {
	query := `
		UPDATE registration_verification_codes
		SET consumed_at = $2
		WHERE id = $1 AND consumed_at IS NULL
	`
	result, err := r.DB.ExecContext(ctx, query, id, at)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func (r *verificationCodeRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM registration_verification_codes WHERE id = $1`
	_, err := r.DB.ExecContext(ctx, query, id)
	return err
}
