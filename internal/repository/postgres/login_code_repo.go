package postgres

import (
	"context"
	"database/sql"
	"time"

	"eventportal/internal/domain"
)

type loginCodeRepository struct {
	DB *sql.DB
}

func NewLoginCodeRepository(db *sql.DB) domain.LoginCodeRepository {
	return &loginCodeRepository{DB: db}
}

// Create stores a new code and drops the address's expired ones in the same statement.
func (r *loginCodeRepository) Create(ctx context.Context, email, codeHash string, expiresAt time.Time) error {
	_, err := r.DB.ExecContext(ctx, `
		WITH purged AS (
			DELETE FROM login_codes WHERE email = $1 AND expires_at <= NOW()
		)
		INSERT INTO login_codes (email, code_hash, expires_at) VALUES ($1, $2, $3)
	`, email, codeHash, expiresAt)
	return err
}

// Consume reports whether a live code matched; matching rows are deleted so a code works once.
func (r *loginCodeRepository) Consume(ctx context.Context, email, codeHash string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
		DELETE FROM login_codes
		WHERE email = $1 AND code_hash = $2 AND expires_at > NOW()
	`, email, codeHash)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
