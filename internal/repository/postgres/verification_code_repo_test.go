package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"eventportal/internal/domain"
)

func TestVerificationCodeRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expires := evTS.Add(15 * time.Minute)
	mock.ExpectQuery(`INSERT INTO registration_verification_codes \(registration_id, code_hash, expires_at, created_at\)`).
		WithArgs("reg-1", "$2a$hash", expires, evTS).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("code-1"))

	c := &domain.VerificationCode{RegistrationID: "reg-1", CodeHash: "$2a$hash", ExpiresAt: expires, CreatedAt: evTS}
	require.NoError(t, NewVerificationCodeRepository(db).Create(context.Background(), c))
	require.Equal(t, "code-1", c.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVerificationCodeRepository_GetLatest(t *testing.T) {
	ctx := context.Background()
	cols := []string{"id", "registration_id", "code_hash", "expires_at", "consumed_at", "created_at"}
	consumed := evTS.Add(time.Minute)

	tests := []struct {
		name         string
		mock         func(mock sqlmock.Sqlmock)
		wantConsumed bool
		wantErr      error
	}{
		{
			name: "unconsumed",
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`FROM registration_verification_codes\s+WHERE registration_id = \$1\s+ORDER BY created_at DESC\s+LIMIT 1`).
					WithArgs("reg-1").
					WillReturnRows(sqlmock.NewRows(cols).AddRow("code-1", "reg-1", "h", evTS.Add(15*time.Minute), nil, evTS))
			},
		},
		{
			name: "consumed",
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`FROM registration_verification_codes`).
					WithArgs("reg-1").
					WillReturnRows(sqlmock.NewRows(cols).AddRow("code-1", "reg-1", "h", evTS.Add(15*time.Minute), consumed, evTS))
			},
			wantConsumed: true,
		},
		{
			name: "none issued",
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`FROM registration_verification_codes`).WithArgs("reg-1").WillReturnError(sql.ErrNoRows)
			},
			wantErr: domain.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			tt.mock(mock)
			c, err := NewVerificationCodeRepository(db).GetLatest(ctx, "reg-1")
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				require.Equal(t, "code-1", c.ID)
				require.Equal(t, tt.wantConsumed, c.ConsumedAt != nil)
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestVerificationCodeRepository_MarkConsumed(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	at := evTS.Add(5 * time.Minute)
	mock.ExpectExec(`UPDATE registration_verification_codes\s+SET consumed_at = \$2\s+WHERE id = \$1 AND consumed_at IS NULL`).
		WithArgs("code-1", at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE registration_verification_codes`).
		WithArgs("code-1", at).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewVerificationCodeRepository(db)
	ok, err := repo.MarkConsumed(context.Background(), "code-1", at)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.MarkConsumed(context.Background(), "code-1", at)
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVerificationCodeRepository_Delete(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM registration_verification_codes WHERE id = \$1`).
		WithArgs("code-2").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewVerificationCodeRepository(db).Delete(context.Background(), "code-2"))
	require.NoError(t, mock.ExpectationsWereMet())
}
