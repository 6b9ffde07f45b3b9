package postgres

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventportal/internal/domain"
)

func TestRoleRepository_GetByCode(t *testing.T) {
	ctx := context.Background()

	t.Run("cached after first lookup", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`SELECT id, code FROM roles WHERE code = \$1`).
			WithArgs("admin").
			WillReturnRows(sqlmock.NewRows([]string{"id", "code"}).AddRow("role-admin", "admin"))

		repo := NewRoleRepository(db)
		for range 3 {
			role, err := repo.GetByCode(ctx, "admin")
			require.NoError(t, err)
			assert.Equal(t, "role-admin", role.ID)
		}
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown code", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`SELECT id, code FROM roles`).
			WithArgs("owner").
			WillReturnRows(sqlmock.NewRows([]string{"id", "code"}))

		_, err = NewRoleRepository(db).GetByCode(ctx, "owner")
		require.ErrorIs(t, err, domain.ErrNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRoleRepository_ListByUserID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM user_roles ur\s+JOIN roles r ON r.id = ur.role_id\s+WHERE ur.user_id = \$1`).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "code"}).
			AddRow("role-admin", "admin").
			AddRow("role-attendee", "attendee"))

	roles, err := NewRoleRepository(db).ListByUserID(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, roles, 2)
	assert.Equal(t, "admin", roles[0].Code)
	assert.Equal(t, "attendee", roles[1].Code)
	require.NoError(t, mock.ExpectationsWereMet())
}
