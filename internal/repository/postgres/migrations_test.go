package postgres

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"testing/fstest"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestRunMigrations_AppliesPendingInOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	fsys := fstest.MapFS{
		"migrations/002_more.sql": {Data: []byte("ALTER TABLE events ADD COLUMN venue TEXT;")},
		"migrations/001_init.sql": {Data: []byte("CREATE TABLE events (id UUID);")},
	}

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM schema_migrations WHERE version = \$1\)`).
		WithArgs("migrations/001_init.sql").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("migrations/002_more.sql").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec(`ALTER TABLE events ADD COLUMN venue TEXT;`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO schema_migrations \(version\) VALUES \(\$1\)`).
		WithArgs("migrations/002_more.sql").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, runMigrations(context.Background(), db, fsys, logger))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEmbeddedMigrationsPresent(t *testing.T) {
	content, err := migrationFS.ReadFile("migrations/001_init.sql")
	require.NoError(t, err)
	require.Contains(t, string(content), "CREATE TABLE IF NOT EXISTS event_registrations")
	require.Contains(t, string(content), "registered_attendees <= capacity")
}

func TestEmbeddedMigrationsReservePayments(t *testing.T) {
	content, err := migrationFS.ReadFile("migrations/002_payment_reservations.sql")
	require.NoError(t, err)
	require.Contains(t, string(content), "ALTER COLUMN transaction_id DROP NOT NULL")
}
