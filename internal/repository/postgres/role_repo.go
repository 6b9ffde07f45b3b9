package postgres

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"eventportal/internal/domain"
)

// roleRepository reads the roles table. Roles are seeded by migration and never change at
// runtime, so lookups by code are cached for the life of the process.
type roleRepository struct {
	DB *sql.DB

	mu     sync.RWMutex
	byCode map[string]domain.Role
}

func NewRoleRepository(db *sql.DB) domain.RoleRepository {
	return &roleRepository{DB: db, byCode: make(map[string]domain.Role)}
}

func (r *roleRepository) GetByCode(ctx context.Context, code string) (*domain.Role, error) {
	r.mu.RLock()
	cached, ok := r.byCode[code]
	r.mu.RUnlock()
	if ok {
		return &cached, nil
	}

	var role domain.Role
	err := r.DB.QueryRowContext(ctx, `SELECT id, code FROM roles WHERE code = $1`, code).Scan(&role.ID, &role.Code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.byCode[code] = role
	r.mu.Unlock()
	return &role, nil
}

// ListByUserID returns the user's roles ordered by code; a user without roles gets an empty slice.
func (r *roleRepository) ListByUserID(ctx context.Context, userID string) ([]*domain.Role, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT r.id, r.code
		FROM user_roles ur
		JOIN roles r ON r.id = ur.role_id
		WHERE ur.user_id = $1
		ORDER BY r.code
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	roles := make([]*domain.Role, 0, 2)
	for rows.Next() {
		var role domain.Role
		if err := rows.Scan(&role.ID, &role.Code); err != nil {
			return nil, err
		}
		roles = append(roles, &role)
	}
	return roles, rows.Err()
}
