package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"eventportal/internal/domain"
)

type adminService struct {
	userRepo       domain.UserRepository
	roleRepo       domain.RoleRepository
	contextTimeout time.Duration
}

// NewAdminService creates an AdminService. Callers are expected to be authorized as admin already.
func NewAdminService(userRepo domain.UserRepository, roleRepo domain.RoleRepository, timeout time.Duration) domain.AdminService {
	return &adminService{userRepo: userRepo, roleRepo: roleRepo, contextTimeout: timeout}
}

func (s *adminService) ListUsers(ctx context.Context, params domain.PaginationParams) ([]*domain.User, int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	users, total, err := s.userRepo.List(ctx, params)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	return users, total, nil
}

func (s *adminService) GrantRole(ctx context.Context, userID, roleCode string) error {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	role, err := s.role(ctx, userID, roleCode)
	if err != nil {
		return err
	}
	if err := s.userRepo.AssignRole(ctx, userID, role.ID); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return err
		}
		return fmt.Errorf("failed to assign role: %w", err)
	}
	return nil
}

func (s *adminService) RevokeRole(ctx context.Context, userID, roleCode string) error {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	role, err := s.role(ctx, userID, roleCode)
	if err != nil {
		return err
	}
	if err := s.userRepo.RemoveRole(ctx, userID, role.ID); err != nil {
		return fmt.Errorf("failed to remove role: %w", err)
	}
	return nil
}

// role resolves the role code and checks that the user exists.
func (s *adminService) role(ctx context.Context, userID, roleCode string) (*domain.Role, error) {
	if userID == "" || roleCode == "" {
		return nil, fmt.Errorf("%w: user and role are required", domain.ErrInvalidInput)
	}
	role, err := s.roleRepo.GetByCode(ctx, roleCode)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown role %q", domain.ErrInvalidInput, roleCode)
		}
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return role, nil
}
