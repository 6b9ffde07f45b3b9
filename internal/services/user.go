package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"eventportal/internal/domain"
)

const (
	loginCodeDigits = 6
	loginCodeTTL    = 15 * time.Minute
	// Profile names longer than this are rejected.
	maxFullNameLength = 120
)

type userService struct {
	userRepo        domain.UserRepository
	roleRepo        domain.RoleRepository
	loginCodeRepo   domain.LoginCodeRepository
	tokenIssuer     domain.TokenIssuer
	tokenExpiry     time.Duration
	emailService    domain.EmailService
	bootstrapAdmins map[string]struct{}
	now             func() time.Time
}

// NewUserService wires passwordless login and profile management. Accounts are created on
// first successful login; addresses in bootstrapAdmins also get the admin role at that point.
func NewUserService(userRepo domain.UserRepository, roleRepo domain.RoleRepository, loginCodeRepo domain.LoginCodeRepository, tokenIssuer domain.TokenIssuer, tokenExpiry time.Duration, emailService domain.EmailService, bootstrapAdmins []string) domain.UserService {
	admins := make(map[string]struct{}, len(bootstrapAdmins))
	for _, e := range bootstrapAdmins {
		if e = normalizeEmail(e); e != "" {
			admins[e] = struct{}{}
		}
	}
	return &userService{
		userRepo:        userRepo,
		roleRepo:        roleRepo,
		loginCodeRepo:   loginCodeRepo,
		tokenIssuer:     tokenIssuer,
		tokenExpiry:     tokenExpiry,
		emailService:    emailService,
		bootstrapAdmins: admins,
		now:             time.Now,
	}
}

func (s *userService) RequestLoginCode(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if !emailRegexp.MatchString(email) {
		return fmt.Errorf("%w: invalid email format", domain.ErrInvalidInput)
	}
	code, err := randomDigits(loginCodeDigits)
	if err != nil {
		return fmt.Errorf("generate login code: %w", err)
	}
	if err := s.loginCodeRepo.Create(ctx, email, lookupHash(code), s.now().Add(loginCodeTTL)); err != nil {
		return fmt.Errorf("store login code: %w", err)
	}
	if s.emailService == nil {
		return nil
	}
	err = s.emailService.SendLoginCode(ctx, &domain.LoginCodeEmailData{
		Email:            email,
		Code:             code,
		ExpiresInMinutes: int(loginCodeTTL / time.Minute),
	})
	if err != nil {
		return fmt.Errorf("send login code email: %w", err)
	}
	return nil
}

// VerifyLoginCode exchanges a live code for a signed token. Wrong, expired and reused codes
// all yield ErrInvalidCode.
func (s *userService) VerifyLoginCode(ctx context.Context, email, code string) (string, *domain.User, error) {
	email = normalizeEmail(email)
	if !emailRegexp.MatchString(email) {
		return "", nil, fmt.Errorf("%w: invalid email format", domain.ErrInvalidInput)
	}
	if code = strings.TrimSpace(code); !sixDigitsRegexp.MatchString(code) {
		return "", nil, domain.ErrInvalidCode
	}
	switch ok, err := s.loginCodeRepo.Consume(ctx, email, lookupHash(code)); {
	case err != nil:
		return "", nil, fmt.Errorf("consume login code: %w", err)
	case !ok:
		return "", nil, domain.ErrInvalidCode
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		user, err = s.createUser(ctx, email)
		if err != nil {
			return "", nil, err
		}
	case err != nil:
		return "", nil, fmt.Errorf("get user: %w", err)
	}

	if user.Roles, err = s.roleCodes(ctx, user.ID); err != nil {
		return "", nil, err
	}
	token, err := s.tokenIssuer.Issue(user.ID, user.Email, user.Roles, s.tokenExpiry)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return token, user, nil
}

func (s *userService) createUser(ctx context.Context, email string) (*domain.User, error) {
	now := s.now()
	user := domain.NewUser(email, "", "", now, now)
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	grant := []string{domain.RoleAttendee}
	if _, ok := s.bootstrapAdmins[email]; ok {
		grant = append(grant, domain.RoleAdmin)
	}
	for _, code := range grant {
		role, err := s.roleRepo.GetByCode(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("role %q: %w", code, err)
		}
		if err := s.userRepo.AssignRole(ctx, user.ID, role.ID); err != nil {
			return nil, fmt.Errorf("assign role %q: %w", code, err)
		}
	}
	return user, nil
}

func (s *userService) roleCodes(ctx context.Context, userID string) ([]string, error) {
	roles, err := s.roleRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load roles: %w", err)
	}
	codes := make([]string, len(roles))
	for i, r := range roles {
		codes[i] = r.Code
	}
	return codes, nil
}

func (s *userService) GetByID(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	if user.Roles, err = s.roleCodes(ctx, user.ID); err != nil {
		return nil, err
	}
	return user, nil
}

// Update replaces the profile fields. The phone number is stored normalized (2376XXXXXXXX).
func (s *userService) Update(ctx context.Context, user *domain.User) error {
	user.FullName = strings.TrimSpace(user.FullName)
	user.Email = normalizeEmail(user.Email)
	if utf8.RuneCountInString(user.FullName) > maxFullNameLength {
		return fmt.Errorf("%w: full name is too long", domain.ErrInvalidInput)
	}
	if user.Email == "" || !emailRegexp.MatchString(user.Email) {
		return fmt.Errorf("%w: invalid email format", domain.ErrInvalidInput)
	}
	if user.PhoneNumber != "" {
		phone, ok := NormalizeCameroonMobile(user.PhoneNumber)
		if !ok {
			return fmt.Errorf("%w: phone number must be a Cameroon mobile number", domain.ErrInvalidInput)
		}
		user.PhoneNumber = phone
	}
	user.UpdatedAt = s.now()
	if err := s.userRepo.Update(ctx, user); err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) || errors.Is(err, domain.ErrUserNotFound) {
			return err
		}
		return fmt.Errorf("update user %s: %w", user.ID, err)
	}
	return nil
}
