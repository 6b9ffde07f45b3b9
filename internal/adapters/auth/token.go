package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"eventportal/internal/domain"
)

// tokenIssuer is the iss claim; tokens minted elsewhere with the same secret are rejected.
const tokenIssuer = "event-portal"

var errMissingSubject = errors.New("token has no subject")

type claims struct {
	jwt.RegisteredClaims
	Email string   `json:"email"`
	Roles []string `json:"roles,omitempty"`
}

// JWT mints and checks HS256 bearer tokens. It satisfies both domain.TokenIssuer and
// domain.TokenVerifier.
type JWT struct {
	key    []byte
	now    func() time.Time
	parser *jwt.Parser
}

var (
	_ domain.TokenIssuer   = (*JWT)(nil)
	_ domain.TokenVerifier = (*JWT)(nil)
)

func NewJWT(secret string) *JWT {
	j := &JWT{key: []byte(secret), now: time.Now}
	j.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return j.now() }),
	)
	return j
}

func (j *JWT) Issue(userID, email string, roles []string, ttl time.Duration) (string, error) {
	issuedAt := j.now()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
		Email: email,
		Roles: roles,
	}).SignedString(j.key)
	if err != nil {
		return "", fmt.Errorf("sign token for %s: %w", userID, err)
	}
	return signed, nil
}

func (j *JWT) Verify(raw string) (domain.Principal, error) {
	var c claims
	if _, err := j.parser.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) { return j.key, nil }); err != nil {
		return domain.Principal{}, fmt.Errorf("verify token: %w", err)
	}
	if c.Subject == "" {
		return domain.Principal{}, errMissingSubject
	}
	return domain.Principal{UserID: c.Subject, Email: c.Email, Roles: c.Roles}, nil
}
