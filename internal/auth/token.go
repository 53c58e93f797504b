package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/vaughan-dsouza/usersapi/internal/models"
)

var (
	ErrMissingSecret = errors.New("signing secret not configured")
	ErrTokenInvalid  = errors.New("token invalid")
	ErrTokenExpired  = errors.New("token expired")
)

// Claims is the signed payload of an access token.
type Claims struct {
	UserID int64       `json:"id"`
	Email  string      `json:"email"`
	Role   models.Role `json:"role"`
	jwt.RegisteredClaims
}

func (c *Claims) Identity() Identity {
	return Identity{ID: c.UserID, Email: c.Email, Role: c.Role}
}

// Option tweaks an Issuer or Verifier.
type Option func(*clock)

type clock struct {
	now func() time.Time
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *clock) { c.now = now }
}

func newClock(opts []Option) clock {
	c := clock{now: time.Now}
	for _, o := range opts {
		o(&c)
	}
	return c
}

// Issuer signs HS256 access tokens with a process-wide secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	clock
}

func NewIssuer(secret string, ttl time.Duration, opts ...Option) (*Issuer, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("token ttl must be positive, got %s", ttl)
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, clock: newClock(opts)}, nil
}

func (i *Issuer) TTL() time.Duration { return i.ttl }

// Issue returns a signed token carrying id, email and role, and the moment
// it stops being valid.
func (i *Issuer) Issue(id Identity) (string, time.Time, error) {
	now := i.now()
	exp := now.Add(i.ttl)

	claims := Claims{
		UserID: id.ID,
		Email:  id.Email,
		Role:   id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Verifier checks tokens produced by an Issuer holding the same secret.
type Verifier struct {
	secret []byte
	clock
}

func NewVerifier(secret string, opts ...Option) (*Verifier, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	return &Verifier{secret: []byte(secret), clock: newClock(opts)}, nil
}

// Verify validates signature and expiry and returns the embedded claims.
// Failures are ErrTokenExpired or ErrTokenInvalid, wrapping the parser's
// error for logging.
func (v *Verifier) Verify(tokenStr string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(v.now),
	)

	var claims Claims
	_, err := parser.ParseWithClaims(tokenStr, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	if claims.UserID <= 0 || claims.Email == "" || !claims.Role.Valid() {
		return nil, fmt.Errorf("%w: incomplete identity claims", ErrTokenInvalid)
	}
	return &claims, nil
}
