package service

import (
	"context"
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/vaughan-dsouza/usersapi/internal/apperrors"
	"github.com/vaughan-dsouza/usersapi/internal/auth"
	"github.com/vaughan-dsouza/usersapi/internal/logging"
	"github.com/vaughan-dsouza/usersapi/internal/models"
	"github.com/vaughan-dsouza/usersapi/internal/store"
)

const msgInvalidCredentials = "invalid email or password"

type RegisterInput struct {
	Name     string      `json:"name"`
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Role     models.Role `json:"role"`
}

func (in RegisterInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.Length(1, 100)),
		validation.Field(&in.Email, validation.Required, validation.Length(3, 100), is.Email),
		validation.Field(&in.Password, validation.Required, validation.Length(minPasswordLen, maxPasswordLen)),
		validation.Field(&in.Role, validation.In(models.RoleAdmin, models.RoleUser).Error("must be either 'admin' or 'user'")),
	)
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (in LoginInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Email, validation.Required),
		validation.Field(&in.Password, validation.Required),
	)
}

// AuthResult is returned by a successful register or login.
type AuthResult struct {
	User      *models.User
	Token     string
	ExpiresAt time.Time
}

type AuthService struct {
	users       store.UserRepository
	hasher      *auth.Hasher
	issuer      *auth.Issuer
	revocations auth.RevocationList
	adminEmail  string
	logger      logging.Logger
	now         func() time.Time

	// dummyHash is compared against on unknown emails so those logins
	// cost the same bcrypt time as a wrong password.
	dummyHash string
}

type AuthOption func(*AuthService)

// WithRevocations lets Logout cancel tokens before they expire.
func WithRevocations(r auth.RevocationList) AuthOption {
	return func(s *AuthService) { s.revocations = r }
}

// WithAdminEmail makes registration with this address create an admin.
func WithAdminEmail(email string) AuthOption {
	return func(s *AuthService) { s.adminEmail = normalizeEmail(email) }
}

func NewAuthService(users store.UserRepository, hasher *auth.Hasher, issuer *auth.Issuer, logger logging.Logger, opts ...AuthOption) *AuthService {
	s := &AuthService{
		users:  users,
		hasher: hasher,
		issuer: issuer,
		logger: logger,
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	// not tied to any request, so a caller going away cannot leave it empty
	if h, err := hasher.Hash(context.Background(), "timing-equalizer"); err == nil {
		s.dummyHash = h
	} else {
		logger.Error(context.Background(), "build timing-equalizer hash failed", "error", err)
	}
	return s
}

// Register creates a user and returns a token for it. Self-registration
// always yields the "user" role, except for the configured admin address.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.Email = normalizeEmail(in.Email)
	if err := in.Validate(); err != nil {
		return nil, validationFailure(err)
	}

	role := models.RoleUser
	if s.adminEmail != "" && in.Email == s.adminEmail {
		role = models.RoleAdmin
	} else if in.Role == models.RoleAdmin {
		return nil, apperrors.Authorization("admin role cannot be self-assigned")
	}

	if _, err := s.users.FindByEmail(ctx, in.Email); err == nil {
		return nil, apperrors.Conflict("Email already registered. Please login instead.", store.ErrDuplicateEmail)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.Internal(err)
	}

	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	u := &models.User{Name: in.Name, Email: in.Email, Password: hash, Role: role}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return nil, apperrors.Conflict("Email already registered. Please login instead.", err)
		}
		return nil, apperrors.Internal(err)
	}

	s.logger.Info(ctx, "user registered", "user_id", u.ID, "role", u.Role)
	return s.issue(u)
}

// Login checks credentials and returns a fresh token. Unknown email and
// wrong password fail identically.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	in.Email = normalizeEmail(in.Email)
	if err := in.Validate(); err != nil {
		return nil, validationFailure(err)
	}

	u, err := s.users.FindByEmail(ctx, in.Email)
	if errors.Is(err, store.ErrNotFound) {
		// burn the same bcrypt time as a real comparison
		_, _ = s.hasher.Verify(ctx, in.Password, s.dummyHash)
		return nil, apperrors.Authentication(msgInvalidCredentials, err)
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	ok, err := s.hasher.Verify(ctx, in.Password, u.Password)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if !ok {
		s.logger.Info(ctx, "login rejected", "user_id", u.ID, "reason", "password mismatch")
		return nil, apperrors.Authentication(msgInvalidCredentials, nil)
	}

	now := s.now()
	if err := s.users.UpdateLastLogin(ctx, u.ID, now); err != nil {
		s.logger.Warn(ctx, "update last login failed", "user_id", u.ID, "error", err)
	} else {
		u.LastLogin = &now
	}

	return s.issue(u)
}

// Logout revokes the presented token when a revocation list is configured;
// otherwise tokens simply run until expiry.
func (s *AuthService) Logout(ctx context.Context, claims *auth.Claims) error {
	if s.revocations == nil || claims == nil || claims.ID == "" || claims.ExpiresAt == nil {
		return nil
	}
	if err := s.revocations.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return apperrors.Internal(err)
	}
	s.logger.Info(ctx, "token revoked", "user_id", claims.UserID)
	return nil
}

func (s *AuthService) issue(u *models.User) (*AuthResult, error) {
	token, exp, err := s.issuer.Issue(auth.Identity{ID: u.ID, Email: u.Email, Role: u.Role})
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	u.Password = ""
	return &AuthResult{User: u, Token: token, ExpiresAt: exp}, nil
}
