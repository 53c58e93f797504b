package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"golang.org/x/sync/singleflight"

	"github.com/vaughan-dsouza/usersapi/internal/apperrors"
	"github.com/vaughan-dsouza/usersapi/internal/auth"
	"github.com/vaughan-dsouza/usersapi/internal/logging"
	"github.com/vaughan-dsouza/usersapi/internal/models"
	"github.com/vaughan-dsouza/usersapi/internal/store"
)

// sharedReadTimeout bounds a deduplicated read once it no longer follows
// the caller that started it.
const sharedReadTimeout = 10 * time.Second

// filterableFields is the allow-list of query parameters List accepts.
var filterableFields = map[string]struct{}{
	"name":  {},
	"email": {},
	"role":  {},
}

// ParseUserFilter maps query parameters onto a UserFilter. Blank values are
// skipped; keys outside the allow-list are a validation failure.
func ParseUserFilter(q url.Values) (store.UserFilter, error) {
	var f store.UserFilter

	var unknown []string
	for key, vals := range q {
		if _, ok := filterableFields[key]; !ok {
			unknown = append(unknown, key)
			continue
		}
		v := ""
		if len(vals) > 0 {
			v = strings.TrimSpace(vals[0])
		}
		if v == "" {
			continue
		}
		switch key {
		case "name":
			f.Name = v
		case "email":
			f.Email = normalizeEmail(v)
		case "role":
			f.Role = models.Role(v)
		}
	}

	if len(unknown) > 0 {
		sort.Strings(unknown)
		fields := make(map[string]string, len(unknown))
		for _, k := range unknown {
			fields[k] = "not a filterable field"
		}
		return f, apperrors.Validation("unsupported filter: "+strings.Join(unknown, ", "), fields)
	}
	if f.Role != "" && !f.Role.Valid() {
		return f, apperrors.Validation("role: must be either 'admin' or 'user'", map[string]string{"role": "must be either 'admin' or 'user'"})
	}
	return f, nil
}

type UpdateInput struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

func (in UpdateInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.NilOrNotEmpty, validation.Length(1, 100)),
		validation.Field(&in.Email, validation.NilOrNotEmpty, validation.Length(3, 100), is.Email),
		validation.Field(&in.Password, validation.NilOrNotEmpty, validation.Length(minPasswordLen, maxPasswordLen)),
	)
}

// UserService implements the user management operations. Identical reads
// that overlap in time share one storage round trip.
type UserService struct {
	users  store.UserRepository
	hasher *auth.Hasher
	logger logging.Logger

	inflight singleflight.Group
}

func NewUserService(users store.UserRepository, hasher *auth.Hasher, logger logging.Logger) *UserService {
	return &UserService{users: users, hasher: hasher, logger: logger}
}

func (s *UserService) List(ctx context.Context, f store.UserFilter) ([]models.User, error) {
	v, err := s.shared(ctx, listKey(f), func(ctx context.Context) (any, error) {
		return s.users.List(ctx, f)
	})
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return v.([]models.User), nil
}

func (s *UserService) Get(ctx context.Context, id int64) (*models.User, error) {
	v, err := s.shared(ctx, fmt.Sprintf("user:%d", id), func(ctx context.Context) (any, error) {
		return s.users.FindByID(ctx, id)
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.NotFound("User not found")
		}
		return nil, apperrors.Internal(err)
	}
	u := *v.(*models.User)
	u.Password = ""
	return &u, nil
}

// listKey quotes each filter value so distinct filters never share a key.
func listKey(f store.UserFilter) string {
	return fmt.Sprintf("list:%q|%q|%q", f.Name, f.Email, string(f.Role))
}

// shared runs fn once for all concurrent callers of key. fn gets a context
// detached from any single caller, so one caller giving up does not fail the
// others; each caller still stops waiting when its own ctx ends.
func (s *UserService) shared(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	ch := s.inflight.DoChan(key, func() (any, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedReadTimeout)
		defer cancel()
		return fn(runCtx)
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// UpdateSelf changes the caller's own name, email or password.
func (s *UserService) UpdateSelf(ctx context.Context, who auth.Identity, in UpdateInput) (*models.User, error) {
	if in.Name == nil && in.Email == nil && in.Password == nil {
		return nil, apperrors.Validation("Please provide at least one field to update (name, email, or password)", nil)
	}
	if in.Email != nil {
		e := normalizeEmail(*in.Email)
		in.Email = &e
	}
	if err := in.Validate(); err != nil {
		return nil, validationFailure(err)
	}

	upd := store.UserUpdate{Name: in.Name, Email: in.Email}
	if in.Password != nil {
		hash, err := s.hasher.Hash(ctx, *in.Password)
		if err != nil {
			return nil, apperrors.Internal(err)
		}
		upd.PasswordHash = &hash
	}

	u, err := s.users.Update(ctx, who.ID, upd)
	switch {
	case errors.Is(err, store.ErrDuplicateEmail):
		return nil, apperrors.Conflict("Email already in use by another user", err)
	case errors.Is(err, store.ErrNotFound):
		return nil, apperrors.NotFound("User not found")
	case err != nil:
		return nil, apperrors.Internal(err)
	}

	s.logger.Info(ctx, "user updated", "user_id", who.ID, "password_changed", upd.PasswordHash != nil)
	return u, nil
}

func (s *UserService) DeleteSelf(ctx context.Context, who auth.Identity) error {
	return s.delete(ctx, who, who.ID)
}

// DeleteByID removes another user's account. Only admins may do this, and
// not against their own id.
func (s *UserService) DeleteByID(ctx context.Context, who auth.Identity, id int64) error {
	if !who.HasRole(models.RoleAdmin) {
		return apperrors.Authorization("forbidden")
	}
	if who.IsSelf(id) {
		return apperrors.Validation("You cannot delete your own account using this endpoint", nil)
	}
	return s.delete(ctx, who, id)
}

// UpdateRole is the explicit administrative role change.
func (s *UserService) UpdateRole(ctx context.Context, who auth.Identity, id int64, role models.Role) (*models.User, error) {
	if !who.HasRole(models.RoleAdmin) {
		return nil, apperrors.Authorization("forbidden")
	}
	if !role.Valid() {
		return nil, apperrors.Validation("role: must be either 'admin' or 'user'", map[string]string{"role": "must be either 'admin' or 'user'"})
	}
	if who.IsSelf(id) {
		return nil, apperrors.Validation("You cannot change your own role", nil)
	}

	u, err := s.users.UpdateRole(ctx, id, role)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.NotFound("User not found")
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	s.logger.Info(ctx, "user role changed", "user_id", id, "role", role, "by", who.ID)
	return u, nil
}

func (s *UserService) delete(ctx context.Context, who auth.Identity, id int64) error {
	ok, err := s.users.Delete(ctx, id)
	if err != nil {
		return apperrors.Internal(err)
	}
	if !ok {
		return apperrors.NotFound("User not found")
	}
	s.logger.Info(ctx, "user deleted", "user_id", id, "by", who.ID)
	return nil
}
