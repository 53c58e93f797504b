package auth

import (
	"context"

	"github.com/vaughan-dsouza/usersapi/internal/models"
)

// Identity is what a verified token says about its bearer. It is attached to
// the request context by the access guard and is never re-read from storage.
type Identity struct {
	ID    int64       `json:"id"`
	Email string      `json:"email"`
	Role  models.Role `json:"role"`
}

func (i Identity) HasRole(role models.Role) bool {
	return i.Role == role
}

// IsSelf reports whether the target resource belongs to the identity.
func (i Identity) IsSelf(id int64) bool {
	return i.ID == id
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

type claimsKey struct{}

// WithClaims stores the full verified claims, which logout needs for the
// token id and expiry.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	ctx = context.WithValue(ctx, claimsKey{}, c)
	return WithIdentity(ctx, c.Identity())
}

func ClaimsFrom(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*Claims)
	return c, ok
}
