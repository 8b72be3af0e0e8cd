package auth

import (
	"context"

	"lexpertease/internal/model"
)

type identityKey struct{}

// Identity is the verified caller attached to a request.
type Identity struct {
	User   *model.User
	Token  string
	Claims *Claims
}

// IsAdmin reports whether the identity holds the admin role.
func (i *Identity) IsAdmin() bool {
	return i != nil && i.User != nil && i.User.Role == model.RoleAdmin
}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity on ctx, if any.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(*Identity)
	if !ok || id == nil || id.User == nil {
		return nil, false
	}
	return id, true
}
