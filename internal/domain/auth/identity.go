package auth

import (
	"context"

	"github.com/xenking/luxe-store/internal/domain/apperr"
)

var (
	// ErrUnauthenticated is returned when no identity is attached to the request.
	ErrUnauthenticated = apperr.Unauthenticated("access token required")
	// ErrInvalidToken is returned when a credential fails verification.
	ErrInvalidToken = apperr.Unauthenticated("invalid or expired token")
	// ErrAdminRequired is returned when a non-admin calls an admin-only operation.
	ErrAdminRequired = apperr.Forbidden("admin access required")
)

// Identity is the capability resolved for a request by the Gateway.
type Identity struct {
	UserID  string
	Email   string
	IsAdmin bool
}

// Gateway resolves a bearer credential into an Identity. Implementations never
// expose the credential itself to the domain.
type Gateway interface {
	Resolve(ctx context.Context, token string) (Identity, error)
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the identity attached to ctx, if any.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	if !ok || id.UserID == "" {
		return Identity{}, false
	}
	return id, true
}

// RequireUser returns the caller identity or ErrUnauthenticated.
func RequireUser(ctx context.Context) (Identity, error) {
	id, ok := FromContext(ctx)
	if !ok {
		return Identity{}, ErrUnauthenticated
	}
	return id, nil
}

// RequireAdmin is the single authorization gate for admin-only operations.
func RequireAdmin(ctx context.Context) (Identity, error) {
	id, err := RequireUser(ctx)
	if err != nil {
		return Identity{}, err
	}
	if !id.IsAdmin {
		return Identity{}, ErrAdminRequired
	}
	return id, nil
}
