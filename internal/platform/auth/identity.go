package auth

import (
	"context"

	"github.com/catalogsync/api/internal/domain"
)

// Identity is the authenticated caller behind an API key.
type Identity struct {
	APIKeyID    string
	KeyName     string
	OwnerUserID string
	Permissions domain.PermissionMatrix
}

// Can reports whether the caller holds action on resource.
func (i *Identity) Can(resource domain.Resource, action domain.Action) bool {
	if i == nil {
		return false
	}
	return i.Permissions.Allows(resource, action)
}

type contextKey string

const identityContextKey contextKey = "github.com/catalogsync/api/internal/platform/auth/identity"

// WithIdentity stores the identity within the context for downstream handlers.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// IdentityFromContext retrieves the identity previously stored in context.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(*Identity)
	if !ok || identity == nil {
		return nil, false
	}
	return identity, true
}
