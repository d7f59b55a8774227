package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/catalogsync/api/internal/domain"
	"github.com/catalogsync/api/internal/platform/httpx"
	"github.com/catalogsync/api/internal/platform/requestctx"
)

const defaultHeader = "X-API-Key"

// KeyResolver looks up presented API keys. ok is false when the key is unknown or inactive; err is
// reserved for storage failures.
type KeyResolver interface {
	Authenticate(ctx context.Context, secret string) (key domain.APIKey, ok bool, err error)
	// MarkUsed records the key as used without blocking the caller.
	MarkUsed(ctx context.Context, key domain.APIKey)
}

// FailureObserver is notified with the status of every rejected authentication.
type FailureObserver func(status int)

// Authenticator gates routes behind an API key and its permission matrix.
type Authenticator struct {
	keys     KeyResolver
	header   string
	observer FailureObserver
}

// Option customises Authenticator behaviour.
type Option func(*Authenticator)

// WithHeader overrides the header carrying the key. Lookup is case-insensitive.
func WithHeader(name string) Option {
	return func(a *Authenticator) {
		if name = strings.TrimSpace(name); name != "" {
			a.header = name
		}
	}
}

// WithFailureObserver registers a callback for rejected requests, typically a metrics counter.
func WithFailureObserver(observer FailureObserver) Option {
	return func(a *Authenticator) {
		a.observer = observer
	}
}

// NewAuthenticator constructs the API key gate.
func NewAuthenticator(keys KeyResolver, opts ...Option) *Authenticator {
	a := &Authenticator{keys: keys, header: defaultHeader}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// Require authenticates the request and demands the permission implied by its method on resource:
// GET needs read, every other method needs write.
func (a *Authenticator) Require(resource domain.Resource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			secret := strings.TrimSpace(r.Header.Get(a.header))
			if secret == "" {
				a.reject(ctx, w, httpx.NewError(http.StatusUnauthorized, fmt.Sprintf("Header %s é obrigatório", a.header)))
				return
			}
			if a.keys == nil {
				requestctx.Logger(ctx).Error("api key resolver not configured")
				a.reject(ctx, w, httpx.Internal())
				return
			}

			key, ok, err := a.keys.Authenticate(ctx, secret)
			if err != nil {
				requestctx.Logger(ctx).Error("api key lookup failed", zap.Error(err))
				a.reject(ctx, w, httpx.Internal())
				return
			}
			if !ok || !key.Active {
				a.reject(ctx, w, httpx.NewError(http.StatusUnauthorized, "API key inválida ou inativa"))
				return
			}

			requestctx.SetCaller(ctx, key.ID, key.OwnerUserID)

			action := domain.ActionForMethod(r.Method)
			if !key.Permissions.Allows(resource, action) {
				a.reject(ctx, w, httpx.NewError(http.StatusForbidden, "Permissão negada: requer "+domain.PermissionName(resource, action)))
				return
			}

			a.keys.MarkUsed(ctx, key)

			ctx = WithIdentity(ctx, &Identity{
				APIKeyID:    key.ID,
				KeyName:     key.Name,
				OwnerUserID: key.OwnerUserID,
				Permissions: key.Permissions,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (a *Authenticator) reject(ctx context.Context, w http.ResponseWriter, err httpx.Error) {
	if a.observer != nil {
		a.observer(err.Status)
	}
	httpx.WriteError(ctx, w, err)
}
