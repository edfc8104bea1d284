package httpsrv

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/webitel/webhooks-service/internal/domain/model"
	"github.com/webitel/webhooks-service/internal/service"
)

type contextKey string

const (
	// AuthContextKey is the key used to store/retrieve AuthScope from context
	AuthContextKey contextKey = "auth_scope"
)

// NewAuthMiddleware resolves the caller's wallet scope before any delivery handler runs.
// A rejected caller continues without a scope: SSE and long-poll answer 403 themselves,
// while WebSocket must accept the upgrade before it may close with 1008.
func NewAuthMiddleware(auther service.Auther, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// [PRE_AUTH] Validate identity before the stream opens
			scope, err := auther.Inspect(r)
			if err != nil {
				logger.Debug("AUTH_REJECTED", "path", r.URL.Path, "err", err)
				next.ServeHTTP(w, r)
				return
			}

			// [ENRICHMENT] Inject the identity into the context for downstream handlers
			next.ServeHTTP(w, r.WithContext(WithAuthScope(r.Context(), scope)))
		})
	}
}

func WithAuthScope(ctx context.Context, scope *model.AuthScope) context.Context {
	return context.WithValue(ctx, AuthContextKey, scope)
}

// GetAuthScope is a helper to extract the identity from context safely.
func GetAuthScope(ctx context.Context) (*model.AuthScope, bool) {
	scope, ok := ctx.Value(AuthContextKey).(*model.AuthScope)
	return scope, ok && scope != nil
}

// Authorized reports whether the caller of r may read walletID.
func Authorized(r *http.Request, walletID string) bool {
	scope, ok := GetAuthScope(r.Context())
	return ok && scope.CanAccess(walletID)
}

// IsAdmin reports whether the caller of r holds the administrative scope.
func IsAdmin(r *http.Request) bool {
	scope, ok := GetAuthScope(r.Context())
	return ok && scope.Admin
}
