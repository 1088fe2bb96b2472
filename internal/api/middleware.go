// Package api exposes the gateway's own JSON endpoints: the consolidated
// privilege set, per-query authorization decisions, and the merged menu
// list. These routes sit outside the session gate and verify the token
// cookie themselves, answering 401 JSON instead of redirecting.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/schoolstock/schoolstock-gateway/internal/platform/httpx"
	"github.com/schoolstock/schoolstock-gateway/internal/shared"
)

// Verifier validates an access token against the upstream.
type Verifier interface {
	VerifyToken(ctx context.Context, token string) (*shared.Identity, error)
}

type tokenContextKey struct{}

// TokenFromContext returns the verified access token for the request.
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenContextKey{}).(string)
	return token
}

// RequireSession verifies the access-token cookie and stores the identity
// and raw token in the request context.
func RequireSession(logger *slog.Logger, verifier Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(shared.CookieToken)
			if err != nil || cookie.Value == "" {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing access token")
				return
			}
			identity, err := verifier.VerifyToken(r.Context(), cookie.Value)
			if err != nil {
				if !errors.Is(err, shared.ErrUnauthorized) {
					logger.Warn("api token verification", slog.Any("error", err))
				}
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid or expired token")
				return
			}
			ctx := shared.ContextWithIdentity(r.Context(), identity)
			ctx = context.WithValue(ctx, tokenContextKey{}, cookie.Value)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
