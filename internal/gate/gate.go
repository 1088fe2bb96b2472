// Package gate implements the session gate: edge middleware that validates
// the access-token cookie against the upstream on every navigational request,
// attempts one refresh exchange on expiry, and redirects everything else to
// the login page with cleared cookies.
package gate

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/schoolstock/schoolstock-gateway/internal/audit"
	"github.com/schoolstock/schoolstock-gateway/internal/backend"
	"github.com/schoolstock/schoolstock-gateway/internal/observability"
	"github.com/schoolstock/schoolstock-gateway/internal/shared"
)

// SuperAdminHeader marks responses for users on the super-admin allow-list.
const SuperAdminHeader = "X-Super-Admin"

// TokenVerifier is the slice of the upstream client the gate needs.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*shared.Identity, error)
	Refresh(ctx context.Context, refreshToken string) (*backend.TokenPair, error)
}

// Config groups the Gate dependencies.
type Config struct {
	Logger        *slog.Logger
	Backend       TokenVerifier
	LoginPath     string
	SecureCookies bool
	// ExcludePrefixes and ExcludePaths form the boundary configuration:
	// requests matching them bypass the gate entirely.
	ExcludePrefixes []string
	ExcludePaths    []string
	IsSuperAdmin    func(email string) bool
	Audit           *audit.Service
	Metrics         *observability.Metrics
}

// Gate is the session gate middleware.
type Gate struct {
	cfg Config
}

// New constructs a Gate.
func New(cfg Config) *Gate {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/login"
	}
	if cfg.IsSuperAdmin == nil {
		cfg.IsSuperAdmin = func(string) bool { return false }
	}
	return &Gate{cfg: cfg}
}

// Middleware returns the chi-compatible middleware.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.excluded(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := r.Cookie(shared.CookieToken)
		if err != nil || token.Value == "" {
			g.redirectToLogin(w, r, "missing token")
			return
		}

		identity, err := g.cfg.Backend.VerifyToken(r.Context(), token.Value)
		switch {
		case err == nil:
			g.allow(w, r, next, identity, "allowed")
		case errors.Is(err, shared.ErrUnauthorized):
			g.tryRefresh(w, r, next)
		default:
			g.cfg.Logger.Warn("token verification failed", slog.Any("error", err))
			g.redirectToLogin(w, r, "verification failure")
		}
	})
}

// tryRefresh handles the expired-but-refreshable path. The refreshed token
// is verified once before the request proceeds; trusting it blindly would
// let one request through on a token the upstream never vetted.
func (g *Gate) tryRefresh(w http.ResponseWriter, r *http.Request, next http.Handler) {
	refresh, err := r.Cookie(shared.CookieRefreshToken)
	if err != nil || refresh.Value == "" {
		g.redirectToLogin(w, r, "expired without refresh token")
		return
	}

	pair, err := g.cfg.Backend.Refresh(r.Context(), refresh.Value)
	if err != nil {
		g.cfg.Logger.Info("refresh exchange failed", slog.Any("error", err))
		g.cfg.Audit.Record(r.Context(), audit.Event{Kind: audit.KindRefreshFailed, IP: r.RemoteAddr, UA: r.UserAgent()})
		g.redirectToLogin(w, r, "refresh failed")
		return
	}

	identity, err := g.cfg.Backend.VerifyToken(r.Context(), pair.AccessToken)
	if err != nil {
		g.cfg.Logger.Warn("refreshed token failed verification", slog.Any("error", err))
		g.redirectToLogin(w, r, "refreshed token invalid")
		return
	}

	shared.SetSessionCookies(w, pair.AccessToken, pair.RefreshToken, g.cfg.SecureCookies)
	g.cfg.Audit.Record(r.Context(), audit.Event{Kind: audit.KindRefresh, Email: identity.Email, IP: r.RemoteAddr, UA: r.UserAgent()})
	g.allow(w, r, next, identity, "refreshed")
}

func (g *Gate) allow(w http.ResponseWriter, r *http.Request, next http.Handler, identity *shared.Identity, outcome string) {
	if g.cfg.IsSuperAdmin(identity.Email) {
		identity.SuperAdmin = true
		w.Header().Set(SuperAdminHeader, "1")
	}
	g.cfg.Metrics.GateOutcome(outcome)
	next.ServeHTTP(w, r.WithContext(shared.ContextWithIdentity(r.Context(), identity)))
}

func (g *Gate) redirectToLogin(w http.ResponseWriter, r *http.Request, reason string) {
	g.cfg.Logger.Debug("session gate redirect",
		slog.String("path", r.URL.Path),
		slog.String("reason", reason))
	g.cfg.Metrics.GateOutcome("redirected")
	shared.ClearSessionCookies(w, g.cfg.SecureCookies)
	http.Redirect(w, r, g.cfg.LoginPath, http.StatusSeeOther)
}

func (g *Gate) excluded(path string) bool {
	if path == g.cfg.LoginPath {
		return true
	}
	for _, p := range g.cfg.ExcludePaths {
		if path == p {
			return true
		}
	}
	for _, prefix := range g.cfg.ExcludePrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
