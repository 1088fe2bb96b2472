package app

import (
	"net/http"
	"time"

	"log/slog"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/schoolstock/schoolstock-gateway/internal/api"
	"github.com/schoolstock/schoolstock-gateway/internal/auth"
	"github.com/schoolstock/schoolstock-gateway/internal/gate"
	"github.com/schoolstock/schoolstock-gateway/internal/observability"
	"github.com/schoolstock/schoolstock-gateway/internal/platform/httpx"
	"github.com/schoolstock/schoolstock-gateway/internal/proxy"
	"github.com/schoolstock/schoolstock-gateway/internal/shared"
)

// GateExclusions returns the boundary configuration for the session gate:
// the gateway's own endpoints check credentials themselves (or must stay
// reachable without any), so only page navigation runs through the gate.
func GateExclusions() (prefixes, paths []string) {
	prefixes = []string{"/auth", "/api", "/proxy", "/static", "/debug", "/images", "/favicon"}
	paths = []string{"/login", "/healthz", "/metrics"}
	return prefixes, paths
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger      *slog.Logger
	Config      *Config
	Gate        *gate.Gate
	AuthHandler *auth.Handler
	APIHandler  *api.Handler
	Proxy       *proxy.Proxy
	Metrics     *observability.Metrics
}

// NewRouter constructs the chi.Router with gateway defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)
	r.Use(params.Gate.Middleware)

	// Proxied calls run outside the request timeout: their ceiling is the
	// proxy's own retry window.
	r.Handle("/proxy/*", params.Proxy)

	r.Group(func(r chi.Router) {
		r.Use(RequestTimeout(params.Config))

		r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})

		r.Route("/auth", func(r chi.Router) {
			if !InTestMode() {
				r.Use(httprate.Limit(20, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
			}
			params.AuthHandler.MountRoutes(r)
		})

		r.Route("/api", params.APIHandler.MountRoutes)

		if !params.Config.IsProduction() {
			r.Get("/debug/env", debugEnvHandler(params.Config))
		}

		if params.Metrics != nil {
			r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
		}

		// Authenticated landing route; everything reaching it has passed
		// the session gate.
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			identity := shared.IdentityFromContext(r.Context())
			if identity == nil {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "no session")
				return
			}
			httpx.JSON(w, http.StatusOK, identity)
		})
	})

	return r
}

// debugEnvHandler reports whether the super-admin allow-lists are configured
// without echoing their contents. Never mounted in production.
func debugEnvHandler(cfg *Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]any{
			"super_admin_emails_configured":        len(cfg.SuperAdminEmails) > 0,
			"public_super_admin_emails_configured": len(cfg.PublicSuperAdminEmails) > 0,
		})
	}
}
