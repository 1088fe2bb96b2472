package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/schoolstock/schoolstock-gateway/internal/menu"
	"github.com/schoolstock/schoolstock-gateway/internal/platform/httpx"
	"github.com/schoolstock/schoolstock-gateway/internal/privilege"
	"github.com/schoolstock/schoolstock-gateway/internal/shared"
)

// Handler serves the privilege and menu endpoints.
type Handler struct {
	logger     *slog.Logger
	verifier   Verifier
	privileges *privilege.Service
	menus      *menu.Service
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, verifier Verifier, privileges *privilege.Service, menus *menu.Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, verifier: verifier, privileges: privileges, menus: menus}
}

// MountRoutes registers the API routes behind the session check.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(RequireSession(h.logger, h.verifier))
		r.Get("/privileges", h.listPrivileges)
		r.Get("/privileges/check", h.checkPrivilege)
		r.Get("/menus", h.listMenus)
	})
}

func (h *Handler) listPrivileges(w http.ResponseWriter, r *http.Request) {
	identity := shared.IdentityFromContext(r.Context())
	set, err := h.privileges.SetFor(r.Context(), TokenFromContext(r.Context()), identity.Email, identity.Roles)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"privileges":  set,
		"super_admin": set.HasWildcard(),
	})
}

func (h *Handler) checkPrivilege(w http.ResponseWriter, r *http.Request) {
	module := r.URL.Query().Get("module")
	action := r.URL.Query().Get("action")
	if module == "" || action == "" {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "module and action query parameters are required")
		return
	}
	identity := shared.IdentityFromContext(r.Context())
	set, err := h.privileges.SetFor(r.Context(), TokenFromContext(r.Context()), identity.Email, identity.Roles)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"module":  module,
		"action":  action,
		"allowed": h.privileges.Can(set, module, action),
	})
}

func (h *Handler) listMenus(w http.ResponseWriter, r *http.Request) {
	identity := shared.IdentityFromContext(r.Context())
	menus := h.menus.MenusFor(r.Context(), TokenFromContext(r.Context()), identity.Roles)
	httpx.JSON(w, http.StatusOK, map[string]any{"menus": menus})
}
