// Package auth wires the HTTP endpoints for the login/signup/logout flows.
// Credentials are never checked locally: the upstream API owns identity, the
// gateway only turns its token pair into session cookies.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/schoolstock/schoolstock-gateway/internal/audit"
	"github.com/schoolstock/schoolstock-gateway/internal/backend"
	"github.com/schoolstock/schoolstock-gateway/internal/platform/httpx"
	"github.com/schoolstock/schoolstock-gateway/internal/shared"
)

// Upstream is the slice of the backend client the handler needs.
type Upstream interface {
	Login(ctx context.Context, email, password string) (*backend.LoginResult, error)
	CreateUser(ctx context.Context, user backend.CreateUserRequest) (json.RawMessage, error)
}

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger        *slog.Logger
	upstream      Upstream
	audit         *audit.Service
	secureCookies bool
	validator     *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, upstream Upstream, auditSvc *audit.Service, secureCookies bool) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:        logger,
		upstream:      upstream,
		audit:         auditSvc,
		secureCookies: secureCookies,
		validator:     validator.New(),
	}
}

// MountRoutes registers auth routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleAuth)
	r.Post("/logout", h.handleLogout)
}

type authRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Name     string `json:"name"`
	RoleCode string `json:"role_code"`
	IsSignup bool   `json:"isSignup"`
}

type authResponse struct {
	Success   bool            `json:"success"`
	User      json.RawMessage `json:"user,omitempty"`
	Message   string          `json:"message"`
	IsNewUser bool            `json:"isNewUser"`
}

func (h *Handler) handleAuth(w http.ResponseWriter, r *http.Request) {
	var req authRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	if req.IsSignup {
		if _, err := h.upstream.CreateUser(r.Context(), backend.CreateUserRequest{
			Email:    req.Email,
			Password: req.Password,
			Name:     req.Name,
			RoleCode: req.RoleCode,
		}); err != nil {
			h.logger.Warn("signup failed", slog.String("email", req.Email), slog.Any("error", err))
			h.respondAuthError(w, err)
			return
		}
		h.audit.Record(r.Context(), audit.Event{Kind: audit.KindSignup, Email: req.Email, IP: r.RemoteAddr, UA: r.UserAgent()})
	}

	result, err := h.upstream.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.logger.Info("login failed", slog.String("email", req.Email), slog.Any("error", err))
		h.respondAuthError(w, err)
		return
	}

	shared.SetSessionCookies(w, result.AccessToken, result.RefreshToken, h.secureCookies)
	h.audit.Record(r.Context(), audit.Event{Kind: audit.KindLogin, Email: req.Email, IP: r.RemoteAddr, UA: r.UserAgent()})

	message := "Login successful"
	if req.IsSignup {
		message = "Account created"
	}
	httpx.JSON(w, http.StatusOK, authResponse{
		Success:   true,
		User:      result.User,
		Message:   message,
		IsNewUser: req.IsSignup,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	email := ""
	if id := shared.IdentityFromContext(r.Context()); id != nil {
		email = id.Email
	}
	shared.ClearSessionCookies(w, h.secureCookies)
	h.audit.Record(r.Context(), audit.Event{Kind: audit.KindLogout, Email: email, IP: r.RemoteAddr, UA: r.UserAgent()})
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "message": "Logged out"})
}

func (h *Handler) respondAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrInvalidCredentials):
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid email or password")
	case errors.Is(err, shared.ErrBackendUnavailable):
		httpx.Problem(w, http.StatusBadGateway, "Backend Unavailable", "the inventory service is waking up, try again shortly")
	default:
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
