// Package audit records authentication lifecycle events (login, signup,
// logout, token refresh) for later review. Recording is best-effort and
// never fails the request that triggered it.
package audit

import (
	"context"
	"log/slog"
	"time"
)

// Event kinds.
const (
	KindLogin         = "login"
	KindSignup        = "signup"
	KindLogout        = "logout"
	KindRefresh       = "refresh"
	KindRefreshFailed = "refresh_failed"
)

// Event is one recorded authentication event.
type Event struct {
	Kind   string
	Email  string
	Detail string
	IP     string
	UA     string
	At     time.Time
}

// Repository defines persistence for audit events.
type Repository interface {
	Insert(ctx context.Context, e Event) error
}

// Service wraps a Repository with nil-safety and logging. With no repository
// configured the events still surface as log lines.
type Service struct {
	logger *slog.Logger
	repo   Repository
}

// NewService constructs a Service. repo may be nil.
func NewService(logger *slog.Logger, repo Repository) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger, repo: repo}
}

// Record stores the event. Failures are logged, not returned.
func (s *Service) Record(ctx context.Context, e Event) {
	if s == nil {
		return
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	s.logger.Info("auth event",
		slog.String("kind", e.Kind),
		slog.String("email", e.Email),
		slog.String("detail", e.Detail))
	if s.repo == nil {
		return
	}
	if err := s.repo.Insert(ctx, e); err != nil {
		s.logger.Warn("persist auth event", slog.String("kind", e.Kind), slog.Any("error", err))
	}
}
