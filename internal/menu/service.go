// Package menu merges the per-role dashboard menu grants into one
// deduplicated navigation list.
package menu

import (
	"context"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/schoolstock/schoolstock-gateway/internal/backend"
	"github.com/schoolstock/schoolstock-gateway/internal/privilege"
)

// Fetcher is the slice of the backend client the service needs.
type Fetcher interface {
	RoleMenus(ctx context.Context, token, roleCode string) ([]backend.MenuEntry, error)
	AllMenus(ctx context.Context, token string) ([]backend.MenuEntry, error)
}

// Service builds the merged menu list for a user.
type Service struct {
	logger     *slog.Logger
	fetcher    Fetcher
	permissive bool
}

// NewService constructs a Service.
func NewService(logger *slog.Logger, fetcher Fetcher, permissive bool) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger, fetcher: fetcher, permissive: permissive}
}

// MenusFor fetches each role's menus concurrently and merges them,
// deduplicating by menu ID. A failed role contributes nothing. An empty
// result stays empty (default-deny) unless the permissive development
// fallback is enabled, in which case the full catalogue is shown.
func (s *Service) MenusFor(ctx context.Context, token string, roles []string) []backend.MenuEntry {
	codes := make([]string, 0, len(roles))
	seen := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		code := privilege.RoleCode(role)
		if _, dup := seen[code]; dup || code == "" {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}

	results := make([][]backend.MenuEntry, len(codes))
	g, gctx := errgroup.WithContext(ctx)
	for i, code := range codes {
		g.Go(func() error {
			menus, err := s.fetcher.RoleMenus(gctx, token, code)
			if err != nil {
				s.logger.Warn("fetch role menus", slog.String("role", code), slog.Any("error", err))
				return nil
			}
			results[i] = menus
			return nil
		})
	}
	_ = g.Wait()

	merged := dedupe(results)
	if len(merged) == 0 && s.permissive {
		s.logger.Warn("permissive fallback: showing full menu catalogue")
		all, err := s.fetcher.AllMenus(ctx, token)
		if err != nil {
			s.logger.Warn("fetch menu catalogue", slog.Any("error", err))
			return []backend.MenuEntry{}
		}
		return sorted(all)
	}
	return merged
}

func dedupe(results [][]backend.MenuEntry) []backend.MenuEntry {
	seen := make(map[int64]struct{})
	merged := make([]backend.MenuEntry, 0)
	for _, menus := range results {
		for _, m := range menus {
			if _, dup := seen[m.ID]; dup {
				continue
			}
			seen[m.ID] = struct{}{}
			merged = append(merged, m)
		}
	}
	return sorted(merged)
}

func sorted(menus []backend.MenuEntry) []backend.MenuEntry {
	sort.SliceStable(menus, func(i, j int) bool {
		if menus[i].Order != menus[j].Order {
			return menus[i].Order < menus[j].Order
		}
		return menus[i].ID < menus[j].ID
	})
	return menus
}
