package privilege

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/schoolstock/schoolstock-gateway/internal/observability"
)

// Fetcher loads one role's raw privilege grants from the upstream API.
type Fetcher interface {
	RolePrivileges(ctx context.Context, token, roleCode string) (Set, error)
}

// ServiceConfig groups the Service dependencies.
type ServiceConfig struct {
	Logger           *slog.Logger
	Fetcher          Fetcher
	Cache            *redis.Client // optional
	CacheTTL         time.Duration
	SuperAdminEmails []string
	Permissive       bool
	Metrics          *observability.Metrics
}

// Service builds and caches consolidated privilege sets and answers
// authorization queries against them.
type Service struct {
	logger      *slog.Logger
	fetcher     Fetcher
	cache       *redis.Client
	cacheTTL    time.Duration
	superEmails map[string]struct{}
	permissive  bool
	metrics     *observability.Metrics
	group       singleflight.Group
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) *Service {
	emails := make(map[string]struct{}, len(cfg.SuperAdminEmails))
	for _, e := range cfg.SuperAdminEmails {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			emails[e] = struct{}{}
		}
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		logger:      logger,
		fetcher:     cfg.Fetcher,
		cache:       cfg.Cache,
		cacheTTL:    ttl,
		superEmails: emails,
		permissive:  cfg.Permissive,
		metrics:     cfg.Metrics,
	}
}

// IsSuperAdminEmail reports whether the email is on the configured
// allow-list, case-insensitively.
func (s *Service) IsSuperAdminEmail(email string) bool {
	_, ok := s.superEmails[strings.ToLower(strings.TrimSpace(email))]
	return ok
}

// Permissive reports whether the development fail-open fallback is enabled.
func (s *Service) Permissive() bool {
	return s.permissive
}

// SetFor returns the consolidated privilege set for a verified user. Super
// admins (by email allow-list or by role code) receive the wildcard set
// without touching the upstream. Per-role fetch failures contribute an empty
// map instead of failing the merge.
func (s *Service) SetFor(ctx context.Context, token, email string, roles []string) (Set, error) {
	if s.IsSuperAdminEmail(email) {
		s.logger.Debug("wildcard privileges by email allow-list", slog.String("email", email))
		return WildcardSet(), nil
	}
	codes := make([]string, 0, len(roles))
	seen := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		code := RoleCode(role)
		if code == "" {
			continue
		}
		if IsSuperAdminRole(code) {
			s.logger.Debug("wildcard privileges by role", slog.String("role", code))
			return WildcardSet(), nil
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	if len(codes) == 0 {
		return Set{}, nil
	}

	key := cacheKey(token)
	if cached, ok := s.fromCache(ctx, key); ok {
		return cached, nil
	}

	merged, err, _ := s.group.Do(key, func() (any, error) {
		return s.build(ctx, token, codes, key), nil
	})
	if err != nil {
		return nil, err
	}
	return merged.(Set), nil
}

func (s *Service) build(ctx context.Context, token string, codes []string, key string) Set {
	results := make([]Set, len(codes))
	g, gctx := errgroup.WithContext(ctx)
	for i, code := range codes {
		g.Go(func() error {
			set, err := s.fetcher.RolePrivileges(gctx, token, code)
			if err != nil {
				// Partial availability beats total lockout: a failed role
				// contributes nothing.
				s.logger.Warn("fetch role privileges", slog.String("role", code), slog.Any("error", err))
				results[i] = Set{}
				return nil
			}
			results[i] = set
			return nil
		})
	}
	_ = g.Wait()

	merged := Merge(results...)
	s.toCache(ctx, key, merged)
	return merged
}

// Can answers one module/action query, applying the permissive development
// fallback when the module has no privilege data at all.
func (s *Service) Can(set Set, moduleLabel, action string) bool {
	allowed := CanPerformAction(set, moduleLabel, action)
	if !allowed && s.permissive && !HasModule(set, moduleLabel) {
		s.logger.Warn("permissive fallback granted access",
			slog.String("module", moduleLabel),
			slog.String("action", action))
		allowed = true
	}
	s.metrics.AuthzDecision(action, allowed)
	s.logger.Debug("authorization decision",
		slog.String("module", moduleLabel),
		slog.String("resource", ResourceKey(moduleLabel)),
		slog.String("action", action),
		slog.Bool("allowed", allowed))
	return allowed
}

func cacheKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "privileges:" + hex.EncodeToString(sum[:])
}

func (s *Service) fromCache(ctx context.Context, key string) (Set, bool) {
	if s.cache == nil {
		return nil, false
	}
	data, err := s.cache.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var set Set
	if err := json.Unmarshal(data, &set); err != nil {
		s.logger.Warn("decode cached privileges", slog.Any("error", err))
		return nil, false
	}
	return set, true
}

func (s *Service) toCache(ctx context.Context, key string, set Set) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(set)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, data, s.cacheTTL).Err(); err != nil {
		s.logger.Warn("cache privileges", slog.Any("error", err))
	}
}
