package gate

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/schoolstock/schoolstock-gateway/internal/backend"
	"github.com/schoolstock/schoolstock-gateway/internal/shared"
)

type stubBackend struct {
	verify  func(token string) (*shared.Identity, error)
	refresh func(refreshToken string) (*backend.TokenPair, error)
}

func (s *stubBackend) VerifyToken(_ context.Context, token string) (*shared.Identity, error) {
	return s.verify(token)
}

func (s *stubBackend) Refresh(_ context.Context, refreshToken string) (*backend.TokenPair, error) {
	if s.refresh == nil {
		return nil, shared.ErrRefreshFailed
	}
	return s.refresh(refreshToken)
}

func testGate(t *testing.T, b TokenVerifier, opts func(*Config)) *Gate {
	t.Helper()
	cfg := Config{
		Logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		Backend:         b,
		ExcludePrefixes: []string{"/static"},
		ExcludePaths:    []string{"/healthz"},
	}
	if opts != nil {
		opts(&cfg)
	}
	return New(cfg)
}

func serveGate(g *Gate, r *http.Request) (*httptest.ResponseRecorder, *shared.Identity) {
	var seen *shared.Identity
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = shared.IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	rec := httptest.NewRecorder()
	g.Middleware(next).ServeHTTP(rec, r)
	return rec, seen
}

func TestGateExcludedPathsBypassVerification(t *testing.T) {
	b := &stubBackend{verify: func(string) (*shared.Identity, error) {
		t.Fatal("verify should not be called for excluded paths")
		return nil, nil
	}}
	g := testGate(t, b, nil)

	for _, path := range []string{"/healthz", "/static/app.css", "/login"} {
		rec, _ := serveGate(g, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("path %s: got status %d, want 200", path, rec.Code)
		}
	}
}

func TestGateMissingTokenRedirects(t *testing.T) {
	g := testGate(t, &stubBackend{verify: func(string) (*shared.Identity, error) {
		t.Fatal("verify should not be called without a token")
		return nil, nil
	}}, nil)

	rec, _ := serveGate(g, httptest.NewRequest(http.MethodGet, "/dashboard", nil))

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("got status %d, want %d", rec.Code, http.StatusSeeOther)
	}
	if loc := rec.Header().Get("Location"); loc != "/login" {
		t.Fatalf("got redirect to %q, want /login", loc)
	}
	assertCookiesCleared(t, rec)
}

func TestGateValidTokenAllows(t *testing.T) {
	b := &stubBackend{verify: func(token string) (*shared.Identity, error) {
		if token != "good" {
			t.Fatalf("verify called with token %q", token)
		}
		return &shared.Identity{Email: "keeper@school.edu", Roles: []string{"store keeper"}}, nil
	}}
	g := testGate(t, b, nil)

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: shared.CookieToken, Value: "good"})
	rec, identity := serveGate(g, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rec.Code)
	}
	if identity == nil || identity.Email != "keeper@school.edu" {
		t.Fatalf("identity not propagated: %+v", identity)
	}
	if identity.SuperAdmin {
		t.Fatal("identity should not be super admin")
	}
	if rec.Header().Get(SuperAdminHeader) != "" {
		t.Fatal("super admin header should be absent")
	}
}

func TestGateSuperAdminAllowList(t *testing.T) {
	b := &stubBackend{verify: func(string) (*shared.Identity, error) {
		return &shared.Identity{Email: "head@school.edu"}, nil
	}}
	g := testGate(t, b, func(cfg *Config) {
		cfg.IsSuperAdmin = func(email string) bool { return email == "head@school.edu" }
	})

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: shared.CookieToken, Value: "good"})
	rec, identity := serveGate(g, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rec.Code)
	}
	if identity == nil || !identity.SuperAdmin {
		t.Fatal("identity should be marked super admin")
	}
	if rec.Header().Get(SuperAdminHeader) != "1" {
		t.Fatal("super admin header missing")
	}
}

func TestGateExpiredTokenRefreshes(t *testing.T) {
	verified := map[string]bool{}
	b := &stubBackend{
		verify: func(token string) (*shared.Identity, error) {
			verified[token] = true
			if token == "fresh" {
				return &shared.Identity{Email: "keeper@school.edu"}, nil
			}
			return nil, shared.ErrUnauthorized
		},
		refresh: func(refreshToken string) (*backend.TokenPair, error) {
			if refreshToken != "rt" {
				t.Fatalf("refresh called with %q", refreshToken)
			}
			return &backend.TokenPair{AccessToken: "fresh", RefreshToken: "rt2"}, nil
		},
	}
	g := testGate(t, b, nil)

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: shared.CookieToken, Value: "stale"})
	req.AddCookie(&http.Cookie{Name: shared.CookieRefreshToken, Value: "rt"})
	rec, identity := serveGate(g, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rec.Code)
	}
	if !verified["fresh"] {
		t.Fatal("refreshed token was never re-verified")
	}
	if identity == nil || identity.Email != "keeper@school.edu" {
		t.Fatalf("identity not propagated after refresh: %+v", identity)
	}
	assertCookieSet(t, rec, shared.CookieToken, "fresh")
	assertCookieSet(t, rec, shared.CookieRefreshToken, "rt2")
}

func TestGateExpiredWithoutRefreshTokenRedirects(t *testing.T) {
	b := &stubBackend{verify: func(string) (*shared.Identity, error) {
		return nil, shared.ErrUnauthorized
	}}
	g := testGate(t, b, nil)

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: shared.CookieToken, Value: "stale"})
	rec, _ := serveGate(g, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("got status %d, want %d", rec.Code, http.StatusSeeOther)
	}
	assertCookiesCleared(t, rec)
}

func TestGateRefreshFailureRedirects(t *testing.T) {
	b := &stubBackend{
		verify: func(string) (*shared.Identity, error) {
			return nil, shared.ErrUnauthorized
		},
		refresh: func(string) (*backend.TokenPair, error) {
			return nil, shared.ErrRefreshFailed
		},
	}
	g := testGate(t, b, nil)

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: shared.CookieToken, Value: "stale"})
	req.AddCookie(&http.Cookie{Name: shared.CookieRefreshToken, Value: "rt"})
	rec, _ := serveGate(g, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("got status %d, want %d", rec.Code, http.StatusSeeOther)
	}
	assertCookiesCleared(t, rec)
}

func TestGateInvalidRefreshedTokenRedirects(t *testing.T) {
	b := &stubBackend{
		verify: func(string) (*shared.Identity, error) {
			return nil, shared.ErrUnauthorized
		},
		refresh: func(string) (*backend.TokenPair, error) {
			return &backend.TokenPair{AccessToken: "still-bad", RefreshToken: "rt2"}, nil
		},
	}
	g := testGate(t, b, nil)

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: shared.CookieToken, Value: "stale"})
	req.AddCookie(&http.Cookie{Name: shared.CookieRefreshToken, Value: "rt"})
	rec, _ := serveGate(g, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("got status %d, want %d", rec.Code, http.StatusSeeOther)
	}
}

func assertCookieSet(t *testing.T, rec *httptest.ResponseRecorder, name, value string) {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			if c.Value != value {
				t.Fatalf("cookie %s = %q, want %q", name, c.Value, value)
			}
			if !c.HttpOnly {
				t.Fatalf("cookie %s should be http-only", name)
			}
			return
		}
	}
	t.Fatalf("cookie %s not set", name)
}

func assertCookiesCleared(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	cleared := map[string]bool{}
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 || strings.TrimSpace(c.Value) == "" {
			cleared[c.Name] = true
		}
	}
	for _, name := range []string{shared.CookieToken, shared.CookieRefreshToken} {
		if !cleared[name] {
			t.Fatalf("cookie %s not cleared", name)
		}
	}
}
