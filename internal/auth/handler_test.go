package auth

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/schoolstock/schoolstock-gateway/internal/audit"
	"github.com/schoolstock/schoolstock-gateway/internal/backend"
	"github.com/schoolstock/schoolstock-gateway/internal/shared"
)

type stubUpstream struct {
	login      func(email, password string) (*backend.LoginResult, error)
	createUser func(user backend.CreateUserRequest) (json.RawMessage, error)
	created    []backend.CreateUserRequest
}

func (s *stubUpstream) Login(_ context.Context, email, password string) (*backend.LoginResult, error) {
	return s.login(email, password)
}

func (s *stubUpstream) CreateUser(_ context.Context, user backend.CreateUserRequest) (json.RawMessage, error) {
	s.created = append(s.created, user)
	if s.createUser == nil {
		return json.RawMessage(`{}`), nil
	}
	return s.createUser(user)
}

func newTestHandler(upstream Upstream) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(logger, upstream, audit.NewService(logger, nil), false)
	r := chi.NewRouter()
	r.Route("/auth", func(r chi.Router) { h.MountRoutes(r) })
	return r
}

func postAuth(h http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/auth", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestLoginSetsSessionCookies(t *testing.T) {
	upstream := &stubUpstream{login: func(email, password string) (*backend.LoginResult, error) {
		if email != "keeper@school.edu" || password != "secret1" {
			t.Fatalf("unexpected credentials %s/%s", email, password)
		}
		return &backend.LoginResult{
			TokenPair: backend.TokenPair{AccessToken: "at", RefreshToken: "rt"},
			User:      json.RawMessage(`{"email":"keeper@school.edu"}`),
		}, nil
	}}
	h := newTestHandler(upstream)

	rec := postAuth(h, `{"email":"keeper@school.edu","password":"secret1"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200: %s", rec.Code, rec.Body.String())
	}
	cookies := map[string]string{}
	for _, c := range rec.Result().Cookies() {
		cookies[c.Name] = c.Value
	}
	if cookies[shared.CookieToken] != "at" || cookies[shared.CookieRefreshToken] != "rt" {
		t.Fatalf("session cookies not set: %v", cookies)
	}

	var resp struct {
		Success   bool   `json:"success"`
		Message   string `json:"message"`
		IsNewUser bool   `json:"isNewUser"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success || resp.IsNewUser {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestSignupCreatesUserThenLogsIn(t *testing.T) {
	upstream := &stubUpstream{login: func(email, password string) (*backend.LoginResult, error) {
		return &backend.LoginResult{TokenPair: backend.TokenPair{AccessToken: "at"}}, nil
	}}
	h := newTestHandler(upstream)

	rec := postAuth(h, `{"email":"new@school.edu","password":"secret1","name":"New Keeper","role_code":"STORE_KEEPER","isSignup":true}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if len(upstream.created) != 1 {
		t.Fatalf("expected one create-user call, got %d", len(upstream.created))
	}
	if got := upstream.created[0]; got.Email != "new@school.edu" || got.RoleCode != "STORE_KEEPER" {
		t.Fatalf("unexpected create-user payload %+v", got)
	}

	var resp struct {
		IsNewUser bool `json:"isNewUser"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if !resp.IsNewUser {
		t.Fatal("isNewUser flag not set")
	}
}

func TestAuthValidation(t *testing.T) {
	upstream := &stubUpstream{login: func(string, string) (*backend.LoginResult, error) {
		t.Fatal("login should not be reached")
		return nil, nil
	}}
	h := newTestHandler(upstream)

	for name, body := range map[string]string{
		"bad json":       `{`,
		"missing email":  `{"password":"secret1"}`,
		"invalid email":  `{"email":"not-an-email","password":"secret1"}`,
		"short password": `{"email":"keeper@school.edu","password":"123"}`,
	} {
		rec := postAuth(h, body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: got status %d, want 400", name, rec.Code)
		}
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	upstream := &stubUpstream{login: func(string, string) (*backend.LoginResult, error) {
		return nil, shared.ErrInvalidCredentials
	}}
	h := newTestHandler(upstream)

	rec := postAuth(h, `{"email":"keeper@school.edu","password":"wrong-1"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("got status %d, want 401", rec.Code)
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == shared.CookieToken && c.Value != "" {
			t.Fatal("session cookie set on failed login")
		}
	}
}

func TestLoginBackendUnavailable(t *testing.T) {
	upstream := &stubUpstream{login: func(string, string) (*backend.LoginResult, error) {
		return nil, shared.ErrBackendUnavailable
	}}
	h := newTestHandler(upstream)

	rec := postAuth(h, `{"email":"keeper@school.edu","password":"secret1"}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("got status %d, want 502", rec.Code)
	}
}

func TestLogoutClearsCookies(t *testing.T) {
	h := newTestHandler(&stubUpstream{})

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: shared.CookieToken, Value: "at"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rec.Code)
	}
	cleared := map[string]bool{}
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 || c.Value == "" {
			cleared[c.Name] = true
		}
	}
	if !cleared[shared.CookieToken] || !cleared[shared.CookieRefreshToken] {
		t.Fatalf("cookies not cleared: %v", cleared)
	}
}
