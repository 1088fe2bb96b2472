// Package backend wraps the external school inventory API: identity
// verification, token refresh, login, user creation, and the per-role
// privilege and menu endpoints.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/schoolstock/schoolstock-gateway/internal/privilege"
	"github.com/schoolstock/schoolstock-gateway/internal/shared"
)

// Endpoints configures the upstream URLs. Empty fields default to well-known
// paths under BaseURL.
type Endpoints struct {
	BaseURL       string
	VerifyURL     string
	RefreshURL    string
	LoginURL      string
	CreateUserURL string
}

func (e Endpoints) verify() string {
	if e.VerifyURL != "" {
		return e.VerifyURL
	}
	return e.BaseURL + "/auth/me"
}

func (e Endpoints) refresh() string {
	if e.RefreshURL != "" {
		return e.RefreshURL
	}
	return e.BaseURL + "/auth/refresh"
}

func (e Endpoints) login() string {
	if e.LoginURL != "" {
		return e.LoginURL
	}
	return e.BaseURL + "/auth/login"
}

func (e Endpoints) createUser() string {
	if e.CreateUserURL != "" {
		return e.CreateUserURL
	}
	return e.BaseURL + "/users"
}

// Client wraps interactions with the upstream API. It performs no retries:
// backend hibernation handling belongs to the proxy.
type Client struct {
	endpoints  Endpoints
	httpClient *http.Client
}

// NewClient constructs a new client. A nil httpClient gets a 30s-timeout
// default.
func NewClient(endpoints Endpoints, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{endpoints: endpoints, httpClient: httpClient}
}

// TokenPair is the upstream access/refresh token pair. RefreshToken is empty
// when the upstream chose not to rotate it.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// LoginResult carries the token pair plus the upstream user document.
type LoginResult struct {
	TokenPair
	User json.RawMessage `json:"user"`
}

// roleName tolerates the upstream's two role encodings: a bare string or an
// object carrying a name/code field.
type roleName string

func (r *roleName) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*r = roleName(s)
		return nil
	}
	var obj struct {
		RoleCode string `json:"role_code"`
		Code     string `json:"code"`
		Name     string `json:"name"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	switch {
	case obj.RoleCode != "":
		*r = roleName(obj.RoleCode)
	case obj.Code != "":
		*r = roleName(obj.Code)
	default:
		*r = roleName(obj.Name)
	}
	return nil
}

type verifyResponse struct {
	User struct {
		Email string     `json:"email"`
		Name  string     `json:"name"`
		Roles []roleName `json:"roles"`
	} `json:"user"`
}

// VerifyToken calls the who-am-I endpoint with the bearer token. A 401
// answer surfaces as shared.ErrUnauthorized.
func (c *Client) VerifyToken(ctx context.Context, token string) (*shared.Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoints.verify(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrBackendUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, shared.ErrUnauthorized
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("verify token: unexpected status %d", resp.StatusCode)
	}

	var payload verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("verify token: decode: %w", err)
	}
	identity := &shared.Identity{
		Email: payload.User.Email,
		Name:  payload.User.Name,
		Roles: make([]string, 0, len(payload.User.Roles)),
	}
	for _, role := range payload.User.Roles {
		identity.Roles = append(identity.Roles, string(role))
	}
	return identity, nil
}

// Refresh exchanges the refresh token for a new pair. Any non-OK answer or
// transport failure surfaces as shared.ErrRefreshFailed: refresh is a
// single-shot operation.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	body, err := json.Marshal(map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoints.refresh(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrRefreshFailed, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", shared.ErrRefreshFailed, resp.StatusCode)
	}
	var pair TokenPair
	if err := json.NewDecoder(resp.Body).Decode(&pair); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", shared.ErrRefreshFailed, err)
	}
	if pair.AccessToken == "" {
		return nil, fmt.Errorf("%w: empty access token", shared.ErrRefreshFailed)
	}
	return &pair, nil
}

// Login authenticates the credentials against the upstream.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoints.login(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrBackendUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusBadRequest:
		return nil, shared.ErrInvalidCredentials
	case resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated:
		return nil, fmt.Errorf("login: unexpected status %d", resp.StatusCode)
	}

	var result LoginResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("login: decode: %w", err)
	}
	if result.AccessToken == "" {
		return nil, fmt.Errorf("login: empty access token")
	}
	return &result, nil
}

// CreateUserRequest is the signup payload forwarded upstream.
type CreateUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
	RoleCode string `json:"role_code,omitempty"`
}

// CreateUser registers a new user upstream and returns the created document.
func (c *Client) CreateUser(ctx context.Context, user CreateUserRequest) (json.RawMessage, error) {
	body, err := json.Marshal(user)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoints.createUser(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrBackendUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("create user: read: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("create user: status %d: %s", resp.StatusCode, raw)
	}
	return raw, nil
}

type rolePrivilegesResponse struct {
	RoleCode   string        `json:"role_code"`
	Privileges privilege.Set `json:"privileges"`
}

// RolePrivileges fetches the raw privilege grants for one role code.
func (c *Client) RolePrivileges(ctx context.Context, token, roleCode string) (privilege.Set, error) {
	url := fmt.Sprintf("%s/roles/%s/privileges", c.endpoints.BaseURL, roleCode)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrBackendUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, shared.ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return nil, shared.ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("role privileges %s: unexpected status %d", roleCode, resp.StatusCode)
	}

	var payload rolePrivilegesResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("role privileges %s: decode: %w", roleCode, err)
	}
	if payload.Privileges == nil {
		return privilege.Set{}, nil
	}
	return payload.Privileges, nil
}

// MenuEntry is one navigable dashboard menu item.
type MenuEntry struct {
	ID      int64  `json:"id"`
	Route   string `json:"route"`
	Caption string `json:"caption"`
	Icon    string `json:"icon,omitempty"`
	Order   int    `json:"order,omitempty"`
}

type roleMenuItem struct {
	Menu MenuEntry `json:"menu"`
}

// RoleMenus fetches the menu entries granted to one role code.
func (c *Client) RoleMenus(ctx context.Context, token, roleCode string) ([]MenuEntry, error) {
	url := fmt.Sprintf("%s/roles/%s/menus", c.endpoints.BaseURL, roleCode)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrBackendUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, shared.ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return nil, shared.ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("role menus %s: unexpected status %d", roleCode, resp.StatusCode)
	}

	var items []roleMenuItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("role menus %s: decode: %w", roleCode, err)
	}
	menus := make([]MenuEntry, 0, len(items))
	for _, item := range items {
		menus = append(menus, item.Menu)
	}
	return menus, nil
}

// AllMenus fetches the complete menu catalogue. Only the permissive
// development fallback uses it.
func (c *Client) AllMenus(ctx context.Context, token string) ([]MenuEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoints.BaseURL+"/menus", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrBackendUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("all menus: unexpected status %d", resp.StatusCode)
	}
	var menus []MenuEntry
	if err := json.NewDecoder(resp.Body).Decode(&menus); err != nil {
		return nil, fmt.Errorf("all menus: decode: %w", err)
	}
	return menus, nil
}
