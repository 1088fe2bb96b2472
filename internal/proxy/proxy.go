// Package proxy forwards dashboard API calls to the upstream backend,
// injecting the session bearer token and riding out backend hibernation
// (cold-start 502/503 answers) with exponential backoff.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/schoolstock/schoolstock-gateway/internal/observability"
	"github.com/schoolstock/schoolstock-gateway/internal/platform/httpx"
	"github.com/schoolstock/schoolstock-gateway/internal/shared"
)

// Config groups the Proxy dependencies.
type Config struct {
	Logger     *slog.Logger
	BaseURL    string
	HTTPClient *http.Client
	Metrics    *observability.Metrics

	// Retry schedule for hibernation answers and transport failures.
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsed      time.Duration
}

// Proxy is the authenticated request forwarder.
type Proxy struct {
	cfg Config
}

// New constructs a Proxy with the production defaults: 8 attempts, 2s
// initial backoff doubling to a 32s cap, under a 1 hour wall-clock ceiling.
func New(cfg Config) *Proxy {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.HTTPClient == nil {
		// No per-attempt timeout: the wall-clock ceiling governs.
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 8
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 2 * time.Second
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = 32 * time.Second
	}
	if cfg.MaxElapsed <= 0 {
		cfg.MaxElapsed = time.Hour
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Proxy{cfg: cfg}
}

// strippedHeaders are hop-specific and never forwarded.
var strippedHeaders = map[string]struct{}{
	"Host":           {},
	"Content-Length": {},
	"Origin":         {},
	"Connection":     {},
}

type upstreamResponse struct {
	status int
	header http.Header
	body   []byte
}

// ServeHTTP forwards the request to the backend. Unauthenticated requests
// are rejected outright; they never reach the upstream.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token, err := r.Cookie(shared.CookieToken)
	if err != nil || token.Value == "" {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing access token")
		return
	}

	target := p.cfg.BaseURL + "/" + chi.URLParam(r, "*")
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	var body []byte
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		body, err = io.ReadAll(r.Body)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "unreadable request body")
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), p.cfg.MaxElapsed)
	defer cancel()

	requestID := uuid.NewString()
	resp, err := p.forward(ctx, r, target, token.Value, body, requestID)
	if err != nil {
		p.cfg.Logger.Error("proxy exhausted retries",
			slog.String("target", target),
			slog.String("request_id", requestID),
			slog.Any("error", err))
		if errors.Is(err, context.DeadlineExceeded) {
			httpx.Problem(w, http.StatusGatewayTimeout, "Backend Timeout", "backend did not recover within the retry window")
			return
		}
		httpx.Problem(w, http.StatusBadGateway, "Backend Unavailable", err.Error())
		return
	}

	p.writeResponse(w, r, resp)
}

// forward runs the retry loop. Hibernation statuses (502/503) and transport
// errors retry on the backoff schedule; everything else returns immediately.
// When retries run out on a hibernation status, the final upstream response
// is handed back verbatim.
func (p *Proxy) forward(ctx context.Context, r *http.Request, target, token string, body []byte, requestID string) (*upstreamResponse, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.cfg.InitialInterval
	bo.RandomizationFactor = 0
	bo.Multiplier = 2
	bo.MaxInterval = p.cfg.MaxInterval
	bo.MaxElapsedTime = p.cfg.MaxElapsed

	var last *upstreamResponse
	attempt := 0

	operation := func() error {
		attempt++
		resp, err := p.attempt(ctx, r, target, token, body, requestID)
		if err != nil {
			p.cfg.Metrics.ProxyRetry()
			p.cfg.Logger.Warn("proxy attempt failed",
				slog.String("target", target),
				slog.Int("attempt", attempt),
				slog.Any("error", err))
			return err
		}
		if resp.status == http.StatusBadGateway || resp.status == http.StatusServiceUnavailable {
			last = resp
			p.cfg.Metrics.ProxyRetry()
			p.cfg.Logger.Info("backend hibernating, will retry",
				slog.String("target", target),
				slog.Int("attempt", attempt),
				slog.Int("status", resp.status))
			return fmt.Errorf("%w: status %d", shared.ErrBackendUnavailable, resp.status)
		}
		last = resp
		return nil
	}

	err := backoff.Retry(operation,
		backoff.WithMaxRetries(backoff.WithContext(bo, ctx), uint64(p.cfg.MaxAttempts-1)))
	if err != nil {
		// The wall-clock ceiling trumps everything, including a final
		// hibernation response that could otherwise be passed through.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, shared.ErrBackendUnavailable) && last != nil {
			// Retries exhausted: the caller sees the backend's final answer.
			return last, nil
		}
		return nil, err
	}
	return last, nil
}

func (p *Proxy) attempt(ctx context.Context, r *http.Request, target, token string, body []byte, requestID string) (*upstreamResponse, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, r.Method, target, reader)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	for name, values := range r.Header {
		if _, strip := strippedHeaders[http.CanonicalHeaderKey(name)]; strip {
			continue
		}
		req.Header[http.CanonicalHeaderKey(name)] = values
	}
	// Always the session's token, never a client-supplied header.
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Request-Id", requestID)

	resp, err := p.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	// Read exactly once; retries and the final write both work off this copy.
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &upstreamResponse{status: resp.StatusCode, header: resp.Header, body: data}, nil
}

func (p *Proxy) writeResponse(w http.ResponseWriter, r *http.Request, resp *upstreamResponse) {
	if r.Method == http.MethodDelete && resp.status == http.StatusNoContent {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	for name, values := range resp.header {
		switch name {
		case "Connection", "Transfer-Encoding", "Content-Length", "Keep-Alive":
			continue
		}
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}
	if len(resp.body) > 0 && json.Valid(resp.body) {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(resp.status)
	_, _ = w.Write(resp.body)
}
