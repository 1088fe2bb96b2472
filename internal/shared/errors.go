package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized indicates a missing, invalid or expired credential.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrBackendUnavailable indicates the upstream API could not be reached
	// or answered with a hibernation status (502/503).
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrRefreshFailed indicates the refresh-token exchange was rejected.
	ErrRefreshFailed = errors.New("token refresh failed")
)
