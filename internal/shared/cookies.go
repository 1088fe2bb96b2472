package shared

import (
	"net/http"
	"time"
)

// Cookie names for the session token pair.
const (
	CookieToken        = "token"
	CookieRefreshToken = "refresh_token"
)

// Lifetimes mirror the upstream token TTLs.
const (
	TokenMaxAge        = time.Hour
	RefreshTokenMaxAge = 7 * 24 * time.Hour
)

func sessionCookie(name, value string, maxAge time.Duration, secure bool) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	}
	if value == "" {
		c.MaxAge = -1
	} else {
		c.MaxAge = int(maxAge / time.Second)
		c.Expires = time.Now().Add(maxAge)
	}
	return c
}

// SetSessionCookies writes the access/refresh pair. An empty refresh token
// leaves the existing refresh cookie untouched (the upstream does not always
// rotate it).
func SetSessionCookies(w http.ResponseWriter, accessToken, refreshToken string, secure bool) {
	http.SetCookie(w, sessionCookie(CookieToken, accessToken, TokenMaxAge, secure))
	if refreshToken != "" {
		http.SetCookie(w, sessionCookie(CookieRefreshToken, refreshToken, RefreshTokenMaxAge, secure))
	}
}

// ClearSessionCookies expires both session cookies.
func ClearSessionCookies(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, sessionCookie(CookieToken, "", 0, secure))
	http.SetCookie(w, sessionCookie(CookieRefreshToken, "", 0, secure))
}
