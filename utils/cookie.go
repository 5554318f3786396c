package utils

import (
	"net/http"
	"time"
)

const (
	SessionCookie   = "jwt"
	LoggedOutMarker = "loggedout"
)

// SetSessionCookie stores token in an HTTP-only cookie.
func SetSessionCookie(w http.ResponseWriter, token string, expires time.Time, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie overwrites the session with a short-lived marker.
func ClearSessionCookie(w http.ResponseWriter, now time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    LoggedOutMarker,
		Path:     "/",
		Expires:  now.Add(10 * time.Second),
		HttpOnly: true,
	})
}

// IsSecureRequest reports whether the request arrived over TLS, directly or
// through a proxy.
func IsSecureRequest(r *http.Request) bool {
	return r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https"
}
