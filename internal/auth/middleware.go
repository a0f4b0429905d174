package auth

import (
	"net/http"
	"strings"
)

// SessionCookieName holds the browser session; its value is the API token.
const SessionCookieName = "awg_session"

// Middleware is a chi-compatible HTTP middleware that enforces authentication.
//
// Public paths that bypass auth:
//   - POST /login
//   - POST /logout
//   - GET  /version
//
// Unauthenticated requests receive a 401 JSON response.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicPath(r.URL.Path) || m.Authenticated(r) {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("WWW-Authenticate", `Bearer realm="amneziawg"`)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
	})
}

// Authenticated checks the request for a valid Bearer token or session cookie.
func (m *Manager) Authenticated(r *http.Request) bool {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return m.ValidateToken(strings.TrimPrefix(header, "Bearer "))
	}
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		return m.ValidateToken(cookie.Value)
	}
	return false
}

// SetSessionCookie starts a browser session for token.
func SetSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   30 * 24 * 60 * 60,
	})
}

// ClearSessionCookie ends the browser session.
func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

func isPublicPath(path string) bool {
	return path == "/login" ||
		path == "/logout" ||
		path == "/version"
}
