package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// userHeader carries the authenticated user from the auth middleware to the
// deploy handlers, which record it in the history.
const userHeader = "X-Deploy-User"

// BasicAuth requires the given credentials on every route except /health.
func BasicAuth(username, password string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}
			user, pass, ok := r.BasicAuth()
			if !ok || subtle.ConstantTimeCompare([]byte(user), []byte(username)) != 1 || subtle.ConstantTimeCompare([]byte(pass), []byte(password)) != 1 {
				w.Header().Set("WWW-Authenticate", `Basic realm="pagesdeploy"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			r.Header.Set(userHeader, strings.TrimSpace(user))
			next.ServeHTTP(w, r)
		})
	}
}

// UserFromRequest returns the user set by BasicAuth or ExtractUser, or "" on
// routes that skip authentication.
func UserFromRequest(r *http.Request) string {
	return r.Header.Get(userHeader)
}
