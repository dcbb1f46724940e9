package auth

import (
	"net/http"
)

// ExtractUser takes the deploying user from the Basic Auth username without
// checking the password; validation is left to the reverse proxy in front.
func ExtractUser(defaultUser string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}
			user, _, ok := r.BasicAuth()
			if ok && user != "" {
				r.Header.Set(userHeader, user)
			} else {
				r.Header.Set(userHeader, defaultUser)
			}
			next.ServeHTTP(w, r)
		})
	}
}
