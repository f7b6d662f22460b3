package middleware

import (
	"net/http"

	"github.com/ayush/livefeed/backend/internal/auth"
)

// Authenticate resolves the Authorization header into an AuthContext and
// stores it in the request context. It never rejects a request; handlers
// decide whether an anonymous caller may proceed.
func Authenticate(gate *auth.Gate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac := gate.Authenticate(r.Header.Get("Authorization"))
			next.ServeHTTP(w, r.WithContext(auth.WithContext(r.Context(), ac)))
		})
	}
}
