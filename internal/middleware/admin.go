package middleware

import (
	"crypto/subtle"
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

// AdminBasicAuth guards operator routes with HTTP Basic credentials checked
// against a bcrypt hash. With no hash configured every request is refused.
func AdminBasicAuth(user, passwordHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, p, ok := r.BasicAuth()
			if !ok || passwordHash == "" ||
				subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 ||
				bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(p)) != nil {
				w.Header().Set("WWW-Authenticate", `Basic realm="cracks admin"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// HashPassword returns the bcrypt hash stored in CRACKS_ADMIN_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(b), err
}
