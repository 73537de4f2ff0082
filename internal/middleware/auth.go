package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"
)

const AuthCookieName = "facecam_session"

// SessionToken derives the cookie value from the password, so changing the
// password logs every browser out.
func SessionToken(password string) string {
	sum := sha256.Sum256([]byte("facecam:" + password))
	return hex.EncodeToString(sum[:])
}

// CheckPassword compares in constant time.
func CheckPassword(expected, given string) bool {
	return subtle.ConstantTimeCompare([]byte(expected), []byte(given)) == 1
}

func isPublic(path string) bool {
	return path == "/login" || path == "/auth/login" || path == "/health"
}

func isAPI(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/") ||
		strings.HasPrefix(r.URL.Path, "/logs/") ||
		r.Header.Get("X-Requested-With") == "XMLHttpRequest" ||
		r.Header.Get("Content-Type") == "application/json"
}

// Auth requires the session cookie when password is set. Page requests are
// redirected to /login; API and websocket requests get 401.
func Auth(password string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if password == "" {
			return next
		}
		token := SessionToken(password)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublic(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			cookie, err := r.Cookie(AuthCookieName)
			if err != nil || subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(token)) != 1 {
				if isAPI(r) {
					http.Error(w, "Unauthorized", http.StatusUnauthorized)
					return
				}
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
