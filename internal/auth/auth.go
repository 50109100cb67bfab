// Package auth checks bearer tokens against a bcrypt hash.
package auth

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

func HashToken(token string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	return string(b), err
}

func CheckToken(hash, token string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(token))
	return err == nil
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// RequireToken rejects requests without a bearer token matching hash. An
// empty hash disables the check.
func RequireToken(hash string, deny http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if hash == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r)
			if !ok || !CheckToken(hash, token) {
				w.Header().Set("WWW-Authenticate", `Bearer realm="postsched"`)
				deny(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
