// Package middleware contains HTTP middleware for the controller.
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"jobcore/internal/auth"
)

// Auth returns middleware that requires a Bearer API key whose SHA-256
// hash matches expectedKeyHash. There is one shared key for the whole
// controller; this replaced the source's per-tenant key model when
// tenancy was dropped from the data model.
func Auth(expectedKeyHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, ok := bearerToken(r)
			if !ok {
				http.Error(w, "missing API key", http.StatusUnauthorized)
				return
			}

			got := auth.HashKey(key)
			if subtle.ConstantTimeCompare([]byte(got), []byte(expectedKeyHash)) != 1 {
				http.Error(w, "invalid API key", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return "", false
	}
	return strings.TrimPrefix(h, prefix), true
}
