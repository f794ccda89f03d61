package main

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// authMiddleware gates requests behind the shared gateway API key. An
// empty key disables auth entirely, which is the default for local use.
// The key is accepted as "Authorization: Bearer <key>" so stock OpenAI
// clients work unchanged.
func authMiddleware(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if key == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if subtle.ConstantTimeCompare([]byte(token), []byte(key)) != 1 {
				writeOpenAIError(w, http.StatusUnauthorized, "Invalid or missing gateway API key", "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
