// Package middleware provides HTTP middleware for the catalog API.
package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

// AuthConfig holds API authentication configuration.
type AuthConfig struct {
	Enabled bool
	APIKeys []string
}

// Auth returns an authentication middleware. Keys are accepted from the
// X-API-Key header or as a Bearer token; comparison is constant time.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Skip auth if disabled
			if !cfg.Enabled {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get("X-API-Key")
			if key == "" {
				parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
				if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
					key = strings.TrimSpace(parts[1])
				}
			}
			if key == "" {
				writeJSONError(w, http.StatusUnauthorized, "missing api key")
				return
			}

			for _, allowed := range cfg.APIKeys {
				if subtle.ConstantTimeCompare([]byte(key), []byte(allowed)) == 1 {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeJSONError(w, http.StatusUnauthorized, "invalid api key")
		})
	}
}

// CORS returns CORS middleware for browser clients.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			allowed := false
			for _, o := range allowedOrigins {
				if o == "*" || o == origin {
					allowed = true
					break
				}
			}

			if allowed {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-API-Key")
				w.Header().Set("Access-Control-Max-Age", "86400")
			}

			// Handle preflight
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
