package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
)

// UserIDHeader carries the authenticated end-user id set by the gateway.
const UserIDHeader = "X-User-ID"

type callerKey struct{}

// CallerID returns the caller identity attached by Auth, or "".
func CallerID(ctx context.Context) string {
	id, _ := ctx.Value(callerKey{}).(string)
	return id
}

// WithCallerID attaches a caller identity to ctx.
func WithCallerID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, callerKey{}, id)
}

// Auth checks the service API key, sent as a Bearer token or X-API-Key, and
// attaches the X-User-ID identity to the request context. The header is only
// trusted behind the key: with an empty apiKey no identity is attached, so
// admin-only routes answer unauthenticated. Paths in public skip the key
// check.
func Auth(apiKey string, public ...string) func(http.Handler) http.Handler {
	open := make(map[string]bool, len(public))
	for _, p := range public {
		open[p] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey != "" && !open[r.URL.Path] && r.Method != http.MethodOptions {
				token := extractToken(r)
				if token == "" {
					writeUnauthorized(w, "missing authentication token")
					return
				}
				if subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
					writeUnauthorized(w, "invalid authentication token")
					return
				}
			}
			if id := strings.TrimSpace(r.Header.Get(UserIDHeader)); id != "" && apiKey != "" {
				r = r.WithContext(WithCallerID(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// extractToken reads a Bearer token or the X-API-Key header.
func extractToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	if key := r.Header.Get("X-API-Key"); key != "" {
		return strings.TrimSpace(key)
	}
	return ""
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	writeFailure(w, http.StatusUnauthorized, "unauthenticated", msg)
}

// writeFailure writes the {success:false, message, code} body shared with
// the handlers.
func writeFailure(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"success":false,"message":"` + msg + `","code":"` + code + `"}`))
}
