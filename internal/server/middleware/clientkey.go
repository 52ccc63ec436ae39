package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
)

type clientKeyContextKey string

const ClientKeyContextKey clientKeyContextKey = "client_key"

// ClientKey derives the rate-limit bucket key for a request: the first
// X-Forwarded-For address, then X-Real-IP, then the remote host.
func ClientKey(r *http.Request) string {
	if r == nil {
		return "unknown"
	}
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	if addr := strings.TrimSpace(r.RemoteAddr); addr != "" {
		if host, _, err := net.SplitHostPort(addr); err == nil && host != "" {
			return host
		}
		return addr
	}
	return "unknown"
}

// ClientKeyMiddleware resolves the client key once and stores it on the context.
func ClientKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), ClientKeyContextKey, ClientKey(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetClientKey returns the key stored by ClientKeyMiddleware, or "unknown".
func GetClientKey(ctx context.Context) string {
	if key, ok := ctx.Value(ClientKeyContextKey).(string); ok && key != "" {
		return key
	}
	return "unknown"
}
