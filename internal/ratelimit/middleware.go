package ratelimit

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Middleware returns HTTP middleware that rejects requests over the
// limit with 429. The window is used to derive the Retry-After hint.
func Middleware(limiter Limiter, cfg Config) func(http.Handler) http.Handler {
	retryAfter := fmt.Sprintf("%d", int(cfg.Window.Seconds()))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(ClientIP(r)) {
				w.Header().Set("Retry-After", retryAfter)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				fmt.Fprintf(w, `{"error":%q}`, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP extracts the client address for rate limiting, preferring
// proxy headers over the raw remote address.
func ClientIP(r *http.Request) string {
	// X-Forwarded-For may carry a chain; the first entry is the client.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx >= 0 {
			xff = xff[:idx]
		}
		return strings.TrimSpace(xff)
	}

	if rip := r.Header.Get("X-Real-IP"); rip != "" {
		return strings.TrimSpace(rip)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
