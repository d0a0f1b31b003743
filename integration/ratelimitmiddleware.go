package integration

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// RateLimitMiddleware adapts a Limiter into a func(http.Handler)
// http.Handler gateway any embedder's own HTTP mux can mount in front
// of a route, without the kernel building the excluded HTTP façade
// itself. The client identity key is resolved via chi's RealIP
// middleware so a reverse-proxied deployment is keyed on the real
// client address rather than the proxy's. A denied request gets a
// 429 with a 60-second Retry-After hint, per spec §4.13.
func RateLimitMiddleware(limiter *Limiter, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return middleware.RealIP(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(r.RemoteAddr, action) {
				w.Header().Set("Retry-After", "60")
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}
