package middleware

import (
	"fmt"
	"net/http"
	"time"
)

// RateLimiter caps requests per client IP over a rolling window backed
// by the cache. A cache failure lets the request through; limiting is
// protective, not load-bearing.
func RateLimiter(store Store, limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := fmt.Sprintf("ratelimit:%s", r.RemoteAddr)

			count, err := store.Incr(key)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			if count == 1 {
				store.Expire(key, window)
			}

			if count > int64(limit) {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", limit))
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error":"Rate limit exceeded. Try again later."}`))
				return
			}

			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", limit))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", limit-int(count)))

			next.ServeHTTP(w, r)
		})
	}
}
