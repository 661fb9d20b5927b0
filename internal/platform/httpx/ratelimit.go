package httpx

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/baechuer/crm-platform/internal/platform/logger"
)

// RateLimit is a fixed-window limiter keyed by client IP and path, backed by
// redis INCR/EXPIRE. Redis outages fail open: availability wins over strict
// limiting for this surface.
func RateLimit(client *redis.Client, limit int, window time.Duration) func(http.Handler) http.Handler {
	log := logger.Logger.With().Str("component", "rate_limit").Logger()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if client == nil || limit <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			ip := clientIP(r)
			key := fmt.Sprintf("rl:%s:%s:%d", ip, r.URL.Path, time.Now().Unix()/int64(window.Seconds()))

			count, err := client.Incr(r.Context(), key).Result()
			if err != nil {
				log.Warn().Err(err).Msg("redis unavailable, skipping rate limit")
				next.ServeHTTP(w, r)
				return
			}
			if count == 1 {
				client.Expire(r.Context(), key, window)
			}

			if count > int64(limit) {
				w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
				Fail(w, http.StatusTooManyRequests, "rate_limited", "too many requests", nil, RequestIDFromRequest(r))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
