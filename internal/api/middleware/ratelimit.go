package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/Rrens/flight-support/internal/api/response"
	"github.com/rs/zerolog/log"
)

// Limiter decides whether a keyed request may proceed
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, int, time.Time, error)
}

// RateLimitMiddleware handles rate limiting
type RateLimitMiddleware struct {
	rateLimiter Limiter
}

// NewRateLimitMiddleware creates a new rate limit middleware
func NewRateLimitMiddleware(rateLimiter Limiter) *RateLimitMiddleware {
	return &RateLimitMiddleware{rateLimiter: rateLimiter}
}

// Limit applies rate limiting per user, or per client address when the
// request carries no identity.
func (m *RateLimitMiddleware) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := "ip:" + clientIP(r)
		if userID, ok := GetUserID(r.Context()); ok {
			key = "user:" + strconv.FormatInt(userID, 10)
		}

		allowed, remaining, resetTime, err := m.rateLimiter.Allow(r.Context(), key)
		if err != nil {
			// If rate limiter fails, allow the request but log the error
			log.Warn().Err(err).Str("key", key).Msg("rate limiter unavailable")
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", resetTime.UTC().Format(time.RFC3339))

		if !allowed {
			response.Error(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
