package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/Rrens/appstruct/internal/api/response"
	"github.com/rs/zerolog/log"
)

// Limiter is satisfied by the Redis and in-memory rate limiters
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, remaining int, reset time.Time, err error)
}

// RateLimitMiddleware handles rate limiting
type RateLimitMiddleware struct {
	limiter Limiter
}

// NewRateLimitMiddleware creates a new rate limit middleware
func NewRateLimitMiddleware(limiter Limiter) *RateLimitMiddleware {
	return &RateLimitMiddleware{limiter: limiter}
}

// Limit applies rate limiting based on the authenticated user
func (m *RateLimitMiddleware) Limit(next http.Handler) http.Handler {
	return m.limit(next, func(r *http.Request) string {
		if user, ok := GetUser(r.Context()); ok {
			return "user:" + user.ID
		}
		return clientKey(r)
	})
}

// LimitByIP applies rate limiting based on the client address, for routes
// that run before authentication
func (m *RateLimitMiddleware) LimitByIP(next http.Handler) http.Handler {
	return m.limit(next, clientKey)
}

// clientKey keys on the client host; RemoteAddr carries a per-connection
// port unless RealIP already replaced it with a bare address.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

func (m *RateLimitMiddleware) limit(next http.Handler, keyFn func(*http.Request) string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, remaining, resetTime, err := m.limiter.Allow(r.Context(), keyFn(r))
		if err != nil {
			// fail open
			log.Warn().Err(err).Msg("Rate limiter unavailable")
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", resetTime.UTC().Format(time.RFC3339))

		if !allowed {
			retry := int(time.Until(resetTime).Seconds())
			if retry < 1 {
				retry = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			response.Error(w, http.StatusTooManyRequests, response.MsgRateLimited)
			return
		}

		next.ServeHTTP(w, r)
	})
}
