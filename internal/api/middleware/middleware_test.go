package middleware_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Rrens/appstruct/internal/api/middleware"
	"github.com/Rrens/appstruct/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAuthenticator struct {
	token string
	user  *domain.User
}

func (s stubAuthenticator) Authenticate(_ context.Context, token string) (*domain.User, error) {
	if token == "" || token != s.token {
		return nil, domain.ErrUnauthenticated
	}
	return s.user, nil
}

type stubLimiter struct {
	allowed   bool
	remaining int
	reset     time.Time
	err       error
	keys      []string
}

func (s *stubLimiter) Allow(_ context.Context, key string) (bool, int, time.Time, error) {
	s.keys = append(s.keys, key)
	return s.allowed, s.remaining, s.reset, s.err
}

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestBearerToken(t *testing.T) {
	tests := map[string]string{
		"":                   "",
		"Bearer abc":         "abc",
		"bearer abc":         "abc",
		"Bearer  padded  ":   "padded",
		"Basic dXNlcjpwYXNz": "",
		"Bearer":             "",
	}
	for header, want := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		assert.Equal(t, want, middleware.BearerToken(req), header)
	}
}

func TestAuthenticate(t *testing.T) {
	user := &domain.User{ID: "user-1", Username: "pet_lover"}
	mw := middleware.NewAuthMiddleware(stubAuthenticator{token: "good", user: user})

	t.Run("valid token stores user", func(t *testing.T) {
		var got *domain.User
		h := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, _ = middleware.GetUser(r.Context())
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer good")
		h.ServeHTTP(httptest.NewRecorder(), req)

		require.NotNil(t, got)
		assert.Equal(t, "user-1", got.ID)
	})

	t.Run("failures share one body", func(t *testing.T) {
		var bodies []string
		for _, header := range []string{"", "Bearer bad", "Token good"} {
			called := false
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			mw.Authenticate(okHandler(&called)).ServeHTTP(rec, req)

			assert.False(t, called)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			bodies = append(bodies, rec.Body.String())
		}
		assert.Equal(t, bodies[0], bodies[1])
		assert.Equal(t, bodies[0], bodies[2])
	})
}

func TestGetUser_Missing(t *testing.T) {
	_, ok := middleware.GetUser(context.Background())
	assert.False(t, ok)
}

func TestRateLimit(t *testing.T) {
	reset := time.Now().Add(42 * time.Second)

	t.Run("allowed sets headers", func(t *testing.T) {
		limiter := &stubLimiter{allowed: true, remaining: 7, reset: reset}
		called := false
		rec := httptest.NewRecorder()
		middleware.NewRateLimitMiddleware(limiter).LimitByIP(okHandler(&called)).
			ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))

		assert.True(t, called)
		assert.Equal(t, "7", rec.Header().Get("X-RateLimit-Remaining"))
		assert.Equal(t, reset.UTC().Format(time.RFC3339), rec.Header().Get("X-RateLimit-Reset"))
		require.Len(t, limiter.keys, 1)
		assert.Equal(t, "ip:192.0.2.1", limiter.keys[0])
	})

	t.Run("keyed by host across connections", func(t *testing.T) {
		limiter := &stubLimiter{allowed: true, reset: reset}
		mw := middleware.NewRateLimitMiddleware(limiter)
		called := false

		for _, addr := range []string{"203.0.113.9:51000", "203.0.113.9:51001", "203.0.113.9"} {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			req.RemoteAddr = addr
			mw.LimitByIP(okHandler(&called)).ServeHTTP(httptest.NewRecorder(), req)
		}
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = "[2001:db8::1]:443"
		mw.Limit(okHandler(&called)).ServeHTTP(httptest.NewRecorder(), req)

		assert.Equal(t, []string{"ip:203.0.113.9", "ip:203.0.113.9", "ip:203.0.113.9", "ip:2001:db8::1"}, limiter.keys)
	})

	t.Run("denied returns 429", func(t *testing.T) {
		limiter := &stubLimiter{allowed: false, reset: reset}
		called := false
		rec := httptest.NewRecorder()
		middleware.NewRateLimitMiddleware(limiter).Limit(okHandler(&called)).
			ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))

		assert.False(t, called)
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("Retry-After"))

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, true, body["error"])
	})

	t.Run("keyed by user when authenticated", func(t *testing.T) {
		limiter := &stubLimiter{allowed: true, reset: reset}
		called := false
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req = req.WithContext(context.WithValue(req.Context(), middleware.UserKey, &domain.User{ID: "user-1"}))

		middleware.NewRateLimitMiddleware(limiter).Limit(okHandler(&called)).ServeHTTP(httptest.NewRecorder(), req)

		assert.True(t, called)
		assert.Equal(t, []string{"user:user-1"}, limiter.keys)
	})

	t.Run("limiter error fails open", func(t *testing.T) {
		limiter := &stubLimiter{err: errors.New("redis down")}
		called := false
		rec := httptest.NewRecorder()
		middleware.NewRateLimitMiddleware(limiter).Limit(okHandler(&called)).
			ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))

		assert.True(t, called)
		assert.Empty(t, rec.Header().Get("X-RateLimit-Remaining"))
	})
}

func TestLogger_PassesThrough(t *testing.T) {
	called := false
	rec := httptest.NewRecorder()
	middleware.Logger(okHandler(&called)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.True(t, called)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
