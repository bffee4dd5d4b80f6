package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithin(t *testing.T) {
	assert.True(t, Within(1, 10))
	assert.True(t, Within(10, 10), "the request that fills the window is allowed")
	assert.False(t, Within(11, 10))
	assert.False(t, Within(1, 0))
}

func TestAllow_DisabledLimiter(t *testing.T) {
	l := New(nil, 0, time.Minute)
	allowed, err := l.Allow(context.Background(), "tenant-1")
	require.NoError(t, err)
	assert.True(t, allowed)

	l = New(nil, 10, time.Minute)
	allowed, err = l.Allow(context.Background(), "tenant-1")
	require.NoError(t, err)
	assert.True(t, allowed, "nil client disables limiting")
}

func TestMiddleware_PassesWithoutTenantHeader(t *testing.T) {
	l := New(nil, 10, time.Minute)
	handler := l.Middleware("X-Tenant-ID")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/feed", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestMiddleware_FailsOpenOnRedisError(t *testing.T) {
	// Nothing listens on port 1; the pipeline errors immediately.
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { rdb.Close() })

	l := New(rdb, 10, time.Minute)
	handler := l.Middleware("X-Tenant-ID")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/feed", nil)
	req.Header.Set("X-Tenant-ID", "tenant-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
