// Package ratelimit implements a per-tenant sliding window limiter over
// Redis sorted sets. Each request is a timestamped member; the window slides
// by pruning members older than the window before counting.
package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Limiter allows up to limit requests per key per window.
type Limiter struct {
	rdb    redis.UniversalClient
	limit  int
	window time.Duration
	now    func() time.Time
}

// New creates a Limiter. limit <= 0 disables limiting.
func New(rdb redis.UniversalClient, limit int, window time.Duration) *Limiter {
	if window <= 0 {
		window = time.Minute
	}
	return &Limiter{rdb: rdb, limit: limit, window: window, now: time.Now}
}

// Allow records one request for key and reports whether it fits the window.
// A rejected request still counts: hammering a saturated key keeps it
// saturated.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	if l.limit <= 0 || l.rdb == nil {
		return true, nil
	}

	now := l.now().UTC()
	cutoff := now.Add(-l.window)
	rkey := fmt.Sprintf("ratelimit:%s", key)

	pipe := l.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, rkey, "0", strconv.FormatInt(cutoff.UnixNano(), 10))
	pipe.ZAdd(ctx, rkey, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: uuid.New().String(),
	})
	count := pipe.ZCard(ctx, rkey)
	pipe.Expire(ctx, rkey, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, eris.Wrap(err, "ratelimit: redis pipeline")
	}

	return Within(count.Val(), int64(l.limit)), nil
}

// Within reports whether a window holding count requests, including the
// current one, is under the limit.
func Within(count, limit int64) bool {
	return count <= limit
}

// Middleware enforces the limiter per tenant header. Requests without the
// header pass through; authentication rejects them downstream. A Redis
// failure fails open with a log line rather than taking the API down.
func (l *Limiter) Middleware(tenantHeader string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenant := r.Header.Get(tenantHeader)
			if tenant == "" {
				next.ServeHTTP(w, r)
				return
			}

			allowed, err := l.Allow(r.Context(), tenant)
			if err != nil {
				zap.L().Warn("ratelimit: check failed, failing open",
					zap.String("tenant", tenant),
					zap.Error(err),
				)
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", strconv.Itoa(int(l.window.Seconds())))
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]map[string]string{
					"error": {"code": "rate_limited", "message": "too many requests"},
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
