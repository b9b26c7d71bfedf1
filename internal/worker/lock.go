package worker

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const lockKey = "intelbrief:pipeline:lock"

// RunLock is a best-effort distributed lock over redis SetNX. A nil RunLock
// (or one without a client) always grants the lock, so single-instance
// deployments need no redis.
type RunLock struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRunLock builds a lock. rdb may be nil.
func NewRunLock(rdb *redis.Client, ttl time.Duration) *RunLock {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RunLock{rdb: rdb, ttl: ttl}
}

// Acquire attempts to take the lock for the TTL.
func (l *RunLock) Acquire(ctx context.Context) (bool, error) {
	if l == nil || l.rdb == nil {
		return true, nil
	}
	return l.rdb.SetNX(ctx, lockKey, "1", l.ttl).Result()
}

// Release frees the lock early. Expiry covers crashed holders.
func (l *RunLock) Release(ctx context.Context) {
	if l == nil || l.rdb == nil {
		return
	}
	l.rdb.Del(ctx, lockKey)
}
