// Package ratelimit enforces the operations-per-minute threshold a signing
// policy reports. The evaluator itself stays stateless; the HTTP layer
// consults a Limiter before returning a decision.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type Limiter interface {
	// Allow records one operation for key and reports whether it fits
	// inside perMin operations for the current minute window.
	Allow(ctx context.Context, key string, perMin int) (bool, error)
}

// MemoryLimiter is a fixed-window counter for single-instance deployments
// and tests.
type MemoryLimiter struct {
	mu     sync.Mutex
	counts map[string]int
	window int64

	Now func() time.Time
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{counts: make(map[string]int), Now: time.Now}
}

func (m *MemoryLimiter) Allow(_ context.Context, key string, perMin int) (bool, error) {
	if perMin <= 0 {
		return true, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	window := m.Now().Unix() / 60
	if window != m.window {
		m.window = window
		m.counts = make(map[string]int)
	}
	m.counts[key]++
	return m.counts[key] <= perMin, nil
}

// RedisLimiter shares the window counter across instances: INCR on a
// per-minute key with an expiry slightly past the window.
type RedisLimiter struct {
	Client *redis.Client
}

func NewRedisLimiter(client *redis.Client) *RedisLimiter {
	return &RedisLimiter{Client: client}
}

func (r *RedisLimiter) Allow(ctx context.Context, key string, perMin int) (bool, error) {
	if perMin <= 0 {
		return true, nil
	}
	window := time.Now().Unix() / 60
	bucket := fmt.Sprintf("rl:%s:%d", key, window)
	n, err := r.Client.Incr(ctx, bucket).Result()
	if err != nil {
		return false, err
	}
	if n == 1 {
		r.Client.Expire(ctx, bucket, 90*time.Second)
	}
	return n <= int64(perMin), nil
}
