// Package idempotency keeps a retried OutboundItem from reaching the provider
// twice while the first attempt is still in flight or already succeeded.
package idempotency

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "wa:send:"

// Guard claims an idempotency key before a send.
type Guard interface {
	// Claim returns false when the key is already held.
	Claim(ctx context.Context, key string) (bool, error)
	// Release frees a key after a failed attempt so a retry can proceed.
	Release(ctx context.Context, key string) error
}

type RedisGuard struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedisGuard(addr string, ttl time.Duration) *RedisGuard {
	return &RedisGuard{
		Client: redis.NewClient(&redis.Options{
			Addr: addr,
		}),
		TTL: ttl,
	}
}

func (g *RedisGuard) Claim(ctx context.Context, key string) (bool, error) {
	return g.Client.SetNX(ctx, keyPrefix+key, time.Now().Unix(), g.TTL).Result()
}

func (g *RedisGuard) Release(ctx context.Context, key string) error {
	return g.Client.Del(ctx, keyPrefix+key).Err()
}

func (g *RedisGuard) Ping(ctx context.Context) error {
	return g.Client.Ping(ctx).Err()
}

func (g *RedisGuard) Close() error {
	return g.Client.Close()
}

// MemoryGuard is the single-process fallback used when no Redis address is
// configured.
type MemoryGuard struct {
	mu   sync.Mutex
	ttl  time.Duration
	now  func() time.Time
	keys map[string]time.Time
}

func NewMemoryGuard(ttl time.Duration) *MemoryGuard {
	return &MemoryGuard{ttl: ttl, now: time.Now, keys: make(map[string]time.Time)}
}

func (g *MemoryGuard) Claim(_ context.Context, key string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if exp, ok := g.keys[key]; ok && (g.ttl <= 0 || now.Before(exp)) {
		return false, nil
	}
	g.keys[key] = now.Add(g.ttl)
	return true, nil
}

func (g *MemoryGuard) Release(_ context.Context, key string) error {
	g.mu.Lock()
	delete(g.keys, key)
	g.mu.Unlock()
	return nil
}
