// Package ratelimit keeps one token bucket per sender key.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultPermitsPerSecond = 10
	DefaultBurst            = 10
)

// Limits is the configuration of one bucket.
type Limits struct {
	PermitsPerSecond float64 `json:"permits_per_second"`
	Burst            int     `json:"burst"`
}

func (l Limits) validate() error {
	if l.PermitsPerSecond <= 0 {
		return fmt.Errorf("ratelimit: permits per second must be positive, got %v", l.PermitsPerSecond)
	}
	if l.Burst < 1 {
		return fmt.Errorf("ratelimit: burst must be at least 1, got %d", l.Burst)
	}
	return nil
}

type bucket struct {
	limiter *rate.Limiter
	limits  Limits
}

// Limiter hands out permits per sender key. Buckets are created lazily and
// never share state; waiters on one bucket are served in arrival order.
type Limiter struct {
	defaults Limits

	mu      sync.RWMutex
	buckets map[string]*bucket
}

func NewLimiter(defaults Limits) (*Limiter, error) {
	if err := defaults.validate(); err != nil {
		return nil, err
	}
	return &Limiter{
		defaults: defaults,
		buckets:  make(map[string]*bucket),
	}, nil
}

// Acquire blocks until senderKey has a token or ctx is done. It returns how
// long the caller waited.
func (l *Limiter) Acquire(ctx context.Context, senderKey string) (time.Duration, error) {
	b := l.bucketFor(senderKey)
	start := time.Now()
	if err := b.limiter.Wait(ctx); err != nil {
		return time.Since(start), fmt.Errorf("ratelimit: acquire %s: %w", senderKey, err)
	}
	return time.Since(start), nil
}

// UpdateLimits swaps in a fresh bucket for senderKey. Callers already
// waiting on the old bucket finish against it. The new bucket starts with
// the old one's unspent tokens, capped at the new burst, so a swap never
// hands out an extra burst.
func (l *Limiter) UpdateLimits(senderKey string, permitsPerSecond float64, burst int) error {
	limits := Limits{PermitsPerSecond: permitsPerSecond, Burst: burst}
	if err := limits.validate(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	b := newBucket(limits)
	if old, ok := l.buckets[senderKey]; ok {
		now := time.Now()
		carry := int(math.Floor(old.limiter.TokensAt(now)))
		if carry < 0 {
			carry = 0
		}
		if spent := burst - carry; spent > 0 {
			b.limiter.AllowN(now, spent)
		}
	}
	l.buckets[senderKey] = b
	return nil
}

// LimitsFor reports the current configuration for senderKey, falling back to
// the defaults for keys never used.
func (l *Limiter) LimitsFor(senderKey string) Limits {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if b, ok := l.buckets[senderKey]; ok {
		return b.limits
	}
	return l.defaults
}

func (l *Limiter) bucketFor(senderKey string) *bucket {
	l.mu.RLock()
	b, ok := l.buckets[senderKey]
	l.mu.RUnlock()
	if ok {
		return b
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.buckets[senderKey]; ok {
		return b
	}
	b = newBucket(l.defaults)
	l.buckets[senderKey] = b
	return b
}

func newBucket(limits Limits) *bucket {
	return &bucket{
		limiter: rate.NewLimiter(rate.Limit(limits.PermitsPerSecond), limits.Burst),
		limits:  limits,
	}
}
