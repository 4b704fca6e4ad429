package dedupe

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Guard reports whether a key is seen for the first time within its TTL.
// Telegram redelivers webhook updates that were not acknowledged in time; the
// guard keeps a redelivered photo from starting a second job.
type Guard interface {
	First(ctx context.Context, key string) (bool, error)
}

// RedisGuard shares seen keys across bot replicas.
type RedisGuard struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisGuard(client *redis.Client, prefix string, ttl time.Duration) (*RedisGuard, error) {
	if client == nil {
		return nil, errors.New("dedupe: redis client is required")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisGuard{client: client, prefix: prefix, ttl: ttl}, nil
}

func (g *RedisGuard) First(ctx context.Context, key string) (bool, error) {
	ok, err := g.client.SetNX(ctx, g.prefix+key, 1, g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedupe: setnx: %w", err)
	}
	return ok, nil
}

// MemoryGuard is the single-process fallback used when Redis is not configured.
type MemoryGuard struct {
	mu   sync.Mutex
	ttl  time.Duration
	seen map[string]time.Time
	now  func() time.Time
}

func NewMemoryGuard(ttl time.Duration) *MemoryGuard {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &MemoryGuard{ttl: ttl, seen: make(map[string]time.Time), now: time.Now}
}

func (g *MemoryGuard) First(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	g.sweep(now)
	if until, ok := g.seen[key]; ok && now.Before(until) {
		return false, nil
	}
	g.seen[key] = now.Add(g.ttl)
	return true, nil
}

func (g *MemoryGuard) sweep(now time.Time) {
	for k, until := range g.seen {
		if !now.Before(until) {
			delete(g.seen, k)
		}
	}
}

var (
	_ Guard = (*RedisGuard)(nil)
	_ Guard = (*MemoryGuard)(nil)
)
