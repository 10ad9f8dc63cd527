package webhooks

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DeliveryGuard remembers remote delivery ids that were applied
// successfully, so platform redeliveries are acknowledged without being
// processed again.
type DeliveryGuard interface {
	Seen(ctx context.Context, webhookID, deliveryID string) (bool, error)
	Mark(ctx context.Context, webhookID, deliveryID string) error
}

func guardKey(webhookID, deliveryID string) string {
	return "storehub:delivery:" + webhookID + ":" + deliveryID
}

// MemoryGuard keeps delivery ids in process memory until ttl expires.
type MemoryGuard struct {
	store sync.Map // map[key]time.Time
	ttl   time.Duration
}

func NewMemoryGuard(ttl time.Duration) *MemoryGuard {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &MemoryGuard{ttl: ttl}
}

func (g *MemoryGuard) Seen(ctx context.Context, webhookID, deliveryID string) (bool, error) {
	key := guardKey(webhookID, deliveryID)
	val, ok := g.store.Load(key)
	if !ok {
		return false, nil
	}
	if time.Since(val.(time.Time)) > g.ttl {
		g.store.Delete(key)
		return false, nil
	}
	return true, nil
}

func (g *MemoryGuard) Mark(ctx context.Context, webhookID, deliveryID string) error {
	g.store.Store(guardKey(webhookID, deliveryID), time.Now())
	return nil
}

// Sweep drops expired entries.
func (g *MemoryGuard) Sweep() {
	g.store.Range(func(key, val interface{}) bool {
		if time.Since(val.(time.Time)) > g.ttl {
			g.store.Delete(key)
		}
		return true
	})
}

// RedisGuard shares the seen set between server instances.
type RedisGuard struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisGuard(client *redis.Client, ttl time.Duration) *RedisGuard {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisGuard{client: client, ttl: ttl}
}

// NewRedisGuardFromURL parses a redis:// URL and pings the server.
func NewRedisGuardFromURL(ctx context.Context, url string, ttl time.Duration) (*RedisGuard, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return NewRedisGuard(client, ttl), nil
}

func (g *RedisGuard) Seen(ctx context.Context, webhookID, deliveryID string) (bool, error) {
	n, err := g.client.Exists(ctx, guardKey(webhookID, deliveryID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (g *RedisGuard) Mark(ctx context.Context, webhookID, deliveryID string) error {
	return g.client.Set(ctx, guardKey(webhookID, deliveryID), 1, g.ttl).Err()
}

func (g *RedisGuard) Close() error {
	return g.client.Close()
}

func (g *RedisGuard) Ping(ctx context.Context) error {
	return g.client.Ping(ctx).Err()
}
