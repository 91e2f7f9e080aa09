package cache

import (
	"context"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// pending marks a claimed key whose submission has not been stored yet.
const pending = "pending"

// RedisGuard claims submission keys with SET NX so the first writer wins
// until the key expires. Once stored, the key holds the transaction id so a
// retry can be answered with the original record.
type RedisGuard struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisGuard(addr string, password string, db int, ttl time.Duration) *RedisGuard {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewRedisGuardFromClient(client, ttl)
}

func NewRedisGuardFromClient(client *redis.Client, ttl time.Duration) *RedisGuard {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisGuard{client: client, ttl: ttl}
}

func (g *RedisGuard) Ping(ctx context.Context) error {
	return g.client.Ping(ctx).Err()
}

func (g *RedisGuard) Close() error {
	return g.client.Close()
}

// Claim reports whether key was free and is now held by the caller.
func (g *RedisGuard) Claim(ctx context.Context, key string) (bool, error) {
	return g.client.SetNX(ctx, key, pending, g.ttl).Result()
}

// Complete records the id stored for a claimed key.
func (g *RedisGuard) Complete(ctx context.Context, key, id string) error {
	return g.client.Set(ctx, key, id, g.ttl).Err()
}

// Lookup returns the id stored for key. It is empty while the first
// submission is still in flight or after the key expired.
func (g *RedisGuard) Lookup(ctx context.Context, key string) (string, error) {
	val, err := g.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if val == pending {
		return "", nil
	}
	return val, nil
}

// Release frees key so a failed submission can be retried.
func (g *RedisGuard) Release(ctx context.Context, key string) error {
	return g.client.Del(ctx, key).Err()
}

// NoopGuard accepts every claim. Used when no Redis is configured.
type NoopGuard struct{}

func (NoopGuard) Claim(context.Context, string) (bool, error)    { return true, nil }
func (NoopGuard) Complete(context.Context, string, string) error { return nil }
func (NoopGuard) Lookup(context.Context, string) (string, error) { return "", nil }
func (NoopGuard) Release(context.Context, string) error          { return nil }
