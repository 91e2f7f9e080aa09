//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedisContainer(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate redis container: %v", err)
		}
	})

	addr, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisGuard_SubmissionLifecycle(t *testing.T) {
	ctx := context.Background()
	g := NewRedisGuardFromClient(setupRedisContainer(t), time.Minute)
	require.NoError(t, g.Ping(ctx))

	key := "submission:shop:pos-1-0001"

	id, err := g.Lookup(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, id, "unknown key")

	ok, err := g.Claim(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = g.Claim(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok, "second claim")

	id, err = g.Lookup(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, id, "in flight")

	require.NoError(t, g.Complete(ctx, key, "7f1c6a52-1b7e-4a53-9a55-0f0d3e0c2b11"))
	id, err = g.Lookup(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "7f1c6a52-1b7e-4a53-9a55-0f0d3e0c2b11", id)

	ttl, err := g.client.TTL(ctx, key).Result()
	require.NoError(t, err)
	assert.True(t, ttl > 0 && ttl <= time.Minute, "ttl %v", ttl)

	require.NoError(t, g.Release(ctx, key))
	ok, err = g.Claim(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok, "claim after release")
}
