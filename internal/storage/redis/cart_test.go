//go:build integration

package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/thangnvgch211384/fshoemate/internal/domain/cart"
)

func startRedis(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)
	return fmt.Sprintf("redis://%s:%s/0", host, port.Port())
}

func TestCartStore(t *testing.T) {
	client, err := NewClient(startRedis(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	s := NewCartStore(client, time.Hour)

	items, err := s.Items(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, items)

	require.NoError(t, s.Add(ctx, "u1", "v2", 1))
	require.NoError(t, s.Add(ctx, "u1", "v1", 2))
	require.NoError(t, s.Add(ctx, "u1", "v1", 1))
	require.NoError(t, s.Add(ctx, "u2", "v9", 1))

	items, err = s.Items(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []cart.Item{{VariantID: "v1", Quantity: 3}, {VariantID: "v2", Quantity: 1}}, items)

	ttl, err := client.TTL(ctx, "cart:u1").Result()
	require.NoError(t, err)
	assert.Positive(t, ttl)

	require.NoError(t, s.Clear(ctx, "u1"))
	items, err = s.Items(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, items)

	items, err = s.Items(ctx, "u2")
	require.NoError(t, err)
	assert.Len(t, items, 1)
}
