package container

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/caching/stores"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/observability/logging"
	"github.com/pomeg-dev/nextpress-go/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.SQLitePath = ":memory:"
	return cfg
}

func TestNewContainerUnreachableRedis(t *testing.T) {
	cfg := testConfig()
	cfg.CacheBackend = config.CacheBackendRedis
	cfg.RedisURL = "redis://127.0.0.1:1/0"

	var (
		c   *Container
		err error
	)
	require.NotPanics(t, func() {
		c, err = NewContainer(context.Background(), cfg, logging.NewDiscardLogger())
	})
	assert.Error(t, err)
	assert.Nil(t, c)
}

func TestNewContainerMemory(t *testing.T) {
	c, err := NewContainer(context.Background(), testConfig(), logging.NewDiscardLogger())
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, "memory", c.CacheBackend.Name())
	assert.NotNil(t, c.GateSweeper)
	assert.NotNil(t, c.RouterService)
}

func TestNewContainerSharesRedisPool(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.CacheBackend = config.CacheBackendRedis
	cfg.DebounceBackend = config.CacheBackendRedis
	cfg.RedisURL = "redis://" + mr.Addr() + "/0"

	c, err := NewContainer(context.Background(), cfg, logging.NewDiscardLogger())
	require.NoError(t, err)

	store, ok := c.CacheBackend.(*stores.RedisStore)
	require.True(t, ok)
	assert.Nil(t, c.GateSweeper)
	assert.Nil(t, c.gateClient, "the gate reuses the cache connection")
	assert.NotNil(t, store.Client())
	assert.NoError(t, c.Close())
}

func TestRedisStoreCloseOnNil(t *testing.T) {
	var store *stores.RedisStore
	assert.NoError(t, store.Close())
}
