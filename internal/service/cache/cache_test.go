package cache

import (
	"context"
	"testing"
	"time"

	"StratView/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTTLCacheExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewTTLCache()
	c.now = func() time.Time { return now }

	require.NoError(t, c.SetBytes(ctx, "k", []byte("v"), time.Minute))
	b, ok, err := c.GetBytes(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), b)

	now = now.Add(2 * time.Minute)
	_, ok, err = c.GetBytes(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestTTLCacheCopiesValue(t *testing.T) {
	ctx := context.Background()
	c := NewTTLCache()
	v := []byte("abc")
	require.NoError(t, c.SetBytes(ctx, "k", v, 0))
	v[0] = 'x'

	b, ok, _ := c.GetBytes(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, "abc", string(b))
}

func TestNewSelectsBackend(t *testing.T) {
	cfg := config.Default()
	c, err := New(cfg)
	require.NoError(t, err)
	assert.Nil(t, c)

	cfg.Cache.Enabled = true
	c, err = New(cfg)
	require.NoError(t, err)
	assert.IsType(t, &TTLCache{}, c)

	cfg.Cache.Backend = "redis"
	cfg.Cache.Redis.Addr = "localhost:6379"
	c, err = New(cfg)
	require.NoError(t, err)
	assert.IsType(t, &RedisCache{}, c)

	cfg.Cache.Backend = "memcached"
	_, err = New(cfg)
	assert.Error(t, err)
}
