package postgres

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/platinummonkey/backoffice/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisClient_Success(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedisClient(context.Background(), config.RedisConfig{
		URL:        "redis://" + mr.Addr(),
		MaxRetries: 3,
		PoolSize:   10,
	})
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestNewRedisClient_InvalidURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), config.RedisConfig{URL: "not-a-url"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid redis URL")
}

func TestNewRedisClient_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisClient(context.Background(), config.RedisConfig{URL: "redis://" + addr})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to redis")
}

func TestRedisOptions_Overrides(t *testing.T) {
	opts, err := RedisOptions(config.RedisConfig{
		URL:        "redis://:urlpass@localhost:6379/1",
		Password:   "override",
		DB:         3,
		MaxRetries: 5,
		PoolSize:   20,
	})
	require.NoError(t, err)

	assert.Equal(t, "override", opts.Password)
	assert.Equal(t, 3, opts.DB)
	assert.Equal(t, 5, opts.MaxRetries)
	assert.Equal(t, 20, opts.PoolSize)
}

func TestRedisOptions_KeepsURLValues(t *testing.T) {
	opts, err := RedisOptions(config.RedisConfig{URL: "redis://:urlpass@localhost:6379/1"})
	require.NoError(t, err)

	assert.Equal(t, "urlpass", opts.Password)
	assert.Equal(t, 1, opts.DB)
}
