package idempotency

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { _ = client.Close() })

	return client, mr
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMarkProcessedFirstAndDuplicate(t *testing.T) {
	client, _ := setupTestRedis(t)
	store := NewRedisStore(client, testLogger())
	ctx := context.Background()

	first, err := store.MarkProcessed(ctx, "update:42", time.Minute)
	require.NoError(t, err)
	assert.True(t, first)

	first, err = store.MarkProcessed(ctx, "update:42", time.Minute)
	require.NoError(t, err)
	assert.False(t, first)
}

func TestMarkProcessedExpires(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := NewRedisStore(client, testLogger())
	ctx := context.Background()

	first, err := store.MarkProcessed(ctx, "update:42", time.Minute)
	require.NoError(t, err)
	assert.True(t, first)

	mr.FastForward(2 * time.Minute)

	first, err = store.MarkProcessed(ctx, "update:42", time.Minute)
	require.NoError(t, err)
	assert.True(t, first)
}

func TestGenerateKeyDeterministic(t *testing.T) {
	a := GenerateKey("callback", int64(100), "paid:alice:100:k")
	b := GenerateKey("callback", int64(100), "paid:alice:100:k")
	c := GenerateKey("callback", int64(200), "paid:alice:100:k")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}
