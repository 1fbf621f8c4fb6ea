//go:build integration

package queue

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisQueue(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	q := NewRedis(client, "test:"+time.Now().Format(time.RFC3339Nano))

	first, second := NewJob(1, false), NewJob(2, true)
	require.NoError(t, q.Push(ctx, first))
	require.NoError(t, q.Push(ctx, second))

	got, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	got, err = q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)
	assert.True(t, got.Reprocess)
}
