package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFIFO(t *testing.T) {
	q := NewLocal(4)
	ctx := context.Background()
	a, b := NewJob(1, false), NewJob(2, true)
	require.NoError(t, q.Push(ctx, a))
	require.NoError(t, q.Push(ctx, b))

	got, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, a, got)
	got, err = q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, b, got)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestLocalPopHonoursContext(t *testing.T) {
	q := NewLocal(1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := q.Pop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLocalCloseDrains(t *testing.T) {
	q := NewLocal(2)
	ctx := context.Background()
	require.NoError(t, q.Push(ctx, NewJob(1, false)))
	q.Close()

	assert.ErrorIs(t, q.Push(ctx, NewJob(2, false)), ErrClosed)
	j, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), j.MeetingID)
	_, err = q.Pop(ctx)
	assert.ErrorIs(t, err, ErrClosed)
}
