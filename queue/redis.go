package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// popTimeout bounds each BRPOP so Pop notices a cancelled context.
const popTimeout = time.Second

// Redis is a list-backed queue: LPUSH to enqueue, BRPOP to dequeue.
type Redis struct {
	client redis.UniversalClient
	key    string
}

func NewRedis(client redis.UniversalClient, name string) *Redis {
	return &Redis{client: client, key: "queue:" + name}
}

func (q *Redis) Push(ctx context.Context, j Job) error {
	b, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, b).Err(); err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	return nil
}

func (q *Redis) Pop(ctx context.Context) (Job, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Job{}, err
		}
		res, err := q.client.BRPop(ctx, popTimeout, q.key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return Job{}, ctx.Err()
			}
			return Job{}, fmt.Errorf("failed to pop from queue: %w", err)
		}
		// res is [key, value]
		var j Job
		if err := json.Unmarshal([]byte(res[1]), &j); err != nil {
			return Job{}, fmt.Errorf("failed to unmarshal job: %w", err)
		}
		return j, nil
	}
}
