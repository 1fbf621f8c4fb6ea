package lease

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a Locker shared by every process using the same Redis.
type Redis struct {
	client redis.UniversalClient
}

func NewRedis(client redis.UniversalClient) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error) {
	tok := uuid.NewString()
	ok, err := r.client.SetNX(ctx, key, tok, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		return nil, ErrHeld
	}
	return &redisLease{client: r.client, key: key, token: tok}, nil
}

type redisLease struct {
	client redis.UniversalClient
	key    string
	token  string
}

func (ls *redisLease) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, ls.client, []string{ls.key}, ls.token).Err(); err != nil {
		return fmt.Errorf("release %s: %w", ls.key, err)
	}
	return nil
}
