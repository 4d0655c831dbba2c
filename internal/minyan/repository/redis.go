package repository

import (
	"context"
	"fmt"

	"github.com/minjen/minjen-counter/backend/go-services/internal/minyan"
	"github.com/redis/go-redis/v9"
)

// RedisRepo stores the encoded document under a single key with no TTL.
type RedisRepo struct {
	client *redis.Client
	key    string
}

// NewRedisRepo creates a Redis-backed repository. An empty key defaults to "minjen:state".
func NewRedisRepo(client *redis.Client, key string) *RedisRepo {
	if key == "" {
		key = "minjen:state"
	}
	return &RedisRepo{client: client, key: key}
}

func (r *RedisRepo) Load(ctx context.Context) (*minyan.State, error) {
	b, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return minyan.NewState(), nil
		}
		return nil, fmt.Errorf("redis get %s: %w", r.key, err)
	}
	return Decode(b)
}

func (r *RedisRepo) Save(ctx context.Context, s *minyan.State) error {
	b, err := Encode(s)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key, b, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", r.key, err)
	}
	return nil
}
