package status

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/joseph-ayodele/slides-explainer/internal/entity"
)

const keyPrefix = "explainer:status:"

// RedisCache stores terminal status views as JSON strings.
type RedisCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{Client: client, TTL: ttl}
}

// NewRedisClient connects and pings once so a bad address fails at startup.
func NewRedisClient(ctx context.Context, addr string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func (c *RedisCache) Get(ctx context.Context, jobID uuid.UUID) (*entity.StatusView, bool, error) {
	raw, err := c.Client.Get(ctx, keyPrefix+jobID.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var v entity.StatusView
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, false, err
	}
	return &v, true, nil
}

func (c *RedisCache) Set(ctx context.Context, view *entity.StatusView) error {
	if !view.State.Terminal() {
		return nil
	}
	b, err := json.Marshal(view)
	if err != nil {
		return err
	}
	return c.Client.Set(ctx, keyPrefix+view.JobID.String(), b, c.TTL).Err()
}
