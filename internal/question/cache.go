package question

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quizarena/backend/internal/game"
)

const defaultCacheTTL = 5 * time.Minute

// Cache holds per-set question pools in Redis so concurrent session starts
// do not hammer Postgres.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ PoolCache = (*Cache)(nil)

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) key(setID int64) string {
	return fmt.Sprintf("questions:set:%d", setID)
}

// GetSet returns the cached pool for a set, or nil on a miss.
func (c *Cache) GetSet(ctx context.Context, setID int64) ([]*game.Question, error) {
	data, err := c.client.Get(ctx, c.key(setID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	var pool []*game.Question
	if err := json.Unmarshal(data, &pool); err != nil {
		return nil, err
	}
	return pool, nil
}

// StoreSet caches a set's pool.
func (c *Cache) StoreSet(ctx context.Context, setID int64, pool []*game.Question) error {
	data, err := json.Marshal(pool)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(setID), data, c.ttl).Err()
}
