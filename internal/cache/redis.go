// Package cache wraps the Redis client used for ranking data.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/config"
)

// ErrMiss is returned when a member is not present in a sorted set.
var ErrMiss = errors.New("cache: member not found")

const dialTimeout = 5 * time.Second

// Member is one scored member of a sorted set.
type Member struct {
	Name  string
	Score float64
}

// Cache is a thin sorted-set oriented wrapper around go-redis.
type Cache struct {
	client *redis.Client
}

// New connects to Redis and verifies the connection.
func New(cfg *config.RedisConfig) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr(), err)
	}

	return &Cache{client: client}, nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Client returns the underlying client.
func (c *Cache) Client() *redis.Client {
	return c.client
}

// Close closes the connection pool.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Health pings Redis.
func (c *Cache) Health(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// RaiseScore sets the member's score unless it already holds a higher one.
func (c *Cache) RaiseScore(ctx context.Context, key, member string, score float64) error {
	return c.client.ZAddArgs(ctx, key, redis.ZAddArgs{
		GT:      true,
		Members: []redis.Z{{Score: score, Member: member}},
	}).Err()
}

// IncrScore adds delta to the member's score.
func (c *Cache) IncrScore(ctx context.Context, key, member string, delta float64) (float64, error) {
	return c.client.ZIncrBy(ctx, key, delta, member).Result()
}

// Remove deletes members from a sorted set.
func (c *Cache) Remove(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	args := make([]interface{}, 0, len(members))
	for _, m := range members {
		args = append(args, m)
	}
	return c.client.ZRem(ctx, key, args...).Err()
}

// Top returns the highest scored members, best first.
func (c *Cache) Top(ctx context.Context, key string, limit int) ([]Member, error) {
	if limit <= 0 {
		return nil, nil
	}
	zs, err := c.client.ZRevRangeWithScores(ctx, key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	members := make([]Member, 0, len(zs))
	for _, z := range zs {
		name, ok := z.Member.(string)
		if !ok {
			continue
		}
		members = append(members, Member{Name: name, Score: z.Score})
	}
	return members, nil
}

// Rank returns the 0-based position of member, best first, and its score.
// ErrMiss is returned when the member is not ranked.
func (c *Cache) Rank(ctx context.Context, key, member string) (int64, float64, error) {
	rank, err := c.client.ZRevRank(ctx, key, member).Result()
	if errors.Is(err, redis.Nil) {
		return 0, 0, ErrMiss
	}
	if err != nil {
		return 0, 0, err
	}
	score, err := c.client.ZScore(ctx, key, member).Result()
	if errors.Is(err, redis.Nil) {
		return 0, 0, ErrMiss
	}
	if err != nil {
		return 0, 0, err
	}
	return rank, score, nil
}

// Size returns the number of members in a sorted set.
func (c *Cache) Size(ctx context.Context, key string) (int64, error) {
	return c.client.ZCard(ctx, key).Result()
}

// Replace atomically swaps the contents of a sorted set.
func (c *Cache) Replace(ctx context.Context, key string, members []Member) error {
	pipe := c.client.TxPipeline()
	pipe.Del(ctx, key)
	if len(members) > 0 {
		zs := make([]redis.Z, 0, len(members))
		for _, m := range members {
			zs = append(zs, redis.Z{Score: m.Score, Member: m.Name})
		}
		pipe.ZAdd(ctx, key, zs...)
	}
	_, err := pipe.Exec(ctx)
	return err
}
