package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"snaplink/internal/models"

	"github.com/redis/go-redis/v9"
)

func InitRedis(redisURL string, password string, db int) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		// Plain host:port
		opt = &redis.Options{Addr: redisURL}
	}
	if password != "" {
		opt.Password = password
	}
	opt.DB = db

	rdb := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		rdb.Close()
		return nil, err
	}

	return rdb, nil
}

const linkCachePrefix = "link:"

// RedisLinkCache keeps resolved links keyed by short code.
type RedisLinkCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisLinkCache(client *redis.Client, ttl time.Duration) *RedisLinkCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisLinkCache{client: client, ttl: ttl}
}

// Get returns (nil, false, nil) on a miss.
func (c *RedisLinkCache) Get(ctx context.Context, code string) (*models.Link, bool, error) {
	val, err := c.client.Get(ctx, linkCachePrefix+code).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var link models.Link
	if err := json.Unmarshal(val, &link); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached link: %w", err)
	}
	return &link, true, nil
}

func (c *RedisLinkCache) Set(ctx context.Context, link *models.Link) error {
	data, err := json.Marshal(link)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, linkCachePrefix+link.ShortCode, data, c.ttl).Err()
}

func (c *RedisLinkCache) Delete(ctx context.Context, codes ...string) error {
	if len(codes) == 0 {
		return nil
	}
	keys := make([]string, len(codes))
	for i, code := range codes {
		keys[i] = linkCachePrefix + code
	}
	return c.client.Del(ctx, keys...).Err()
}
