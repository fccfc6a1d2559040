package cache

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisClient holds the Redis client connection
type RedisClient struct {
	client *redis.Client
}

// NewRedisClient connects and pings; callers fall back to no cache on error.
func NewRedisClient(addr, password string) (*RedisClient, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis address not set")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	log.Println("Connected to Redis")

	return &RedisClient{client: client}, nil
}

func (c *RedisClient) Close() {
	if c.client != nil {
		c.client.Close()
		log.Println("Redis connection closed.")
	}
}

// TokenCache maps public count tokens to count ids. Tokens are never rotated,
// so entries only expire to bound memory.
type TokenCache struct {
	rc  *RedisClient
	ttl time.Duration
}

func NewTokenCache(rc *RedisClient, ttl time.Duration) *TokenCache {
	return &TokenCache{rc: rc, ttl: ttl}
}

func tokenKey(token string) string {
	return "stockcount:token:" + token
}

func (t *TokenCache) Get(ctx context.Context, token string) (uint, bool) {
	v, err := t.rc.client.Get(ctx, tokenKey(token)).Result()
	if err != nil {
		if err != redis.Nil {
			log.Printf("[WARN] token cache read failed: %v", err)
		}
		return 0, false
	}
	id, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return uint(id), true
}

func (t *TokenCache) Set(ctx context.Context, token string, id uint) {
	if err := t.rc.client.Set(ctx, tokenKey(token), strconv.FormatUint(uint64(id), 10), t.ttl).Err(); err != nil {
		log.Printf("[WARN] token cache write failed: %v", err)
	}
}
