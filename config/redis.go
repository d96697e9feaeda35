package config

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	redisClient *redis.Client
	redisOnce   sync.Once
)

// redisOptionsFromEnv builds client options from REDIS_ADDR, REDIS_PASS and
// REDIS_DB, defaulting to a local instance.
func redisOptionsFromEnv() *redis.Options {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	opts := &redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASS"),
	}
	if v, err := strconv.Atoi(os.Getenv("REDIS_DB")); err == nil {
		opts.DB = v
	}
	return opts
}

// ConnectRedis initializes the singleton Redis client. Redis backs the login
// rate limiter, the ban pre-check cache and the session lookup fast path;
// all of them degrade gracefully when the client is nil, so a failed
// connection is reported but not fatal. In the test environment no
// connection is attempted at all.
func ConnectRedis() (*redis.Client, error) {
	var err error
	redisOnce.Do(func() {
		if cfg := LoadConfig(); cfg != nil && cfg.AppEnv == "test" {
			return
		}

		opts := redisOptionsFromEnv()
		rdb := redis.NewClient(opts)

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if pingErr := rdb.Ping(ctx).Err(); pingErr != nil {
			err = fmt.Errorf("redis ping failed: %w", pingErr)
			return
		}

		redisClient = rdb
		log.Printf("Connected to Redis at %s", opts.Addr)
	})
	return redisClient, err
}

// GetRedisClient returns the initialized client, or nil when ConnectRedis
// failed or was never called.
func GetRedisClient() *redis.Client {
	return redisClient
}

// SetRedisClientForTesting replaces the singleton client. Tests only.
func SetRedisClientForTesting(client *redis.Client) {
	redisClient = client
}
