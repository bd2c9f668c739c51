package lib

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

var redisClient *redis.Client

func GetRedisClient() *redis.Client {
	if redisClient != nil {
		return redisClient
	}
	redisHost := os.Getenv("REDIS_HOST")
	opt, err := redis.ParseURL(redisHost)
	if err != nil {
		log.Printf("[redis] Error parsing connection string: %s\n", err.Error())
		return nil
	}
	rdb := redis.NewClient(opt)
	redisClient = rdb
	return rdb
}

// AcquireOnce sets key if absent and reports whether this caller won.
// Used as the saga idempotency guard.
func AcquireOnce(ctx context.Context, key string, ttlSeconds int) bool {
	rdb := GetRedisClient()
	if rdb == nil {
		return true
	}
	ok, err := rdb.SetNX(ctx, key, "1", time.Duration(ttlSeconds)*time.Second).Result()
	if err != nil {
		log.Printf("[redis] SetNX failed for %s: %s\n", key, err.Error())
		return true
	}
	return ok
}
