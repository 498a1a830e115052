package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// LimiterPrefix namespaces limiter keys in shared stores.
const LimiterPrefix = "statsbot:limiter"

// NewLimiterStore returns a Redis-backed limiter store when redisURL is set,
// so several instances share one budget, and an in-memory store otherwise.
// The returned close function releases the Redis client.
func NewLimiterStore(redisURL string) (limiter.Store, func() error, error) {
	if redisURL == "" {
		return memory.NewStoreWithOptions(limiter.StoreOptions{Prefix: LimiterPrefix}), func() error { return nil }, nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	store, err := sredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: LimiterPrefix})
	if err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("create redis limiter store: %w", err)
	}
	return store, client.Close, nil
}

// NewRateLimiter creates a Gin middleware allowing requests per period for
// each client IP. A nil store uses process memory.
func NewRateLimiter(requests int64, period time.Duration, store limiter.Store) (gin.HandlerFunc, error) {
	if requests <= 0 {
		return nil, fmt.Errorf("invalid rate limit %d: must be positive", requests)
	}
	if period <= 0 {
		return nil, fmt.Errorf("invalid rate limit period %s: must be positive", period)
	}

	rate := limiter.Rate{
		Period: period,
		Limit:  requests,
	}

	if store == nil {
		store = memory.NewStore()
	}
	instance := limiter.New(store, rate)

	middleware := mgin.NewMiddleware(instance)
	return middleware, nil
}
