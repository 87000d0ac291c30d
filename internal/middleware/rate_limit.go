package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"civic-reporter/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateLimiter is an in-process sliding window keyed by user id, or client IP
// for anonymous requests.
type RateLimiter struct {
	requests map[string][]time.Time
	mutex    sync.Mutex
	limit    int
	window   time.Duration
	now      func() time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		now:      time.Now,
	}
}

// StartCleanup prunes idle keys until ctx is cancelled.
func (rl *RateLimiter) StartCleanup(ctx context.Context, every time.Duration) {
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Allow records a hit for key and reports whether it fits the window.
// retryAfter is how long until the oldest hit expires. A non-positive limit disables limiting.
func (rl *RateLimiter) Allow(key string) (allowed bool, retryAfter time.Duration) {
	if rl.limit <= 0 {
		return true, 0
	}

	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := rl.now()
	cutoff := now.Add(-rl.window)

	var validRequests []time.Time
	for _, reqTime := range rl.requests[key] {
		if reqTime.After(cutoff) {
			validRequests = append(validRequests, reqTime)
		}
	}

	if len(validRequests) >= rl.limit {
		rl.requests[key] = validRequests
		return false, validRequests[0].Add(rl.window).Sub(now)
	}

	rl.requests[key] = append(validRequests, now)
	return true, 0
}

func (rl *RateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, retryAfter := rl.Allow(limiterKey(c))
		if !allowed {
			tooManyRequests(c, retryAfter)
			return
		}
		c.Next()
	}
}

func (rl *RateLimiter) cleanup() {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	cutoff := rl.now().Add(-rl.window)
	for key, requests := range rl.requests {
		var validRequests []time.Time
		for _, reqTime := range requests {
			if reqTime.After(cutoff) {
				validRequests = append(validRequests, reqTime)
			}
		}

		if len(validRequests) == 0 {
			delete(rl.requests, key)
		} else {
			rl.requests[key] = validRequests
		}
	}
}

// RedisRateLimiter is a fixed window counter shared by every instance.
// The window starts at a key's first hit.
type RedisRateLimiter struct {
	client   *redis.Client
	prefix   string
	limit    int
	window   time.Duration
	fallback *RateLimiter
}

// NewRedisRateLimiter falls back to the in-process limiter whenever Redis is unreachable.
func NewRedisRateLimiter(client *redis.Client, prefix string, limit int, window time.Duration) *RedisRateLimiter {
	return &RedisRateLimiter{
		client:   client,
		prefix:   prefix,
		limit:    limit,
		window:   window,
		fallback: NewRateLimiter(limit, window),
	}
}

func (rl *RedisRateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.limit <= 0 {
			c.Next()
			return
		}

		key := limiterKey(c)
		ctx := c.Request.Context()
		redisKey := rl.prefix + ":" + key

		count, err := rl.client.Incr(ctx, redisKey).Result()
		if err != nil {
			logger.WithError(err, "rate_limit").Warn("Redis unavailable, using local limiter")
			if allowed, retryAfter := rl.fallback.Allow(key); !allowed {
				tooManyRequests(c, retryAfter)
				return
			}
			c.Next()
			return
		}

		if count == 1 {
			if err := rl.client.Expire(ctx, redisKey, rl.window).Err(); err != nil {
				logger.WithError(err, "rate_limit").Warn("Failed to set rate limit TTL")
			}
		}

		if count > int64(rl.limit) {
			retryAfter, err := rl.client.TTL(ctx, redisKey).Result()
			if err != nil || retryAfter < 0 {
				retryAfter = rl.window
			}
			tooManyRequests(c, retryAfter)
			return
		}

		c.Next()
	}
}

func limiterKey(c *gin.Context) string {
	if id, ok := CurrentUserID(c); ok {
		return "user:" + id.Hex()
	}
	return "ip:" + c.ClientIP()
}

func tooManyRequests(c *gin.Context, retryAfter time.Duration) {
	seconds := int(math.Ceil(retryAfter.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	c.Header("Retry-After", strconv.Itoa(seconds))
	c.JSON(http.StatusTooManyRequests, gin.H{
		"error":       "Rate limit exceeded. Please try again later.",
		"retry_after": seconds,
	})
	c.Abort()
}
