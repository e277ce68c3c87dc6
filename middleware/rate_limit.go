package middleware

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	apperrors "github.com/watchroom/watchroom-backend/errors"
	"github.com/watchroom/watchroom-backend/logger"
)

// DeviceIDHeader carries the caller's device id when it is not in the query or body.
const DeviceIDHeader = "X-Device-ID"

// BallotRateLimiter caps ballot submissions per device (or client IP when no
// device id is sent) with a Redis fixed window. The IP honours the engine's
// trusted proxies. Redis failures let the request through.
func BallotRateLimiter(redisClient *redis.Client, limit int, window time.Duration) gin.HandlerFunc {
	log := logger.GetLogger().Named("rate_limit")

	return func(c *gin.Context) {
		key := ballotRateKey(c)
		ctx := c.Request.Context()

		pipe := redisClient.TxPipeline()
		incr := pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, window)
		if _, err := pipe.Exec(ctx); err != nil {
			log.Warnw("Rate limit check failed, allowing request", "error", err)
			c.Next()
			return
		}

		count := incr.Val()
		if count > int64(limit) {
			ttl, err := redisClient.TTL(ctx, key).Result()
			if err != nil || ttl <= 0 {
				ttl = window
			}

			c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", strconv.Itoa(int(ttl.Seconds())))

			_ = c.Error(apperrors.RateLimitExceeded("Too many ballots. Please try again later.", int(ttl.Seconds())))
			c.Abort()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(max(limit-int(count), 0)))

		c.Next()
	}
}

func ballotRateKey(c *gin.Context) string {
	if deviceID := strings.TrimSpace(c.GetHeader(DeviceIDHeader)); deviceID != "" {
		return fmt.Sprintf("ratelimit:ballot:device:%s", deviceID)
	}
	return fmt.Sprintf("ratelimit:ballot:ip:%s", c.ClientIP())
}
