package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Counter is the Redis subset the limiter needs.
type Counter interface {
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, expiration time.Duration) error
}

// RateLimit allows limit requests per window for each authenticated user on
// the routes it wraps. When Redis is unavailable requests are let through.
func RateLimit(counter Counter, name string, limit int, window time.Duration, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ratelimit:" + name + ":" + UserID(c)
		if UserID(c) == "" {
			key = "ratelimit:" + name + ":ip:" + c.ClientIP()
		}

		ctx := c.Request.Context()
		count, err := counter.Incr(ctx, key)
		if err != nil {
			log.WithError(err).WithField("key", key).Warn("rate limit check failed")
			c.Next()
			return
		}
		if count == 1 {
			if err := counter.Expire(ctx, key, window); err != nil {
				log.WithError(err).WithField("key", key).Warn("rate limit expiry failed")
			}
		}

		remaining := limit - int(count)
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if int(count) > limit {
			c.Header("Retry-After", strconv.Itoa(int(window.Seconds())))
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			c.Abort()
			return
		}
		c.Next()
	}
}
