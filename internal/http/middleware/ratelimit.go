package middleware

import (
	"net/http"
	"strconv"
	"time"

	"companion_gateway/internal/cache"

	"github.com/gin-gonic/gin"
)

// RateLimit is a fixed-window per-IP limiter on the shared cache, fail-open
// when the cache is unreachable.
func RateLimit(c *cache.Client, maxRequests int, window time.Duration) gin.HandlerFunc {
	return func(gc *gin.Context) {
		ident := gc.ClientIP()
		key := "rl:" + strconv.FormatInt(int64(window.Seconds()), 10) + ":" + ident
		ctx := gc.Request.Context()

		val, err := c.Redis().Incr(ctx, key).Result()
		if err != nil {
			gc.Header("X-RateLimit-Error", "cache-error")
			gc.Next()
			return
		}
		if val == 1 {
			c.Redis().Expire(ctx, key, window)
		}

		if val > int64(maxRequests) {
			RLBlocked.WithLabelValues(gc.FullPath()).Inc()
			gc.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		RLRequests.WithLabelValues(gc.FullPath()).Inc()
		gc.Next()
	}
}
