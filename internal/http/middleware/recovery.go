package middleware

import (
	"net/http"

	"companion_gateway/internal/logger"

	"github.com/gin-gonic/gin"
)

// Recovery turns panics into a 10500 envelope instead of a dropped
// connection.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered", "path", c.FullPath(), "panic", r)
				c.AbortWithStatusJSON(http.StatusOK, gin.H{"code": 10500, "msg": "internal error", "data": nil})
			}
		}()
		c.Next()
	}
}
