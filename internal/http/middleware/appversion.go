package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const HeaderAppVersion = "app-version"

// AppVersion rejects clients running a stale build with code 200001 so they
// prompt an upgrade. skip disables the check wholesale (dev environments).
func AppVersion(required string, skip bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if skip {
			c.Next()
			return
		}
		if c.GetHeader(HeaderAppVersion) != required {
			c.AbortWithStatusJSON(http.StatusOK, gin.H{
				"code": 200001,
				"msg":  "app upgrade required",
				"data": gin.H{"required_version": required},
			})
			return
		}
		c.Next()
	}
}
