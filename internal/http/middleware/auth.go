package middleware

import (
	"net/http"

	"companion_gateway/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	HeaderAccount = "x-sec-account"
	HeaderToken   = "x-sec-token"
)

// Auth verifies the x-sec-account / x-sec-token header pair and puts the
// resolved profile into the context. Failures answer inside the envelope
// with code 10401.
func Auth(auth *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		account := c.GetHeader(HeaderAccount)
		token := c.GetHeader(HeaderToken)
		if account == "" || token == "" {
			abortUnauthorized(c)
			return
		}

		claims, err := auth.VerifyToken(c.Request.Context(), account, token)
		if err != nil {
			abortUnauthorized(c)
			return
		}
		user, err := auth.ResolveUser(c.Request.Context(), claims)
		if err != nil {
			abortUnauthorized(c)
			return
		}

		c.Set("user", user)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusOK, gin.H{"code": 10401, "msg": "unauthorized", "data": nil})
}
