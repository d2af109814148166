package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const bearerTokenKey = "bearerToken"

// Bearer copies an opaque upstream token from "Authorization: Bearer" into
// the gin context. It never rejects: handlers fall back to the request
// body and decide on absence.
func Bearer() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if len(header) > len("Bearer ") && strings.EqualFold(header[:len("Bearer ")], "Bearer ") {
			if token := strings.TrimSpace(header[len("Bearer "):]); token != "" {
				c.Set(bearerTokenKey, token)
			}
		}
		c.Next()
	}
}

// BearerToken returns the token captured by Bearer, or "".
func BearerToken(c *gin.Context) string {
	return c.GetString(bearerTokenKey)
}
