package middleware

import (
	"net"
	"net/http"
	"strings"

	"snaplink/internal/services"

	"github.com/gin-gonic/gin"
)

// ClientIP prefers the Cloudflare header when it holds a valid address, then
// gin's view of the client (which honours X-Forwarded-For from trusted proxies).
func ClientIP(c *gin.Context) string {
	if ip := net.ParseIP(strings.TrimSpace(c.GetHeader("CF-Connecting-IP"))); ip != nil {
		return ip.String()
	}
	return c.ClientIP()
}

func RateLimit(limiter *services.IPRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(ClientIP(c)) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded. Please try again later.",
			})
			return
		}
		c.Next()
	}
}
