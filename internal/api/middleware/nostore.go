package middleware

import "github.com/gin-gonic/gin"

// NoStore marks responses as uncacheable so every poll reaches the server.
func NoStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store, no-cache, must-revalidate")
		c.Header("Pragma", "no-cache")
		c.Header("Expires", "0")
		c.Next()
	}
}
