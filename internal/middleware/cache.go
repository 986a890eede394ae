package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
)

// Cache marks GET responses as publicly cacheable for maxAge seconds. Used
// on the waiting-room display and the questionnaire catalog.
func Cache(maxAge int) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == "GET" && maxAge > 0 {
			c.Header("Cache-Control", fmt.Sprintf("public, max-age=%d", maxAge))
		}
		c.Next()
	}
}

// NoStore keeps clinical data out of shared caches.
func NoStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}
