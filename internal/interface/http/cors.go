package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	corsMethods = "GET, POST, DELETE, OPTIONS"
	corsHeaders = "Content-Type, Authorization"
)

// corsMiddleware echoes the request origin when it is allow-listed. An empty
// list or a "*" entry allows any origin.
func corsMiddleware(allowed []string) gin.HandlerFunc {
	wildcard := len(allowed) == 0
	origins := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		if origin == "*" {
			wildcard = true
		}
		origins[strings.ToLower(origin)] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		h := c.Writer.Header()
		switch {
		case wildcard:
			h.Set("Access-Control-Allow-Origin", "*")
		case origin != "":
			if _, ok := origins[strings.ToLower(origin)]; ok {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
			}
		}
		h.Set("Access-Control-Allow-Methods", corsMethods)
		h.Set("Access-Control-Allow-Headers", corsHeaders)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
