package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CORS sets cross-origin headers for the dashboard and tutor consoles.
// An empty list or a "*" entry allows every origin.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = true
	}
	return func(c *gin.Context) {
		if o := allowOrigin(origins, c.GetHeader("Origin")); o != "" {
			c.Header("Access-Control-Allow-Origin", o)
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Max-Age", "86400")
			if o != "*" {
				c.Header("Vary", "Origin")
			}
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func allowOrigin(origins map[string]bool, origin string) string {
	switch {
	case len(origins) == 0 || origins["*"]:
		return "*"
	case origin != "" && origins[origin]:
		return origin
	}
	return ""
}
