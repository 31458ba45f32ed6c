package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/tutorlive/backend/pkg/response"
)

// RequireRole allows only callers whose token carries one of roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		role := c.GetString(ContextUserRole)
		if role == "" {
			response.Unauthorized(c, "missing user context")
			return
		}
		if _, ok := allowed[role]; !ok {
			response.Forbidden(c, "insufficient permissions")
			return
		}
		c.Next()
	}
}
