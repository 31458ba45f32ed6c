package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tutorlive/backend/internal/auth"
	"github.com/tutorlive/backend/pkg/response"
)

const (
	// ContextUserID is the key for user ID in gin context.
	ContextUserID = "user_id"
	// ContextUserRole is the key for user role in gin context.
	ContextUserRole = "user_role"
	// ContextUserName is the key for the display name in gin context.
	ContextUserName = "user_name"
)

// JWT returns a middleware that validates the identity token and sets the
// caller's claims in context.
func JWT(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			response.Unauthorized(c, "missing or invalid authorization header")
			return
		}
		claims, err := jwtService.Validate(token)
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			return
		}
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUserRole, claims.Role)
		c.Set(ContextUserName, claims.Name)
		c.Next()
	}
}

// bearerToken reads the Authorization header, falling back to the token query
// parameter browsers use for WebSocket upgrades.
func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		token := c.Query("token")
		return token, token != ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
