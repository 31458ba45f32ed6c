// Package response writes the JSON envelope shared by every HTTP endpoint.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Body is the standard API response envelope.
type Body struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// OK sends a 200 JSON response with data.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Body{Success: true, Data: data})
}

// Error sends status with a failure envelope and stops the handler chain.
func Error(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, Body{Success: false, Error: msg})
}

// BadRequest sends 400.
func BadRequest(c *gin.Context, msg string) { Error(c, http.StatusBadRequest, msg) }

// Unauthorized sends 401.
func Unauthorized(c *gin.Context, msg string) { Error(c, http.StatusUnauthorized, msg) }

// Forbidden sends 403.
func Forbidden(c *gin.Context, msg string) { Error(c, http.StatusForbidden, msg) }

// NotFound sends 404.
func NotFound(c *gin.Context, msg string) { Error(c, http.StatusNotFound, msg) }

// Internal sends 500. msg goes to the client as is; keep store errors out of it.
func Internal(c *gin.Context, msg string) { Error(c, http.StatusInternalServerError, msg) }
