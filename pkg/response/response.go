package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Body is the standard API response envelope.
type Body struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

// OK sends a 200 JSON response with data.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Body{Success: true, Data: data})
}

// OKWithMessage sends a 200 JSON response with a human-readable message.
func OKWithMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Body{Success: true, Message: message, Data: data})
}

// BadRequest sends 400 with error message.
func BadRequest(c *gin.Context, err string) {
	c.JSON(http.StatusBadRequest, Body{Success: false, Error: err})
}

// ValidationFailed sends 400 with field-level details.
func ValidationFailed(c *gin.Context, details interface{}) {
	c.JSON(http.StatusBadRequest, Body{Success: false, Error: "Validation failed", Details: details})
}

// NotFound sends 404.
func NotFound(c *gin.Context, err, message string, details interface{}) {
	c.JSON(http.StatusNotFound, Body{Success: false, Error: err, Message: message, Details: details})
}

// Conflict sends 409.
func Conflict(c *gin.Context, err, message string) {
	c.JSON(http.StatusConflict, Body{Success: false, Error: err, Message: message})
}

// TooManyRequests sends 429 and aborts the chain.
func TooManyRequests(c *gin.Context, err, message string, retryAfterSec int) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, Body{
		Success: false,
		Error:   err,
		Message: message,
		Details: gin.H{"retryAfter": retryAfterSec},
	})
}

// Internal sends 500 with an opaque message.
func Internal(c *gin.Context, err, message string) {
	c.JSON(http.StatusInternalServerError, Body{Success: false, Error: err, Message: message})
}
