package utils

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"healthreach-server/internal/apperr"
)

// ResponseData represents the structure of a standard API response.
type ResponseData struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    interface{}       `json:"data,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// Success sends a standard success response.
func Success(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, ResponseData{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Created sends a standard resource created response.
func Created(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusCreated, ResponseData{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Error sends a standard error response.
func Error(c *gin.Context, statusCode int, message string, fields map[string]string) {
	c.AbortWithStatusJSON(statusCode, ResponseData{
		Success: false,
		Message: message,
		Errors:  fields,
	})
}

// RespondError maps an application error to its status and envelope.
// Server-side failures are logged by the request logger through c.Error
// and their details are not exposed.
func RespondError(c *gin.Context, err error) {
	_ = c.Error(err)

	status := apperr.HTTPStatus(err)
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		Error(c, http.StatusInternalServerError, "Internal server error", nil)
		return
	}
	message := appErr.Message
	if status >= http.StatusInternalServerError && message == "" {
		message = "Internal server error"
	}
	Error(c, status, message, appErr.Fields)
}

// Unauthorized sends a 401 Unauthorized error response.
func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, message, nil)
}

// Forbidden sends a 403 Forbidden error response.
func Forbidden(c *gin.Context, message string) {
	Error(c, http.StatusForbidden, message, nil)
}

// NotFound sends a 404 Not Found error response.
func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, message, nil)
}
