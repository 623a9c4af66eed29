package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error bodies share one envelope: {"ok":0,"code":N,"message":...}.
func abortWith(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, gin.H{"ok": 0, "code": code, "message": message})
}

// OK sends a 200 response.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Created sends a 201 response.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// BadRequest sends a 400 error response.
func BadRequest(c *gin.Context, message string) {
	abortWith(c, http.StatusBadRequest, message)
}

// NotFound sends a 404 error response.
func NotFound(c *gin.Context) {
	abortWith(c, http.StatusNotFound, "not found")
}

// NotFoundMsg sends a 404 error with a custom message.
func NotFoundMsg(c *gin.Context, message string) {
	abortWith(c, http.StatusNotFound, message)
}

// MethodNotAllowed sends a 405 error response.
func MethodNotAllowed(c *gin.Context) {
	abortWith(c, http.StatusMethodNotAllowed, "method not allowed")
}

// UnprocessableEntity sends a 422 error response.
func UnprocessableEntity(c *gin.Context, message string) {
	abortWith(c, http.StatusUnprocessableEntity, message)
}

// TooManyRequests sends a 429 error response. Callers set Retry-After when
// they know the reset instant.
func TooManyRequests(c *gin.Context, message string) {
	abortWith(c, http.StatusTooManyRequests, message)
}

// InternalError sends a 500 error response.
func InternalError(c *gin.Context, err error) {
	abortWith(c, http.StatusInternalServerError, err.Error())
}

// BadGateway sends a 502 error response for upstream dependency failures.
func BadGateway(c *gin.Context, message string) {
	abortWith(c, http.StatusBadGateway, message)
}

// GatewayTimeout sends a 504 error response for pipeline deadline expiry.
func GatewayTimeout(c *gin.Context, message string) {
	abortWith(c, http.StatusGatewayTimeout, message)
}
