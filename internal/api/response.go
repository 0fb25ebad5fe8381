package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"talentvault/internal/errcode"
)

// Error writes a plain error payload with a business error code.
func Error(c *gin.Context, status, code int, msg string) {
	c.JSON(status, gin.H{"code": code, "error": msg})
}

func AbortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
}

func Unauthorized(c *gin.Context) {
	Error(c, http.StatusUnauthorized, errcode.SystemError, "unauthorized")
}

func BadRequest(c *gin.Context, msg string) {
	Error(c, http.StatusBadRequest, errcode.SystemError, msg)
}

func NotFound(c *gin.Context, msg string) {
	Error(c, http.StatusNotFound, errcode.NotFound, msg)
}

func Conflict(c *gin.Context, code int, msg string) {
	Error(c, http.StatusConflict, code, msg)
}

func Internal(c *gin.Context, msg string) {
	Error(c, http.StatusInternalServerError, errcode.SystemError, msg)
}
