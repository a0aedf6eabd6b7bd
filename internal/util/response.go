package util

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// business error codes carried in every error body
const (
	CodeInvalidParam = 40001
	CodeAuth         = 40101
	CodeNotFound     = 40401
	CodeServerErr    = 50001
)

// Success writes data as the response body with status 200.
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// Error writes the {"code", "message"} error body.
func Error(c *gin.Context, httpStatus int, code int, msg string) {
	c.JSON(httpStatus, gin.H{
		"code":    code,
		"message": msg,
	})
}

// Abort is Error for middleware: it also stops the handler chain.
func Abort(c *gin.Context, httpStatus int, code int, msg string) {
	c.AbortWithStatusJSON(httpStatus, gin.H{
		"code":    code,
		"message": msg,
	})
}
