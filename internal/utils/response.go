package utils

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// APIResponse 统一API响应格式
type APIResponse struct {
	Success   bool        `json:"success"`
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data"`
	Timestamp string      `json:"timestamp"`
}

// Success 返回成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{
		Success:   true,
		Code:      "0",
		Message:   "success",
		Data:      data,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// FailWithCode 返回指定错误码的失败响应
func FailWithCode(c *gin.Context, code string, message string, statusCode int) {
	c.JSON(statusCode, APIResponse{
		Success:   false,
		Code:      code,
		Message:   message,
		Data:      nil,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// BadRequest 返回400响应
func BadRequest(c *gin.Context, code, message string) {
	FailWithCode(c, code, message, http.StatusBadRequest)
}

// NotFound 返回404响应
func NotFound(c *gin.Context, code, message string) {
	if message == "" {
		message = "resource not found"
	}
	FailWithCode(c, code, message, http.StatusNotFound)
}

// Conflict 返回409响应
func Conflict(c *gin.Context, code, message string) {
	FailWithCode(c, code, message, http.StatusConflict)
}

// TooManyRequests 返回429响应
func TooManyRequests(c *gin.Context, message string) {
	FailWithCode(c, "4291", message, http.StatusTooManyRequests)
}

// InternalError 返回500响应
func InternalError(c *gin.Context, code, message string) {
	if message == "" {
		message = "internal server error"
	}
	FailWithCode(c, code, message, http.StatusInternalServerError)
}
