// internal/server/middleware.go - 中间件定义
package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"index-coordinator/internal/errs"
	"index-coordinator/internal/utils"
	"index-coordinator/pkg/logger"
)

const requestIDHeader = "X-Request-ID"

// RecoveryMiddleware panic恢复中间件
func RecoveryMiddleware(logger logger.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("panic recovered on %s %s: %v", c.Request.Method, c.Request.URL.Path, recovered)
		utils.InternalError(c, errs.ErrInternalServerError, "")
		c.Abort()
	})
}

// RequestIDMiddleware 为每个请求分配ID，客户端携带合法UUID时沿用
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if !utils.IsValidUUID(id) {
			if generated, err := utils.GenerateUUID(); err == nil {
				id = generated
			}
		}
		c.Set(requestIDHeader, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// LoggingMiddleware 请求日志中间件
func LoggingMiddleware(logger logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}

		logger.Info("[GIN] %s %s %d %s %s %s %s",
			c.Request.Method,
			path,
			c.Writer.Status(),
			time.Since(start),
			c.ClientIP(),
			c.GetString(requestIDHeader),
			c.Errors.ByType(gin.ErrorTypePrivate).String(),
		)
	}
}

// SecurityMiddleware 安全中间件
func SecurityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Next()
	}
}

// RateLimitMiddleware 限流中间件，perSecond<=0 时不限流
func RateLimitMiddleware(perSecond int, logger logger.Logger) gin.HandlerFunc {
	if perSecond <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	limiter := rate.NewLimiter(rate.Limit(perSecond), perSecond)
	return func(c *gin.Context) {
		if !limiter.Allow() {
			logger.Warn("rate limit exceeded: %s %s", c.Request.Method, c.Request.URL.Path)
			utils.TooManyRequests(c, "too many requests")
			c.Abort()
			return
		}
		c.Next()
	}
}

func notFoundHandler(c *gin.Context) {
	utils.FailWithCode(c, errs.ErrBadRequest, "endpoint not found", http.StatusNotFound)
}

func noMethodHandler(c *gin.Context) {
	utils.FailWithCode(c, errs.ErrBadRequest, "method not allowed", http.StatusMethodNotAllowed)
}
