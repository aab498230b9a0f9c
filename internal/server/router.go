// internal/server/router.go - 路由配置和服务器初始化
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"index-coordinator/internal/config"
	"index-coordinator/internal/handler"
	"index-coordinator/pkg/logger"
)

// Server 服务器接口
type Server interface {
	Start(addr string) error
	Shutdown(ctx context.Context) error
	Handler() http.Handler
}

// NewServer 创建新的HTTP服务器
// metricsHandler 为空时不注册 /metrics
func NewServer(
	cfg config.ConfigServer,
	adminHandler *handler.AdminHandler,
	metricsHandler http.Handler,
	logger logger.Logger,
) Server {
	gin.SetMode(gin.ReleaseMode)
	s := &server{
		cfg:            cfg,
		engine:         gin.New(),
		adminHandler:   adminHandler,
		metricsHandler: metricsHandler,
		logger:         logger,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

type server struct {
	cfg            config.ConfigServer
	engine         *gin.Engine
	adminHandler   *handler.AdminHandler
	metricsHandler http.Handler
	logger         logger.Logger
	httpServer     *http.Server
}

// Start 启动服务器，阻塞直到服务器关闭
func (s *server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:           addr,
		Handler:        s.engine,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	s.logger.Info("starting HTTP server on %s", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown 优雅关闭服务器
func (s *server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		s.logger.Info("shutting down HTTP server")
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// Handler 返回路由引擎（用于测试）
func (s *server) Handler() http.Handler {
	return s.engine
}

func (s *server) setupMiddleware() {
	s.engine.Use(RecoveryMiddleware(s.logger))
	s.engine.Use(RequestIDMiddleware())
	s.engine.Use(LoggingMiddleware(s.logger))
	s.engine.Use(SecurityMiddleware())
}

func (s *server) setupRoutes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"code":    0,
			"message": "ok",
			"success": true,
			"time":    time.Now().Format(time.RFC3339),
			"version": config.GetAppInfo().Version,
		})
	})

	if s.metricsHandler != nil {
		s.engine.GET("/metrics", gin.WrapH(s.metricsHandler))
	}

	api := s.engine.Group("/api/v1", RateLimitMiddleware(s.cfg.RateLimitPerSecond, s.logger))
	{
		api.GET("/coordinator/status", s.adminHandler.CoordinatorStatus)
		api.GET("/projects", s.adminHandler.ListProjects)
		api.POST("/projects", s.adminHandler.CreateProject)
		api.DELETE("/projects/:key", s.adminHandler.DeleteProject)
		api.GET("/projects/:key/status", s.adminHandler.ProjectStatus)
	}

	s.engine.NoRoute(notFoundHandler)
	s.engine.HandleMethodNotAllowed = true
	s.engine.NoMethod(noMethodHandler)
}
