// Package http 实现证明服务的HTTP API层
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"

	"github.com/umbra-protocol/prover/internal/api/http/handlers"
	"github.com/umbra-protocol/prover/internal/api/http/middleware"
	"github.com/umbra-protocol/prover/internal/config"
	"github.com/umbra-protocol/prover/internal/core/prover"
	"github.com/umbra-protocol/prover/internal/core/ratelimit"
	"github.com/umbra-protocol/prover/pkg/interfaces/infrastructure/log"
)

// Version 服务版本，由构建时注入
var Version = "v1.0.0"

// Server HTTP服务器
type Server struct {
	logger log.Logger
	server *http.Server
	addr   string
}

// NewServer 构建HTTP服务器与路由
func NewServer(
	logger log.Logger,
	opts config.ServerOptions,
	service *prover.Service,
	limiter *ratelimit.Limiter,
	proverMetrics *prover.Metrics,
) *Server {
	l := logger.With("module", "api")

	gin.SetMode(gin.ReleaseMode)
	// 拒绝包含未知字段的请求体：把客户端的字段名拼写错误
	// 在入口处暴露出来，而不是静默丢弃后生成错误的证明
	binding.EnableDecoderDisallowUnknownFields = true

	engine := gin.New()
	engine.Use(ginRecovery(l))
	engine.Use(middleware.RequestLogger(logger))
	engine.Use(middleware.SecurityHeaders())
	engine.Use(middleware.CORS(opts.AllowedOrigins))
	engine.Use(middleware.NewHTTPMetrics().Middleware())

	// 健康与观测端点：不鉴权、不限流
	healthHandler := handlers.NewHealthHandler(service, Version)
	engine.GET("/health", healthHandler.GetHealth)
	engine.GET("/health/live", healthHandler.GetLiveness)
	engine.GET("/health/ready", healthHandler.GetReadiness)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 业务端点：鉴权 + 限流
	auth := middleware.NewAPIKeyAuth(logger, opts.APIKeys)
	proofHandler := handlers.NewProofHandler(logger, service)
	cacheHandler := handlers.NewCacheHandler(service)
	circuitHandler := handlers.NewCircuitHandler(service)

	api := engine.Group("/", auth.Middleware())
	{
		api.POST("/generate-proof",
			middleware.RateLimit(limiter, proverMetrics.RateLimited),
			proofHandler.GenerateProof)
		api.GET("/cache/stats", cacheHandler.GetStats)
		api.GET("/circuit/info", circuitHandler.GetInfo)
	}

	addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
	return &Server{
		logger: l,
		addr:   addr,
		server: &http.Server{
			Addr:         addr,
			Handler:      engine,
			ReadTimeout:  opts.ReadTimeout,
			WriteTimeout: opts.WriteTimeout,
		},
	}
}

// Start 启动HTTP服务（非阻塞）
func (s *Server) Start() error {
	go func() {
		s.logger.Infof("HTTP服务启动: addr=%s", s.addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Errorf("HTTP服务异常退出: %v", err)
		}
	}()
	return nil
}

// Stop 优雅关闭HTTP服务
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("HTTP服务正在关闭")
	return s.server.Shutdown(ctx)
}

// RegisterLifecycle 将服务器挂接到fx生命周期
func RegisterLifecycle(lc fx.Lifecycle, server *Server) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return server.Start()
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			defer cancel()
			return server.Stop(shutdownCtx)
		},
	})
}

// ginRecovery panic恢复中间件，panic写入结构化日志后返回500
func ginRecovery(logger log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("handler panic: %v, path=%s", r, c.Request.URL.Path)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": "internal server error",
				})
			}
		}()
		c.Next()
	}
}
