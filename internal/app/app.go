// Package app 基于fx组装证明服务的所有组件
package app

import (
	"context"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	httpapi "github.com/umbra-protocol/prover/internal/api/http"
	"github.com/umbra-protocol/prover/internal/config"
	"github.com/umbra-protocol/prover/internal/core/cache"
	logimpl "github.com/umbra-protocol/prover/internal/core/infrastructure/log"
	auditstore "github.com/umbra-protocol/prover/internal/core/infrastructure/storage/badger"
	"github.com/umbra-protocol/prover/internal/core/prover"
	"github.com/umbra-protocol/prover/internal/core/ratelimit"
	logiface "github.com/umbra-protocol/prover/pkg/interfaces/infrastructure/log"
)

// New 构建完整的fx应用
//
// 启动顺序由依赖关系决定：配置 → 日志 → 电路预热 → 存储/缓存/限流 → HTTP。
// 电路编译和可信设置加载发生在OnStart阶段，HTTP端口在预热完成后才开始监听。
func New(configPath string) *fx.App {
	return fx.New(
		fx.Provide(
			func() (*config.Options, error) { return config.Load(configPath) },
			newLogger,
			newCircuitManager,
			newEngine,
			newCache,
			newLimiter,
			newAuditSink,
			newServer,
			prover.NewValidator,
			prover.NewPreVerifier,
			prover.NewMetrics,
			prover.NewService,
		),
		fx.Invoke(
			registerCircuitWarmup,
			httpapi.RegisterLifecycle,
		),
		fx.WithLogger(func(logger logiface.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger.GetZapLogger().WithOptions(zap.IncreaseLevel(zap.WarnLevel))}
		}),
	)
}

// Run 运行应用直到收到停止信号
func Run(configPath string) error {
	app := New(configPath)
	if err := app.Err(); err != nil {
		return fmt.Errorf("依赖装配失败: %w", err)
	}
	app.Run()
	return nil
}

// ==================== 构造函数 ====================

func newLogger(lc fx.Lifecycle, opts *config.Options) (logiface.Logger, error) {
	logger, err := logimpl.New(opts.Log)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			// stdout上的Sync在部分平台返回EINVAL，忽略
			_ = logger.Sync()
			return nil
		},
	})
	return logger, nil
}

func newCircuitManager(logger logiface.Logger, opts *config.Options) *prover.CircuitManager {
	return prover.NewCircuitManager(logger, opts.Prover)
}

func newEngine(logger logiface.Logger, circuits *prover.CircuitManager, opts *config.Options) *prover.Engine {
	return prover.NewEngine(logger, circuits, opts.Prover)
}

func newCache(lc fx.Lifecycle, logger logiface.Logger, opts *config.Options) (*cache.ProofCache, error) {
	proofCache, err := cache.New(logger, opts.Cache)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error { return proofCache.Close() },
	})
	return proofCache, nil
}

func newLimiter(lc fx.Lifecycle, logger logiface.Logger, opts *config.Options) *ratelimit.Limiter {
	limiter := ratelimit.NewLimiter(logger, opts.RateLimit)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			limiter.Stop()
			return nil
		},
	})
	return limiter
}

// newAuditSink 审计存储，禁用时返回nil sink（Service对nil做短路）
func newAuditSink(lc fx.Lifecycle, logger logiface.Logger, opts *config.Options) (prover.AuditSink, error) {
	if !opts.Audit.Enabled {
		logger.Warn("审计存储已禁用")
		return nil, nil
	}
	store, err := auditstore.NewAuditStore(logger, opts.Audit)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error { return store.Close() },
	})
	return store, nil
}

func newServer(
	logger logiface.Logger,
	opts *config.Options,
	service *prover.Service,
	limiter *ratelimit.Limiter,
	metrics *prover.Metrics,
) *httpapi.Server {
	return httpapi.NewServer(logger, opts.Server, service, limiter, metrics)
}

// registerCircuitWarmup 在OnStart阶段完成电路编译与可信设置加载
func registerCircuitWarmup(lc fx.Lifecycle, circuits *prover.CircuitManager) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return circuits.Prepare()
		},
	})
}
