package main

import (
	"context"
	"flag"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BaSui01/sigflow/api/handlers"
	"github.com/BaSui01/sigflow/checkpoint"
	"github.com/BaSui01/sigflow/config"
	"github.com/BaSui01/sigflow/internal/server"
	"github.com/BaSui01/sigflow/internal/telemetry"
)

// =============================================================================
// 🌐 serve — 检查点巡检 HTTP 服务
// =============================================================================
// 只读服务：健康探针、版本信息、Prometheus 指标、检查点列表与详情。
// 流水线的执行走 CLI（run / resume），HTTP 层不触发任何后端调用。
// =============================================================================

// skipAuthPaths 免认证路径（探针、版本、指标）
var skipAuthPaths = []string{"/healthz", "/readyz", "/version", "/metrics"}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "配置文件路径")
	_ = fs.Parse(args)

	cfg := mustLoadConfig(*configPath)
	logger, level := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	// 后台 goroutine（限流清理、配置热更新）的生命周期
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	providers, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Fatal("telemetry initialization failed", zap.Error(err))
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	store, err := checkpoint.New(checkpointConfig(cfg), logger)
	if err != nil {
		logger.Fatal("checkpoint store initialization failed", zap.Error(err))
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("checkpoint store close failed", zap.Error(err))
		}
	}()

	handler := buildServeHandler(ctx, cfg, store, logger)

	manager := server.NewManager(handler, serverConfig(cfg.Server), logger)
	if err := manager.Start(); err != nil {
		logger.Fatal("HTTP server start failed", zap.Error(err))
	}

	// 配置热更新：目前只跟踪日志级别，其余变更需要重启才生效
	if *configPath != "" {
		startConfigWatcher(ctx, *configPath, cfg, level, logger)
	}

	logger.Info("sigflow server listening",
		zap.String("addr", manager.Addr()),
		zap.String("version", Version),
		zap.Bool("auth", cfg.Server.Auth.Enabled),
		zap.String("checkpoint_store", store.Name()),
	)

	manager.WaitForShutdown()
}

// buildServeHandler 组装路由与中间件链
func buildServeHandler(ctx context.Context, cfg *config.Config, store checkpoint.Store, logger *zap.Logger) http.Handler {
	healthHandler := handlers.NewHealthHandler(logger)
	healthHandler.RegisterCheck(handlers.NewPingCheck("checkpoint-store", func(ctx context.Context) error {
		_, err := store.List(ctx, "")
		return err
	}))

	checkpointsHandler := handlers.NewCheckpointsHandler(store, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", healthHandler.HandleHealthz)
	mux.HandleFunc("GET /readyz", healthHandler.HandleReady)
	mux.Handle("GET /version", healthHandler.HandleVersion(Version, BuildTime, GitCommit))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /api/v1/checkpoints", checkpointsHandler.HandleList)
	mux.HandleFunc("GET /api/v1/checkpoints/{pipeline}/{session}", checkpointsHandler.HandleGet)

	// 中间件顺序：恢复最外层，认证最内层
	chain := []Middleware{
		Recovery(logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(logger),
	}
	if cfg.Server.Rate.RPS > 0 {
		chain = append(chain, RateLimiter(ctx, cfg.Server.Rate.RPS, cfg.Server.Rate.Burst, logger))
	}
	if cfg.Server.Auth.Enabled {
		chain = append(chain, JWTAuth(cfg.Server.Auth, skipAuthPaths, logger))
	}
	return Chain(mux, chain...)
}

// serverConfig 把应用配置映射为服务器管理器配置，零值回退默认
func serverConfig(cfg config.ServerConfig) server.Config {
	sc := server.DefaultConfig()
	if cfg.Addr != "" {
		sc.Addr = cfg.Addr
	}
	if cfg.ReadTimeout > 0 {
		sc.ReadTimeout = cfg.ReadTimeout
		sc.IdleTimeout = 2 * cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		sc.WriteTimeout = cfg.WriteTimeout
	}
	if cfg.ShutdownTimeout > 0 {
		sc.ShutdownTimeout = cfg.ShutdownTimeout
	}
	return sc
}

// startConfigWatcher 监视配置文件，热更新日志级别
func startConfigWatcher(ctx context.Context, configPath string, current *config.Config, level zap.AtomicLevel, logger *zap.Logger) {
	loader := config.NewLoader().
		WithConfigPath(configPath).
		WithValidator(func(c *config.Config) error { return c.Validate() })

	watcher, err := config.NewWatcher(loader, current, config.WithWatcherLogger(logger))
	if err != nil {
		logger.Warn("config watcher unavailable", zap.Error(err))
		return
	}

	watcher.OnReload(func(old, updated *config.Config) {
		if old.Log.Level != updated.Log.Level {
			newLevel := parseLogLevel(updated.Log.Level)
			level.SetLevel(newLevel)
			logger.Info("log level updated",
				zap.String("old", old.Log.Level),
				zap.String("new", updated.Log.Level),
			)
		}
	})

	if err := watcher.Start(ctx); err != nil {
		logger.Warn("config watcher start failed", zap.Error(err))
	}
}
