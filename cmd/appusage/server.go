package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BaSui01/appusage/config"
	"github.com/BaSui01/appusage/internal/cache"
	"github.com/BaSui01/appusage/internal/database"
	"github.com/BaSui01/appusage/internal/metrics"
	"github.com/BaSui01/appusage/internal/server"
	"github.com/BaSui01/appusage/internal/telemetry"
)

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 组装连接池、指标与 HTTP 服务
type Server struct {
	cfg       *config.Config
	logger    *zap.Logger
	telemetry *telemetry.Providers

	registry         *prometheus.Registry
	metricsCollector *metrics.Collector
	pool             *database.Pool
	cache            *cache.Manager
	httpManager      *server.Manager
}

// NewServer 创建新的服务器实例
func NewServer(cfg *config.Config, logger *zap.Logger, tp *telemetry.Providers) *Server {
	return &Server{
		cfg:       cfg,
		logger:    logger,
		telemetry: tp,
	}
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start 初始化连接池并启动 HTTP 服务器（非阻塞）
func (s *Server) Start() error {
	// 1. 指标
	s.registry = prometheus.NewRegistry()
	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if s.cfg.Metrics.Enabled {
		s.metricsCollector = metrics.NewCollector(s.cfg.Metrics.Namespace, s.registry, s.logger)
	}

	// 2. 连接池
	if err := s.initPool(); err != nil {
		return err
	}

	// 3. 目录缓存（可选，不可用时降级）
	s.cache = openCache(s.cfg.Cache, s.logger)

	// 4. HTTP
	if err := s.startHTTPServer(); err != nil {
		if s.cache != nil {
			_ = s.cache.Close()
		}
		closeCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Database.GracePeriod+time.Second)
		defer cancel()
		_ = s.pool.Close(closeCtx)
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	s.logger.Info("appusage started",
		zap.String("addr", s.httpManager.Addr()),
		zap.String("db_path", s.pool.Path()),
		zap.Bool("metrics_enabled", s.cfg.Metrics.Enabled),
		zap.Bool("cache_enabled", s.cache != nil),
	)
	return nil
}

// openCache 按配置连接 Redis 目录缓存。未启用或连接失败时返回 nil，调用方直接读 SQLite。
func openCache(cfg config.CacheConfig, logger *zap.Logger) *cache.Manager {
	if !cfg.Enabled {
		return nil
	}
	cm, err := cache.NewManager(cfg.ManagerConfig(), logger)
	if err != nil {
		logger.Warn("catalog cache unavailable, continuing without it",
			zap.String("addr", cfg.Addr), zap.Error(err))
		return nil
	}
	return cm
}

func (s *Server) initPool() error {
	opts := []database.Option{
		database.WithTracer(s.telemetry.Tracer("github.com/BaSui01/appusage/internal/database")),
	}
	if s.metricsCollector != nil {
		opts = append(opts, database.WithRecorder(s.metricsCollector))
	}

	pool, err := database.NewPool(s.cfg.Database.PoolConfig(), s.logger, opts...)
	if err != nil {
		return err
	}

	initCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := pool.Initialize(initCtx); err != nil {
		return fmt.Errorf("initialize database pool: %w", err)
	}

	s.pool = pool
	return nil
}

// =============================================================================
// 🌐 HTTP 服务器
// =============================================================================

// routes 构建路由与中间件链
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/ready", s.handleHealth)
	mux.HandleFunc("/version", s.handleVersion)
	if s.cfg.Metrics.Enabled {
		mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry}))
	}

	middlewares := []Middleware{
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		OTelTracing(),
		RequestLogger(s.logger),
	}
	if s.metricsCollector != nil {
		middlewares = append(middlewares, MetricsMiddleware(s.metricsCollector))
	}
	return Chain(mux, middlewares...)
}

func (s *Server) startHTTPServer() error {
	s.httpManager = server.NewManager(s.routes(), server.FromServerConfig(s.cfg.Server), s.logger)

	// HTTP 先停，连接池随后排空，最后刷新遥测
	s.httpManager.OnShutdown("db_pool", s.pool.Close)
	if s.cache != nil {
		s.httpManager.OnShutdown("cache", func(context.Context) error { return s.cache.Close() })
	}
	s.httpManager.OnShutdown("telemetry", s.telemetry.Shutdown)

	return s.httpManager.Start()
}

// =============================================================================
// 🏥 健康检查
// =============================================================================

type healthResponse struct {
	Status  string         `json:"status"`
	Version string         `json:"version"`
	Pool    database.Stats `json:"pool"`
	Cache   *cacheHealth   `json:"cache,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// cacheHealth 缓存状态只用于展示，不影响返回码
type cacheHealth struct {
	Status string       `json:"status"`
	Stats  *cache.Stats `json:"stats,omitempty"`
	Error  string       `json:"error,omitempty"`
}

// handleHealth 连接池 Ready 且探活成功返回 200，否则 503
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:  "ok",
		Version: Version,
	}
	status := http.StatusOK

	if state := s.pool.State(); state != database.StateReady {
		resp.Status = "unavailable"
		resp.Error = "database pool is " + state.String()
		status = http.StatusServiceUnavailable
	} else {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.pool.Ping(ctx); err != nil {
			resp.Status = "unavailable"
			resp.Error = err.Error()
			status = http.StatusServiceUnavailable
		}
	}
	resp.Pool = s.pool.Stats()
	if s.cache != nil {
		resp.Cache = s.cacheHealth(r.Context())
	}

	writeJSON(w, status, resp)
}

func (s *Server) cacheHealth(ctx context.Context) *cacheHealth {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	stats, err := s.cache.GetStats(ctx)
	if err != nil {
		return &cacheHealth{Status: "degraded", Error: err.Error()}
	}
	return &cacheHealth{Status: "ok", Stats: stats}
}

// handleHealthz 进程存活探针，不访问数据库
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version":    Version,
		"build_time": BuildTime,
		"git_commit": GitCommit,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// Wait 阻塞直到收到关闭信号，然后依次关闭 HTTP、连接池与遥测
func (s *Server) Wait() error {
	return s.httpManager.Run(context.Background())
}

// Shutdown 立即执行优雅关闭
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Starting graceful shutdown...")
	err := s.httpManager.Shutdown(ctx)
	s.logger.Info("Graceful shutdown completed")
	return err
}
