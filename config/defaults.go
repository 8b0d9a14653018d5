// =============================================================================
// 📦 appusage 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import (
	"time"

	"github.com/BaSui01/appusage/internal/cache"
	"github.com/BaSui01/appusage/internal/database"
)

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server:      DefaultServerConfig(),
		Database:    DefaultDatabaseConfig(),
		Metrics:     DefaultMetricsConfig(),
		Log:         DefaultLogConfig(),
		Telemetry:   DefaultTelemetryConfig(),
		Cache:       DefaultCacheConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "127.0.0.1",
		HTTPPort:        8000,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 15 * time.Second,
	}
}

// DefaultDatabaseConfig 返回默认数据库配置，与 database.DefaultConfig 保持一致
func DefaultDatabaseConfig() DatabaseConfig {
	pool := database.DefaultConfig()
	return DatabaseConfig{
		Path:           pool.Path,
		MaxConnections: pool.MaxConnections,
		MinIdle:        pool.MinIdle,
		BusyTimeout:    pool.BusyTimeout,
		GracePeriod:    pool.GracePeriod,
		IdleTimeout:    pool.IdleTimeout,
		Pragmas:        pool.Pragmas,
		Retry: RetryConfig{
			MaxAttempts:  pool.Retry.MaxAttempts,
			InitialDelay: pool.Retry.InitialDelay,
			MaxDelay:     pool.Retry.MaxDelay,
			Multiplier:   pool.Retry.Multiplier,
			Jitter:       pool.Retry.Jitter,
		},
	}
}

// DefaultMetricsConfig 返回默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:   true,
		Namespace: "appusage",
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "appusage",
		SampleRate:   0.1,
	}
}

// DefaultCacheConfig 返回默认缓存配置，默认关闭
func DefaultCacheConfig() CacheConfig {
	c := cache.DefaultConfig()
	return CacheConfig{
		Enabled:             false,
		Addr:                c.Addr,
		DB:                  c.DB,
		KeyPrefix:           c.KeyPrefix,
		DefaultTTL:          c.DefaultTTL,
		PoolSize:            c.PoolSize,
		HealthCheckInterval: c.HealthCheckInterval,
	}
}
