package database

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BaSui01/appusage/internal/retry"
)

// Config 连接池配置
type Config struct {
	// 数据库文件路径
	Path string `yaml:"path" json:"path"`

	// 最大连接数（空闲 + 借出）
	MaxConnections int `yaml:"max_connections" json:"max_connections"`

	// 初始化时预创建的连接数
	MinIdle int `yaml:"min_idle" json:"min_idle"`

	// Acquire 等待空闲连接的最长时间，同时作为 SQLite 的 busy_timeout
	BusyTimeout time.Duration `yaml:"busy_timeout" json:"busy_timeout"`

	// 锁竞争重试策略
	Retry retry.Policy `yaml:"retry" json:"retry"`

	// Close 时等待借出连接归还的宽限期
	GracePeriod time.Duration `yaml:"grace_period" json:"grace_period"`

	// 空闲连接回收阈值，0 表示不回收
	IdleTimeout time.Duration `yaml:"idle_timeout" json:"idle_timeout"`

	// 每个新连接上执行的 PRAGMA（不含 "PRAGMA " 前缀），busy_timeout 默认由 BusyTimeout 生成
	Pragmas []string `yaml:"pragmas" json:"pragmas"`
}

// DefaultConfig 返回默认连接池配置
func DefaultConfig() Config {
	return Config{
		Path:           "database/app_usage.db",
		MaxConnections: 10,
		MinIdle:        1,
		BusyTimeout:    5 * time.Second,
		Retry:          retry.DefaultPolicy(),
		GracePeriod:    5 * time.Second,
		IdleTimeout:    0,
		Pragmas: []string{
			"journal_mode=WAL",
			"foreign_keys=ON",
		},
	}
}

// Validate 校验配置
func (c Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Path) == "" {
		errs = append(errs, errors.New("path is required"))
	}
	if c.Path == ":memory:" {
		errs = append(errs, errors.New("in-memory databases are not shared between connections"))
	}
	if c.MaxConnections <= 0 {
		errs = append(errs, fmt.Errorf("max_connections must be positive, got %d", c.MaxConnections))
	}
	if c.MinIdle < 0 || c.MinIdle > c.MaxConnections {
		errs = append(errs, fmt.Errorf("min_idle must be within [0, %d], got %d", c.MaxConnections, c.MinIdle))
	}
	if c.BusyTimeout <= 0 {
		errs = append(errs, errors.New("busy_timeout must be positive"))
	}
	if c.GracePeriod < 0 {
		errs = append(errs, errors.New("grace_period must not be negative"))
	}
	if c.IdleTimeout < 0 {
		errs = append(errs, errors.New("idle_timeout must not be negative"))
	}

	return errors.Join(errs...)
}

// SessionPragmas 返回新连接上依次执行的 PRAGMA。
// 由 BusyTimeout 生成的 busy_timeout 排在最前，Pragmas 中显式的 busy_timeout 可以覆盖它。
func (c Config) SessionPragmas() []string {
	pragmas := make([]string, 0, len(c.Pragmas)+1)
	pragmas = append(pragmas, fmt.Sprintf("busy_timeout=%d", c.BusyTimeout.Milliseconds()))
	return append(pragmas, c.Pragmas...)
}

// DSN 返回 glebarez/sqlite 驱动使用的连接串
// PRAGMA 在每个连接创建时单独执行，连接串只携带文件路径
func (c Config) DSN() string {
	return c.Path
}
