package database

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// ❌ 错误分类
// =============================================================================

var (
	// ErrSchemaInit Schema 初始化失败（致命）
	ErrSchemaInit = errors.New("schema initialization failed")
	// ErrConnection 数据库文件无法打开或不可达（致命）
	ErrConnection = errors.New("database connection failed")
	// ErrPoolExhausted 等待超过 BusyTimeout 仍无空闲连接（调用方可重试）
	ErrPoolExhausted = errors.New("connection pool exhausted")
	// ErrPoolClosed 连接池已开始关闭（不可重试）
	ErrPoolClosed = errors.New("connection pool is closed")
	// ErrDatabaseLocked 锁竞争重试预算耗尽
	ErrDatabaseLocked = errors.New("database is locked")
	// ErrDatabase 非锁类的底层数据库错误
	ErrDatabase = errors.New("database error")

	errNotInitialized = errors.New("pool not initialized")
)

// SchemaInitError Schema 引导失败
type SchemaInitError struct {
	Path string
	Err  error
}

func (e *SchemaInitError) Error() string {
	return fmt.Sprintf("schema initialization failed for %s: %v", e.Path, e.Err)
}

func (e *SchemaInitError) Unwrap() []error { return []error{ErrSchemaInit, e.Err} }

// ConnectionError 打开底层连接失败
type ConnectionError struct {
	Op   string
	Path string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s: cannot connect to %s: %v", e.Op, e.Path, e.Err)
}

func (e *ConnectionError) Unwrap() []error { return []error{ErrConnection, e.Err} }

// PoolExhaustedError 等待超时
type PoolExhaustedError struct {
	Op             string
	Waited         time.Duration
	MaxConnections int
}

func (e *PoolExhaustedError) Error() string {
	return fmt.Sprintf("%s: connection pool exhausted after waiting %s (max_connections=%d)",
		e.Op, e.Waited.Round(time.Millisecond), e.MaxConnections)
}

func (e *PoolExhaustedError) Unwrap() error { return ErrPoolExhausted }

// DatabaseLockedError 锁竞争重试耗尽
type DatabaseLockedError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *DatabaseLockedError) Error() string {
	return fmt.Sprintf("%s: database still locked after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *DatabaseLockedError) Unwrap() []error { return []error{ErrDatabaseLocked, e.Err} }

// DatabaseError 不可重试的底层错误
type DatabaseError struct {
	Op  string
	Err error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *DatabaseError) Unwrap() []error { return []error{ErrDatabase, e.Err} }

// closedError 附带操作名的 ErrPoolClosed
func closedError(op string) error {
	return fmt.Errorf("%s: %w", op, ErrPoolClosed)
}

// =============================================================================
// 🔍 错误判定
// =============================================================================

// SQLite 结果码
const (
	sqliteBusy   = 5
	sqliteLocked = 6
)

// IsLockError 判断是否为 SQLite 的 busy/locked 瞬时错误
func IsLockError(err error) bool {
	if err == nil {
		return false
	}

	var coded interface{ Code() int }
	if errors.As(err, &coded) {
		// 扩展结果码的低 8 位是主结果码
		switch coded.Code() & 0xff {
		case sqliteBusy, sqliteLocked:
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "sqlite_busy") ||
		strings.Contains(msg, "sqlite_locked")
}

// isBadConn 判断连接是否已损坏，不应回收
func isBadConn(err error) bool {
	return err != nil && errors.Is(err, driver.ErrBadConn)
}
