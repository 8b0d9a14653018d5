package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// =============================================================================
// 🔌 连接句柄
// =============================================================================

// Conn 连接句柄：独占一个底层 SQLite 连接。
// 空闲时归连接池所有，借出后只归一个调用方所有，二者不会同时成立。
type Conn struct {
	id        string
	native    *sql.Conn
	createdAt time.Time

	// 以下字段由 Pool.mu 保护
	lastUsedAt time.Time
	inUse      bool

	gormOnce sync.Once
	gormDB   *gorm.DB
	gormErr  error

	closeOnce sync.Once
	closeErr  error
}

func newConn(native *sql.Conn, now time.Time) *Conn {
	return &Conn{
		id:         uuid.NewString(),
		native:     native,
		createdAt:  now,
		lastUsedAt: now,
	}
}

// ID 返回句柄标识
func (c *Conn) ID() string { return c.id }

// CreatedAt 返回创建时间
func (c *Conn) CreatedAt() time.Time { return c.createdAt }

// ExecContext 在当前连接上执行语句
func (c *Conn) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.native.ExecContext(ctx, query, args...)
}

// QueryContext 在当前连接上执行查询
func (c *Conn) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.native.QueryContext(ctx, query, args...)
}

// QueryRowContext 在当前连接上执行单行查询
func (c *Conn) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return c.native.QueryRowContext(ctx, query, args...)
}

// BeginTx 在当前连接上开启事务
func (c *Conn) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	return c.native.BeginTx(ctx, opts)
}

// Gorm 返回绑定在当前连接上的 GORM 实例。
// 返回值只能在句柄借出期间使用。
func (c *Conn) Gorm(ctx context.Context) (*gorm.DB, error) {
	c.gormOnce.Do(func() {
		c.gormDB, c.gormErr = gorm.Open(&sqlite.Dialector{Conn: c.native}, &gorm.Config{
			Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
			SkipDefaultTransaction: true,
		})
		if c.gormErr != nil {
			c.gormErr = fmt.Errorf("bind gorm to connection %s: %w", c.id, c.gormErr)
		}
	})
	if c.gormErr != nil {
		return nil, c.gormErr
	}
	return c.gormDB.WithContext(ctx), nil
}

// close 关闭底层连接，可重复调用
func (c *Conn) close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.native.Close()
	})
	return c.closeErr
}

// applyPragmas 在新连接上执行 PRAGMA
func applyPragmas(ctx context.Context, native *sql.Conn, pragmas []string) error {
	for _, pragma := range pragmas {
		if _, err := native.ExecContext(ctx, "PRAGMA "+pragma); err != nil {
			return fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}
	return nil
}
