package store

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/appusage/internal/database"
)

// =============================================================================
// 🗄️ 仓储公共部分
// =============================================================================

// base 持有连接池并把每个操作包装为一次带锁重试的作用域借用
type base struct {
	pool   *database.Pool
	logger *zap.Logger
}

func newBase(pool *database.Pool, logger *zap.Logger, component string) base {
	if logger == nil {
		logger = zap.NewNop()
	}
	return base{
		pool:   pool,
		logger: logger.With(zap.String("component", component)),
	}
}

// run 借出连接、绑定 GORM 并执行 fn。
// fn 可能因锁竞争被多次调用，不能在闭包外累积副作用。
func (b base) run(ctx context.Context, op string, fn func(db *gorm.DB) error) error {
	err := b.pool.ExecuteWithRetry(ctx, op, func(ctx context.Context, c *database.Conn) error {
		db, err := c.Gorm(ctx)
		if err != nil {
			return err
		}
		return fn(db)
	})
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// page 在同一连接上统计总数并读取一页
func page[T any](db *gorm.DB, order string, limit, offset int) (Page[T], error) {
	var p Page[T]
	db = db.Session(&gorm.Session{})
	if err := db.Model(new(T)).Count(&p.Total).Error; err != nil {
		return p, err
	}
	p.Items = make([]T, 0, limit)
	err := db.Order(order).Limit(limit).Offset(offset).Find(&p.Items).Error
	return p, err
}

func notFoundIfZero(res *gorm.DB) error {
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
