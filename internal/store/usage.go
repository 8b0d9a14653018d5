package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/appusage/internal/database"
)

// UsageStore app_usage 表仓储
type UsageStore struct {
	base
}

// NewUsageStore 创建使用记录仓储
func NewUsageStore(pool *database.Pool, logger *zap.Logger) *UsageStore {
	return &UsageStore{base: newBase(pool, logger, "usage_store")}
}

// Create 插入一条新记录并回填 ID
func (s *UsageStore) Create(ctx context.Context, u *AppUsage) error {
	if err := validateUsage(u); err != nil {
		return err
	}
	row := *u
	err := s.run(ctx, "create_usage", func(db *gorm.DB) error {
		row.ID = 0
		return db.Create(&row).Error
	})
	if err != nil {
		return err
	}
	*u = row
	s.logger.Debug("usage created", zap.Int64("id", u.ID), zap.String("user", u.User))
	return nil
}

// Upsert 按 (user, application_name, log_date) 合并记录：
// 已存在时累加时长并覆盖版本信息，否则插入。返回最终记录。
func (s *UsageStore) Upsert(ctx context.Context, u *AppUsage) error {
	if err := validateUsage(u); err != nil {
		return err
	}

	var result AppUsage
	err := s.run(ctx, "upsert_usage", func(db *gorm.DB) error {
		// 先写后读：写语句在事务开始即取得写锁，避免读快照过期导致的升级失败
		return db.Transaction(func(tx *gorm.DB) error {
			key := tx.Where("user = ? AND application_name = ? AND log_date = ?",
				u.User, u.ApplicationName, u.LogDate)
			res := key.Session(&gorm.Session{}).Model(&AppUsage{}).Updates(map[string]any{
				"monitor_app_version": u.MonitorAppVersion,
				"platform":            u.Platform,
				"application_version": u.ApplicationVersion,
				"legacy_app":          u.LegacyApp,
				"duration_seconds":    gorm.Expr("duration_seconds + ?", u.DurationSeconds),
				"updated_at":          time.Now(),
			})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				result = *u
				result.ID = 0
				return tx.Create(&result).Error
			}
			return key.Session(&gorm.Session{}).Order("id").Take(&result).Error
		})
	})
	if err != nil {
		return err
	}
	*u = result
	return nil
}

// Get 按 ID 读取
func (s *UsageStore) Get(ctx context.Context, id int64) (*AppUsage, error) {
	var u AppUsage
	err := s.run(ctx, "get_usage", func(db *gorm.DB) error {
		err := db.Take(&u, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// List 按 log_date、id 倒序分页
func (s *UsageStore) List(ctx context.Context, limit, offset int) (Page[AppUsage], error) {
	limit, offset = normalizePage(limit, offset)
	var p Page[AppUsage]
	err := s.run(ctx, "list_usage", func(db *gorm.DB) error {
		var err error
		p, err = page[AppUsage](db, "log_date DESC, id DESC", limit, offset)
		return err
	})
	return p, err
}

// ListByUser 列出单个用户的记录
func (s *UsageStore) ListByUser(ctx context.Context, user string, limit, offset int) (Page[AppUsage], error) {
	limit, offset = normalizePage(limit, offset)
	var p Page[AppUsage]
	err := s.run(ctx, "list_usage_by_user", func(db *gorm.DB) error {
		var err error
		p, err = page[AppUsage](db.Where("user = ?", user), "log_date DESC, id DESC", limit, offset)
		return err
	})
	return p, err
}

// Update 覆盖除 ID、创建时间之外的全部字段
func (s *UsageStore) Update(ctx context.Context, u *AppUsage) error {
	if u.ID == 0 {
		return ErrNotFound
	}
	if err := validateUsage(u); err != nil {
		return err
	}
	return s.run(ctx, "update_usage", func(db *gorm.DB) error {
		return notFoundIfZero(db.Model(&AppUsage{ID: u.ID}).
			Select("*").Omit("id", "created_at").
			Updates(u))
	})
}

// Delete 按 ID 删除
func (s *UsageStore) Delete(ctx context.Context, id int64) error {
	return s.run(ctx, "delete_usage", func(db *gorm.DB) error {
		return notFoundIfZero(db.Delete(&AppUsage{}, "id = ?", id))
	})
}

func validateUsage(u *AppUsage) error {
	if u == nil {
		return fmt.Errorf("%w: nil usage", ErrInvalid)
	}
	fields := []struct {
		name  string
		value string
		max   int
	}{
		{"monitor_app_version", u.MonitorAppVersion, 50},
		{"platform", u.Platform, 50},
		{"user", u.User, 100},
		{"application_name", u.ApplicationName, 100},
		{"application_version", u.ApplicationVersion, 50},
	}
	for _, f := range fields {
		if f.value == "" {
			return fmt.Errorf("%w: %s is required", ErrInvalid, f.name)
		}
		if len(f.value) > f.max {
			return fmt.Errorf("%w: %s exceeds %d characters", ErrInvalid, f.name, f.max)
		}
	}
	if _, err := time.Parse(time.DateOnly, u.LogDate); err != nil {
		return fmt.Errorf("%w: log_date must be YYYY-MM-DD", ErrInvalid)
	}
	if u.DurationSeconds < 0 {
		return fmt.Errorf("%w: duration_seconds must be non-negative", ErrInvalid)
	}
	return nil
}
