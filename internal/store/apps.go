package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/appusage/internal/database"
)

// AppStore app_list 表仓储
type AppStore struct {
	base
	cache    Cache
	cacheTTL time.Duration
}

// Cache 目录读缓存，cache.Manager 实现了该接口
type Cache interface {
	GetJSON(ctx context.Context, key string, dest any) error
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// AppOption 配置 AppStore
type AppOption func(*AppStore)

// WithCache 为 Get 与 Summary 启用读缓存，写操作会失效相关键。
// ttl 为 0 时使用缓存自身的默认过期时间。
func WithCache(c Cache, ttl time.Duration) AppOption {
	return func(s *AppStore) {
		s.cache = c
		s.cacheTTL = ttl
	}
}

// NewAppStore 创建应用目录仓储
func NewAppStore(pool *database.Pool, logger *zap.Logger, opts ...AppOption) *AppStore {
	s := &AppStore{base: newBase(pool, logger, "app_store")}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

const summaryCacheKey = "apps:summary"

func appCacheKey(id int64) string {
	return "apps:" + strconv.FormatInt(id, 10)
}

// cached 先查缓存，未命中时调用 load 并回填。缓存错误只记录日志。
func (s *AppStore) cached(ctx context.Context, key string, dest any, load func() error) error {
	if s.cache == nil {
		return load()
	}
	err := s.cache.GetJSON(ctx, key, dest)
	if err == nil {
		return nil
	}
	s.logger.Debug("catalog cache miss", zap.String("key", key), zap.Error(err))
	if err := load(); err != nil {
		return err
	}
	if err := s.cache.SetJSON(ctx, key, dest, s.cacheTTL); err != nil {
		s.logger.Warn("catalog cache fill failed", zap.String("key", key), zap.Error(err))
	}
	return nil
}

func (s *AppStore) invalidate(ctx context.Context, keys ...string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.logger.Warn("catalog cache invalidation failed", zap.Strings("keys", keys), zap.Error(err))
	}
}

// Summary 应用目录统计
type Summary struct {
	TotalApps        int64            `json:"total_apps"`
	EnabledTracking  int64            `json:"enabled_tracking"`
	DisabledTracking int64            `json:"disabled_tracking"`
	AppTypes         map[string]int64 `json:"app_types"`
	Publishers       map[string]int64 `json:"publishers"` // 前 10 名
}

const topPublishers = 10

// Create 插入一个应用并回填 AppID
func (s *AppStore) Create(ctx context.Context, a *AppList) error {
	if err := validateApp(a); err != nil {
		return err
	}
	row := *a
	err := s.run(ctx, "create_app", func(db *gorm.DB) error {
		row.AppID = 0
		return db.Create(&row).Error
	})
	if err != nil {
		return err
	}
	*a = row
	s.invalidate(ctx, summaryCacheKey)
	return nil
}

// Upsert 按 (app_name, app_type, current_version) 更新或插入
func (s *AppStore) Upsert(ctx context.Context, a *AppList) error {
	if err := validateApp(a); err != nil {
		return err
	}

	var result AppList
	err := s.run(ctx, "upsert_app", func(db *gorm.DB) error {
		return db.Transaction(func(tx *gorm.DB) error {
			key := tx.Where("app_name = ? AND app_type = ? AND current_version = ?",
				a.AppName, a.AppType, a.CurrentVersion)
			res := key.Session(&gorm.Session{}).Model(&AppList{}).Updates(map[string]any{
				"released_date":   a.ReleasedDate,
				"publisher":       a.Publisher,
				"description":     a.Description,
				"download_link":   a.DownloadLink,
				"enable_tracking": a.EnableTracking,
				"track_usage":     a.TrackUsage,
				"track_location":  a.TrackLocation,
				"track_cm":        a.TrackCM,
				"track_intr":      a.TrackIntr,
				"registered_date": a.RegisteredDate,
			})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				result = *a
				result.AppID = 0
				return tx.Create(&result).Error
			}
			return key.Session(&gorm.Session{}).Order("app_id").Take(&result).Error
		})
	})
	if err != nil {
		return err
	}
	*a = result
	s.invalidate(ctx, appCacheKey(a.AppID), summaryCacheKey)
	s.logger.Debug("app upserted", zap.Int64("app_id", a.AppID), zap.String("app_name", a.AppName))
	return nil
}

// Get 按 AppID 读取
func (s *AppStore) Get(ctx context.Context, id int64) (*AppList, error) {
	var a AppList
	err := s.cached(ctx, appCacheKey(id), &a, func() error {
		return s.run(ctx, "get_app", func(db *gorm.DB) error {
			err := db.Take(&a, "app_id = ?", id).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// List 按登记日期、AppID 倒序分页
func (s *AppStore) List(ctx context.Context, limit, offset int) (Page[AppList], error) {
	limit, offset = normalizePage(limit, offset)
	var p Page[AppList]
	err := s.run(ctx, "list_apps", func(db *gorm.DB) error {
		var err error
		p, err = page[AppList](db, "registered_date DESC, app_id DESC", limit, offset)
		return err
	})
	return p, err
}

// ListByName 列出同名应用的全部版本，新版本在前
func (s *AppStore) ListByName(ctx context.Context, name string) ([]AppList, error) {
	apps := make([]AppList, 0)
	err := s.run(ctx, "list_apps_by_name", func(db *gorm.DB) error {
		return db.Where("app_name = ?", name).Order("current_version DESC").Find(&apps).Error
	})
	return apps, err
}

// ListByType 列出某类型的应用，按名称排序
func (s *AppStore) ListByType(ctx context.Context, appType string) ([]AppList, error) {
	apps := make([]AppList, 0)
	err := s.run(ctx, "list_apps_by_type", func(db *gorm.DB) error {
		return db.Where("app_type = ?", appType).Order("app_name").Find(&apps).Error
	})
	return apps, err
}

// Update 覆盖除 AppID 外的全部字段
func (s *AppStore) Update(ctx context.Context, a *AppList) error {
	if a.AppID == 0 {
		return ErrNotFound
	}
	if err := validateApp(a); err != nil {
		return err
	}
	err := s.run(ctx, "update_app", func(db *gorm.DB) error {
		return notFoundIfZero(db.Model(&AppList{AppID: a.AppID}).
			Select("*").Omit("app_id").
			Updates(a))
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, appCacheKey(a.AppID), summaryCacheKey)
	return nil
}

// Delete 按 AppID 删除
func (s *AppStore) Delete(ctx context.Context, id int64) error {
	err := s.run(ctx, "delete_app", func(db *gorm.DB) error {
		return notFoundIfZero(db.Delete(&AppList{}, "app_id = ?", id))
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, appCacheKey(id), summaryCacheKey)
	return nil
}

// Summary 统计目录总数、跟踪开关分布、类型分布与前 10 名发布者
func (s *AppStore) Summary(ctx context.Context) (*Summary, error) {
	sum := &Summary{
		AppTypes:   make(map[string]int64),
		Publishers: make(map[string]int64),
	}
	err := s.cached(ctx, summaryCacheKey, sum, func() error {
		return s.summary(ctx, sum)
	})
	if err != nil {
		return nil, err
	}
	return sum, nil
}

func (s *AppStore) summary(ctx context.Context, sum *Summary) error {
	type group struct {
		Name  string
		Count int64
	}

	return s.run(ctx, "app_summary", func(db *gorm.DB) error {
		var totals struct {
			Total   int64
			Enabled int64
		}
		if err := db.Model(&AppList{}).
			Select("COUNT(*) AS total, COALESCE(SUM(CASE WHEN enable_tracking THEN 1 ELSE 0 END), 0) AS enabled").
			Scan(&totals).Error; err != nil {
			return err
		}

		var types []group
		if err := db.Model(&AppList{}).
			Select("app_type AS name, COUNT(*) AS count").
			Group("app_type").Order("count DESC").
			Scan(&types).Error; err != nil {
			return err
		}

		var publishers []group
		if err := db.Model(&AppList{}).
			Select("publisher AS name, COUNT(*) AS count").
			Group("publisher").Order("count DESC, publisher").Limit(topPublishers).
			Scan(&publishers).Error; err != nil {
			return err
		}

		sum.TotalApps = totals.Total
		sum.EnabledTracking = totals.Enabled
		sum.DisabledTracking = totals.Total - totals.Enabled
		for _, g := range types {
			sum.AppTypes[g.Name] = g.Count
		}
		for _, g := range publishers {
			sum.Publishers[g.Name] = g.Count
		}
		return nil
	})
}

func validateApp(a *AppList) error {
	if a == nil {
		return fmt.Errorf("%w: nil app", ErrInvalid)
	}
	required := []struct {
		name  string
		value string
	}{
		{"app_name", a.AppName},
		{"app_type", a.AppType},
		{"current_version", a.CurrentVersion},
		{"released_date", a.ReleasedDate},
		{"publisher", a.Publisher},
		{"registered_date", a.RegisteredDate},
	}
	for _, f := range required {
		if f.value == "" {
			return fmt.Errorf("%w: %s is required", ErrInvalid, f.name)
		}
	}
	if a.TrackIntr < 0 {
		return fmt.Errorf("%w: track_intr must be non-negative", ErrInvalid)
	}
	return nil
}
