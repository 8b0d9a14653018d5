package store

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/appusage/internal/database"
)

// =============================================================================
// 📈 使用分析（只读聚合）
// =============================================================================

const defaultTopN = 10

// Period 日期范围（YYYY-MM-DD，闭区间），空字段表示不限
type Period struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

func (p Period) validate() error {
	var start, end time.Time
	var err error
	if p.Start != "" {
		if start, err = time.Parse(time.DateOnly, p.Start); err != nil {
			return fmt.Errorf("%w: start must be YYYY-MM-DD", ErrInvalid)
		}
	}
	if p.End != "" {
		if end, err = time.Parse(time.DateOnly, p.End); err != nil {
			return fmt.Errorf("%w: end must be YYYY-MM-DD", ErrInvalid)
		}
	}
	if p.Start != "" && p.End != "" && end.Before(start) {
		return fmt.Errorf("%w: end %s is before start %s", ErrInvalid, p.End, p.Start)
	}
	return nil
}

func (p Period) scope(db *gorm.DB) *gorm.DB {
	if p.Start != "" {
		db = db.Where("log_date >= ?", p.Start)
	}
	if p.End != "" {
		db = db.Where("log_date <= ?", p.End)
	}
	return db
}

// AppUsageStat 单个应用的使用聚合
type AppUsageStat struct {
	ApplicationName   string  `json:"application_name"`
	TotalSeconds      int64   `json:"total_seconds"`
	TotalHours        float64 `gorm:"-" json:"total_hours"`
	UniqueUsers       int64   `json:"unique_users"`
	Sessions          int64   `json:"sessions"`
	AvgSessionSeconds float64 `json:"avg_session_seconds"`
}

// PlatformStat 单个平台的使用聚合
type PlatformStat struct {
	Platform     string  `json:"platform"`
	TotalSeconds int64   `json:"total_seconds"`
	TotalHours   float64 `gorm:"-" json:"total_hours"`
	UniqueUsers  int64   `json:"unique_users"`
	Apps         int64   `json:"apps"`
	Sessions     int64   `json:"sessions"`
}

// UserTotal 单个用户的使用总计；没有记录时各计数为 0
type UserTotal struct {
	User              string  `json:"user"`
	TotalSeconds      int64   `json:"total_seconds"`
	TotalHours        float64 `gorm:"-" json:"total_hours"`
	Apps              int64   `json:"apps"`
	Sessions          int64   `json:"sessions"`
	AvgSessionSeconds float64 `json:"avg_session_seconds"`
	FirstUsage        string  `json:"first_usage,omitempty"`
	LastUsage         string  `json:"last_usage,omitempty"`
}

// DailyUsage 单日使用聚合
type DailyUsage struct {
	LogDate      string  `json:"log_date"`
	TotalSeconds int64   `json:"total_seconds"`
	TotalHours   float64 `gorm:"-" json:"total_hours"`
	ActiveUsers  int64   `json:"active_users"`
	ActiveApps   int64   `json:"active_apps"`
	Sessions     int64   `json:"sessions"`
}

// AnalyticsStore app_usage 上的只读统计查询，聚合全部在 SQLite 内完成
type AnalyticsStore struct {
	base
}

// NewAnalyticsStore 创建分析仓储
func NewAnalyticsStore(pool *database.Pool, logger *zap.Logger) *AnalyticsStore {
	return &AnalyticsStore{base: newBase(pool, logger, "analytics_store")}
}

// TopAppsByUsage 按总时长排序的应用，platform 为空时不过滤平台
func (s *AnalyticsStore) TopAppsByUsage(ctx context.Context, period Period, platform string, limit int) ([]AppUsageStat, error) {
	if err := period.validate(); err != nil {
		return nil, err
	}
	limit = normalizeTopN(limit)

	var stats []AppUsageStat
	err := s.run(ctx, "top_apps_by_usage", func(db *gorm.DB) error {
		q := period.scope(db.Model(&AppUsage{}))
		if platform != "" {
			q = q.Where("platform = ?", platform)
		}
		return q.Select(`application_name,
			SUM(duration_seconds) AS total_seconds,
			COUNT(DISTINCT user) AS unique_users,
			COUNT(*) AS sessions,
			AVG(duration_seconds) AS avg_session_seconds`).
			Group("application_name").
			Order("total_seconds DESC, application_name").
			Limit(limit).
			Scan(&stats).Error
	})
	if err != nil {
		return nil, err
	}
	for i := range stats {
		stats[i].TotalHours = hours(stats[i].TotalSeconds)
	}
	return stats, nil
}

// PlatformStats 各平台的使用聚合，按总时长排序
func (s *AnalyticsStore) PlatformStats(ctx context.Context, period Period) ([]PlatformStat, error) {
	if err := period.validate(); err != nil {
		return nil, err
	}

	var stats []PlatformStat
	err := s.run(ctx, "platform_stats", func(db *gorm.DB) error {
		return period.scope(db.Model(&AppUsage{})).
			Select(`platform,
				SUM(duration_seconds) AS total_seconds,
				COUNT(DISTINCT user) AS unique_users,
				COUNT(DISTINCT application_name) AS apps,
				COUNT(*) AS sessions`).
			Group("platform").
			Order("total_seconds DESC, platform").
			Scan(&stats).Error
	})
	if err != nil {
		return nil, err
	}
	for i := range stats {
		stats[i].TotalHours = hours(stats[i].TotalSeconds)
	}
	return stats, nil
}

// UserTotal 用一条聚合语句统计用户的总时长与记录数
func (s *AnalyticsStore) UserTotal(ctx context.Context, user string, period Period) (*UserTotal, error) {
	if user == "" {
		return nil, fmt.Errorf("%w: user is required", ErrInvalid)
	}
	if err := period.validate(); err != nil {
		return nil, err
	}

	total := UserTotal{User: user}
	err := s.run(ctx, "user_total", func(db *gorm.DB) error {
		return period.scope(db.Model(&AppUsage{})).
			Where("user = ?", user).
			Select(`COALESCE(SUM(duration_seconds), 0) AS total_seconds,
				COUNT(DISTINCT application_name) AS apps,
				COUNT(*) AS sessions,
				COALESCE(AVG(duration_seconds), 0) AS avg_session_seconds,
				COALESCE(MIN(log_date), '') AS first_usage,
				COALESCE(MAX(log_date), '') AS last_usage`).
			Scan(&total).Error
	})
	if err != nil {
		return nil, err
	}
	total.User = user
	total.TotalHours = hours(total.TotalSeconds)
	return &total, nil
}

// UserTopApps 用户使用最多的应用
func (s *AnalyticsStore) UserTopApps(ctx context.Context, user string, period Period, limit int) ([]AppUsageStat, error) {
	if user == "" {
		return nil, fmt.Errorf("%w: user is required", ErrInvalid)
	}
	if err := period.validate(); err != nil {
		return nil, err
	}
	limit = normalizeTopN(limit)

	var stats []AppUsageStat
	err := s.run(ctx, "user_top_apps", func(db *gorm.DB) error {
		return period.scope(db.Model(&AppUsage{})).
			Where("user = ?", user).
			Select(`application_name,
				SUM(duration_seconds) AS total_seconds,
				COUNT(DISTINCT user) AS unique_users,
				COUNT(*) AS sessions,
				AVG(duration_seconds) AS avg_session_seconds`).
			Group("application_name").
			Order("total_seconds DESC, application_name").
			Limit(limit).
			Scan(&stats).Error
	})
	if err != nil {
		return nil, err
	}
	for i := range stats {
		stats[i].TotalHours = hours(stats[i].TotalSeconds)
	}
	return stats, nil
}

// DailyUsageTrend 按日期升序的每日使用量与活跃用户数，app 为空时统计全部应用
func (s *AnalyticsStore) DailyUsageTrend(ctx context.Context, app string, period Period) ([]DailyUsage, error) {
	if err := period.validate(); err != nil {
		return nil, err
	}

	var days []DailyUsage
	err := s.run(ctx, "daily_usage_trend", func(db *gorm.DB) error {
		q := period.scope(db.Model(&AppUsage{}))
		if app != "" {
			q = q.Where("application_name = ?", app)
		}
		return q.Select(`log_date,
			SUM(duration_seconds) AS total_seconds,
			COUNT(DISTINCT user) AS active_users,
			COUNT(DISTINCT application_name) AS active_apps,
			COUNT(*) AS sessions`).
			Group("log_date").
			Order("log_date").
			Scan(&days).Error
	})
	if err != nil {
		return nil, err
	}
	for i := range days {
		days[i].TotalHours = hours(days[i].TotalSeconds)
	}
	return days, nil
}

func normalizeTopN(limit int) int {
	if limit <= 0 {
		return defaultTopN
	}
	return min(limit, maxPageSize)
}

// hours 秒数换算为小时，保留两位小数
func hours(seconds int64) float64 {
	return math.Round(float64(seconds)/36) / 100
}
