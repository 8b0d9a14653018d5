package store

import (
	"time"
)

// =============================================================================
// 📦 数据模型
// =============================================================================

// AppUsage 单个用户在某天使用某应用的时长记录
type AppUsage struct {
	ID                 int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	MonitorAppVersion  string    `gorm:"column:monitor_app_version;size:50;not null" json:"monitor_app_version"`
	Platform           string    `gorm:"column:platform;size:50;not null" json:"platform"`
	User               string    `gorm:"column:user;size:100;not null;index:idx_app_usage_user" json:"user"`
	ApplicationName    string    `gorm:"column:application_name;size:100;not null;index:idx_app_usage_app" json:"application_name"`
	ApplicationVersion string    `gorm:"column:application_version;size:50;not null" json:"application_version"`
	LogDate            string    `gorm:"column:log_date;not null;index:idx_app_usage_date" json:"log_date"` // YYYY-MM-DD
	LegacyApp          bool      `gorm:"column:legacy_app;not null" json:"legacy_app"`
	DurationSeconds    int64     `gorm:"column:duration_seconds;not null" json:"duration_seconds"`
	CreatedAt          time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt          time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (AppUsage) TableName() string {
	return "app_usage"
}

// Duration 以 HH:MM:SS 形式返回使用时长
func (u AppUsage) Duration() string {
	return FormatDuration(u.DurationSeconds)
}

// AppList 登记的应用及其跟踪配置。
// (AppName, AppType, CurrentVersion) 是自然键，Upsert 按它去重。
type AppList struct {
	AppID          int64  `gorm:"column:app_id;primaryKey;autoIncrement" json:"app_id"`
	AppName        string `gorm:"column:app_name;not null;index:idx_app_list_name_type_version,priority:1" json:"app_name"`
	AppType        string `gorm:"column:app_type;not null;index:idx_app_list_name_type_version,priority:2" json:"app_type"`
	CurrentVersion string `gorm:"column:current_version;not null;index:idx_app_list_name_type_version,priority:3" json:"current_version"`
	ReleasedDate   string `gorm:"column:released_date;not null" json:"released_date"`
	Publisher      string `gorm:"column:publisher;not null" json:"publisher"`
	Description    string `gorm:"column:description;not null" json:"description"`
	DownloadLink   string `gorm:"column:download_link;not null" json:"download_link"`
	EnableTracking bool   `gorm:"column:enable_tracking;not null" json:"enable_tracking"`
	TrackUsage     bool   `gorm:"column:track_usage;not null" json:"track_usage"`
	TrackLocation  bool   `gorm:"column:track_location;not null" json:"track_location"`
	TrackCM        bool   `gorm:"column:track_cm;not null" json:"track_cm"`
	TrackIntr      int    `gorm:"column:track_intr;not null" json:"track_intr"` // 采样间隔（秒）
	RegisteredDate string `gorm:"column:registered_date;not null" json:"registered_date"`
}

func (AppList) TableName() string {
	return "app_list"
}

// Page 分页查询结果
type Page[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
}
