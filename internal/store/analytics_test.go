package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// seedAnalytics 写入三天、三个用户、两个平台的使用记录
func seedAnalytics(t *testing.T, s *UsageStore) {
	t.Helper()

	rows := []struct {
		user, app, platform, date string
		seconds                   int64
	}{
		{"alice", "editor", "windows", "2024-05-01", 3600},
		{"alice", "browser", "windows", "2024-05-01", 1800},
		{"alice", "editor", "windows", "2024-05-02", 7200},
		{"bob", "editor", "macos", "2024-05-01", 600},
		{"bob", "browser", "macos", "2024-05-02", 5400},
		{"bob", "chat", "macos", "2024-05-03", 300},
		{"carol", "browser", "windows", "2024-05-03", 900},
	}
	ctx := context.Background()
	for _, r := range rows {
		u := sampleUsage(r.user, r.app, r.date, r.seconds)
		u.Platform = r.platform
		require.NoError(t, s.Create(ctx, u))
	}
}

func newAnalytics(t *testing.T) *AnalyticsStore {
	t.Helper()

	pool := newTestPool(t)
	seedAnalytics(t, NewUsageStore(pool, zap.NewNop()))
	return NewAnalyticsStore(pool, zap.NewNop())
}

func TestAnalytics_TopAppsByUsage(t *testing.T) {
	a := newAnalytics(t)
	ctx := context.Background()

	stats, err := a.TopAppsByUsage(ctx, Period{}, "", 0)
	require.NoError(t, err)
	require.Len(t, stats, 3)

	assert.Equal(t, "editor", stats[0].ApplicationName)
	assert.Equal(t, int64(11400), stats[0].TotalSeconds)
	assert.Equal(t, 3.17, stats[0].TotalHours)
	assert.Equal(t, int64(2), stats[0].UniqueUsers)
	assert.Equal(t, int64(3), stats[0].Sessions)
	assert.InDelta(t, 3800.0, stats[0].AvgSessionSeconds, 1e-9)

	assert.Equal(t, "browser", stats[1].ApplicationName)
	assert.Equal(t, int64(8100), stats[1].TotalSeconds)
	assert.Equal(t, int64(3), stats[1].UniqueUsers)
	assert.Equal(t, "chat", stats[2].ApplicationName)
}

func TestAnalytics_TopAppsFilters(t *testing.T) {
	a := newAnalytics(t)
	ctx := context.Background()

	stats, err := a.TopAppsByUsage(ctx, Period{}, "macos", 1)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, "browser", stats[0].ApplicationName)
	assert.Equal(t, int64(5400), stats[0].TotalSeconds)

	stats, err = a.TopAppsByUsage(ctx, Period{Start: "2024-05-02", End: "2024-05-02"}, "", 10)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, "editor", stats[0].ApplicationName)
	assert.Equal(t, int64(7200), stats[0].TotalSeconds)

	stats, err = a.TopAppsByUsage(ctx, Period{Start: "2025-01-01"}, "", 10)
	require.NoError(t, err)
	assert.Empty(t, stats)
}

func TestAnalytics_PlatformStats(t *testing.T) {
	a := newAnalytics(t)

	stats, err := a.PlatformStats(context.Background(), Period{})
	require.NoError(t, err)
	require.Len(t, stats, 2)

	assert.Equal(t, "windows", stats[0].Platform)
	assert.Equal(t, int64(13500), stats[0].TotalSeconds)
	assert.Equal(t, int64(2), stats[0].UniqueUsers)
	assert.Equal(t, int64(2), stats[0].Apps)
	assert.Equal(t, int64(4), stats[0].Sessions)

	assert.Equal(t, "macos", stats[1].Platform)
	assert.Equal(t, int64(6300), stats[1].TotalSeconds)
	assert.Equal(t, int64(3), stats[1].Apps)
}

func TestAnalytics_UserTotal(t *testing.T) {
	a := newAnalytics(t)
	ctx := context.Background()

	total, err := a.UserTotal(ctx, "alice", Period{})
	require.NoError(t, err)
	assert.Equal(t, "alice", total.User)
	assert.Equal(t, int64(12600), total.TotalSeconds)
	assert.Equal(t, 3.5, total.TotalHours)
	assert.Equal(t, int64(2), total.Apps)
	assert.Equal(t, int64(3), total.Sessions)
	assert.InDelta(t, 4200.0, total.AvgSessionSeconds, 1e-9)
	assert.Equal(t, "2024-05-01", total.FirstUsage)
	assert.Equal(t, "2024-05-02", total.LastUsage)

	total, err = a.UserTotal(ctx, "alice", Period{End: "2024-05-01"})
	require.NoError(t, err)
	assert.Equal(t, int64(5400), total.TotalSeconds)
	assert.Equal(t, int64(2), total.Sessions)
}

func TestAnalytics_UserTotalNoRecords(t *testing.T) {
	a := newAnalytics(t)

	total, err := a.UserTotal(context.Background(), "mallory", Period{})
	require.NoError(t, err)
	assert.Equal(t, "mallory", total.User)
	assert.Zero(t, total.TotalSeconds)
	assert.Zero(t, total.Sessions)
	assert.Empty(t, total.FirstUsage)
}

func TestAnalytics_UserTopApps(t *testing.T) {
	a := newAnalytics(t)

	stats, err := a.UserTopApps(context.Background(), "bob", Period{}, 2)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, "browser", stats[0].ApplicationName)
	assert.Equal(t, "editor", stats[1].ApplicationName)
	assert.Equal(t, int64(1), stats[0].UniqueUsers)
}

func TestAnalytics_DailyUsageTrend(t *testing.T) {
	a := newAnalytics(t)
	ctx := context.Background()

	days, err := a.DailyUsageTrend(ctx, "", Period{})
	require.NoError(t, err)
	require.Len(t, days, 3)
	assert.Equal(t, "2024-05-01", days[0].LogDate)
	assert.Equal(t, int64(6000), days[0].TotalSeconds)
	assert.Equal(t, int64(2), days[0].ActiveUsers)
	assert.Equal(t, int64(2), days[0].ActiveApps)
	assert.Equal(t, int64(3), days[0].Sessions)
	assert.Equal(t, "2024-05-03", days[2].LogDate)
	assert.Equal(t, int64(2), days[2].ActiveUsers)

	days, err = a.DailyUsageTrend(ctx, "browser", Period{Start: "2024-05-02"})
	require.NoError(t, err)
	require.Len(t, days, 2)
	assert.Equal(t, int64(5400), days[0].TotalSeconds)
	assert.Equal(t, int64(1), days[0].ActiveApps)
	assert.Equal(t, int64(900), days[1].TotalSeconds)
}

func TestAnalytics_InvalidArguments(t *testing.T) {
	a := newAnalytics(t)
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
	}{
		{"bad start", func() error {
			_, err := a.TopAppsByUsage(ctx, Period{Start: "05/01/2024"}, "", 0)
			return err
		}},
		{"end before start", func() error {
			_, err := a.PlatformStats(ctx, Period{Start: "2024-05-03", End: "2024-05-01"})
			return err
		}},
		{"missing user", func() error {
			_, err := a.UserTotal(ctx, "", Period{})
			return err
		}},
		{"missing user for top apps", func() error {
			_, err := a.UserTopApps(ctx, "", Period{}, 5)
			return err
		}},
		{"bad end", func() error {
			_, err := a.DailyUsageTrend(ctx, "", Period{End: "tomorrow"})
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.call(), ErrInvalid)
		})
	}
}

func TestHours(t *testing.T) {
	assert.Equal(t, 0.0, hours(0))
	assert.Equal(t, 1.0, hours(3600))
	assert.Equal(t, 0.5, hours(1800))
	assert.Equal(t, 0.01, hours(36))
	assert.Equal(t, 2.33, hours(8400))
}
