package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/appusage/internal/database"
)

func newTestPool(t *testing.T) *database.Pool {
	t.Helper()

	cfg := database.DefaultConfig()
	cfg.Path = filepath.Join(t.TempDir(), "store.db")
	cfg.MaxConnections = 4
	cfg.MinIdle = 1
	cfg.BusyTimeout = 2 * time.Second
	cfg.GracePeriod = 100 * time.Millisecond

	pool, err := database.NewPool(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, pool.Initialize(context.Background()))
	t.Cleanup(func() { pool.Close(context.Background()) })
	return pool
}

func sampleUsage(user, app, date string, seconds int64) *AppUsage {
	return &AppUsage{
		MonitorAppVersion:  "1.0.0",
		Platform:           "windows",
		User:               user,
		ApplicationName:    app,
		ApplicationVersion: "2.3",
		LogDate:            date,
		DurationSeconds:    seconds,
	}
}

func sampleApp(name, typ, version string) *AppList {
	return &AppList{
		AppName:        name,
		AppType:        typ,
		CurrentVersion: version,
		ReleasedDate:   "2024-01-01",
		Publisher:      "acme",
		Description:    "sample",
		DownloadLink:   "https://example.com/" + name,
		EnableTracking: true,
		TrackUsage:     true,
		TrackIntr:      60,
		RegisteredDate: "2024-02-01",
	}
}

// =============================================================================
// 🧪 UsageStore
// =============================================================================

func TestUsageStore_CRUD(t *testing.T) {
	pool := newTestPool(t)
	s := NewUsageStore(pool, zap.NewNop())
	ctx := context.Background()

	u := sampleUsage("alice", "editor", "2024-03-01", 90)
	require.NoError(t, s.Create(ctx, u))
	require.NotZero(t, u.ID)

	got, err := s.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.User)
	assert.Equal(t, int64(90), got.DurationSeconds)
	assert.Equal(t, "00:01:30", got.Duration())

	got.DurationSeconds = 0
	got.LegacyApp = true
	require.NoError(t, s.Update(ctx, got))

	got, err = s.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.DurationSeconds)
	assert.True(t, got.LegacyApp)

	require.NoError(t, s.Delete(ctx, u.ID))
	_, err = s.Get(ctx, u.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, u.ID), ErrNotFound)

	assert.Equal(t, 0, pool.Stats().Outstanding)
}

func TestUsageStore_UpdateMissing(t *testing.T) {
	s := NewUsageStore(newTestPool(t), zap.NewNop())
	ctx := context.Background()

	u := sampleUsage("alice", "editor", "2024-03-01", 1)
	assert.ErrorIs(t, s.Update(ctx, u), ErrNotFound)

	u.ID = 999
	assert.ErrorIs(t, s.Update(ctx, u), ErrNotFound)
}

func TestUsageStore_Validation(t *testing.T) {
	s := NewUsageStore(newTestPool(t), zap.NewNop())
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*AppUsage)
	}{
		{"missing user", func(u *AppUsage) { u.User = "" }},
		{"long platform", func(u *AppUsage) { u.Platform = fmt.Sprintf("%051d", 0) }},
		{"bad date", func(u *AppUsage) { u.LogDate = "03/01/2024" }},
		{"negative duration", func(u *AppUsage) { u.DurationSeconds = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := sampleUsage("alice", "editor", "2024-03-01", 1)
			tt.mutate(u)
			assert.ErrorIs(t, s.Create(ctx, u), ErrInvalid)
		})
	}
	assert.ErrorIs(t, s.Create(ctx, nil), ErrInvalid)
}

func TestUsageStore_UpsertSumsDuration(t *testing.T) {
	s := NewUsageStore(newTestPool(t), zap.NewNop())
	ctx := context.Background()

	first := sampleUsage("alice", "editor", "2024-03-01", 60)
	require.NoError(t, s.Upsert(ctx, first))

	second := sampleUsage("alice", "editor", "2024-03-01", 30)
	second.ApplicationVersion = "2.4"
	require.NoError(t, s.Upsert(ctx, second))

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(90), second.DurationSeconds)

	got, err := s.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(90), got.DurationSeconds)
	assert.Equal(t, "2.4", got.ApplicationVersion)

	// 不同日期是新记录
	other := sampleUsage("alice", "editor", "2024-03-02", 10)
	require.NoError(t, s.Upsert(ctx, other))
	assert.NotEqual(t, first.ID, other.ID)
}

func TestUsageStore_ConcurrentUpsert(t *testing.T) {
	s := NewUsageStore(newTestPool(t), zap.NewNop())
	ctx := context.Background()

	const workers = 8
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func() {
			errs <- s.Upsert(ctx, sampleUsage("bob", "browser", "2024-03-01", 5))
		}()
	}
	for i := 0; i < workers; i++ {
		require.NoError(t, <-errs)
	}

	p, err := s.ListByUser(ctx, "bob", 10, 0)
	require.NoError(t, err)
	require.Len(t, p.Items, 1)
	assert.Equal(t, int64(workers*5), p.Items[0].DurationSeconds)
}

func TestUsageStore_ListPaging(t *testing.T) {
	s := NewUsageStore(newTestPool(t), zap.NewNop())
	ctx := context.Background()

	for day := 1; day <= 5; day++ {
		require.NoError(t, s.Create(ctx, sampleUsage("carol", "editor", fmt.Sprintf("2024-03-%02d", day), int64(day))))
	}
	require.NoError(t, s.Create(ctx, sampleUsage("dave", "editor", "2024-03-09", 1)))

	p, err := s.List(ctx, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(6), p.Total)
	require.Len(t, p.Items, 2)
	assert.Equal(t, "2024-03-09", p.Items[0].LogDate)
	assert.Equal(t, "2024-03-05", p.Items[1].LogDate)

	p, err = s.List(ctx, 2, 4)
	require.NoError(t, err)
	require.Len(t, p.Items, 2)
	assert.Equal(t, "2024-03-01", p.Items[1].LogDate)

	p, err = s.ListByUser(ctx, "carol", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, int64(5), p.Total)
	assert.Len(t, p.Items, 5)

	p, err = s.ListByUser(ctx, "nobody", 10, 0)
	require.NoError(t, err)
	assert.Zero(t, p.Total)
	assert.Empty(t, p.Items)
}

func TestUsageStore_ClosedPool(t *testing.T) {
	pool := newTestPool(t)
	s := NewUsageStore(pool, zap.NewNop())
	require.NoError(t, pool.Close(context.Background()))

	_, err := s.Get(context.Background(), 1)
	assert.ErrorIs(t, err, database.ErrPoolClosed)
}

// =============================================================================
// 🧪 AppStore
// =============================================================================

func TestAppStore_CRUD(t *testing.T) {
	s := NewAppStore(newTestPool(t), zap.NewNop())
	ctx := context.Background()

	a := sampleApp("editor", "desktop", "1.0")
	require.NoError(t, s.Create(ctx, a))
	require.NotZero(t, a.AppID)

	got, err := s.Get(ctx, a.AppID)
	require.NoError(t, err)
	assert.Equal(t, "editor", got.AppName)
	assert.True(t, got.EnableTracking)
	assert.Equal(t, 60, got.TrackIntr)

	got.EnableTracking = false
	got.TrackIntr = 0
	require.NoError(t, s.Update(ctx, got))

	got, err = s.Get(ctx, a.AppID)
	require.NoError(t, err)
	assert.False(t, got.EnableTracking)
	assert.Zero(t, got.TrackIntr)

	require.NoError(t, s.Delete(ctx, a.AppID))
	_, err = s.Get(ctx, a.AppID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAppStore_Upsert(t *testing.T) {
	s := NewAppStore(newTestPool(t), zap.NewNop())
	ctx := context.Background()

	a := sampleApp("editor", "desktop", "1.0")
	require.NoError(t, s.Upsert(ctx, a))

	b := sampleApp("editor", "desktop", "1.0")
	b.Publisher = "globex"
	require.NoError(t, s.Upsert(ctx, b))
	assert.Equal(t, a.AppID, b.AppID)

	got, err := s.Get(ctx, a.AppID)
	require.NoError(t, err)
	assert.Equal(t, "globex", got.Publisher)

	c := sampleApp("editor", "desktop", "2.0")
	require.NoError(t, s.Upsert(ctx, c))
	assert.NotEqual(t, a.AppID, c.AppID)

	versions, err := s.ListByName(ctx, "editor")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, "2.0", versions[0].CurrentVersion)
}

func TestAppStore_ListAndSummary(t *testing.T) {
	s := NewAppStore(newTestPool(t), zap.NewNop())
	ctx := context.Background()

	apps := []*AppList{
		sampleApp("editor", "desktop", "1.0"),
		sampleApp("browser", "desktop", "1.0"),
		sampleApp("chat", "web", "1.0"),
	}
	apps[2].EnableTracking = false
	apps[2].Publisher = "globex"
	for _, a := range apps {
		require.NoError(t, s.Create(ctx, a))
	}

	p, err := s.List(ctx, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), p.Total)
	assert.Equal(t, apps[2].AppID, p.Items[0].AppID)

	desktop, err := s.ListByType(ctx, "desktop")
	require.NoError(t, err)
	require.Len(t, desktop, 2)
	assert.Equal(t, "browser", desktop[0].AppName)

	sum, err := s.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), sum.TotalApps)
	assert.Equal(t, int64(2), sum.EnabledTracking)
	assert.Equal(t, int64(1), sum.DisabledTracking)
	assert.Equal(t, map[string]int64{"desktop": 2, "web": 1}, sum.AppTypes)
	assert.Equal(t, map[string]int64{"acme": 2, "globex": 1}, sum.Publishers)
}

func TestAppStore_SummaryEmpty(t *testing.T) {
	s := NewAppStore(newTestPool(t), zap.NewNop())

	sum, err := s.Summary(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sum.TotalApps)
	assert.Empty(t, sum.AppTypes)
}

func TestAppStore_Validation(t *testing.T) {
	s := NewAppStore(newTestPool(t), zap.NewNop())

	a := sampleApp("", "desktop", "1.0")
	err := s.Create(context.Background(), a)
	assert.True(t, errors.Is(err, ErrInvalid))
	assert.Contains(t, err.Error(), "app_name")
}

// =============================================================================
// 🧪 时长格式
// =============================================================================

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"00:00:00", 0, false},
		{"01:02:03", 3723, false},
		{"100:59:59", 363599, false},
		{"00:60:00", 0, true},
		{"00:00:60", 0, true},
		{"1:2", 0, true},
		{"aa:00:00", 0, true},
		{"-1:00:00", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDuration(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, FormatDuration(got))
		})
	}
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "00:00:00", FormatDuration(-5))
	assert.Equal(t, "25:00:01", FormatDuration(90001))
}
