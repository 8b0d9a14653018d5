package database

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/appusage/internal/retry"
)

// =============================================================================
// 🧪 ExecuteWithRetry 测试
// =============================================================================

// busyError 模拟驱动返回的 SQLITE_BUSY
type busyError struct{ code int }

func (e busyError) Error() string { return "sqlite: step failed" }
func (e busyError) Code() int     { return e.code }

type countingRecorder struct {
	mu       sync.Mutex
	retries  map[string]int
	acquires map[string]int
	closed   map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{
		retries:  make(map[string]int),
		acquires: make(map[string]int),
		closed:   make(map[string]int),
	}
}

func (r *countingRecorder) RecordAcquire(result string, _ time.Duration) {
	r.mu.Lock()
	r.acquires[result]++
	r.mu.Unlock()
}

func (r *countingRecorder) RecordConnClosed(reason string) {
	r.mu.Lock()
	r.closed[reason]++
	r.mu.Unlock()
}

func (r *countingRecorder) RecordRetry(op string) {
	r.mu.Lock()
	r.retries[op]++
	r.mu.Unlock()
}

func (r *countingRecorder) RecordPoolSize(int, int, int, int) {}

func (r *countingRecorder) retryCount(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.retries[op]
}

// setupMockPool 创建底层为 sqlmock 的连接池
func setupMockPool(t *testing.T, maxAttempts int, rec *countingRecorder) (*Pool, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	// sqlmock 在最后一个驱动连接关闭时注销 DSN，保留一个连接直到测试结束
	keeper, err := mockDB.Conn(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() {
		keeper.Close()
		mockDB.Close()
	})

	cfg := testConfig(t)
	cfg.MinIdle = 0
	cfg.Pragmas = nil
	cfg.Retry = retry.Policy{
		MaxAttempts:  maxAttempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
		Multiplier:   2,
	}

	opts := []Option{
		WithOpener(func(string) (*sql.DB, error) { return mockDB, nil }),
		WithBootstrapper(func(context.Context, *sql.DB) error { return nil }),
	}
	if rec != nil {
		opts = append(opts, WithRecorder(rec))
	}

	pool := newTestPool(t, cfg, opts...)
	require.NoError(t, pool.Initialize(context.Background()))
	return pool, mock
}

func insertUsage(ctx context.Context, c *Conn) error {
	_, err := c.ExecContext(ctx, "INSERT INTO app_usage (user) VALUES ('alice')")
	return err
}

func TestExecuteWithRetry_Success(t *testing.T) {
	pool, mock := setupMockPool(t, 3, nil)

	mock.ExpectExec("INSERT INTO app_usage").WillReturnResult(sqlmock.NewResult(1, 1))

	err := pool.ExecuteWithRetry(context.Background(), "insert_usage", insertUsage)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, 0, pool.Stats().Outstanding)
}

func TestExecuteWithRetry_LockClearsWithinBudget(t *testing.T) {
	rec := newCountingRecorder()
	pool, mock := setupMockPool(t, 3, rec)

	mock.ExpectExec("INSERT INTO app_usage").WillReturnError(busyError{code: 5})
	mock.ExpectExec("INSERT INTO app_usage").WillReturnError(busyError{code: 6})
	mock.ExpectExec("INSERT INTO app_usage").WillReturnResult(sqlmock.NewResult(1, 1))

	err := pool.ExecuteWithRetry(context.Background(), "insert_usage", insertUsage)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, 2, rec.retryCount("insert_usage"))
	assert.Equal(t, 0, pool.Stats().Outstanding)
}

func TestExecuteWithRetry_LockBudgetExhausted(t *testing.T) {
	const maxAttempts = 4
	rec := newCountingRecorder()
	pool, mock := setupMockPool(t, maxAttempts, rec)

	for i := 0; i < maxAttempts; i++ {
		// 扩展结果码 SQLITE_BUSY_SNAPSHOT
		mock.ExpectExec("INSERT INTO app_usage").WillReturnError(busyError{code: 517})
	}

	err := pool.ExecuteWithRetry(context.Background(), "insert_usage", insertUsage)

	var locked *DatabaseLockedError
	require.ErrorAs(t, err, &locked)
	assert.ErrorIs(t, err, ErrDatabaseLocked)
	assert.Equal(t, maxAttempts, locked.Attempts)
	assert.Equal(t, "insert_usage", locked.Op)
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, maxAttempts-1, rec.retryCount("insert_usage"))

	// 锁竞争不会损坏连接，句柄回到空闲队列
	stats := pool.Stats()
	assert.Equal(t, 0, stats.Outstanding)
	assert.Equal(t, 1, stats.Idle)
}

func TestExecuteWithRetry_NonLockErrorNotRetried(t *testing.T) {
	rec := newCountingRecorder()
	pool, mock := setupMockPool(t, 5, rec)

	cause := errors.New("CHECK constraint failed: duration_seconds >= 0")
	mock.ExpectExec("INSERT INTO app_usage").WillReturnError(cause)

	err := pool.ExecuteWithRetry(context.Background(), "insert_usage", insertUsage)

	var dbErr *DatabaseError
	require.ErrorAs(t, err, &dbErr)
	assert.Equal(t, "insert_usage", dbErr.Op)
	assert.ErrorIs(t, err, ErrDatabase)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrDatabaseLocked)
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, 0, rec.retryCount("insert_usage"))
}

func TestExecuteWithRetry_ContextCanceledDuringBackoff(t *testing.T) {
	pool, mock := setupMockPool(t, 5, nil)
	pool.config.Retry.InitialDelay = time.Second
	pool.config.Retry.MaxDelay = time.Second

	mock.ExpectExec("INSERT INTO app_usage").WillReturnError(busyError{code: 5})

	ctx, cancel := context.WithCancel(context.Background())
	err := pool.ExecuteWithRetry(ctx, "insert_usage", func(ctx context.Context, c *Conn) error {
		defer cancel()
		return insertUsage(ctx, c)
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrDatabaseLocked)
	assert.Equal(t, 0, pool.Stats().Outstanding)
}

func TestExecuteWithRetry_RecordsAcquire(t *testing.T) {
	rec := newCountingRecorder()
	pool, mock := setupMockPool(t, 1, rec)

	mock.ExpectExec("INSERT INTO app_usage").WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, pool.ExecuteWithRetry(context.Background(), "insert_usage", insertUsage))

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, 1, rec.acquires["ok"])
}

// =============================================================================
// 🔒 真实 SQLite 写锁
// =============================================================================

func lockedPool(t *testing.T, maxAttempts int) *Pool {
	t.Helper()

	return readyPool(t, func(cfg *Config) {
		cfg.MinIdle = 2
		// 关闭驱动内部等待，让写冲突立即返回 SQLITE_BUSY
		cfg.Pragmas = []string{"journal_mode=WAL", "busy_timeout=0"}
		cfg.Retry = retry.Policy{
			MaxAttempts:  maxAttempts,
			InitialDelay: 10 * time.Millisecond,
			MaxDelay:     20 * time.Millisecond,
			Multiplier:   2,
		}
	})
}

const insertListRow = `INSERT INTO app_list
	(app_name, app_type, current_version, released_date, publisher, description, download_link,
	 enable_tracking, track_usage, track_location, track_cm, track_intr, registered_date)
	VALUES ('editor', 'desktop', '2.1', '2024-01-01', 'acme', 'text editor', 'https://example.com',
	 1, 1, 0, 0, 60, '2024-01-02')`

func TestExecuteWithRetry_SQLiteLockClears(t *testing.T) {
	pool := lockedPool(t, 50)
	ctx := context.Background()

	holder, err := pool.Acquire(ctx)
	require.NoError(t, err)
	_, err = holder.ExecContext(ctx, "BEGIN IMMEDIATE")
	require.NoError(t, err)

	go func() {
		time.Sleep(60 * time.Millisecond)
		holder.ExecContext(ctx, "COMMIT")
		pool.Release(holder, nil)
	}()

	err = pool.ExecuteWithRetry(ctx, "insert_app", func(ctx context.Context, c *Conn) error {
		_, err := c.ExecContext(ctx, insertListRow)
		return err
	})
	require.NoError(t, err)

	var count int
	require.NoError(t, pool.WithConn(ctx, func(ctx context.Context, c *Conn) error {
		return c.QueryRowContext(ctx, "SELECT count(*) FROM app_list").Scan(&count)
	}))
	assert.Equal(t, 1, count)
}

func TestExecuteWithRetry_SQLiteLockExhausted(t *testing.T) {
	pool := lockedPool(t, 3)
	ctx := context.Background()

	holder, err := pool.Acquire(ctx)
	require.NoError(t, err)
	_, err = holder.ExecContext(ctx, "BEGIN IMMEDIATE")
	require.NoError(t, err)
	defer func() {
		holder.ExecContext(ctx, "ROLLBACK")
		pool.Release(holder, nil)
	}()

	err = pool.ExecuteWithRetry(ctx, "insert_app", func(ctx context.Context, c *Conn) error {
		_, err := c.ExecContext(ctx, insertListRow)
		return err
	})

	var locked *DatabaseLockedError
	require.ErrorAs(t, err, &locked)
	assert.Equal(t, 3, locked.Attempts)
	assert.True(t, IsLockError(locked.Err))
}
