package database

import (
	"container/list"
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/BaSui01/appusage/internal/migration"
)

// =============================================================================
// 🗄️ 数据库连接池管理器
// =============================================================================

// State 连接池生命周期状态，只能从左向右迁移。
// 初始化失败进入 Failed；失败后重试 Initialize 时保持 Failed，成功后进入 Ready。
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateFailed
	StateReady
	StateDraining
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateFailed:
		return "failed"
	case StateReady:
		return "ready"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Opener 打开底层 *sql.DB
type Opener func(dsn string) (*sql.DB, error)

// Bootstrapper 在连接池进入 Ready 之前执行 Schema 引导，不得关闭传入的 db
type Bootstrapper func(ctx context.Context, db *sql.DB) error

// Recorder 连接池指标记录器
type Recorder interface {
	RecordAcquire(result string, wait time.Duration)
	RecordConnClosed(reason string)
	RecordRetry(op string)
	RecordPoolSize(open, idle, outstanding, waiters int)
}

type nopRecorder struct{}

func (nopRecorder) RecordAcquire(string, time.Duration) {}
func (nopRecorder) RecordConnClosed(string)             {}
func (nopRecorder) RecordRetry(string)                  {}
func (nopRecorder) RecordPoolSize(int, int, int, int)   {}

// Option 连接池选项
type Option func(*Pool)

// WithOpener 替换底层数据库的打开方式
func WithOpener(open Opener) Option {
	return func(p *Pool) {
		p.open = open
	}
}

// WithBootstrapper 替换 Schema 引导逻辑
func WithBootstrapper(b Bootstrapper) Option {
	return func(p *Pool) {
		p.bootstrap = b
	}
}

// WithRecorder 设置指标记录器
func WithRecorder(r Recorder) Option {
	return func(p *Pool) {
		if r != nil {
			p.recorder = r
		}
	}
}

// WithTracer 替换默认从全局 provider 获取的 tracer
func WithTracer(t trace.Tracer) Option {
	return func(p *Pool) {
		if t != nil {
			p.tracer = t
		}
	}
}

// Pool 数据库连接池管理器。
// idle、outstanding、state 等簿记字段全部由 mu 保护；
// 借出后的底层连接只属于持有者，不受 mu 保护。
type Pool struct {
	config    Config
	logger    *zap.Logger
	open      Opener
	bootstrap Bootstrapper
	recorder  Recorder
	tracer    trace.Tracer

	initGroup singleflight.Group

	mu          sync.Mutex
	state       State
	initErr     error
	db          *sql.DB
	idle        []*Conn
	all         map[*Conn]struct{}
	numOpen     int // 已打开或正在打开的连接数
	outstanding int
	waiters     *list.List // *waiter，FIFO
	drained     chan struct{}
	closed      chan struct{}
	reaperStop  chan struct{}
	reaperDone  chan struct{}

	waitCount    int64
	waitDuration time.Duration
	timeoutCount int64
	createdCount int64
	closedCount  int64
}

type waiter struct {
	ch     chan *Conn // 收到 nil 表示有空位可以新建连接
	served bool
}

// NewPool 创建连接池管理器（尚未初始化）
func NewPool(config Config, logger *zap.Logger, opts ...Option) (*Pool, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pool config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &Pool{
		config:    config,
		logger:    logger.With(zap.String("component", "db_pool")),
		open:      openSQLite,
		bootstrap: migration.Bootstrap,
		recorder:  nopRecorder{},
		tracer:    otel.Tracer("github.com/BaSui01/appusage/internal/database"),
		all:       make(map[*Conn]struct{}),
		waiters:   list.New(),
		closed:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

func openSQLite(dsn string) (*sql.DB, error) {
	return sql.Open(sqlite.DriverName, dsn)
}

// =============================================================================
// 🚀 初始化
// =============================================================================

// Initialize 打开数据库、执行 Schema 引导并预创建 MinIdle 个连接。
// 并发调用共享同一次引导；已就绪时直接返回。
func (p *Pool) Initialize(ctx context.Context) error {
	p.mu.Lock()
	switch p.state {
	case StateReady:
		p.mu.Unlock()
		return nil
	case StateDraining, StateClosed:
		p.mu.Unlock()
		return closedError("initialize")
	}
	p.mu.Unlock()

	_, err, _ := p.initGroup.Do("initialize", func() (any, error) {
		return nil, p.initialize(ctx)
	})
	return err
}

func (p *Pool) initialize(ctx context.Context) error {
	p.mu.Lock()
	switch p.state {
	case StateReady:
		p.mu.Unlock()
		return nil
	case StateDraining, StateClosed:
		p.mu.Unlock()
		return closedError("initialize")
	}
	// 失败后重试不回退到 Initializing
	if p.state == StateUninitialized {
		p.state = StateInitializing
	}
	p.mu.Unlock()

	start := time.Now()
	p.logger.Info("initializing database pool",
		zap.String("path", p.config.Path),
		zap.Int("max_connections", p.config.MaxConnections),
		zap.Int("min_idle", p.config.MinIdle),
	)

	db, idle, err := p.bootstrapStore(ctx)
	if err != nil {
		p.logger.Error("database pool initialization failed", zap.Error(err))
		p.mu.Lock()
		if p.initializingLocked() {
			p.state = StateFailed
			p.initErr = err
		}
		p.mu.Unlock()
		return err
	}

	p.mu.Lock()
	if !p.initializingLocked() {
		// Close 在引导期间被调用
		p.mu.Unlock()
		p.discardAll(idle, "closed_during_init")
		if cerr := db.Close(); cerr != nil {
			p.logger.Warn("failed to close database", zap.Error(cerr))
		}
		return closedError("initialize")
	}
	p.db = db
	p.idle = idle
	for _, c := range idle {
		p.all[c] = struct{}{}
	}
	p.numOpen = len(idle)
	p.createdCount += int64(len(idle))
	p.initErr = nil
	p.state = StateReady
	if p.config.IdleTimeout > 0 {
		p.reaperStop = make(chan struct{})
		p.reaperDone = make(chan struct{})
		go p.reapLoop(p.reaperStop, p.reaperDone)
	}
	p.mu.Unlock()

	p.recordSize()
	p.logger.Info("database pool ready",
		zap.Int("idle", len(idle)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// bootstrapStore 打开数据库文件、执行 Schema 引导并预创建连接
func (p *Pool) bootstrapStore(ctx context.Context) (*sql.DB, []*Conn, error) {
	if dir := filepath.Dir(p.config.Path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, &ConnectionError{Op: "initialize", Path: p.config.Path, Err: err}
		}
	}

	db, err := p.open(p.config.DSN())
	if err != nil {
		return nil, nil, &ConnectionError{Op: "initialize", Path: p.config.Path, Err: err}
	}
	db.SetMaxOpenConns(p.config.MaxConnections)
	// 连接保留由本连接池负责，归还给 database/sql 的连接直接关闭
	db.SetMaxIdleConns(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, &ConnectionError{Op: "initialize", Path: p.config.Path, Err: err}
	}

	if err := p.bootstrap(ctx, db); err != nil {
		db.Close()
		return nil, nil, &SchemaInitError{Path: p.config.Path, Err: err}
	}

	idle := make([]*Conn, 0, p.config.MinIdle)
	for i := 0; i < p.config.MinIdle; i++ {
		c, err := p.dial(ctx, db)
		if err != nil {
			p.discardAll(idle, "init_failed")
			db.Close()
			return nil, nil, &ConnectionError{Op: "initialize", Path: p.config.Path, Err: err}
		}
		idle = append(idle, c)
	}

	return db, idle, nil
}

// dial 打开一个新的底层连接并应用 PRAGMA
func (p *Pool) dial(ctx context.Context, db *sql.DB) (*Conn, error) {
	native, err := db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	if err := applyPragmas(ctx, native, p.config.SessionPragmas()); err != nil {
		native.Close()
		return nil, err
	}
	return newConn(native, time.Now()), nil
}

// =============================================================================
// 🎯 借出与归还
// =============================================================================

// Acquire 借出一个连接句柄。
// 优先复用空闲连接；未达上限时新建；否则排队等待，最多等待 BusyTimeout。
func (p *Pool) Acquire(ctx context.Context) (*Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("acquire: %w", err)
	}

	start := time.Now()
	deadline := start.Add(p.config.BusyTimeout)

	for {
		p.mu.Lock()
		if err := p.readyLocked("acquire"); err != nil {
			p.mu.Unlock()
			p.recorder.RecordAcquire("closed", time.Since(start))
			return nil, err
		}

		if n := len(p.idle); n > 0 {
			c := p.idle[n-1]
			p.idle[n-1] = nil
			p.idle = p.idle[:n-1]
			p.checkoutLocked(c)
			p.mu.Unlock()
			p.afterAcquire(start)
			return c, nil
		}

		if p.numOpen < p.config.MaxConnections {
			p.numOpen++
			db := p.db
			p.mu.Unlock()
			return p.openForCaller(ctx, db, start)
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			p.timeoutCount++
			p.mu.Unlock()
			return nil, p.exhausted(start)
		}

		w := &waiter{ch: make(chan *Conn, 1)}
		elem := p.waiters.PushBack(w)
		p.waitCount++
		p.mu.Unlock()

		c, retry, err := p.wait(ctx, w, elem, remaining, start)
		if err != nil || !retry {
			return c, err
		}
	}
}

// wait 阻塞等待 release 的交接、空位通知、超时或取消
func (p *Pool) wait(ctx context.Context, w *waiter, elem *list.Element, remaining time.Duration, start time.Time) (*Conn, bool, error) {
	timer := time.NewTimer(remaining)
	defer timer.Stop()

	select {
	case c, ok := <-w.ch:
		p.addWait(time.Since(start))
		if !ok {
			p.recorder.RecordAcquire("closed", time.Since(start))
			return nil, false, closedError("acquire")
		}
		if c == nil {
			return nil, true, nil
		}
		p.afterAcquire(start)
		return c, false, nil

	case <-timer.C:
		c, err := p.abandonWait(w, elem, start)
		if err != nil {
			p.recorder.RecordAcquire("closed", time.Since(start))
			return nil, false, err
		}
		if c != nil {
			p.afterAcquire(start)
			return c, false, nil
		}
		p.mu.Lock()
		p.timeoutCount++
		p.mu.Unlock()
		return nil, false, p.exhausted(start)

	case <-ctx.Done():
		if c, _ := p.abandonWait(w, elem, start); c != nil {
			// 已交接的句柄退回池中，不占用借出计数
			p.Release(c, nil)
		}
		p.recorder.RecordAcquire("canceled", time.Since(start))
		return nil, false, fmt.Errorf("acquire canceled after %s: %w", time.Since(start).Round(time.Millisecond), ctx.Err())
	}
}

// abandonWait 撤销排队；若 release 已经完成交接，则返回交接到的句柄。
// 排队已被 Close 关闭时返回 ErrPoolClosed。
func (p *Pool) abandonWait(w *waiter, elem *list.Element, start time.Time) (*Conn, error) {
	p.mu.Lock()
	p.waitDuration += time.Since(start)
	if !w.served {
		p.waiters.Remove(elem)
		w.served = true
		p.mu.Unlock()
		return nil, nil
	}
	p.mu.Unlock()

	c, ok := <-w.ch
	if !ok {
		return nil, closedError("acquire")
	}
	if c == nil {
		// 空位通知转交给下一个等待者
		p.mu.Lock()
		if p.state == StateReady {
			p.wakeWaiterLocked()
		}
		p.mu.Unlock()
		return nil, nil
	}
	return c, nil
}

// openForCaller 在已预留名额的前提下新建连接并直接借出
func (p *Pool) openForCaller(ctx context.Context, db *sql.DB, start time.Time) (*Conn, error) {
	c, err := p.dial(ctx, db)
	if err != nil {
		p.mu.Lock()
		p.numOpen--
		ready := p.state == StateReady
		if ready {
			p.wakeWaiterLocked()
		}
		p.mu.Unlock()
		if !ready {
			p.recorder.RecordAcquire("closed", time.Since(start))
			return nil, closedError("acquire")
		}
		p.recorder.RecordAcquire("error", time.Since(start))
		return nil, &ConnectionError{Op: "acquire", Path: p.config.Path, Err: err}
	}

	p.mu.Lock()
	if p.state != StateReady {
		p.numOpen--
		p.mu.Unlock()
		p.closeConn(c, "pool_closed")
		p.recorder.RecordAcquire("closed", time.Since(start))
		return nil, closedError("acquire")
	}
	p.all[c] = struct{}{}
	p.createdCount++
	p.checkoutLocked(c)
	p.mu.Unlock()

	p.logger.Debug("database connection opened", zap.String("conn_id", c.id))
	p.afterAcquire(start)
	return c, nil
}

// Release 归还句柄。err 为调用方工作单元的结果，连接已损坏时直接关闭。
// 连接池关闭期间归还的句柄会被关闭而不是回收。
func (p *Pool) Release(c *Conn, err error) {
	if c == nil {
		return
	}

	p.mu.Lock()
	if _, ok := p.all[c]; !ok || !c.inUse {
		p.mu.Unlock()
		p.logger.Warn("release of a connection not checked out from this pool", zap.String("conn_id", c.id))
		return
	}

	now := time.Now()
	c.inUse = false
	c.lastUsedAt = now

	if p.state != StateReady || isBadConn(err) {
		reason := "pool_closed"
		if p.state == StateReady {
			reason = "bad_conn"
		}
		p.forgetLocked(c)
		p.outstanding--
		if p.state == StateDraining && p.outstanding == 0 && p.drained != nil {
			close(p.drained)
			p.drained = nil
		}
		if p.state == StateReady {
			p.wakeWaiterLocked()
		}
		p.mu.Unlock()
		p.closeConn(c, reason)
		p.recordSize()
		return
	}

	// 直接交接给最早的等待者，借出计数不变
	if w := p.popWaiterLocked(); w != nil {
		c.inUse = true
		w.ch <- c
		p.mu.Unlock()
		return
	}

	p.outstanding--
	p.idle = append(p.idle, c)
	p.mu.Unlock()
	p.recordSize()
}

// WithConn 作用域借出：fn 的所有退出路径（包括 panic）都会归还句柄
func (p *Pool) WithConn(ctx context.Context, fn func(ctx context.Context, c *Conn) error) (err error) {
	c, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			p.Release(c, driver.ErrBadConn)
			panic(r)
		}
		p.Release(c, err)
	}()

	return fn(ctx, c)
}

// WithTx 作用域事务：fn 返回错误或 panic 时回滚，否则提交
func (p *Pool) WithTx(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	return p.WithConn(ctx, func(ctx context.Context, c *Conn) (err error) {
		tx, err := c.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		defer func() {
			if r := recover(); r != nil {
				tx.Rollback()
				panic(r)
			}
		}()

		if err := fn(ctx, tx); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				p.logger.Warn("transaction rollback failed", zap.Error(rbErr))
			}
			return err
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit transaction: %w", err)
		}
		return nil
	})
}

// =============================================================================
// 🛑 关闭
// =============================================================================

// Close 关闭连接池：Ready → Draining → Closed。
// 空闲连接立即关闭；借出中的连接在归还时关闭，宽限期后强制关闭。
// 可重复调用，单个连接的关闭错误只记录日志。
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	switch p.state {
	case StateClosed:
		p.mu.Unlock()
		return nil
	case StateDraining:
		closed := p.closed
		p.mu.Unlock()
		select {
		case <-closed:
		case <-ctx.Done():
		}
		return nil
	case StateUninitialized, StateInitializing, StateFailed:
		// 进行中的 Initialize 会看到 Closed 并自行清理
		p.state = StateClosed
		close(p.closed)
		p.mu.Unlock()
		p.logger.Info("database pool closed before initialization completed")
		return nil
	}

	p.state = StateDraining
	p.logger.Info("draining database pool",
		zap.Int("idle", len(p.idle)),
		zap.Int("outstanding", p.outstanding),
	)

	idle := p.idle
	p.idle = nil
	for _, c := range idle {
		p.forgetLocked(c)
	}

	for e := p.waiters.Front(); e != nil; e = e.Next() {
		w := e.Value.(*waiter)
		w.served = true
		close(w.ch)
	}
	p.waiters.Init()

	var drained chan struct{}
	if p.outstanding > 0 {
		drained = make(chan struct{})
		p.drained = drained
	}

	reaperStop, reaperDone := p.reaperStop, p.reaperDone
	p.reaperStop, p.reaperDone = nil, nil
	p.mu.Unlock()

	if reaperStop != nil {
		close(reaperStop)
		<-reaperDone
	}

	p.discardAll(idle, "pool_closed")

	if drained != nil {
		p.awaitDrain(ctx, drained)
	}

	p.mu.Lock()
	p.state = StateClosed
	db := p.db
	p.mu.Unlock()

	if db != nil {
		if err := db.Close(); err != nil {
			p.logger.Warn("failed to close database", zap.Error(err))
		}
	}
	close(p.closed)
	p.recordSize()

	p.logger.Info("database pool closed")
	return nil
}

// awaitDrain 等待借出的连接归还，超过宽限期后强制关闭
func (p *Pool) awaitDrain(ctx context.Context, drained <-chan struct{}) {
	timer := time.NewTimer(p.config.GracePeriod)
	defer timer.Stop()

	select {
	case <-drained:
		return
	case <-timer.C:
	case <-ctx.Done():
	}

	p.mu.Lock()
	stragglers := make([]*Conn, 0, len(p.all))
	for c := range p.all {
		stragglers = append(stragglers, c)
	}
	p.mu.Unlock()

	p.logger.Warn("grace period elapsed, force closing outstanding connections",
		zap.Int("outstanding", len(stragglers)),
		zap.Duration("grace_period", p.config.GracePeriod),
	)

	// 关闭可能阻塞在进行中的语句上，不阻塞关闭流程
	for _, c := range stragglers {
		go func(c *Conn) {
			if err := c.close(); err != nil {
				p.logger.Warn("failed to force close connection", zap.String("conn_id", c.id), zap.Error(err))
			}
		}(c)
	}
}

// =============================================================================
// 🧹 空闲回收
// =============================================================================

func (p *Pool) reapLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	interval := p.config.IdleTimeout / 2
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.reapIdle(time.Now())
		}
	}
}

// reapIdle 关闭空闲超过 IdleTimeout 的连接，至少保留 MinIdle 个
func (p *Pool) reapIdle(now time.Time) int {
	p.mu.Lock()
	if p.state != StateReady {
		p.mu.Unlock()
		return 0
	}

	// idle 按归还时间排列，队首最久未用
	var expired []*Conn
	kept := p.idle[:0]
	surplus := len(p.idle) - p.config.MinIdle
	for _, c := range p.idle {
		if surplus > 0 && now.Sub(c.lastUsedAt) > p.config.IdleTimeout {
			expired = append(expired, c)
			surplus--
			continue
		}
		kept = append(kept, c)
	}
	for i := len(kept); i < len(p.idle); i++ {
		p.idle[i] = nil
	}
	p.idle = kept
	for _, c := range expired {
		p.forgetLocked(c)
	}
	p.mu.Unlock()

	if len(expired) > 0 {
		p.discardAll(expired, "idle_timeout")
		p.recordSize()
	}
	return len(expired)
}

// =============================================================================
// 📊 统计信息
// =============================================================================

// Stats 连接池统计信息
type Stats struct {
	State          string        `json:"state"`
	MaxConnections int           `json:"max_connections"`
	Open           int           `json:"open"`
	Idle           int           `json:"idle"`
	Outstanding    int           `json:"outstanding"`
	Waiters        int           `json:"waiters"`
	WaitCount      int64         `json:"wait_count"`
	WaitDuration   time.Duration `json:"wait_duration"`
	TimeoutCount   int64         `json:"timeout_count"`
	Created        int64         `json:"created"`
	Closed         int64         `json:"closed"`
}

// Stats 返回连接池统计信息
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return Stats{
		State:          p.state.String(),
		MaxConnections: p.config.MaxConnections,
		Open:           p.numOpen,
		Idle:           len(p.idle),
		Outstanding:    p.outstanding,
		Waiters:        p.waiters.Len(),
		WaitCount:      p.waitCount,
		WaitDuration:   p.waitDuration,
		TimeoutCount:   p.timeoutCount,
		Created:        p.createdCount,
		Closed:         p.closedCount,
	}
}

// State 返回当前生命周期状态
func (p *Pool) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Path 返回数据库文件路径
func (p *Pool) Path() string {
	return p.config.Path
}

// Ping 借出一个连接并探活
func (p *Pool) Ping(ctx context.Context) error {
	return p.WithConn(ctx, func(ctx context.Context, c *Conn) error {
		return c.native.PingContext(ctx)
	})
}

// =============================================================================
// 🔧 内部辅助
// =============================================================================

// readyLocked 返回非 Ready 状态对应的错误
func (p *Pool) readyLocked(op string) error {
	switch p.state {
	case StateReady:
		return nil
	case StateDraining, StateClosed:
		return closedError(op)
	default:
		if p.initErr != nil {
			return p.initErr
		}
		return &ConnectionError{Op: op, Path: p.config.Path, Err: errNotInitialized}
	}
}

// initializingLocked 引导是否仍可提交结果（未被 Close 打断）
func (p *Pool) initializingLocked() bool {
	return p.state == StateInitializing || p.state == StateFailed
}

func (p *Pool) checkoutLocked(c *Conn) {
	c.inUse = true
	c.lastUsedAt = time.Now()
	p.outstanding++
}

func (p *Pool) forgetLocked(c *Conn) {
	delete(p.all, c)
	p.numOpen--
	p.closedCount++
}

func (p *Pool) popWaiterLocked() *waiter {
	e := p.waiters.Front()
	if e == nil {
		return nil
	}
	w := p.waiters.Remove(e).(*waiter)
	w.served = true
	return w
}

// wakeWaiterLocked 通知最早的等待者已有空位
func (p *Pool) wakeWaiterLocked() {
	if w := p.popWaiterLocked(); w != nil {
		w.ch <- nil
	}
}

func (p *Pool) addWait(d time.Duration) {
	p.mu.Lock()
	p.waitDuration += d
	p.mu.Unlock()
}

func (p *Pool) afterAcquire(start time.Time) {
	p.recorder.RecordAcquire("ok", time.Since(start))
	p.recordSize()
}

func (p *Pool) exhausted(start time.Time) error {
	waited := time.Since(start)
	p.recorder.RecordAcquire("exhausted", waited)
	p.logger.Warn("connection pool exhausted",
		zap.Duration("waited", waited),
		zap.Int("max_connections", p.config.MaxConnections),
	)
	return &PoolExhaustedError{Op: "acquire", Waited: waited, MaxConnections: p.config.MaxConnections}
}

func (p *Pool) closeConn(c *Conn, reason string) {
	p.recorder.RecordConnClosed(reason)
	if err := c.close(); err != nil {
		p.logger.Warn("failed to close database connection",
			zap.String("conn_id", c.id),
			zap.String("reason", reason),
			zap.Error(err),
		)
	}
}

func (p *Pool) discardAll(conns []*Conn, reason string) {
	for _, c := range conns {
		p.closeConn(c, reason)
	}
}

func (p *Pool) recordSize() {
	s := p.Stats()
	p.recorder.RecordPoolSize(s.Open, s.Idle, s.Outstanding, s.Waiters)
}
