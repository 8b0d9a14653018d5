// Package workerpool provides a bounded goroutine pool used for bulk store writes.
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var (
	ErrPoolClosed = errors.New("worker pool is closed")
	ErrPoolFull   = errors.New("worker pool queue is full")
)

// Task 一个工作单元
type Task func(ctx context.Context) error

// Pool 固定上限的 worker 池，worker 按需启动、空闲超时退出
type Pool struct {
	maxWorkers  int
	idleTimeout time.Duration
	queue       chan job
	logger      *zap.Logger

	// mu 保护 queue 的发送与关闭
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	workers atomic.Int32
	active  atomic.Int32

	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	rejected  atomic.Int64
}

type job struct {
	ctx  context.Context
	task Task
}

// Config 池配置
type Config struct {
	// 最大 worker 数
	MaxWorkers int `yaml:"max_workers" json:"max_workers"`
	// 队列长度
	QueueSize int `yaml:"queue_size" json:"queue_size"`
	// worker 空闲多久退出（至少保留一个）
	IdleTimeout time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		MaxWorkers:  4,
		QueueSize:   256,
		IdleTimeout: 30 * time.Second,
	}
}

// New 创建 worker 池
func New(cfg Config, logger *zap.Logger) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 1
	}
	if cfg.QueueSize < 0 {
		cfg.QueueSize = 0
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultConfig().IdleTimeout
	}
	return &Pool{
		maxWorkers:  cfg.MaxWorkers,
		idleTimeout: cfg.IdleTimeout,
		queue:       make(chan job, cfg.QueueSize),
		logger:      logger.With(zap.String("component", "worker_pool")),
	}
}

// Submit 非阻塞提交，队列满时返回 ErrPoolFull
func (p *Pool) Submit(ctx context.Context, task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}
	p.submitted.Add(1)
	p.ensureWorker()

	select {
	case p.queue <- job{ctx: ctx, task: task}:
		return nil
	default:
		p.rejected.Add(1)
		return ErrPoolFull
	}
}

// Enqueue 阻塞直到任务入队或 ctx 结束，队列满时对调用方形成背压
func (p *Pool) Enqueue(ctx context.Context, task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}
	p.submitted.Add(1)
	p.ensureWorker()

	select {
	case p.queue <- job{ctx: ctx, task: task}:
		return nil
	case <-ctx.Done():
		p.rejected.Add(1)
		return ctx.Err()
	}
}

func (p *Pool) ensureWorker() {
	for {
		current := p.workers.Load()
		if current >= int32(p.maxWorkers) {
			return
		}
		if p.workers.CompareAndSwap(current, current+1) {
			p.wg.Add(1)
			go p.worker()
			return
		}
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()

	timer := time.NewTimer(p.idleTimeout)
	defer timer.Stop()

	for {
		select {
		case j, ok := <-p.queue:
			if !ok {
				p.workers.Add(-1)
				return
			}

			p.active.Add(1)
			err := p.execute(j)
			p.active.Add(-1)

			if err != nil {
				p.failed.Add(1)
			} else {
				p.completed.Add(1)
			}

			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(p.idleTimeout)

		case <-timer.C:
			// 至少保留一个 worker
			if current := p.workers.Load(); current > 1 && p.workers.CompareAndSwap(current, current-1) {
				return
			}
			timer.Reset(p.idleTimeout)
		}
	}
}

func (p *Pool) execute(j job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("task panicked", zap.Any("panic", r), zap.Stack("stack"))
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()

	if err := j.ctx.Err(); err != nil {
		return err
	}
	return j.task(j.ctx)
}

// Close 停止接收任务，等待已入队任务执行完毕。可重复调用。
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
}

// Stats 返回池统计信息
func (p *Pool) Stats() Stats {
	return Stats{
		Workers:   int(p.workers.Load()),
		Active:    int(p.active.Load()),
		Queued:    len(p.queue),
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
		Rejected:  p.rejected.Load(),
	}
}

// Stats 池统计信息
type Stats struct {
	Workers   int   `json:"workers"`
	Active    int   `json:"active"`
	Queued    int   `json:"queued"`
	Submitted int64 `json:"submitted"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Rejected  int64 `json:"rejected"`
}
