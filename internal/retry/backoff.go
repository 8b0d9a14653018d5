package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// Policy 定义重试策略配置
type Policy struct {
	MaxAttempts  int           `yaml:"max_attempts" json:"max_attempts"`   // 最大尝试次数（含首次执行）
	InitialDelay time.Duration `yaml:"initial_delay" json:"initial_delay"` // 初始延迟时间
	MaxDelay     time.Duration `yaml:"max_delay" json:"max_delay"`         // 最大延迟时间
	Multiplier   float64       `yaml:"multiplier" json:"multiplier"`       // 延迟时间倍增因子（指数退避）
	Jitter       bool          `yaml:"jitter" json:"jitter"`               // 是否添加随机抖动
}

// DefaultPolicy 返回默认的重试策略
// 适用于 SQLite 写锁竞争：短延迟、快速翻倍
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  5,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// normalize 修正非法参数
func (p Policy) normalize() Policy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = 50 * time.Millisecond
	}
	if p.MaxDelay < p.InitialDelay {
		p.MaxDelay = p.InitialDelay
	}
	if p.Multiplier < 1.0 {
		p.Multiplier = 2.0
	}
	return p
}

// Delay 计算第 attempt 次重试前的等待时间（attempt 从 1 开始）
// 指数退避 + 可选 ±25% 抖动，结果落在 [InitialDelay, MaxDelay] 区间
func (p Policy) Delay(attempt int) time.Duration {
	p = p.normalize()
	if attempt < 1 {
		attempt = 1
	}

	delay := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}

	if p.Jitter {
		jitter := delay * 0.25
		delay = delay + (rand.Float64()*2-1)*jitter
	}

	if delay < float64(p.InitialDelay) {
		delay = float64(p.InitialDelay)
	}
	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}

	return time.Duration(delay)
}

// Retryer 基于指数退避的重试器
type Retryer struct {
	policy    Policy
	retryable func(error) bool
	onRetry   func(attempt int, err error, delay time.Duration)
	logger    *zap.Logger
}

// Option 重试器选项
type Option func(*Retryer)

// WithRetryable 设置可重试判定函数（默认所有错误都可重试）
func WithRetryable(fn func(error) bool) Option {
	return func(r *Retryer) {
		r.retryable = fn
	}
}

// WithOnRetry 设置重试回调
func WithOnRetry(fn func(attempt int, err error, delay time.Duration)) Option {
	return func(r *Retryer) {
		r.onRetry = fn
	}
}

// New 创建指数退避重试器
func New(policy Policy, logger *zap.Logger, opts ...Option) *Retryer {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Retryer{
		policy:    policy.normalize(),
		retryable: func(error) bool { return true },
		logger:    logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Policy 返回生效的（已修正的）策略
func (r *Retryer) Policy() Policy {
	return r.policy
}

// Do 执行 fn，遇到可重试错误时按策略退避重试。
// 返回实际执行次数与最后一次的错误；重试预算耗尽时返回最后一次的原始错误，
// 由调用方决定如何映射。
func (r *Retryer) Do(ctx context.Context, fn func(ctx context.Context) error) (int, error) {
	var lastErr error

	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := r.policy.Delay(attempt - 1)

			r.logger.Debug("retrying",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", r.policy.MaxAttempts),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)

			if r.onRetry != nil {
				r.onRetry(attempt-1, lastErr, delay)
			}

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return attempt - 1, fmt.Errorf("retry canceled: %w", ctx.Err())
			case <-timer.C:
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			if attempt > 1 {
				r.logger.Debug("retry succeeded", zap.Int("attempt", attempt))
			}
			return attempt, nil
		}

		if !r.retryable(lastErr) {
			return attempt, lastErr
		}
	}

	r.logger.Warn("retry budget exhausted",
		zap.Int("attempts", r.policy.MaxAttempts),
		zap.Error(lastErr),
	)

	return r.policy.MaxAttempts, lastErr
}
