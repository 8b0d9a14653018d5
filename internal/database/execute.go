package database

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/appusage/internal/ctxkeys"
	"github.com/BaSui01/appusage/internal/retry"
)

// =============================================================================
// 🔄 锁竞争重试
// =============================================================================

// ExecuteWithRetry 借出一个连接执行一个工作单元。
// SQLite 只允许单写者，写操作可能因其他连接持锁而返回 busy/locked，
// 这类错误按 Retry 策略退避重试，预算耗尽后返回 *DatabaseLockedError；
// 其他错误不重试，包装为 *DatabaseError 立即返回。
func (p *Pool) ExecuteWithRetry(ctx context.Context, op string, fn func(ctx context.Context, c *Conn) error) error {
	ctx, span := p.tracer.Start(ctx, "db."+op, trace.WithAttributes(
		attribute.String("db.system", "sqlite"),
		attribute.String("db.operation", op),
	))
	defer span.End()
	if sc := span.SpanContext(); sc.HasTraceID() {
		if _, ok := ctxkeys.TraceID(ctx); !ok {
			ctx = ctxkeys.WithTraceID(ctx, sc.TraceID().String())
		}
	}

	err := p.WithConn(ctx, func(ctx context.Context, c *Conn) error {
		return p.runWithRetry(ctx, op, c, fn)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (p *Pool) runWithRetry(ctx context.Context, op string, c *Conn, fn func(ctx context.Context, c *Conn) error) error {
	logger := p.logger.With(ctxkeys.LogFields(ctx)...)
	r := retry.New(p.config.Retry, logger,
		retry.WithRetryable(IsLockError),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			p.recorder.RecordRetry(op)
			logger.Debug("database locked, retrying",
				zap.String("op", op),
				zap.String("conn_id", c.id),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(err),
			)
		}),
	)

	attempts, err := r.Do(ctx, func(ctx context.Context) error {
		return fn(ctx, c)
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case IsLockError(err):
		logger.Warn("database still locked after retries",
			zap.String("op", op),
			zap.Int("attempts", attempts),
			zap.Error(err),
		)
		return &DatabaseLockedError{Op: op, Attempts: attempts, Err: err}
	default:
		return &DatabaseError{Op: op, Err: err}
	}
}
