package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/appusage/internal/workerpool"
)

// =============================================================================
// 📥 批量导入
// =============================================================================

// IngestResult 批量导入结果
type IngestResult struct {
	Upserted int              `json:"upserted"`
	Failed   int              `json:"failed"`
	Elapsed  time.Duration    `json:"elapsed"`
	Workers  workerpool.Stats `json:"workers"`
}

var errNotProcessed = errors.New("record not processed")

// Ingest 以至多 workers 个并发对 records 逐条 Upsert。
// workers 不超过连接池容量，<= 0 时取连接池容量。
// 入队阻塞在 workers 条以内；成功的记录原地替换为合并后的结果；单条失败不影响其余记录，
// 返回的 error 汇总了全部失败（逐条带下标）。
func (s *UsageStore) Ingest(ctx context.Context, records []*AppUsage, workers int) (IngestResult, error) {
	start := time.Now()
	if limit := s.pool.Stats().MaxConnections; workers <= 0 || workers > limit {
		workers = limit
	}

	// 队列只缓冲 workers 条，大批量输入时由 Enqueue 形成背压
	wp := workerpool.New(workerpool.Config{
		MaxWorkers: workers,
		QueueSize:  workers,
	}, s.logger)

	errs := make([]error, len(records))
	for i := range errs {
		errs[i] = errNotProcessed
	}
	for i, u := range records {
		i, u := i, u
		if err := wp.Enqueue(ctx, func(ctx context.Context) error {
			err := s.Upsert(ctx, u)
			errs[i] = err
			return err
		}); err != nil {
			errs[i] = err
			if ctx.Err() != nil {
				break
			}
		}
	}
	wp.Close()

	var (
		result IngestResult
		joined []error
	)
	for i, err := range errs {
		if errors.Is(err, errNotProcessed) && ctx.Err() != nil {
			err = ctx.Err()
		}
		if err != nil {
			result.Failed++
			joined = append(joined, fmt.Errorf("record %d: %w", i, err))
			continue
		}
		result.Upserted++
	}
	result.Elapsed = time.Since(start)
	result.Workers = wp.Stats()

	s.logger.Info("usage ingest finished",
		zap.Int("records", len(records)),
		zap.Int("upserted", result.Upserted),
		zap.Int("failed", result.Failed),
		zap.Int("workers", workers),
		zap.Duration("elapsed", result.Elapsed),
	)
	return result, errors.Join(joined...)
}
