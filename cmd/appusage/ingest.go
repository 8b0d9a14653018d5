package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/appusage/internal/database"
	"github.com/BaSui01/appusage/internal/store"
)

// =============================================================================
// 📥 ingest 命令
// =============================================================================

// ingestRecord 导入文件中的一条记录。duration 为 HH:MM:SS，设置时覆盖 duration_seconds。
type ingestRecord struct {
	store.AppUsage
	Duration string `json:"duration,omitempty"`
}

func runIngest(args []string) {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	file := fs.String("file", "", "JSON array of usage records ('-' for stdin)")
	workers := fs.Int("workers", 0, "Concurrent writers (0 = pool size)")
	timeout := fs.Duration("timeout", 10*time.Minute, "Overall timeout")
	fs.Parse(args)

	if *file == "" {
		fmt.Fprintln(os.Stderr, "Error: --file is required")
		os.Exit(2)
	}

	cfg := loadConfig(*configPath)
	logger := initLogger(cfg.Log)
	defer logger.Sync()

	in := io.Reader(os.Stdin)
	if *file != "-" {
		f, err := os.Open(*file)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		in = f
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := database.NewPool(cfg.Database.PoolConfig(), logger)
	if err != nil {
		logger.Fatal("invalid database config", zap.Error(err))
	}
	if err := pool.Initialize(ctx); err != nil {
		logger.Fatal("failed to initialize database pool", zap.Error(err))
	}

	err = ingest(ctx, pool, logger, in, *workers, os.Stdout)
	if closeErr := pool.Close(context.Background()); closeErr != nil {
		logger.Warn("pool close", zap.Error(closeErr))
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// ingest 解析输入并批量写入，结果以 JSON 输出到 out。部分失败时仍输出结果并返回错误。
func ingest(ctx context.Context, pool *database.Pool, logger *zap.Logger, in io.Reader, workers int, out io.Writer) error {
	records, err := decodeIngestRecords(in)
	if err != nil {
		return err
	}

	result, ingestErr := store.NewUsageStore(pool, logger).Ingest(ctx, records, workers)

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return err
	}
	if ingestErr != nil {
		return fmt.Errorf("%d of %d records failed: %w", result.Failed, len(records), ingestErr)
	}
	return nil
}

func decodeIngestRecords(in io.Reader) ([]*store.AppUsage, error) {
	var raw []ingestRecord
	if err := json.NewDecoder(in).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}

	records := make([]*store.AppUsage, len(raw))
	for i := range raw {
		u := raw[i].AppUsage
		if raw[i].Duration != "" {
			secs, err := store.ParseDuration(raw[i].Duration)
			if err != nil {
				return nil, fmt.Errorf("record %d: %w", i, err)
			}
			u.DurationSeconds = secs
		}
		records[i] = &u
	}
	return records, nil
}
