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
// 📊 summary 命令
// =============================================================================

type summaryReport struct {
	Catalog *store.Summary `json:"catalog"`
	Usage   *usageReport   `json:"usage,omitempty"`
	Pool    database.Stats `json:"pool"`
}

type usageReport struct {
	User          string `json:"user"`
	Records       int64  `json:"records"`
	TotalDuration string `json:"total_duration"`
}

func runSummary(args []string) {
	fs := flag.NewFlagSet("summary", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	user := fs.String("user", "", "Also summarize usage records of this user")
	fs.Parse(args)

	cfg := loadConfig(*configPath)
	logger := initLogger(cfg.Log)
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := database.NewPool(cfg.Database.PoolConfig(), logger)
	if err != nil {
		logger.Fatal("invalid database config", zap.Error(err))
	}
	if err := pool.Initialize(ctx); err != nil {
		logger.Fatal("failed to initialize database pool", zap.Error(err))
	}

	var opts []store.AppOption
	if cm := openCache(cfg.Cache, logger); cm != nil {
		defer cm.Close()
		opts = append(opts, store.WithCache(cm, cfg.Cache.DefaultTTL))
	}

	err = writeSummary(ctx, pool, logger, *user, os.Stdout, opts...)
	if closeErr := pool.Close(ctx); closeErr != nil {
		logger.Warn("pool close", zap.Error(closeErr))
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// writeSummary 汇总应用目录与指定用户的使用时长，以 JSON 输出
func writeSummary(ctx context.Context, pool *database.Pool, logger *zap.Logger, user string, out io.Writer, opts ...store.AppOption) error {
	catalog, err := store.NewAppStore(pool, logger, opts...).Summary(ctx)
	if err != nil {
		return fmt.Errorf("catalog summary: %w", err)
	}
	report := summaryReport{Catalog: catalog}

	if user != "" {
		total, err := store.NewAnalyticsStore(pool, logger).UserTotal(ctx, user, store.Period{})
		if err != nil {
			return fmt.Errorf("usage of %s: %w", user, err)
		}
		report.Usage = &usageReport{
			User:          user,
			Records:       total.Sessions,
			TotalDuration: store.FormatDuration(total.TotalSeconds),
		}
	}
	report.Pool = pool.Stats()

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
