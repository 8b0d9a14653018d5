package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/appusage/internal/database"
	"github.com/BaSui01/appusage/internal/store"
)

// =============================================================================
// 📈 analytics 命令
// =============================================================================

type analyticsOptions struct {
	period   store.Period
	platform string
	user     string
	app      string
	limit    int
}

type analyticsReport struct {
	Report  string       `json:"report"`
	Period  store.Period `json:"period"`
	Results any          `json:"results"`
}

var analyticsReports = map[string]func(ctx context.Context, a *store.AnalyticsStore, o analyticsOptions) (any, error){
	"top-apps": func(ctx context.Context, a *store.AnalyticsStore, o analyticsOptions) (any, error) {
		return a.TopAppsByUsage(ctx, o.period, o.platform, o.limit)
	},
	"platforms": func(ctx context.Context, a *store.AnalyticsStore, o analyticsOptions) (any, error) {
		return a.PlatformStats(ctx, o.period)
	},
	"user-total": func(ctx context.Context, a *store.AnalyticsStore, o analyticsOptions) (any, error) {
		return a.UserTotal(ctx, o.user, o.period)
	},
	"user-top-apps": func(ctx context.Context, a *store.AnalyticsStore, o analyticsOptions) (any, error) {
		return a.UserTopApps(ctx, o.user, o.period, o.limit)
	},
	"daily": func(ctx context.Context, a *store.AnalyticsStore, o analyticsOptions) (any, error) {
		return a.DailyUsageTrend(ctx, o.app, o.period)
	},
}

// runAnalytics 处理 analytics 子命令
func runAnalytics(args []string) {
	if len(args) < 1 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		printAnalyticsUsage(os.Stdout)
		if len(args) < 1 {
			os.Exit(1)
		}
		return
	}

	fs := flag.NewFlagSet("analytics "+args[0], flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	from := fs.String("from", "", "Start date (YYYY-MM-DD)")
	to := fs.String("to", "", "End date (YYYY-MM-DD)")
	platform := fs.String("platform", "", "Only this platform (top-apps)")
	user := fs.String("user", "", "User (user-total, user-top-apps)")
	app := fs.String("app", "", "Only this application (daily)")
	limit := fs.Int("limit", 10, "Maximum rows (top-apps, user-top-apps)")
	fs.Parse(args[1:])

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

	opts := analyticsOptions{
		period:   store.Period{Start: *from, End: *to},
		platform: *platform,
		user:     *user,
		app:      *app,
		limit:    *limit,
	}
	err = analyticsCommand(ctx, pool, logger, args[0], opts, os.Stdout)
	if closeErr := pool.Close(context.Background()); closeErr != nil {
		logger.Warn("pool close", zap.Error(closeErr))
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// analyticsCommand 执行一个统计报表并以 JSON 输出
func analyticsCommand(ctx context.Context, pool *database.Pool, logger *zap.Logger, report string, o analyticsOptions, out io.Writer) error {
	run, ok := analyticsReports[report]
	if !ok {
		printAnalyticsUsage(out)
		return fmt.Errorf("unknown analytics report: %s", report)
	}

	results, err := run(ctx, store.NewAnalyticsStore(pool, logger), o)
	if err != nil {
		return fmt.Errorf("%s: %w", report, err)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(analyticsReport{Report: report, Period: o.period, Results: results})
}

func printAnalyticsUsage(w io.Writer) {
	names := make([]string, 0, len(analyticsReports))
	for name := range analyticsReports {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintf(w, `Usage Analytics

Usage:
  appusage analytics <report> [--from YYYY-MM-DD] [--to YYYY-MM-DD] [--config <path>]

Reports: %s

Options:
  --platform <name>   top-apps: only this platform
  --user <name>       user-total, user-top-apps: required
  --app <name>        daily: only this application
  --limit <n>         top-apps, user-top-apps: maximum rows (default 10)
`, strings.Join(names, ", "))
}
