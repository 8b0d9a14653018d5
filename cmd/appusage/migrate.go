package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"

	"github.com/BaSui01/appusage/internal/migration"
)

// =============================================================================
// 🗄️ 数据库迁移命令
// =============================================================================

// runMigrate 处理 migrate 子命令
func runMigrate(args []string) {
	if len(args) < 1 {
		printMigrateUsage(os.Stdout)
		os.Exit(1)
	}

	if args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		printMigrateUsage(os.Stdout)
		return
	}

	fs := flag.NewFlagSet("migrate "+args[0], flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args[1:])

	cfg := loadConfig(*configPath)
	if err := migrateCommand(context.Background(), args[0], cfg.Database.Path, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// migrateCommand 打开数据库文件并执行一个迁移子命令
func migrateCommand(ctx context.Context, sub, dbPath string, out io.Writer) error {
	run, ok := map[string]func(*migration.CLI, context.Context) error{
		"up":      (*migration.CLI).RunUp,
		"down":    (*migration.CLI).RunDown,
		"status":  (*migration.CLI).RunStatus,
		"version": (*migration.CLI).RunVersion,
		"info":    (*migration.CLI).RunInfo,
	}[sub]
	if !ok {
		printMigrateUsage(out)
		return fmt.Errorf("unknown migrate subcommand: %s", sub)
	}

	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create database directory: %w", err)
		}
	}

	m, err := migration.OpenMigrator(sqlite.DriverName, dbPath, migration.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer m.Close()

	cli := migration.NewCLI(m)
	cli.SetOutput(out)
	return run(cli, ctx)
}

func printMigrateUsage(w io.Writer) {
	fmt.Fprintln(w, `Database Migration Commands

Usage:
  appusage migrate <subcommand> [--config <path>]

Subcommands:
  up        Apply all pending migrations
  down      Rollback the last migration
  status    Show migration status
  version   Show current schema version
  info      Show schema information
  help      Show this help message

Examples:
  appusage migrate status
  appusage migrate up --config /etc/appusage/config.yaml`)
}
