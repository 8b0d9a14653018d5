package migration

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// =============================================================================
// Embedded Migration Files
// =============================================================================

//go:embed migrations/sqlite/*.sql
var sqliteFS embed.FS

const migrationsPath = "migrations/sqlite"

// DefaultTableName is the name of the version bookkeeping table
const DefaultTableName = "schema_migrations"

// =============================================================================
// Types and Interfaces
// =============================================================================

// MigrationStatus represents the status of a migration
type MigrationStatus struct {
	Version uint
	Name    string
	Applied bool
	Dirty   bool
}

// MigrationInfo contains information about the current migration state
type MigrationInfo struct {
	CurrentVersion    uint
	Dirty             bool
	TotalMigrations   int
	AppliedMigrations int
	PendingMigrations int
}

// Config holds the configuration for the migrator
type Config struct {
	// TableName is the name of the migrations table (default: schema_migrations)
	TableName string

	// LockTimeout is the timeout for acquiring the migration lock
	LockTimeout time.Duration
}

// Migrator defines the interface for schema migrations
type Migrator interface {
	// Up applies all pending migrations
	Up(ctx context.Context) error

	// Down rolls back the last migration
	Down(ctx context.Context) error

	// Version returns the current migration version
	Version(ctx context.Context) (uint, bool, error)

	// Status returns the status of all migrations
	Status(ctx context.Context) ([]MigrationStatus, error)

	// Info returns information about the current migration state
	Info(ctx context.Context) (*MigrationInfo, error)

	// Close releases the migration source; the database is closed only if the migrator opened it
	Close() error
}

// =============================================================================
// Default Migrator Implementation
// =============================================================================

// DefaultMigrator implements the Migrator interface using golang-migrate
type DefaultMigrator struct {
	config  Config
	migrate *migrate.Migrate
	source  source.Driver
	db      *sql.DB
	ownsDB  bool
}

// NewMigrator creates a migrator over an already opened SQLite database.
// The caller keeps ownership of db.
func NewMigrator(db *sql.DB, cfg Config) (*DefaultMigrator, error) {
	if db == nil {
		return nil, errors.New("database is required")
	}

	if cfg.TableName == "" {
		cfg.TableName = DefaultTableName
	}
	if cfg.LockTimeout == 0 {
		cfg.LockTimeout = 15 * time.Second
	}

	m := &DefaultMigrator{
		config: cfg,
		db:     db,
	}

	if err := m.init(); err != nil {
		return nil, fmt.Errorf("failed to initialize migrator: %w", err)
	}

	return m, nil
}

// OpenMigrator opens the database with the given driver and creates a migrator that owns it
func OpenMigrator(driverName, dsn string, cfg Config) (*DefaultMigrator, error) {
	if dsn == "" {
		return nil, errors.New("database DSN is required")
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	m, err := NewMigrator(db, cfg)
	if err != nil {
		db.Close()
		return nil, err
	}
	m.ownsDB = true
	return m, nil
}

// init wires golang-migrate to the embedded source and the given database
func (m *DefaultMigrator) init() error {
	dbDriver, err := sqlite3.WithInstance(m.db, &sqlite3.Config{
		MigrationsTable: m.config.TableName,
	})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m.source, err = iofs.New(sqliteFS, migrationsPath)
	if err != nil {
		return fmt.Errorf("failed to create source driver: %w", err)
	}

	m.migrate, err = migrate.NewWithInstance("iofs", m.source, "sqlite3", dbDriver)
	if err != nil {
		m.source.Close()
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.migrate.LockTimeout = m.config.LockTimeout

	return nil
}

// Up applies all pending migrations
func (m *DefaultMigrator) Up(ctx context.Context) error {
	if err := m.migrate.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// Down rolls back the last migration
func (m *DefaultMigrator) Down(ctx context.Context) error {
	if err := m.migrate.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration down failed: %w", err)
	}
	return nil
}

// Version returns the current migration version
func (m *DefaultMigrator) Version(ctx context.Context) (uint, bool, error) {
	version, dirty, err := m.migrate.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to get version: %w", err)
	}
	return version, dirty, nil
}

// Status returns the status of all migrations
func (m *DefaultMigrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	currentVersion, dirty, err := m.Version(ctx)
	if err != nil {
		return nil, err
	}

	migrations, err := availableMigrations()
	if err != nil {
		return nil, err
	}

	statuses := make([]MigrationStatus, 0, len(migrations))
	for _, mig := range migrations {
		statuses = append(statuses, MigrationStatus{
			Version: mig.version,
			Name:    mig.name,
			Applied: mig.version <= currentVersion,
			Dirty:   dirty && mig.version == currentVersion,
		})
	}

	return statuses, nil
}

// Info returns information about the current migration state
func (m *DefaultMigrator) Info(ctx context.Context) (*MigrationInfo, error) {
	currentVersion, dirty, err := m.Version(ctx)
	if err != nil {
		return nil, err
	}

	migrations, err := availableMigrations()
	if err != nil {
		return nil, err
	}

	applied := 0
	for _, mig := range migrations {
		if mig.version <= currentVersion {
			applied++
		}
	}

	return &MigrationInfo{
		CurrentVersion:    currentVersion,
		Dirty:             dirty,
		TotalMigrations:   len(migrations),
		AppliedMigrations: applied,
		PendingMigrations: len(migrations) - applied,
	}, nil
}

// Close releases resources held by the migrator
func (m *DefaultMigrator) Close() error {
	if m.ownsDB {
		sourceErr, dbErr := m.migrate.Close()
		return errors.Join(sourceErr, dbErr)
	}
	// migrate.Close would also close the borrowed database
	return m.source.Close()
}

// =============================================================================
// Bootstrap
// =============================================================================

// Bootstrap applies every pending migration to db. Each migration only creates
// missing objects, so running it against an existing database is a no-op.
// db stays open.
func Bootstrap(ctx context.Context, db *sql.DB) error {
	m, err := NewMigrator(db, Config{})
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(ctx); err != nil {
		return err
	}

	_, dirty, err := m.Version(ctx)
	if err != nil {
		return err
	}
	if dirty {
		return errors.New("schema is in a dirty state, manual intervention required")
	}
	return nil
}

// =============================================================================
// Helper Functions
// =============================================================================

// migrationFile represents a migration file
type migrationFile struct {
	version uint
	name    string
}

// availableMigrations returns all embedded migrations sorted by version
func availableMigrations() ([]migrationFile, error) {
	entries, err := fs.ReadDir(sqliteFS, migrationsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	seen := make(map[uint]bool)
	var migrations []migrationFile

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if !strings.HasSuffix(name, ".up.sql") {
			continue
		}

		// 000001_create_app_usage.up.sql
		parts := strings.SplitN(name, "_", 2)
		if len(parts) < 2 {
			continue
		}

		version, err := strconv.ParseUint(parts[0], 10, 32)
		if err != nil {
			continue
		}

		if seen[uint(version)] {
			continue
		}
		seen[uint(version)] = true

		migrations = append(migrations, migrationFile{
			version: uint(version),
			name:    strings.TrimSuffix(parts[1], ".up.sql"),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].version < migrations[j].version
	})

	return migrations, nil
}
