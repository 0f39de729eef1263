package repository

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

//go:embed migrations
var migrations embed.FS

const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

// Config selects the database backend
type Config struct {
	Type string `yaml:"type"` // sqlite or postgres
	Path string `yaml:"path"` // sqlite file
	DSN  string `yaml:"dsn"`  // postgres connection string
}

// Open connects to the configured database and runs migrations
func Open(cfg Config, logger *zap.Logger) (*sqlx.DB, error) {
	var (
		db  *sqlx.DB
		err error
	)

	switch cfg.Type {
	case DialectSQLite, "":
		path := cfg.Path
		if path == "" {
			path = "./data/content_safety.db"
		}
		db, err = sqlx.Connect(DialectSQLite, path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		// sqlite allows a single writer
		db.SetMaxOpenConns(1)
		cfg.Type = DialectSQLite
	case DialectPostgres:
		db, err = sqlx.Connect(DialectPostgres, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown database type %q", cfg.Type)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := Migrate(db, cfg.Type, logger); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Info("Successfully connected to the database", zap.String("type", cfg.Type))
	return db, nil
}

// Migrate applies the embedded migrations for the dialect
func Migrate(db *sqlx.DB, dialect string, logger *zap.Logger) error {
	var (
		driver database.Driver
		err    error
	)
	switch dialect {
	case DialectSQLite:
		driver, err = sqlite.WithInstance(db.DB, &sqlite.Config{})
	case DialectPostgres:
		driver, err = postgres.WithInstance(db.DB, &postgres.Config{})
	default:
		return fmt.Errorf("unknown database type %q", dialect)
	}
	if err != nil {
		return fmt.Errorf("couldn't get database instance for running migrations: %w", err)
	}

	src, err := iofs.New(migrations, "migrations/"+dialect)
	if err != nil {
		return fmt.Errorf("couldn't load migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, dialect, driver)
	if err != nil {
		return fmt.Errorf("couldn't create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("couldn't run database migration: %w", err)
	}

	logger.Info("Database migration was run successfully", zap.String("dialect", dialect))
	return nil
}
