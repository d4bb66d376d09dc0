package repo

import (
	"errors"
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrNotFound mirrors gorm.ErrRecordNotFound so callers outside this
// package never need to import gorm directly.
var ErrNotFound = gorm.ErrRecordNotFound

// Driver selects the backing SQL engine. sqlite is the embedded default
// used by a single-process deployment (glebarez/sqlite, CGO-free); postgres
// is available for a shared multi-process deployment.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Config configures Open.
type Config struct {
	Driver Driver
	DSN    string
}

// Repository is the process-wide handle to the durable store: one
// repository per process, opened at startup and closed on SIGINT.
type Repository struct {
	db *gorm.DB
}

// Open opens (and migrates) the repository. A missing sqlite file is
// created; schema versioning is forward-only, which AutoMigrate satisfies
// for the additive schema below.
func Open(cfg Config) (*Repository, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case DriverPostgres:
		dialector = postgres.Open(cfg.DSN)
	case DriverSQLite, "":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("repo: unknown driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("repo: open: %w", err)
	}
	if err := db.AutoMigrate(allModels()...); err != nil {
		return nil, fmt.Errorf("repo: migrate: %w", err)
	}
	if err := ensureSchemaVersion(db); err != nil {
		return nil, fmt.Errorf("repo: schema version: %w", err)
	}
	return &Repository{db: db}, nil
}

// ErrSchemaVersionMismatch indicates the stored schema version is newer
// than this binary understands: forward-only migrations mean an older
// binary must never write against a newer schema.
var ErrSchemaVersionMismatch = errors.New("repo: schema version mismatch")

// ensureSchemaVersion reads the `_meta` row, writing schemaVersion on
// first open, and refuses to run against a store stamped with a newer
// version than this binary supports.
func ensureSchemaVersion(db *gorm.DB) error {
	var meta SchemaMeta
	err := db.First(&meta, "id = ?", 1).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return db.Create(&SchemaMeta{ID: 1, Version: schemaVersion}).Error
	case err != nil:
		return err
	case meta.Version > schemaVersion:
		return fmt.Errorf("%w: on-disk=%d expected=%d", ErrSchemaVersionMismatch, meta.Version, schemaVersion)
	case meta.Version < schemaVersion:
		return db.Model(&SchemaMeta{}).Where("id = ?", 1).Update("version", schemaVersion).Error
	}
	return nil
}

// Close releases the underlying connection pool.
func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
