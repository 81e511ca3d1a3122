package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pressly/goose/v3"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-engine/pkg/config"
	"github.com/angelmondragon/fulfillment-engine/pkg/db"
	"github.com/angelmondragon/fulfillment-engine/pkg/db/models"
)

const DefaultDir = "pkg/migrate/migrations"

// ErrModelSchema is returned for versioned commands on a store whose schema
// is derived from the gorm models rather than the goose files.
var ErrModelSchema = errors.New("sqlite schema is built from the models and has no migration history")

// Dialect maps a configured driver to the goose dialect of the SQL files.
// The files use uuid, jsonb and timestamptz, so only Postgres replays them;
// SQLite reports an empty dialect and is prepared from the models.
func Dialect(cfg config.DBConfig) (string, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case config.DBDriverPostgres, "":
		return "postgres", nil
	case config.DBDriverSQLite:
		return "", nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// Migrator applies schema changes for the configured driver.
type Migrator struct {
	gdb     *gorm.DB
	dir     string
	dialect string
}

// New binds a migrator to an open client. dir defaults to DefaultDir.
func New(client *db.Client, cfg config.DBConfig, dir string) (*Migrator, error) {
	if client == nil {
		return nil, fmt.Errorf("db client is required")
	}
	dialect, err := Dialect(cfg)
	if err != nil {
		return nil, err
	}
	if dir == "" {
		dir = DefaultDir
	}
	return &Migrator{gdb: client.DB(), dir: dir, dialect: dialect}, nil
}

// UsesGoose reports whether the versioned SQL files drive this store.
func (m *Migrator) UsesGoose() bool {
	return m.dialect != ""
}

// Up applies every pending migration, or syncs the tables from the models.
func (m *Migrator) Up(ctx context.Context) error {
	if !m.UsesGoose() {
		if err := m.gdb.WithContext(ctx).AutoMigrate(models.All()...); err != nil {
			return fmt.Errorf("auto-migrating sqlite schema: %w", err)
		}
		return nil
	}
	sqlDB, err := m.sqlDB()
	if err != nil {
		return err
	}
	if err := goose.UpContext(ctx, sqlDB, m.dir); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

// Down rolls back the latest migration.
func (m *Migrator) Down(ctx context.Context) error {
	if !m.UsesGoose() {
		return fmt.Errorf("down: %w", ErrModelSchema)
	}
	sqlDB, err := m.sqlDB()
	if err != nil {
		return err
	}
	if err := goose.DownContext(ctx, sqlDB, m.dir); err != nil {
		return fmt.Errorf("goose down: %w", err)
	}
	return nil
}

// Status prints the migration state. Goose writes its table to stdout; SQLite
// stores list each model table and whether it exists.
func (m *Migrator) Status(ctx context.Context, w io.Writer) error {
	if m.UsesGoose() {
		sqlDB, err := m.sqlDB()
		if err != nil {
			return err
		}
		if err := goose.StatusContext(ctx, sqlDB, m.dir); err != nil {
			return fmt.Errorf("goose status: %w", err)
		}
		return nil
	}
	migrator := m.gdb.WithContext(ctx).Migrator()
	for _, model := range models.All() {
		stmt := &gorm.Statement{DB: m.gdb}
		if err := stmt.Parse(model); err != nil {
			return fmt.Errorf("parse model %T: %w", model, err)
		}
		state := "missing"
		if migrator.HasTable(model) {
			state = "present"
		}
		if _, err := fmt.Fprintf(w, "%-24s %s\n", stmt.Schema.Table, state); err != nil {
			return err
		}
	}
	return nil
}

// To migrates up or down until the store sits at targetVersion.
func (m *Migrator) To(ctx context.Context, targetVersion string) error {
	if targetVersion == "" {
		return fmt.Errorf("targetVersion is required")
	}
	target, err := strconv.ParseInt(targetVersion, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", targetVersion, err)
	}
	if !m.UsesGoose() {
		return fmt.Errorf("migrate to %d: %w", target, ErrModelSchema)
	}
	sqlDB, err := m.sqlDB()
	if err != nil {
		return err
	}

	current, err := goose.GetDBVersionContext(ctx, sqlDB)
	if err != nil {
		return fmt.Errorf("get db version: %w", err)
	}

	switch {
	case current == target:
		return nil
	case current < target:
		if err := goose.UpToContext(ctx, sqlDB, m.dir, target); err != nil {
			return fmt.Errorf("goose up-to %d: %w", target, err)
		}
	default:
		if err := goose.DownToContext(ctx, sqlDB, m.dir, target); err != nil {
			return fmt.Errorf("goose down-to %d: %w", target, err)
		}
	}
	return nil
}

func (m *Migrator) sqlDB() (*sql.DB, error) {
	if err := goose.SetDialect(m.dialect); err != nil {
		return nil, fmt.Errorf("set goose dialect: %w", err)
	}
	sqlDB, err := m.gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("extracting sql.DB: %w", err)
	}
	return sqlDB, nil
}
