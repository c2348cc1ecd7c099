package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// MigrationsTable records the applied schema version.
const MigrationsTable = "storefront_schema_migrations"

//go:embed sql/*.sql
var migrationsFS embed.FS

// Status is the schema version currently recorded in the database.
type Status struct {
	Version uint
	Dirty   bool
	// Empty is set when no migration has been applied yet.
	Empty bool
}

// Apply brings the schema up to the latest embedded version.
func Apply(ctx context.Context, pool *pgxpool.Pool) error {
	return run(ctx, pool, func(m *migrate.Migrate) error {
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return upError(m, err)
		}
		return nil
	})
}

// Rollback reverts the given number of migrations, most recent first.
func Rollback(ctx context.Context, pool *pgxpool.Pool, steps int) error {
	if steps <= 0 {
		return fmt.Errorf("rollback steps must be positive, got %d", steps)
	}
	return run(ctx, pool, func(m *migrate.Migrate) error {
		if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migrate down: %w", err)
		}
		return nil
	})
}

// CurrentStatus reports the recorded schema version.
func CurrentStatus(ctx context.Context, pool *pgxpool.Pool) (Status, error) {
	var st Status
	err := run(ctx, pool, func(m *migrate.Migrate) error {
		v, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			st.Empty = true
			return nil
		}
		if err != nil {
			return fmt.Errorf("read version: %w", err)
		}
		st.Version, st.Dirty = v, dirty
		return nil
	})
	return st, err
}

func run(ctx context.Context, pool *pgxpool.Pool, fn func(m *migrate.Migrate) error) error {
	srcDriver, err := iofs.New(migrationsFS, "sql")
	if err != nil {
		return fmt.Errorf("init iofs: %w", err)
	}

	sqlDB, err := sql.Open("pgx", pool.Config().ConnString())
	if err != nil {
		return fmt.Errorf("open sql db: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("ping sql db: %w", err)
	}

	dbDriver, err := postgres.WithInstance(sqlDB, &postgres.Config{MigrationsTable: MigrationsTable})
	if err != nil {
		return fmt.Errorf("init db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", srcDriver, "pgx", dbDriver)
	if err != nil {
		return fmt.Errorf("init migrate: %w", err)
	}
	defer m.Close()

	return fn(m)
}

func upError(m *migrate.Migrate, err error) error {
	if v, dirty, verr := m.Version(); verr == nil && dirty {
		return fmt.Errorf("migrate up: schema dirty at version %d: %w", v, err)
	}
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("migrate up: %w (missing .up.sql or .down.sql for a version)", err)
	}
	return fmt.Errorf("migrate up: %w", err)
}
