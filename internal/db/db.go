package db

import (
	"context"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"

	"bluecarbon/migrations"
)

// DB wraps a pgxpool connection pool.
type DB struct {
	Pool *pgxpool.Pool
}

// New creates a new database connection pool.
func New(ctx context.Context, connString string) (*DB, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// RunMigrations runs all embedded SQL migrations.
func (d *DB) RunMigrations(connString string) error {
	sourceDriver, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", sourceDriver, connString)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("migration failed: %w", err)
	}

	return nil
}

// Ping checks database connectivity.
func (d *DB) Ping(ctx context.Context) error {
	return d.Pool.Ping(ctx)
}

// Close closes the connection pool.
func (d *DB) Close() {
	d.Pool.Close()
}

// SeedDevUsers inserts test contributors for development. Skips users that already exist.
func (d *DB) SeedDevUsers(ctx context.Context) error {
	users := []struct {
		id     string
		name   string
		email  string
		wallet *string
	}{
		{"dev-user-1", "Asha Menon", "asha@example.org", strPtr("0x52908400098527886E0F7030069857D2E4169EE7")},
		{"dev-user-2", "Ravi Kumar", "ravi@example.org", strPtr("0x8617E340B3D01FA5F11F306F4090FD50E238070D")},
		{"dev-user-3", "Lena Ortiz", "lena@example.org", nil},
	}

	query := `
		INSERT INTO users (id, name, email, wallet_address)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`

	for _, u := range users {
		if _, err := d.Pool.Exec(ctx, query, u.id, u.name, u.email, u.wallet); err != nil {
			return fmt.Errorf("failed to seed user %s: %w", u.id, err)
		}
	}

	return nil
}

func strPtr(s string) *string {
	return &s
}
