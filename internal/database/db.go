// Package database owns the Postgres connection pool behind the namespace
// catalog and applies schema migrations on startup.
package database

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps the pgx connection pool handed to the catalog.
type DB struct {
	Pool *pgxpool.Pool
}

// Config holds catalog database settings.
type Config struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	Name           string `mapstructure:"name"`
	SSLMode        string `mapstructure:"sslmode"`
	MigrationsPath string `mapstructure:"migrationspath"`
}

// dsn builds the connection string. The password is URL-escaped because
// generated credentials routinely contain '/', '+' and '='.
func (cfg Config) dsn() string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User, url.QueryEscape(cfg.Password), cfg.Host, cfg.Port, cfg.Name, sslMode)
}

// NewDB connects to the catalog database, verifies the connection and runs
// any pending migrations from cfg.MigrationsPath.
func NewDB(cfg Config) (*DB, error) {
	dsn := cfg.dsn()
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if cfg.MigrationsPath != "" {
		m, err := migrate.New("file://"+cfg.MigrationsPath, dsn)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("open migrations: %w", err)
		}
		if err := m.Up(); err != nil && err != migrate.ErrNoChange {
			pool.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	return &DB{Pool: pool}, nil
}

// Close releases the connection pool.
func (db *DB) Close() {
	db.Pool.Close()
}
