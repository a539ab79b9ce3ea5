// Package db opens the SQLite database and keeps its schema current through
// embedded goose migrations.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/fernhill/clienthub/internal/pkg/sqlite"
)

// New opens the database, verifies connectivity, and runs pending
// migrations. SQLite allows one writer, so the pool is capped accordingly.
func New(cfg Config) *sql.DB {
	switch cfg.Dialect {
	case "sqlite", "sqlite3", "":
	default:
		panic(fmt.Errorf("invalid dialect: %s", cfg.Dialect))
	}

	sqlDB, err := sql.Open("sqlite3", cfg.DSN)
	if err != nil {
		panic(err)
	}

	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		panic(fmt.Errorf("ping sqlite: %w", err))
	}

	if _, err := sqlDB.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = sqlDB.Close()
		panic(fmt.Errorf("enable foreign keys: %w", err))
	}

	if err := RunMigrations(sqlDB); err != nil {
		_ = sqlDB.Close()
		panic(err)
	}

	return sqlDB
}
