package db

import (
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"

	_ "github.com/fernhill/clienthub/internal/server/db/migrations"
)

// RunMigrations executes all pending goose migrations, SQL and Go alike.
func RunMigrations(sqlDB *sql.DB) error {
	goose.SetBaseFS(EmbedMigrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("goose set dialect: %w", err)
	}

	if err := goose.Up(sqlDB, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}

	return nil
}
