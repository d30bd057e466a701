package pg

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies the embedded schema migrations using goose. It opens a
// short-lived database/sql connection through the pgx stdlib driver because
// goose does not speak the pgx pool API.
func Migrate(ctx context.Context, connString string, log *slog.Logger) error {
	if connString == "" {
		return ErrEmptyConnectionString
	}

	db, err := sql.Open("pgx", connString)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	if log != nil {
		version, err := goose.GetDBVersionContext(ctx, db)
		if err == nil {
			log.InfoContext(ctx, "database migrations applied", slog.Int64("version", version))
		}
	}

	return nil
}
