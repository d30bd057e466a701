package pg

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Domain-specific PostgreSQL errors for consistent error handling across the
// application. Use errors.Is() to check error types for retry logic and
// user-facing messages.
var (
	ErrEmptyConnectionString = errors.New("empty postgres connection string")
	ErrPostgresNotReady      = errors.New("postgres did not become ready within the given time period")
	ErrHealthcheckFailed     = errors.New("postgres healthcheck failed")
)

// IsNotFound reports whether the error is pgx's no-rows marker.
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// IsUniqueViolation reports whether the error is a unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// IsForeignKeyViolation reports whether the error is a foreign key violation.
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
