package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stencilhq/stencil/core/customdomain"
)

// AttemptRepository is the PostgreSQL implementation of
// customdomain.AttemptRepository.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a verification attempt repository over the pool.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

func (r *AttemptRepository) conn(ctx context.Context) querier {
	if tx, ok := TxFromContext(ctx); ok {
		return tx
	}
	return r.pool
}

// Create appends one attempt record to the audit log.
func (r *AttemptRepository) Create(ctx context.Context, attempt *customdomain.VerificationAttempt) error {
	if attempt.ID == uuid.Nil {
		attempt.ID = uuid.New()
	}
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now()
	}

	// The response column is jsonb; an empty payload is stored as NULL.
	var responseData any
	if attempt.ResponseData != "" {
		responseData = []byte(attempt.ResponseData)
	}

	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO domain_verification_attempts (
			id, domain_id, method, status, response_data, error_message, requester_ip, user_agent, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		attempt.ID, attempt.DomainID, attempt.Method, attempt.Status,
		responseData, attempt.ErrorMessage, attempt.RequesterIP, attempt.UserAgent, attempt.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create verification attempt: %w", err)
	}
	return nil
}

// ListByDomain returns the most recent attempts for a domain, newest first.
func (r *AttemptRepository) ListByDomain(ctx context.Context, domainID uuid.UUID, limit int) ([]*customdomain.VerificationAttempt, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, domain_id, method, status, COALESCE(response_data::text, ''), error_message, requester_ip, user_agent, created_at
		FROM domain_verification_attempts
		WHERE domain_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, domainID, limit)
	if err != nil {
		return nil, fmt.Errorf("list verification attempts: %w", err)
	}
	defer rows.Close()

	var out []*customdomain.VerificationAttempt
	for rows.Next() {
		var a customdomain.VerificationAttempt
		if err := rows.Scan(
			&a.ID, &a.DomainID, &a.Method, &a.Status,
			&a.ResponseData, &a.ErrorMessage, &a.RequesterIP, &a.UserAgent, &a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan verification attempt: %w", err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}
