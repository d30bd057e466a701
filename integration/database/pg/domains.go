package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stencilhq/stencil/core/customdomain"
)

// querier is the subset of the pgx API shared by pools and transactions, so
// repository methods run against whichever the context carries.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DomainRepository is the PostgreSQL implementation of
// customdomain.Repository.
type DomainRepository struct {
	pool *pgxpool.Pool
}

// NewDomainRepository creates a custom domain repository over the pool.
func NewDomainRepository(pool *pgxpool.Pool) *DomainRepository {
	return &DomainRepository{pool: pool}
}

func (r *DomainRepository) conn(ctx context.Context) querier {
	if tx, ok := TxFromContext(ctx); ok {
		return tx
	}
	return r.pool
}

const domainColumns = `id, tenant_id, domain_name, verification_method, verification_token,
	is_verified, verified_at, is_primary, status,
	ssl_enabled, ssl_certificate_path, ssl_certificate_issued_at, ssl_certificate_expires_at, auto_renew_ssl,
	created_at, updated_at, deleted_at`

func scanDomain(row pgx.Row) (*customdomain.Domain, error) {
	var d customdomain.Domain
	err := row.Scan(
		&d.ID, &d.TenantID, &d.DomainName, &d.VerificationMethod, &d.VerificationToken,
		&d.IsVerified, &d.VerifiedAt, &d.IsPrimary, &d.Status,
		&d.SSLEnabled, &d.SSLCertificatePath, &d.SSLCertificateIssuedAt, &d.SSLCertificateExpiresAt, &d.AutoRenewSSL,
		&d.CreatedAt, &d.UpdatedAt, &d.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, customdomain.ErrNotFound
		}
		return nil, fmt.Errorf("scan custom domain: %w", err)
	}
	return &d, nil
}

// Find returns the domain by ID, excluding soft-deleted rows.
func (r *DomainRepository) Find(ctx context.Context, id uuid.UUID) (*customdomain.Domain, error) {
	row := r.conn(ctx).QueryRow(ctx,
		`SELECT `+domainColumns+` FROM custom_domains WHERE id = $1 AND deleted_at IS NULL`, id)
	return scanDomain(row)
}

// FindByName returns the domain by its exact name.
func (r *DomainRepository) FindByName(ctx context.Context, domainName string) (*customdomain.Domain, error) {
	row := r.conn(ctx).QueryRow(ctx,
		`SELECT `+domainColumns+` FROM custom_domains WHERE domain_name = $1 AND deleted_at IS NULL`, domainName)
	return scanDomain(row)
}

// FindPrimaryByTenant returns the tenant's primary domain.
func (r *DomainRepository) FindPrimaryByTenant(ctx context.Context, tenantID uuid.UUID) (*customdomain.Domain, error) {
	row := r.conn(ctx).QueryRow(ctx,
		`SELECT `+domainColumns+` FROM custom_domains WHERE tenant_id = $1 AND is_primary AND deleted_at IS NULL`, tenantID)
	return scanDomain(row)
}

// Save upserts the whole aggregate in one statement so SSL fields can never
// be half-written.
func (r *DomainRepository) Save(ctx context.Context, domain *customdomain.Domain) error {
	now := time.Now()
	if domain.CreatedAt.IsZero() {
		domain.CreatedAt = now
	}
	domain.UpdatedAt = now

	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO custom_domains (
			id, tenant_id, domain_name, verification_method, verification_token,
			is_verified, verified_at, is_primary, status,
			ssl_enabled, ssl_certificate_path, ssl_certificate_issued_at, ssl_certificate_expires_at, auto_renew_ssl,
			created_at, updated_at, deleted_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (id) DO UPDATE SET
			domain_name = EXCLUDED.domain_name,
			verification_method = EXCLUDED.verification_method,
			verification_token = EXCLUDED.verification_token,
			is_verified = EXCLUDED.is_verified,
			verified_at = EXCLUDED.verified_at,
			is_primary = EXCLUDED.is_primary,
			status = EXCLUDED.status,
			ssl_enabled = EXCLUDED.ssl_enabled,
			ssl_certificate_path = EXCLUDED.ssl_certificate_path,
			ssl_certificate_issued_at = EXCLUDED.ssl_certificate_issued_at,
			ssl_certificate_expires_at = EXCLUDED.ssl_certificate_expires_at,
			auto_renew_ssl = EXCLUDED.auto_renew_ssl,
			updated_at = EXCLUDED.updated_at,
			deleted_at = EXCLUDED.deleted_at`,
		domain.ID, domain.TenantID, domain.DomainName, domain.VerificationMethod, domain.VerificationToken,
		domain.IsVerified, domain.VerifiedAt, domain.IsPrimary, domain.Status,
		domain.SSLEnabled, domain.SSLCertificatePath, domain.SSLCertificateIssuedAt, domain.SSLCertificateExpiresAt, domain.AutoRenewSSL,
		domain.CreatedAt, domain.UpdatedAt, domain.DeletedAt,
	)
	if err != nil {
		return fmt.Errorf("save custom domain: %w", err)
	}
	return nil
}

// ListExpiringSSL returns active SSL-enabled domains whose certificate expiry
// is unset or before the cutoff.
func (r *DomainRepository) ListExpiringSSL(ctx context.Context, before time.Time) ([]*customdomain.Domain, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+domainColumns+`
		FROM custom_domains
		WHERE status = 'active'
		  AND ssl_enabled
		  AND deleted_at IS NULL
		  AND (ssl_certificate_expires_at IS NULL OR ssl_certificate_expires_at < $1)
		ORDER BY ssl_certificate_expires_at ASC NULLS FIRST`, before)
	if err != nil {
		return nil, fmt.Errorf("list expiring ssl domains: %w", err)
	}
	defer rows.Close()

	var out []*customdomain.Domain
	for rows.Next() {
		domain, err := scanDomain(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, domain)
	}
	return out, rows.Err()
}

// SetPrimary promotes the domain to the tenant's primary and demotes any
// previous primary in the same transaction.
func (r *DomainRepository) SetPrimary(ctx context.Context, tenantID, domainID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin set-primary transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	ctx = WithTx(ctx, tx)

	domain, err := r.Find(ctx, domainID)
	if err != nil {
		return err
	}
	if domain.TenantID != tenantID {
		return customdomain.ErrNotFound
	}
	if !domain.IsVerified || domain.Status != customdomain.StatusActive {
		return customdomain.ErrNotEligiblePrimary
	}

	if _, err := tx.Exec(ctx, `
		UPDATE custom_domains SET is_primary = FALSE, updated_at = now()
		WHERE tenant_id = $1 AND is_primary AND deleted_at IS NULL`, tenantID); err != nil {
		return fmt.Errorf("demote previous primary domain: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE custom_domains SET is_primary = TRUE, updated_at = now()
		WHERE id = $1`, domainID); err != nil {
		return fmt.Errorf("promote primary domain: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit set-primary transaction: %w", err)
	}
	return nil
}
