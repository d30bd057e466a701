package pg

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stencilhq/stencil/core/tenanturl"
)

// URLConfigRepository is the PostgreSQL implementation of
// tenanturl.URLConfigRepository.
type URLConfigRepository struct {
	pool *pgxpool.Pool
}

// NewURLConfigRepository creates a URL config repository over the pool.
func NewURLConfigRepository(pool *pgxpool.Pool) *URLConfigRepository {
	return &URLConfigRepository{pool: pool}
}

func (r *URLConfigRepository) conn(ctx context.Context) querier {
	if tx, ok := TxFromContext(ctx); ok {
		return tx
	}
	return r.pool
}

const urlConfigColumns = `id, tenant_id, url_pattern, COALESCE(subdomain, ''), COALESCE(url_path, ''),
	is_primary, is_active, created_at, updated_at`

func scanURLConfig(row pgx.Row) (*tenanturl.URLConfig, error) {
	var c tenanturl.URLConfig
	err := row.Scan(
		&c.ID, &c.TenantID, &c.Pattern, &c.Subdomain, &c.URLPath,
		&c.IsPrimary, &c.IsActive, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, tenanturl.ErrConfigNotFound
		}
		return nil, fmt.Errorf("scan url config: %w", err)
	}
	return &c, nil
}

// FindBySubdomain returns the subdomain-pattern configuration for the label.
func (r *URLConfigRepository) FindBySubdomain(ctx context.Context, subdomain string) (*tenanturl.URLConfig, error) {
	row := r.conn(ctx).QueryRow(ctx,
		`SELECT `+urlConfigColumns+` FROM tenant_url_configs WHERE url_pattern = 'subdomain' AND subdomain = $1`, subdomain)
	return scanURLConfig(row)
}

// FindByPath returns the path-pattern configuration for the path segment.
func (r *URLConfigRepository) FindByPath(ctx context.Context, urlPath string) (*tenanturl.URLConfig, error) {
	row := r.conn(ctx).QueryRow(ctx,
		`SELECT `+urlConfigColumns+` FROM tenant_url_configs WHERE url_pattern = 'path' AND url_path = $1`, urlPath)
	return scanURLConfig(row)
}

// FindByTenant returns the tenant's configurations, primary first.
func (r *URLConfigRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID) ([]*tenanturl.URLConfig, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+urlConfigColumns+`
		FROM tenant_url_configs
		WHERE tenant_id = $1
		ORDER BY is_primary DESC, created_at ASC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list url configs: %w", err)
	}
	defer rows.Close()

	var out []*tenanturl.URLConfig
	for rows.Next() {
		cfg, err := scanURLConfig(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, rows.Err()
}

// TenantRepository is the PostgreSQL implementation of
// tenanturl.TenantRepository.
type TenantRepository struct {
	pool *pgxpool.Pool
}

// NewTenantRepository creates a tenant repository over the pool.
func NewTenantRepository(pool *pgxpool.Pool) *TenantRepository {
	return &TenantRepository{pool: pool}
}

func (r *TenantRepository) conn(ctx context.Context) querier {
	if tx, ok := TxFromContext(ctx); ok {
		return tx
	}
	return r.pool
}

// Find returns the tenant or tenanturl.ErrTenantNotFound.
func (r *TenantRepository) Find(ctx context.Context, id uuid.UUID) (*tenanturl.Tenant, error) {
	var t tenanturl.Tenant
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT id, name, slug, is_active FROM tenants WHERE id = $1`, id).
		Scan(&t.ID, &t.Name, &t.Slug, &t.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, tenanturl.ErrTenantNotFound
		}
		return nil, fmt.Errorf("find tenant: %w", err)
	}
	return &t, nil
}
