package tenanturl

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// URLConfigRepository is the persistence port for tenant addressing
// configurations. Lookups include inactive rows so the resolver can tell a
// disabled configuration apart from a missing one; absent rows come back as
// ErrConfigNotFound.
type URLConfigRepository interface {
	// FindBySubdomain returns the subdomain-pattern configuration for the label.
	FindBySubdomain(ctx context.Context, subdomain string) (*URLConfig, error)

	// FindByPath returns the path-pattern configuration for the path segment.
	FindByPath(ctx context.Context, urlPath string) (*URLConfig, error)

	// FindByTenant returns the tenant's configurations, primary first.
	FindByTenant(ctx context.Context, tenantID uuid.UUID) ([]*URLConfig, error)
}

// TenantRepository is the persistence port for tenant records.
type TenantRepository interface {
	// Find returns the tenant or ErrTenantNotFound.
	Find(ctx context.Context, id uuid.UUID) (*Tenant, error)
}

// CacheStore is the port for the resolution cache. Implementations must
// return ErrCacheMiss for absent keys; stores that cannot enumerate keys
// return ErrPatternScanUnsupported from DeletePattern.
type CacheStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeletePattern(ctx context.Context, pattern string) error
}
