package tenanturl

import (
	"errors"
	"fmt"
)

var (
	// ErrTenantNotFound is the umbrella for every resolution failure. The
	// variants below wrap it so callers can branch on the umbrella while
	// logs keep the precise reason.
	ErrTenantNotFound = errors.New("tenant could not be resolved")

	// ErrUnknownHost means the host matches neither the base domain nor any
	// registered custom domain.
	ErrUnknownHost = fmt.Errorf("%w: host does not match any tenant", ErrTenantNotFound)

	// ErrDomainNotVerified means the host is a registered custom domain whose
	// ownership was never proven.
	ErrDomainNotVerified = fmt.Errorf("%w: custom domain is not verified", ErrTenantNotFound)

	// ErrDomainNotActive means the custom domain exists but is suspended or
	// still pending.
	ErrDomainNotActive = fmt.Errorf("%w: custom domain is not active", ErrTenantNotFound)

	// ErrNoURLConfig means no addressing configuration matches the request.
	ErrNoURLConfig = fmt.Errorf("%w: no url configuration for host", ErrTenantNotFound)

	// ErrConfigInactive means the matching configuration was disabled.
	ErrConfigInactive = fmt.Errorf("%w: url configuration is inactive", ErrTenantNotFound)

	// ErrTenantInactive means the tenant itself was deactivated.
	ErrTenantInactive = fmt.Errorf("%w: tenant is inactive", ErrTenantNotFound)

	// ErrConfigNotFound is returned by URLConfigRepository lookups that match
	// no row.
	ErrConfigNotFound = errors.New("url configuration not found")

	// ErrInvalidPattern is returned for an unsupported URLPattern value.
	ErrInvalidPattern = errors.New("unsupported url pattern")

	// ErrCacheMiss is returned by CacheStore.Get when the key is absent.
	ErrCacheMiss = errors.New("cache miss")

	// ErrPatternScanUnsupported is returned by cache stores that cannot
	// enumerate keys by pattern. Bulk eviction is refused rather than
	// falling back to flushing the whole store.
	ErrPatternScanUnsupported = errors.New("cache store does not support pattern deletion")
)
