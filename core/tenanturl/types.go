package tenanturl

import (
	"time"

	"github.com/google/uuid"
)

// URLPattern selects how a tenant's storefront is addressed.
type URLPattern string

const (
	// PatternSubdomain serves the tenant on <identifier>.<base domain>.
	PatternSubdomain URLPattern = "subdomain"

	// PatternPath serves the tenant on the base domain under
	// /<path prefix>/<identifier>.
	PatternPath URLPattern = "path"

	// PatternCustomDomain serves the tenant on its own verified domain; the
	// identifier holds the full domain name.
	PatternCustomDomain URLPattern = "custom_domain"
)

// Valid reports whether the pattern is one of the supported addressing schemes.
func (p URLPattern) Valid() bool {
	switch p {
	case PatternSubdomain, PatternPath, PatternCustomDomain:
		return true
	}
	return false
}

// URLConfig is a tenant's addressing configuration, read-only from this
// package's perspective. Subdomain is set for the subdomain pattern, URLPath
// for the path pattern; the custom-domain pattern carries neither because the
// domain name lives on the CustomDomain record.
type URLConfig struct {
	ID        uuid.UUID  `json:"id"`
	TenantID  uuid.UUID  `json:"tenant_id"`
	Pattern   URLPattern `json:"pattern"`
	Subdomain string     `json:"subdomain,omitempty"`
	URLPath   string     `json:"url_path,omitempty"`
	IsPrimary bool       `json:"is_primary"`
	IsActive  bool       `json:"is_active"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Tenant is the slice of a tenant record the resolver needs.
type Tenant struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Slug     string    `json:"slug"`
	IsActive bool      `json:"is_active"`
}

// Resolution is the outcome of mapping an incoming request to a tenant. URL
// is the tenant's canonical base URL under its configured pattern.
type Resolution struct {
	Tenant *Tenant    `json:"tenant"`
	Config *URLConfig `json:"config"`
	URL    string     `json:"url"`
}

// Route is one host/path pair as seen on an incoming request.
type Route struct {
	Host string
	Path string
}
