package tenanturl

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stencilhq/stencil/core/customdomain"
	"github.com/stencilhq/stencil/core/logger"
)

// Config holds resolver settings loaded from the environment.
type Config struct {
	// BaseDomain is the platform domain serving subdomain and path tenancy.
	BaseDomain string `env:"URL_BASE_DOMAIN,required"`

	// PathPrefix is the first path segment of path-based tenant URLs.
	PathPrefix string `env:"URL_PATH_PREFIX" envDefault:"t"`

	// CacheEnabled toggles the resolution cache.
	CacheEnabled bool `env:"URL_CACHE_ENABLED" envDefault:"true"`

	// CacheTTL bounds how long a resolution stays cached.
	CacheTTL time.Duration `env:"URL_CACHE_TTL" envDefault:"1h"`

	// CacheKeyPrefix namespaces resolver keys within a shared cache store.
	CacheKeyPrefix string `env:"URL_CACHE_KEY_PREFIX" envDefault:"tenanturl:"`
}

// Resolver maps inbound host/path pairs to tenants and builds canonical
// tenant URLs. Successful resolutions are cached under a hashed key; misses
// are never cached, so a tenant activated after a failed lookup is visible
// immediately.
type Resolver struct {
	tenants TenantRepository
	configs URLConfigRepository
	domains customdomain.Repository
	cache   CacheStore

	baseDomain     string
	pathPrefix     string
	cacheEnabled   bool
	cacheTTL       time.Duration
	cacheKeyPrefix string

	log *slog.Logger
}

// ResolverOption configures the Resolver.
type ResolverOption func(*Resolver)

// WithCache attaches a resolution cache. Without one every lookup resolves
// directly.
func WithCache(cache CacheStore) ResolverOption {
	return func(r *Resolver) {
		r.cache = cache
	}
}

// WithResolverLogger sets the structured logger. Defaults to a no-op logger.
func WithResolverLogger(log *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		if log != nil {
			r.log = log
		}
	}
}

// NewResolver creates a tenant URL resolver.
func NewResolver(tenants TenantRepository, configs URLConfigRepository, domains customdomain.Repository, cfg Config, opts ...ResolverOption) (*Resolver, error) {
	if tenants == nil {
		return nil, errors.New("tenant repository is required")
	}
	if configs == nil {
		return nil, errors.New("url config repository is required")
	}
	if domains == nil {
		return nil, errors.New("domain repository is required")
	}
	cfg.BaseDomain = strings.ToLower(strings.TrimSpace(cfg.BaseDomain))
	if cfg.BaseDomain == "" {
		return nil, errors.New("base domain is required")
	}
	if cfg.PathPrefix == "" {
		cfg.PathPrefix = "t"
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}
	if cfg.CacheKeyPrefix == "" {
		cfg.CacheKeyPrefix = "tenanturl:"
	}

	r := &Resolver{
		tenants:        tenants,
		configs:        configs,
		domains:        domains,
		baseDomain:     cfg.BaseDomain,
		pathPrefix:     strings.Trim(cfg.PathPrefix, "/"),
		cacheEnabled:   cfg.CacheEnabled,
		cacheTTL:       cfg.CacheTTL,
		cacheKeyPrefix: cfg.CacheKeyPrefix,
		log:            slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r, nil
}

// ResolveTenant builds the canonical route for a pattern and identifier and
// resolves it through the same cached path as inbound requests.
func (r *Resolver) ResolveTenant(ctx context.Context, pattern URLPattern, identifier string) (*Resolution, error) {
	route, err := r.Route(pattern, identifier)
	if err != nil {
		return nil, err
	}
	return r.ResolveFromRequest(ctx, route.Host, route.Path)
}

// Route builds the canonical host/path pair for a pattern and identifier.
func (r *Resolver) Route(pattern URLPattern, identifier string) (Route, error) {
	identifier = strings.ToLower(strings.TrimSpace(identifier))
	if identifier == "" {
		return Route{}, fmt.Errorf("%w: empty identifier", ErrInvalidPattern)
	}

	switch pattern {
	case PatternSubdomain:
		return Route{Host: identifier + "." + r.baseDomain, Path: "/"}, nil
	case PatternPath:
		return Route{Host: r.baseDomain, Path: "/" + r.pathPrefix + "/" + identifier}, nil
	case PatternCustomDomain:
		return Route{Host: identifier, Path: "/"}, nil
	default:
		return Route{}, fmt.Errorf("%w: %q", ErrInvalidPattern, pattern)
	}
}

// URL renders the canonical https URL for a pattern and identifier.
func (r *Resolver) URL(pattern URLPattern, identifier string) (string, error) {
	route, err := r.Route(pattern, identifier)
	if err != nil {
		return "", err
	}
	return "https://" + route.Host + route.Path, nil
}

// ResolveFromRequest maps an already-parsed request host and path to a
// tenant. With caching enabled the direct lookup runs at most once per TTL
// window; on a cache-store fault the entry is evicted and the fault returned
// rather than silently serving a possibly broken entry.
func (r *Resolver) ResolveFromRequest(ctx context.Context, host, path string) (*Resolution, error) {
	host = normalizeHost(host)
	path = normalizePath(path)
	if host == "" {
		return nil, ErrUnknownHost
	}

	if !r.cacheEnabled || r.cache == nil {
		return r.resolveDirect(ctx, host, path)
	}

	key := r.cacheKey(host, path)

	cached, err := r.cache.Get(ctx, key)
	switch {
	case err == nil:
		var res Resolution
		if uerr := json.Unmarshal(cached, &res); uerr == nil {
			return &res, nil
		}
		// Corrupt entry: drop it and fall through to a direct lookup.
		if derr := r.cache.Delete(ctx, key); derr != nil {
			r.log.WarnContext(ctx, "failed to evict corrupt cache entry",
				logger.CacheKey(key), logger.Error(derr))
		}
	case errors.Is(err, ErrCacheMiss):
		// fall through
	default:
		if derr := r.cache.Delete(ctx, key); derr != nil {
			r.log.WarnContext(ctx, "failed to evict cache entry after fault",
				logger.CacheKey(key), logger.Error(derr))
		}
		return nil, fmt.Errorf("resolution cache lookup: %w", err)
	}

	res, err := r.resolveDirect(ctx, host, path)
	if err != nil {
		return nil, err
	}

	if payload, merr := json.Marshal(res); merr == nil {
		if serr := r.cache.Set(ctx, key, payload, r.cacheTTL); serr != nil {
			r.log.WarnContext(ctx, "failed to cache resolution",
				logger.CacheKey(key), logger.Error(serr))
		}
	}

	return res, nil
}

// ClearCache evicts the cached resolution for one host/path pair.
func (r *Resolver) ClearCache(ctx context.Context, host, path string) error {
	if r.cache == nil {
		return nil
	}
	host = normalizeHost(host)
	path = normalizePath(path)
	return r.cache.Delete(ctx, r.cacheKey(host, path))
}

// ClearAllCache evicts every resolver key under the configured prefix. Stores
// without pattern scanning get ErrPatternScanUnsupported; there is no
// fallback to a full store flush because the store may be shared with
// unrelated data.
func (r *Resolver) ClearAllCache(ctx context.Context) error {
	if r.cache == nil {
		return nil
	}
	if err := r.cache.DeletePattern(ctx, r.cacheKeyPrefix+"*"); err != nil {
		return fmt.Errorf("clear resolution cache: %w", err)
	}
	r.log.InfoContext(ctx, "resolution cache cleared")
	return nil
}

// WarmCache resolves and caches the root route of every addressing
// configuration the given tenants have. Used after bulk provisioning to avoid
// a cold-cache stampede; failures are logged and skipped so one broken tenant
// does not abort the warmup. Returns how many routes were primed.
func (r *Resolver) WarmCache(ctx context.Context, tenantIDs ...uuid.UUID) (int, error) {
	warmed := 0
	for _, tenantID := range tenantIDs {
		if err := ctx.Err(); err != nil {
			return warmed, err
		}

		configs, err := r.configs.FindByTenant(ctx, tenantID)
		if err != nil {
			return warmed, fmt.Errorf("list url configs for tenant %s: %w", tenantID, err)
		}

		for _, cfg := range configs {
			if !cfg.IsActive {
				continue
			}
			identifier, ok := r.configIdentifier(ctx, cfg)
			if !ok {
				continue
			}
			if _, err := r.ResolveTenant(ctx, cfg.Pattern, identifier); err != nil {
				r.log.WarnContext(ctx, "cache warmup skipped route",
					logger.Tenant(tenantID.String()), logger.Error(err))
				continue
			}
			warmed++
		}
	}
	return warmed, nil
}

func (r *Resolver) configIdentifier(ctx context.Context, cfg *URLConfig) (string, bool) {
	switch cfg.Pattern {
	case PatternSubdomain:
		return cfg.Subdomain, cfg.Subdomain != ""
	case PatternPath:
		return cfg.URLPath, cfg.URLPath != ""
	case PatternCustomDomain:
		domain, err := r.primaryDomain(ctx, cfg.TenantID)
		if err != nil {
			return "", false
		}
		return domain.DomainName, true
	}
	return "", false
}

func (r *Resolver) resolveDirect(ctx context.Context, host, path string) (*Resolution, error) {
	switch {
	case host == r.baseDomain:
		return r.resolveByPath(ctx, path)
	case strings.HasSuffix(host, "."+r.baseDomain):
		return r.resolveBySubdomain(ctx, strings.TrimSuffix(host, "."+r.baseDomain))
	default:
		return r.resolveByCustomDomain(ctx, host)
	}
}

func (r *Resolver) resolveBySubdomain(ctx context.Context, subdomain string) (*Resolution, error) {
	cfg, err := r.configs.FindBySubdomain(ctx, subdomain)
	if err != nil {
		if errors.Is(err, ErrConfigNotFound) {
			return nil, ErrNoURLConfig
		}
		return nil, fmt.Errorf("lookup subdomain config: %w", err)
	}
	return r.finishResolution(ctx, cfg)
}

func (r *Resolver) resolveByPath(ctx context.Context, path string) (*Resolution, error) {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) < 2 || segments[0] != r.pathPrefix || segments[1] == "" {
		return nil, ErrNoURLConfig
	}

	cfg, err := r.configs.FindByPath(ctx, segments[1])
	if err != nil {
		if errors.Is(err, ErrConfigNotFound) {
			return nil, ErrNoURLConfig
		}
		return nil, fmt.Errorf("lookup path config: %w", err)
	}
	return r.finishResolution(ctx, cfg)
}

func (r *Resolver) resolveByCustomDomain(ctx context.Context, host string) (*Resolution, error) {
	domain, err := r.domains.FindByName(ctx, host)
	if err != nil {
		if errors.Is(err, customdomain.ErrNotFound) {
			return nil, ErrUnknownHost
		}
		return nil, fmt.Errorf("lookup custom domain: %w", err)
	}

	if !domain.IsVerified {
		return nil, ErrDomainNotVerified
	}
	if domain.Status != customdomain.StatusActive {
		return nil, ErrDomainNotActive
	}

	tenant, err := r.activeTenant(ctx, domain.TenantID)
	if err != nil {
		return nil, err
	}

	// The addressing config is optional for custom domains; the domain record
	// itself carries the routing key.
	var cfg *URLConfig
	if configs, err := r.configs.FindByTenant(ctx, domain.TenantID); err == nil {
		for _, c := range configs {
			if c.Pattern == PatternCustomDomain && c.IsActive {
				cfg = c
				break
			}
		}
	}

	return &Resolution{
		Tenant: tenant,
		Config: cfg,
		URL:    "https://" + domain.DomainName + "/",
	}, nil
}

func (r *Resolver) finishResolution(ctx context.Context, cfg *URLConfig) (*Resolution, error) {
	if !cfg.IsActive {
		return nil, ErrConfigInactive
	}

	tenant, err := r.activeTenant(ctx, cfg.TenantID)
	if err != nil {
		return nil, err
	}

	identifier := cfg.Subdomain
	if cfg.Pattern == PatternPath {
		identifier = cfg.URLPath
	}
	url, err := r.URL(cfg.Pattern, identifier)
	if err != nil {
		return nil, err
	}

	return &Resolution{Tenant: tenant, Config: cfg, URL: url}, nil
}

func (r *Resolver) activeTenant(ctx context.Context, tenantID uuid.UUID) (*Tenant, error) {
	tenant, err := r.tenants.Find(ctx, tenantID)
	if err != nil {
		if errors.Is(err, ErrTenantNotFound) {
			return nil, ErrTenantNotFound
		}
		return nil, fmt.Errorf("lookup tenant: %w", err)
	}
	if !tenant.IsActive {
		return nil, ErrTenantInactive
	}
	return tenant, nil
}

func (r *Resolver) primaryDomain(ctx context.Context, tenantID uuid.UUID) (*customdomain.Domain, error) {
	return r.domains.FindPrimaryByTenant(ctx, tenantID)
}

func (r *Resolver) cacheKey(host, path string) string {
	sum := sha256.Sum256([]byte(host + ":" + path))
	return r.cacheKeyPrefix + hex.EncodeToString(sum[:])
}

func normalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.TrimSuffix(host, ".")
}

func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}
