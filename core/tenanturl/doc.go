// Package tenanturl maps inbound host/path pairs to tenants across the three
// addressing patterns: subdomain tenancy on the platform base domain, path
// tenancy under a shared prefix, and verified custom domains.
//
// # Resolution
//
// Resolver dispatches on the request host. Hosts under the base domain route
// through TenantUrlConfig records; anything else is treated as a custom
// domain and must be registered, verified, and active. Every failure wraps
// ErrTenantNotFound so HTTP layers can map the whole family to a 404 while
// logs keep the precise reason.
//
//	resolver, err := tenanturl.NewResolver(tenants, configs, domains, tenanturl.Config{
//		BaseDomain: "stencil.example.com",
//	}, tenanturl.WithCache(cache))
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	res, err := resolver.ResolveFromRequest(ctx, r.Host, r.URL.Path)
//	if errors.Is(err, tenanturl.ErrTenantNotFound) {
//		http.NotFound(w, r)
//		return
//	}
//
// # Caching
//
// Successful resolutions are cached under a hashed key with a configurable
// TTL. Failures are never cached, so newly activated tenants resolve on the
// next request. ClearAllCache only evicts keys under the resolver's prefix
// and refuses to run against stores without pattern scanning, because a full
// flush could destroy unrelated cached data.
package tenanturl
