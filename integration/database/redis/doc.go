// Package redis provides Redis client initialization, health checking, and
// the Redis-backed resolution cache for tenant URL lookups.
//
// Connect validates the connection URL, retries transient failures, and
// verifies connectivity with a ping before returning the client. Both
// redis:// and rediss:// (TLS) URL schemes are supported.
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	cache := redis.NewCacheStore(client, cfg.ScanBatchSize)
//	resolver, err := tenanturl.NewResolver(tenants, configs, domains, urlCfg,
//		tenanturl.WithCache(cache))
//
// CacheStore implements pattern eviction with SCAN rather than KEYS or
// FLUSHDB, so clearing the resolver's namespace never blocks the server or
// touches unrelated keys.
//
// Healthcheck returns a probe function suitable for Kubernetes readiness and
// liveness endpoints:
//
//	health := redis.Healthcheck(client)
//	if err := health(ctx); err != nil {
//		// report unhealthy
//	}
package redis
