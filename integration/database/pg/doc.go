// Package pg provides PostgreSQL connection management and the persistence
// adapters for custom domains, verification attempts, tenants, and tenant URL
// configurations.
//
// Connect wraps the pgx driver with retry logic and connection verification;
// Migrate applies the embedded goose migrations; Healthcheck returns a probe
// function for readiness endpoints.
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, cfg.ConnectionString, logger); err != nil {
//		log.Fatal(err)
//	}
//
//	domains := pg.NewDomainRepository(pool)
//	attempts := pg.NewAttemptRepository(pool)
//
// # Transactions
//
// Repositories pick up a transaction from the context when one is present,
// so multi-statement operations stay atomic without changing method
// signatures:
//
//	tx, _ := pool.Begin(ctx)
//	ctx = pg.WithTx(ctx, tx)
//	// repository calls now run inside tx
package pg
