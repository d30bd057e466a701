// Package certmanager owns the TLS certificate lifecycle of verified custom
// domains: provisioning, renewal, revocation, expiry inspection, and the
// periodic bulk renewal sweep.
//
// # Manager
//
// Manager coordinates the domain repository and a certificate Provider. A
// domain row is only mutated after the provider confirms an operation, so the
// persisted SSL fields always describe a certificate that really exists.
// Expected negatives (unverified domain, provider refusal) come back as a
// CertificateResult with Success false; errors are reserved for transport and
// persistence faults.
//
//	manager, err := certmanager.NewManager(repo, provider, certmanager.Config{
//		AdminEmail:           "ops@example.com",
//		RenewalThresholdDays: 30,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	result, err := manager.Provision(ctx, domainID)
//	if err != nil {
//		log.Fatal(err)
//	}
//	if !result.Success {
//		log.Printf("provisioning refused: %s", result.FailureReason)
//	}
//
// # Providers
//
// Provider is the port to the actual certificate authority. LegoProvider is
// the production implementation: it runs ACME orders with HTTP-01 challenges
// and stores certificate artifacts on disk. Tests substitute their own
// Provider.
//
// # Renewal sweeps
//
// RenewExpiring renews every expiring certificate whose domain has
// auto-renewal enabled and reports per-domain outcomes. Scheduler runs the
// sweep on an interval with single-flight semantics:
//
//	scheduler, err := certmanager.NewScheduler(manager,
//		certmanager.WithSweepInterval(12*time.Hour),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	scheduler.Start(ctx)
//	defer scheduler.Stop()
package certmanager
