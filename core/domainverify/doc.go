// Package domainverify proves that a customer controls a domain before any
// certificate or traffic is attached to it.
//
// Three challenge strategies are supported, dispatched on the domain's
// configured method and matched exhaustively so new methods cannot be added
// without updating every call site:
//
//   - dns_txt: a TXT record at _verify.<domain> equal to the verification token
//   - dns_cname: a CNAME at _verify.<domain> pointing to
//     <token>.verify.<provider domain> (trailing dots ignored on both sides)
//   - file_upload: https://<domain>/.well-known/verify-<token>.txt served
//     with the token as its exact trimmed content
//
// An absent or mismatched challenge is a normal negative outcome and comes
// back as a failed Result; only transport faults (wrapped in ErrProbeFailure)
// and unsupported methods surface as errors. Every call, success or failure,
// appends one record to the verification audit log before returning.
//
// RetryVerify wraps Verify with linear backoff (2, 4, 6 ... units) to absorb
// DNS propagation delay; Worker runs those loops on a background goroutine so
// the blocking sleeps never sit on a request path.
//
// # Basic Usage
//
//	engine, err := domainverify.NewEngine(domains, attempts, domainverify.Config{
//		ProviderDomain: "stencil.app",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	result, err := engine.Verify(ctx, domainID, domainverify.RequestMeta{
//		IP:        "203.0.113.7",
//		UserAgent: "curl/8.0",
//	})
//	if err != nil {
//		// DNS/HTTP transport fault, already logged to the attempt trail
//		return err
//	}
//	if !result.Success {
//		fmt.Println("challenge not found:", result.FailureReason)
//	}
package domainverify
