// Package customdomain defines the custom domain aggregate shared by the
// verification engine and the certificate lifecycle manager, together with
// the persistence ports they depend on.
//
// A Domain moves through a coarse lifecycle (pending_verification -> active,
// or suspended) while two orthogonal flags track trust and transport state:
// IsVerified, which only ever moves forward, and SSLEnabled, which is owned
// by the certificate manager. The invariants of the aggregate are enforced
// by its mutation methods:
//
//   - SSL fields can only be populated on a verified domain (EnableSSL)
//   - AutoRenewSSL can only be switched on while SSLEnabled (SetAutoRenew)
//   - revocation clears every SSL field at once (ClearSSL)
//
// VerificationAttempt is the append-only audit trail of ownership checks;
// every verification call writes exactly one record, success or failure.
//
// # Ports
//
//   - Repository: whole-aggregate atomic persistence for domains
//   - AttemptRepository: append-only verification log
//
// Implementations live in integration/database/pg.
package customdomain
