package customdomain

import (
	"time"

	"github.com/google/uuid"
)

// VerificationMethod identifies how a domain owner proves control of a domain.
type VerificationMethod string

const (
	MethodDNSTXT     VerificationMethod = "dns_txt"
	MethodDNSCNAME   VerificationMethod = "dns_cname"
	MethodFileUpload VerificationMethod = "file_upload"
)

// Valid reports whether the method is one of the supported verification strategies.
func (m VerificationMethod) Valid() bool {
	switch m {
	case MethodDNSTXT, MethodDNSCNAME, MethodFileUpload:
		return true
	}
	return false
}

// Status is the coarse lifecycle state of a custom domain.
type Status string

const (
	StatusPendingVerification Status = "pending_verification"
	StatusActive              Status = "active"
	StatusSuspended           Status = "suspended"
)

// Domain is a customer-owned domain attached to a tenant storefront.
//
// SSL fields are only ever populated for verified domains, and AutoRenewSSL
// is only true while SSLEnabled is true. Mutations go through the methods
// below so those invariants hold in one place.
type Domain struct {
	ID                 uuid.UUID
	TenantID           uuid.UUID
	DomainName         string
	VerificationMethod VerificationMethod
	VerificationToken  string
	IsVerified         bool
	VerifiedAt         *time.Time
	IsPrimary          bool
	Status             Status

	SSLEnabled              bool
	SSLCertificatePath      string
	SSLCertificateIssuedAt  *time.Time
	SSLCertificateExpiresAt *time.Time
	AutoRenewSSL            bool

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// MarkVerified records a successful ownership verification. A domain still
// pending verification becomes active; failures never call this, so the
// verified flag only ever moves forward.
func (d *Domain) MarkVerified(now time.Time) {
	d.IsVerified = true
	d.VerifiedAt = &now
	if d.Status == StatusPendingVerification {
		d.Status = StatusActive
	}
}

// EnableSSL records a freshly provisioned certificate. Auto-renewal is opted
// in by default on first provisioning.
func (d *Domain) EnableSSL(certPath string, issuedAt, expiresAt time.Time) error {
	if !d.IsVerified {
		return ErrNotVerified
	}
	d.SSLEnabled = true
	d.SSLCertificatePath = certPath
	d.SSLCertificateIssuedAt = &issuedAt
	d.SSLCertificateExpiresAt = &expiresAt
	d.AutoRenewSSL = true
	return nil
}

// ApplyRenewal updates certificate artifacts after a renewal. The auto-renew
// flag is left untouched.
func (d *Domain) ApplyRenewal(certPath string, issuedAt, expiresAt time.Time) error {
	if !d.SSLEnabled {
		return ErrSSLNotEnabled
	}
	if certPath != "" {
		d.SSLCertificatePath = certPath
	}
	d.SSLCertificateIssuedAt = &issuedAt
	d.SSLCertificateExpiresAt = &expiresAt
	return nil
}

// ClearSSL drops all certificate state after a revocation.
func (d *Domain) ClearSSL() {
	d.SSLEnabled = false
	d.SSLCertificatePath = ""
	d.SSLCertificateIssuedAt = nil
	d.SSLCertificateExpiresAt = nil
	d.AutoRenewSSL = false
}

// SetAutoRenew toggles unattended renewal. Enabling requires an active
// certificate; disabling is always allowed.
func (d *Domain) SetAutoRenew(enabled bool) error {
	if enabled && !d.SSLEnabled {
		return ErrSSLNotEnabled
	}
	d.AutoRenewSSL = enabled
	return nil
}

// DaysUntilExpiry returns the number of whole days until the certificate
// expires, negative if already expired. The second return value is false when
// no expiry is recorded.
func (d *Domain) DaysUntilExpiry(now time.Time) (int, bool) {
	if d.SSLCertificateExpiresAt == nil {
		return 0, false
	}
	days := int(d.SSLCertificateExpiresAt.Sub(now).Hours() / 24)
	return days, true
}

// AttemptStatus is the outcome of a single verification attempt.
type AttemptStatus string

const (
	AttemptSuccess AttemptStatus = "success"
	AttemptFailed  AttemptStatus = "failed"
)

// VerificationAttempt is one row of the append-only verification audit log.
// Attempts are created once, including failures, and never mutated.
type VerificationAttempt struct {
	ID           uuid.UUID
	DomainID     uuid.UUID
	Method       VerificationMethod
	Status       AttemptStatus
	ResponseData string
	ErrorMessage string
	RequesterIP  string
	UserAgent    string
	CreatedAt    time.Time
}
