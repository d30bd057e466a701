package certmanager

import (
	"context"
	"time"
)

// ProviderResult is the outcome of a provision or renew call against the
// certificate provider. Success false carries the provider's reason; the
// artifact paths are only meaningful on success.
type ProviderResult struct {
	Success bool
	Error   string

	CertificatePath string
	PrivateKeyPath  string
	FullchainPath   string
	IssuedAt        time.Time
	ExpiresAt       time.Time
}

// CertificateInfo describes an issued certificate as reported by the provider.
type CertificateInfo struct {
	Domain          string
	Issuer          string
	ValidFrom       time.Time
	ValidTo         time.Time
	DaysUntilExpiry int
}

// Provider is the ACME-style collaborator that actually issues, renews, and
// revokes certificates. Errors are reserved for transport faults; a provider
// that processed the request but declined it reports that inside the result.
type Provider interface {
	// ProvisionCertificate obtains a fresh certificate for the domain.
	ProvisionCertificate(ctx context.Context, domain, email string) (*ProviderResult, error)

	// RenewCertificate replaces the domain's certificate with a fresh one.
	RenewCertificate(ctx context.Context, domain, email string) (*ProviderResult, error)

	// RevokeCertificate revokes the domain's certificate. The boolean reports
	// whether the provider accepted the revocation.
	RevokeCertificate(ctx context.Context, domain string) (bool, error)

	// GetCertificateInfo returns details of the current certificate, or nil
	// when the provider holds none for the domain.
	GetCertificateInfo(ctx context.Context, domain string) (*CertificateInfo, error)
}
