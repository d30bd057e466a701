package certmanager

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/stencilhq/stencil/core/customdomain"
	"github.com/stencilhq/stencil/core/logger"
)

// Config holds certificate lifecycle settings loaded from the environment.
type Config struct {
	// AdminEmail is the platform's registered ACME account contact.
	AdminEmail string `env:"SSL_ADMIN_EMAIL,required"`

	// RenewalThresholdDays is how close to expiry a certificate must be
	// before it counts as needing renewal.
	RenewalThresholdDays int `env:"SSL_RENEWAL_DAYS_BEFORE_EXPIRY" envDefault:"30"`
}

// CertificateResult is the outcome of a provision, renew, or revoke call.
// Precondition violations and provider refusals are expected negatives and
// come back as Success false with a reason; only transport and persistence
// faults surface as errors.
type CertificateResult struct {
	Success       bool
	Domain        *customdomain.Domain
	FailureReason string

	CertificatePath string
	IssuedAt        *time.Time
	ExpiresAt       *time.Time
}

// Info augments the provider's view of a certificate with the platform's
// renewal policy for the domain.
type Info struct {
	Domain           string
	Issuer           string
	ValidFrom        time.Time
	ValidTo          time.Time
	DaysUntilExpiry  int
	AutoRenewEnabled bool
	NeedsRenewal     bool
}

// ExpiringCertificate is one row of an expiry sweep. DaysUntilExpiry is nil
// when the domain has no recorded expiry, which still counts as needing
// attention.
type ExpiringCertificate struct {
	Domain          *customdomain.Domain
	DaysUntilExpiry *int
	IsExpired       bool
}

// SweepReport summarizes one bulk renewal run.
type SweepReport struct {
	Total   int
	Renewed int
	Failed  int
	Skipped int
	Details []SweepDetail
}

// SweepDetail records the outcome for a single domain within a sweep.
type SweepDetail struct {
	DomainName   string
	Status       string // renewed, failed, or skipped
	Reason       string
	NewExpiresAt *time.Time
}

const (
	sweepRenewed = "renewed"
	sweepFailed  = "failed"
	sweepSkipped = "skipped"
)

// Manager owns the TLS certificate state of verified custom domains from
// issuance to revocation. Domain rows are only mutated after the provider
// confirms an operation, so persisted SSL fields never describe a
// certificate that was not actually issued, renewed, or revoked.
type Manager struct {
	domains  customdomain.Repository
	provider Provider

	adminEmail    string
	thresholdDays int

	log *slog.Logger
	now func() time.Time
}

// Option configures the Manager.
type Option func(*Manager)

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(log *slog.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// WithClock overrides the time source. Useful in tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager creates a certificate lifecycle manager.
func NewManager(domains customdomain.Repository, provider Provider, cfg Config, opts ...Option) (*Manager, error) {
	if domains == nil {
		return nil, ErrRepositoryNil
	}
	if provider == nil {
		return nil, ErrProviderNil
	}
	if cfg.AdminEmail == "" {
		return nil, ErrAdminEmailRequired
	}
	if cfg.RenewalThresholdDays <= 0 {
		cfg.RenewalThresholdDays = 30
	}

	m := &Manager{
		domains:       domains,
		provider:      provider,
		adminEmail:    cfg.AdminEmail,
		thresholdDays: cfg.RenewalThresholdDays,
		log:           slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:           time.Now,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}

// Provision obtains a certificate for a verified domain and enables SSL on
// it, opting the domain into auto-renewal. Re-provisioning an already
// SSL-enabled domain is allowed; the provider decides whether that is a
// no-op. The provider is never called for unverified domains.
func (m *Manager) Provision(ctx context.Context, domainID uuid.UUID) (*CertificateResult, error) {
	domain, err := m.domains.Find(ctx, domainID)
	if err != nil {
		return nil, err
	}

	if !domain.IsVerified {
		m.log.InfoContext(ctx, "certificate provisioning refused",
			logger.Domain(domain.DomainName),
			slog.String("reason", customdomain.ErrNotVerified.Error()))
		return &CertificateResult{
			Domain:        domain,
			FailureReason: customdomain.ErrNotVerified.Error(),
		}, nil
	}

	res, err := m.provider.ProvisionCertificate(ctx, domain.DomainName, m.adminEmail)
	if err != nil {
		m.log.ErrorContext(ctx, "certificate provisioning failed",
			logger.Domain(domain.DomainName), logger.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}
	if !res.Success {
		m.log.WarnContext(ctx, "certificate provider declined provisioning",
			logger.Domain(domain.DomainName),
			slog.String("reason", res.Error))
		return &CertificateResult{Domain: domain, FailureReason: res.Error}, nil
	}

	if err := domain.EnableSSL(res.CertificatePath, res.IssuedAt, res.ExpiresAt); err != nil {
		return nil, err
	}
	if err := m.domains.Save(ctx, domain); err != nil {
		return nil, fmt.Errorf("persist provisioned certificate: %w", err)
	}

	m.log.InfoContext(ctx, "certificate provisioned",
		logger.Domain(domain.DomainName),
		slog.Time("expires_at", res.ExpiresAt))

	return &CertificateResult{
		Success:         true,
		Domain:          domain,
		CertificatePath: res.CertificatePath,
		IssuedAt:        &res.IssuedAt,
		ExpiresAt:       &res.ExpiresAt,
	}, nil
}

// Renew replaces the certificate of an SSL-enabled domain. The auto-renew
// flag is left untouched; only the artifact path and validity window change.
func (m *Manager) Renew(ctx context.Context, domainID uuid.UUID) (*CertificateResult, error) {
	domain, err := m.domains.Find(ctx, domainID)
	if err != nil {
		return nil, err
	}

	if !domain.SSLEnabled {
		return &CertificateResult{
			Domain:        domain,
			FailureReason: customdomain.ErrSSLNotEnabled.Error(),
		}, nil
	}

	res, err := m.provider.RenewCertificate(ctx, domain.DomainName, m.adminEmail)
	if err != nil {
		m.log.ErrorContext(ctx, "certificate renewal failed",
			logger.Domain(domain.DomainName), logger.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}
	if !res.Success {
		m.log.WarnContext(ctx, "certificate provider declined renewal",
			logger.Domain(domain.DomainName),
			slog.String("reason", res.Error))
		return &CertificateResult{Domain: domain, FailureReason: res.Error}, nil
	}

	if err := domain.ApplyRenewal(res.CertificatePath, res.IssuedAt, res.ExpiresAt); err != nil {
		return nil, err
	}
	if err := m.domains.Save(ctx, domain); err != nil {
		return nil, fmt.Errorf("persist renewed certificate: %w", err)
	}

	m.log.InfoContext(ctx, "certificate renewed",
		logger.Domain(domain.DomainName),
		slog.Time("expires_at", res.ExpiresAt))

	return &CertificateResult{
		Success:         true,
		Domain:          domain,
		CertificatePath: domain.SSLCertificatePath,
		IssuedAt:        &res.IssuedAt,
		ExpiresAt:       &res.ExpiresAt,
	}, nil
}

// Revoke revokes the domain's certificate and clears every SSL field. On a
// provider refusal the domain is left untouched and stays SSL-enabled.
func (m *Manager) Revoke(ctx context.Context, domainID uuid.UUID) (*CertificateResult, error) {
	domain, err := m.domains.Find(ctx, domainID)
	if err != nil {
		return nil, err
	}

	if !domain.SSLEnabled {
		return &CertificateResult{
			Domain:        domain,
			FailureReason: customdomain.ErrSSLNotEnabled.Error(),
		}, nil
	}

	ok, err := m.provider.RevokeCertificate(ctx, domain.DomainName)
	if err != nil {
		m.log.ErrorContext(ctx, "certificate revocation failed",
			logger.Domain(domain.DomainName), logger.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}
	if !ok {
		m.log.WarnContext(ctx, "certificate provider declined revocation",
			logger.Domain(domain.DomainName))
		return &CertificateResult{Domain: domain, FailureReason: "provider declined revocation"}, nil
	}

	domain.ClearSSL()
	if err := m.domains.Save(ctx, domain); err != nil {
		return nil, fmt.Errorf("persist revoked certificate: %w", err)
	}

	m.log.InfoContext(ctx, "certificate revoked", logger.Domain(domain.DomainName))

	return &CertificateResult{Success: true, Domain: domain}, nil
}

// CertificateInfo returns the provider's view of the domain's certificate
// augmented with the platform renewal policy, or nil when SSL is not enabled
// (no provider call is made in that case).
func (m *Manager) CertificateInfo(ctx context.Context, domainID uuid.UUID) (*Info, error) {
	domain, err := m.domains.Find(ctx, domainID)
	if err != nil {
		return nil, err
	}

	if !domain.SSLEnabled {
		return nil, nil
	}

	info, err := m.provider.GetCertificateInfo(ctx, domain.DomainName)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}
	if info == nil {
		return nil, nil
	}

	return &Info{
		Domain:           info.Domain,
		Issuer:           info.Issuer,
		ValidFrom:        info.ValidFrom,
		ValidTo:          info.ValidTo,
		DaysUntilExpiry:  info.DaysUntilExpiry,
		AutoRenewEnabled: domain.AutoRenewSSL,
		NeedsRenewal:     info.DaysUntilExpiry <= m.thresholdDays,
	}, nil
}

// SSLSummary reports the persisted SSL state of a domain without touching
// the provider.
type SSLSummary struct {
	SSLEnabled      bool
	CertificatePath string
	IssuedAt        *time.Time
	ExpiresAt       *time.Time
	AutoRenewSSL    bool
	DaysUntilExpiry *int
}

// Summary returns the domain's persisted certificate state.
func (m *Manager) Summary(ctx context.Context, domainID uuid.UUID) (*SSLSummary, error) {
	domain, err := m.domains.Find(ctx, domainID)
	if err != nil {
		return nil, err
	}

	summary := &SSLSummary{
		SSLEnabled:      domain.SSLEnabled,
		CertificatePath: domain.SSLCertificatePath,
		IssuedAt:        domain.SSLCertificateIssuedAt,
		ExpiresAt:       domain.SSLCertificateExpiresAt,
		AutoRenewSSL:    domain.AutoRenewSSL,
	}
	if days, ok := domain.DaysUntilExpiry(m.now()); ok {
		summary.DaysUntilExpiry = &days
	}
	return summary, nil
}

// ExpiringCertificates returns every active SSL-enabled domain whose
// certificate expires within thresholdDays, has already expired, or has no
// recorded expiry at all.
func (m *Manager) ExpiringCertificates(ctx context.Context, thresholdDays int) ([]ExpiringCertificate, error) {
	if thresholdDays <= 0 {
		thresholdDays = m.thresholdDays
	}

	now := m.now()
	domains, err := m.domains.ListExpiringSSL(ctx, now.AddDate(0, 0, thresholdDays))
	if err != nil {
		return nil, fmt.Errorf("list expiring certificates: %w", err)
	}

	out := make([]ExpiringCertificate, 0, len(domains))
	for _, domain := range domains {
		row := ExpiringCertificate{Domain: domain}
		if days, ok := domain.DaysUntilExpiry(now); ok {
			row.DaysUntilExpiry = &days
			row.IsExpired = days < 0
		}
		out = append(out, row)
	}
	return out, nil
}

// RenewExpiring runs one bulk renewal sweep over the expiring set. Domains
// that opted out of auto-renewal are skipped and counted; the rest are
// renewed sequentially. The sweep is safe to invoke repeatedly: every run
// re-evaluates fresh expiry data.
func (m *Manager) RenewExpiring(ctx context.Context, thresholdDays int) (*SweepReport, error) {
	expiring, err := m.ExpiringCertificates(ctx, thresholdDays)
	if err != nil {
		return nil, err
	}

	report := &SweepReport{
		Total:   len(expiring),
		Details: make([]SweepDetail, 0, len(expiring)),
	}

	for _, row := range expiring {
		domain := row.Domain

		if !domain.AutoRenewSSL {
			report.Skipped++
			report.Details = append(report.Details, SweepDetail{
				DomainName: domain.DomainName,
				Status:     sweepSkipped,
				Reason:     "auto-renewal disabled",
			})
			continue
		}

		res, err := m.Renew(ctx, domain.ID)
		switch {
		case err != nil:
			report.Failed++
			report.Details = append(report.Details, SweepDetail{
				DomainName: domain.DomainName,
				Status:     sweepFailed,
				Reason:     err.Error(),
			})
		case !res.Success:
			report.Failed++
			report.Details = append(report.Details, SweepDetail{
				DomainName: domain.DomainName,
				Status:     sweepFailed,
				Reason:     res.FailureReason,
			})
		default:
			report.Renewed++
			report.Details = append(report.Details, SweepDetail{
				DomainName:   domain.DomainName,
				Status:       sweepRenewed,
				NewExpiresAt: res.ExpiresAt,
			})
		}
	}

	m.log.InfoContext(ctx, "certificate renewal sweep finished",
		logger.Count("total", report.Total),
		logger.Count("renewed", report.Renewed),
		logger.Count("failed", report.Failed),
		logger.Count("skipped", report.Skipped))

	return report, nil
}

// EnableAutoRenewal opts an SSL-enabled domain into unattended renewal.
func (m *Manager) EnableAutoRenewal(ctx context.Context, domainID uuid.UUID) error {
	return m.setAutoRenew(ctx, domainID, true)
}

// DisableAutoRenewal opts a domain out of unattended renewal. Always safe,
// even when SSL is not enabled.
func (m *Manager) DisableAutoRenewal(ctx context.Context, domainID uuid.UUID) error {
	return m.setAutoRenew(ctx, domainID, false)
}

func (m *Manager) setAutoRenew(ctx context.Context, domainID uuid.UUID, enabled bool) error {
	domain, err := m.domains.Find(ctx, domainID)
	if err != nil {
		return err
	}
	if err := domain.SetAutoRenew(enabled); err != nil {
		return err
	}
	if err := m.domains.Save(ctx, domain); err != nil {
		return fmt.Errorf("persist auto-renewal flag: %w", err)
	}
	m.log.InfoContext(ctx, "auto-renewal updated",
		logger.Domain(domain.DomainName),
		slog.Bool("enabled", enabled))
	return nil
}
