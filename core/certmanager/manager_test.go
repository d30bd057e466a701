package certmanager_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stencilhq/stencil/core/certmanager"
	"github.com/stencilhq/stencil/core/customdomain"
)

type mockDomainRepo struct {
	domains   map[uuid.UUID]*customdomain.Domain
	saveCalls int
	saveErr   error
	listErr   error
	listFn    func(ctx context.Context, before time.Time) ([]*customdomain.Domain, error)
}

func newMockDomainRepo(domains ...*customdomain.Domain) *mockDomainRepo {
	repo := &mockDomainRepo{domains: make(map[uuid.UUID]*customdomain.Domain)}
	for _, d := range domains {
		repo.domains[d.ID] = d
	}
	return repo
}

func (r *mockDomainRepo) Find(_ context.Context, id uuid.UUID) (*customdomain.Domain, error) {
	domain, ok := r.domains[id]
	if !ok {
		return nil, customdomain.ErrNotFound
	}
	return domain, nil
}

func (r *mockDomainRepo) FindByName(_ context.Context, name string) (*customdomain.Domain, error) {
	for _, domain := range r.domains {
		if domain.DomainName == name {
			return domain, nil
		}
	}
	return nil, customdomain.ErrNotFound
}

func (r *mockDomainRepo) FindPrimaryByTenant(_ context.Context, tenantID uuid.UUID) (*customdomain.Domain, error) {
	for _, domain := range r.domains {
		if domain.TenantID == tenantID && domain.IsPrimary {
			return domain, nil
		}
	}
	return nil, customdomain.ErrNotFound
}

func (r *mockDomainRepo) Save(_ context.Context, domain *customdomain.Domain) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.saveCalls++
	r.domains[domain.ID] = domain
	return nil
}

func (r *mockDomainRepo) ListExpiringSSL(ctx context.Context, before time.Time) ([]*customdomain.Domain, error) {
	if r.listFn != nil {
		return r.listFn(ctx, before)
	}
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []*customdomain.Domain
	for _, domain := range r.domains {
		if !domain.SSLEnabled || domain.Status != customdomain.StatusActive {
			continue
		}
		if domain.SSLCertificateExpiresAt == nil || domain.SSLCertificateExpiresAt.Before(before) {
			out = append(out, domain)
		}
	}
	return out, nil
}

func (r *mockDomainRepo) SetPrimary(_ context.Context, _, _ uuid.UUID) error {
	return nil
}

type mockProvider struct {
	provisionFn func(ctx context.Context, domain, email string) (*certmanager.ProviderResult, error)
	renewFn     func(ctx context.Context, domain, email string) (*certmanager.ProviderResult, error)
	revokeFn    func(ctx context.Context, domain string) (bool, error)
	infoFn      func(ctx context.Context, domain string) (*certmanager.CertificateInfo, error)

	provisionCalls int
	renewCalls     int
	infoCalls      int
}

func (p *mockProvider) ProvisionCertificate(ctx context.Context, domain, email string) (*certmanager.ProviderResult, error) {
	p.provisionCalls++
	if p.provisionFn == nil {
		return &certmanager.ProviderResult{Success: true}, nil
	}
	return p.provisionFn(ctx, domain, email)
}

func (p *mockProvider) RenewCertificate(ctx context.Context, domain, email string) (*certmanager.ProviderResult, error) {
	p.renewCalls++
	if p.renewFn == nil {
		return &certmanager.ProviderResult{Success: true}, nil
	}
	return p.renewFn(ctx, domain, email)
}

func (p *mockProvider) RevokeCertificate(ctx context.Context, domain string) (bool, error) {
	if p.revokeFn == nil {
		return true, nil
	}
	return p.revokeFn(ctx, domain)
}

func (p *mockProvider) GetCertificateInfo(ctx context.Context, domain string) (*certmanager.CertificateInfo, error) {
	p.infoCalls++
	if p.infoFn == nil {
		return nil, nil
	}
	return p.infoFn(ctx, domain)
}

func verifiedDomain(name string) *customdomain.Domain {
	now := time.Now().Add(-time.Hour)
	return &customdomain.Domain{
		ID:         uuid.New(),
		TenantID:   uuid.New(),
		DomainName: name,
		IsVerified: true,
		VerifiedAt: &now,
		Status:     customdomain.StatusActive,
	}
}

func sslDomain(name string, expiresAt time.Time) *customdomain.Domain {
	domain := verifiedDomain(name)
	issued := expiresAt.AddDate(0, 0, -90)
	_ = domain.EnableSSL("/etc/ssl/"+name+".crt", issued, expiresAt)
	return domain
}

func testConfig() certmanager.Config {
	return certmanager.Config{AdminEmail: "ops@example.com", RenewalThresholdDays: 30}
}

func TestNewManager(t *testing.T) {
	t.Parallel()

	repo := newMockDomainRepo()
	provider := &mockProvider{}

	t.Run("valid", func(t *testing.T) {
		t.Parallel()
		manager, err := certmanager.NewManager(repo, provider, testConfig())
		require.NoError(t, err)
		assert.NotNil(t, manager)
	})

	t.Run("nil repository", func(t *testing.T) {
		t.Parallel()
		_, err := certmanager.NewManager(nil, provider, testConfig())
		assert.ErrorIs(t, err, certmanager.ErrRepositoryNil)
	})

	t.Run("nil provider", func(t *testing.T) {
		t.Parallel()
		_, err := certmanager.NewManager(repo, nil, testConfig())
		assert.ErrorIs(t, err, certmanager.ErrProviderNil)
	})

	t.Run("missing admin email", func(t *testing.T) {
		t.Parallel()
		_, err := certmanager.NewManager(repo, provider, certmanager.Config{})
		assert.ErrorIs(t, err, certmanager.ErrAdminEmailRequired)
	})
}

func TestManager_Provision(t *testing.T) {
	t.Parallel()

	t.Run("unverified domain never reaches the provider", func(t *testing.T) {
		t.Parallel()

		domain := &customdomain.Domain{
			ID:         uuid.New(),
			DomainName: "shop.example.com",
			Status:     customdomain.StatusPendingVerification,
		}
		repo := newMockDomainRepo(domain)
		provider := &mockProvider{}

		manager, err := certmanager.NewManager(repo, provider, testConfig())
		require.NoError(t, err)

		result, err := manager.Provision(context.Background(), domain.ID)
		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.Equal(t, customdomain.ErrNotVerified.Error(), result.FailureReason)
		assert.Zero(t, provider.provisionCalls)
		assert.Zero(t, repo.saveCalls)
		assert.False(t, domain.SSLEnabled)
	})

	t.Run("success enables ssl and opts into auto-renewal", func(t *testing.T) {
		t.Parallel()

		domain := verifiedDomain("shop.example.com")
		repo := newMockDomainRepo(domain)

		issued := time.Now()
		expires := issued.AddDate(0, 0, 90)
		provider := &mockProvider{
			provisionFn: func(_ context.Context, name, email string) (*certmanager.ProviderResult, error) {
				assert.Equal(t, "shop.example.com", name)
				assert.Equal(t, "ops@example.com", email)
				return &certmanager.ProviderResult{
					Success:         true,
					CertificatePath: "/etc/ssl/shop.example.com.crt",
					IssuedAt:        issued,
					ExpiresAt:       expires,
				}, nil
			},
		}

		manager, err := certmanager.NewManager(repo, provider, testConfig())
		require.NoError(t, err)

		result, err := manager.Provision(context.Background(), domain.ID)
		require.NoError(t, err)
		require.True(t, result.Success)
		assert.Equal(t, "/etc/ssl/shop.example.com.crt", result.CertificatePath)

		assert.True(t, domain.SSLEnabled)
		assert.True(t, domain.AutoRenewSSL)
		require.NotNil(t, domain.SSLCertificateExpiresAt)
		assert.True(t, domain.SSLCertificateExpiresAt.Equal(expires))
		assert.Equal(t, 1, repo.saveCalls)
	})

	t.Run("provider decline leaves domain untouched", func(t *testing.T) {
		t.Parallel()

		domain := verifiedDomain("shop.example.com")
		repo := newMockDomainRepo(domain)
		provider := &mockProvider{
			provisionFn: func(context.Context, string, string) (*certmanager.ProviderResult, error) {
				return &certmanager.ProviderResult{Success: false, Error: "rate limited"}, nil
			},
		}

		manager, err := certmanager.NewManager(repo, provider, testConfig())
		require.NoError(t, err)

		result, err := manager.Provision(context.Background(), domain.ID)
		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.Equal(t, "rate limited", result.FailureReason)
		assert.False(t, domain.SSLEnabled)
		assert.Zero(t, repo.saveCalls)
	})

	t.Run("transport fault surfaces as error", func(t *testing.T) {
		t.Parallel()

		domain := verifiedDomain("shop.example.com")
		repo := newMockDomainRepo(domain)
		provider := &mockProvider{
			provisionFn: func(context.Context, string, string) (*certmanager.ProviderResult, error) {
				return nil, errors.New("connection refused")
			},
		}

		manager, err := certmanager.NewManager(repo, provider, testConfig())
		require.NoError(t, err)

		_, err = manager.Provision(context.Background(), domain.ID)
		require.Error(t, err)
		assert.ErrorIs(t, err, certmanager.ErrProviderUnavailable)
		assert.False(t, domain.SSLEnabled)
	})

	t.Run("unknown domain", func(t *testing.T) {
		t.Parallel()

		manager, err := certmanager.NewManager(newMockDomainRepo(), &mockProvider{}, testConfig())
		require.NoError(t, err)

		_, err = manager.Provision(context.Background(), uuid.New())
		assert.ErrorIs(t, err, customdomain.ErrNotFound)
	})
}

func TestManager_Renew(t *testing.T) {
	t.Parallel()

	t.Run("requires ssl enabled", func(t *testing.T) {
		t.Parallel()

		domain := verifiedDomain("shop.example.com")
		repo := newMockDomainRepo(domain)
		provider := &mockProvider{}

		manager, err := certmanager.NewManager(repo, provider, testConfig())
		require.NoError(t, err)

		result, err := manager.Renew(context.Background(), domain.ID)
		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.Equal(t, customdomain.ErrSSLNotEnabled.Error(), result.FailureReason)
		assert.Zero(t, provider.renewCalls)
	})

	t.Run("preserves auto-renew opt-out", func(t *testing.T) {
		t.Parallel()

		domain := sslDomain("shop.example.com", time.Now().AddDate(0, 0, 10))
		require.NoError(t, domain.SetAutoRenew(false))
		repo := newMockDomainRepo(domain)

		newExpiry := time.Now().AddDate(0, 0, 90)
		provider := &mockProvider{
			renewFn: func(context.Context, string, string) (*certmanager.ProviderResult, error) {
				return &certmanager.ProviderResult{
					Success:   true,
					IssuedAt:  time.Now(),
					ExpiresAt: newExpiry,
				}, nil
			},
		}

		manager, err := certmanager.NewManager(repo, provider, testConfig())
		require.NoError(t, err)

		result, err := manager.Renew(context.Background(), domain.ID)
		require.NoError(t, err)
		require.True(t, result.Success)

		assert.False(t, domain.AutoRenewSSL, "renewal must not flip the opt-out")
		require.NotNil(t, domain.SSLCertificateExpiresAt)
		assert.True(t, domain.SSLCertificateExpiresAt.Equal(newExpiry))
	})

	t.Run("empty artifact path keeps the previous one", func(t *testing.T) {
		t.Parallel()

		domain := sslDomain("shop.example.com", time.Now().AddDate(0, 0, 10))
		previousPath := domain.SSLCertificatePath
		repo := newMockDomainRepo(domain)
		provider := &mockProvider{
			renewFn: func(context.Context, string, string) (*certmanager.ProviderResult, error) {
				return &certmanager.ProviderResult{
					Success:   true,
					IssuedAt:  time.Now(),
					ExpiresAt: time.Now().AddDate(0, 0, 90),
				}, nil
			},
		}

		manager, err := certmanager.NewManager(repo, provider, testConfig())
		require.NoError(t, err)

		_, err = manager.Renew(context.Background(), domain.ID)
		require.NoError(t, err)
		assert.Equal(t, previousPath, domain.SSLCertificatePath)
	})
}

func TestManager_Revoke(t *testing.T) {
	t.Parallel()

	t.Run("success clears all ssl state", func(t *testing.T) {
		t.Parallel()

		domain := sslDomain("shop.example.com", time.Now().AddDate(0, 0, 60))
		repo := newMockDomainRepo(domain)

		manager, err := certmanager.NewManager(repo, &mockProvider{}, testConfig())
		require.NoError(t, err)

		result, err := manager.Revoke(context.Background(), domain.ID)
		require.NoError(t, err)
		require.True(t, result.Success)

		assert.False(t, domain.SSLEnabled)
		assert.Empty(t, domain.SSLCertificatePath)
		assert.Nil(t, domain.SSLCertificateIssuedAt)
		assert.Nil(t, domain.SSLCertificateExpiresAt)
		assert.False(t, domain.AutoRenewSSL)
	})

	t.Run("decline leaves ssl intact", func(t *testing.T) {
		t.Parallel()

		domain := sslDomain("shop.example.com", time.Now().AddDate(0, 0, 60))
		repo := newMockDomainRepo(domain)
		provider := &mockProvider{
			revokeFn: func(context.Context, string) (bool, error) { return false, nil },
		}

		manager, err := certmanager.NewManager(repo, provider, testConfig())
		require.NoError(t, err)

		result, err := manager.Revoke(context.Background(), domain.ID)
		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.True(t, domain.SSLEnabled)
		assert.Zero(t, repo.saveCalls)
	})

	t.Run("without ssl", func(t *testing.T) {
		t.Parallel()

		domain := verifiedDomain("shop.example.com")
		manager, err := certmanager.NewManager(newMockDomainRepo(domain), &mockProvider{}, testConfig())
		require.NoError(t, err)

		result, err := manager.Revoke(context.Background(), domain.ID)
		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.Equal(t, customdomain.ErrSSLNotEnabled.Error(), result.FailureReason)
	})
}

func TestManager_CertificateInfo(t *testing.T) {
	t.Parallel()

	t.Run("nil without provider call when ssl disabled", func(t *testing.T) {
		t.Parallel()

		domain := verifiedDomain("shop.example.com")
		provider := &mockProvider{}

		manager, err := certmanager.NewManager(newMockDomainRepo(domain), provider, testConfig())
		require.NoError(t, err)

		info, err := manager.CertificateInfo(context.Background(), domain.ID)
		require.NoError(t, err)
		assert.Nil(t, info)
		assert.Zero(t, provider.infoCalls)
	})

	t.Run("augments provider info with renewal policy", func(t *testing.T) {
		t.Parallel()

		domain := sslDomain("shop.example.com", time.Now().AddDate(0, 0, 20))
		provider := &mockProvider{
			infoFn: func(_ context.Context, name string) (*certmanager.CertificateInfo, error) {
				return &certmanager.CertificateInfo{
					Domain:          name,
					Issuer:          "R11",
					DaysUntilExpiry: 20,
				}, nil
			},
		}

		manager, err := certmanager.NewManager(newMockDomainRepo(domain), provider, testConfig())
		require.NoError(t, err)

		info, err := manager.CertificateInfo(context.Background(), domain.ID)
		require.NoError(t, err)
		require.NotNil(t, info)
		assert.Equal(t, "R11", info.Issuer)
		assert.True(t, info.AutoRenewEnabled)
		assert.True(t, info.NeedsRenewal, "20 days left is inside the 30 day threshold")
	})
}

func TestManager_Summary(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	domain := sslDomain("shop.example.com", now.AddDate(0, 0, 45))
	repo := newMockDomainRepo(domain)

	manager, err := certmanager.NewManager(repo, &mockProvider{}, testConfig(),
		certmanager.WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	summary, err := manager.Summary(context.Background(), domain.ID)
	require.NoError(t, err)
	assert.True(t, summary.SSLEnabled)
	assert.True(t, summary.AutoRenewSSL)
	require.NotNil(t, summary.DaysUntilExpiry)
	assert.Equal(t, 45, *summary.DaysUntilExpiry)
}

func TestManager_ExpiringCertificates(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	soon := sslDomain("soon.example.com", now.AddDate(0, 0, 10))
	expired := sslDomain("expired.example.com", now.AddDate(0, 0, -5))
	noExpiry := sslDomain("blank.example.com", now)
	noExpiry.SSLCertificateExpiresAt = nil

	repo := newMockDomainRepo(soon, expired, noExpiry)

	manager, err := certmanager.NewManager(repo, &mockProvider{}, testConfig(),
		certmanager.WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	rows, err := manager.ExpiringCertificates(context.Background(), 30)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	byName := make(map[string]certmanager.ExpiringCertificate, len(rows))
	for _, row := range rows {
		byName[row.Domain.DomainName] = row
	}

	require.NotNil(t, byName["soon.example.com"].DaysUntilExpiry)
	assert.Equal(t, 10, *byName["soon.example.com"].DaysUntilExpiry)
	assert.False(t, byName["soon.example.com"].IsExpired)

	require.NotNil(t, byName["expired.example.com"].DaysUntilExpiry)
	assert.Negative(t, *byName["expired.example.com"].DaysUntilExpiry)
	assert.True(t, byName["expired.example.com"].IsExpired)

	assert.Nil(t, byName["blank.example.com"].DaysUntilExpiry)
	assert.False(t, byName["blank.example.com"].IsExpired)
}

func TestManager_RenewExpiring(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	renews := sslDomain("renews.example.com", now.AddDate(0, 0, 10))
	optedOut := sslDomain("opted-out.example.com", now.AddDate(0, 0, 5))
	require.NoError(t, optedOut.SetAutoRenew(false))
	declined := sslDomain("declined.example.com", now.AddDate(0, 0, 3))

	repo := newMockDomainRepo(renews, optedOut, declined)
	provider := &mockProvider{
		renewFn: func(_ context.Context, name, _ string) (*certmanager.ProviderResult, error) {
			if name == "declined.example.com" {
				return &certmanager.ProviderResult{Success: false, Error: "order failed"}, nil
			}
			return &certmanager.ProviderResult{
				Success:   true,
				IssuedAt:  now,
				ExpiresAt: now.AddDate(0, 0, 90),
			}, nil
		},
	}

	manager, err := certmanager.NewManager(repo, provider, testConfig(),
		certmanager.WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	report, err := manager.RenewExpiring(context.Background(), 30)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 1, report.Renewed)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Skipped)
	require.Len(t, report.Details, 3)

	byName := make(map[string]certmanager.SweepDetail, len(report.Details))
	for _, detail := range report.Details {
		byName[detail.DomainName] = detail
	}
	assert.Equal(t, "renewed", byName["renews.example.com"].Status)
	assert.Equal(t, "skipped", byName["opted-out.example.com"].Status)
	assert.Equal(t, "auto-renewal disabled", byName["opted-out.example.com"].Reason)
	assert.Equal(t, "failed", byName["declined.example.com"].Status)
	assert.Equal(t, "order failed", byName["declined.example.com"].Reason)

	assert.False(t, optedOut.AutoRenewSSL)
	require.NotNil(t, renews.SSLCertificateExpiresAt)
	assert.True(t, renews.SSLCertificateExpiresAt.After(now.AddDate(0, 0, 30)))
}

func TestManager_AutoRenewalToggles(t *testing.T) {
	t.Parallel()

	t.Run("disable then re-enable", func(t *testing.T) {
		t.Parallel()

		domain := sslDomain("shop.example.com", time.Now().AddDate(0, 0, 60))
		repo := newMockDomainRepo(domain)

		manager, err := certmanager.NewManager(repo, &mockProvider{}, testConfig())
		require.NoError(t, err)

		require.NoError(t, manager.DisableAutoRenewal(context.Background(), domain.ID))
		assert.False(t, domain.AutoRenewSSL)

		require.NoError(t, manager.EnableAutoRenewal(context.Background(), domain.ID))
		assert.True(t, domain.AutoRenewSSL)
	})

	t.Run("enable requires ssl", func(t *testing.T) {
		t.Parallel()

		domain := verifiedDomain("shop.example.com")
		manager, err := certmanager.NewManager(newMockDomainRepo(domain), &mockProvider{}, testConfig())
		require.NoError(t, err)

		err = manager.EnableAutoRenewal(context.Background(), domain.ID)
		assert.ErrorIs(t, err, customdomain.ErrSSLNotEnabled)
	})
}
