package certmanager

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-acme/lego/v4/certcrypto"
	"github.com/go-acme/lego/v4/certificate"
	"github.com/go-acme/lego/v4/challenge"
	"github.com/go-acme/lego/v4/challenge/http01"
	"github.com/go-acme/lego/v4/lego"
	"github.com/go-acme/lego/v4/registration"
)

// LegoOption configures the lego-backed provider.
type LegoOption func(*legoConfig) error

// WithCADirectoryURL overrides the ACME directory URL (defaults to Let's
// Encrypt production).
func WithCADirectoryURL(url string) LegoOption {
	return func(cfg *legoConfig) error {
		cfg.caDirURL = strings.TrimSpace(url)
		return nil
	}
}

// WithHTTP01Address selects the bind address for the internal HTTP-01
// challenge server (host:port). Leave empty for all interfaces on port 80.
func WithHTTP01Address(addr string) LegoOption {
	return func(cfg *legoConfig) error {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			return nil
		}
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return fmt.Errorf("invalid http-01 address %q: %w", addr, err)
		}
		cfg.http01Host = host
		cfg.http01Port = port
		return nil
	}
}

// WithCertificateKeyType overrides the key type of issued certificates.
func WithCertificateKeyType(keyType certcrypto.KeyType) LegoOption {
	return func(cfg *legoConfig) error {
		cfg.keyType = keyType
		return nil
	}
}

type legoConfig struct {
	outputDir  string
	caDirURL   string
	keyType    certcrypto.KeyType
	http01Host string
	http01Port string
}

// LegoProvider implements Provider against a real ACME endpoint using
// HTTP-01 challenges, writing certificate artifacts to disk. Verified
// domains are expected to already point at this host so the challenge
// server is reachable.
type LegoProvider struct {
	cfg             legoConfig
	clientFactory   func(*lego.Config) (acmeClient, error)
	accountKeyMaker func() (crypto.PrivateKey, error)
}

type acmeClient interface {
	Register(options registration.RegisterOptions) (*registration.Resource, error)
	SetHTTP01Provider(provider challenge.Provider) error
	Obtain(request certificate.ObtainRequest) (*certificate.Resource, error)
	Revoke(cert []byte) error
}

// NewLegoProvider creates an ACME provider storing artifacts under outputDir.
func NewLegoProvider(outputDir string, opts ...LegoOption) (*LegoProvider, error) {
	cfg := legoConfig{
		outputDir:  strings.TrimSpace(outputDir),
		caDirURL:   lego.LEDirectoryProduction,
		keyType:    certcrypto.RSA2048,
		http01Port: "80",
	}
	if cfg.outputDir == "" {
		return nil, errors.New("output directory is required")
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	return &LegoProvider{
		cfg:           cfg,
		clientFactory: defaultClientFactory,
		accountKeyMaker: func() (crypto.PrivateKey, error) {
			return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		},
	}, nil
}

// ProvisionCertificate obtains a fresh certificate for the domain. ACME
// order rejections come back as a failed result; only client setup faults
// are errors.
func (p *LegoProvider) ProvisionCertificate(ctx context.Context, domain, email string) (*ProviderResult, error) {
	return p.obtain(ctx, domain, email)
}

// RenewCertificate obtains a replacement certificate. ACME has no separate
// renewal flow; a renewal is a fresh order for the same name.
func (p *LegoProvider) RenewCertificate(ctx context.Context, domain, email string) (*ProviderResult, error) {
	return p.obtain(ctx, domain, email)
}

func (p *LegoProvider) obtain(ctx context.Context, domain, email string) (*ProviderResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client, user, err := p.newClient(email)
	if err != nil {
		return nil, err
	}

	reg, err := client.Register(registration.RegisterOptions{TermsOfServiceAgreed: true})
	if err != nil {
		return nil, fmt.Errorf("register acme account: %w", err)
	}
	user.registration = reg

	certRes, err := client.Obtain(certificate.ObtainRequest{
		Domains: []string{domain},
		Bundle:  true,
	})
	if err != nil {
		return &ProviderResult{Success: false, Error: err.Error()}, nil
	}

	return p.writeArtifacts(domain, certRes)
}

// RevokeCertificate revokes the stored certificate and removes its
// artifacts. A domain without artifacts on disk is reported as declined.
func (p *LegoProvider) RevokeCertificate(ctx context.Context, domain string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	certBytes, err := os.ReadFile(p.certPath(domain))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read certificate for %s: %w", domain, err)
	}

	client, _, err := p.newClient("")
	if err != nil {
		return false, err
	}
	if err := client.Revoke(certBytes); err != nil {
		return false, fmt.Errorf("revoke certificate for %s: %w", domain, err)
	}

	for _, path := range []string{p.certPath(domain), p.keyPath(domain), p.issuerPath(domain)} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return false, fmt.Errorf("remove certificate artifact %s: %w", path, err)
		}
	}

	return true, nil
}

// GetCertificateInfo parses the stored leaf certificate. A domain without
// artifacts yields nil with no error.
func (p *LegoProvider) GetCertificateInfo(ctx context.Context, domain string) (*CertificateInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	certPEM, err := os.ReadFile(p.certPath(domain))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read certificate for %s: %w", domain, err)
	}

	cert, err := parseLeafCertificate(certPEM)
	if err != nil {
		return nil, fmt.Errorf("parse certificate for %s: %w", domain, err)
	}

	return &CertificateInfo{
		Domain:          domain,
		Issuer:          cert.Issuer.CommonName,
		ValidFrom:       cert.NotBefore,
		ValidTo:         cert.NotAfter,
		DaysUntilExpiry: int(time.Until(cert.NotAfter).Hours() / 24),
	}, nil
}

func (p *LegoProvider) newClient(email string) (acmeClient, *acmeUser, error) {
	key, err := p.accountKeyMaker()
	if err != nil {
		return nil, nil, fmt.Errorf("generate account key: %w", err)
	}

	user := &acmeUser{email: email, key: key}

	legoCfg := lego.NewConfig(user)
	legoCfg.CADirURL = p.cfg.caDirURL
	legoCfg.Certificate.KeyType = p.cfg.keyType

	client, err := p.clientFactory(legoCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create acme client: %w", err)
	}

	provider := http01.NewProviderServer(p.cfg.http01Host, p.cfg.http01Port)
	if err := client.SetHTTP01Provider(provider); err != nil {
		return nil, nil, fmt.Errorf("configure http-01 provider: %w", err)
	}

	return client, user, nil
}

func (p *LegoProvider) writeArtifacts(domain string, certRes *certificate.Resource) (*ProviderResult, error) {
	if certRes == nil || len(certRes.Certificate) == 0 {
		return nil, errors.New("empty certificate payload received from ACME server")
	}
	if len(certRes.PrivateKey) == 0 {
		return nil, errors.New("empty private key received from ACME server")
	}

	if err := os.MkdirAll(p.cfg.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure output directory: %w", err)
	}

	certPath := p.certPath(domain)
	keyPath := p.keyPath(domain)

	if err := os.WriteFile(keyPath, certRes.PrivateKey, 0o600); err != nil {
		return nil, fmt.Errorf("write private key: %w", err)
	}
	if err := os.WriteFile(certPath, certRes.Certificate, 0o644); err != nil {
		return nil, fmt.Errorf("write certificate: %w", err)
	}

	fullchainPath := certPath
	if len(certRes.IssuerCertificate) > 0 {
		if err := os.WriteFile(p.issuerPath(domain), certRes.IssuerCertificate, 0o644); err != nil {
			return nil, fmt.Errorf("write issuer certificate: %w", err)
		}
	}

	leaf, err := parseLeafCertificate(certRes.Certificate)
	if err != nil {
		return nil, fmt.Errorf("parse issued certificate: %w", err)
	}

	return &ProviderResult{
		Success:         true,
		CertificatePath: certPath,
		PrivateKeyPath:  keyPath,
		FullchainPath:   fullchainPath,
		IssuedAt:        leaf.NotBefore,
		ExpiresAt:       leaf.NotAfter,
	}, nil
}

func (p *LegoProvider) certPath(domain string) string {
	return filepath.Join(p.cfg.outputDir, safeFileSegment(domain)+".crt")
}

func (p *LegoProvider) keyPath(domain string) string {
	return filepath.Join(p.cfg.outputDir, safeFileSegment(domain)+".key")
}

func (p *LegoProvider) issuerPath(domain string) string {
	return filepath.Join(p.cfg.outputDir, safeFileSegment(domain)+"-issuer.crt")
}

func parseLeafCertificate(certPEM []byte) (*x509.Certificate, error) {
	block, _ := pem.Decode(certPEM)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}
	return x509.ParseCertificate(block.Bytes)
}

// safeFileSegment flattens a domain name into a filesystem-safe file stem.
func safeFileSegment(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return "certificate"
	}

	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	sanitized := strings.Trim(b.String(), "._-")
	if sanitized == "" {
		return "certificate"
	}
	return sanitized
}

func defaultClientFactory(cfg *lego.Config) (acmeClient, error) {
	client, err := lego.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &legoClientAdapter{client: client}, nil
}

type legoClientAdapter struct {
	client *lego.Client
}

func (l *legoClientAdapter) Register(options registration.RegisterOptions) (*registration.Resource, error) {
	return l.client.Registration.Register(options)
}

func (l *legoClientAdapter) SetHTTP01Provider(provider challenge.Provider) error {
	return l.client.Challenge.SetHTTP01Provider(provider)
}

func (l *legoClientAdapter) Obtain(request certificate.ObtainRequest) (*certificate.Resource, error) {
	return l.client.Certificate.Obtain(request)
}

func (l *legoClientAdapter) Revoke(cert []byte) error {
	return l.client.Certificate.Revoke(cert)
}

type acmeUser struct {
	email        string
	registration *registration.Resource
	key          crypto.PrivateKey
}

func (u *acmeUser) GetEmail() string {
	return u.email
}

func (u *acmeUser) GetRegistration() *registration.Resource {
	return u.registration
}

func (u *acmeUser) GetPrivateKey() crypto.PrivateKey {
	return u.key
}
