package domainverify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// DNSProber performs the DNS lookups the verification strategies need.
// Implementations return an empty record set (not an error) when the name
// simply does not exist; errors are reserved for transport failures.
type DNSProber interface {
	LookupTXT(ctx context.Context, host string) ([]string, error)
	LookupCNAME(ctx context.Context, host string) ([]string, error)
}

// HTTPProber fetches the file-upload challenge over HTTPS.
type HTTPProber interface {
	// Get returns the response status code and body of an https GET.
	Get(ctx context.Context, url string) (status int, body string, err error)
}

type dnsResolver interface {
	LookupTXT(ctx context.Context, name string) ([]string, error)
	LookupCNAME(ctx context.Context, host string) (string, error)
}

// ResolverProbe is the default DNSProber backed by a net.Resolver.
type ResolverProbe struct {
	resolver dnsResolver
	timeout  time.Duration
}

// NewResolverProbe creates a DNS probe using net.DefaultResolver with the
// given per-lookup timeout.
func NewResolverProbe(timeout time.Duration) *ResolverProbe {
	return &ResolverProbe{
		resolver: net.DefaultResolver,
		timeout:  timeout,
	}
}

// LookupTXT returns all TXT records published at host. A name that does not
// exist yields an empty set so callers can treat it as a normal mismatch.
func (p *ResolverProbe) LookupTXT(ctx context.Context, host string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	records, err := p.resolver.LookupTXT(ctx, host)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup TXT %s: %w", host, err)
	}
	return records, nil
}

// LookupCNAME returns the CNAME target of host as a single-element set, or
// an empty set when no record exists.
func (p *ResolverProbe) LookupCNAME(ctx context.Context, host string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	target, err := p.resolver.LookupCNAME(ctx, host)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup CNAME %s: %w", host, err)
	}
	if target == "" {
		return nil, nil
	}
	return []string{target}, nil
}

func isNotFound(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr) && dnsErr.IsNotFound
}

// maxChallengeBody bounds how much of a challenge response is read; tokens
// are short and anything larger is garbage.
const maxChallengeBody = 64 << 10

// TLSProbe is the default HTTPProber. Plain http URLs are rejected before
// any connection is made.
type TLSProbe struct {
	client *http.Client
}

// NewTLSProbe creates an HTTPS probe with the given request timeout.
func NewTLSProbe(timeout time.Duration) *TLSProbe {
	return &TLSProbe{
		client: &http.Client{Timeout: timeout},
	}
}

// Get fetches url and returns the status code and body (truncated at 64KiB).
func (p *TLSProbe) Get(ctx context.Context, url string) (int, string, error) {
	if !strings.HasPrefix(url, "https://") {
		return 0, "", fmt.Errorf("%w: %s", ErrInsecureScheme, url)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, "", fmt.Errorf("build challenge request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxChallengeBody))
	if err != nil {
		return 0, "", fmt.Errorf("read challenge body from %s: %w", url, err)
	}

	return resp.StatusCode, string(body), nil
}
