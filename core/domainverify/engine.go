package domainverify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stencilhq/stencil/core/customdomain"
	"github.com/stencilhq/stencil/core/logger"
)

// challengePrefix is the DNS label owners publish verification records under.
const challengePrefix = "_verify."

// Config holds verification engine settings loaded from the environment.
type Config struct {
	// ProviderDomain is the platform apex CNAME challenges must point under,
	// e.g. "stencil.app" for targets like <token>.verify.stencil.app.
	ProviderDomain string `env:"VERIFICATION_PROVIDER_DOMAIN,required"`

	DNSTimeout       time.Duration `env:"VERIFICATION_DNS_TIMEOUT" envDefault:"5s"`
	FileTimeout      time.Duration `env:"VERIFICATION_FILE_TIMEOUT" envDefault:"10s"`
	MaxRetryAttempts int           `env:"VERIFICATION_MAX_RETRY_ATTEMPTS" envDefault:"3"`

	// RetryBackoffUnit scales the linear backoff between retry attempts:
	// attempt n sleeps 2*n units.
	RetryBackoffUnit time.Duration `env:"VERIFICATION_RETRY_BACKOFF_UNIT" envDefault:"1s"`
}

// FailureReason classifies an expected negative verification outcome.
type FailureReason string

const (
	// ReasonNoRecords means the challenge location held no evidence at all.
	ReasonNoRecords FailureReason = "records_not_found"
	// ReasonRecordMismatch means DNS records were found but none matched.
	ReasonRecordMismatch FailureReason = "record_mismatch"
	// ReasonContentMismatch means the challenge file was served with wrong content.
	ReasonContentMismatch FailureReason = "content_mismatch"
	// ReasonHTTPError means the challenge file request returned a non-2xx status.
	ReasonHTTPError FailureReason = "http_error"
	// ReasonProbeFailure means retries were exhausted on transport errors.
	ReasonProbeFailure FailureReason = "probe_failure"
)

// Result is the outcome of one verification call. Negative outcomes are
// values, not errors: Success false with a FailureReason describes a domain
// whose owner has not (yet) published the challenge.
type Result struct {
	Success         bool
	AlreadyVerified bool
	Method          customdomain.VerificationMethod

	// MatchedRecord is the record or body that matched the token.
	MatchedRecord string
	// FoundRecords carries every DNS record observed, for audit and debugging.
	FoundRecords []string
	// Expected is the value the owner was asked to publish.
	Expected string
	// Body is the trimmed challenge file content, for file-upload checks.
	Body string
	// HTTPStatus is set for file-upload checks.
	HTTPStatus int

	FailureReason FailureReason
	ErrorMessage  string

	// Attempts is how many verification calls a retry loop consumed.
	Attempts int
}

// RequestMeta identifies the caller for the audit log.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// Engine proves ownership of custom domains before any certificate or
// traffic is attached to them.
type Engine struct {
	domains  customdomain.Repository
	attempts customdomain.AttemptRepository
	dns      DNSProber
	http     HTTPProber

	providerDomain string
	maxAttempts    int
	backoffUnit    time.Duration

	log *slog.Logger
	now func() time.Time
}

// Option configures the Engine.
type Option func(*Engine)

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithDNSProber replaces the default resolver-backed DNS probe.
func WithDNSProber(p DNSProber) Option {
	return func(e *Engine) {
		if p != nil {
			e.dns = p
		}
	}
}

// WithHTTPProber replaces the default HTTPS probe.
func WithHTTPProber(p HTTPProber) Option {
	return func(e *Engine) {
		if p != nil {
			e.http = p
		}
	}
}

// WithClock overrides the time source. Useful in tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine creates a verification engine. The domain and attempt
// repositories are required; probes default to net.DefaultResolver and an
// HTTPS client with the configured timeouts.
func NewEngine(domains customdomain.Repository, attempts customdomain.AttemptRepository, cfg Config, opts ...Option) (*Engine, error) {
	if domains == nil || attempts == nil {
		return nil, errors.New("domain and attempt repositories are required")
	}
	if cfg.ProviderDomain == "" {
		return nil, errors.New("provider domain is required")
	}
	if cfg.DNSTimeout <= 0 {
		cfg.DNSTimeout = 5 * time.Second
	}
	if cfg.FileTimeout <= 0 {
		cfg.FileTimeout = 10 * time.Second
	}
	if cfg.MaxRetryAttempts <= 0 {
		cfg.MaxRetryAttempts = 3
	}
	if cfg.RetryBackoffUnit <= 0 {
		cfg.RetryBackoffUnit = time.Second
	}

	e := &Engine{
		domains:        domains,
		attempts:       attempts,
		dns:            NewResolverProbe(cfg.DNSTimeout),
		http:           NewTLSProbe(cfg.FileTimeout),
		providerDomain: strings.TrimSuffix(cfg.ProviderDomain, "."),
		maxAttempts:    cfg.MaxRetryAttempts,
		backoffUnit:    cfg.RetryBackoffUnit,
		log:            slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:            time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

// Verify runs the domain's configured verification strategy once. Every call
// is recorded in the attempt log before returning, success or failure.
// The returned error is non-nil only for infrastructure faults (probe
// transport errors, persistence errors) and unsupported methods; a domain
// whose challenge is simply absent gets a failed Result and a nil error.
func (e *Engine) Verify(ctx context.Context, domainID uuid.UUID, meta RequestMeta) (*Result, error) {
	domain, err := e.domains.Find(ctx, domainID)
	if err != nil {
		return nil, err
	}

	if domain.IsVerified {
		return &Result{
			Success:         true,
			AlreadyVerified: true,
			Method:          domain.VerificationMethod,
			Attempts:        1,
		}, nil
	}

	result, verr := e.runStrategy(ctx, domain)

	if logErr := e.logAttempt(ctx, domain, result, verr, meta); logErr != nil {
		return nil, fmt.Errorf("record verification attempt: %w", logErr)
	}

	if verr != nil {
		e.log.ErrorContext(ctx, "domain verification probe failed",
			logger.Domain(domain.DomainName),
			slog.String("method", string(domain.VerificationMethod)),
			logger.Error(verr))
		return nil, verr
	}

	result.Attempts = 1

	if result.Success {
		domain.MarkVerified(e.now())
		if err := e.domains.Save(ctx, domain); err != nil {
			return nil, fmt.Errorf("persist verified domain: %w", err)
		}
		e.log.InfoContext(ctx, "domain verified",
			logger.Domain(domain.DomainName),
			slog.String("method", string(domain.VerificationMethod)))
	} else {
		e.log.InfoContext(ctx, "domain verification failed",
			logger.Domain(domain.DomainName),
			slog.String("method", string(domain.VerificationMethod)),
			slog.String("reason", string(result.FailureReason)),
			logger.ClientIP(meta.IP),
			logger.UserAgent(meta.UserAgent))
	}

	return result, nil
}

// RetryVerify calls Verify up to the configured maximum, sleeping 2*n backoff
// units after attempt n to tolerate DNS propagation delay. It returns on the
// first success. Exhausted attempts yield a failed Result, never an error;
// only unsupported methods, unknown domains, and context cancellation
// propagate as errors.
func (e *Engine) RetryVerify(ctx context.Context, domainID uuid.UUID, meta RequestMeta) (*Result, error) {
	var (
		lastResult *Result
		lastErr    error
	)

	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		result, err := e.Verify(ctx, domainID, meta)
		if err == nil && result.Success {
			result.Attempts = attempt
			return result, nil
		}
		if errors.Is(err, ErrInvalidMethod) || errors.Is(err, customdomain.ErrNotFound) {
			return nil, err
		}
		lastResult, lastErr = result, err

		if attempt < e.maxAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(2*attempt) * e.backoffUnit):
			}
		}
	}

	result := lastResult
	if result == nil {
		result = &Result{FailureReason: ReasonProbeFailure}
	}
	result.Success = false
	result.Attempts = e.maxAttempts
	if lastErr != nil {
		result.FailureReason = ReasonProbeFailure
		result.ErrorMessage = lastErr.Error()
	}
	return result, nil
}

func (e *Engine) runStrategy(ctx context.Context, domain *customdomain.Domain) (*Result, error) {
	switch domain.VerificationMethod {
	case customdomain.MethodDNSTXT:
		return e.verifyDNSTXT(ctx, domain)
	case customdomain.MethodDNSCNAME:
		return e.verifyDNSCNAME(ctx, domain)
	case customdomain.MethodFileUpload:
		return e.verifyFileUpload(ctx, domain)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidMethod, domain.VerificationMethod)
	}
}

func (e *Engine) verifyDNSTXT(ctx context.Context, domain *customdomain.Domain) (*Result, error) {
	host := challengePrefix + domain.DomainName

	records, err := e.dns.LookupTXT(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProbeFailure, err)
	}

	result := &Result{
		Method:       customdomain.MethodDNSTXT,
		FoundRecords: records,
		Expected:     domain.VerificationToken,
	}

	for _, record := range records {
		if strings.TrimSpace(record) == domain.VerificationToken {
			result.Success = true
			result.MatchedRecord = record
			return result, nil
		}
	}

	if len(records) == 0 {
		result.FailureReason = ReasonNoRecords
	} else {
		result.FailureReason = ReasonRecordMismatch
	}
	return result, nil
}

func (e *Engine) verifyDNSCNAME(ctx context.Context, domain *customdomain.Domain) (*Result, error) {
	host := challengePrefix + domain.DomainName
	expected := domain.VerificationToken + ".verify." + e.providerDomain

	records, err := e.dns.LookupCNAME(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProbeFailure, err)
	}

	result := &Result{
		Method:       customdomain.MethodDNSCNAME,
		FoundRecords: records,
		Expected:     expected,
	}

	// Resolvers commonly return dot-terminated CNAME targets.
	want := strings.TrimSuffix(expected, ".")
	for _, record := range records {
		if strings.TrimSuffix(strings.TrimSpace(record), ".") == want {
			result.Success = true
			result.MatchedRecord = record
			return result, nil
		}
	}

	if len(records) == 0 {
		result.FailureReason = ReasonNoRecords
	} else {
		result.FailureReason = ReasonRecordMismatch
	}
	return result, nil
}

func (e *Engine) verifyFileUpload(ctx context.Context, domain *customdomain.Domain) (*Result, error) {
	url := ChallengeFileURL(domain.DomainName, domain.VerificationToken)

	status, body, err := e.http.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProbeFailure, err)
	}

	result := &Result{
		Method:     customdomain.MethodFileUpload,
		Expected:   domain.VerificationToken,
		HTTPStatus: status,
		Body:       strings.TrimSpace(body),
	}

	if status < 200 || status > 299 {
		result.FailureReason = ReasonHTTPError
		return result, nil
	}

	if result.Body != domain.VerificationToken {
		result.FailureReason = ReasonContentMismatch
		return result, nil
	}

	result.Success = true
	result.MatchedRecord = result.Body
	return result, nil
}

// ChallengeFileURL is the HTTPS location of the file-upload challenge for a
// domain and token. Plain HTTP is never attempted.
func ChallengeFileURL(domainName, token string) string {
	return "https://" + domainName + "/.well-known/verify-" + token + ".txt"
}

// attemptEvidence is the raw payload stored with each attempt record.
type attemptEvidence struct {
	FoundRecords []string `json:"found_records,omitempty"`
	Expected     string   `json:"expected,omitempty"`
	Matched      string   `json:"matched,omitempty"`
	HTTPStatus   int      `json:"http_status,omitempty"`
	Body         string   `json:"body,omitempty"`
}

func (e *Engine) logAttempt(ctx context.Context, domain *customdomain.Domain, result *Result, verr error, meta RequestMeta) error {
	attempt := &customdomain.VerificationAttempt{
		ID:          uuid.New(),
		DomainID:    domain.ID,
		Method:      domain.VerificationMethod,
		Status:      customdomain.AttemptFailed,
		RequesterIP: meta.IP,
		UserAgent:   meta.UserAgent,
		CreatedAt:   e.now(),
	}

	switch {
	case verr != nil:
		attempt.ErrorMessage = verr.Error()
	case result != nil:
		if result.Success {
			attempt.Status = customdomain.AttemptSuccess
		} else {
			attempt.ErrorMessage = string(result.FailureReason)
		}
		evidence, err := json.Marshal(attemptEvidence{
			FoundRecords: result.FoundRecords,
			Expected:     result.Expected,
			Matched:      result.MatchedRecord,
			HTTPStatus:   result.HTTPStatus,
			Body:         result.Body,
		})
		if err == nil {
			attempt.ResponseData = string(evidence)
		}
	}

	return e.attempts.Create(ctx, attempt)
}
