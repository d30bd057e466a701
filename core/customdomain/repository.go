package customdomain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence port for custom domains. Save persists the
// whole aggregate in a single atomic statement so SSL fields can never be
// half-written, and all queries exclude soft-deleted rows.
type Repository interface {
	// Find returns the domain with the given ID or ErrNotFound.
	Find(ctx context.Context, id uuid.UUID) (*Domain, error)

	// FindByName returns the domain with the given name or ErrNotFound.
	FindByName(ctx context.Context, domainName string) (*Domain, error)

	// FindPrimaryByTenant returns the tenant's primary domain or ErrNotFound.
	FindPrimaryByTenant(ctx context.Context, tenantID uuid.UUID) (*Domain, error)

	// Save persists all mutable fields of the aggregate atomically.
	Save(ctx context.Context, domain *Domain) error

	// ListExpiringSSL returns every active, SSL-enabled domain whose
	// certificate expiry is unset or earlier than the given instant.
	ListExpiringSSL(ctx context.Context, before time.Time) ([]*Domain, error)

	// SetPrimary promotes the domain to the tenant's primary domain and
	// demotes any previous primary in the same transaction. The target must
	// be verified and active (ErrNotEligiblePrimary otherwise).
	SetPrimary(ctx context.Context, tenantID, domainID uuid.UUID) error
}

// AttemptRepository is the persistence port for the verification audit log.
type AttemptRepository interface {
	// Create appends one attempt record. Records are immutable once written.
	Create(ctx context.Context, attempt *VerificationAttempt) error

	// ListByDomain returns the most recent attempts for a domain, newest first.
	ListByDomain(ctx context.Context, domainID uuid.UUID, limit int) ([]*VerificationAttempt, error)
}
