package customdomain

import "errors"

var (
	// ErrNotFound is returned when no domain matches the given identifier.
	ErrNotFound = errors.New("custom domain not found")

	// ErrNotVerified is returned when an operation requires a verified domain.
	ErrNotVerified = errors.New("domain must be verified")

	// ErrSSLNotEnabled is returned when an operation requires an active certificate.
	ErrSSLNotEnabled = errors.New("SSL not enabled for domain")

	// ErrNotEligiblePrimary is returned when a domain that is not verified and
	// active is promoted to primary.
	ErrNotEligiblePrimary = errors.New("only verified active domains can be primary")
)
