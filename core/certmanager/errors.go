package certmanager

import "errors"

var (
	// ErrProviderUnavailable wraps transport faults talking to the
	// certificate provider. The original cause is attached.
	ErrProviderUnavailable = errors.New("certificate provider unreachable")

	// ErrAdminEmailRequired is returned when the manager is built without the
	// platform's registered ACME account email.
	ErrAdminEmailRequired = errors.New("admin email is required")

	// ErrRepositoryNil is returned when the manager is built without a
	// domain repository.
	ErrRepositoryNil = errors.New("domain repository is required")

	// ErrProviderNil is returned when the manager is built without a
	// certificate provider.
	ErrProviderNil = errors.New("certificate provider is required")
)
