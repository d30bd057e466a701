package domainverify

import "errors"

var (
	// ErrInvalidMethod is returned when a domain carries an unsupported
	// verification method. This is a configuration error and is never retried.
	ErrInvalidMethod = errors.New("unsupported verification method")

	// ErrProbeFailure wraps DNS or HTTP transport errors raised while
	// collecting verification evidence. The original cause is attached.
	ErrProbeFailure = errors.New("verification probe failed")

	// ErrInsecureScheme is returned when a file-upload probe is attempted
	// against anything other than an https URL.
	ErrInsecureScheme = errors.New("verification requests must use https")

	// ErrWorkerNotRunning is returned when enqueueing into a stopped worker.
	ErrWorkerNotRunning = errors.New("verification worker is not running")

	// ErrQueueFull is returned when the worker's job buffer is saturated.
	ErrQueueFull = errors.New("verification queue is full")
)
