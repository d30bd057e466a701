// Package logger provides slog attribute helpers shared across the domain
// trust and routing packages.
//
// Helpers follow the empty-Attr pattern: passing a nil error or empty string
// yields a zero slog.Attr that handlers drop, so call sites never guard:
//
//	log.Info("domain verified",
//		logger.Domain(domain.DomainName),
//		logger.Error(err), // safe when err is nil
//	)
package logger
