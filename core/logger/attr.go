package logger

import (
	"log/slog"
	"strconv"
	"time"
)

// Attribute helpers return the zero slog.Attr for empty input so call sites
// never need nil checks.

// Error creates an attribute for a single error under the key "error".
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Domain tags a log line with the custom domain it concerns.
func Domain(name string) slog.Attr {
	if name == "" {
		return slog.Attr{}
	}
	return slog.String("domain", name)
}

// Tenant tags a log line with a tenant identifier.
func Tenant(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("tenant_id", id)
}

// CacheKey tags a log line with the cache key being read or evicted.
func CacheKey(key string) slog.Attr {
	if key == "" {
		return slog.Attr{}
	}
	return slog.String("cache_key", key)
}

// Component creates an attribute for component names.
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Elapsed calculates and logs the duration since the start time.
func Elapsed(start time.Time) slog.Attr {
	return slog.Duration("elapsed", time.Since(start))
}

// RetryCount creates an attribute for retry attempts.
func RetryCount(count int) slog.Attr {
	return slog.Int("retry_count", count)
}

// ClientIP creates an attribute for client IP addresses.
func ClientIP(ip string) slog.Attr {
	if ip == "" {
		return slog.Attr{}
	}
	return slog.String("client_ip", ip)
}

// UserAgent creates an attribute for user agent strings.
func UserAgent(ua string) slog.Attr {
	if ua == "" {
		return slog.Attr{}
	}
	return slog.String("user_agent", ua)
}

// Count creates a generic counter attribute.
func Count(key string, n int) slog.Attr {
	return slog.Int(key, n)
}

// Group creates a group of attributes under a single key.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

// Errors groups multiple non-nil errors under the key "errors", keyed by
// their position to preserve order.
func Errors(errs ...error) slog.Attr {
	count := 0
	for _, err := range errs {
		if err != nil {
			count++
		}
	}
	if count == 0 {
		return slog.Attr{}
	}

	as := make([]slog.Attr, 0, count)
	for i, err := range errs {
		if err != nil {
			as = append(as, slog.Any(strconv.Itoa(i), err))
		}
	}
	return slog.Attr{Key: "errors", Value: slog.GroupValue(as...)}
}
