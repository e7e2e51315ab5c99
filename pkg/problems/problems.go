package problems

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"
)

// Kind is the closed error taxonomy every invocation failure maps onto.
type Kind string

const (
	KindTenantNotFound   Kind = "TenantNotFound"
	KindValidation       Kind = "ValidationError"
	KindAuthFailed       Kind = "AuthFailed"
	KindUnreachable      Kind = "Unreachable"
	KindTimeout          Kind = "Timeout"
	KindRateLimited      Kind = "RateLimited"
	KindInvalidParameter Kind = "InvalidParameter"
	KindUpstream         Kind = "UpstreamError"
	KindInternal         Kind = "InternalError"
)

// Error carries a taxonomy kind plus a human-readable message. Messages must
// never embed secret material; callers pass already-sanitized text.
type Error struct {
	Kind       Kind
	Message    string
	RetryAfter time.Duration // only meaningful for KindRateLimited
}

func (e *Error) Error() string { return string(e.Kind) + ": " + e.Message }

func New(kind Kind, msg string) *Error { return &Error{Kind: kind, Message: msg} }

// RateLimited builds a 429-style error carrying the upstream retry-after hint.
func RateLimited(msg string, retryAfter time.Duration) *Error {
	return &Error{Kind: KindRateLimited, Message: msg, RetryAfter: retryAfter}
}

// KindOf classifies any error into the taxonomy. Unwrapped/unknown errors are
// internal; context deadline maps to Timeout so callers treat it as transient.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindInternal
}

// Retryable reports whether the dispatcher may retry the failure. Only
// transient network and rate-limit faults qualify; configuration errors
// (bad credentials, unknown tenant) never self-correct.
func Retryable(kind Kind) bool {
	switch kind {
	case KindUnreachable, KindTimeout, KindRateLimited:
		return true
	}
	return false
}

// Base returns the base URL for problem type identifiers.
// Order of precedence:
// 1. PROBLEM_BASE_URL (exact base, e.g. https://mydomain.com/problems)
// 2. BASE_PUBLIC_URL + "/problems" (if set)
// 3. https://example.com/problems (fallback)
func Base() string {
	if b := os.Getenv("PROBLEM_BASE_URL"); b != "" {
		return strings.TrimRight(b, "/")
	}
	if b := os.Getenv("BASE_PUBLIC_URL"); b != "" {
		return strings.TrimRight(b, "/") + "/problems"
	}
	return "https://example.com/problems"
}

// Type builds a full problem type URL for the given slug.
func Type(slug string) string { return Base() + "/" + slug }
