package domain

import (
	"errors"
	"fmt"
)

// Category sentinels.
var (
	ErrNotFound     = fmt.Errorf("not found")
	ErrDuplicate    = fmt.Errorf("duplicate")
	ErrTimeout      = fmt.Errorf("operation timed out")
	ErrInvalidInput = fmt.Errorf("invalid input")
	ErrDisabled     = fmt.Errorf("disabled")
)

// Subsystem sentinels.
var (
	// ErrConfiguration marks a call that cannot proceed because required
	// per-agent wiring or user configuration is missing or disabled.
	// Fatal to that single call; never retried automatically.
	ErrConfiguration = fmt.Errorf("configuration error")

	// ErrUpstream marks the generative backend as unreachable or non-2xx.
	// Recovered locally by the deterministic fallback.
	ErrUpstream = fmt.Errorf("generative backend unavailable")

	// ErrMalformedResponse marks a backend reply that failed JSON parsing
	// or schema reconciliation. Same recovery as ErrUpstream.
	ErrMalformedResponse = fmt.Errorf("malformed backend response")

	// ErrDataUnavailable marks a failed domain-store query. Aborts
	// regeneration for that one user/scope only.
	ErrDataUnavailable = fmt.Errorf("domain data unavailable")

	// ErrPersistence marks a failed cache/store write. Logged; the
	// computed result is still returned to the caller.
	ErrPersistence = fmt.Errorf("persistence failed")

	ErrRateLimit   = fmt.Errorf("rate limit exceeded")
	ErrAuthInvalid = fmt.Errorf("authentication failed")
)

// DomainError wraps a sentinel error with operation context.
type DomainError struct {
	Op     string // operation name (e.g., "controller.StartAgent")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error. Returns nil if err is nil,
// enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// FallbackTrigger reports whether err should route briefing generation to
// the deterministic fallback instead of failing the caller.
func FallbackTrigger(err error) bool {
	return errors.Is(err, ErrUpstream) ||
		errors.Is(err, ErrMalformedResponse) ||
		errors.Is(err, ErrRateLimit) ||
		errors.Is(err, ErrTimeout)
}

// ErrorCode is a machine-parseable error category for monitoring.
type ErrorCode string

const (
	CodeUnknown           ErrorCode = "UNKNOWN"
	CodeNotFound          ErrorCode = "NOT_FOUND"
	CodeDuplicate         ErrorCode = "DUPLICATE"
	CodeTimeout           ErrorCode = "TIMEOUT"
	CodeInvalidInput      ErrorCode = "INVALID_INPUT"
	CodeDisabled          ErrorCode = "DISABLED"
	CodeConfiguration     ErrorCode = "CONFIGURATION"
	CodeUpstream          ErrorCode = "UPSTREAM_UNAVAILABLE"
	CodeMalformedResponse ErrorCode = "MALFORMED_RESPONSE"
	CodeDataUnavailable   ErrorCode = "DATA_UNAVAILABLE"
	CodePersistence       ErrorCode = "PERSISTENCE"
	CodeRateLimit         ErrorCode = "RATE_LIMIT"
	CodeAuthInvalid       ErrorCode = "AUTH_INVALID"
)

var errorCodeMap = map[error]ErrorCode{
	ErrNotFound:          CodeNotFound,
	ErrDuplicate:         CodeDuplicate,
	ErrTimeout:           CodeTimeout,
	ErrInvalidInput:      CodeInvalidInput,
	ErrDisabled:          CodeDisabled,
	ErrConfiguration:     CodeConfiguration,
	ErrUpstream:          CodeUpstream,
	ErrMalformedResponse: CodeMalformedResponse,
	ErrDataUnavailable:   CodeDataUnavailable,
	ErrPersistence:       CodePersistence,
	ErrRateLimit:         CodeRateLimit,
	ErrAuthInvalid:       CodeAuthInvalid,
}

// ErrorCodeOf returns the machine-parseable code for err, walking the
// error chain with errors.Is. Returns CodeUnknown if nothing matches.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}
	if code, ok := errorCodeMap[err]; ok {
		return code
	}
	var de *DomainError
	if errors.As(err, &de) {
		if code, ok := errorCodeMap[de.Err]; ok {
			return code
		}
	}
	for sentinel, code := range errorCodeMap {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return CodeUnknown
}
