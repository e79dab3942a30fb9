// Package errors provides a structured error type carrying a code,
// Category, Severity and Retryable flag, so callers can branch on those
// instead of string-matching messages. The config loader builds its errors
// here; the store, bm25, filesync and pipeline packages return their own
// error values.
package errors

// Category groups error codes into the handling buckets the rest of the
// system dispatches on.
type Category string

const (
	CategoryConfig     Category = "CONFIG"
	CategoryIO         Category = "IO"
	CategoryRemote     Category = "REMOTE"
	CategoryValidation Category = "VALIDATION"
	CategoryInternal   Category = "INTERNAL"
)

// Severity indicates how the caller should react.
type Severity string

const (
	SeverityFatal   Severity = "fatal"
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Stable error codes. New codes should be added here, never inlined as
// string literals elsewhere.
const (
	CodeConfigMissing      = "CONFIG_MISSING_VAR"
	CodeConfigInvalid      = "CONFIG_INVALID"
	CodeIORead             = "IO_READ"
	CodeIOWrite            = "IO_WRITE"
	CodeIONotFound         = "IO_NOT_FOUND"
	CodeRemoteUnavailable  = "REMOTE_UNAVAILABLE"
	CodeRemoteTimeout      = "REMOTE_TIMEOUT"
	CodeRemoteRateLimited  = "REMOTE_RATE_LIMITED"
	CodeRemoteRejected     = "REMOTE_REJECTED"
	CodeDimensionMismatch  = "VALIDATION_DIMENSION_MISMATCH"
	CodeNotFound           = "VALIDATION_NOT_FOUND"
	CodeInvariantViolation = "INTERNAL_INVARIANT"
)

// retryableCodes lists the codes that a caller may safely retry after a
// backoff. Everything else is assumed to need intervention.
var retryableCodes = map[string]bool{
	CodeRemoteTimeout:     true,
	CodeRemoteUnavailable: true,
	CodeRemoteRateLimited: true,
}
