// internal/core/errors.go
package core

import "fmt"

// Error represents a structured error with code and optional cause.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is matching by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WrapError creates a new error with the same code but with a cause.
func WrapError(base *Error, cause error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Cause:   cause,
	}
}

// Predefined errors
var (
	// Oracle errors
	ErrPriceUnavailable = &Error{Code: "PRICE_UNAVAILABLE", Message: "no price source available"}
	ErrStalePrice       = &Error{Code: "STALE_PRICE", Message: "price sample is stale"}

	// Ledger errors
	ErrLedgerRead     = &Error{Code: "LEDGER_READ_FAILURE", Message: "ledger read failed"}
	ErrLedgerWrite    = &Error{Code: "LEDGER_WRITE_FAILURE", Message: "ledger write failed"}
	ErrLedgerConflict = &Error{Code: "LEDGER_CONFLICT", Message: "ledger modified concurrently"}

	// Resolution errors
	ErrMalformedCall = &Error{Code: "MALFORMED_CALL", Message: "call is malformed"}
	ErrCycleTimeout  = &Error{Code: "CYCLE_TIMEOUT", Message: "resolution cycle exceeded its budget"}

	// Request errors
	ErrInvalidRequest = &Error{Code: "INVALID_REQUEST", Message: "invalid request"}
	ErrNotFound       = &Error{Code: "NOT_FOUND", Message: "not found"}
	ErrUnauthorized   = &Error{Code: "UNAUTHORIZED", Message: "missing or invalid API key"}

	// Config errors
	ErrConfigInvalid = &Error{Code: "CONFIG_INVALID", Message: "configuration invalid"}
	ErrConfigMissing = &Error{Code: "CONFIG_MISSING", Message: "required configuration missing"}
)
