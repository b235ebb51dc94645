package harvest

import "fmt"

// ErrorCode classifies run-level harvester failures.
type ErrorCode string

const (
	CodeQuery           ErrorCode = "E_QUERY"
	CodeEnumerate       ErrorCode = "E_ENUMERATE"
	CodeStaging         ErrorCode = "E_STAGING"
	CodeSubmit          ErrorCode = "E_SUBMIT"
	CodeConfigStore     ErrorCode = "E_CONFIG_STORE"
	CodeConfigConflict  ErrorCode = "E_CONFIG_CONFLICT"
	CodeAmbiguousConfig ErrorCode = "E_AMBIGUOUS_CONFIG"
	CodeInvalidConfig   ErrorCode = "E_INVALID_CONFIG"
)

// Error is a fatal harvester error. A run that returns one leaves the
// configuration watermark untouched.
type Error struct {
	Code      ErrorCode
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// CodeValue returns the string error code.
func (e *Error) CodeValue() string { return string(e.Code) }

// RetryableStatus indicates if the run can be retried as-is.
func (e *Error) RetryableStatus() bool { return e.Retryable }

// NewError wraps err as a harvester error with the given code.
func NewError(code ErrorCode, retryable bool, err error) *Error {
	return &Error{Code: code, Retryable: retryable, Err: err}
}
