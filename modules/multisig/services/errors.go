package services

import "errors"

const (
	errCodeUnauthorized    = "MULTISIG_UNAUTHORIZED"
	errCodeInvalidTarget   = "MULTISIG_INVALID_TARGET"
	errCodeNotFound        = "MULTISIG_ACTION_NOT_FOUND"
	errCodeAlreadyApproved = "MULTISIG_ALREADY_APPROVED"
	errCodeAlreadyExecuted = "MULTISIG_ALREADY_EXECUTED"
	errCodeExecutionFailed = "MULTISIG_EXECUTION_FAILED"
	errCodeUnconfirmed     = "MULTISIG_EXECUTION_UNCONFIRMED"
	errCodeInvalidMember   = "MULTISIG_INVALID_MEMBER"
	errCodeInvalidPage     = "MULTISIG_INVALID_PAGE"
)

// Every mutating operation fails with one of these before any state changes.
// ErrExecutionFailed is always wrapped together with the target's error.
// ErrExecutionUnconfirmed is the exception: the target was called but the
// ledger could not record it, so the action is blocked until restart.
var (
	ErrUnauthorized         = errors.New(errCodeUnauthorized)
	ErrInvalidTarget        = errors.New(errCodeInvalidTarget)
	ErrNotFound             = errors.New(errCodeNotFound)
	ErrAlreadyApproved      = errors.New(errCodeAlreadyApproved)
	ErrAlreadyExecuted      = errors.New(errCodeAlreadyExecuted)
	ErrExecutionFailed      = errors.New(errCodeExecutionFailed)
	ErrExecutionUnconfirmed = errors.New(errCodeUnconfirmed)
	ErrInvalidMember        = errors.New(errCodeInvalidMember)
	ErrInvalidPage          = errors.New(errCodeInvalidPage)
)

var codedErrors = []error{
	ErrUnauthorized,
	ErrInvalidTarget,
	ErrNotFound,
	ErrAlreadyApproved,
	ErrAlreadyExecuted,
	ErrExecutionFailed,
	ErrExecutionUnconfirmed,
	ErrInvalidMember,
	ErrInvalidPage,
}

// ErrorCode returns the stable code of the first taxonomy error in err's
// chain, or "" when err carries none.
func ErrorCode(err error) string {
	for _, target := range codedErrors {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	return ""
}

// Codes lists every stable code ErrorCode can return.
func Codes() []string {
	out := make([]string, 0, len(codedErrors))
	for _, err := range codedErrors {
		out = append(out, err.Error())
	}
	return out
}
