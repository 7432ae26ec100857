package httperr

import "errors"

type BadRequestError struct {
	msg   string
	cause error
}

func (e *BadRequestError) Error() string {
	if e.cause != nil {
		return e.msg + ": " + e.cause.Error()
	}
	return e.msg
}

func (e *BadRequestError) Unwrap() error { return e.cause }

func NewBadRequest(msg string) error { return &BadRequestError{msg: msg} }

// WrapBadRequest marks cause as a client input error while keeping it
// reachable through errors.Is/As.
func WrapBadRequest(msg string, cause error) error {
	return &BadRequestError{msg: msg, cause: cause}
}

func IsBadRequest(err error) bool {
	_, ok := errors.AsType[*BadRequestError](err)
	return ok
}
