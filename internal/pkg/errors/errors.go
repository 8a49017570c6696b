package errors

import (
	"errors"
	"fmt"
)

var (
	ErrInvalid  = errors.New("invalid")
	ErrInternal = errors.New("internal")
	ErrLLM      = errors.New("llm invocation failed")
)

// InvalidError carries a message that is safe to return to the caller.
type InvalidError struct {
	Msg string
}

func (e *InvalidError) Error() string {
	return e.Msg
}

func (e *InvalidError) Unwrap() error {
	return ErrInvalid
}

func Invalid(format string, args ...interface{}) error {
	return &InvalidError{Msg: fmt.Sprintf(format, args...)}
}

func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalid)
}

func IsLLM(err error) bool {
	return errors.Is(err, ErrLLM)
}

// InvalidMessage returns the caller-visible message of a validation error.
func InvalidMessage(err error) string {
	var ie *InvalidError
	if errors.As(err, &ie) {
		return ie.Msg
	}
	return "invalid request"
}
