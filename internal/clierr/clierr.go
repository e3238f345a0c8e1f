package clierr

import (
	"errors"
	"fmt"
)

// Process exit codes. 1 is any error without an explicit code.
const (
	ExitConfig    = 2 // bad flags, config file or credentials
	ExitTransport = 3 // an upstream API call failed
	ExitDelivery  = 4 // the report was built but could not be delivered or written
)

type ExitCoder interface {
	error
	ExitCode() int
}

// ExitError is an error that carries an explicit process exit code.
// It supports wrapping via Unwrap so errors.Is/As work as expected.
type ExitError struct {
	code  int
	msg   string
	cause error
}

func (e *ExitError) Error() string {
	if e.cause == nil {
		return e.msg
	}
	return fmt.Sprintf("%s: %v", e.msg, e.cause)
}

func (e *ExitError) ExitCode() int { return e.code }

func (e *ExitError) Unwrap() error { return e.cause }

// New creates an ExitError with a message.
func New(code int, msg string) error {
	return &ExitError{code: normalize(code), msg: msg}
}

// Wrap creates an ExitError that wraps cause. A nil cause yields New.
func Wrap(code int, msg string, cause error) error {
	if cause == nil {
		return New(code, msg)
	}
	return &ExitError{code: normalize(code), msg: msg, cause: cause}
}

// Wrapf is a formatted variant of Wrap.
func Wrapf(code int, cause error, format string, args ...any) error {
	return Wrap(code, fmt.Sprintf(format, args...), cause)
}

// ExitCodeOf extracts an exit code from any error, defaulting to 1.
func ExitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	var ec ExitCoder
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	return 1
}

func normalize(code int) int {
	if code <= 0 {
		return 1
	}
	return code
}
