package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Components wrap these so callers can use errors.Is.
var (
	ErrFetch      = errors.New("download failed")
	ErrExtraction = errors.New("no readable content")
	ErrPackaging  = errors.New("epub packaging failed")
	ErrDelivery   = errors.New("delivery failed")
	ErrValidation = errors.New("invalid input")
	ErrStartup    = errors.New("startup precondition failed")
)

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.kind.Error() + ": " + e.msg }
func (e *kindError) Unwrap() error { return e.kind }

// Errorf builds an error of the given kind with a formatted message.
// A %w verb in format is honored, so the cause stays reachable too.
func Errorf(kind error, format string, args ...any) error {
	err := fmt.Errorf(format, args...)
	return &wrapError{kindError: kindError{kind: kind, msg: err.Error()}, cause: errors.Unwrap(err)}
}

type wrapError struct {
	kindError
	cause error
}

func (e *wrapError) Unwrap() []error {
	if e.cause == nil {
		return []error{e.kind}
	}
	return []error{e.kind, e.cause}
}
