// Package apperr defines the error kinds shared by every domain package.
// Domain sentinels wrap one kind so transport layers can classify them
// with errors.Is without knowing each domain's error set.
package apperr

import (
	"errors"
	"strings"
)

var (
	ErrNotFound      = errors.New("not_found")
	ErrValidation    = errors.New("validation_error")
	ErrConflict      = errors.New("conflict")
	ErrConfiguration = errors.New("configuration_error")
	ErrNotSupported  = errors.New("not_supported")
	ErrInvalidAmount = errors.New("invalid_amount")
	ErrExternal      = errors.New("external_service_error")
)

// Error is a coded domain error of a given kind.
type Error struct {
	Kind error
	Code string
}

func New(kind error, code string) *Error {
	return &Error{Kind: kind, Code: strings.TrimSpace(code)}
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return e.Code
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Kind
}

// ExternalError wraps a failure returned by a gateway or email transport.
type ExternalError struct {
	Service string
	Err     error
}

// External marks err as an external-service failure of the named service.
func External(service string, err error) error {
	if err == nil {
		return nil
	}
	var existing *ExternalError
	if errors.As(err, &existing) {
		return err
	}
	return &ExternalError{Service: strings.TrimSpace(service), Err: err}
}

func (e *ExternalError) Error() string {
	return e.Service + ": " + e.Err.Error()
}

func (e *ExternalError) Unwrap() []error {
	return []error{ErrExternal, e.Err}
}

// Code returns the machine readable code carried by err, or the kind name.
func Code(err error) string {
	if err == nil {
		return ""
	}
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	switch Kind(err) {
	case nil:
		return "internal_error"
	default:
		return Kind(err).Error()
	}
}

// Kind reports which shared kind err belongs to, or nil when it is unclassified.
func Kind(err error) error {
	for _, kind := range []error{
		ErrNotFound,
		ErrValidation,
		ErrConflict,
		ErrConfiguration,
		ErrNotSupported,
		ErrInvalidAmount,
		ErrExternal,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
