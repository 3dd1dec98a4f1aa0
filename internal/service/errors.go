package service

import (
	"errors"
	"fmt"
)

// Error kinds. Handlers map them onto HTTP status codes.
var (
	ErrValidation         = errors.New("validation failed")
	ErrDuplicate          = errors.New("already exists")
	ErrNotFound           = errors.New("not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrForbidden          = errors.New("forbidden")
	ErrUnavailable        = errors.New("unavailable")
)

// Error is a business error with a message safe to show to clients
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func newError(kind error, format string, args ...interface{}) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func validationError(format string, args ...interface{}) error {
	return newError(ErrValidation, format, args...)
}

func notFound(what string) error {
	return newError(ErrNotFound, "%s not found", what)
}

func forbidden() error {
	return newError(ErrForbidden, "You do not have permission to perform this action")
}
