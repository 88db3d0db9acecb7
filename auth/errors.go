package auth

import (
	"errors"
)

// Failure kinds reported by a Backend. Match them with errors.Is.
var (
	ErrInvalidCredentials = errors.New("Invalid email or password")
	ErrEmailAlreadyExists = errors.New("Email already exists")
	ErrInvalidToken       = errors.New("Invalid token")
	ErrUserNotFound       = errors.New("User not found")
	ErrNetworkFailure     = errors.New("Network failure")
)

// Error is a Backend failure carrying one of the failure kinds above and a message which
// can be shown to the user as-is.
type Error struct {
	Kind    error
	Message string
	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Kind != nil {
		return e.Kind.Error()
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "authentication failed"
}

func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func newError(kind error, message string, cause error) *Error {
	if message == "" {
		message = kind.Error()
	}
	return &Error{
		Kind:    kind,
		Message: message,
		Err:     cause,
	}
}
