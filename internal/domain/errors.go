package domain

import "errors"

// Domain errors - these are business logic errors that should be translated
// to appropriate HTTP status codes by the handler layer

var (
	// User errors
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("username or email already registered")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAccountDisabled    = errors.New("account is disabled")
	ErrInvalidToken       = errors.New("invalid or expired token")

	// Problem errors
	ErrProblemNotFound = errors.New("problem not found")
	ErrValidation      = errors.New("missing or invalid required field")
	ErrConflict        = errors.New("problem was modified concurrently")

	// General errors
	ErrInternalServer = errors.New("internal server error")
	ErrBadRequest     = errors.New("bad request")
	ErrUnauthorized   = errors.New("unauthorized")
)

// DomainError wraps an error with additional context
type DomainError struct {
	Err     error
	Message string
}

func (e *DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// WrapError wraps an error with additional context
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return &DomainError{
		Err:     err,
		Message: message,
	}
}
