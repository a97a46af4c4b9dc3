package errors

import "errors"

var (
	ErrNotFound             = errors.New("resource not found")
	ErrAlreadyExists        = errors.New("resource already exists")
	ErrInvalidInput         = errors.New("invalid input")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrDatabaseError        = errors.New("database error")
	ErrCacheError           = errors.New("cache error")
	ErrInsufficientCredits  = errors.New("insufficient credits")
	ErrThreadDepthLocked    = errors.New("thread depth locked")
	ErrAnalysisProviderDown = errors.New("analysis provider unavailable")
)

type Error struct {
	Err     error
	Message string
	Code    string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Wrap(err error, message string) *Error {
	return &Error{
		Err:     err,
		Message: message,
		Code:    "INTERNAL_ERROR",
	}
}
