package models

import "fmt"

// Error codes.
const (
	CodeIO               = "IO_ERROR"
	CodeOutOfRange       = "OUT_OF_RANGE"
	CodeIdentityMismatch = "IDENTITY_MISMATCH"
	CodePower            = "POWER_ERROR"
	CodeConfig           = "CONFIG_ERROR"
	CodeReadOnly         = "READ_ONLY"
	CodeNotFound         = "NOT_FOUND"
	CodeBadRequest       = "BAD_REQUEST"
	CodeInternal         = "INTERNAL"
)

// AppError is a structured sensor error with an HTTP status code for the
// control API. Err carries the underlying transport or driver error.
type AppError struct {
	Code    string `json:"error"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// Is matches any *AppError with the same code, so callers can write
// errors.Is(err, models.ErrKindOutOfRange).
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

// Kind sentinels for errors.Is.
var (
	ErrKindIO               = &AppError{Code: CodeIO}
	ErrKindOutOfRange       = &AppError{Code: CodeOutOfRange}
	ErrKindIdentityMismatch = &AppError{Code: CodeIdentityMismatch}
	ErrKindPower            = &AppError{Code: CodePower}
	ErrKindConfig           = &AppError{Code: CodeConfig}
	ErrKindReadOnly         = &AppError{Code: CodeReadOnly}
	ErrKindNotFound         = &AppError{Code: CodeNotFound}
)

// Error constructors.
var (
	ErrIO = func(msg string, err error) *AppError {
		return &AppError{Code: CodeIO, Message: msg, Status: 502, Err: err}
	}
	ErrOutOfRange = func(msg string) *AppError {
		return &AppError{Code: CodeOutOfRange, Message: msg, Status: 400}
	}
	ErrIdentityMismatch = func(msg string) *AppError {
		return &AppError{Code: CodeIdentityMismatch, Message: msg, Status: 502}
	}
	ErrPower = func(msg string, err error) *AppError {
		return &AppError{Code: CodePower, Message: msg, Status: 503, Err: err}
	}
	ErrConfig = func(msg string) *AppError {
		return &AppError{Code: CodeConfig, Message: msg, Status: 400}
	}
	ErrReadOnly = func(msg string) *AppError {
		return &AppError{Code: CodeReadOnly, Message: msg, Status: 400}
	}
	ErrNotFound = func(msg string) *AppError {
		return &AppError{Code: CodeNotFound, Message: msg, Status: 404}
	}
	ErrBadRequest = func(msg string) *AppError {
		return &AppError{Code: CodeBadRequest, Message: msg, Status: 400}
	}
	ErrInternal = func(msg string) *AppError {
		return &AppError{Code: CodeInternal, Message: msg, Status: 500}
	}
)
