package apperrors

import "fmt"

// Code classifies an application error for the HTTP boundary.
type Code string

const (
	CodeNotAuthenticated Code = "NOT_AUTHENTICATED"
	CodeNotAuthorized    Code = "NOT_AUTHORIZED"
	CodeNotFound         Code = "NOT_FOUND"
	CodeValidation       Code = "VALIDATION"
	CodeAlreadyExists    Code = "ALREADY_EXISTS"
	CodeConfiguration    Code = "CONFIGURATION"
	CodeInternal         Code = "INTERNAL"
)

// AppError carries a machine-readable code alongside the message.
type AppError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

func New(code Code, message string) error {
	return &AppError{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) error {
	return &AppError{Code: code, Message: message, Cause: cause}
}

func NotAuthenticated(msg string) error { return New(CodeNotAuthenticated, msg) }
func NotAuthorized(msg string) error    { return New(CodeNotAuthorized, msg) }
func NotFound(msg string) error         { return New(CodeNotFound, msg) }
func Validation(msg string) error       { return New(CodeValidation, msg) }
func AlreadyExists(msg string) error    { return New(CodeAlreadyExists, msg) }
func Configuration(msg string) error    { return New(CodeConfiguration, msg) }
func Internal(msg string) error         { return New(CodeInternal, msg) }

func Validationf(format string, args ...any) error {
	return New(CodeValidation, fmt.Sprintf(format, args...))
}

// Domain errors
var (
	ErrUserNotFound       = NotFound("user not found")
	ErrConnectionNotFound = NotFound("connection not found")
	ErrAlreadyConnected   = AlreadyExists("users are already connected")
	ErrUsernameTaken      = AlreadyExists("username is already taken")
	ErrNotParticipant     = NotAuthorized("user is not a participant of this connection")
	ErrSelfConnection     = Validation("cannot create a connection with yourself")
	ErrEmptyContent       = Validation("chronicle content cannot be empty")
)
