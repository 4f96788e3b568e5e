package sfm

import (
	"errors"
	"fmt"
)

// Kind classifies a core failure. The set is closed; callers map kinds to
// their own status codes or errnos.
type Kind string

const (
	KindForbidden       Kind = "forbidden"
	KindNotFound        Kind = "not_found"
	KindNotADirectory   Kind = "not_a_directory"
	KindInvalidName     Kind = "invalid_name"
	KindMissingUpload   Kind = "missing_upload"
	KindOperationFailed Kind = "operation_failed"
	KindUploadFailed    Kind = "upload_failed"
)

// Code returns the integer code reported to remote callers for the kind.
func (k Kind) Code() int {
	switch k {
	case KindForbidden:
		return 403
	case KindNotFound:
		return 404
	case KindNotADirectory:
		return 412
	case KindInvalidName, KindMissingUpload:
		return 422
	default:
		return 500
	}
}

// defaultMessages are the client facing messages used when none is given.
var defaultMessages = map[Kind]string{
	KindForbidden:       "Forbidden",
	KindNotFound:        "Not found",
	KindNotADirectory:   "Not a directory",
	KindInvalidName:     "Invalid name",
	KindMissingUpload:   "Missing file",
	KindOperationFailed: "Operation failed",
	KindUploadFailed:    "Upload failed",
}

// Error is the structured failure returned by an [Operator].
// Err holds the underlying OS error, if any; it is for logs only and never
// part of Message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Sentinels for errors.Is; matching is by Kind only.
var (
	ErrForbidden       = &Error{Kind: KindForbidden}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrNotADirectory   = &Error{Kind: KindNotADirectory}
	ErrInvalidName     = &Error{Kind: KindInvalidName}
	ErrMissingUpload   = &Error{Kind: KindMissingUpload}
	ErrOperationFailed = &Error{Kind: KindOperationFailed}
	ErrUploadFailed    = &Error{Kind: KindUploadFailed}
)

// NewError builds an Error of the given kind with the default message.
func NewError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Message: defaultMessages[kind], Err: err}
}

// Errorf builds an Error of the given kind with a formatted message.
func Errorf(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func (e *Error) Error() string {
	msg := e.Msg()
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

// Msg returns the client facing message.
func (e *Error) Msg() string {
	if e.Message != "" {
		return e.Message
	}
	return defaultMessages[e.Kind]
}

// Code is shorthand for e.Kind.Code().
func (e *Error) Code() int {
	return e.Kind.Code()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf extracts the Kind of err. Errors that do not carry a core Error are
// reported as KindOperationFailed.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindOperationFailed
}

// AsError converts any error into a core Error, wrapping foreign errors as
// OperationFailed. Returns nil for a nil err.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return NewError(KindOperationFailed, err)
}
