package status

import (
	"errors"
	"fmt"
)

// Code is the numeric error code reported at the boundary.
type Code int

const (
	// OK indicates success.
	OK Code = 0

	// RegistrationFailure indicates a registration (name or id) was rejected.
	RegistrationFailure Code = -1

	// ConnectionFailure indicates a connection could not be made or was lost.
	ConnectionFailure Code = -2

	// InvalidObject indicates the object handle is not valid.
	InvalidObject Code = -3

	// InvalidArgument indicates a bad argument value.
	InvalidArgument Code = -4

	// Discard indicates the input was discarded.
	Discard Code = -5

	// SystemFailure indicates an underlying system failure.
	SystemFailure Code = -6

	// InvalidStateTransition indicates an operation was illegal in the current state.
	InvalidStateTransition Code = -9

	// InvalidFunctionCall indicates a call made in an illegal context.
	InvalidFunctionCall Code = -10

	// ExecutionFailure indicates an operation failed while executing.
	ExecutionFailure Code = -14

	// InsufficientSpace indicates a provided buffer was too small.
	InsufficientSpace Code = -18

	// UserAbort indicates the user requested an abort.
	UserAbort Code = -27

	// Other is an unclassified error.
	Other Code = -101

	// Fatal indicates a fatal error halting the federation.
	Fatal Code = -404
)

// String returns the code name.
func (c Code) String() string {
	switch c {
	case OK:
		return "OK"
	case RegistrationFailure:
		return "REGISTRATION_FAILURE"
	case ConnectionFailure:
		return "CONNECTION_FAILURE"
	case InvalidObject:
		return "INVALID_OBJECT"
	case InvalidArgument:
		return "INVALID_ARGUMENT"
	case Discard:
		return "DISCARD"
	case SystemFailure:
		return "SYSTEM_FAILURE"
	case InvalidStateTransition:
		return "INVALID_STATE_TRANSITION"
	case InvalidFunctionCall:
		return "INVALID_FUNCTION_CALL"
	case ExecutionFailure:
		return "EXECUTION_FAILURE"
	case InsufficientSpace:
		return "INSUFFICIENT_SPACE"
	case UserAbort:
		return "USER_ABORT"
	case Other:
		return "OTHER"
	case Fatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// Kind classifies an error for propagation policy.
type Kind uint8

const (
	// KindNone is the zero kind, used for success.
	KindNone Kind = iota

	// KindInvalidArgument covers unknown names, empty strings and bad indices.
	KindInvalidArgument

	// KindInvalidState covers lifecycle violations.
	KindInvalidState

	// KindInvalidProperty covers unknown or out-of-range properties and options.
	KindInvalidProperty

	// KindConnection covers missing required connections and timeouts.
	KindConnection

	// KindFederationFatal covers global errors that halt the federation.
	KindFederationFatal

	// KindLocalFatal covers local errors that finalize one federate.
	KindLocalFatal
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "NONE"
	case KindInvalidArgument:
		return "INVALID_ARGUMENT"
	case KindInvalidState:
		return "INVALID_STATE"
	case KindInvalidProperty:
		return "INVALID_PROPERTY"
	case KindConnection:
		return "CONNECTION"
	case KindFederationFatal:
		return "FEDERATION_FATAL"
	case KindLocalFatal:
		return "LOCAL_FATAL"
	default:
		return "UNKNOWN"
	}
}

// Recoverable reports whether errors of this kind leave the federation usable.
func (k Kind) Recoverable() bool {
	return k != KindFederationFatal && k != KindLocalFatal
}

// DefaultCode returns the code reported for a kind when none is given.
func (k Kind) DefaultCode() Code {
	switch k {
	case KindNone:
		return OK
	case KindInvalidArgument:
		return InvalidArgument
	case KindInvalidState:
		return InvalidFunctionCall
	case KindInvalidProperty:
		return InvalidArgument
	case KindConnection:
		return ConnectionFailure
	case KindFederationFatal:
		return Fatal
	case KindLocalFatal:
		return ExecutionFailure
	default:
		return Other
	}
}

// Error is a classified error carrying a boundary code.
type Error struct {
	Code    Code
	Kind    Kind
	Message string

	// Cause is the wrapped error, if any.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s (%d)", e.Kind, int(e.Code))
	}
	return e.Message
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error of the same kind. A target with a non-zero code
// must match the code as well.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Code == OK || t.Code == e.Code
}

// Sentinels for matching with errors.Is.
var (
	ErrInvalidArgument = &Error{Kind: KindInvalidArgument}
	ErrInvalidState    = &Error{Kind: KindInvalidState}
	ErrInvalidProperty = &Error{Kind: KindInvalidProperty}
	ErrConnection      = &Error{Kind: KindConnection}
	ErrFederationFatal = &Error{Kind: KindFederationFatal}
	ErrLocalFatal      = &Error{Kind: KindLocalFatal}
)

// Errorf creates an error of the given kind with the kind's default code.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Code: kind.DefaultCode(), Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err under kind. The message is the formatted text
// followed by err's text; a nil err yields nil.
func Wrap(kind Kind, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if format != "" {
		msg = fmt.Sprintf(format, args...) + ": " + msg
	}
	return &Error{Code: kind.DefaultCode(), Kind: kind, Message: msg, Cause: err}
}

// New creates an error with an explicit code.
func New(code Code, kind Kind, message string) *Error {
	return &Error{Code: code, Kind: kind, Message: message}
}

// KindOf returns the kind of err, KindNone for nil and KindInvalidArgument for
// unclassified errors.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInvalidArgument
}

// CodeOf returns the boundary code of err.
func CodeOf(err error) Code {
	if err == nil {
		return OK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return Other
}
