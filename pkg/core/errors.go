package core

import (
	"errors"
	"fmt"
)

// Kind classifies a failure. Usage-contract violations are detected locally and
// carry a specific kind; anything reported by the engine is KindEngineError.
type Kind uint8

// Error kinds.
const (
	KindUnknown Kind = iota
	KindOpenFailed
	KindConnectionClosed
	KindAlreadyClosed
	KindStatementClosed
	KindInvalidCursorPosition
	KindColumnOutOfRange
	KindParameterOutOfRange
	KindParameterNotSet
	KindTypeMismatch
	KindUnknownType
	KindNotAResultSet
	KindUnexpectedResultSet
	KindUnsupportedFeature
	KindInvalidState
	KindInvalidConfig
	KindEngineError
)

var kindNames = [...]string{
	KindUnknown:               "Unknown",
	KindOpenFailed:            "OpenFailed",
	KindConnectionClosed:      "ConnectionClosed",
	KindAlreadyClosed:         "AlreadyClosed",
	KindStatementClosed:       "StatementClosed",
	KindInvalidCursorPosition: "InvalidCursorPosition",
	KindColumnOutOfRange:      "ColumnOutOfRange",
	KindParameterOutOfRange:   "ParameterOutOfRange",
	KindParameterNotSet:       "ParameterNotSet",
	KindTypeMismatch:          "TypeMismatch",
	KindUnknownType:           "UnknownType",
	KindNotAResultSet:         "NotAResultSet",
	KindUnexpectedResultSet:   "UnexpectedResultSet",
	KindUnsupportedFeature:    "UnsupportedFeature",
	KindInvalidState:          "InvalidState",
	KindInvalidConfig:         "InvalidConfig",
	KindEngineError:           "EngineError",
}

// String returns the kind name.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// SQL-state-like codes attached to engine errors.
const (
	CodeGeneral        = "HY000"
	CodeTimeout        = "HYT00"
	CodeSessionExpired = "08S01"
)

// Error is the structured error returned by every public operation.
type Error struct {
	Kind Kind
	Msg  string
	// Code is the engine's SQL-state-like code, empty for local failures.
	Code string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Code != "" {
		return fmt.Sprintf("%s [%s]: %s", e.Kind, e.Code, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on kind so callers can write errors.Is(err, core.ErrStatementClosed).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Msg == "" && t.Kind == e.Kind
}

// Sentinels for errors.Is. They carry no message and match any error of the same kind.
var (
	ErrOpenFailed            = &Error{Kind: KindOpenFailed}
	ErrConnectionClosed      = &Error{Kind: KindConnectionClosed}
	ErrAlreadyClosed         = &Error{Kind: KindAlreadyClosed}
	ErrStatementClosed       = &Error{Kind: KindStatementClosed}
	ErrInvalidCursorPosition = &Error{Kind: KindInvalidCursorPosition}
	ErrColumnOutOfRange      = &Error{Kind: KindColumnOutOfRange}
	ErrParameterOutOfRange   = &Error{Kind: KindParameterOutOfRange}
	ErrParameterNotSet       = &Error{Kind: KindParameterNotSet}
	ErrTypeMismatch          = &Error{Kind: KindTypeMismatch}
	ErrUnknownType           = &Error{Kind: KindUnknownType}
	ErrNotAResultSet         = &Error{Kind: KindNotAResultSet}
	ErrUnexpectedResultSet   = &Error{Kind: KindUnexpectedResultSet}
	ErrUnsupportedFeature    = &Error{Kind: KindUnsupportedFeature}
	ErrInvalidState          = &Error{Kind: KindInvalidState}
	ErrInvalidConfig         = &Error{Kind: KindInvalidConfig}
	ErrEngine                = &Error{Kind: KindEngineError}
)

// Errorf builds a local error of the given kind.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// EngineError wraps a raw engine failure, keeping its message verbatim.
// An error that already is a *Error passes through unchanged.
func EngineError(err error, code string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	if code == "" {
		code = CodeGeneral
	}
	return &Error{Kind: KindEngineError, Msg: err.Error(), Code: code, Err: err}
}

// Unsupported reports a feature the engine or driver does not provide.
func Unsupported(feature string) *Error {
	return Errorf(KindUnsupportedFeature, "%s is not supported", feature)
}

// KindOf extracts the kind of err, or KindUnknown when err is not a *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// CodeOf returns the engine code carried by err, if any.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
