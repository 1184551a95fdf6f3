// Package errs defines the error taxonomy shared by the ledger, the engine and the HTTP layer.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error for transport mapping.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindInsufficientBalance
	KindConfiguration
	KindConflict
	KindAuthorization
	KindUnauthenticated
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindInsufficientBalance:
		return "insufficient_balance"
	case KindConfiguration:
		return "configuration"
	case KindConflict:
		return "conflict"
	case KindAuthorization:
		return "authorization"
	case KindUnauthenticated:
		return "unauthenticated"
	default:
		return "internal"
	}
}

// Stable machine-readable codes carried in problem responses.
const (
	CodeValidation           = "VALIDATION_ERROR"
	CodeInvalidMoney         = "INVALID_MONEY"
	CodeInvalidPoints        = "INVALID_POINTS"
	CodeInvalidRuleset       = "INVALID_RULESET"
	CodeInvalidLevels        = "INVALID_LEVELS"
	CodeInvalidPublicCode    = "INVALID_PUBLIC_CODE"
	CodeNotEnoughBalance     = "NOT_ENOUGH_BALANCE"
	CodeRulesetNotFound      = "RULESET_NOT_FOUND"
	CodeAccountNotFound      = "ACCOUNT_NOT_FOUND"
	CodeMisconfiguredRuleset = "MISCONFIGURED_RULESET"
	CodeAccountExists        = "ACCOUNT_ALREADY_EXISTS"
	CodeRulesetExists        = "RULESET_ALREADY_EXISTS"
	CodeIdempotencyKeyReused = "IDEMPOTENCY_KEY_REUSED"
	CodeConcurrentUpdate     = "CONCURRENT_UPDATE"
	CodeInvalidOperation     = "INVALID_OPERATION"
	CodeForbidden            = "FORBIDDEN"
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeInternal             = "INTERNAL_ERROR"
)

// Error is a classified error with a stable code.
type Error struct {
	Kind Kind
	Code string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err == nil {
		return e.Code + ": " + e.Msg
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error with the same kind and code, so package-level
// sentinels work with errors.Is even after wrapping.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t == nil {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

func newf(kind Kind, code, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Msg: fmt.Sprintf(format, args...)}
}

func Validation(code, format string, args ...any) *Error {
	return newf(KindValidation, code, format, args...)
}

func NotFound(code, format string, args ...any) *Error {
	return newf(KindNotFound, code, format, args...)
}

func Conflict(code, format string, args ...any) *Error {
	return newf(KindConflict, code, format, args...)
}

func InsufficientBalance(format string, args ...any) *Error {
	return newf(KindInsufficientBalance, CodeNotEnoughBalance, format, args...)
}

func Configuration(format string, args ...any) *Error {
	return newf(KindConfiguration, CodeMisconfiguredRuleset, format, args...)
}

func Forbidden(format string, args ...any) *Error {
	return newf(KindAuthorization, CodeForbidden, format, args...)
}

func Unauthenticated(format string, args ...any) *Error {
	return newf(KindUnauthenticated, CodeUnauthorized, format, args...)
}

// Wrap attaches a kind and code to an underlying cause.
func Wrap(kind Kind, code, msg string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Msg: msg, Err: cause}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) && e != nil {
		return e.Kind
	}
	return KindInternal
}

// CodeOf returns the code of the first *Error in err's chain.
func CodeOf(err error) (string, bool) {
	var e *Error
	if errors.As(err, &e) && e != nil {
		return e.Code, true
	}
	return "", false
}
