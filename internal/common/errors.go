// Package common defines the error taxonomy shared by the credkeeper
// service layers. Callers should use errors.Is / errors.As to match.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Service-level errors.
	ErrConflict       = errors.New("conflict")
	ErrAuthentication = errors.New("authentication failed")
	ErrValidation     = errors.New("validation error")

	// Token lifecycle errors. *TokenError matches these through errors.Is.
	ErrTokenInvalid = errors.New("token invalid")
	ErrTokenExpired = errors.New("token expired")
)

// TokenErrorKind tells a caller whether a token should be discarded
// (invalid) or exchanged/re-requested (expired).
type TokenErrorKind int

const (
	TokenInvalid TokenErrorKind = iota
	TokenExpired
)

func (k TokenErrorKind) String() string {
	switch k {
	case TokenExpired:
		return "expired"
	default:
		return "invalid"
	}
}

// TokenError is returned for bad refresh, reset or verification tokens.
type TokenError struct {
	Kind TokenErrorKind
}

// NewTokenError builds a TokenError of the given kind.
func NewTokenError(kind TokenErrorKind) *TokenError {
	return &TokenError{Kind: kind}
}

func (e *TokenError) Error() string {
	return "token " + e.Kind.String()
}

// Is lets errors.Is(err, ErrTokenExpired) and errors.Is(err, ErrTokenInvalid) work.
func (e *TokenError) Is(target error) bool {
	switch target {
	case ErrTokenExpired:
		return e.Kind == TokenExpired
	case ErrTokenInvalid:
		return e.Kind == TokenInvalid
	}
	return false
}

// ValidationError reports malformed input rejected before any datastore access.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// ErrorKind is the closed set of outcomes the transport boundary maps to
// status codes.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindValidation
	KindConflict
	KindAuthentication
	KindTokenInvalid
	KindTokenExpired
	KindNotFound
	KindInternal
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "ok"
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindAuthentication:
		return "authentication"
	case KindTokenInvalid:
		return "token_invalid"
	case KindTokenExpired:
		return "token_expired"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Classify reduces err to one ErrorKind. Anything unrecognised, including
// datastore failures, is KindInternal.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrAuthentication):
		return KindAuthentication
	case errors.Is(err, ErrTokenExpired):
		return KindTokenExpired
	case errors.Is(err, ErrTokenInvalid):
		return KindTokenInvalid
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	default:
		return KindInternal
	}
}
