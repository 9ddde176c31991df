// internal/errors/errors.go
package errors

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Kind classifies an error for the transport layers.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindNotFound     Kind = "not_found"
	KindStorage      Kind = "storage"
	KindUnavailable  Kind = "unavailable"
	KindRateLimited  Kind = "rate_limited"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
)

// ErrConflictRace marks a uniqueness violation lost to a concurrent writer.
// Repositories resolve it by reading the winning row; it never reaches a caller.
var ErrConflictRace = errors.New("conflict: row created concurrently")

// Error is the service level error carried up to the transports.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Validation reports missing or malformed request input.
func Validation(msg string) error {
	return &Error{Kind: KindValidation, Message: msg}
}

func Validationf(format string, args ...any) error {
	return Validation(fmt.Sprintf(format, args...))
}

func NotFound(what string) error {
	return &Error{Kind: KindNotFound, Message: what + " not found"}
}

// Storage wraps a failed store operation. A missing row becomes NotFound.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	var svc *Error
	if errors.As(err, &svc) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &Error{Kind: KindNotFound, Message: "record not found", Err: err}
	}
	return &Error{Kind: KindStorage, Message: op, Err: err}
}

func Unavailable(msg string, err error) error {
	return &Error{Kind: KindUnavailable, Message: msg, Err: err}
}

func RateLimited(msg string) error {
	return &Error{Kind: KindRateLimited, Message: msg}
}

func Unauthorized(msg string) error {
	return &Error{Kind: KindUnauthorized, Message: msg}
}

// Forbidden rejects an authenticated caller acting for someone else.
func Forbidden(msg string) error {
	return &Error{Kind: KindForbidden, Message: msg}
}

// KindOf returns the kind of err, defaulting to storage for foreign errors.
func KindOf(err error) Kind {
	var svc *Error
	if errors.As(err, &svc) {
		return svc.Kind
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return KindNotFound
	}
	return KindStorage
}

// IsKind reports whether err is a service error of kind k.
func IsKind(err error, k Kind) bool {
	var svc *Error
	return errors.As(err, &svc) && svc.Kind == k
}

// IsDuplicate reports whether err is a uniqueness violation on insert.
func IsDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || errors.Is(err, ErrConflictRace)
}
