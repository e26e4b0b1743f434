// Package apperr defines the error taxonomy shared by all domain packages.
//
// Domain packages declare their sentinel errors as *Error values so the HTTP
// adapter can map any wrapped error to a status code with a single errors.As.
package apperr

import (
	"sort"
	"strings"

	"github.com/go-faster/errors"
)

// Kind classifies an error for the transport layer.
type Kind int

const (
	// KindInternal is a storage or infrastructure failure.
	KindInternal Kind = iota
	// KindValidation is a missing or malformed input field.
	KindValidation
	// KindNotFound is an unknown product, cart entry or order.
	KindNotFound
	// KindUnauthenticated is a missing, invalid or expired credential.
	KindUnauthenticated
	// KindForbidden is a valid credential lacking the required role.
	KindForbidden
	// KindConflict is a request that contradicts current state.
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error is a classified domain error. Fields carries per-field messages for
// validation failures.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string
}

func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(e.Message)
	b.WriteString(": ")
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(e.Fields[k])
	}
	return b.String()
}

// Is reports equality by kind and message so that sentinel values keep
// matching after being copied.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == e.Message
}

// New returns an error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// NotFound returns a KindNotFound error.
func NotFound(msg string) *Error { return New(KindNotFound, msg) }

// Conflict returns a KindConflict error.
func Conflict(msg string) *Error { return New(KindConflict, msg) }

// Unauthenticated returns a KindUnauthenticated error.
func Unauthenticated(msg string) *Error { return New(KindUnauthenticated, msg) }

// Forbidden returns a KindForbidden error.
func Forbidden(msg string) *Error { return New(KindForbidden, msg) }

// Validation returns a KindValidation error with field-level detail.
func Validation(msg string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: msg, Fields: fields}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// FieldErrors accumulates per-field validation messages.
type FieldErrors map[string]string

// Require records msg for field when value is blank.
func (f FieldErrors) Require(field, value, msg string) {
	if strings.TrimSpace(value) == "" {
		f[field] = msg
	}
}

// Err returns a validation error when any field failed, nil otherwise.
func (f FieldErrors) Err(msg string) error {
	if len(f) == 0 {
		return nil
	}
	return Validation(msg, f)
}
