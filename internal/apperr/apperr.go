// Package apperr defines the error kinds shared by repositories, services and
// handlers. Every error a caller is expected to branch on is an *Error with a
// Kind; handlers translate the kind into an HTTP status.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an application error.
type Kind string

const (
	KindNotFound           Kind = "NotFound"
	KindArgument           Kind = "Argument"
	KindForbidden          Kind = "Forbidden"
	KindAlreadyInUse       Kind = "AlreadyInUse"
	KindServiceUnavailable Kind = "ServiceUnavailable"
	KindNotImplemented     Kind = "NotImplemented"
)

// Error is the concrete error type for every Kind. Entity names the resource
// or argument the error refers to. Errors carries per-item sub-errors for
// multi-item validation (one entry per offending offer, for instance).
type Error struct {
	Kind    Kind
	Entity  string
	Message string
	Errors  []*Error
	Cause   error

	sentinel bool
}

// Sentinels for errors.Is comparisons.
var (
	ErrNotFound           = &Error{Kind: KindNotFound, sentinel: true}
	ErrArgument           = &Error{Kind: KindArgument, sentinel: true}
	ErrForbidden          = &Error{Kind: KindForbidden, sentinel: true}
	ErrAlreadyInUse       = &Error{Kind: KindAlreadyInUse, sentinel: true}
	ErrServiceUnavailable = &Error{Kind: KindServiceUnavailable, sentinel: true}
	ErrNotImplemented     = &Error{Kind: KindNotImplemented, sentinel: true}
)

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Entity != "" {
		b.WriteString(" (")
		b.WriteString(e.Entity)
		b.WriteString(")")
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Errors) > 0 {
		msgs := make([]string, 0, len(e.Errors))
		for _, sub := range e.Errors {
			msgs = append(msgs, sub.Error())
		}
		b.WriteString(" [")
		b.WriteString(strings.Join(msgs, "; "))
		b.WriteString("]")
	}
	return b.String()
}

// Is reports whether target is the sentinel of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || !t.sentinel {
		return false
	}
	return t.Kind == e.Kind
}

func (e *Error) Unwrap() error { return e.Cause }

// NotFound reports a missing entity.
func NotFound(entity string) *Error {
	return &Error{Kind: KindNotFound, Entity: entity, Message: entity + " not found"}
}

// Argument reports malformed or inconsistent input for the named argument.
func Argument(entity, format string, args ...any) *Error {
	return &Error{Kind: KindArgument, Entity: entity, Message: fmt.Sprintf(format, args...)}
}

// Arguments folds several Argument errors into one carrying them as sub-errors.
// It returns nil when errs is empty.
func Arguments(entity string, errs []*Error) error {
	if len(errs) == 0 {
		return nil
	}
	return &Error{Kind: KindArgument, Entity: entity, Message: fmt.Sprintf("%d invalid item(s)", len(errs)), Errors: errs}
}

// Forbidden reports that the actor may not act on the resource.
func Forbidden(format string, args ...any) *Error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

// AlreadyInUse reports a uniqueness conflict on entity.
func AlreadyInUse(entity, format string, args ...any) *Error {
	return &Error{Kind: KindAlreadyInUse, Entity: entity, Message: fmt.Sprintf(format, args...)}
}

// ServiceUnavailable reports that a downstream dependency failed server-side.
func ServiceUnavailable(cause error, format string, args ...any) *Error {
	return &Error{Kind: KindServiceUnavailable, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// NotImplemented reports a path intentionally left unhandled.
func NotImplemented(format string, args ...any) *Error {
	return &Error{Kind: KindNotImplemented, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
