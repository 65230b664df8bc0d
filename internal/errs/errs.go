// Package errs defines the error kinds shared across the torrent core.
package errs

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies the subsystem an error originated in.
type Kind string

const (
	Codec      Kind = "codec"
	IO         Kind = "io"
	Protocol   Kind = "protocol"
	Validation Kind = "validation"
	Tracker    Kind = "tracker"
	Config     Kind = "config"
)

// Error wraps a cause with a Kind, attaching a stack trace at the wrap site.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap annotates err with kind, attaching a stack trace. Returns nil if err is nil.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: errors.WithStack(err)}
}

// Wrapf is Wrap with a formatted message prepended to err.
func Wrapf(kind Kind, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: errors.Wrapf(err, format, args...)}
}

// New creates a Kind error from a message, with a stack trace attached.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Err: errors.New(msg)}
}

// Newf is New with a formatted message.
func Newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Err: errors.Errorf(format, args...)}
}

// Is reports whether err (or any error it wraps) has the given Kind.
func Is(err error, kind Kind) bool {
	for err != nil {
		if ke, ok := err.(*Error); ok && ke.Kind == kind {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}
