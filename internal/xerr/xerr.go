// Package xerr implements the error taxonomy from the error handling
// design: a small set of logical error kinds that every subcommand maps
// to an exit code, instead of inspecting ad-hoc error strings.
package xerr

import (
	"errors"
	"fmt"
)

// Kind is one of the logical error categories.
type Kind int

const (
	Io Kind = iota
	Csv
	Selection
	Parse
	Eval
	Arg
	Unsupported
	Aborted
)

func (k Kind) String() string {
	switch k {
	case Io:
		return "io"
	case Csv:
		return "csv"
	case Selection:
		return "selection"
	case Parse:
		return "parse"
	case Eval:
		return "eval"
	case Arg:
		return "arg"
	case Unsupported:
		return "unsupported"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// ExitCode returns the process exit code documented for this kind.
func (k Kind) ExitCode() int {
	switch k {
	case Arg:
		return 2
	case Aborted:
		return 130
	default:
		return 1
	}
}

// Error wraps an underlying error with a Kind so the command
// orchestrator can print "<cmd>: <message>" and pick an exit code
// without re-parsing the message.
type Error struct {
	Kind Kind
	Op   string // failing function/operator/column, when known
	err  error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Op, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.err)
}

func (e *Error) Unwrap() error { return e.err }

// New wraps err with kind, with no named operand.
func New(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, err: err}
}

// Newf builds an Error from a format string.
func Newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, err: fmt.Errorf(format, args...)}
}

// Op wraps err with kind and names the failing function/operator/column.
func Op(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, err: err}
}

// As extracts the *Error from err, if any, following the same
// contract as errors.As.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the Kind of err, defaulting to Io for plain errors
// that never went through this package (e.g. raw os errors).
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return Io
}
