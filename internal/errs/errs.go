// Package errs holds the fatal error taxonomy shared by the analyzer, the
// OBU parser and the patcher. None of these conditions are transient, so
// callers never retry.
package errs

import (
	"github.com/pkg/errors"
)

type Kind int

const (
	Unknown Kind = iota
	UnsupportedContainerFormat
	UnsupportedCodec
	MalformedStream
	HeaderOrderViolation
	UnsupportedFeature
	ConsistencyCheckFailure
	InvalidTierTransition
	InvalidArguments
)

var kindNames = [...]string{
	"unknown error",
	"unsupported container format",
	"unsupported codec",
	"malformed stream",
	"header order violation",
	"unsupported feature",
	"consistency check failure",
	"invalid tier transition",
	"invalid arguments",
}

func (k Kind) String() string {
	if int(k) < 0 || int(k) >= len(kindNames) {
		return kindNames[Unknown]
	}
	return kindNames[k]
}

// Error carries a Kind alongside the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match on kind alone, e.g. errors.Is(err, &Error{Kind: MalformedStream}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Op == "" || t.Op == e.Op)
}

func New(kind Kind, op, msg string) error {
	return &Error{Kind: kind, Op: op, Err: errors.New(msg)}
}

func Newf(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: errors.Errorf(format, args...)}
}

// Wrap tags err with kind. A nil err stays nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the outermost *Error in the chain, or Unknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

func Is(err error, kind Kind) bool {
	return errors.Is(err, &Error{Kind: kind})
}
