// Package porm is a lightweight relational mapping layer over MySQL.
//
// The sub packages compile keyword-style filter terms into parameterized SQL
// (query/filter), render statement templates (query/sqlgen), manage per-slot
// connections, transactions and savepoints (database/api) and map declared
// models onto tables (model). This package holds the shared error taxonomy.
package porm

import (
	"errors"
	"fmt"
)

// Kind classifies a porm error.
type Kind int

const (
	// KindDatabase is a failure reported by the database or its driver.
	KindDatabase Kind = iota + 1
	// KindInterface is lifecycle misuse: an uninitialized, already open or closed facade.
	KindInterface
	// KindOperational means the database refused an operation.
	KindOperational
	// KindValidation is a value failing field or filter validation.
	KindValidation
	// KindEmpty is a required parameter that was empty or nil.
	KindEmpty
	// KindNotSupported is a feature the layer does not offer.
	KindNotSupported
	// KindParam is a malformed field or schema declaration.
	KindParam
)

// Sentinel errors, one per Kind. Use errors.Is against these.
var (
	ErrDatabase     = errors.New("database error")
	ErrInterface    = errors.New("interface error")
	ErrOperational  = errors.New("operational error")
	ErrValidation   = errors.New("validation error")
	ErrEmpty        = errors.New("empty error")
	ErrNotSupported = errors.New("not supported")
	ErrParam        = errors.New("invalid parameter")
)

type kindInfo struct {
	sentinel error
	subCode  int
	status   string
}

var kinds = map[Kind]kindInfo{
	KindDatabase:     {ErrDatabase, 10503, "Porm Database Error"},
	KindInterface:    {ErrInterface, 11404, "Porm Interface Error"},
	KindOperational:  {ErrOperational, 10403, "Porm Operational Error"},
	KindValidation:   {ErrValidation, 10503, "Porm Validation Error"},
	KindEmpty:        {ErrEmpty, 10404, "Porm Empty Error"},
	KindNotSupported: {ErrNotSupported, 12404, "Porm Not Supported Error"},
	KindParam:        {ErrParam, 10422, "Porm Invalid Parameter Error"},
}

// String returns the status text of the kind.
func (k Kind) String() string {
	if info, ok := kinds[k]; ok {
		return info.status
	}
	return "Porm Error"
}

// Error is the concrete error returned by porm packages.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	SubCode int
	Status  string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Cause != nil {
		if msg == "" {
			msg = e.Cause.Error()
		} else {
			msg = fmt.Sprintf("%s: %v", msg, e.Cause)
		}
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	info, ok := kinds[e.Kind]
	return ok && target == info.sentinel
}

// NewError creates an Error of the given kind.
func NewError(kind Kind, op, format string, args ...any) *Error {
	info := kinds[kind]
	return &Error{
		Kind:    kind,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
		SubCode: info.subCode,
		Status:  info.status,
	}
}

// Wrap wraps cause into an Error of the given kind. A nil cause returns nil.
func Wrap(kind Kind, op string, cause error) error {
	if cause == nil {
		return nil
	}
	info := kinds[kind]
	return &Error{
		Kind:    kind,
		Op:      op,
		SubCode: info.subCode,
		Status:  info.status,
		Cause:   cause,
	}
}

// KindOf returns the kind of the first porm Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsInterface reports whether err is an interface error.
func IsInterface(err error) bool {
	return errors.Is(err, ErrInterface)
}

// IsOperational reports whether err is an operational error.
func IsOperational(err error) bool {
	return errors.Is(err, ErrOperational)
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsEmpty reports whether err is an empty error.
func IsEmpty(err error) bool {
	return errors.Is(err, ErrEmpty)
}
