package harness

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/akshayaggarwal99/seobridge/internal/seoapi"
)

// Kind is the category of a failed invocation.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindRemote
	KindUnexpected
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindRemote:
		return "remote"
	case KindUnexpected:
		return "unexpected"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Prefix is the label put in front of the message returned to the caller.
func (k Kind) Prefix() string {
	switch k {
	case KindValidation:
		return "Validation error"
	case KindRemote:
		return "API error"
	default:
		return "Unexpected error"
	}
}

// Failure is a classified invocation error. Only this package implements it:
// every failure is a *ValidationError, a *RemoteFailure or an
// *UnexpectedFailure.
type Failure interface {
	error
	Kind() Kind
	failure()
}

// ValidationError rejects the arguments of an invocation. Validators return it;
// it is also accepted from Invoke.
type ValidationError struct {
	// Field is the offending argument, if there is one
	Field string

	// Message describes what is wrong with it
	Message string
}

// Invalid returns a ValidationError for field.
func Invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Kind() Kind { return KindValidation }
func (e *ValidationError) failure()   {}

// RemoteFailure is a failed API call.
type RemoteFailure struct {
	Err error
}

func (e *RemoteFailure) Error() string {
	if e.Err == nil {
		return "remote call failed"
	}
	return e.Err.Error()
}

func (e *RemoteFailure) Unwrap() error { return e.Err }
func (e *RemoteFailure) Kind() Kind    { return KindRemote }
func (e *RemoteFailure) failure()      {}

// UnexpectedFailure is anything else, including panics.
type UnexpectedFailure struct {
	Err error

	// Panic holds the recovered value when the failure was a panic
	Panic any
}

func (e *UnexpectedFailure) Error() string {
	if e.Err == nil {
		return "unknown failure"
	}
	return e.Err.Error()
}

func (e *UnexpectedFailure) Unwrap() error { return e.Err }
func (e *UnexpectedFailure) Kind() Kind    { return KindUnexpected }
func (e *UnexpectedFailure) failure()      {}

// Classify maps err onto a Failure. An error that already is (or wraps) a
// Failure keeps its kind; a *seoapi.RemoteError is remote; everything else is
// unexpected, including a nil pointer passed as a non-nil error. Classify
// returns nil for a nil error.
func Classify(err error) Failure {
	if err == nil {
		return nil
	}
	if isNilPointer(err) {
		return &UnexpectedFailure{Err: fmt.Errorf("nil %T returned as error", err)}
	}

	var f Failure
	if errors.As(err, &f) && !isNilPointer(f) {
		switch f.(type) {
		case *ValidationError, *RemoteFailure, *UnexpectedFailure:
			return f
		}
	}

	var remote *seoapi.RemoteError
	if errors.As(err, &remote) && remote != nil {
		return &RemoteFailure{Err: err}
	}
	return &UnexpectedFailure{Err: err}
}

func isNilPointer(err error) bool {
	v := reflect.ValueOf(err)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
