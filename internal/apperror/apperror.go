// Package apperror defines the error kinds surfaced by ingestion. Each error
// keeps the stack of the place it was raised so it can be logged once at the
// top of the batch.
package apperror

import (
	"errors"
	"fmt"
	goerrors "github.com/go-errors/errors"
)

type Kind string

const (
	KindTransientFetch  Kind = "TRANSIENT_FETCH"
	KindStoreWrite      Kind = "STORE_WRITE"
	KindStoreConnection Kind = "STORE_CONNECTION"
	KindInvalidInput    Kind = "INVALID_INPUT"
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
	Stack   []byte
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, message string, err error) *Error {
	var stack []byte
	if err != nil {
		var stackErr *goerrors.Error
		if errors.As(err, &stackErr) {
			stack = stackErr.Stack()
		} else {
			stack = goerrors.Wrap(err, 2).Stack()
		}
	} else {
		stack = goerrors.New(message).Stack()
	}

	return &Error{
		Kind:    kind,
		Message: message,
		Err:     err,
		Stack:   stack,
	}
}

func TransientFetch(message string, err error) *Error {
	return New(KindTransientFetch, message, err)
}

func StoreWrite(message string, err error) *Error {
	return New(KindStoreWrite, message, err)
}

func StoreConnection(message string, err error) *Error {
	return New(KindStoreConnection, message, err)
}

func InvalidInput(message string, err error) *Error {
	return New(KindInvalidInput, message, err)
}

// IsKind reports whether any error in err's chain is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
