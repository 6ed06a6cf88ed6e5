// Package apperr classifies failures of the fulfillment flows so that
// callers decide between retry, park and abort on a single value.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindConfiguration     Kind = "configuration"
	KindValidation        Kind = "validation"
	KindProviderTransient Kind = "provider_transient"
	KindProviderPending   Kind = "provider_pending"
	KindProviderRejected  Kind = "provider_rejected"
	KindDelivery          Kind = "delivery_failure"
	KindUnexpected        Kind = "unexpected"
)

// ErrPending marks a well-formed "not ready yet" answer from the provider.
var ErrPending = errors.New("not ready yet")

// Error carries the kind of a failure and the operation that produced it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// E builds an *Error. A nil err for KindProviderPending is replaced by ErrPending.
func E(kind Kind, op string, err error) error {
	if err == nil && kind == KindProviderPending {
		err = ErrPending
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Pending is shorthand for E(KindProviderPending, op, ErrPending).
func Pending(op string) error {
	return E(KindProviderPending, op, ErrPending)
}

func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, ErrPending):
		return KindProviderPending
	case errors.Is(err, context.DeadlineExceeded):
		return KindProviderTransient
	default:
		return KindUnexpected
	}
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Retryable is true for failures the state machine polls through.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindProviderTransient, KindProviderPending:
		return true
	default:
		return false
	}
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case "":
		return http.StatusOK
	case KindValidation:
		return http.StatusBadRequest
	case KindProviderRejected:
		return http.StatusUnprocessableEntity
	case KindProviderTransient, KindProviderPending:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
