package oracle

import (
	"context"

	"github.com/pkg/errors"
)

// TransportError is returned when the oracle could not be reached, refused
// the call or did not answer before the deadline. Transport errors are
// retryable.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "oracle transport error: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError wraps err in a TransportError
func NewTransportError(err error) error {
	return &TransportError{Err: err}
}

// IsTransportError returns whether err is, wraps, or is caused by a
// transport failure. A call whose context expired or was canceled did not
// complete and counts as a transport failure.
func IsTransportError(err error) bool {
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

// IsTimeout returns whether err is caused by a call deadline
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

// MalformedResponseError is returned when the oracle answered with data
// that cannot be decoded. Retrying the same call will not help.
type MalformedResponseError struct {
	Err error
}

func (e *MalformedResponseError) Error() string {
	return "malformed oracle response: " + e.Err.Error()
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// NewMalformedResponseError wraps err in a MalformedResponseError
func NewMalformedResponseError(err error) error {
	return &MalformedResponseError{Err: err}
}

// IsMalformedResponse returns whether err is or wraps a
// MalformedResponseError
func IsMalformedResponse(err error) bool {
	var malformedErr *MalformedResponseError
	return errors.As(err, &malformedErr)
}
