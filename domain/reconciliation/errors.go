package reconciliation

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// The kinds of validation failures. A ProtocolError matches exactly one of
// them through errors.Is.
var (
	// ErrTransport means the oracle could not be reached or did not answer in
	// time. The invocation may be retried.
	ErrTransport = errors.New("oracle transport failure")

	// ErrInconsistentData means the oracle answered with a response that
	// violates its documented shape. It points at a misbehaving oracle.
	ErrInconsistentData = errors.New("inconsistent oracle data")

	// ErrStorage means reading or writing the tracked item store failed
	ErrStorage = errors.New("tracked item storage failure")

	// ErrShutdown means no oracle connection could be obtained
	ErrShutdown = errors.New("no oracle connection")
)

// ProtocolError is the error returned by Engine.Validate. It carries the
// operation id of the failed invocation.
type ProtocolError struct {
	OperationID uint64
	Kind        error
	Err         error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("validation %d failed: %s: %s", e.OperationID, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the underlying cause to errors.Is and
// errors.As
func (e *ProtocolError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// IsRetryable returns whether re-invoking the engine may succeed
func (e *ProtocolError) IsRetryable() bool {
	return e.Kind == ErrTransport
}

// IsTimeout returns whether an oracle call deadline expired
func (e *ProtocolError) IsTimeout() bool {
	return e.Kind == ErrTransport && errors.Is(e.Err, context.DeadlineExceeded)
}

func newProtocolError(operationID uint64, kind error, err error) *ProtocolError {
	return &ProtocolError{OperationID: operationID, Kind: kind, Err: err}
}

// inconsistentData describes a malformed response. Its kind comes from the
// ProtocolError it ends up in.
func inconsistentData(format string, args ...interface{}) error {
	return errors.Errorf(format, args...)
}

// IsRetryable returns whether err is a retryable validation failure
func IsRetryable(err error) bool {
	var protocolErr *ProtocolError
	return errors.As(err, &protocolErr) && protocolErr.IsRetryable()
}
