package stores

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPath indicates a root pointer, a missing parent container or
	// an index that does not fit the addressed sequence.
	ErrInvalidPath = errors.New("stores: invalid path")
	// ErrRootAccessDenied is returned when the root is requested through the
	// zero pointer.
	ErrRootAccessDenied = errors.New("stores: access to the root is not supported")
	// ErrReplaceOfMissingPath indicates a replace against an absent value.
	ErrReplaceOfMissingPath = errors.New("stores: cannot replace a value that does not exist")
	// ErrMissingFrom indicates a copy or move operation without a from path.
	ErrMissingFrom = errors.New("stores: operation requires a from path")
	// ErrMissingSource indicates copy or move against an absent from value.
	ErrMissingSource = errors.New("stores: no value exists at the from path")
	// ErrTestFailed indicates a test operation whose value did not match.
	ErrTestFailed = errors.New("stores: test operation failure")
	// ErrUnknownOperation indicates an operation kind outside the algebra.
	ErrUnknownOperation = errors.New("stores: unknown operation")
	// ErrNilStore is returned when an executor or manager receives no store.
	ErrNilStore = errors.New("stores: store is nil")
)

// OperationError captures the operation that failed alongside the cause.
type OperationError struct {
	Op   Kind
	Path string
	From string
	Err  error
}

func (e *OperationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.From != "" {
		return fmt.Sprintf("stores: %s path=%q from=%q: %v", e.Op, e.Path, e.From, e.Err)
	}
	return fmt.Sprintf("stores: %s path=%q: %v", e.Op, e.Path, e.Err)
}

func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func operationError(op Operation, err error) error {
	if err == nil {
		return nil
	}
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return err
	}
	out := &OperationError{Op: op.Op, Path: op.Path.String(), Err: err}
	if op.Op.usesFrom() {
		out.From = op.From.String()
	}
	return out
}
