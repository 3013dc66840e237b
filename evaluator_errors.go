package stores

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// EvaluationError reports a failed rule together with the engine that ran
// it and the process it guarded or computed for.
type EvaluationError struct {
	Engine  string
	Expr    string
	Process string
	Err     error
}

func (e *EvaluationError) Error() string {
	expr := "<empty>"
	if e.Expr != "" {
		expr = strconv.Quote(e.Expr)
	}
	return fmt.Sprintf("stores: %s evaluator expr=%s process=%s: %v", e.Engine, expr, e.Process, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}

// wrapEvaluatorError prefixes err with the engine name unless it already
// carries a stores prefix or evaluation metadata.
func wrapEvaluatorError(engine string, err error) error {
	var evalErr *EvaluationError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &evalErr), strings.HasPrefix(err.Error(), "stores:"):
		return err
	}
	return fmt.Errorf("stores: %s evaluator: %w", engine, err)
}

// wrapEvaluationError attaches evaluation metadata to err. An existing
// EvaluationError keeps what it has and only gets its blanks filled.
func wrapEvaluationError(engine, expr, process string, err error) error {
	if err == nil {
		return nil
	}
	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) {
		return &EvaluationError{Engine: engine, Expr: expr, Process: process, Err: err}
	}
	fillBlank(&evalErr.Engine, engine)
	fillBlank(&evalErr.Expr, expr)
	fillBlank(&evalErr.Process, process)
	return evalErr
}

func fillBlank(field *string, value string) {
	if *field == "" {
		*field = value
	}
}
