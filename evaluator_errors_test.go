package stores

import (
	"errors"
	"testing"
)

func TestWrapEvaluationError(t *testing.T) {
	cause := errors.New("undefined: limit")

	err := wrapEvaluationError("expr", "count < limit", "increment", cause)
	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) {
		t.Fatalf("expected EvaluationError, got %T", err)
	}
	want := EvaluationError{Engine: "expr", Expr: "count < limit", Process: "increment", Err: cause}
	if *evalErr != want {
		t.Fatalf("unexpected metadata %+v", evalErr)
	}
	if got := err.Error(); got != `stores: expr evaluator expr="count < limit" process=increment: undefined: limit` {
		t.Fatalf("unexpected message %q", got)
	}
	if wrapEvaluationError("expr", "x", "p", nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
}

func TestWrapEvaluationErrorFillsBlanksOnly(t *testing.T) {
	cause := errors.New("compile failure")
	existing := &EvaluationError{Engine: "cel", Err: cause}

	err := wrapEvaluationError("expr", "ready", "reset", existing)

	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to unwrap")
	}
	want := EvaluationError{Engine: "cel", Expr: "ready", Process: "reset", Err: cause}
	if *existing != want {
		t.Fatalf("unexpected metadata %+v", existing)
	}
	if got := (&EvaluationError{Engine: "js", Err: cause}).Error(); got != "stores: js evaluator expr=<empty> process=: compile failure" {
		t.Fatalf("unexpected empty expression message %q", got)
	}
}

func TestWrapEvaluatorError(t *testing.T) {
	prefixed := errors.New("stores: already described")
	if got := wrapEvaluatorError("expr", prefixed); got != prefixed {
		t.Fatalf("expected prefixed error to pass through, got %v", got)
	}
	evalErr := &EvaluationError{Engine: "cel", Err: errors.New("x")}
	if got := wrapEvaluatorError("expr", evalErr); got != error(evalErr) {
		t.Fatalf("expected EvaluationError to pass through, got %v", got)
	}
	if got := wrapEvaluatorError("expr", errEmptyExpression); !errors.Is(got, errEmptyExpression) || got.Error() != "stores: expr evaluator: expression must not be empty" {
		t.Fatalf("unexpected wrapped error %v", got)
	}
}
