package stores

import (
	"context"
	"fmt"
	"time"
)

// Command produces the patch for one step of a process. It runs after the
// patches of the previous commands have been applied.
type Command func(ctx context.Context, req CommandRequest) ([]Operation, error)

// CommandRequest gives a command read access to the bound store and the
// execution payload.
type CommandRequest struct {
	store     *Store
	Payload   any
	ProcessID string
}

// Get returns the value at p, or nil when absent.
func (r CommandRequest) Get(p Pointer) any {
	return r.store.Get(p)
}

// Lookup returns the value at p and whether it exists.
func (r CommandRequest) Lookup(p Pointer) (any, bool, error) {
	return r.store.Lookup(p)
}

// Path builds a pointer from strings, ints and pointers.
func (r CommandRequest) Path(segments ...any) (Pointer, error) {
	return buildPath(segments...)
}

// MustPath is Path that panics on error.
func (r CommandRequest) MustPath(segments ...any) Pointer {
	return r.store.MustPath(segments...)
}

// At addresses index within the sequence at p.
func (r CommandRequest) At(p Pointer, index int) Pointer {
	return r.store.At(p, index)
}

// Snapshot returns the current root. Treat it as read-only.
func (r CommandRequest) Snapshot() map[string]any {
	return r.store.State()
}

// CommandResult is delivered by asynchronous commands.
type CommandResult struct {
	Operations []Operation
	Err        error
}

// Deferred adapts a command that delivers its patch on a channel. The
// executor waits for the first result, a closed channel (empty patch) or ctx
// cancellation.
func Deferred(fn func(ctx context.Context, req CommandRequest) <-chan CommandResult) Command {
	return func(ctx context.Context, req CommandRequest) ([]Operation, error) {
		ch := fn(ctx, req)
		if ch == nil {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res, ok := <-ch:
			if !ok {
				return nil, nil
			}
			return res.Operations, res.Err
		}
	}
}

// Ops returns a command that always emits ops.
func Ops(ops ...Operation) Command {
	patch := append([]Operation(nil), ops...)
	return func(context.Context, CommandRequest) ([]Operation, error) {
		return patch, nil
	}
}

// ComputeCommand evaluates expression against the store snapshot and the
// payload and writes the result to target: Replace when a value exists,
// Add otherwise.
func ComputeCommand(evaluator Evaluator, target Pointer, expression string) Command {
	return func(_ context.Context, req CommandRequest) ([]Operation, error) {
		if evaluator == nil {
			return nil, ErrNoEvaluator
		}
		if target.IsZero() {
			return nil, fmt.Errorf("%w: compute target is the root", ErrInvalidPath)
		}
		now := time.Now()
		ctx := RuleContext{
			Snapshot: req.Snapshot(),
			Payload:  req.Payload,
			Now:      &now,
			Process:  req.ProcessID,
		}
		value, err := evaluator.Evaluate(ctx, expression)
		if err != nil {
			return nil, wrapEvaluationError(evaluatorEngineName(evaluator), expression, ctx.label(), err)
		}
		if _, ok, _ := req.Lookup(target); ok {
			return []Operation{Replace(target, value)}, nil
		}
		return []Operation{Add(target, value)}, nil
	}
}
