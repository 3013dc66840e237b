package stores

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNoEvaluator   = errors.New("stores: evaluator not configured")
	ErrGuardRejected = errors.New("stores: guard rejected execution")
)

// Evaluate runs expr against the current state of store using the process
// evaluator. payload is exposed to the expression as "payload".
func (p *Process) Evaluate(store *Store, payload any, expr string) (any, error) {
	if expr == "" {
		return nil, wrapEvaluatorError(evaluatorEngineName(p.cfg.evaluator), errEmptyExpression)
	}
	if store == nil {
		return nil, fmt.Errorf("stores: evaluate %q: store is nil", expr)
	}
	evaluator := p.cfg.evaluator
	if evaluator == nil {
		return nil, ErrNoEvaluator
	}
	ctx := RuleContext{
		Snapshot: store.State(),
		Payload:  payload,
		Process:  p.id,
	}
	engine := evaluatorEngineName(evaluator)
	start := time.Now()
	value, evalErr := evaluator.Evaluate(ctx, expr)
	duration := time.Since(start)
	evalErr = wrapEvaluationError(engine, expr, ctx.label(), evalErr)
	p.cfg.evalLogger.LogEvaluation(EvaluatorLogEvent{
		Engine:   engine,
		Expr:     expr,
		Process:  ctx.label(),
		Duration: duration,
		Err:      evalErr,
	})
	if evalErr != nil {
		return nil, evalErr
	}
	return value, nil
}

// checkGuards evaluates every guard in registration order. A guard must
// produce a boolean; false stops the execution with ErrGuardRejected.
func (p *Process) checkGuards(store *Store, payload any) error {
	for _, guard := range p.cfg.guards {
		value, err := p.Evaluate(store, payload, guard)
		if err != nil {
			return err
		}
		allowed, ok := value.(bool)
		if !ok {
			return wrapEvaluationError(evaluatorEngineName(p.cfg.evaluator), guard, p.id,
				fmt.Errorf("guard must produce a bool, got %T", value))
		}
		if !allowed {
			return fmt.Errorf("%w: %q", ErrGuardRejected, guard)
		}
	}
	return nil
}

func resolveEvaluator(cfg processConfig) Evaluator {
	if cfg.evaluator != nil {
		return cfg.evaluator
	}
	return NewExprEvaluator(
		EvaluatorWithProgramCache(cfg.programCache),
		EvaluatorWithFunctions(cfg.functions),
	)
}

// evaluatorEngineName reports the engine of the built-in evaluators and
// "custom" for anything else.
func evaluatorEngineName(e Evaluator) string {
	if e == nil {
		return "unknown"
	}
	if named, ok := e.(interface{ Engine() string }); ok {
		return named.Engine()
	}
	return "custom"
}
