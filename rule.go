package stores

import (
	"errors"
	"fmt"
	"time"
)

// RuleContext is what a rule is evaluated against. Top-level keys of the
// snapshot are exposed as variables; now, args, metadata, payload, state and
// call always refer to the context itself and shadow state keys of the same
// name.
type RuleContext struct {
	Snapshot any
	Payload  any
	Now      *time.Time
	Args     map[string]any
	Metadata map[string]any
	Process  string
}

var reservedRuleNames = map[string]struct{}{
	"now": {}, "args": {}, "metadata": {}, "payload": {}, "state": {}, "call": {},
}

// resolved fills Now, Args and Metadata when they are unset.
func (ctx RuleContext) resolved() RuleContext {
	if ctx.Now == nil {
		now := time.Now()
		ctx.Now = &now
	}
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	if ctx.Metadata == nil {
		ctx.Metadata = map[string]any{}
	}
	return ctx
}

func (ctx RuleContext) state() map[string]any {
	if state, ok := ctx.Snapshot.(map[string]any); ok && state != nil {
		return state
	}
	return map[string]any{}
}

func (ctx RuleContext) label() string {
	if ctx.Process == "" {
		return "unknown"
	}
	return ctx.Process
}

// variables flattens the context into the bindings every engine sees.
func (ctx RuleContext) variables() map[string]any {
	ctx = ctx.resolved()
	state := ctx.state()
	vars := make(map[string]any, len(state)+len(reservedRuleNames))
	for key, value := range state {
		if _, reserved := reservedRuleNames[key]; !reserved {
			vars[key] = value
		}
	}
	vars["now"] = *ctx.Now
	vars["args"] = ctx.Args
	vars["metadata"] = ctx.Metadata
	vars["payload"] = ctx.Payload
	vars["state"] = state
	return vars
}

// Evaluator runs expressions against a rule context.
type Evaluator interface {
	Evaluate(ctx RuleContext, expr string) (any, error)
	Compile(expr string, opts ...CompileOption) (CompiledRule, error)
}

// CompiledRule is an expression prepared once and evaluated many times.
type CompiledRule interface {
	Evaluate(ctx RuleContext) (any, error)
}

// CompileOption configures Compile.
type CompileOption func(*CompileConfig)

// CompileConfig holds the settings of one compiled rule.
type CompileConfig struct {
	// Label names the rule in errors and logs when the context carries no
	// process name.
	Label string
}

// WithRuleLabel names a compiled rule.
func WithRuleLabel(label string) CompileOption {
	return func(cfg *CompileConfig) {
		cfg.Label = label
	}
}

func compileSettings(opts []CompileOption) CompileConfig {
	cfg := CompileConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

var errEmptyExpression = errors.New("expression must not be empty")

// ruleEngine is one expression language. Programs are opaque to the
// evaluator and only handed back to the engine that produced them.
type ruleEngine interface {
	name() string
	// boundAtCompile reports whether compile needs the variables of the
	// evaluation. Such engines compile on first evaluation.
	boundAtCompile() bool
	compile(expression string, vars map[string]any, functions *FunctionRegistry) (any, error)
	run(program any, vars map[string]any, functions *FunctionRegistry) (any, error)
}

// EvaluatorOption configures the built-in evaluators.
type EvaluatorOption func(*ruleEvaluator)

// EvaluatorWithProgramCache keeps compiled programs in cache. Keys are
// prefixed with the engine name so one cache can serve several engines.
func EvaluatorWithProgramCache(cache ProgramCache) EvaluatorOption {
	return func(e *ruleEvaluator) {
		e.cache = cache
	}
}

// EvaluatorWithFunctions exposes a copy of registry to expressions.
func EvaluatorWithFunctions(registry *FunctionRegistry) EvaluatorOption {
	return func(e *ruleEvaluator) {
		e.functions = registry.Clone()
	}
}

type ruleEvaluator struct {
	engine    ruleEngine
	cache     ProgramCache
	functions *FunctionRegistry
}

func newRuleEvaluator(engine ruleEngine, opts []EvaluatorOption) *ruleEvaluator {
	e := &ruleEvaluator{engine: engine}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Engine names the expression language, as reported in logs and errors.
func (e *ruleEvaluator) Engine() string {
	return e.engine.name()
}

func (e *ruleEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	if expression == "" {
		return nil, wrapEvaluatorError(e.Engine(), errEmptyExpression)
	}
	vars := ctx.variables()
	program, err := e.program(expression, vars)
	if err != nil {
		return nil, wrapEvaluationError(e.Engine(), expression, ctx.label(), err)
	}
	return e.execute(ctx, expression, program, vars)
}

func (e *ruleEvaluator) Compile(expression string, opts ...CompileOption) (CompiledRule, error) {
	if expression == "" {
		return nil, wrapEvaluatorError(e.Engine(), errEmptyExpression)
	}
	cfg := compileSettings(opts)
	rule := &compiledRule{evaluator: e, expression: expression, label: cfg.Label}
	if !e.engine.boundAtCompile() {
		program, err := e.program(expression, nil)
		if err != nil {
			return nil, wrapEvaluationError(e.Engine(), expression, cfg.Label, err)
		}
		rule.program = program
	}
	return rule, nil
}

// program returns the cached program for expression or compiles a new one.
func (e *ruleEvaluator) program(expression string, vars map[string]any) (any, error) {
	key := e.Engine() + ":" + expression
	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			return cached, nil
		}
	}
	program, err := e.engine.compile(expression, vars, e.functions)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		e.cache.Set(key, program)
	}
	return program, nil
}

func (e *ruleEvaluator) execute(ctx RuleContext, expression string, program any, vars map[string]any) (any, error) {
	out, err := e.engine.run(program, vars, e.functions)
	if err != nil {
		return nil, wrapEvaluationError(e.Engine(), expression, ctx.label(), err)
	}
	return out, nil
}

type compiledRule struct {
	evaluator  *ruleEvaluator
	expression string
	label      string
	program    any
}

func (r *compiledRule) Evaluate(ctx RuleContext) (any, error) {
	if ctx.Process == "" {
		ctx.Process = r.label
	}
	if r.program == nil {
		return r.evaluator.Evaluate(ctx, r.expression)
	}
	return r.evaluator.execute(ctx, r.expression, r.program, ctx.variables())
}

func unexpectedProgram(engine string, program any) error {
	return fmt.Errorf("%s: unexpected program type %T", engine, program)
}
