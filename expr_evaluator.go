package stores

import (
	"fmt"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
)

// NewExprEvaluator returns the default evaluator, backed by expr-lang/expr.
// Undefined variables evaluate to nil instead of failing compilation. State
// keys take precedence over expr builtins of the same name (count, len, max),
// so programs are compiled on their first evaluation.
func NewExprEvaluator(opts ...EvaluatorOption) Evaluator {
	return newRuleEvaluator(exprEngine{}, opts)
}

type exprEngine struct{}

func (exprEngine) name() string { return "expr" }

func (exprEngine) boundAtCompile() bool { return true }

func (exprEngine) compile(expression string, vars map[string]any, functions *FunctionRegistry) (any, error) {
	// Only the names are declared. Nil values leave every variable untyped,
	// which keeps a cached program valid when a value changes type.
	names := make(map[string]any, len(vars))
	for name := range vars {
		names[name] = nil
	}
	options := []exprlang.Option{
		exprlang.Env(names),
		exprlang.AllowUndefinedVariables(),
	}
	if functions != nil {
		options = append(options, exprlang.Function("call", func(params ...any) (any, error) {
			if len(params) == 0 {
				return nil, fmt.Errorf("call: missing function name")
			}
			name, ok := params[0].(string)
			if !ok {
				return nil, fmt.Errorf("call: function name must be a string, got %T", params[0])
			}
			return functions.Call(name, params[1:]...)
		}))
		for _, name := range functions.Names() {
			name := name
			options = append(options, exprlang.Function(name, func(params ...any) (any, error) {
				return functions.Call(name, params...)
			}))
		}
	}
	return exprlang.Compile(expression, options...)
}

func (exprEngine) run(program any, vars map[string]any, _ *FunctionRegistry) (any, error) {
	compiled, ok := program.(*exprvm.Program)
	if !ok {
		return nil, unexpectedProgram("expr", program)
	}
	return exprlang.Run(compiled, vars)
}
