//go:build js_eval

package stores

import (
	"github.com/dop251/goja"
)

// NewJSEvaluator returns an evaluator backed by goja. Each evaluation gets a
// fresh runtime; compiled programs are shared.
func NewJSEvaluator(opts ...EvaluatorOption) Evaluator {
	return newRuleEvaluator(jsEngine{}, opts)
}

type jsEngine struct{}

func (jsEngine) name() string { return "js" }

func (jsEngine) boundAtCompile() bool { return false }

func (jsEngine) compile(expression string, _ map[string]any, _ *FunctionRegistry) (any, error) {
	return goja.Compile("", "(function(){ return ("+expression+"); })()", false)
}

func (jsEngine) run(program any, vars map[string]any, functions *FunctionRegistry) (any, error) {
	compiled, ok := program.(*goja.Program)
	if !ok {
		return nil, unexpectedProgram("js", program)
	}
	vm := goja.New()
	for name, value := range vars {
		_ = vm.Set(name, value)
	}
	if functions != nil {
		_ = vm.Set("call", func(name string, args ...any) (any, error) {
			return functions.Call(name, args...)
		})
		for _, name := range functions.Names() {
			name := name
			_ = vm.Set(name, func(args ...any) (any, error) {
				return functions.Call(name, args...)
			})
		}
	}
	value, err := vm.RunProgram(compiled)
	if err != nil {
		return nil, err
	}
	return value.Export(), nil
}
