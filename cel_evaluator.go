package stores

import (
	"reflect"

	celgo "github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// NewCELEvaluator returns an evaluator backed by cel-go. Every state key is
// declared as a dynamic variable, so programs are compiled on their first
// evaluation. Registry functions are reached through call(name, [args]).
func NewCELEvaluator(opts ...EvaluatorOption) Evaluator {
	return newRuleEvaluator(celEngine{}, opts)
}

type celEngine struct{}

func (celEngine) name() string { return "cel" }

func (celEngine) boundAtCompile() bool { return true }

func (celEngine) compile(expression string, vars map[string]any, functions *FunctionRegistry) (any, error) {
	options := []celgo.EnvOption{celgo.Variable("now", celgo.TimestampType)}
	for name := range vars {
		if name != "now" {
			options = append(options, celgo.Variable(name, celgo.DynType))
		}
	}
	if functions != nil {
		options = append(options, celgo.Function("call",
			celgo.Overload("call_string_list",
				[]*celgo.Type{celgo.StringType, celgo.ListType(celgo.DynType)},
				celgo.DynType,
				celgo.BinaryBinding(celCall(functions)),
			),
		))
	}
	env, err := celgo.NewEnv(options...)
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	return env.Program(ast)
}

func (celEngine) run(program any, vars map[string]any, _ *FunctionRegistry) (any, error) {
	prg, ok := program.(celgo.Program)
	if !ok {
		return nil, unexpectedProgram("cel", program)
	}
	out, _, err := prg.Eval(vars)
	if err != nil {
		return nil, err
	}
	return out.Value(), nil
}

var anySliceType = reflect.TypeOf([]any{})

func celCall(functions *FunctionRegistry) func(ref.Val, ref.Val) ref.Val {
	return func(nameVal, argsVal ref.Val) ref.Val {
		name, ok := nameVal.Value().(string)
		if !ok {
			return types.NewErr("call: function name must be a string")
		}
		native, err := argsVal.ConvertToNative(anySliceType)
		if err != nil {
			return types.NewErr("call %s: %v", name, err)
		}
		args, _ := native.([]any)
		result, err := functions.Call(name, args...)
		if err != nil {
			return types.NewErr("%s", err.Error())
		}
		if result == nil {
			return types.NullValue
		}
		return types.DefaultTypeAdapter.NativeToValue(result)
	}
}
