package stores

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

var evaluatorFactories = []struct {
	name string
	ctor func(...EvaluatorOption) Evaluator
}{
	{name: "expr", ctor: NewExprEvaluator},
	{name: "cel", ctor: NewCELEvaluator},
	{name: "js", ctor: NewJSEvaluator},
}

// buildEvaluator returns nil when the engine is not compiled in.
func buildEvaluator(ctor func(...EvaluatorOption) Evaluator, cache ProgramCache, registry *FunctionRegistry) Evaluator {
	return ctor(EvaluatorWithProgramCache(cache), EvaluatorWithFunctions(registry))
}

type guardFixture struct {
	Description string         `json:"description"`
	State       map[string]any `json:"state"`
	Cases       []struct {
		Name    string `json:"name"`
		Rule    string `json:"rule"`
		Payload any    `json:"payload"`
		Expect  bool   `json:"expect"`
	} `json:"cases"`
}

func TestGuardsFixtureAcrossEvaluators(t *testing.T) {
	fx := loadFixture[guardFixture](t, "guards.json")

	for _, factory := range evaluatorFactories {
		factory := factory
		t.Run(factory.name, func(t *testing.T) {
			evaluator := buildEvaluator(factory.ctor, nil, nil)
			if evaluator == nil {
				t.Skipf("%s evaluator not available in this build", factory.name)
			}
			store := NewStore(WithInitialState(fx.State))
			proc := NewProcess("guards", nil, WithEvaluator(evaluator))

			for _, tc := range fx.Cases {
				tc := tc
				t.Run(tc.Name, func(t *testing.T) {
					value, err := proc.Evaluate(store, tc.Payload, tc.Rule)
					if err != nil {
						t.Fatalf("evaluate %q: %v", tc.Rule, err)
					}
					got, ok := value.(bool)
					if !ok {
						t.Fatalf("expected bool, got %T", value)
					}
					if got != tc.Expect {
						t.Fatalf("%q: expected %v, got %v", tc.Rule, tc.Expect, got)
					}
				})
			}
		})
	}
}

func TestEvaluatorProgramCache(t *testing.T) {
	for _, factory := range evaluatorFactories {
		factory := factory
		t.Run(factory.name, func(t *testing.T) {
			cache := &fakeProgramCache{}
			evaluator := buildEvaluator(factory.ctor, cache, nil)
			if evaluator == nil {
				t.Skipf("%s evaluator not available in this build", factory.name)
			}
			ctx := RuleContext{Snapshot: map[string]any{"count": 1.0}}
			for i := 0; i < 3; i++ {
				if _, err := evaluator.Evaluate(ctx, "count > 0.0"); err != nil {
					t.Fatalf("iteration %d: %v", i, err)
				}
			}
			if cache.misses != 1 || cache.hits != 2 {
				t.Fatalf("expected 1 miss and 2 hits, got %d misses %d hits", cache.misses, cache.hits)
			}
		})
	}
}

func TestEvaluatorCompiledRules(t *testing.T) {
	for _, factory := range evaluatorFactories {
		factory := factory
		t.Run(factory.name, func(t *testing.T) {
			evaluator := buildEvaluator(factory.ctor, nil, nil)
			if evaluator == nil {
				t.Skipf("%s evaluator not available in this build", factory.name)
			}
			rule, err := evaluator.Compile("count >= 2.0")
			if err != nil {
				t.Fatalf("compile: %v", err)
			}
			for count, want := range map[float64]bool{1: false, 2: true, 3: true} {
				value, err := rule.Evaluate(RuleContext{Snapshot: map[string]any{"count": count}})
				if err != nil {
					t.Fatalf("evaluate count=%v: %v", count, err)
				}
				if value != want {
					t.Fatalf("count=%v: expected %v, got %v", count, want, value)
				}
			}
			if _, err := evaluator.Compile(""); err == nil {
				t.Fatalf("expected error compiling an empty expression")
			}
		})
	}
}

func TestCompiledRuleLabel(t *testing.T) {
	for _, factory := range evaluatorFactories {
		factory := factory
		t.Run(factory.name, func(t *testing.T) {
			evaluator := buildEvaluator(factory.ctor, nil, nil)
			if evaluator == nil {
				t.Skipf("%s evaluator not available in this build", factory.name)
			}
			rule, err := evaluator.Compile("count +", WithRuleLabel("limit"))
			if err == nil {
				_, err = rule.Evaluate(RuleContext{Snapshot: map[string]any{"count": 1}})
			}
			var evalErr *EvaluationError
			if !errors.As(err, &evalErr) {
				t.Fatalf("expected EvaluationError, got %T %v", err, err)
			}
			if evalErr.Process != "limit" || evalErr.Engine != factory.name {
				t.Fatalf("unexpected metadata %+v", evalErr)
			}
		})
	}
}

func TestCustomFunctionsAcrossEvaluators(t *testing.T) {
	rules := map[string][]string{
		"expr": {`double(count) == 4.0`, `call("double", count) == 4.0`},
		"cel":  {`call("double", [count]) == 4.0`},
		"js":   {`double(count) === 4`, `call("double", count) === 4`},
	}

	for _, factory := range evaluatorFactories {
		factory := factory
		t.Run(factory.name, func(t *testing.T) {
			registry := NewFunctionRegistry()
			if err := registry.Register("double", func(args ...any) (any, error) {
				if len(args) != 1 {
					return nil, fmt.Errorf("double expects 1 arg, got %d", len(args))
				}
				n, err := toFloat(args[0])
				if err != nil {
					return nil, err
				}
				return n * 2, nil
			}); err != nil {
				t.Fatalf("register double: %v", err)
			}
			evaluator := buildEvaluator(factory.ctor, nil, registry)
			if evaluator == nil {
				t.Skipf("%s evaluator not available in this build", factory.name)
			}
			ctx := RuleContext{Snapshot: map[string]any{"count": 2.0}}
			for _, rule := range rules[factory.name] {
				value, err := evaluator.Evaluate(ctx, rule)
				if err != nil {
					t.Fatalf("evaluate %q: %v", rule, err)
				}
				if value != true {
					t.Fatalf("%q: expected true, got %v", rule, value)
				}
			}
		})
	}
}

func TestFunctionRegistry(t *testing.T) {
	registry := NewFunctionRegistry()
	noop := func(...any) (any, error) { return nil, nil }
	if err := registry.Register("Lookup", noop); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Register("lookup", noop); !errors.Is(err, ErrFunctionExists) {
		t.Fatalf("expected ErrFunctionExists, got %v", err)
	}
	for _, name := range []string{"", "two words", "9lives", "payload", "call"} {
		if err := registry.Register(name, noop); err == nil {
			t.Fatalf("expected %q to be rejected", name)
		}
	}
	if err := registry.Register("nil", nil); err == nil {
		t.Fatalf("expected nil function to fail")
	}
	if _, err := registry.Call("missing"); !errors.Is(err, ErrFunctionNotFound) {
		t.Fatalf("expected ErrFunctionNotFound, got %v", err)
	}
	var empty *FunctionRegistry
	if _, err := empty.Call("lookup"); !errors.Is(err, ErrFunctionNotFound) {
		t.Fatalf("expected ErrFunctionNotFound from nil registry, got %v", err)
	}
	clone := registry.Clone()
	if err := clone.Register("extra", noop); err != nil {
		t.Fatalf("register on clone: %v", err)
	}
	if diff := cmp.Diff([]string{"lookup"}, registry.Names()); diff != "" {
		t.Fatalf("registry names mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"extra", "lookup"}, clone.Names()); diff != "" {
		t.Fatalf("clone names mismatch (-want +got):\n%s", diff)
	}
}

type staticEvaluator struct{}

func (staticEvaluator) Evaluate(RuleContext, string) (any, error) { return true, nil }

func (staticEvaluator) Compile(string, ...CompileOption) (CompiledRule, error) { return nil, nil }

func TestEvaluatorEngineNames(t *testing.T) {
	cases := map[string]Evaluator{
		"expr":   NewExprEvaluator(),
		"cel":    NewCELEvaluator(),
		"custom": staticEvaluator{},
	}
	for want, evaluator := range cases {
		if got := evaluatorEngineName(evaluator); got != want {
			t.Fatalf("expected %q, got %q", want, got)
		}
	}
	if got := evaluatorEngineName(nil); got != "unknown" {
		t.Fatalf("expected unknown for nil, got %q", got)
	}
}

func TestEvaluatorsShareOneCache(t *testing.T) {
	cache := &fakeProgramCache{}
	ctx := RuleContext{Snapshot: map[string]any{"count": 3.0}}
	for _, evaluator := range []Evaluator{
		NewExprEvaluator(EvaluatorWithProgramCache(cache)),
		NewCELEvaluator(EvaluatorWithProgramCache(cache)),
	} {
		value, err := evaluator.Evaluate(ctx, "count > 2.0")
		if err != nil {
			t.Fatalf("%s: %v", evaluatorEngineName(evaluator), err)
		}
		if value != true {
			t.Fatalf("%s: expected true, got %v", evaluatorEngineName(evaluator), value)
		}
	}
	keys := make([]string, 0, len(cache.store))
	for key := range cache.store {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	if diff := cmp.Diff([]string{"cel:count > 2.0", "expr:count > 2.0"}, keys); diff != "" {
		t.Fatalf("cache keys mismatch (-want +got):\n%s", diff)
	}
}

func TestExprStateKeysShadowBuiltins(t *testing.T) {
	evaluator := NewExprEvaluator(EvaluatorWithProgramCache(&fakeProgramCache{}))
	for _, key := range []string{"count", "len", "max", "min", "sum", "all", "total"} {
		ctx := RuleContext{Snapshot: map[string]any{key: 1}, Process: "guard"}
		for i := 0; i < 2; i++ {
			value, err := evaluator.Evaluate(ctx, key+" < 3")
			if err != nil {
				t.Fatalf("%s: %v", key, err)
			}
			if value != true {
				t.Fatalf("%s: expected true, got %v", key, value)
			}
		}
	}

	value, err := evaluator.Evaluate(RuleContext{Snapshot: map[string]any{"items": []any{1, 2, 3}}}, "len(items)")
	if err != nil {
		t.Fatalf("len builtin: %v", err)
	}
	if value != 3 {
		t.Fatalf("expected len(items) = 3, got %v", value)
	}
}

func TestEvaluatorErrorsCarryMetadata(t *testing.T) {
	_, err := NewExprEvaluator().Evaluate(RuleContext{Process: "inc"}, "count +")
	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) {
		t.Fatalf("expected EvaluationError, got %T %v", err, err)
	}
	if evalErr.Engine != "expr" || evalErr.Expr != "count +" || evalErr.Process != "inc" {
		t.Fatalf("unexpected metadata %+v", evalErr)
	}
	if _, err := NewCELEvaluator().Evaluate(RuleContext{}, ""); err == nil || !strings.HasPrefix(err.Error(), "stores: cel evaluator") {
		t.Fatalf("expected prefixed empty expression error, got %v", err)
	}
}

func toFloat(value any) (float64, error) {
	switch n := value.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	default:
		return 0, fmt.Errorf("expected number, got %T", value)
	}
}

type fakeProgramCache struct {
	store  map[string]any
	hits   int
	misses int
}

func (c *fakeProgramCache) Get(key string) (any, bool) {
	if c.store == nil {
		c.store = make(map[string]any)
	}
	value, ok := c.store[key]
	if ok {
		c.hits++
		return value, true
	}
	c.misses++
	return nil, false
}

func (c *fakeProgramCache) Set(key string, value any) {
	if c.store == nil {
		c.store = make(map[string]any)
	}
	c.store[key] = value
}
