package stores

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
)

var (
	ErrFunctionExists   = errors.New("stores: function already registered")
	ErrFunctionNotFound = errors.New("stores: function not registered")
)

// Function is a helper callable from rule expressions.
type Function func(args ...any) (any, error)

var functionName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// FunctionRegistry maps lower-cased names to helpers. Names must be valid
// identifiers and must not shadow the reserved rule variables.
type FunctionRegistry struct {
	mu        sync.RWMutex
	functions map[string]Function
}

func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{functions: map[string]Function{}}
}

// Register adds fn under name. Names are case-insensitive.
func (r *FunctionRegistry) Register(name string, fn Function) error {
	key := strings.ToLower(strings.TrimSpace(name))
	switch {
	case fn == nil:
		return fmt.Errorf("stores: function %q is nil", name)
	case !functionName.MatchString(key):
		return fmt.Errorf("stores: invalid function name %q", name)
	}
	if _, reserved := reservedRuleNames[key]; reserved {
		return fmt.Errorf("stores: function name %q is reserved", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.functions == nil {
		r.functions = map[string]Function{}
	}
	if _, exists := r.functions[key]; exists {
		return fmt.Errorf("%w: %q", ErrFunctionExists, name)
	}
	r.functions[key] = fn
	return nil
}

// Call runs the helper registered under name.
func (r *FunctionRegistry) Call(name string, args ...any) (any, error) {
	var fn Function
	if r != nil {
		r.mu.RLock()
		fn = r.functions[strings.ToLower(name)]
		r.mu.RUnlock()
	}
	if fn == nil {
		return nil, fmt.Errorf("%w: %q", ErrFunctionNotFound, name)
	}
	return fn(args...)
}

// Names lists the registered names in sorted order.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	names := make([]string, 0, len(r.functions))
	for name := range r.functions {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Clone copies the registry so later registrations do not leak between
// evaluators. A nil registry clones to nil.
func (r *FunctionRegistry) Clone() *FunctionRegistry {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := &FunctionRegistry{functions: make(map[string]Function, len(r.functions))}
	for name, fn := range r.functions {
		out.functions[name] = fn
	}
	return out
}

// WithFunctionRegistry exposes a copy of registry to the default evaluator.
func WithFunctionRegistry(registry *FunctionRegistry) ProcessOption {
	return func(cfg *processConfig) {
		if registry != nil {
			cfg.functions = registry.Clone()
		}
	}
}

// WithCustomFunction registers fn for the default evaluator. Invalid or
// duplicate names are ignored.
func WithCustomFunction(name string, fn Function) ProcessOption {
	return func(cfg *processConfig) {
		if cfg.functions == nil {
			cfg.functions = NewFunctionRegistry()
		}
		_ = cfg.functions.Register(name, fn)
	}
}
