package factory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Function is a helper callable from Expr, CEL and JS generators.
type Function func(args ...any) (any, error)

type namedFunction struct {
	name string
	fn   Function
}

// FunctionRegistry maps case-insensitive names to helpers. Every evaluator of
// a Registry shares one.
type FunctionRegistry struct {
	mu    sync.RWMutex
	funcs map[string]namedFunction
}

// NewFunctionRegistry constructs an empty registry.
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{funcs: make(map[string]namedFunction)}
}

// Register adds fn under name. Names are unique regardless of case.
func (r *FunctionRegistry) Register(name string, fn Function) error {
	switch {
	case strings.TrimSpace(name) == "":
		return &DefinitionError{Reason: "function name must not be empty"}
	case fn == nil:
		return &DefinitionError{Reason: fmt.Sprintf("function %q is nil", name)}
	}

	key := strings.ToLower(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.funcs == nil {
		r.funcs = make(map[string]namedFunction)
	}
	if prev, exists := r.funcs[key]; exists {
		return &DefinitionError{Reason: fmt.Sprintf("function %q already registered as %q", name, prev.name)}
	}
	r.funcs[key] = namedFunction{name: name, fn: fn}
	return nil
}

// Has reports whether a function is registered under name.
func (r *FunctionRegistry) Has(name string) bool {
	_, ok := r.lookup(name)
	return ok
}

func (r *FunctionRegistry) lookup(name string) (Function, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.funcs[strings.ToLower(name)]
	return entry.fn, ok
}

// Clone returns a copy that can be extended independently.
func (r *FunctionRegistry) Clone() *FunctionRegistry {
	clone := NewFunctionRegistry()
	if r == nil {
		return clone
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for key, entry := range r.funcs {
		clone.funcs[key] = entry
	}
	return clone
}

// Call runs the function registered under name.
func (r *FunctionRegistry) Call(name string, args ...any) (any, error) {
	fn, ok := r.lookup(name)
	if !ok {
		return nil, &NotFoundError{Kind: "function", Name: name}
	}
	value, err := fn(args...)
	if err != nil {
		return nil, fmt.Errorf("factory: function %s: %w", name, err)
	}
	return value, nil
}

// Names returns the registered names, as given to Register, sorted.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for _, entry := range r.funcs {
		names = append(names, entry.name)
	}
	sort.Strings(names)
	return names
}

// registerBuiltins exposes the Registry sequences and faker to expressions
// as seq(id) and fake(method, args...). User functions with the same names
// take precedence.
func registerBuiltins(functions *FunctionRegistry, state *registryState) {
	if !functions.Has("seq") {
		_ = functions.Register("seq", func(args ...any) (any, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("seq expects a sequence id")
			}
			id, ok := args[0].(string)
			if !ok || id == "" {
				return nil, fmt.Errorf("seq expects a non-empty string id, got %T", args[0])
			}
			return state.sequences.Next(id), nil
		})
	}
	if !functions.Has("fake") {
		_ = functions.Register("fake", func(args ...any) (any, error) {
			if len(args) == 0 {
				return nil, fmt.Errorf("fake expects a method name")
			}
			method, ok := args[0].(string)
			if !ok {
				return nil, fmt.Errorf("fake method must be a string, got %T", args[0])
			}
			g := &RandomValue{faker: state.faker, mu: &state.random.mu, method: method, args: args[1:]}
			return g.GenerateSync(context.Background())
		})
	}
}

// WithFunctionRegistry makes the functions of registry available to Expr, CEL
// and JS generators. The registry is copied.
func WithFunctionRegistry(registry *FunctionRegistry) Option {
	return func(cfg *config) {
		if registry == nil {
			return
		}
		cfg.functions = registry.Clone()
	}
}

// WithCustomFunction registers fn under name for expression generators.
func WithCustomFunction(name string, fn Function) Option {
	return func(cfg *config) {
		if cfg.functions == nil {
			cfg.functions = NewFunctionRegistry()
		}
		_ = cfg.functions.Register(name, fn)
	}
}
