package factory

import (
	"context"
	"fmt"
	"math/rand/v2"
	"reflect"
	"sync"

	"github.com/brianvoe/gofakeit/v7"
)

// randomSource is the Registry random generator. Draws are serialized.
type randomSource struct {
	mu   sync.Mutex
	seed uint64
	rng  *rand.Rand
}

func newRandomSource(seed uint64, seeded bool) *randomSource {
	if !seeded {
		seed = rand.Uint64()
	}
	return &randomSource{
		seed: seed,
		rng:  rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

func (s *randomSource) intN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.IntN(n)
}

func (s *randomSource) faker() *gofakeit.Faker {
	return gofakeit.New(s.seed)
}

// RandomValue calls a named method of the Registry faker, e.g. "Name",
// "Email" or "Number" with arguments 1 and 10.
type RandomValue struct {
	faker  *gofakeit.Faker
	mu     *sync.Mutex
	method string
	args   []any
}

// Fake returns a generator backed by the gofakeit method named method.
// Unknown methods are reported when the factory is defined.
func (r *Registry) Fake(method string, args ...any) *RandomValue {
	return &RandomValue{
		faker:  r.state.faker,
		mu:     &r.state.random.mu,
		method: method,
		args:   args,
	}
}

// Validate reports an unknown method or a wrong argument count.
func (g *RandomValue) Validate() error {
	_, _, err := g.prepare()
	return err
}

func (g *RandomValue) prepare() (reflect.Value, []reflect.Value, error) {
	fn := reflect.ValueOf(g.faker).MethodByName(g.method)
	if g.method == "" || !fn.IsValid() {
		return reflect.Value{}, nil, &NotFoundError{Kind: "random method", Name: g.method}
	}
	in, err := convertArgs(g.method, fn.Type(), g.args)
	if err != nil {
		return reflect.Value{}, nil, err
	}
	return fn, in, nil
}

// Generate implements Generator.
func (g *RandomValue) Generate(ctx context.Context) (any, error) {
	return g.GenerateSync(ctx)
}

// GenerateSync implements SyncGenerator.
func (g *RandomValue) GenerateSync(context.Context) (any, error) {
	fn, in, err := g.prepare()
	if err != nil {
		return nil, err
	}
	g.mu.Lock()
	outs := fn.Call(in)
	g.mu.Unlock()

	var value any
	for _, out := range outs {
		if out.Type() == errorType {
			if !out.IsNil() {
				return nil, fmt.Errorf("factory: random %s: %w", g.method, out.Interface().(error))
			}
			continue
		}
		if value == nil {
			value = out.Interface()
		}
	}
	return value, nil
}

func convertArgs(method string, t reflect.Type, args []any) ([]reflect.Value, error) {
	fixed := t.NumIn()
	if t.IsVariadic() {
		fixed--
		if len(args) < fixed {
			return nil, &ValueError{Op: "random " + method, Reason: fmt.Sprintf("expects at least %d arguments, got %d", fixed, len(args))}
		}
	} else if len(args) != fixed {
		return nil, &ValueError{Op: "random " + method, Reason: fmt.Sprintf("expects %d arguments, got %d", fixed, len(args))}
	}

	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		want := t.In(min(i, t.NumIn()-1))
		if t.IsVariadic() && i >= fixed {
			want = want.Elem()
		}
		value, err := convertArg(arg, want)
		if err != nil {
			return nil, &ValueError{Op: "random " + method, Reason: fmt.Sprintf("argument %d: %v", i, err)}
		}
		in[i] = value
	}
	return in, nil
}

func convertArg(arg any, want reflect.Type) (reflect.Value, error) {
	if arg == nil {
		return reflect.Zero(want), nil
	}
	value := reflect.ValueOf(arg)
	if value.Type().AssignableTo(want) {
		return value, nil
	}
	if isNumericKind(value.Kind()) && isNumericKind(want.Kind()) {
		return value.Convert(want), nil
	}
	if value.Kind() == reflect.String && want.Kind() == reflect.String {
		return value.Convert(want), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot use %T as %s", arg, want)
}

func isNumericKind(kind reflect.Kind) bool {
	switch kind {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// OneOf picks one of its candidates uniformly at random. The picked candidate
// is resolved like a template node, so functions, generators, deferred values
// and maps or lists holding them all settle.
type OneOf struct {
	random     *randomSource
	candidates any
}

// OneOf returns a generator choosing among values, which must be a non-empty
// slice or array.
func (r *Registry) OneOf(values any) *OneOf {
	return &OneOf{random: r.state.random, candidates: values}
}

// Validate reports a missing, non-list or empty candidate list.
func (g *OneOf) Validate() error {
	_, err := g.list()
	return err
}

func (g *OneOf) list() (reflect.Value, error) {
	if g.candidates == nil {
		return reflect.Value{}, &ValueError{Op: "one of", Reason: "expected an array of possible values"}
	}
	list := reflect.ValueOf(g.candidates)
	if list.Kind() != reflect.Slice && list.Kind() != reflect.Array {
		return reflect.Value{}, &ValueError{Op: "one of", Reason: "expected an array of possible values"}
	}
	if list.Len() == 0 {
		return reflect.Value{}, &ValueError{Op: "one of", Reason: "empty array passed for possible values"}
	}
	return list, nil
}

func (g *OneOf) pick() (any, error) {
	list, err := g.list()
	if err != nil {
		return nil, err
	}
	return list.Index(g.random.intN(list.Len())).Interface(), nil
}

// Generate implements Generator.
func (g *OneOf) Generate(ctx context.Context) (any, error) {
	choice, err := g.pick()
	if err != nil {
		return nil, err
	}
	return resolveValue(ctx, choice)
}

// GenerateSync implements SyncGenerator.
func (g *OneOf) GenerateSync(ctx context.Context) (any, error) {
	choice, err := g.pick()
	if err != nil {
		return nil, err
	}
	return resolveValueSync(ctx, nil, choice)
}
