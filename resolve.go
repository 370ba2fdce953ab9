package factory

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// Resolve walks source and writes the resolved value of every leaf into
// target at the same position. Sibling entries are resolved concurrently and
// the first failure is returned once every started entry has settled.
//
// target and source must both be map[string]any or both be []any; a list
// target must be at least as long as its source. Nested maps already present
// in target are reused, nested lists are always replaced.
func Resolve(ctx context.Context, target, source any) error {
	if err := checkContainers("resolve", target, source); err != nil {
		return err
	}
	return resolveNode(ctx, target, source)
}

// ResolveSync is the blocking counterpart of Resolve. Entries are resolved one
// at a time in key order and any leaf that could only settle asynchronously
// fails with ErrAsyncValue.
func ResolveSync(target, source any) error {
	return resolveSync(context.Background(), target, source)
}

func resolveSync(ctx context.Context, target, source any) error {
	if err := checkContainers("resolve sync", target, source); err != nil {
		return err
	}
	return resolveNodeSync(ctx, target, source)
}

func checkContainers(op string, target, source any) error {
	switch src := source.(type) {
	case map[string]any:
		dst, ok := target.(map[string]any)
		if !ok {
			return &ValueError{Op: op, Reason: fmt.Sprintf("target %T does not match map source", target)}
		}
		if dst == nil {
			return &ValueError{Op: op, Reason: "target map is nil"}
		}
	case []any:
		dst, ok := target.([]any)
		if !ok {
			return &ValueError{Op: op, Reason: fmt.Sprintf("target %T does not match list source", target)}
		}
		if len(dst) < len(src) {
			return &ValueError{Op: op, Reason: fmt.Sprintf("target list has %d slots for %d items", len(dst), len(src))}
		}
	default:
		return &ValueError{Op: op, Reason: fmt.Sprintf("source %T is not a map or list", source)}
	}
	return nil
}

func resolveNode(ctx context.Context, target, source any) error {
	if src, ok := source.([]any); ok {
		return resolveList(ctx, target.([]any), src)
	}
	return resolveMap(ctx, target.(map[string]any), source.(map[string]any))
}

func resolveMap(ctx context.Context, dst, src map[string]any) error {
	g, gctx := errgroup.WithContext(ctx)
	var mu sync.Mutex
	for key, value := range src {
		switch node := value.(type) {
		case []any:
			child := make([]any, len(node))
			mu.Lock()
			dst[key] = child
			mu.Unlock()
			g.Go(func() error {
				return wrapPath(key, resolveList(gctx, child, node))
			})
		case map[string]any:
			mu.Lock()
			child, ok := dst[key].(map[string]any)
			if !ok || child == nil {
				child = make(map[string]any, len(node))
				dst[key] = child
			}
			mu.Unlock()
			g.Go(func() error {
				return wrapPath(key, resolveMap(gctx, child, node))
			})
		default:
			g.Go(func() error {
				out, err := resolveLeaf(gctx, node)
				if err != nil {
					return wrapPath(key, err)
				}
				mu.Lock()
				dst[key] = out
				mu.Unlock()
				return nil
			})
		}
	}
	return g.Wait()
}

func resolveList(ctx context.Context, dst, src []any) error {
	g, gctx := errgroup.WithContext(ctx)
	for i, value := range src {
		segment := indexSegment(i)
		switch node := value.(type) {
		case []any:
			child := make([]any, len(node))
			dst[i] = child
			g.Go(func() error {
				return wrapPath(segment, resolveList(gctx, child, node))
			})
		case map[string]any:
			child, ok := dst[i].(map[string]any)
			if !ok || child == nil {
				child = make(map[string]any, len(node))
				dst[i] = child
			}
			g.Go(func() error {
				return wrapPath(segment, resolveMap(gctx, child, node))
			})
		default:
			g.Go(func() error {
				out, err := resolveLeaf(gctx, node)
				if err != nil {
					return wrapPath(segment, err)
				}
				dst[i] = out
				return nil
			})
		}
	}
	return g.Wait()
}

// resolveValue resolves a standalone node into a fresh container, or as a
// leaf when it is not a map or list.
func resolveValue(ctx context.Context, value any) (any, error) {
	switch node := value.(type) {
	case []any:
		child := make([]any, len(node))
		return child, resolveList(ctx, child, node)
	case map[string]any:
		child := make(map[string]any, len(node))
		return child, resolveMap(ctx, child, node)
	}
	return resolveLeaf(ctx, value)
}

func resolveLeaf(ctx context.Context, value any) (any, error) {
	switch leaf := value.(type) {
	case nil:
		return nil, nil
	case Awaiter:
		return leaf.Await(ctx)
	case Generator:
		out, err := leaf.Generate(ctx)
		if err != nil {
			return nil, err
		}
		return settle(ctx, out)
	}

	fn := reflect.ValueOf(value)
	if !isThunk(fn) {
		return value, nil
	}
	out, err := callThunk(ctx, fn)
	if err != nil {
		return nil, err
	}
	return settle(ctx, out)
}

func settle(ctx context.Context, value any) (any, error) {
	if deferred, ok := value.(Awaiter); ok {
		return deferred.Await(ctx)
	}
	return value, nil
}

func resolveNodeSync(ctx context.Context, target, source any) error {
	if src, ok := source.([]any); ok {
		dst := target.([]any)
		for i, value := range src {
			out, err := resolveValueSync(ctx, dst[i], value)
			if err != nil {
				return wrapPath(indexSegment(i), err)
			}
			dst[i] = out
		}
		return nil
	}

	dst := target.(map[string]any)
	src := source.(map[string]any)
	for _, key := range sortedKeys(src) {
		out, err := resolveValueSync(ctx, dst[key], src[key])
		if err != nil {
			return wrapPath(key, err)
		}
		dst[key] = out
	}
	return nil
}

func resolveValueSync(ctx context.Context, existing, value any) (any, error) {
	switch node := value.(type) {
	case []any:
		child := make([]any, len(node))
		return child, resolveNodeSync(ctx, child, node)
	case map[string]any:
		child, ok := existing.(map[string]any)
		if !ok || child == nil {
			child = make(map[string]any, len(node))
		}
		return child, resolveNodeSync(ctx, child, node)
	case nil:
		return nil, nil
	case Awaiter:
		return nil, ErrAsyncValue
	case SyncGenerator:
		out, err := node.GenerateSync(ctx)
		if err != nil {
			return nil, err
		}
		return settleSync(out)
	case Generator:
		return nil, ErrAsyncValue
	}

	fn := reflect.ValueOf(value)
	if !isThunk(fn) {
		return value, nil
	}
	if fn.Type().NumIn() == 1 {
		return nil, ErrAsyncValue
	}
	out, err := callThunk(ctx, fn)
	if err != nil {
		return nil, err
	}
	return settleSync(out)
}

func settleSync(value any) (any, error) {
	if _, ok := value.(Awaiter); ok {
		return nil, ErrAsyncValue
	}
	return value, nil
}

// isThunk reports whether fn is a function the resolver may call: no
// arguments or a single context.Context, returning a value and optionally an
// error.
func isThunk(fn reflect.Value) bool {
	if fn.Kind() != reflect.Func || fn.IsNil() {
		return false
	}
	t := fn.Type()
	if t.IsVariadic() {
		return false
	}
	switch t.NumIn() {
	case 0:
	case 1:
		if t.In(0) != contextType {
			return false
		}
	default:
		return false
	}
	switch t.NumOut() {
	case 1:
		return true
	case 2:
		return t.Out(1) == errorType
	default:
		return false
	}
}

func callThunk(ctx context.Context, fn reflect.Value) (any, error) {
	var in []reflect.Value
	if fn.Type().NumIn() == 1 {
		in = []reflect.Value{reflect.ValueOf(&ctx).Elem()}
	}
	outs := fn.Call(in)
	if len(outs) == 2 && !outs[1].IsNil() {
		return nil, outs[1].Interface().(error)
	}
	return outs[0].Interface(), nil
}

func indexSegment(i int) string {
	return "[" + strconv.Itoa(i) + "]"
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
