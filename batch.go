package factory

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// batch holds the per item overrides and build options of a Many call.
type batch struct {
	overrides []Attrs
	opts      []BuildOptions
}

func (b batch) len() int {
	return len(b.overrides)
}

// itemHook runs once per item after the factory finished with it.
type itemHook func(ctx context.Context, instance any, overrides Attrs, opts BuildOptions) (any, error)

// newBatch validates n and expands overrides and opts into n entries. Each
// of them may be nil, a single map shared by every item or a list of maps
// padded with empty maps up to n. Entries past n are ignored.
func newBatch(op string, n int, overrides, opts any) (batch, error) {
	if n < 1 {
		return batch{}, &ValueError{Op: op, Reason: "invalid number of objects requested"}
	}
	attrs, err := expandMaps(op, "overrides", n, overrides)
	if err != nil {
		return batch{}, err
	}
	options, err := expandMaps(op, "build options", n, opts)
	if err != nil {
		return batch{}, err
	}
	b := batch{overrides: make([]Attrs, n), opts: make([]BuildOptions, n)}
	for i := 0; i < n; i++ {
		b.overrides[i] = attrs[i]
		b.opts[i] = options[i]
	}
	return b, nil
}

func expandMaps(op, what string, n int, value any) ([]map[string]any, error) {
	out := make([]map[string]any, n)
	fill := func(int) map[string]any { return map[string]any{} }

	switch v := value.(type) {
	case nil:
	case map[string]any:
		if v != nil {
			fill = func(int) map[string]any { return v }
		}
	case []map[string]any:
		copy(out, v)
	case []any:
		for i, item := range v[:min(len(v), n)] {
			switch m := item.(type) {
			case nil:
			case map[string]any:
				out[i] = m
			default:
				return nil, &ValueError{Op: op, Reason: fmt.Sprintf("invalid %s at index %d: %T", what, i, item)}
			}
		}
	default:
		return nil, &ValueError{Op: op, Reason: fmt.Sprintf("invalid %s passed: %T", what, value)}
	}

	for i := range out {
		if out[i] == nil {
			out[i] = fill(i)
		}
	}
	return out, nil
}

// AttrsMany resolves n attribute maps concurrently. The i-th result uses the
// i-th overrides and build options.
func (f *Factory) AttrsMany(ctx context.Context, n int, overrides, opts any) ([]Attrs, error) {
	b, err := newBatch("attrs many", n, overrides, opts)
	if err != nil {
		return nil, err
	}
	return f.attrsMany(ctx, b)
}

func (f *Factory) attrsMany(ctx context.Context, b batch) ([]Attrs, error) {
	out := make([]Attrs, b.len())
	g, gctx := errgroup.WithContext(ctx)
	for i := range out {
		g.Go(func() error {
			attrs, err := f.Attrs(gctx, b.overrides[i], b.opts[i])
			if err != nil {
				return err
			}
			out[i] = attrs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// BuildMany builds n instances concurrently. runHooks controls whether the
// AfterBuild hook runs.
func (f *Factory) BuildMany(ctx context.Context, adapter Adapter, n int, overrides, opts any, runHooks bool) ([]any, error) {
	b, err := newBatch("build many", n, overrides, opts)
	if err != nil {
		return nil, err
	}
	return f.buildMany(ctx, adapter, b, runHooks, nil)
}

func (f *Factory) buildMany(ctx context.Context, adapter Adapter, b batch, runHooks bool, after itemHook) ([]any, error) {
	return f.eachItem(ctx, b, func(ctx context.Context, overrides Attrs, opts BuildOptions) (any, error) {
		instance, err := f.build(ctx, adapter, overrides, opts, runHooks)
		if err != nil || after == nil {
			return instance, err
		}
		return after(ctx, instance, overrides, opts)
	})
}

// CreateMany builds, saves and runs both hooks for n instances concurrently.
func (f *Factory) CreateMany(ctx context.Context, adapter Adapter, n int, overrides, opts any) ([]any, error) {
	b, err := newBatch("create many", n, overrides, opts)
	if err != nil {
		return nil, err
	}
	return f.createMany(ctx, adapter, b, nil)
}

// createMany runs after on every saved instance once the factory hooks have
// run.
func (f *Factory) createMany(ctx context.Context, adapter Adapter, b batch, after itemHook) ([]any, error) {
	return f.eachItem(ctx, b, func(ctx context.Context, overrides Attrs, opts BuildOptions) (any, error) {
		instance, err := f.build(ctx, adapter, overrides, opts, true)
		if err != nil {
			return nil, err
		}
		saved, err := f.save(ctx, adapter, instance, overrides, opts)
		if err != nil || after == nil {
			return saved, err
		}
		return after(ctx, saved, overrides, opts)
	})
}

func (f *Factory) eachItem(ctx context.Context, b batch, fn func(context.Context, Attrs, BuildOptions) (any, error)) ([]any, error) {
	out := make([]any, b.len())
	g, gctx := errgroup.WithContext(ctx)
	for i := range out {
		g.Go(func() error {
			instance, err := fn(gctx, b.overrides[i], b.opts[i])
			if err != nil {
				return err
			}
			out[i] = instance
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
