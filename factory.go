package factory

import (
	"context"
	"fmt"
)

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// AfterBuild runs hook on every instance the factory builds, including the
// ones it builds before saving.
func AfterBuild(hook Hook) FactoryOption {
	return func(f *Factory) {
		f.afterBuild = hook
	}
}

// AfterCreate runs hook on every instance the factory saves.
func AfterCreate(hook Hook) FactoryOption {
	return func(f *Factory) {
		f.afterCreate = hook
	}
}

// Factory binds a model to an attribute template and lifecycle hooks.
type Factory struct {
	model       Model
	template    Template
	initializer func(BuildOptions) (Template, error)
	afterBuild  Hook
	afterCreate Hook
}

// NewFactory validates model and initializer. The initializer is a Template,
// a func(BuildOptions) Template or a func(BuildOptions) (Template, error).
// Generators in a static template that can validate themselves are checked
// here.
func NewFactory(model any, initializer any, opts ...FactoryOption) (*Factory, error) {
	m, err := ModelOf(model)
	if err != nil {
		return nil, err
	}
	f := &Factory{model: m}

	switch init := initializer.(type) {
	case Template:
		if init == nil {
			return nil, &DefinitionError{Reason: "invalid initializer passed to the factory"}
		}
		if err := validateTemplate(init); err != nil {
			return nil, err
		}
		f.template = init
	case func(BuildOptions) Template:
		if init == nil {
			return nil, &DefinitionError{Reason: "invalid initializer passed to the factory"}
		}
		f.initializer = func(opts BuildOptions) (Template, error) {
			return init(opts), nil
		}
	case func(BuildOptions) (Template, error):
		if init == nil {
			return nil, &DefinitionError{Reason: "invalid initializer passed to the factory"}
		}
		f.initializer = init
	default:
		return nil, &DefinitionError{Reason: fmt.Sprintf("invalid initializer %T passed to the factory", initializer)}
	}

	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f, nil
}

// Model returns the model the factory produces.
func (f *Factory) Model() Model {
	return f.model
}

func (f *Factory) materialize(opts BuildOptions) (Template, error) {
	if f.initializer == nil {
		return f.template, nil
	}
	template, err := f.initializer(opts)
	if err != nil {
		return nil, err
	}
	if template == nil {
		template = Template{}
	}
	return template, nil
}

// withoutOverridden copies the top level of template, leaving out every key
// present in overrides.
func withoutOverridden(template Template, overrides Attrs) Template {
	filtered := make(Template, len(template))
	for key, value := range template {
		if _, overridden := overrides[key]; !overridden {
			filtered[key] = value
		}
	}
	return filtered
}

// Attrs resolves the template into a fresh attribute map. Keys present in
// overrides are skipped during the template pass; overrides are then resolved
// into the same map in a second pass.
func (f *Factory) Attrs(ctx context.Context, overrides Attrs, opts BuildOptions) (Attrs, error) {
	template, err := f.materialize(opts)
	if err != nil {
		return nil, err
	}
	ctx = withBuildOptions(ctx, opts)

	attrs := Attrs{}
	if err := Resolve(ctx, attrs, withoutOverridden(template, overrides)); err != nil {
		return nil, err
	}
	if len(overrides) > 0 {
		if err := Resolve(ctx, attrs, overrides); err != nil {
			return nil, err
		}
	}
	return attrs, nil
}

// Build resolves attributes, asks adapter for an unsaved instance and runs the
// AfterBuild hook.
func (f *Factory) Build(ctx context.Context, adapter Adapter, overrides Attrs, opts BuildOptions) (any, error) {
	return f.build(ctx, adapter, overrides, opts, true)
}

func (f *Factory) build(ctx context.Context, adapter Adapter, overrides Attrs, opts BuildOptions, runHooks bool) (any, error) {
	attrs, err := f.Attrs(ctx, overrides, opts)
	if err != nil {
		return nil, err
	}
	return f.instantiate(ctx, adapter, attrs, overrides, opts, runHooks)
}

func (f *Factory) instantiate(ctx context.Context, adapter Adapter, attrs, overrides Attrs, opts BuildOptions, runHooks bool) (any, error) {
	instance, err := adapter.Build(f.model, attrs)
	if err != nil {
		return nil, err
	}
	if !runHooks {
		return instance, nil
	}
	return runHook(ctx, f.afterBuild, instance, overrides, opts)
}

// Create builds an instance, saves it through adapter and runs the
// AfterCreate hook.
func (f *Factory) Create(ctx context.Context, adapter Adapter, overrides Attrs, opts BuildOptions) (any, error) {
	instance, err := f.Build(ctx, adapter, overrides, opts)
	if err != nil {
		return nil, err
	}
	return f.save(ctx, adapter, instance, overrides, opts)
}

func (f *Factory) save(ctx context.Context, adapter Adapter, instance any, overrides Attrs, opts BuildOptions) (any, error) {
	saved, err := adapter.Save(ctx, instance, f.model)
	if err != nil {
		return nil, err
	}
	return runHook(ctx, f.afterCreate, saved, overrides, opts)
}

// AttrsSync is the blocking form of Attrs. It fails with ErrAsyncValue when
// the template or overrides hold a value that can only settle asynchronously,
// such as an association.
func (f *Factory) AttrsSync(overrides Attrs, opts BuildOptions) (Attrs, error) {
	return f.attrsSync(context.Background(), overrides, opts)
}

func (f *Factory) attrsSync(ctx context.Context, overrides Attrs, opts BuildOptions) (Attrs, error) {
	template, err := f.materialize(opts)
	if err != nil {
		return nil, err
	}
	ctx = withBuildOptions(ctx, opts)

	attrs := Attrs{}
	if err := resolveSync(ctx, attrs, withoutOverridden(template, overrides)); err != nil {
		return nil, err
	}
	if len(overrides) > 0 {
		if err := resolveSync(ctx, attrs, overrides); err != nil {
			return nil, err
		}
	}
	return attrs, nil
}

// BuildSync is the blocking form of Build.
func (f *Factory) BuildSync(adapter Adapter, overrides Attrs, opts BuildOptions) (any, error) {
	return f.buildSync(context.Background(), adapter, overrides, opts)
}

func (f *Factory) buildSync(ctx context.Context, adapter Adapter, overrides Attrs, opts BuildOptions) (any, error) {
	attrs, err := f.attrsSync(ctx, overrides, opts)
	if err != nil {
		return nil, err
	}
	return f.instantiate(ctx, adapter, attrs, overrides, opts, true)
}
