package factory

import "context"

type contextKey int

const (
	buildOptionsKey contextKey = iota
	registryKey
)

// BuildOptionsFrom returns the build options of the call that is resolving the
// current template. It returns nil outside of a resolution.
func BuildOptionsFrom(ctx context.Context) BuildOptions {
	if ctx == nil {
		return nil
	}
	opts, _ := ctx.Value(buildOptionsKey).(BuildOptions)
	return opts
}

// OptionsFrom returns the option values of the registry view performing the
// current call. Hooks and generators use it to read values set through
// Registry.WithOptions.
func OptionsFrom(ctx context.Context) map[string]any {
	if r := registryFrom(ctx); r != nil {
		return r.options.Values
	}
	return nil
}

func withBuildOptions(ctx context.Context, opts BuildOptions) context.Context {
	return context.WithValue(ctx, buildOptionsKey, opts)
}

func withRegistry(ctx context.Context, r *Registry) context.Context {
	return context.WithValue(ctx, registryKey, r)
}

func registryFrom(ctx context.Context) *Registry {
	if ctx == nil {
		return nil
	}
	r, _ := ctx.Value(registryKey).(*Registry)
	return r
}
