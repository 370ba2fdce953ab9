package factory

import (
	"context"
	"log/slog"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/goliatone/go-factory/pkg/activity"
)

// Attrs holds fully resolved attribute values keyed by attribute name. It is
// also the shape of caller supplied overrides.
type Attrs = map[string]any

// Template describes how a factory produces attributes. Leaves are literals,
// nil, zero argument functions, Generators or Awaiters; internal nodes are
// map[string]any and []any.
type Template = map[string]any

// BuildOptions is an opaque bag handed to initializer functions, generators
// and lifecycle hooks. It is never resolved.
type BuildOptions = map[string]any

// Hook runs after an instance has been built or created. A non-nil return
// value replaces the instance.
type Hook func(ctx context.Context, instance any, overrides Attrs, opts BuildOptions) (any, error)

// Options is the registry level options bag. Registry hooks run after the
// factory hooks; Values are exposed to factory hooks through OptionsFrom.
type Options struct {
	AfterBuild  Hook
	AfterCreate Hook
	Values      map[string]any
}

// Option configures a Registry.
type Option func(*config)

type config struct {
	adapter       Adapter
	logger        *slog.Logger
	seed          uint64
	seeded        bool
	faker         *gofakeit.Faker
	activityHooks activity.Hooks
	functions     *FunctionRegistry
	programCache  ProgramCache
	options       Options
}

func applyOptions(opts []Option) config {
	cfg := config{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithAdapter replaces the default adapter used by factories without a
// dedicated binding.
func WithAdapter(adapter Adapter) Option {
	return func(cfg *config) {
		cfg.adapter = adapter
	}
}

// WithLogger attaches a structured logger. Records are emitted at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) {
		cfg.logger = logger
	}
}

// WithSeed makes random selections and fake data reproducible.
func WithSeed(seed uint64) Option {
	return func(cfg *config) {
		cfg.seed = seed
		cfg.seeded = true
	}
}

// WithFaker injects the random data generator used by Fake.
func WithFaker(faker *gofakeit.Faker) Option {
	return func(cfg *config) {
		cfg.faker = faker
	}
}

// WithOptionsBag sets the initial registry options bag.
func WithOptionsBag(options Options) Option {
	return func(cfg *config) {
		cfg.options = cloneOptions(options)
	}
}

func runHook(ctx context.Context, hook Hook, instance any, overrides Attrs, opts BuildOptions) (any, error) {
	if hook == nil {
		return instance, nil
	}
	out, err := hook(ctx, instance, overrides, opts)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return instance, nil
	}
	return out, nil
}

func cloneOptions(options Options) Options {
	out := options
	if options.Values != nil {
		out.Values = make(map[string]any, len(options.Values))
		for key, value := range options.Values {
			out.Values[key] = value
		}
	}
	return out
}
