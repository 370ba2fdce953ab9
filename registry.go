package factory

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/goliatone/go-factory/pkg/activity"
)

// record is one entry of the created-set.
type record struct {
	id       string
	factory  string
	adapter  Adapter
	model    Model
	instance any

	// identity of the view that created the instance
	actorID  string
	userID   string
	tenantID string
}

// registryState is shared by a Registry and every view derived from it.
type registryState struct {
	mu             sync.RWMutex
	factories      map[string]*Factory
	adapters       map[string]Adapter
	defaultAdapter Adapter

	createdMu sync.Mutex
	created   []record

	sequences    *Sequences
	random       *randomSource
	faker        *gofakeit.Faker
	functions    *FunctionRegistry
	programCache ProgramCache
	evaluators   sync.Map
	logger       *slog.Logger
	emitter      *activity.Emitter
}

// Registry names factories, picks their adapters and remembers everything it
// created until CleanUp. Views returned by WithOptions share all of this state
// and differ only in their options bag.
type Registry struct {
	state   *registryState
	options Options
}

// New constructs an empty Registry.
func New(opts ...Option) *Registry {
	cfg := applyOptions(opts)

	state := &registryState{
		factories:      make(map[string]*Factory),
		adapters:       make(map[string]Adapter),
		defaultAdapter: cfg.adapter,
		sequences:      NewSequences(),
		functions:      cfg.functions,
		programCache:   cfg.programCache,
		logger:         cfg.logger,
		emitter:        activity.NewEmitter(cfg.activityHooks, activity.Config{Enabled: true}),
	}
	if state.defaultAdapter == nil {
		state.defaultAdapter = DefaultAdapter{}
	}
	if state.functions == nil {
		state.functions = NewFunctionRegistry()
	}
	if state.programCache == nil {
		state.programCache = NewMemoryProgramCache()
	}
	if state.logger == nil {
		state.logger = slog.New(slog.DiscardHandler)
	}
	state.random = newRandomSource(cfg.seed, cfg.seeded)
	state.faker = cfg.faker
	if state.faker == nil {
		state.faker = state.random.faker()
	}
	registerBuiltins(state.functions, state)

	return &Registry{state: state, options: cloneOptions(cfg.options)}
}

// Define registers a factory under name. See NewFactory for the accepted
// models and initializers.
func (r *Registry) Define(name string, model any, initializer any, opts ...FactoryOption) error {
	f, err := NewFactory(model, initializer, opts...)
	if err != nil {
		if defErr, ok := err.(*DefinitionError); ok && defErr.Factory == "" {
			defErr.Factory = name
		}
		return err
	}

	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	if _, exists := r.state.factories[name]; exists {
		return &DefinitionError{Factory: name, Reason: "factory already defined"}
	}
	r.state.factories[name] = f
	r.state.logger.Debug("factory defined", slog.String("factory", name), slog.String("model", f.model.String()))
	return nil
}

// MustDefine is like Define but panics on error.
func (r *Registry) MustDefine(name string, model any, initializer any, opts ...FactoryOption) {
	if err := r.Define(name, model, initializer, opts...); err != nil {
		panic(err)
	}
}

// Factory returns the factory registered under name.
func (r *Registry) Factory(name string) (*Factory, error) {
	r.state.mu.RLock()
	defer r.state.mu.RUnlock()
	f, ok := r.state.factories[name]
	if !ok {
		return nil, &NotFoundError{Kind: "factory", Name: name}
	}
	return f, nil
}

// Names returns the defined factory names sorted alphabetically.
func (r *Registry) Names() []string {
	r.state.mu.RLock()
	defer r.state.mu.RUnlock()
	names := make([]string, 0, len(r.state.factories))
	for name := range r.state.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Adapter returns the adapter bound to the factory name, or the default one.
func (r *Registry) Adapter(name string) Adapter {
	r.state.mu.RLock()
	defer r.state.mu.RUnlock()
	if adapter, ok := r.state.adapters[name]; ok {
		return adapter
	}
	return r.state.defaultAdapter
}

// SetAdapter replaces the default adapter, or binds adapter to the named
// factories only. A nil adapter removes the named bindings, or restores
// DefaultAdapter when no names are given.
func (r *Registry) SetAdapter(adapter Adapter, names ...string) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	if len(names) == 0 {
		if adapter == nil {
			adapter = DefaultAdapter{}
		}
		r.state.defaultAdapter = adapter
		return
	}
	for _, name := range names {
		if adapter == nil {
			delete(r.state.adapters, name)
			continue
		}
		r.state.adapters[name] = adapter
	}
}

// lookup returns the factory and adapter for name and a context carrying the
// registry view.
func (r *Registry) lookup(ctx context.Context, name string) (context.Context, *Factory, Adapter, error) {
	f, err := r.Factory(name)
	if err != nil {
		return ctx, nil, nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return withRegistry(ctx, r), f, r.Adapter(name), nil
}

// Attrs resolves the attributes of the named factory.
func (r *Registry) Attrs(ctx context.Context, name string, overrides Attrs, opts BuildOptions) (Attrs, error) {
	ctx, f, _, err := r.lookup(ctx, name)
	if err != nil {
		return nil, err
	}
	return f.Attrs(ctx, overrides, opts)
}

// Build builds an unsaved instance of the named factory. The registry
// AfterBuild hook runs after the factory one.
func (r *Registry) Build(ctx context.Context, name string, overrides Attrs, opts BuildOptions) (any, error) {
	ctx, f, adapter, err := r.lookup(ctx, name)
	if err != nil {
		return nil, err
	}
	instance, err := f.Build(ctx, adapter, overrides, opts)
	if err != nil {
		return nil, err
	}
	return runHook(ctx, r.options.AfterBuild, instance, overrides, opts)
}

// Create builds and saves an instance of the named factory and records it for
// CleanUp. The registry AfterCreate hook runs after the factory one.
func (r *Registry) Create(ctx context.Context, name string, overrides Attrs, opts BuildOptions) (any, error) {
	ctx, f, adapter, err := r.lookup(ctx, name)
	if err != nil {
		return nil, err
	}
	instance, err := f.Create(ctx, adapter, overrides, opts)
	if err != nil {
		return nil, err
	}
	return r.afterCreate(name, f, adapter)(ctx, instance, overrides, opts)
}

// afterCreate records instance, emits the created event and runs the registry
// AfterCreate hook.
func (r *Registry) afterCreate(name string, f *Factory, adapter Adapter) itemHook {
	return func(ctx context.Context, instance any, overrides Attrs, opts BuildOptions) (any, error) {
		rec := r.track(name, f, adapter, instance)
		if err := r.emitCreated(ctx, rec); err != nil {
			return nil, err
		}
		return runHook(ctx, r.options.AfterCreate, instance, overrides, opts)
	}
}

// AttrsMany resolves n attribute maps of the named factory. overrides and opts
// accept nil, a single map or a list of maps.
func (r *Registry) AttrsMany(ctx context.Context, name string, n int, overrides, opts any) ([]Attrs, error) {
	ctx, f, _, err := r.lookup(ctx, name)
	if err != nil {
		return nil, err
	}
	return f.AttrsMany(ctx, n, overrides, opts)
}

// BuildMany builds n unsaved instances of the named factory.
func (r *Registry) BuildMany(ctx context.Context, name string, n int, overrides, opts any) ([]any, error) {
	ctx, f, adapter, err := r.lookup(ctx, name)
	if err != nil {
		return nil, err
	}
	b, err := newBatch("build many", n, overrides, opts)
	if err != nil {
		return nil, err
	}
	var after itemHook
	if hook := r.options.AfterBuild; hook != nil {
		after = itemHook(hook)
	}
	return f.buildMany(ctx, adapter, b, true, after)
}

// CreateMany creates n instances of the named factory and records each of
// them as soon as it is saved.
func (r *Registry) CreateMany(ctx context.Context, name string, n int, overrides, opts any) ([]any, error) {
	ctx, f, adapter, err := r.lookup(ctx, name)
	if err != nil {
		return nil, err
	}
	b, err := newBatch("create many", n, overrides, opts)
	if err != nil {
		return nil, err
	}
	return f.createMany(ctx, adapter, b, r.afterCreate(name, f, adapter))
}

// AttrsSync resolves the attributes of the named factory without blocking on
// other factories.
func (r *Registry) AttrsSync(name string, overrides Attrs, opts BuildOptions) (Attrs, error) {
	ctx, f, _, err := r.lookup(context.Background(), name)
	if err != nil {
		return nil, err
	}
	return f.attrsSync(ctx, overrides, opts)
}

// BuildSync builds an unsaved instance of the named factory without blocking
// on other factories.
func (r *Registry) BuildSync(name string, overrides Attrs, opts BuildOptions) (any, error) {
	ctx, f, adapter, err := r.lookup(context.Background(), name)
	if err != nil {
		return nil, err
	}
	instance, err := f.buildSync(ctx, adapter, overrides, opts)
	if err != nil {
		return nil, err
	}
	return runHook(ctx, r.options.AfterBuild, instance, overrides, opts)
}

func (r *Registry) track(name string, f *Factory, adapter Adapter, instance any) record {
	rec := record{
		id:       uuid.NewString(),
		factory:  name,
		adapter:  adapter,
		model:    f.model,
		instance: instance,
		actorID:  stringValue(r.options.Values[ActorIDKey]),
		userID:   stringValue(r.options.Values[UserIDKey]),
		tenantID: stringValue(r.options.Values[TenantIDKey]),
	}
	r.state.createdMu.Lock()
	r.state.created = append(r.state.created, rec)
	r.state.createdMu.Unlock()
	r.state.logger.Debug("instance created", slog.String("factory", name), slog.String("id", rec.id))
	return rec
}

// Created returns how many instances are waiting for CleanUp.
func (r *Registry) Created() int {
	r.state.createdMu.Lock()
	defer r.state.createdMu.Unlock()
	return len(r.state.created)
}

// CleanUp destroys every recorded instance concurrently through the adapter
// that created it, forgets them and resets every sequence. Every destroy is
// attempted; the first failure is returned.
func (r *Registry) CleanUp(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	r.state.createdMu.Lock()
	records := r.state.created
	r.state.created = nil
	r.state.createdMu.Unlock()
	r.state.sequences.Reset()

	r.state.logger.Debug("cleaning up", slog.Int("instances", len(records)))

	var g errgroup.Group
	for _, rec := range records {
		g.Go(func() error {
			if _, err := rec.adapter.Destroy(ctx, rec.instance, rec.model); err != nil {
				return err
			}
			return r.emitDestroyed(ctx, rec)
		})
	}
	return g.Wait()
}
