package factory

import (
	"context"
)

// AssocOption configures an association generator.
type AssocOption func(*assocConfig)

type assocConfig struct {
	key       string
	overrides Attrs
	each      []any
	opts      BuildOptions
}

// WithKey makes the association yield the attribute key of the associated
// object instead of the object itself.
func WithKey(key string) AssocOption {
	return func(c *assocConfig) {
		c.key = key
	}
}

// WithOverrides passes overrides to the associated factory. Many variants
// share them between every item.
func WithOverrides(overrides Attrs) AssocOption {
	return func(c *assocConfig) {
		c.overrides = overrides
	}
}

// WithEachOverrides gives every item of a Many association its own
// overrides, in order.
func WithEachOverrides(overrides ...Attrs) AssocOption {
	return func(c *assocConfig) {
		c.each = make([]any, len(overrides))
		for i, attrs := range overrides {
			c.each[i] = attrs
		}
	}
}

// WithBuildOptions passes build options to the associated factory.
func WithBuildOptions(opts BuildOptions) AssocOption {
	return func(c *assocConfig) {
		c.opts = opts
	}
}

func newAssocConfig(opts []AssocOption) assocConfig {
	cfg := assocConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

func (c assocConfig) manyOverrides() any {
	if c.each != nil {
		return c.each
	}
	if c.overrides != nil {
		return c.overrides
	}
	return nil
}

func (c assocConfig) manyOpts() any {
	if c.opts != nil {
		return c.opts
	}
	return nil
}

// association is the part every association generator shares: the owning
// registry and the factory name.
type association struct {
	owner *Registry
	name  string
	cfg   assocConfig
}

// registry returns the view performing the current call so that nested
// creates land in the same created-set and see the same options.
func (a association) registry(ctx context.Context) *Registry {
	if r := registryFrom(ctx); r != nil {
		return r
	}
	return a.owner
}

func (a association) keyOf(r *Registry, object any) (any, error) {
	if a.cfg.key == "" {
		return object, nil
	}
	f, err := r.Factory(a.name)
	if err != nil {
		return nil, err
	}
	return r.Adapter(a.name).Get(object, a.cfg.key, f.Model())
}

func (a association) keysOf(r *Registry, objects []any) ([]any, error) {
	if a.cfg.key == "" {
		return objects, nil
	}
	keys := make([]any, len(objects))
	for i, object := range objects {
		key, err := a.keyOf(r, object)
		if err != nil {
			return nil, wrapPath(indexSegment(i), err)
		}
		keys[i] = key
	}
	return keys, nil
}

// Assoc creates an instance of another factory.
type Assoc struct {
	association
}

// Assoc returns a generator that creates one instance of the named factory
// through the registry and yields it, or its WithKey attribute.
func (r *Registry) Assoc(name string, opts ...AssocOption) *Assoc {
	return &Assoc{association{owner: r, name: name, cfg: newAssocConfig(opts)}}
}

// Generate implements Generator.
func (g *Assoc) Generate(ctx context.Context) (any, error) {
	r := g.registry(ctx)
	instance, err := r.Create(ctx, g.name, g.cfg.overrides, g.cfg.opts)
	if err != nil {
		return nil, err
	}
	return g.keyOf(r, instance)
}

// AssocAttrs resolves the attributes of another factory.
type AssocAttrs struct {
	association
}

// AssocAttrs returns a generator yielding the attributes of the named
// factory, or the WithKey attribute of them.
func (r *Registry) AssocAttrs(name string, opts ...AssocOption) *AssocAttrs {
	return &AssocAttrs{association{owner: r, name: name, cfg: newAssocConfig(opts)}}
}

// Generate implements Generator.
func (g *AssocAttrs) Generate(ctx context.Context) (any, error) {
	r := g.registry(ctx)
	attrs, err := r.Attrs(ctx, g.name, g.cfg.overrides, g.cfg.opts)
	if err != nil {
		return nil, err
	}
	return g.keyOf(r, attrs)
}

// AssocMany creates several instances of another factory.
type AssocMany struct {
	association
	n int
}

// AssocMany returns a generator that creates n instances of the named
// factory and yields them, or their WithKey attributes, as a []any.
func (r *Registry) AssocMany(name string, n int, opts ...AssocOption) *AssocMany {
	return &AssocMany{association: association{owner: r, name: name, cfg: newAssocConfig(opts)}, n: n}
}

// Generate implements Generator.
func (g *AssocMany) Generate(ctx context.Context) (any, error) {
	r := g.registry(ctx)
	instances, err := r.CreateMany(ctx, g.name, g.n, g.cfg.manyOverrides(), g.cfg.manyOpts())
	if err != nil {
		return nil, err
	}
	return g.keysOf(r, instances)
}

// AssocAttrsMany resolves several attribute maps of another factory.
type AssocAttrsMany struct {
	association
	n int
}

// AssocAttrsMany returns a generator yielding n attribute maps of the named
// factory, or their WithKey attributes, as a []any.
func (r *Registry) AssocAttrsMany(name string, n int, opts ...AssocOption) *AssocAttrsMany {
	return &AssocAttrsMany{association: association{owner: r, name: name, cfg: newAssocConfig(opts)}, n: n}
}

// Generate implements Generator.
func (g *AssocAttrsMany) Generate(ctx context.Context) (any, error) {
	if g.n < 1 {
		return nil, &ValueError{Op: "assoc attrs many", Reason: "invalid number of items requested"}
	}
	r := g.registry(ctx)
	list, err := r.AttrsMany(ctx, g.name, g.n, g.cfg.manyOverrides(), g.cfg.manyOpts())
	if err != nil {
		return nil, err
	}
	objects := make([]any, len(list))
	for i, attrs := range list {
		objects[i] = attrs
	}
	return g.keysOf(r, objects)
}
