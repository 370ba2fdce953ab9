package factory

import (
	"context"
	"fmt"

	"github.com/goliatone/go-factory/internal/hydrate"
)

// Adapter turns resolved attributes into model instances and persists them.
// Save and Destroy return the instance as it stands after the operation.
type Adapter interface {
	Build(model Model, attrs Attrs) (any, error)
	Save(ctx context.Context, instance any, model Model) (any, error)
	Destroy(ctx context.Context, instance any, model Model) (any, error)
	Get(instance any, attr string, model Model) (any, error)
	Set(attrs Attrs, instance any, model Model) (any, error)
}

// Saver is implemented by instances that persist themselves.
type Saver interface {
	Save(ctx context.Context) error
}

// Destroyer is implemented by instances that remove themselves.
type Destroyer interface {
	Destroy(ctx context.Context) error
}

// Getter is implemented by instances exposing attributes by name.
type Getter interface {
	Get(attr string) (any, bool)
}

// Setter is implemented by instances accepting attributes by name.
type Setter interface {
	Set(attr string, value any) error
}

// ObjectAdapter builds plain instances and treats Save and Destroy as no-ops.
// With Strict set, attributes that match no struct field are rejected.
type ObjectAdapter struct {
	Strict bool
}

// Build instantiates model and assigns attrs to it.
func (a ObjectAdapter) Build(model Model, attrs Attrs) (any, error) {
	instance := model.New()
	return a.Set(attrs, instance, model)
}

func (ObjectAdapter) Save(_ context.Context, instance any, _ Model) (any, error) {
	return instance, nil
}

func (ObjectAdapter) Destroy(_ context.Context, instance any, _ Model) (any, error) {
	return instance, nil
}

// Get reads attr through Getter, a document map or the matching struct field.
func (ObjectAdapter) Get(instance any, attr string, model Model) (any, error) {
	if getter, ok := instance.(Getter); ok {
		if value, found := getter.Get(attr); found {
			return value, nil
		}
		return nil, &NotFoundError{Kind: "attribute", Name: model.Name() + "." + attr}
	}
	value, found := hydrate.Lookup(instance, attr)
	if !found {
		return nil, &NotFoundError{Kind: "attribute", Name: model.Name() + "." + attr}
	}
	return value, nil
}

// Set assigns attrs through Setter, onto a document map or onto struct fields.
func (a ObjectAdapter) Set(attrs Attrs, instance any, model Model) (any, error) {
	switch target := instance.(type) {
	case Setter:
		for _, key := range sortedKeys(attrs) {
			if err := target.Set(key, attrs[key]); err != nil {
				return nil, fmt.Errorf("factory: set %s.%s: %w", model.Name(), key, err)
			}
		}
		return instance, nil
	case map[string]any:
		for key, value := range attrs {
			target[key] = value
		}
		return target, nil
	}

	var opts []hydrate.DecoderOption
	if a.Strict {
		opts = append(opts, hydrate.WithDisallowUnknownFields())
	}
	if err := hydrate.NewDecoder(opts...).Decode(hydrate.Context{Model: model.Name()}, attrs, instance); err != nil {
		return nil, fmt.Errorf("factory: build %s: %w", model.Name(), err)
	}
	return instance, nil
}

// DefaultAdapter builds like ObjectAdapter and delegates persistence to the
// instance through Saver and Destroyer. Instances implementing neither are
// returned untouched.
type DefaultAdapter struct {
	ObjectAdapter
}

func (DefaultAdapter) Save(ctx context.Context, instance any, model Model) (any, error) {
	if saver, ok := instance.(Saver); ok {
		if err := saver.Save(ctx); err != nil {
			return nil, fmt.Errorf("factory: save %s: %w", model.Name(), err)
		}
	}
	return instance, nil
}

func (DefaultAdapter) Destroy(ctx context.Context, instance any, model Model) (any, error) {
	if destroyer, ok := instance.(Destroyer); ok {
		if err := destroyer.Destroy(ctx); err != nil {
			return nil, fmt.Errorf("factory: destroy %s: %w", model.Name(), err)
		}
	}
	return instance, nil
}
