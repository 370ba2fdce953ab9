package docstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	factory "github.com/goliatone/go-factory"
)

// Option configures an Adapter.
type Option func(*Adapter)

// WithIDField names the attribute holding the document id. Defaults to "id".
func WithIDField(field string) Option {
	return func(a *Adapter) {
		if field != "" {
			a.idField = field
		}
	}
}

// WithCollection stores documents of model in collection instead of the
// collection named after the model.
func WithCollection(model, collection string) Option {
	return func(a *Adapter) {
		a.collections[model] = collection
	}
}

// Adapter persists factory instances into a Store.
type Adapter struct {
	factory.ObjectAdapter

	store       *Store
	idField     string
	collections map[string]string
}

var _ factory.Adapter = (*Adapter)(nil)

// NewAdapter returns an adapter writing into store.
func NewAdapter(store *Store, opts ...Option) *Adapter {
	if store == nil {
		store = NewStore()
	}
	a := &Adapter{store: store, idField: "id", collections: map[string]string{}}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// Store returns the underlying store.
func (a *Adapter) Store() *Store {
	return a.store
}

// Collection returns the collection documents of model are stored in.
func (a *Adapter) Collection(model factory.Model) string {
	if collection, ok := a.collections[model.Name()]; ok {
		return collection
	}
	return model.Name()
}

// Save assigns a uuid to instances without an id and stores them.
func (a *Adapter) Save(ctx context.Context, instance any, model factory.Model) (any, error) {
	id, err := a.id(instance, model)
	if err != nil {
		return nil, err
	}
	if id == "" {
		id = uuid.NewString()
		if instance, err = a.Set(factory.Attrs{a.idField: id}, instance, model); err != nil {
			return nil, err
		}
	}
	if err := a.store.Put(ctx, a.Collection(model), id, instance); err != nil {
		return nil, err
	}
	return instance, nil
}

// Destroy removes the stored document of instance.
func (a *Adapter) Destroy(ctx context.Context, instance any, model factory.Model) (any, error) {
	id, err := a.id(instance, model)
	if err != nil {
		return nil, err
	}
	if err := a.store.Delete(ctx, a.Collection(model), id); err != nil {
		return nil, err
	}
	return instance, nil
}

func (a *Adapter) id(instance any, model factory.Model) (string, error) {
	value, err := a.Get(instance, a.idField, model)
	if err != nil {
		if factory.IsNotFound(err) {
			return "", nil
		}
		return "", err
	}
	switch id := value.(type) {
	case nil:
		return "", nil
	case string:
		return id, nil
	case fmt.Stringer:
		return id.String(), nil
	default:
		return fmt.Sprint(id), nil
	}
}
