package factory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-factory/pkg/activity"
)

// memoryAdapter stores documents in memory and counts persistence calls.
type memoryAdapter struct {
	ObjectAdapter

	mu          sync.Mutex
	nextID      int
	saved       map[string]int
	destroyed   map[string]int
	saveErr     error
	destroyErr  error
	failDestroy string
}

func newMemoryAdapter() *memoryAdapter {
	return &memoryAdapter{saved: map[string]int{}, destroyed: map[string]int{}}
}

func (a *memoryAdapter) Save(_ context.Context, instance any, model Model) (any, error) {
	if a.saveErr != nil {
		return nil, a.saveErr
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nextID++
	if doc, ok := instance.(map[string]any); ok {
		doc["id"] = a.nextID
	}
	a.saved[model.Name()]++
	return instance, nil
}

func (a *memoryAdapter) Destroy(_ context.Context, instance any, model Model) (any, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.destroyErr != nil && model.Name() == a.failDestroy {
		return nil, a.destroyErr
	}
	a.destroyed[model.Name()]++
	return instance, nil
}

func (a *memoryAdapter) counts() (map[string]int, map[string]int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	saved := make(map[string]int, len(a.saved))
	for k, v := range a.saved {
		saved[k] = v
	}
	destroyed := make(map[string]int, len(a.destroyed))
	for k, v := range a.destroyed {
		destroyed[k] = v
	}
	return saved, destroyed
}

func defineCompanyGraph(t *testing.T, r *Registry) {
	t.Helper()
	require.NoError(t, r.Define("company", "company", Template{
		"name": r.Seq(SeqFormat("Company %d")),
	}))
	require.NoError(t, r.Define("job", "job", Template{
		"title":      "Engineer",
		"company_id": r.Assoc("company", WithKey("id")),
	}))
	require.NoError(t, r.Define("person", "person", Template{
		"name": "Bob",
		"job":  r.Assoc("job"),
		"tags": r.AssocAttrsMany("company", 2, WithKey("name")),
	}))
}

func TestRegistryCreateGraphAndCleanUp(t *testing.T) {
	ctx := context.Background()
	adapter := newMemoryAdapter()
	r := New(WithAdapter(adapter))
	defineCompanyGraph(t, r)

	instance, err := r.Create(ctx, "person", nil, nil)
	require.NoError(t, err)

	p := instance.(map[string]any)
	assert.Equal(t, "Bob", p["name"])
	job := p["job"].(map[string]any)
	assert.Equal(t, "Engineer", job["title"])
	assert.NotNil(t, job["company_id"])
	assert.Len(t, p["tags"], 2)

	assert.Equal(t, 3, r.Created())
	saved, _ := adapter.counts()
	assert.Equal(t, map[string]int{"company": 1, "job": 1, "person": 1}, saved)

	require.NoError(t, r.CleanUp(ctx))
	assert.Equal(t, 0, r.Created())
	_, destroyed := adapter.counts()
	assert.Equal(t, map[string]int{"company": 1, "job": 1, "person": 1}, destroyed)

	attrs, err := r.Attrs(ctx, "company", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "Company 1", attrs["name"], "cleanup resets sequences")
}

func TestRegistryCleanUpAttemptsEveryDestroy(t *testing.T) {
	ctx := context.Background()
	adapter := newMemoryAdapter()
	adapter.destroyErr = errors.New("locked")
	adapter.failDestroy = "job"
	r := New(WithAdapter(adapter))
	defineCompanyGraph(t, r)

	_, err := r.CreateMany(ctx, "job", 2, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, r.Created())

	err = r.CleanUp(ctx)
	require.ErrorIs(t, err, adapter.destroyErr)
	_, destroyed := adapter.counts()
	assert.Equal(t, 2, destroyed["company"])
	assert.Equal(t, 0, r.Created())
}

func TestRegistryFailedSaveIsNotRecorded(t *testing.T) {
	adapter := newMemoryAdapter()
	adapter.saveErr = errors.New("disk full")
	r := New(WithAdapter(adapter))
	require.NoError(t, r.Define("company", "company", Template{"name": "Acme"}))

	_, err := r.Create(context.Background(), "company", nil, nil)
	require.ErrorIs(t, err, adapter.saveErr)
	assert.Equal(t, 0, r.Created())
}

func TestRegistryDefineErrors(t *testing.T) {
	r := New()
	require.NoError(t, r.Define("user", "user", Template{}))

	err := r.Define("user", "user", Template{})
	require.ErrorIs(t, err, ErrDefinition)
	var defErr *DefinitionError
	require.ErrorAs(t, err, &defErr)
	assert.Equal(t, "user", defErr.Factory)

	err = r.Define("broken", nil, Template{})
	require.ErrorAs(t, err, &defErr)
	assert.Equal(t, "broken", defErr.Factory)

	assert.Panics(t, func() { r.MustDefine("user", "user", Template{}) })

	_, err = r.Build(context.Background(), "ghost", nil, nil)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, []string{"user"}, r.Names())
}

func TestRegistrySetAdapter(t *testing.T) {
	ctx := context.Background()
	special := newMemoryAdapter()
	r := New()
	require.NoError(t, r.Define("a", "a", Template{}))
	require.NoError(t, r.Define("b", "b", Template{}))

	r.SetAdapter(special, "a")
	assert.Same(t, special, r.Adapter("a"))
	assert.Equal(t, DefaultAdapter{}, r.Adapter("b"))

	_, err := r.Create(ctx, "a", nil, nil)
	require.NoError(t, err)
	_, err = r.Create(ctx, "b", nil, nil)
	require.NoError(t, err)
	saved, _ := special.counts()
	assert.Equal(t, map[string]int{"a": 1}, saved)

	r.SetAdapter(nil, "a")
	assert.Equal(t, DefaultAdapter{}, r.Adapter("a"))
}

func TestRegistryWithOptionsView(t *testing.T) {
	ctx := context.Background()
	var hookSaw []any
	r := New(WithOptionsBag(Options{Values: map[string]any{"env": "test", "region": "eu"}}))
	require.NoError(t, r.Define("user", "user", Template{"name": "Bob"},
		AfterCreate(func(ctx context.Context, instance any, _ Attrs, _ BuildOptions) (any, error) {
			hookSaw = append(hookSaw, OptionsFrom(ctx)["env"])
			return nil, nil
		}),
	))

	var viewCreated int
	view := r.WithOptions(Options{
		AfterCreate: func(context.Context, any, Attrs, BuildOptions) (any, error) {
			viewCreated++
			return nil, nil
		},
		Values: map[string]any{"env": "staging"},
	}, true)

	_, err := view.Create(ctx, "user", nil, nil)
	require.NoError(t, err)
	_, err = r.Create(ctx, "user", nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, viewCreated, "base registry must not run view hooks")
	assert.Equal(t, []any{"staging", "test"}, hookSaw)
	assert.Equal(t, 2, r.Created(), "views share the created-set")
	assert.Equal(t, map[string]any{"env": "staging", "region": "eu"}, view.Options().Values)

	replaced := r.WithOptions(Options{Values: map[string]any{"env": "prod"}}, false)
	assert.Equal(t, map[string]any{"env": "prod"}, replaced.Options().Values)
	assert.Equal(t, "test", r.Options().Values["env"])
}

func TestRegistryBuildHooksOrder(t *testing.T) {
	var order []string
	r := New(WithOptionsBag(Options{
		AfterBuild: func(context.Context, any, Attrs, BuildOptions) (any, error) {
			order = append(order, "registry")
			return nil, nil
		},
	}))
	require.NoError(t, r.Define("user", "user", Template{}, AfterBuild(func(context.Context, any, Attrs, BuildOptions) (any, error) {
		order = append(order, "factory")
		return nil, nil
	})))

	_, err := r.Build(context.Background(), "user", nil, nil)
	require.NoError(t, err)
	_, err = r.BuildSync("user", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"factory", "registry", "factory", "registry"}, order)
}

func TestRegistryBuildSyncRejectsAssociations(t *testing.T) {
	r := New()
	defineCompanyGraph(t, r)

	_, err := r.BuildSync("job", nil, nil)
	require.ErrorIs(t, err, ErrAsyncValue)

	attrs, err := r.AttrsSync("company", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "Company 1", attrs["name"])

	attrs, err = r.AttrsSync("job", Attrs{"company_id": 7}, nil)
	require.NoError(t, err)
	assert.Equal(t, 7, attrs["company_id"])
}

func TestRegistryManyOperations(t *testing.T) {
	ctx := context.Background()
	adapter := newMemoryAdapter()
	r := New(WithAdapter(adapter))
	defineCompanyGraph(t, r)

	list, err := r.AttrsMany(ctx, "company", 2, nil, nil)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	built, err := r.BuildMany(ctx, "company", 2, Attrs{"name": "Shared"}, nil)
	require.NoError(t, err)
	for _, item := range built {
		assert.Equal(t, "Shared", item.(map[string]any)["name"])
	}
	assert.Equal(t, 0, r.Created())

	created, err := r.CreateMany(ctx, "company", 3, nil, nil)
	require.NoError(t, err)
	assert.Len(t, created, 3)
	assert.Equal(t, 3, r.Created())

	_, err = r.CreateMany(ctx, "company", 0, nil, nil)
	assert.True(t, IsValueError(err))
}

func TestRegistryEmitsActivity(t *testing.T) {
	ctx := context.Background()
	capture := &activity.CaptureHook{}
	r := New(WithActivityHooks(activity.Hooks{capture}))
	require.NoError(t, r.Define("user", "user", Template{}))

	view := r.WithOptions(Options{Values: map[string]any{ActorIDKey: "actor-1", TenantIDKey: "tenant-9"}}, false)
	_, err := view.Create(ctx, "user", nil, nil)
	require.NoError(t, err)
	require.NoError(t, view.CleanUp(ctx))

	assert.Equal(t, []string{activity.VerbCreated, activity.VerbDestroyed}, capture.Verbs())
	created := capture.Events[0]
	assert.Equal(t, "user", created.ObjectType)
	assert.Equal(t, "actor-1", created.ActorID)
	assert.Equal(t, "tenant-9", created.TenantID)
	assert.Equal(t, activity.DefaultChannel, created.Channel)
	assert.Equal(t, "user", created.Metadata["model"])
	assert.Equal(t, created.ObjectID, capture.Events[1].ObjectID)
}

func TestRegistryDestroyEventKeepsCreatorIdentity(t *testing.T) {
	ctx := context.Background()
	capture := &activity.CaptureHook{}
	r := New(WithActivityHooks(activity.Hooks{capture}))
	require.NoError(t, r.Define("user", "user", Template{}))

	creator := r.WithOptions(Options{Values: map[string]any{ActorIDKey: "creator", UserIDKey: "u-1", TenantIDKey: "tenant-1"}}, false)
	_, err := creator.Create(ctx, "user", nil, nil)
	require.NoError(t, err)

	other := r.WithOptions(Options{Values: map[string]any{ActorIDKey: "janitor", TenantIDKey: "tenant-2"}}, false)
	require.NoError(t, other.CleanUp(ctx))

	require.Equal(t, []string{activity.VerbCreated, activity.VerbDestroyed}, capture.Verbs())
	destroyed := capture.Events[1]
	assert.Equal(t, "creator", destroyed.ActorID)
	assert.Equal(t, "u-1", destroyed.UserID)
	assert.Equal(t, "tenant-1", destroyed.TenantID)
	assert.Equal(t, capture.Events[0].ObjectID, destroyed.ObjectID)
}

func TestRegistryActivityHookErrorFailsCreate(t *testing.T) {
	capture := &activity.CaptureHook{Err: errors.New("sink down")}
	r := New(WithActivityHooks(activity.Hooks{capture}))
	require.NoError(t, r.Define("user", "user", Template{}))

	_, err := r.Create(context.Background(), "user", nil, nil)
	require.ErrorIs(t, err, capture.Err)
}

func defineJobAndPerson(t *testing.T, r *Registry) {
	t.Helper()
	require.NoError(t, r.Define("job", "job", Template{
		"title":   "Engineer",
		"company": "Foobar Inc.",
		"duties":  Template{"cleaning": false, "writing": true, "computing": true},
	}))
	require.NoError(t, r.Define("person", "person", Template{
		"name": "Bob",
		"job":  r.Assoc("job"),
	}))
}

func TestRegistryBuildPersistsAssociations(t *testing.T) {
	ctx := context.Background()
	adapter := newMemoryAdapter()
	r := New(WithAdapter(adapter))
	defineJobAndPerson(t, r)

	instance, err := r.Build(ctx, "person", nil, nil)
	require.NoError(t, err)

	p := instance.(map[string]any)
	_, personSaved := p["id"]
	assert.False(t, personSaved, "built person must not be saved")
	job := p["job"].(map[string]any)
	assert.Equal(t, "Engineer", job["title"])
	assert.NotNil(t, job["id"], "associated job must be saved")

	saved, _ := adapter.counts()
	assert.Equal(t, map[string]int{"job": 1}, saved)
	assert.Equal(t, 1, r.Created())

	require.NoError(t, r.CleanUp(ctx))
	_, destroyed := adapter.counts()
	assert.Equal(t, map[string]int{"job": 1}, destroyed)
}

func TestRegistryCreateOverridesAndCleanUp(t *testing.T) {
	ctx := context.Background()
	adapter := newMemoryAdapter()
	r := New(WithAdapter(adapter))
	defineJobAndPerson(t, r)

	instance, err := r.Create(ctx, "job", Attrs{"title": "Developer"}, nil)
	require.NoError(t, err)
	job := instance.(map[string]any)
	assert.Equal(t, "Developer", job["title"])
	assert.Equal(t, "Foobar Inc.", job["company"])

	require.NoError(t, r.CleanUp(ctx))
	_, destroyed := adapter.counts()
	assert.Equal(t, map[string]int{"job": 1}, destroyed)
	assert.Equal(t, 0, r.Created())
}

func TestRegistryBuildManyPadsAndTruncatesOverrides(t *testing.T) {
	ctx := context.Background()
	r := New()
	defineJobAndPerson(t, r)

	jobs, err := r.BuildMany(ctx, "job", 10, []Attrs{{"title": "Scientist"}}, nil)
	require.NoError(t, err)
	require.Len(t, jobs, 10)
	assert.Equal(t, "Scientist", jobs[0].(map[string]any)["title"])
	for i, job := range jobs[1:] {
		assert.Equal(t, "Engineer", job.(map[string]any)["title"], "item %d", i+1)
	}

	jobs, err = r.BuildMany(ctx, "job", 2, []any{Attrs{}, Attrs{}, Attrs{"title": "x"}}, nil)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	for _, job := range jobs {
		assert.Equal(t, "Engineer", job.(map[string]any)["title"])
	}
}
