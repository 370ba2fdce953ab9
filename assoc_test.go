package factory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssocVariants(t *testing.T) {
	ctx := context.Background()
	adapter := newMemoryAdapter()
	r := New(WithAdapter(adapter))
	require.NoError(t, r.Define("company", "company", Template{
		"name": r.Seq(SeqFormat("Company %d")),
	}))
	require.NoError(t, r.Define("team", "team", Template{
		"lead":      r.AssocAttrs("company", WithKey("name"), WithOverrides(Attrs{"name": "Lead Co"})),
		"sponsor":   r.AssocAttrs("company"),
		"members":   r.AssocMany("company", 2, WithKey("id")),
		"partners":  r.AssocMany("company", 2, WithEachOverrides(Attrs{"name": "P1"}, Attrs{"name": "P2"})),
		"prospects": r.AssocAttrsMany("company", 3, WithKey("name"), WithOverrides(Attrs{"name": "Prospect"})),
	}))

	attrs, err := r.Attrs(ctx, "team", nil, nil)
	require.NoError(t, err)

	assert.Equal(t, "Lead Co", attrs["lead"])
	assert.IsType(t, Attrs{}, attrs["sponsor"])
	assert.Len(t, attrs["members"], 2)
	for _, id := range attrs["members"].([]any) {
		assert.IsType(t, 0, id)
	}
	partners := attrs["partners"].([]any)
	require.Len(t, partners, 2)
	assert.Equal(t, "P1", partners[0].(map[string]any)["name"])
	assert.Equal(t, "P2", partners[1].(map[string]any)["name"])
	assert.Equal(t, []any{"Prospect", "Prospect", "Prospect"}, attrs["prospects"])

	assert.Equal(t, 4, r.Created(), "only AssocMany creates instances")
}

func TestAssocAttrsManyRejectsInvalidCount(t *testing.T) {
	r := New()
	require.NoError(t, r.Define("company", "company", Template{}))

	_, err := r.AssocAttrsMany("company", 0).Generate(context.Background())
	assert.True(t, IsValueError(err))
	assert.Contains(t, err.Error(), "invalid number of items requested")
}

func TestAssocUnknownFactory(t *testing.T) {
	r := New()
	_, err := r.Assoc("ghost").Generate(context.Background())
	assert.True(t, IsNotFound(err))
}

func TestAssocUnknownKey(t *testing.T) {
	r := New()
	require.NoError(t, r.Define("company", "company", Template{"name": "Acme"}))
	_, err := r.Assoc("company", WithKey("id")).Generate(context.Background())
	assert.True(t, IsNotFound(err))
}

func TestAssocUsesCallingView(t *testing.T) {
	ctx := context.Background()
	r := New()
	var seen []any
	require.NoError(t, r.Define("company", "company", Template{"name": "Acme"},
		AfterCreate(func(ctx context.Context, _ any, _ Attrs, _ BuildOptions) (any, error) {
			seen = append(seen, OptionsFrom(ctx)["tenant"])
			return nil, nil
		}),
	))
	require.NoError(t, r.Define("job", "job", Template{"company": r.Assoc("company")}))

	view := r.WithOptions(Options{Values: map[string]any{"tenant": "t-1"}}, false)
	_, err := view.Create(ctx, "job", nil, nil)
	require.NoError(t, err)

	assert.Equal(t, []any{"t-1"}, seen)
	assert.Equal(t, 2, r.Created())
}

type identified struct {
	ID int `json:"id"`
}

type tenant struct {
	identified
	Name string `json:"name"`
}

type seat struct {
	TenantID int `json:"tenant_id"`
}

func TestAssocKeyOnPromotedField(t *testing.T) {
	r := New()
	require.NoError(t, r.Define("tenant", tenant{}, Template{
		"id":   r.Seq(SeqID("tenant")),
		"name": "Acme",
	}))
	require.NoError(t, r.Define("seat", seat{}, Template{
		"tenant_id": r.Assoc("tenant", WithKey("id")),
	}))

	instance, err := r.Build(context.Background(), "seat", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, instance.(*seat).TenantID)
}
