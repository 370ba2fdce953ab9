package factory

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestExpandMaps(t *testing.T) {
	shared := map[string]any{"a": 1}
	cases := []struct {
		name    string
		value   any
		want    []map[string]any
		wantErr bool
	}{
		{name: "nil", value: nil, want: []map[string]any{{}, {}, {}}},
		{name: "shared map", value: shared, want: []map[string]any{shared, shared, shared}},
		{name: "padded list", value: []map[string]any{{"a": 1}}, want: []map[string]any{{"a": 1}, {}, {}}},
		{name: "any list", value: []any{nil, map[string]any{"b": 2}}, want: []map[string]any{{}, {"b": 2}, {}}},
		{name: "long list truncated", value: []map[string]any{{}, {}, {"c": 3}, {"d": 4}}, want: []map[string]any{{}, {}, {"c": 3}}},
		{name: "long any list truncated", value: []any{nil, nil, nil, "ignored"}, want: []map[string]any{{}, {}, {}}},
		{name: "bad element", value: []any{"x"}, wantErr: true},
		{name: "bad type", value: 12, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := expandMaps("test", "overrides", 3, tc.value)
			if tc.wantErr {
				if !IsValueError(err) {
					t.Fatalf("expected value error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("expand: %v", err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("expanded maps mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAttrsManyKeepsInputOrder(t *testing.T) {
	r := New()
	f, err := NewFactory(Doc("user"), Template{
		"id":   r.Seq(),
		"role": "member",
	})
	if err != nil {
		t.Fatalf("define: %v", err)
	}

	list, err := f.AttrsMany(context.Background(), 3, []Attrs{{"role": "admin"}, {"role": "owner"}}, nil)
	if err != nil {
		t.Fatalf("attrs many: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 items, got %d", len(list))
	}
	roles := []any{list[0]["role"], list[1]["role"], list[2]["role"]}
	if diff := cmp.Diff([]any{"admin", "owner", "member"}, roles); diff != "" {
		t.Fatalf("roles mismatch (-want +got):\n%s", diff)
	}

	seen := map[any]bool{}
	for _, attrs := range list {
		seen[attrs["id"]] = true
	}
	if len(seen) != 3 {
		t.Fatalf("expected distinct sequence values, got %v", seen)
	}
}

func TestManyRejectsInvalidCounts(t *testing.T) {
	f, err := NewFactory(Doc("user"), Template{})
	if err != nil {
		t.Fatalf("define: %v", err)
	}
	ctx := context.Background()

	if _, err := f.AttrsMany(ctx, 0, nil, nil); !IsValueError(err) {
		t.Fatalf("attrs many: expected value error, got %v", err)
	}
	if _, err := f.BuildMany(ctx, ObjectAdapter{}, -1, nil, nil, true); !IsValueError(err) {
		t.Fatalf("build many: expected value error, got %v", err)
	}
	if _, err := f.CreateMany(ctx, ObjectAdapter{}, 2, "bad", nil); !IsValueError(err) {
		t.Fatalf("create many: expected value error, got %v", err)
	}
}

func TestBuildManyHooksPerItem(t *testing.T) {
	var seen []any
	hook := func(_ context.Context, instance any, overrides Attrs, opts BuildOptions) (any, error) {
		return map[string]any{"wrapped": instance, "opt": opts["n"]}, nil
	}
	f, err := NewFactory(Doc("user"), Template{"name": "x"}, AfterBuild(hook))
	if err != nil {
		t.Fatalf("define: %v", err)
	}

	ctx := context.Background()
	withHooks, err := f.BuildMany(ctx, ObjectAdapter{}, 2, nil, []BuildOptions{{"n": 1}, {"n": 2}}, true)
	if err != nil {
		t.Fatalf("build many: %v", err)
	}
	for _, item := range withHooks {
		seen = append(seen, item.(map[string]any)["opt"])
	}
	if diff := cmp.Diff([]any{1, 2}, seen); diff != "" {
		t.Fatalf("hook options mismatch (-want +got):\n%s", diff)
	}

	plain, err := f.BuildMany(ctx, ObjectAdapter{}, 2, nil, nil, false)
	if err != nil {
		t.Fatalf("build many without hooks: %v", err)
	}
	if _, wrapped := plain[0].(map[string]any)["wrapped"]; wrapped {
		t.Fatalf("hook ran with runHooks=false")
	}
}

func TestCreateManyFailsOnFirstError(t *testing.T) {
	boom := errors.New("save failed")
	f, err := NewFactory(account{}, Template{"owner": "a"}, AfterBuild(func(_ context.Context, instance any, overrides Attrs, _ BuildOptions) (any, error) {
		if overrides["owner"] == "broken" {
			instance.(*account).fail = boom
		}
		return nil, nil
	}))
	if err != nil {
		t.Fatalf("define: %v", err)
	}

	_, err = f.CreateMany(context.Background(), DefaultAdapter{}, 3, []Attrs{nil, {"owner": "broken"}}, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected save failure, got %v", err)
	}

	saved, err := f.CreateMany(context.Background(), DefaultAdapter{}, 2, nil, nil)
	if err != nil {
		t.Fatalf("create many: %v", err)
	}
	for i, item := range saved {
		if !item.(*account).Saved {
			t.Fatalf("item %d not saved", i)
		}
	}
}
