package hydrate

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

type job struct {
	Title   string `json:"title"`
	Company string `json:"company"`
	Duties  duties `json:"duties"`
}

type duties struct {
	Cleaning bool
	Cooking  bool
}

type base struct {
	ID int64 `db:"id"`
}

type person struct {
	base
	Name      string  `factory:"name"`
	FirstName string  `json:"first_name,omitempty"`
	Age       int     `json:"age"`
	Score     float64 `json:"score"`
	Job       *job    `json:"job"`
	Tags      []string
	Extra     map[string]int
	Born      time.Time
	Ignored   string `json:"-"`
	secret    string
}

func TestDecoderAssignsAttributes(t *testing.T) {
	assigned := &job{Title: "Engineer"}
	born := "2001-02-03T04:05:06Z"

	cases := []struct {
		name      string
		payload   map[string]any
		opts      []DecoderOption
		expect    person
		expectErr string
	}{
		{
			name:    "tags and field names",
			payload: map[string]any{"name": "Ada", "first_name": "Ada", "AGE": 36, "score": int64(7)},
			expect:  person{Name: "Ada", FirstName: "Ada", Age: 36, Score: 7},
		},
		{
			name:    "snake case folds onto field names",
			payload: map[string]any{"id": 9, "Tags": []any{"a", "b"}, "extra": map[string]any{"x": 1}},
			expect:  person{base: base{ID: 9}, Tags: []string{"a", "b"}, Extra: map[string]int{"x": 1}},
		},
		{
			name:    "pointers are kept",
			payload: map[string]any{"job": assigned},
			expect:  person{Job: assigned},
		},
		{
			name:    "nested maps become structs",
			payload: map[string]any{"job": map[string]any{"title": "Chef", "duties": map[string]any{"cooking": true}}},
			expect:  person{Job: &job{Title: "Chef", Duties: duties{Cooking: true}}},
		},
		{
			name:    "timestamps parse from strings",
			payload: map[string]any{"born": born},
			expect:  person{Born: time.Date(2001, 2, 3, 4, 5, 6, 0, time.UTC)},
		},
		{
			name:    "unknown attributes are ignored",
			payload: map[string]any{"nickname": "x", "secret": "s", "Ignored": "y"},
			expect:  person{},
		},
		{
			name:      "unknown attributes rejected",
			payload:   map[string]any{"nickname": "x"},
			opts:      []DecoderOption{WithDisallowUnknownFields()},
			expectErr: `unknown field "nickname"`,
		},
		{
			name:      "type mismatch",
			payload:   map[string]any{"age": "old"},
			expectErr: `field "age": cannot assign string to int`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got person
			err := NewDecoder(tc.opts...).Decode(Context{Model: "person"}, tc.payload, &got)
			if tc.expectErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.expectErr) {
					t.Fatalf("expected error containing %q, got %v", tc.expectErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected decode error: %v", err)
			}
			if !reflect.DeepEqual(tc.expect, got) {
				t.Fatalf("decoded mismatch:\nwant: %#v\n got: %#v", tc.expect, got)
			}
		})
	}
}

func TestDecoderHooks(t *testing.T) {
	decoder := NewDecoder(
		WithPreHook(func(ctx Context, payload map[string]any) (map[string]any, error) {
			out := map[string]any{"title": strings.ToUpper(payload["title"].(string))}
			return out, nil
		}),
		WithPostHook(func(ctx Context, target any) error {
			target.(*job).Company = ctx.Model
			return nil
		}),
	)

	var got job
	if err := decoder.Decode(Context{Model: "acme"}, map[string]any{"title": "chef"}, &got); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Title != "CHEF" || got.Company != "acme" {
		t.Fatalf("hooks not applied: %#v", got)
	}

	failing := NewDecoder(WithPostHook(func(Context, any) error { return errors.New("nope") }))
	if err := failing.Decode(Context{Model: "job"}, map[string]any{}, &got); err == nil || !strings.Contains(err.Error(), "post-hook") {
		t.Fatalf("expected post-hook error, got %v", err)
	}
}

func TestDecoderRejectsNonPointer(t *testing.T) {
	if err := NewDecoder().Decode(Context{Model: "job"}, map[string]any{}, job{}); err == nil {
		t.Fatalf("expected error for non-pointer target")
	}
}

func TestLookupAndFields(t *testing.T) {
	p := &person{Name: "Ada", Age: 36}
	if value, ok := Lookup(p, "name"); !ok || value != "Ada" {
		t.Fatalf("lookup by tag: %v %v", value, ok)
	}
	if value, ok := Lookup(p, "Age"); !ok || value != 36 {
		t.Fatalf("lookup by field name: %v %v", value, ok)
	}
	if _, ok := Lookup(p, "missing"); ok {
		t.Fatalf("expected missing attribute")
	}
	if value, ok := Lookup(map[string]any{"id": 3}, "id"); !ok || value != 3 {
		t.Fatalf("lookup in map: %v %v", value, ok)
	}

	fields := Fields(&base{ID: 4}, "db")
	if len(fields) != 1 || fields[0].Name != "id" || !fields[0].Tagged || fields[0].Value != int64(4) {
		t.Fatalf("unexpected fields: %#v", fields)
	}
}

type Audit struct {
	CreatedBy string `json:"created_by"`
}

type stamp struct {
	Version int `json:"version"`
}

type account struct {
	base
	*Audit
	*stamp
	ID   string `json:"id"`
	Name string `json:"name"`
}

func TestEmbeddedStructFields(t *testing.T) {
	var got account
	err := NewDecoder().Decode(Context{Model: "account"}, map[string]any{
		"id":         "acc-1",
		"name":       "Ada",
		"created_by": "ops",
	}, &got)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != "acc-1" || got.base.ID != 0 {
		t.Fatalf("outer field must shadow the promoted one: %#v", got)
	}
	if got.Audit == nil || got.CreatedBy != "ops" {
		t.Fatalf("expected embedded pointer to be allocated, got %#v", got.Audit)
	}
	if got.stamp != nil {
		t.Fatalf("untouched embedded pointer must stay nil")
	}

	if value, ok := Lookup(&got, "version"); ok {
		t.Fatalf("nil embedded pointer field must be unreachable, got %v", value)
	}
	if value, ok := Lookup(got, "created_by"); !ok || value != "ops" {
		t.Fatalf("lookup through embedded pointer: %v %v", value, ok)
	}

	err = NewDecoder().Decode(Context{Model: "account"}, map[string]any{"version": 2}, &account{})
	if err == nil || !strings.Contains(err.Error(), `field "version"`) {
		t.Fatalf("expected unexported nil embedded pointer to be rejected, got %v", err)
	}

	var p person
	if err := NewDecoder().Decode(Context{Model: "person"}, map[string]any{"id": 42, "name": "Ada"}, &p); err != nil {
		t.Fatalf("decode person: %v", err)
	}
	if p.ID != 42 || p.Name != "Ada" {
		t.Fatalf("promoted field not assigned: %#v", p)
	}
	if value, ok := Lookup(p, "id"); !ok || value != int64(42) {
		t.Fatalf("lookup promoted field: %v %v", value, ok)
	}
}
