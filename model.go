package factory

import (
	"fmt"
	"reflect"
)

// Model describes what a factory produces: a named struct type, whose
// instances are pointers to that struct, or a document model whose instances
// are map[string]any.
type Model struct {
	name string
	typ  reflect.Type
}

// Doc returns a document model. Instances built for it are attribute maps.
func Doc(name string) Model {
	return Model{name: name}
}

// ModelOf derives a Model from a prototype. Accepted values are a Model, a
// reflect.Type, a string (document model name), a named struct value or a
// pointer to one.
func ModelOf(v any) (Model, error) {
	switch value := v.(type) {
	case nil:
		return Model{}, &DefinitionError{Reason: "model is required"}
	case Model:
		if value.IsZero() {
			return Model{}, &DefinitionError{Reason: "model is required"}
		}
		return value, nil
	case string:
		if value == "" {
			return Model{}, &DefinitionError{Reason: "document model name must not be empty"}
		}
		return Doc(value), nil
	case reflect.Type:
		return modelFromType(value)
	default:
		return modelFromType(reflect.TypeOf(v))
	}
}

func modelFromType(t reflect.Type) (Model, error) {
	if t == nil {
		return Model{}, &DefinitionError{Reason: "model is required"}
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return Model{}, &DefinitionError{Reason: fmt.Sprintf("unsupported model kind %s", t.Kind())}
	}
	if t.Name() == "" {
		return Model{}, &DefinitionError{Reason: "model struct type must be named"}
	}
	return Model{name: t.Name(), typ: t}, nil
}

// Name returns the struct type name or the document model name.
func (m Model) Name() string {
	return m.name
}

// Type returns the struct type, or nil for document models.
func (m Model) Type() reflect.Type {
	return m.typ
}

// IsDocument reports whether instances are attribute maps.
func (m Model) IsDocument() bool {
	return m.typ == nil && m.name != ""
}

// IsZero reports whether m is the zero Model.
func (m Model) IsZero() bool {
	return m.typ == nil && m.name == ""
}

// New returns an empty instance: a pointer to a zero struct, or an empty map.
func (m Model) New() any {
	if m.typ == nil {
		return map[string]any{}
	}
	return reflect.New(m.typ).Interface()
}

func (m Model) String() string {
	if m.typ != nil {
		return m.typ.String()
	}
	return m.name
}
