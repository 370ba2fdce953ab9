package hydrate

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"
)

// Context identifies the model an attribute payload is decoded for.
type Context struct {
	Model string
}

// PreHook lets callers mutate or normalise the payload before decoding.
type PreHook func(Context, map[string]any) (map[string]any, error)

// PostHook lets callers adjust or validate the hydrated instance after decoding.
type PostHook func(Context, any) error

// DecoderOption configures a Decoder instance.
type DecoderOption func(*Decoder)

// Decoder assigns resolved attribute maps onto struct instances. Attribute
// names are matched against the configured tags, then against field names
// ignoring case and underscores.
type Decoder struct {
	preHooks        []PreHook
	postHooks       []PostHook
	tags            []string
	disallowUnknown bool
}

// WithPreHook applies hook prior to decoding.
func WithPreHook(hook PreHook) DecoderOption {
	return func(d *Decoder) {
		d.preHooks = append(d.preHooks, hook)
	}
}

// WithPostHook applies hook after decoding completes.
func WithPostHook(hook PostHook) DecoderOption {
	return func(d *Decoder) {
		d.postHooks = append(d.postHooks, hook)
	}
}

// WithDisallowUnknownFields rejects attributes that match no field.
func WithDisallowUnknownFields() DecoderOption {
	return func(d *Decoder) {
		d.disallowUnknown = true
	}
}

// WithTagNames replaces the struct tags consulted for attribute names.
func WithTagNames(tags ...string) DecoderOption {
	return func(d *Decoder) {
		d.tags = append([]string(nil), tags...)
	}
}

// DefaultTags are consulted, in order, when no tag names are configured.
var DefaultTags = []string{"factory", "json"}

func NewDecoder(opts ...DecoderOption) *Decoder {
	d := &Decoder{tags: DefaultTags}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Decode assigns every entry of payload to the matching field of target,
// which must be a non-nil pointer to a struct.
func (d *Decoder) Decode(ctx Context, payload map[string]any, target any) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("hydrate: target for model %q must be a non-nil struct pointer, got %T", ctx.Model, target)
	}

	current := payload
	for _, hook := range d.preHooks {
		if hook == nil {
			continue
		}
		next, err := hook(ctx, current)
		if err != nil {
			return fmt.Errorf("hydrate: pre-hook for model %q failed: %w", ctx.Model, err)
		}
		if next != nil {
			current = next
		}
	}

	if err := d.decodeStruct(rv.Elem(), current); err != nil {
		return fmt.Errorf("hydrate: decode model %q: %w", ctx.Model, err)
	}

	for _, hook := range d.postHooks {
		if hook == nil {
			continue
		}
		if err := hook(ctx, target); err != nil {
			return fmt.Errorf("hydrate: post-hook for model %q failed: %w", ctx.Model, err)
		}
	}
	return nil
}

func (d *Decoder) decodeStruct(dst reflect.Value, payload map[string]any) error {
	index := fieldsOf(dst.Type(), d.tags)
	for key, value := range payload {
		field, ok := index.lookup(key)
		if !ok {
			if d.disallowUnknown {
				return fmt.Errorf("unknown field %q for %s", key, dst.Type())
			}
			continue
		}
		target, ok := fieldByIndex(dst, field.index, true)
		if !ok {
			return fmt.Errorf("field %q: cannot allocate embedded %s", key, dst.Type())
		}
		if err := d.assign(target, value); err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
	}
	return nil
}

func (d *Decoder) assign(dst reflect.Value, value any) error {
	if value == nil {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}
	src := reflect.ValueOf(value)
	dt := dst.Type()

	if src.Type().AssignableTo(dt) {
		dst.Set(src)
		return nil
	}
	if src.Kind() == reflect.Pointer && !src.IsNil() && src.Elem().Type().AssignableTo(dt) {
		dst.Set(src.Elem())
		return nil
	}

	switch dt.Kind() {
	case reflect.Pointer:
		elem := reflect.New(dt.Elem())
		if err := d.assign(elem.Elem(), value); err != nil {
			return err
		}
		dst.Set(elem)
		return nil
	case reflect.Struct:
		if dt == reflect.TypeOf(time.Time{}) {
			if s, ok := value.(string); ok {
				parsed, err := time.Parse(time.RFC3339, s)
				if err != nil {
					return err
				}
				dst.Set(reflect.ValueOf(parsed))
				return nil
			}
		}
		if m, ok := value.(map[string]any); ok {
			return d.decodeStruct(dst, m)
		}
	case reflect.Slice:
		if src.Kind() == reflect.Slice || src.Kind() == reflect.Array {
			out := reflect.MakeSlice(dt, src.Len(), src.Len())
			for i := 0; i < src.Len(); i++ {
				if err := d.assign(out.Index(i), src.Index(i).Interface()); err != nil {
					return fmt.Errorf("index %d: %w", i, err)
				}
			}
			dst.Set(out)
			return nil
		}
	case reflect.Map:
		if m, ok := value.(map[string]any); ok && dt.Key().Kind() == reflect.String {
			out := reflect.MakeMapWithSize(dt, len(m))
			for key, item := range m {
				elem := reflect.New(dt.Elem()).Elem()
				if err := d.assign(elem, item); err != nil {
					return fmt.Errorf("key %q: %w", key, err)
				}
				out.SetMapIndex(reflect.ValueOf(key).Convert(dt.Key()), elem)
			}
			dst.Set(out)
			return nil
		}
	case reflect.String:
		if src.Kind() == reflect.String {
			dst.Set(src.Convert(dt))
			return nil
		}
	default:
		if isNumber(dt.Kind()) && isNumber(src.Kind()) {
			dst.Set(src.Convert(dt))
			return nil
		}
		if dt.Kind() == reflect.Bool && src.Kind() == reflect.Bool {
			dst.Set(src.Convert(dt))
			return nil
		}
	}
	return fmt.Errorf("cannot assign %T to %s", value, dt)
}

func isNumber(kind reflect.Kind) bool {
	switch kind {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// Field describes an exported struct field and the attribute name it maps to.
type Field struct {
	// Name is the attribute name: the first non-empty tag value or the Go
	// field name.
	Name string
	// GoName is the Go field name.
	GoName string
	Tagged bool
	Value  any
	index  []int
}

type fieldIndex struct {
	fields []Field
	exact  map[string]int
	folded map[string]int
}

func (idx *fieldIndex) lookup(name string) (Field, bool) {
	if i, ok := idx.exact[name]; ok {
		return idx.fields[i], true
	}
	if i, ok := idx.folded[fold(name)]; ok {
		return idx.fields[i], true
	}
	return Field{}, false
}

type cacheKey struct {
	typ  reflect.Type
	tags string
}

var indexCache sync.Map

func fieldsOf(t reflect.Type, tags []string) *fieldIndex {
	key := cacheKey{typ: t, tags: strings.Join(tags, ",")}
	if cached, ok := indexCache.Load(key); ok {
		return cached.(*fieldIndex)
	}
	idx := &fieldIndex{exact: map[string]int{}, folded: map[string]int{}}
	collectFields(t, tags, nil, idx)
	indexCache.Store(key, idx)
	return idx
}

// collectFields indexes the fields of t. Untagged embedded structs, exported
// or not, contribute their fields; fields declared closer to t win over
// promoted ones with the same name.
func collectFields(t reflect.Type, tags []string, parent []int, idx *fieldIndex) {
	collect(t, tags, parent, idx, map[reflect.Type]bool{t: true})
}

func collect(t reflect.Type, tags []string, parent []int, idx *fieldIndex, visiting map[reflect.Type]bool) {
	type embedded struct {
		typ  reflect.Type
		path []int
	}
	var nested []embedded

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		name, tagged, skip := tagName(sf, tags)
		if skip {
			continue
		}
		path := append(append([]int(nil), parent...), i)
		if sf.Anonymous && !tagged {
			ft := sf.Type
			if ft.Kind() == reflect.Pointer {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				nested = append(nested, embedded{typ: ft, path: path})
				continue
			}
		}
		if !sf.IsExported() {
			continue
		}
		idx.add(Field{Name: name, GoName: sf.Name, Tagged: tagged, index: path})
	}

	for _, e := range nested {
		if visiting[e.typ] {
			continue
		}
		visiting[e.typ] = true
		collect(e.typ, tags, e.path, idx, visiting)
		delete(visiting, e.typ)
	}
}

func (idx *fieldIndex) add(field Field) {
	if _, exists := idx.exact[field.Name]; exists {
		return
	}
	idx.fields = append(idx.fields, field)
	pos := len(idx.fields) - 1
	idx.exact[field.Name] = pos
	for _, key := range []string{fold(field.Name), fold(field.GoName)} {
		if _, exists := idx.folded[key]; !exists {
			idx.folded[key] = pos
		}
	}
}

// fieldByIndex walks index like reflect.Value.FieldByIndex. A nil embedded
// pointer is allocated when alloc is set and it is settable; otherwise the
// field is reported unreachable.
func fieldByIndex(v reflect.Value, index []int, alloc bool) (reflect.Value, bool) {
	for i, x := range index {
		if i > 0 && v.Kind() == reflect.Pointer {
			if v.IsNil() {
				if !alloc || !v.CanSet() {
					return reflect.Value{}, false
				}
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = v.Field(x)
	}
	return v, true
}

func tagName(sf reflect.StructField, tags []string) (name string, tagged, skip bool) {
	for _, tag := range tags {
		value, ok := sf.Tag.Lookup(tag)
		if !ok {
			continue
		}
		name, _, _ = strings.Cut(value, ",")
		if name == "-" {
			return "", false, true
		}
		if name != "" {
			return name, true, false
		}
	}
	return sf.Name, false, false
}

func fold(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, "_", ""))
}

// Fields lists the exported fields of a struct or struct pointer with their
// current values, naming them after the first matching tag in tags.
func Fields(target any, tags ...string) []Field {
	if len(tags) == 0 {
		tags = DefaultTags
	}
	rv := reflect.Indirect(reflect.ValueOf(target))
	if rv.Kind() != reflect.Struct {
		return nil
	}
	idx := fieldsOf(rv.Type(), tags)
	out := make([]Field, 0, len(idx.fields))
	for _, field := range idx.fields {
		value, ok := fieldByIndex(rv, field.index, false)
		if !ok {
			continue
		}
		field.Value = value.Interface()
		out = append(out, field)
	}
	return out
}

// Lookup reads attribute name from a struct, struct pointer or attribute map.
func Lookup(target any, name string, tags ...string) (any, bool) {
	if m, ok := target.(map[string]any); ok {
		value, found := m[name]
		return value, found
	}
	if len(tags) == 0 {
		tags = DefaultTags
	}
	rv := reflect.Indirect(reflect.ValueOf(target))
	if rv.Kind() != reflect.Struct {
		return nil, false
	}
	field, ok := fieldsOf(rv.Type(), tags).lookup(name)
	if !ok {
		return nil, false
	}
	value, ok := fieldByIndex(rv, field.index, false)
	if !ok {
		return nil, false
	}
	return value.Interface(), true
}
