// Package layering combines option bags ordered from strongest to weakest.
package layering

import "reflect"

// MergeLayers composes values ordered from strongest to weakest. Nil pointers,
// funcs, maps, slices and interfaces of a stronger layer fall back to the
// weaker value; maps are merged key by key and structs field by field.
// Scalars of the strongest layer always win, zero or not.
func MergeLayers[T any](layers ...T) T {
	var zero T
	if len(layers) == 0 {
		return zero
	}

	merged := reflect.ValueOf(layers[len(layers)-1])
	for i := len(layers) - 2; i >= 0; i-- {
		merged = merge(reflect.ValueOf(layers[i]), merged)
	}
	if !merged.IsValid() {
		return zero
	}
	out, _ := copyOf(merged).Interface().(T)
	return out
}

// MergeShallow unions maps ordered strongest to weakest. A key present in a
// stronger map replaces the weaker entry as a whole. The result is a new map;
// nil is returned when every layer is nil.
func MergeShallow(layers ...map[string]any) map[string]any {
	var out map[string]any
	for i := len(layers) - 1; i >= 0; i-- {
		if layers[i] == nil {
			continue
		}
		if out == nil {
			out = make(map[string]any, len(layers[i]))
		}
		for key, value := range layers[i] {
			out[key] = value
		}
	}
	return out
}

func merge(strong, weak reflect.Value) reflect.Value {
	if !strong.IsValid() {
		return copyOf(weak)
	}
	if !weak.IsValid() || weak.Type() != strong.Type() {
		weak = reflect.Value{}
	}

	switch strong.Kind() {
	case reflect.Func, reflect.Chan, reflect.Slice:
		if strong.IsNil() && weak.IsValid() {
			return copyOf(weak)
		}
		return copyOf(strong)
	case reflect.Pointer:
		if strong.IsNil() {
			return orZero(copyOf(weak), strong.Type())
		}
		var weakElem reflect.Value
		if weak.IsValid() && !weak.IsNil() {
			weakElem = weak.Elem()
		}
		out := reflect.New(strong.Type().Elem())
		out.Elem().Set(merge(strong.Elem(), weakElem))
		return out
	case reflect.Interface:
		if strong.IsNil() {
			return orZero(copyOf(weak), strong.Type())
		}
		var weakElem reflect.Value
		if weak.IsValid() && !weak.IsNil() {
			weakElem = weak.Elem()
		}
		out := reflect.New(strong.Type()).Elem()
		out.Set(merge(strong.Elem(), weakElem))
		return out
	case reflect.Map:
		if strong.IsNil() {
			return orZero(copyOf(weak), strong.Type())
		}
		out := reflect.MakeMapWithSize(strong.Type(), strong.Len())
		if weak.IsValid() && !weak.IsNil() {
			for iter := weak.MapRange(); iter.Next(); {
				out.SetMapIndex(iter.Key(), copyOf(iter.Value()))
			}
		}
		for iter := strong.MapRange(); iter.Next(); {
			out.SetMapIndex(iter.Key(), merge(iter.Value(), out.MapIndex(iter.Key())))
		}
		return out
	case reflect.Struct:
		out := reflect.New(strong.Type()).Elem()
		for i := 0; i < strong.NumField(); i++ {
			if !out.Field(i).CanSet() {
				continue
			}
			var weakField reflect.Value
			if weak.IsValid() {
				weakField = weak.Field(i)
			}
			out.Field(i).Set(orZero(merge(strong.Field(i), weakField), strong.Field(i).Type()))
		}
		return out
	default:
		return copyOf(strong)
	}
}

// copyOf deep copies maps, slices, pointers and structs so merged results
// never alias their layers. Funcs and channels are shared.
func copyOf(v reflect.Value) reflect.Value {
	if !v.IsValid() {
		return v
	}

	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		out := reflect.New(v.Type().Elem())
		out.Elem().Set(copyOf(v.Elem()))
		return out
	case reflect.Interface:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		out := reflect.New(v.Type()).Elem()
		out.Set(copyOf(v.Elem()))
		return out
	case reflect.Map:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		out := reflect.MakeMapWithSize(v.Type(), v.Len())
		for iter := v.MapRange(); iter.Next(); {
			out.SetMapIndex(iter.Key(), copyOf(iter.Value()))
		}
		return out
	case reflect.Slice:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(copyOf(v.Index(i)))
		}
		return out
	case reflect.Struct:
		out := reflect.New(v.Type()).Elem()
		for i := 0; i < v.NumField(); i++ {
			if out.Field(i).CanSet() {
				out.Field(i).Set(copyOf(v.Field(i)))
			}
		}
		return out
	case reflect.Array:
		out := reflect.New(v.Type()).Elem()
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(copyOf(v.Index(i)))
		}
		return out
	default:
		out := reflect.New(v.Type()).Elem()
		out.Set(v)
		return out
	}
}

func orZero(v reflect.Value, t reflect.Type) reflect.Value {
	if !v.IsValid() {
		return reflect.Zero(t)
	}
	return v
}
