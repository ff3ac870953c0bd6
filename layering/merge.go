package layering

import "reflect"

// MergeLayers composes state maps ordered from strongest to weakest, returning
// a new map that keeps explicit values from stronger layers while filling any
// missing keys from weaker ones. Nested objects merge key by key; arrays and
// scalars from the stronger layer replace the weaker value wholesale. A nil
// value in a stronger layer falls through to the weaker layer.
func MergeLayers(layers ...map[string]any) map[string]any {
	if len(layers) == 0 {
		return map[string]any{}
	}

	merged := CloneMap(layers[len(layers)-1])
	if merged == nil {
		merged = map[string]any{}
	}
	for i := len(layers) - 2; i >= 0; i-- {
		merged = mergeMaps(layers[i], merged)
	}
	return merged
}

// Merge returns strong layered over weak using the same rules as MergeLayers.
// Inputs are never mutated.
func Merge(strong, weak any) any {
	if strong == nil {
		return Clone(weak)
	}
	strongMap, ok := strong.(map[string]any)
	if !ok {
		return Clone(strong)
	}
	weakMap, ok := weak.(map[string]any)
	if !ok {
		return CloneMap(strongMap)
	}
	return mergeMaps(strongMap, weakMap)
}

func mergeMaps(strong, weak map[string]any) map[string]any {
	out := make(map[string]any, len(strong)+len(weak))
	for key, value := range weak {
		out[key] = Clone(value)
	}
	for key, value := range strong {
		if value == nil {
			if _, exists := out[key]; !exists {
				out[key] = nil
			}
			continue
		}
		out[key] = Merge(value, out[key])
	}
	return out
}

// CloneMap deep copies a state map. A nil map clones to nil.
func CloneMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	out := make(map[string]any, len(src))
	for key, value := range src {
		out[key] = Clone(value)
	}
	return out
}

// Clone deep copies value. JSON shaped values take a fast path; anything else
// (typed descriptors, slices of structs) is copied via reflection so that the
// clone never shares maps, slices or pointers with the original.
func Clone[T any](value T) T {
	switch typed := any(value).(type) {
	case nil:
		return value
	case map[string]any:
		return any(CloneMap(typed)).(T)
	case []any:
		if typed == nil {
			return value
		}
		out := make([]any, len(typed))
		for i := range typed {
			out[i] = Clone(typed[i])
		}
		return any(out).(T)
	case string, bool, float64, int, int64:
		return value
	}

	rv := reflect.ValueOf(&value).Elem()
	cloned := cloneValue(rv)
	if !cloned.IsValid() {
		var zero T
		return zero
	}
	out := reflect.New(rv.Type()).Elem()
	out.Set(cloned)
	return out.Interface().(T)
}

func cloneValue(v reflect.Value) reflect.Value {
	if !v.IsValid() {
		return v
	}

	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		clone := reflect.New(v.Type().Elem())
		clone.Elem().Set(cloneValue(v.Elem()))
		return clone
	case reflect.Interface:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		elem := cloneValue(v.Elem())
		out := reflect.New(v.Type()).Elem()
		out.Set(elem)
		return out
	case reflect.Struct:
		clone := reflect.New(v.Type()).Elem()
		clone.Set(v)
		for i := 0; i < v.NumField(); i++ {
			field := clone.Field(i)
			if !field.CanSet() {
				continue
			}
			field.Set(cloneValue(v.Field(i)))
		}
		return clone
	case reflect.Map:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		clone := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			clone.SetMapIndex(iter.Key(), cloneValue(iter.Value()))
		}
		return clone
	case reflect.Slice:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		clone := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			clone.Index(i).Set(cloneValue(v.Index(i)))
		}
		return clone
	case reflect.Array:
		clone := reflect.New(v.Type()).Elem()
		for i := 0; i < v.Len(); i++ {
			clone.Index(i).Set(cloneValue(v.Index(i)))
		}
		return clone
	default:
		out := reflect.New(v.Type()).Elem()
		out.Set(v)
		return out
	}
}
