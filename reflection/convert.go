package reflection

import (
	"reflect"

	"github.com/syssam/sqlmap"
)

// ConvertValue adapts v to type t. Assignable values pass through; pointers
// are added or removed one level; numeric kinds convert between each other;
// []byte converts to string kinds. Anything else is a ReflectionError.
func ConvertValue(v any, t reflect.Type) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(t), nil
	}
	src := reflect.ValueOf(v)
	if cv, ok := convert(src, t); ok {
		return cv, nil
	}
	return reflect.Value{}, sqlmap.NewReflectionError("", "cannot convert %s to %s", src.Type(), t)
}

func convert(src reflect.Value, t reflect.Type) (reflect.Value, bool) {
	st := src.Type()
	switch {
	case st.AssignableTo(t):
		return src, true
	case st.Kind() == reflect.Pointer && src.IsNil():
		return reflect.Zero(t), true
	case t.Kind() == reflect.Pointer:
		inner, ok := convert(src, t.Elem())
		if !ok {
			return reflect.Value{}, false
		}
		p := reflect.New(t.Elem())
		p.Elem().Set(inner)
		return p, true
	case st.Kind() == reflect.Pointer:
		return convert(src.Elem(), t)
	case isNumber(st.Kind()) && isNumber(t.Kind()):
		return src.Convert(t), true
	case st.Kind() == reflect.String && t.Kind() == reflect.String:
		return src.Convert(t), true
	case st.Kind() == reflect.Slice && st.Elem().Kind() == reflect.Uint8 && t.Kind() == reflect.String:
		return reflect.ValueOf(string(src.Bytes())).Convert(t), true
	case st.Kind() == reflect.Bool && t.Kind() == reflect.Bool:
		return src.Convert(t), true
	case t.Kind() == reflect.Interface && st.Implements(t):
		return src, true
	}
	return reflect.Value{}, false
}

func isNumber(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// assign stores value into dst after conversion.
func assign(dst reflect.Value, value any, path string) error {
	if !dst.CanSet() {
		return sqlmap.NewReflectionError(path, "%s value is not addressable", dst.Type())
	}
	cv, err := ConvertValue(value, dst.Type())
	if err != nil {
		return &sqlmap.ReflectionError{Path: path, Message: "assigning value", Cause: err}
	}
	dst.Set(cv)
	return nil
}

// toInterface returns the Go value held by rv, with nil pointers, maps,
// slices and interfaces reported as untyped nil.
func toInterface(rv reflect.Value) any {
	if isNil(rv) || !rv.CanInterface() {
		return nil
	}
	if rv.Kind() == reflect.Interface {
		return toInterface(rv.Elem())
	}
	return rv.Interface()
}
