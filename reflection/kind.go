package reflection

import "reflect"

// Kind is the shape variant a MetaObject was wrapped with.
type Kind int

// Shape variants, chosen once when a value is wrapped.
const (
	KindNull Kind = iota
	KindRecord
	KindList
	KindMap

	// KindTotal is the number of variants.
	KindTotal = int(iota)
)

var kindNames = [...]string{
	KindNull:   "null",
	KindRecord: "record",
	KindList:   "list",
	KindMap:    "map",
}

// String returns the variant name.
func (k Kind) String() string {
	if k < 0 || int(k) >= KindTotal {
		return "unknown"
	}
	return kindNames[k]
}

// KindOf returns the variant v would be wrapped with.
func KindOf(v any) Kind {
	if v == nil {
		return KindNull
	}
	if _, ok := v.(Collection); ok {
		return KindList
	}
	return kindOfValue(indirect(reflect.ValueOf(v)))
}

func kindOfValue(rv reflect.Value) Kind {
	if isNil(rv) {
		return KindNull
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return KindList
	case reflect.Map:
		return KindMap
	default:
		return KindRecord
	}
}

// indirect follows pointers and interfaces down to the underlying value.
// A nil pointer or interface is returned as is.
func indirect(rv reflect.Value) reflect.Value {
	for rv.IsValid() && (rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface) {
		if rv.IsNil() {
			return rv
		}
		rv = rv.Elem()
	}
	return rv
}

func isNil(rv reflect.Value) bool {
	if !rv.IsValid() {
		return true
	}
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
		return rv.IsNil()
	}
	return false
}

// derefType strips pointer indirections from t.
func derefType(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}
