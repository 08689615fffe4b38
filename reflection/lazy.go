package reflection

import (
	"reflect"

	"github.com/syssam/sqlmap"
)

// Lazy is a placeholder for a value that has not been materialized yet.
// A MetaObject calls Load only when the value is actually read; writing
// over a Lazy replaces it without loading. Once loaded, the value is
// stored back into the field, map entry or element that held the
// placeholder, so Load runs at most once per slot.
type Lazy interface {
	Load() (any, error)
}

// LazyFunc adapts a thunk to Lazy.
type LazyFunc func() (any, error)

// Load calls f.
func (f LazyFunc) Load() (any, error) { return f() }

// loaded replaces a placeholder in slots that only accept a Lazy.
type loaded struct{ v any }

func (l loaded) Load() (any, error) { return l.v, nil }

var (
	lazyType     = reflect.TypeFor[Lazy]()
	loadedType   = reflect.TypeFor[loaded]()
	lazyFuncType = reflect.TypeFor[LazyFunc]()
)

// resolveLazy loads rv if it holds a Lazy placeholder. store, if not nil,
// receives the value to put back into the slot rv was read from.
func resolveLazy(rv reflect.Value, path string, store func(reflect.Value)) (reflect.Value, error) {
	if !rv.IsValid() || isNil(rv) || !rv.CanInterface() {
		return rv, nil
	}
	if !rv.Type().Implements(lazyType) {
		if rv.Kind() != reflect.Interface || !rv.Elem().Type().Implements(lazyType) {
			return rv, nil
		}
	}
	lz, ok := rv.Interface().(Lazy)
	if !ok {
		return rv, nil
	}
	if l, ok := lz.(loaded); ok {
		return reflect.ValueOf(l.v), nil
	}
	v, err := lz.Load()
	if err != nil {
		return reflect.Value{}, &sqlmap.ReflectionError{Path: path, Message: "loading lazy value", Cause: err}
	}
	if store != nil {
		if m, ok := memo(rv.Type(), v); ok {
			store(m)
		}
	}
	return reflect.ValueOf(v), nil
}

// memo returns the value a slot of type t keeps after loading v: v itself
// when t accepts it, or a placeholder that yields v without loading again.
func memo(t reflect.Type, v any) (reflect.Value, bool) {
	rv := reflect.ValueOf(v)
	switch {
	case rv.IsValid() && rv.Type().AssignableTo(t):
		return rv, true
	case !rv.IsValid() && t.Kind() == reflect.Interface && t.NumMethod() == 0:
		return reflect.Zero(t), true
	case loadedType.AssignableTo(t):
		return reflect.ValueOf(loaded{v}), true
	case lazyFuncType.ConvertibleTo(t):
		return reflect.ValueOf(LazyFunc(func() (any, error) { return v, nil })).Convert(t), true
	}
	return reflect.Value{}, false
}

// setter stores into slot when it is settable.
func setter(slot reflect.Value) func(reflect.Value) {
	return func(v reflect.Value) {
		if slot.CanSet() {
			slot.Set(v)
		}
	}
}
