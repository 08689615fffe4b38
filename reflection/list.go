package reflection

import (
	"reflect"

	"github.com/syssam/sqlmap"
)

// listWrapper backs the list variant: slices, arrays and Collection values.
// Only indexed access ("[i]") and appends are supported.
type listWrapper struct {
	rv   reflect.Value
	coll Collection
}

func unsupported(op string) error {
	return sqlmap.NewReflectionError("", "%s is not supported on a list value", op)
}

func (w *listWrapper) value() reflect.Value {
	if w.coll != nil {
		return reflect.ValueOf(w.coll)
	}
	return w.rv
}

func (w *listWrapper) get(prop *PropertyTokenizer) (reflect.Value, error) {
	if prop.Name != "" || !prop.Indexed() {
		return reflect.Value{}, unsupported("property access")
	}
	return indexGet(w.value(), prop.Index, prop.IndexedName)
}

func (w *listWrapper) set(prop *PropertyTokenizer, value any) error {
	if prop.Name != "" || !prop.Indexed() || w.coll != nil {
		return unsupported("property assignment")
	}
	return indexSet(w.rv, prop.Index, value, prop.IndexedName)
}

func (w *listWrapper) findProperty(string, bool) string { return "" }
func (w *listWrapper) getterNames() []string            { return nil }
func (w *listWrapper) setterNames() []string            { return nil }
func (w *listWrapper) hasGetter(string) bool            { return false }
func (w *listWrapper) hasSetter(string) bool            { return false }

func (w *listWrapper) getterType(string) (reflect.Type, error) {
	return nil, unsupported("type introspection")
}

func (w *listWrapper) setterType(string) (reflect.Type, error) {
	return nil, unsupported("type introspection")
}

func (w *listWrapper) instantiate(*PropertyTokenizer, ObjectFactory) (*MetaObject, error) {
	return nil, unsupported("instantiation")
}

func (w *listWrapper) add(v any) error {
	if w.coll != nil {
		return w.coll.Add(v)
	}
	if w.rv.Kind() != reflect.Slice {
		return sqlmap.NewReflectionError("", "cannot append to fixed-size %s", w.rv.Type())
	}
	if !w.rv.CanSet() {
		return sqlmap.NewReflectionError("", "%s value is not addressable; wrap a pointer", w.rv.Type())
	}
	cv, err := ConvertValue(v, w.rv.Type().Elem())
	if err != nil {
		return err
	}
	w.rv.Set(reflect.Append(w.rv, cv))
	return nil
}
