package reflection

import (
	"fmt"
	"reflect"
	"slices"

	"github.com/syssam/sqlmap"
)

// mapWrapper backs the map variant. Property names are map keys.
type mapWrapper struct {
	rv   reflect.Value
	meta *MetaObject
}

func (w *mapWrapper) key(name string) (reflect.Value, error) {
	return mapKey(w.rv.Type().Key(), name, name)
}

func (w *mapWrapper) lookup(name string) (reflect.Value, error) {
	k, err := w.key(name)
	if err != nil {
		return reflect.Value{}, err
	}
	return w.rv.MapIndex(k), nil
}

// entry reads the value under name, loading and storing back a Lazy
// placeholder.
func (w *mapWrapper) entry(name string) (reflect.Value, error) {
	k, err := w.key(name)
	if err != nil {
		return reflect.Value{}, err
	}
	return resolveLazy(w.rv.MapIndex(k), name, func(v reflect.Value) {
		w.rv.SetMapIndex(k, v)
	})
}

func (w *mapWrapper) get(prop *PropertyTokenizer) (reflect.Value, error) {
	v, err := w.entry(prop.Name)
	if err != nil {
		return reflect.Value{}, err
	}
	if prop.Indexed() {
		return indexGet(v, prop.Index, prop.IndexedName)
	}
	return v, nil
}

func (w *mapWrapper) set(prop *PropertyTokenizer, value any) error {
	if prop.Indexed() {
		coll, err := w.entry(prop.Name)
		if err != nil {
			return err
		}
		return indexSet(coll, prop.Index, value, prop.IndexedName)
	}
	k, err := w.key(prop.Name)
	if err != nil {
		return err
	}
	cv, err := ConvertValue(value, w.rv.Type().Elem())
	if err != nil {
		return &sqlmap.ReflectionError{Path: prop.Name, Message: "assigning value", Cause: err}
	}
	w.rv.SetMapIndex(k, cv)
	return nil
}

func (w *mapWrapper) findProperty(name string, _ bool) string { return name }

func (w *mapWrapper) getterNames() []string {
	names := make([]string, 0, w.rv.Len())
	for _, k := range w.rv.MapKeys() {
		names = append(names, fmt.Sprint(k.Interface()))
	}
	slices.Sort(names)
	return names
}

func (w *mapWrapper) setterNames() []string { return w.getterNames() }

func (w *mapWrapper) getterType(name string) (reflect.Type, error) {
	prop := NewPropertyTokenizer(name)
	if prop.HasNext() {
		child, err := w.meta.MetaObjectForProperty(prop.IndexedName)
		if err != nil {
			return nil, err
		}
		if child.kind == KindNull {
			return w.rv.Type().Elem(), nil
		}
		return child.GetterType(prop.Children)
	}
	v, err := w.lookup(prop.Name)
	if err != nil {
		return nil, err
	}
	if prop.Indexed() && !isNil(v) {
		if v, err = indexGet(v, prop.Index, prop.IndexedName); err != nil {
			return nil, err
		}
	}
	if v = indirectInterface(v); isNil(v) {
		return w.rv.Type().Elem(), nil
	}
	return v.Type(), nil
}

func (w *mapWrapper) setterType(name string) (reflect.Type, error) {
	return w.getterType(name)
}

func (w *mapWrapper) hasGetter(name string) bool {
	prop := NewPropertyTokenizer(name)
	k, err := w.key(prop.Name)
	if err != nil || !w.rv.MapIndex(k).IsValid() {
		return false
	}
	if !prop.HasNext() {
		return true
	}
	child, err := w.meta.MetaObjectForProperty(prop.IndexedName)
	if err != nil {
		return false
	}
	if child.kind == KindNull {
		return true
	}
	return child.HasGetter(prop.Children)
}

func (w *mapWrapper) hasSetter(string) bool { return true }

func (w *mapWrapper) instantiate(prop *PropertyTokenizer, factory ObjectFactory) (*MetaObject, error) {
	if prop.Indexed() {
		return nil, sqlmap.NewReflectionError(prop.IndexedName, "cannot instantiate an indexed property")
	}
	obj, err := factory.Create(w.rv.Type().Elem())
	if err != nil {
		return nil, &sqlmap.ReflectionError{Path: prop.Name, Message: "instantiating property value", Cause: err}
	}
	if err := w.set(&PropertyTokenizer{Name: prop.Name, IndexedName: prop.Name}, obj); err != nil {
		return nil, err
	}
	return newMeta(reflect.ValueOf(obj), factory), nil
}

func (w *mapWrapper) add(any) error { return notCollection(KindMap) }

func indirectInterface(v reflect.Value) reflect.Value {
	for v.IsValid() && v.Kind() == reflect.Interface && !v.IsNil() {
		v = v.Elem()
	}
	return v
}
