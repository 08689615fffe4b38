// Package reflection provides uniform, path-addressed reads and writes over
// records (structs), lists (slices, arrays, Collection) and maps.
//
// Paths are dot-separated segments with an optional index suffix:
//
//	meta := reflection.Forward(&order, nil)
//	name, err := meta.GetValue("items[0].product.name")
//	err = meta.SetValue("customer.address.city", "Lisbon")
//
// Values are wrapped once into a shape variant (see Kind). Records must be
// passed by pointer to be writable.
package reflection

import (
	"reflect"

	"github.com/syssam/sqlmap"
)

// wrapper is implemented once per shape variant.
type wrapper interface {
	get(prop *PropertyTokenizer) (reflect.Value, error)
	set(prop *PropertyTokenizer, value any) error
	findProperty(name string, camelCase bool) string
	getterNames() []string
	setterNames() []string
	getterType(name string) (reflect.Type, error)
	setterType(name string) (reflect.Type, error)
	hasGetter(name string) bool
	hasSetter(name string) bool
	instantiate(prop *PropertyTokenizer, factory ObjectFactory) (*MetaObject, error)
	add(v any) error
}

// MetaObject is a non-owning view over a value. It must not outlive the
// value it wraps, and the value must not be mutated concurrently while a
// MetaObject call is in progress.
type MetaObject struct {
	original any
	kind     Kind
	wrapper  wrapper
	factory  ObjectFactory
}

// Forward wraps v. A nil factory selects DefaultObjectFactory.
func Forward(v any, factory ObjectFactory) *MetaObject {
	if factory == nil {
		factory = DefaultObjectFactory{}
	}
	if v == nil {
		return nullObject(factory)
	}
	return newMeta(reflect.ValueOf(v), factory)
}

func nullObject(factory ObjectFactory) *MetaObject {
	return &MetaObject{kind: KindNull, wrapper: nullWrapper{}, factory: factory}
}

func newMeta(rv reflect.Value, factory ObjectFactory) *MetaObject {
	if isNil(rv) {
		return nullObject(factory)
	}
	m := &MetaObject{original: toInterface(rv), factory: factory}
	if c := asCollection(rv); c != nil {
		m.kind = KindList
		m.wrapper = &listWrapper{rv: indirect(rv), coll: c}
		return m
	}
	base := indirect(rv)
	if isNil(base) {
		return nullObject(factory)
	}
	switch m.kind = kindOfValue(base); m.kind {
	case KindList:
		m.wrapper = &listWrapper{rv: base}
	case KindMap:
		m.wrapper = &mapWrapper{rv: base, meta: m}
	default:
		m.wrapper = &recordWrapper{rv: base, desc: DescriptorOf(base.Type()), meta: m}
	}
	return m
}

func asCollection(rv reflect.Value) Collection {
	if !rv.CanInterface() {
		return nil
	}
	if c, ok := rv.Interface().(Collection); ok {
		return c
	}
	if rv.Kind() != reflect.Pointer && rv.CanAddr() {
		if c, ok := rv.Addr().Interface().(Collection); ok {
			return c
		}
	}
	return nil
}

// Kind returns the shape variant chosen at wrap time.
func (m *MetaObject) Kind() Kind { return m.kind }

// Original returns the wrapped value.
func (m *MetaObject) Original() any { return m.original }

// Factory returns the object factory used to materialize intermediates.
func (m *MetaObject) Factory() ObjectFactory { return m.factory }

// GetValue reads the value at path. A nil intermediate yields nil.
func (m *MetaObject) GetValue(path string) (any, error) {
	rv, err := m.getRaw(path)
	if err != nil {
		return nil, err
	}
	return toInterface(rv), nil
}

func (m *MetaObject) getRaw(path string) (reflect.Value, error) {
	prop := NewPropertyTokenizer(path)
	if !prop.HasNext() {
		return m.wrapper.get(prop)
	}
	child, err := m.MetaObjectForProperty(prop.IndexedName)
	if err != nil {
		return reflect.Value{}, err
	}
	if child.kind == KindNull {
		return reflect.Value{}, nil
	}
	return child.getRaw(prop.Children)
}

// SetValue writes value at path. A nil intermediate is materialized through
// the object factory, unless value is nil, in which case nothing happens.
func (m *MetaObject) SetValue(path string, value any) error {
	prop := NewPropertyTokenizer(path)
	if !prop.HasNext() {
		return m.wrapper.set(prop, value)
	}
	child, err := m.MetaObjectForProperty(prop.IndexedName)
	if err != nil {
		return err
	}
	if child.kind == KindNull {
		if value == nil {
			return nil
		}
		if child, err = m.wrapper.instantiate(prop, m.factory); err != nil {
			return err
		}
	}
	return child.SetValue(prop.Children, value)
}

// MetaObjectForProperty wraps the value of a single path segment.
func (m *MetaObject) MetaObjectForProperty(name string) (*MetaObject, error) {
	rv, err := m.getRaw(name)
	if err != nil {
		return nil, err
	}
	return newMeta(rv, m.factory), nil
}

// FindProperty returns the canonical path for name, or "" if there is none.
func (m *MetaObject) FindProperty(name string, camelCase bool) string {
	return m.wrapper.findProperty(name, camelCase)
}

// GetterNames returns the readable property names.
func (m *MetaObject) GetterNames() []string { return m.wrapper.getterNames() }

// SetterNames returns the writable property names.
func (m *MetaObject) SetterNames() []string { return m.wrapper.setterNames() }

// GetterType returns the type read at path.
func (m *MetaObject) GetterType(path string) (reflect.Type, error) {
	return m.wrapper.getterType(path)
}

// SetterType returns the type accepted at path.
func (m *MetaObject) SetterType(path string) (reflect.Type, error) {
	return m.wrapper.setterType(path)
}

// HasGetter reports whether path can be read.
func (m *MetaObject) HasGetter(path string) bool { return m.wrapper.hasGetter(path) }

// HasSetter reports whether path can be written.
func (m *MetaObject) HasSetter(path string) bool { return m.wrapper.hasSetter(path) }

// IsCollection reports whether the wrapped value is list-like.
func (m *MetaObject) IsCollection() bool { return m.kind == KindList }

// Add appends v to a list-like value.
func (m *MetaObject) Add(v any) error { return m.wrapper.add(v) }

// AddAll appends every element of values, in order.
func (m *MetaObject) AddAll(values []any) error {
	for _, v := range values {
		if err := m.wrapper.add(v); err != nil {
			return err
		}
	}
	return nil
}

func notCollection(k Kind) error {
	return sqlmap.NewReflectionError("", "%s value is not a collection", k)
}

// nullWrapper backs the null variant.
type nullWrapper struct{}

func (nullWrapper) get(*PropertyTokenizer) (reflect.Value, error) { return reflect.Value{}, nil }

func (nullWrapper) set(prop *PropertyTokenizer, _ any) error {
	return sqlmap.NewReflectionError(prop.IndexedName, "cannot set a property of a nil value")
}

func (nullWrapper) findProperty(string, bool) string { return "" }
func (nullWrapper) getterNames() []string            { return nil }
func (nullWrapper) setterNames() []string            { return nil }
func (nullWrapper) hasGetter(string) bool            { return false }
func (nullWrapper) hasSetter(string) bool            { return false }

func (nullWrapper) getterType(name string) (reflect.Type, error) {
	return nil, sqlmap.NewReflectionError(name, "nil value has no properties")
}

func (nullWrapper) setterType(name string) (reflect.Type, error) {
	return nil, sqlmap.NewReflectionError(name, "nil value has no properties")
}

func (nullWrapper) instantiate(prop *PropertyTokenizer, _ ObjectFactory) (*MetaObject, error) {
	return nil, sqlmap.NewReflectionError(prop.IndexedName, "cannot instantiate a property of a nil value")
}

func (nullWrapper) add(any) error { return notCollection(KindNull) }
