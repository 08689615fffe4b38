package reflection

import (
	"reflect"

	"github.com/syssam/sqlmap"
)

// recordWrapper backs the record variant: structs, addressed through the
// cached Descriptor of their type.
type recordWrapper struct {
	rv   reflect.Value
	desc *Descriptor
	meta *MetaObject
}

func (w *recordWrapper) property(prop *PropertyTokenizer) (*Property, error) {
	p, ok := w.desc.Property(prop.Name)
	if !ok {
		return nil, sqlmap.NewReflectionError(prop.IndexedName, "no property %q in %s", prop.Name, typeName(w.desc.Type))
	}
	return p, nil
}

func (w *recordWrapper) get(prop *PropertyTokenizer) (reflect.Value, error) {
	p, err := w.property(prop)
	if err != nil {
		return reflect.Value{}, err
	}
	fv, err := p.Get(w.rv)
	if err != nil {
		// Nil embedded pointer on the way.
		return reflect.Value{}, nil
	}
	if fv, err = resolveLazy(fv, prop.Name, setter(fv)); err != nil {
		return reflect.Value{}, err
	}
	if prop.Indexed() {
		return indexGet(fv, prop.Index, prop.IndexedName)
	}
	return fv, nil
}

func (w *recordWrapper) set(prop *PropertyTokenizer, value any) error {
	p, err := w.property(prop)
	if err != nil {
		return err
	}
	if prop.Indexed() {
		fv, err := p.Get(w.rv)
		if err != nil {
			return sqlmap.NewReflectionError(prop.IndexedName, "cannot index through a nil embedded value")
		}
		fv, err = resolveLazy(fv, prop.Name, setter(fv))
		if err != nil {
			return err
		}
		return indexSet(fv, prop.Index, value, prop.IndexedName)
	}
	if !w.rv.CanAddr() {
		return sqlmap.NewReflectionError(prop.Name, "%s value is not addressable; wrap a pointer", w.rv.Type())
	}
	fv, err := p.Field(w.rv)
	if err != nil {
		return &sqlmap.ReflectionError{Path: prop.Name, Message: "resolving field", Cause: err}
	}
	return assign(fv, value, prop.Name)
}

func (w *recordWrapper) findProperty(name string, camelCase bool) string {
	return findPath(w.desc, name, camelCase)
}

func findPath(d *Descriptor, name string, camelCase bool) string {
	prop := NewPropertyTokenizer(name)
	found := d.FindProperty(prop.Name, camelCase)
	if found == "" || !prop.HasNext() {
		return found
	}
	p, _ := d.Property(found)
	rest := findPath(DescriptorOf(p.Type), prop.Children, camelCase)
	if rest == "" {
		return ""
	}
	return found + "." + rest
}

func (w *recordWrapper) getterNames() []string { return w.desc.Names() }
func (w *recordWrapper) setterNames() []string { return w.desc.Names() }

func (w *recordWrapper) getterType(name string) (reflect.Type, error) {
	return w.desc.PropertyType(name)
}

func (w *recordWrapper) setterType(name string) (reflect.Type, error) {
	return w.desc.PropertyType(name)
}

func (w *recordWrapper) hasGetter(name string) bool { return w.desc.HasProperty(name) }
func (w *recordWrapper) hasSetter(name string) bool { return w.desc.HasProperty(name) }

func (w *recordWrapper) instantiate(prop *PropertyTokenizer, factory ObjectFactory) (*MetaObject, error) {
	if prop.Indexed() {
		return nil, sqlmap.NewReflectionError(prop.IndexedName, "cannot instantiate an indexed property")
	}
	p, err := w.property(prop)
	if err != nil {
		return nil, err
	}
	obj, err := factory.Create(p.Type)
	if err != nil {
		return nil, &sqlmap.ReflectionError{Path: prop.Name, Message: "instantiating property value", Cause: err}
	}
	if err := w.set(&PropertyTokenizer{Name: prop.Name, IndexedName: prop.Name}, obj); err != nil {
		return nil, err
	}
	fv, err := p.Get(w.rv)
	if err != nil {
		return nil, &sqlmap.ReflectionError{Path: prop.Name, Message: "resolving field", Cause: err}
	}
	return newMeta(fv, factory), nil
}

func (w *recordWrapper) add(any) error { return notCollection(KindRecord) }
