package reflection

import (
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/go-openapi/inflect"
	"golang.org/x/text/cases"

	"github.com/syssam/sqlmap"
)

// Property describes one addressable field of a record type.
type Property struct {
	// Name is the Go field name.
	Name string
	// Type is the declared field type.
	Type reflect.Type

	index []int
}

// Get returns the field of rv, which must be a struct of the owning type.
func (p *Property) Get(rv reflect.Value) (reflect.Value, error) {
	return rv.FieldByIndexErr(p.index)
}

// Field returns the settable field of rv, allocating nil embedded pointers
// on the way when rv is addressable.
func (p *Property) Field(rv reflect.Value) (reflect.Value, error) {
	if !rv.CanAddr() {
		return rv.FieldByIndexErr(p.index)
	}
	v := rv
	for i, x := range p.index {
		if i > 0 && v.Kind() == reflect.Pointer {
			if v.IsNil() {
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = v.Field(x)
	}
	return v, nil
}

// Descriptor is the capability table of a record type: property name to
// getter, setter and declared type. Descriptors are built once per type and
// cached.
type Descriptor struct {
	Type reflect.Type

	props  map[string]*Property // Go names and tag aliases.
	folded map[string]*Property // Case-folded Go names.
	names  []string
}

// descriptorCache caches descriptors by type.
var descriptorCache sync.Map // key: reflect.Type, val: *Descriptor

// DescriptorOf returns the descriptor for t. Pointer types are dereferenced;
// non-struct types yield an empty descriptor.
func DescriptorOf(t reflect.Type) *Descriptor {
	t = derefType(t)
	if d, ok := descriptorCache.Load(t); ok {
		return d.(*Descriptor)
	}
	d, _ := descriptorCache.LoadOrStore(t, newDescriptor(t))
	return d.(*Descriptor)
}

func newDescriptor(t reflect.Type) *Descriptor {
	d := &Descriptor{
		Type:   t,
		props:  make(map[string]*Property),
		folded: make(map[string]*Property),
	}
	if t == nil || t.Kind() != reflect.Struct {
		return d
	}
	fold := cases.Fold()
	for _, f := range reflect.VisibleFields(t) {
		if !f.IsExported() {
			continue
		}
		p := &Property{Name: f.Name, Type: f.Type, index: f.Index}
		d.props[f.Name] = p
		d.folded[fold.String(f.Name)] = p
		d.names = append(d.names, f.Name)
		for _, alias := range []string{tagName(f, "db"), tagName(f, "json")} {
			if _, taken := d.props[alias]; alias != "" && !taken {
				d.props[alias] = p
			}
		}
	}
	slices.Sort(d.names)
	return d
}

func tagName(f reflect.StructField, key string) string {
	tag := f.Tag.Get(key)
	if tag == "" || tag == "-" {
		return ""
	}
	if i := strings.IndexByte(tag, ','); i >= 0 {
		tag = tag[:i]
	}
	return tag
}

// Property returns the property for name, trying the exact Go name, then tag
// aliases, then a case-insensitive match.
func (d *Descriptor) Property(name string) (*Property, bool) {
	if p, ok := d.props[name]; ok {
		return p, true
	}
	p, ok := d.folded[cases.Fold().String(name)]
	return p, ok
}

// Names returns the sorted Go names of all properties.
func (d *Descriptor) Names() []string {
	return slices.Clone(d.names)
}

// FindProperty returns the canonical property name for name, or "" if the
// type has no such property. With camelCase, underscored column names such
// as "user_name" match the field UserName.
func (d *Descriptor) FindProperty(name string, camelCase bool) string {
	if camelCase {
		if p, ok := d.props[inflect.Camelize(name)]; ok {
			return p.Name
		}
		name = strings.ReplaceAll(name, "_", "")
	}
	if p, ok := d.Property(name); ok {
		return p.Name
	}
	return ""
}

// HasProperty reports whether the path resolves against the type alone.
func (d *Descriptor) HasProperty(path string) bool {
	_, err := d.PropertyType(path)
	return err == nil
}

// PropertyType resolves the declared type at the end of path using types
// only; no value is inspected.
func (d *Descriptor) PropertyType(path string) (reflect.Type, error) {
	prop := NewPropertyTokenizer(path)
	p, ok := d.Property(prop.Name)
	if !ok {
		return nil, sqlmap.NewReflectionError(path, "no property %q in %s", prop.Name, typeName(d.Type))
	}
	t := p.Type
	if prop.Indexed() {
		et, err := elemType(t, path)
		if err != nil {
			return nil, err
		}
		t = et
	}
	if !prop.HasNext() {
		return t, nil
	}
	return typeAt(t, prop.Children, path)
}

// typeAt resolves path within t.
func typeAt(t reflect.Type, path, full string) (reflect.Type, error) {
	base := derefType(t)
	switch base.Kind() {
	case reflect.Struct:
		return DescriptorOf(base).PropertyType(path)
	case reflect.Map:
		prop := NewPropertyTokenizer(path)
		et := base.Elem()
		if prop.Indexed() {
			var err error
			if et, err = elemType(et, full); err != nil {
				return nil, err
			}
		}
		if !prop.HasNext() || et.Kind() == reflect.Interface {
			return et, nil
		}
		return typeAt(et, prop.Children, full)
	case reflect.Interface:
		return base, nil
	default:
		return nil, sqlmap.NewReflectionError(full, "cannot navigate into %s", typeName(t))
	}
}

func elemType(t reflect.Type, path string) (reflect.Type, error) {
	base := derefType(t)
	switch base.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return base.Elem(), nil
	case reflect.Interface:
		return base, nil
	}
	return nil, sqlmap.NewReflectionError(path, "%s is not indexable", typeName(t))
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}
