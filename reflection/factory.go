package reflection

import (
	"reflect"

	"github.com/syssam/sqlmap"
)

// ObjectFactory instantiates values for declared types. It is used to
// materialize missing intermediates on SetValue and to build declared
// collection results.
type ObjectFactory interface {
	// Create returns a new, empty value of type t.
	Create(t reflect.Type) (any, error)
	// IsCollection reports whether t is list-like.
	IsCollection(t reflect.Type) bool
}

// Collection is implemented by user-defined list-like types that are not
// slices.
type Collection interface {
	Add(v any) error
	Len() int
	At(i int) any
}

var collectionType = reflect.TypeFor[Collection]()

// DefaultObjectFactory creates zero values: pointers to zero structs, empty
// slices and maps. The empty interface is materialized as map[string]any.
type DefaultObjectFactory struct{}

var _ ObjectFactory = DefaultObjectFactory{}

// Create implements ObjectFactory.
func (DefaultObjectFactory) Create(t reflect.Type) (any, error) {
	if t == nil {
		return nil, sqlmap.NewReflectionError("", "cannot instantiate nil type")
	}
	v, err := create(t)
	if err != nil {
		return nil, err
	}
	return v.Interface(), nil
}

func create(t reflect.Type) (reflect.Value, error) {
	switch t.Kind() {
	case reflect.Pointer:
		p := reflect.New(t.Elem())
		if k := t.Elem().Kind(); k == reflect.Slice || k == reflect.Map {
			inner, err := create(t.Elem())
			if err != nil {
				return reflect.Value{}, err
			}
			p.Elem().Set(inner)
		}
		return p, nil
	case reflect.Slice:
		return reflect.MakeSlice(t, 0, 0), nil
	case reflect.Map:
		return reflect.MakeMap(t), nil
	case reflect.Interface:
		if t.NumMethod() == 0 {
			return reflect.ValueOf(map[string]any{}), nil
		}
		return reflect.Value{}, sqlmap.NewReflectionError("", "cannot instantiate interface %s", t)
	case reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return reflect.Value{}, sqlmap.NewReflectionError("", "cannot instantiate %s", t)
	default:
		return reflect.New(t).Elem(), nil
	}
}

// IsCollection implements ObjectFactory.
func (DefaultObjectFactory) IsCollection(t reflect.Type) bool {
	if t == nil {
		return false
	}
	if t.Implements(collectionType) || reflect.PointerTo(t).Implements(collectionType) {
		return true
	}
	k := derefType(t).Kind()
	return k == reflect.Slice || k == reflect.Array
}
