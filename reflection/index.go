package reflection

import (
	"reflect"
	"strconv"

	"github.com/syssam/sqlmap"
)

// indexGet reads coll[index] for a map, slice, array or Collection.
func indexGet(coll reflect.Value, index, path string) (reflect.Value, error) {
	coll, err := resolveLazy(coll, path, nil)
	if err != nil {
		return reflect.Value{}, err
	}
	if c := asCollection(coll); c != nil {
		i, err := listIndex(index, c.Len(), path)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(c.At(i)), nil
	}
	coll = indirect(coll)
	if isNil(coll) {
		return reflect.Value{}, sqlmap.NewReflectionError(path, "cannot index a nil collection")
	}
	switch coll.Kind() {
	case reflect.Map:
		key, err := mapKey(coll.Type().Key(), index, path)
		if err != nil {
			return reflect.Value{}, err
		}
		return resolveLazy(coll.MapIndex(key), path, func(v reflect.Value) {
			coll.SetMapIndex(key, v)
		})
	case reflect.Slice, reflect.Array:
		i, err := listIndex(index, coll.Len(), path)
		if err != nil {
			return reflect.Value{}, err
		}
		elem := coll.Index(i)
		return resolveLazy(elem, path, setter(elem))
	}
	return reflect.Value{}, sqlmap.NewReflectionError(path, "%s is not indexable", coll.Type())
}

// indexSet writes coll[index].
func indexSet(coll reflect.Value, index string, value any, path string) error {
	coll = indirect(coll)
	if isNil(coll) {
		return sqlmap.NewReflectionError(path, "cannot index a nil collection")
	}
	switch coll.Kind() {
	case reflect.Map:
		key, err := mapKey(coll.Type().Key(), index, path)
		if err != nil {
			return err
		}
		cv, err := ConvertValue(value, coll.Type().Elem())
		if err != nil {
			return &sqlmap.ReflectionError{Path: path, Message: "assigning value", Cause: err}
		}
		coll.SetMapIndex(key, cv)
		return nil
	case reflect.Slice, reflect.Array:
		i, err := listIndex(index, coll.Len(), path)
		if err != nil {
			return err
		}
		return assign(coll.Index(i), value, path)
	}
	return sqlmap.NewReflectionError(path, "%s is not indexable", coll.Type())
}

func listIndex(index string, n int, path string) (int, error) {
	i, err := strconv.Atoi(index)
	if err != nil {
		return 0, sqlmap.NewReflectionError(path, "invalid list index %q", index)
	}
	if i < 0 || i >= n {
		return 0, sqlmap.NewReflectionError(path, "index %d out of range [0,%d)", i, n)
	}
	return i, nil
}

func mapKey(kt reflect.Type, index, path string) (reflect.Value, error) {
	switch kt.Kind() {
	case reflect.String:
		return reflect.ValueOf(index).Convert(kt), nil
	case reflect.Interface:
		return reflect.ValueOf(index), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(index, 10, 64)
		if err != nil {
			return reflect.Value{}, sqlmap.NewReflectionError(path, "invalid map key %q for %s", index, kt)
		}
		return reflect.ValueOf(n).Convert(kt), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(index, 10, 64)
		if err != nil {
			return reflect.Value{}, sqlmap.NewReflectionError(path, "invalid map key %q for %s", index, kt)
		}
		return reflect.ValueOf(n).Convert(kt), nil
	}
	return reflect.Value{}, sqlmap.NewReflectionError(path, "unsupported map key type %s", kt)
}
