package sqlmap

import (
	"hash/fnv"
	"math"
	"reflect"
)

// StructuralHash returns a hash computed from the content of v.
// nil hashes to 1; slices, arrays, structs and maps hash by their elements;
// pointers, channels and funcs hash by identity.
func StructuralHash(v any) int {
	if v == nil {
		return 1
	}
	return hashValue(reflect.ValueOf(v))
}

// StructuralEqual reports whether a and b are equal by content. It mirrors
// StructuralHash: values that are equal always hash the same.
func StructuralEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return equalValue(reflect.ValueOf(a), reflect.ValueOf(b))
}

func hashValue(rv reflect.Value) int {
	switch rv.Kind() {
	case reflect.Invalid:
		return 1
	case reflect.Bool:
		if rv.Bool() {
			return 1231
		}
		return 1237
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return foldBits(uint64(rv.Int()))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return foldBits(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return hashFloat(rv.Float())
	case reflect.Complex64, reflect.Complex128:
		c := rv.Complex()
		return 31*hashFloat(real(c)) + hashFloat(imag(c))
	case reflect.String:
		h := fnv.New32a()
		_, _ = h.Write([]byte(rv.String()))
		return int(int32(h.Sum32()))
	case reflect.Slice, reflect.Array:
		h := 1
		for i := 0; i < rv.Len(); i++ {
			h = 31*h + hashValue(rv.Index(i))
		}
		return h
	case reflect.Map:
		// Order independent.
		h := 0
		iter := rv.MapRange()
		for iter.Next() {
			h += hashValue(iter.Key()) ^ hashValue(iter.Value())
		}
		return h
	case reflect.Struct:
		h := 1
		for i := 0; i < rv.NumField(); i++ {
			h = 31*h + hashValue(rv.Field(i))
		}
		return h
	case reflect.Interface:
		if rv.IsNil() {
			return 1
		}
		return hashValue(rv.Elem())
	case reflect.Pointer, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		if rv.IsNil() {
			return 1
		}
		return foldBits(uint64(rv.Pointer()))
	default:
		return 1
	}
}

func equalValue(a, b reflect.Value) bool {
	a, b = unwrapInterface(a), unwrapInterface(b)
	if !a.IsValid() || !b.IsValid() {
		return a.IsValid() == b.IsValid()
	}
	if a.Type() != b.Type() {
		return false
	}
	switch a.Kind() {
	case reflect.Bool:
		return a.Bool() == b.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return a.Int() == b.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return a.Uint() == b.Uint()
	case reflect.Float32, reflect.Float64:
		return equalFloat(a.Float(), b.Float())
	case reflect.Complex64, reflect.Complex128:
		ca, cb := a.Complex(), b.Complex()
		return equalFloat(real(ca), real(cb)) && equalFloat(imag(ca), imag(cb))
	case reflect.String:
		return a.String() == b.String()
	case reflect.Slice, reflect.Array:
		if a.Len() != b.Len() {
			return false
		}
		for i := 0; i < a.Len(); i++ {
			if !equalValue(a.Index(i), b.Index(i)) {
				return false
			}
		}
		return true
	case reflect.Map:
		if a.Len() != b.Len() {
			return false
		}
		iter := a.MapRange()
		for iter.Next() {
			bv := b.MapIndex(iter.Key())
			if !bv.IsValid() || !equalValue(iter.Value(), bv) {
				return false
			}
		}
		return true
	case reflect.Struct:
		for i := 0; i < a.NumField(); i++ {
			if !equalValue(a.Field(i), b.Field(i)) {
				return false
			}
		}
		return true
	case reflect.Pointer, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return a.Pointer() == b.Pointer()
	default:
		return false
	}
}

// equalFloat treats NaN as equal to itself so a key holding NaN matches
// its clone.
func equalFloat(a, b float64) bool {
	return a == b || (math.IsNaN(a) && math.IsNaN(b))
}

// hashFloat agrees with equalFloat: every NaN hashes alike, as do 0 and -0.
func hashFloat(f float64) int {
	switch {
	case math.IsNaN(f):
		f = math.NaN()
	case f == 0:
		f = 0
	}
	return foldBits(math.Float64bits(f))
}

func foldBits(x uint64) int {
	return int(int32(x ^ (x >> 32)))
}

func unwrapInterface(v reflect.Value) reflect.Value {
	for v.IsValid() && v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}
