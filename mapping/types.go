package mapping

import (
	"reflect"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/syssam/sqlmap"
)

// TypeRegistry maps case-insensitive aliases to Go types. Declarations
// name their parameter and result types through it.
type TypeRegistry struct {
	// mu guards write-side consistency.
	mu sync.Mutex
	// m maps lower-cased alias to reflect.Type.
	m sync.Map
}

// NewTypeRegistry returns a registry seeded with the builtin aliases.
func NewTypeRegistry() *TypeRegistry {
	r := &TypeRegistry{}
	for alias, t := range builtinTypes {
		r.m.Store(alias, t)
	}
	return r
}

var builtinTypes = map[string]reflect.Type{
	"string":    reflect.TypeFor[string](),
	"text":      reflect.TypeFor[string](),
	"bool":      reflect.TypeFor[bool](),
	"boolean":   reflect.TypeFor[bool](),
	"byte":      reflect.TypeFor[byte](),
	"bytes":     reflect.TypeFor[[]byte](),
	"int":       reflect.TypeFor[int](),
	"integer":   reflect.TypeFor[int](),
	"int8":      reflect.TypeFor[int8](),
	"int16":     reflect.TypeFor[int16](),
	"smallint":  reflect.TypeFor[int16](),
	"int32":     reflect.TypeFor[int32](),
	"int64":     reflect.TypeFor[int64](),
	"bigint":    reflect.TypeFor[int64](),
	"uint":      reflect.TypeFor[uint](),
	"uint8":     reflect.TypeFor[uint8](),
	"uint16":    reflect.TypeFor[uint16](),
	"uint32":    reflect.TypeFor[uint32](),
	"uint64":    reflect.TypeFor[uint64](),
	"float32":   reflect.TypeFor[float32](),
	"real":      reflect.TypeFor[float32](),
	"float64":   reflect.TypeFor[float64](),
	"double":    reflect.TypeFor[float64](),
	"time":      reflect.TypeFor[time.Time](),
	"timestamp": reflect.TypeFor[time.Time](),
	"map":       reflect.TypeFor[map[string]any](),
	"any":       reflect.TypeFor[any](),
}

// Register associates alias with t. Re-registering the same pair is a
// no-op; mapping an alias to a different type is an error.
func (r *TypeRegistry) Register(alias string, t reflect.Type) error {
	if t == nil {
		return sqlmap.NewConfigError("TypeAlias", alias, "type cannot be nil")
	}
	key := strings.ToLower(strings.TrimSpace(alias))
	if key == "" {
		return sqlmap.NewConfigError("TypeAlias", nil, "alias cannot be empty")
	}
	if old, ok := r.m.Load(key); ok {
		return conflict(alias, old.(reflect.Type), t)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	// Re-check under lock in case another goroutine stored meanwhile.
	if old, ok := r.m.Load(key); ok {
		return conflict(alias, old.(reflect.Type), t)
	}
	r.m.Store(key, t)
	return nil
}

func conflict(alias string, old, t reflect.Type) error {
	if old == t {
		return nil
	}
	return sqlmap.NewConfigError("TypeAlias", alias, "alias is already mapped to "+old.String())
}

// RegisterType registers T under alias.
func RegisterType[T any](r *TypeRegistry, alias string) error {
	return r.Register(alias, reflect.TypeFor[T]())
}

// Resolve returns the type for alias. An empty alias resolves to nil.
// The prefixes "[]" and "*" build slice and pointer types.
func (r *TypeRegistry) Resolve(alias string) (reflect.Type, error) {
	alias = strings.TrimSpace(alias)
	switch {
	case alias == "":
		return nil, nil
	case strings.HasPrefix(alias, "[]"):
		t, err := r.Resolve(alias[2:])
		if err != nil || t == nil {
			return nil, err
		}
		return reflect.SliceOf(t), nil
	case strings.HasPrefix(alias, "*"):
		t, err := r.Resolve(alias[1:])
		if err != nil || t == nil {
			return nil, err
		}
		return reflect.PointerTo(t), nil
	}
	if t, ok := r.m.Load(strings.ToLower(alias)); ok {
		return t.(reflect.Type), nil
	}
	return nil, sqlmap.Builderf("could not resolve type alias %q", alias)
}

// Aliases returns the registered aliases, sorted.
func (r *TypeRegistry) Aliases() []string {
	var out []string
	r.m.Range(func(k, _ any) bool {
		out = append(out, k.(string))
		return true
	})
	slices.Sort(out)
	return out
}

var (
	timeType  = reflect.TypeFor[time.Time]()
	bytesType = reflect.TypeFor[[]byte]()
)

// IsSimpleType reports whether t is passed to statements as a single value
// rather than navigated by property: scalars, strings, []byte and time.Time.
func IsSimpleType(t reflect.Type) bool {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return false
	}
	if t == timeType || t == bytesType {
		return true
	}
	switch t.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
