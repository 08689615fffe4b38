package binding

import (
	"reflect"
	"strconv"

	"github.com/syssam/sqlmap"
	"github.com/syssam/sqlmap/mapping"
	"github.com/syssam/sqlmap/reflection"
)

// ReturnKind classifies the declared result of a method.
type ReturnKind int

// Return kinds. Every method has exactly one.
const (
	ReturnVoid ReturnKind = iota
	ReturnOne
	ReturnMany
	ReturnMap
	ReturnCursor
	ReturnOptional
)

var returnNames = [...]string{
	ReturnVoid:     "void",
	ReturnOne:      "one",
	ReturnMany:     "many",
	ReturnMap:      "map",
	ReturnCursor:   "cursor",
	ReturnOptional: "optional",
}

// String returns the kind name.
func (k ReturnKind) String() string {
	if k < 0 || int(k) >= len(returnNames) {
		return "unknown"
	}
	return returnNames[k]
}

// MethodSignature is the call shape of a method: its return kind, the
// positions of its special parameters and the names of the others.
type MethodSignature struct {
	Kind       ReturnKind
	ReturnType reflect.Type
	MapKey     string

	rowBounds     int
	resultHandler int
	names         []paramName
	named         bool
}

type paramName struct {
	index int
	name  string
}

// NewMethodSignature classifies m. A map key on a method that does not
// return a map, or more than one RowBounds or ResultHandler parameter, is
// a TypeShapeError.
func NewMethodSignature(config *mapping.Configuration, m Method) (*MethodSignature, error) {
	s := &MethodSignature{ReturnType: m.Return, MapKey: m.MapKey, rowBounds: -1, resultHandler: -1}
	t := m.Return
	switch {
	case t == nil:
		s.Kind = ReturnVoid
	case t == cursorType:
		s.Kind = ReturnCursor
	case isOptional(t):
		s.Kind = ReturnOptional
	case m.MapKey != "":
		if t.Kind() != reflect.Map {
			return nil, sqlmap.NewTypeShapeError(m.Name, "map key %q requires a map result, not %s", m.MapKey, t)
		}
		s.Kind = ReturnMap
	case isMany(config.ObjectFactory, t):
		s.Kind = ReturnMany
	default:
		s.Kind = ReturnOne
	}
	var err error
	if s.rowBounds, err = uniqueParam(m, func(t reflect.Type) bool { return t == rowBoundsType }, "RowBounds"); err != nil {
		return nil, err
	}
	if s.resultHandler, err = uniqueParam(m, func(t reflect.Type) bool { return t.Implements(resultHandlerType) }, "ResultHandler"); err != nil {
		return nil, err
	}
	for i, p := range m.Params {
		if i == s.rowBounds || i == s.resultHandler {
			continue
		}
		name := p.Name
		if name == "" {
			name = "arg" + strconv.Itoa(len(s.names))
		} else {
			s.named = true
		}
		s.names = append(s.names, paramName{index: i, name: name})
	}
	return s, nil
}

func isMany(f reflection.ObjectFactory, t reflect.Type) bool {
	if mapping.IsSimpleType(t) {
		return false
	}
	return t.Kind() == reflect.Array || f.IsCollection(t)
}

func uniqueParam(m Method, match func(reflect.Type) bool, name string) (int, error) {
	index := -1
	for i, p := range m.Params {
		if p.Type == nil || !match(p.Type) {
			continue
		}
		if index >= 0 {
			return -1, sqlmap.NewTypeShapeError(m.Name, "cannot have multiple %s parameters", name)
		}
		index = i
	}
	return index, nil
}

// HasRowBounds reports whether a parameter carries row bounds.
func (s *MethodSignature) HasRowBounds() bool { return s.rowBounds >= 0 }

// HasResultHandler reports whether a parameter carries a result handler.
func (s *MethodSignature) HasResultHandler() bool { return s.resultHandler >= 0 }

// RowBounds returns the row bounds argument, or unbounded.
func (s *MethodSignature) RowBounds(args []any) RowBounds {
	if !s.HasRowBounds() {
		return RowBounds{}
	}
	b, _ := args[s.rowBounds].(RowBounds)
	return b
}

// ResultHandler returns the result handler argument, if any.
func (s *MethodSignature) ResultHandler(args []any) ResultHandler {
	if !s.HasResultHandler() {
		return nil
	}
	h, _ := args[s.resultHandler].(ResultHandler)
	return h
}

// ParamObject converts call arguments into the statement parameter. A
// single unnamed argument is passed as is, with slices and arrays wrapped
// under "collection"/"list" and "array". Otherwise a ParamMap is built.
func (s *MethodSignature) ParamObject(args []any) any {
	switch {
	case len(s.names) == 0:
		return nil
	case !s.named && len(s.names) == 1:
		return wrapCollection(args[s.names[0].index])
	}
	pm := make(ParamMap, 2*len(s.names))
	for _, n := range s.names {
		pm[n.name] = args[n.index]
	}
	for i, n := range s.names {
		generic := GenericParamPrefix + strconv.Itoa(i+1)
		if _, ok := pm[generic]; !ok {
			pm[generic] = args[n.index]
		}
	}
	return pm
}

func wrapCollection(v any) any {
	if v == nil {
		return nil
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Slice:
		if mapping.IsSimpleType(rv.Type()) {
			return v
		}
		return ParamMap{"collection": v, "list": v}
	case reflect.Array:
		return ParamMap{"array": v}
	}
	return v
}
