package binding

import (
	"context"
	"reflect"

	"github.com/syssam/sqlmap"
	"github.com/syssam/sqlmap/mapping"
	"github.com/syssam/sqlmap/reflection"
)

// MapperMethod is a method bound to its statement.
type MapperMethod struct {
	Command   *SQLCommand
	Signature *MethodSignature
	params    int
}

// NewMapperMethod binds m of iface against config.
func NewMapperMethod(config *mapping.Configuration, iface *Interface, m Method) (*MapperMethod, error) {
	cmd, err := NewSQLCommand(config, iface, m)
	if err != nil {
		return nil, err
	}
	sig, err := NewMethodSignature(config, m)
	if err != nil {
		return nil, err
	}
	return &MapperMethod{Command: cmd, Signature: sig, params: len(m.Params)}, nil
}

// Execute runs the bound statement on session and shapes the result to
// the declared return type.
func (m *MapperMethod) Execute(ctx context.Context, session Session, args []any) (any, error) {
	if len(args) != m.params {
		return nil, sqlmap.NewBindingError(m.Command.Name, "expected %d arguments, got %d", m.params, len(args))
	}
	var (
		result any
		err    error
		sig    = m.Signature
		name   = m.Command.Name
	)
	switch m.Command.Type {
	case mapping.CommandInsert:
		result, err = m.rowCount(session.Insert(ctx, name, sig.ParamObject(args)))
	case mapping.CommandUpdate:
		result, err = m.rowCount(session.Update(ctx, name, sig.ParamObject(args)))
	case mapping.CommandDelete:
		result, err = m.rowCount(session.Delete(ctx, name, sig.ParamObject(args)))
	case mapping.CommandSelect:
		switch {
		case sig.Kind == ReturnVoid && sig.HasResultHandler():
			err = m.executeWithResultHandler(ctx, session, args)
		case sig.Kind == ReturnMany:
			result, err = m.executeForMany(ctx, session, args)
		case sig.Kind == ReturnMap:
			result, err = m.executeForMap(ctx, session, args)
		case sig.Kind == ReturnCursor:
			result, err = session.SelectCursor(ctx, name, sig.ParamObject(args), sig.RowBounds(args))
		default:
			result, err = m.executeForOne(ctx, session, args)
		}
	case mapping.CommandFlush:
		result, err = session.FlushStatements(ctx)
	default:
		return nil, sqlmap.NewBindingError(name, "unknown execution method")
	}
	if err != nil {
		return nil, err
	}
	if result == nil && sig.Kind != ReturnVoid && isPrimitive(sig.ReturnType) {
		return nil, sqlmap.NewTypeShapeError(name,
			"attempted to return null from a method with a primitive return type (%s)", sig.ReturnType)
	}
	return result, nil
}

// rowCount coerces an update count to the declared return type.
func (m *MapperMethod) rowCount(n int64, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	t := m.Signature.ReturnType
	if t == nil {
		return nil, nil
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return reflect.ValueOf(n).Convert(t).Interface(), nil
	case reflect.Bool:
		return reflect.ValueOf(n > 0).Convert(t).Interface(), nil
	}
	return nil, sqlmap.NewBindingError(m.Command.Name, "unsupported return type %s", t)
}

func (m *MapperMethod) executeWithResultHandler(ctx context.Context, session Session, args []any) error {
	ms, err := session.Configuration().MappedStatement(m.Command.Name)
	if err != nil {
		return err
	}
	if ms.ResultType() == nil {
		return sqlmap.NewTypeShapeError(m.Command.Name,
			"needs either a resultMap or a resultType so a ResultHandler can be used as a parameter")
	}
	sig := m.Signature
	return session.Select(ctx, m.Command.Name, sig.ParamObject(args), sig.RowBounds(args), sig.ResultHandler(args))
}

func (m *MapperMethod) executeForOne(ctx context.Context, session Session, args []any) (any, error) {
	sig := m.Signature
	result, err := session.SelectOne(ctx, m.Command.Name, sig.ParamObject(args))
	if err != nil {
		return nil, err
	}
	t := sig.ReturnType
	switch sig.Kind {
	case ReturnVoid:
		return nil, nil
	case ReturnOptional:
		if result != nil && reflect.TypeOf(result) == t {
			return result, nil
		}
		return wrapOptional(t, result, m.Command.Name)
	}
	if result == nil || reflect.TypeOf(result).AssignableTo(t) {
		return result, nil
	}
	cv, err := reflection.ConvertValue(result, t)
	if err != nil {
		return nil, &sqlmap.TypeShapeError{Operation: m.Command.Name, Message: err.Error()}
	}
	return cv.Interface(), nil
}

func (m *MapperMethod) executeForMany(ctx context.Context, session Session, args []any) (any, error) {
	sig := m.Signature
	list, err := session.SelectList(ctx, m.Command.Name, sig.ParamObject(args), sig.RowBounds(args))
	if err != nil {
		return nil, err
	}
	t := sig.ReturnType
	if reflect.TypeOf(list).AssignableTo(t) {
		return list, nil
	}
	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		return m.convertToArray(list)
	}
	return m.convertToDeclaredCollection(session.Configuration(), list)
}

// convertToArray copies list element by element into a new value of the
// declared slice or array type.
func (m *MapperMethod) convertToArray(list []any) (any, error) {
	t := m.Signature.ReturnType
	var out reflect.Value
	if t.Kind() == reflect.Array {
		if t.Len() != len(list) {
			return nil, sqlmap.NewTypeShapeError(m.Command.Name, "%d results do not fit %s", len(list), t)
		}
		out = reflect.New(t).Elem()
	} else {
		out = reflect.MakeSlice(t, len(list), len(list))
	}
	for i, v := range list {
		cv, err := reflection.ConvertValue(v, t.Elem())
		if err != nil {
			return nil, &sqlmap.TypeShapeError{Operation: m.Command.Name, Message: err.Error()}
		}
		out.Index(i).Set(cv)
	}
	return out.Interface(), nil
}

func (m *MapperMethod) convertToDeclaredCollection(config *mapping.Configuration, list []any) (any, error) {
	coll, err := config.ObjectFactory.Create(m.Signature.ReturnType)
	if err != nil {
		return nil, err
	}
	if err := config.NewMetaObject(coll).AddAll(list); err != nil {
		return nil, err
	}
	return coll, nil
}

func (m *MapperMethod) executeForMap(ctx context.Context, session Session, args []any) (any, error) {
	sig := m.Signature
	rows, err := session.SelectMap(ctx, m.Command.Name, sig.ParamObject(args), sig.MapKey, sig.RowBounds(args))
	if err != nil {
		return nil, err
	}
	t := sig.ReturnType
	if reflect.TypeOf(rows).AssignableTo(t) {
		return rows, nil
	}
	out := reflect.MakeMapWithSize(t, len(rows))
	for k, v := range rows {
		ck, err := reflection.ConvertValue(k, t.Key())
		if err != nil {
			return nil, &sqlmap.TypeShapeError{Operation: m.Command.Name, Message: err.Error()}
		}
		cv, err := reflection.ConvertValue(v, t.Elem())
		if err != nil {
			return nil, &sqlmap.TypeShapeError{Operation: m.Command.Name, Message: err.Error()}
		}
		out.SetMapIndex(ck, cv)
	}
	return out.Interface(), nil
}

// isPrimitive reports whether t is a numeric or boolean type that cannot
// hold nil.
func isPrimitive(t reflect.Type) bool {
	if t == nil {
		return false
	}
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
