package binding

import (
	"context"
	"reflect"

	"github.com/syssam/sqlmap"
	"github.com/syssam/sqlmap/mapping"
	"github.com/syssam/sqlmap/reflection"
)

// Session executes mapped statements by id. Bound mappers delegate every
// call to it.
type Session interface {
	Configuration() *mapping.Configuration
	Insert(ctx context.Context, id string, param any) (int64, error)
	Update(ctx context.Context, id string, param any) (int64, error)
	Delete(ctx context.Context, id string, param any) (int64, error)
	// SelectOne returns nil when no row matches.
	SelectOne(ctx context.Context, id string, param any) (any, error)
	SelectList(ctx context.Context, id string, param any, bounds RowBounds) ([]any, error)
	SelectMap(ctx context.Context, id string, param any, mapKey string, bounds RowBounds) (map[any]any, error)
	SelectCursor(ctx context.Context, id string, param any, bounds RowBounds) (Cursor, error)
	Select(ctx context.Context, id string, param any, bounds RowBounds, handler ResultHandler) error
	FlushStatements(ctx context.Context) ([]BatchResult, error)
}

// BatchResult reports the update counts of one flushed statement.
type BatchResult struct {
	StatementID string
	Updates     []int64
}

// RowBounds limits the rows a select returns. The zero value is unbounded.
type RowBounds struct {
	Offset int
	// Limit is the maximum number of rows; zero means no limit.
	Limit int
}

// Unbounded reports whether b skips nothing and limits nothing.
func (b RowBounds) Unbounded() bool { return b.Offset <= 0 && b.Limit <= 0 }

// ResultContext carries the current row to a ResultHandler.
type ResultContext struct {
	Result  any
	Count   int
	stopped bool
}

// Stop ends the select after the current row.
func (c *ResultContext) Stop() { c.stopped = true }

// Stopped reports whether Stop was called.
func (c *ResultContext) Stopped() bool { return c.stopped }

// ResultHandler receives the rows of a select one at a time.
type ResultHandler interface {
	HandleResult(*ResultContext) error
}

// ResultHandlerFunc adapts a function to ResultHandler.
type ResultHandlerFunc func(*ResultContext) error

// HandleResult implements ResultHandler.
func (f ResultHandlerFunc) HandleResult(c *ResultContext) error { return f(c) }

// Cursor iterates the rows of a select lazily.
type Cursor interface {
	// Next advances to the next row. It returns false at the end or on error.
	Next() bool
	// Value returns the current row.
	Value() any
	// Index returns the position of the current row, or -1 before the first.
	Index() int
	Err() error
	Close() error
}

// Optional holds a result that may be absent.
type Optional[T any] struct {
	value T
	ok    bool
}

// Some returns a present Optional.
func Some[T any](v T) Optional[T] { return Optional[T]{value: v, ok: true} }

// Get returns the value and whether it is present.
func (o Optional[T]) Get() (T, bool) { return o.value, o.ok }

// Present reports whether a value is held.
func (o Optional[T]) Present() bool { return o.ok }

// OrElse returns the value, or v when absent.
func (o Optional[T]) OrElse(v T) T {
	if o.ok {
		return o.value
	}
	return v
}

func (o *Optional[T]) assign(v any) error {
	if v == nil {
		*o = Optional[T]{}
		return nil
	}
	cv, err := reflection.ConvertValue(v, reflect.TypeFor[T]())
	if err != nil {
		return err
	}
	*o = Optional[T]{value: cv.Interface().(T), ok: true}
	return nil
}

type optional interface {
	assign(v any) error
}

var (
	rowBoundsType     = reflect.TypeFor[RowBounds]()
	resultHandlerType = reflect.TypeFor[ResultHandler]()
	cursorType        = reflect.TypeFor[Cursor]()
	optionalType      = reflect.TypeFor[optional]()
)

// isOptional reports whether t is an Optional instantiation.
func isOptional(t reflect.Type) bool {
	return t.Kind() == reflect.Struct && reflect.PointerTo(t).Implements(optionalType)
}

// wrapOptional returns v as a value of the Optional type t.
func wrapOptional(t reflect.Type, v any, op string) (any, error) {
	p := reflect.New(t)
	if err := p.Interface().(optional).assign(v); err != nil {
		return nil, &sqlmap.TypeShapeError{Operation: op, Message: err.Error()}
	}
	return p.Elem().Interface(), nil
}
