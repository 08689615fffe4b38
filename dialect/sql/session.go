package sql

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"slices"

	"github.com/syssam/sqlmap"
	"github.com/syssam/sqlmap/binding"
	"github.com/syssam/sqlmap/cache"
	"github.com/syssam/sqlmap/dialect"
	"github.com/syssam/sqlmap/mapping"
	"github.com/syssam/sqlmap/reflection"
)

// Session executes mapped statements against a dialect.ExecQuerier, which
// may be a Driver or a transaction. Select results are cached per session,
// and in the namespace cache of statements that use one. Any insert,
// update or delete clears the session cache.
//
// A Session is not safe for concurrent use.
type Session struct {
	config *mapping.Configuration
	drv    dialect.ExecQuerier
	local  *cache.Perpetual
	logger *slog.Logger
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithSessionLogger sets the logger of statement execution. It defaults to
// the configuration logger.
func WithSessionLogger(l *slog.Logger) SessionOption {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSession returns a Session running the statements of config on drv.
//
//	drv, _ := sql.Open(dialect.SQLite, "file:app.db")
//	session := sql.NewSession(config, drv)
//	mapper, _ := registry.Bind(session, "app.AuthorMapper")
func NewSession(config *mapping.Configuration, drv dialect.ExecQuerier, opts ...SessionOption) *Session {
	s := &Session{
		config: config,
		drv:    drv,
		local:  cache.NewPerpetual("LocalCache"),
		logger: config.Logger,
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ binding.Session = (*Session)(nil)

// placeholder marks a local cache entry whose query is still running.
type placeholder struct{}

// Configuration implements binding.Session.
func (s *Session) Configuration() *mapping.Configuration { return s.config }

// ClearCache drops the session cache.
func (s *Session) ClearCache() error { return s.local.Clear() }

// Insert implements binding.Session. When the statement declares a single
// key property and param is a pointer or a map, the generated id is
// written back to it.
func (s *Session) Insert(ctx context.Context, id string, param any) (int64, error) {
	return s.update(ctx, id, param)
}

// Update implements binding.Session.
func (s *Session) Update(ctx context.Context, id string, param any) (int64, error) {
	return s.update(ctx, id, param)
}

// Delete implements binding.Session.
func (s *Session) Delete(ctx context.Context, id string, param any) (int64, error) {
	return s.update(ctx, id, param)
}

func (s *Session) update(ctx context.Context, id string, param any) (int64, error) {
	ms, err := s.config.MappedStatement(id)
	if err != nil {
		return 0, err
	}
	if err := s.local.Clear(); err != nil {
		return 0, err
	}
	if err := s.flushCache(ms); err != nil {
		return 0, err
	}
	bound, args, err := s.bind(ms, param)
	if err != nil {
		return 0, err
	}
	ctx, cancel := statementContext(ctx, ms)
	defer cancel()
	s.logger.DebugContext(ctx, "executing statement", "id", ms.ID, "sql", bound.SQL, "args", args)
	var res Result
	if err := s.drv.Exec(ctx, bound.SQL, args, &res); err != nil {
		return 0, fmt.Errorf("dialect/sql: %s: %w", ms.ID, err)
	}
	if ms.Command == mapping.CommandInsert {
		if err := s.assignKeys(ctx, ms, param, res); err != nil {
			return 0, err
		}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("dialect/sql: %s: reading affected rows: %w", ms.ID, err)
	}
	s.logger.DebugContext(ctx, "statement done", "id", ms.ID, "updates", n)
	return n, nil
}

func (s *Session) assignKeys(ctx context.Context, ms *mapping.MappedStatement, param any, res Result) error {
	if len(ms.KeyProperties) != 1 || param == nil {
		return nil
	}
	if k := reflect.TypeOf(param).Kind(); k != reflect.Pointer && k != reflect.Map {
		return nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		s.logger.DebugContext(ctx, "generated keys unavailable", "id", ms.ID, "error", err)
		return nil
	}
	if err := s.config.NewMetaObject(param).SetValue(ms.KeyProperties[0], id); err != nil {
		return fmt.Errorf("dialect/sql: %s: assigning generated key: %w", ms.ID, err)
	}
	return nil
}

// flushCache clears the namespace cache of ms when ms asks for it.
func (s *Session) flushCache(ms *mapping.MappedStatement) error {
	if !ms.FlushCache || ms.Cache == nil || !s.config.CacheEnabled {
		return nil
	}
	return ms.Cache.Clear()
}

// bind builds the SQL and arguments of one call. Placeholders naming a
// parameter that a named parameter map lacks are errors.
func (s *Session) bind(ms *mapping.MappedStatement, param any) (*mapping.BoundSQL, []any, error) {
	bound, err := ms.BoundSQL(param)
	if err != nil {
		return nil, nil, err
	}
	if pm, ok := bound.Parameter.(binding.ParamMap); ok {
		for _, p := range bound.ParameterMappings {
			name := reflection.NewPropertyTokenizer(p.Property).Name
			if name == mapping.ParamName {
				continue
			}
			if _, err := pm.Get(name); err != nil {
				return nil, nil, err
			}
		}
	}
	args, err := bound.Args(s.config.ObjectFactory)
	if err != nil {
		return nil, nil, fmt.Errorf("dialect/sql: %s: binding parameters: %w", ms.ID, err)
	}
	return bound, args, nil
}

// statementContext tags ctx with the id of ms and applies its timeout.
func statementContext(ctx context.Context, ms *mapping.MappedStatement) (context.Context, context.CancelFunc) {
	ctx = WithStatementID(ctx, ms.ID)
	if ms.Timeout > 0 {
		return context.WithTimeout(ctx, ms.Timeout)
	}
	return ctx, func() {}
}

// SelectOne implements binding.Session.
func (s *Session) SelectOne(ctx context.Context, id string, param any) (any, error) {
	list, err := s.SelectList(ctx, id, param, binding.RowBounds{})
	if err != nil {
		return nil, err
	}
	switch len(list) {
	case 0:
		return nil, nil
	case 1:
		return list[0], nil
	default:
		return nil, sqlmap.NewBindingError(id, "expected one result (or nil) to be returned by selectOne(), but found: %d", len(list))
	}
}

// SelectList implements binding.Session.
func (s *Session) SelectList(ctx context.Context, id string, param any, bounds binding.RowBounds) ([]any, error) {
	ms, err := s.config.MappedStatement(id)
	if err != nil {
		return nil, err
	}
	return s.query(ctx, ms, param, bounds)
}

// SelectMap implements binding.Session. Results are keyed by the value of
// their mapKey property; nil results are skipped.
func (s *Session) SelectMap(ctx context.Context, id string, param any, mapKey string, bounds binding.RowBounds) (map[any]any, error) {
	list, err := s.SelectList(ctx, id, param, bounds)
	if err != nil {
		return nil, err
	}
	out := make(map[any]any, len(list))
	for _, v := range list {
		if v == nil {
			continue
		}
		k, err := s.config.NewMetaObject(v).GetValue(mapKey)
		if err != nil {
			return nil, fmt.Errorf("dialect/sql: %s: reading map key: %w", id, err)
		}
		k = keyValue(k)
		if k != nil && !reflect.TypeOf(k).Comparable() {
			return nil, sqlmap.NewTypeShapeError(id, "map key %q has unhashable type %T", mapKey, k)
		}
		out[k] = v
	}
	return out, nil
}

// SelectCursor implements binding.Session. The cursor holds the query open
// until it is exhausted or closed. Joined nested result maps need every
// row before a result is complete, so they cannot be streamed.
func (s *Session) SelectCursor(ctx context.Context, id string, param any, bounds binding.RowBounds) (binding.Cursor, error) {
	ms, err := s.config.MappedStatement(id)
	if err != nil {
		return nil, err
	}
	h := newResultHandler(ctx, s, ms)
	rm, err := h.resultMap()
	if err != nil {
		return nil, err
	}
	if rm.HasNestedResultMaps {
		return nil, sqlmap.NewBindingError(id, "cursor results cannot use nested result maps")
	}
	bound, args, err := s.bind(ms, param)
	if err != nil {
		return nil, err
	}
	qctx, cancel := statementContext(ctx, ms)
	s.logger.DebugContext(ctx, "opening cursor", "id", ms.ID, "sql", bound.SQL, "args", args)
	var rows Rows
	if err := s.drv.Query(qctx, bound.SQL, args, &rows); err != nil {
		cancel()
		return nil, fmt.Errorf("dialect/sql: %s: %w", ms.ID, err)
	}
	columns, err := rows.Columns()
	if err != nil {
		rows.Close()
		cancel()
		return nil, fmt.Errorf("dialect/sql: %s: reading columns: %w", ms.ID, err)
	}
	return &cursor{
		h:       h,
		rm:      rm,
		rows:    rows,
		columns: columns,
		offset:  bounds.Offset,
		limit:   bounds.Limit,
		index:   -1,
		cancel:  cancel,
	}, nil
}

// Select implements binding.Session. Results bypass both caches.
func (s *Session) Select(ctx context.Context, id string, param any, bounds binding.RowBounds, handler binding.ResultHandler) error {
	ms, err := s.config.MappedStatement(id)
	if err != nil {
		return err
	}
	rc := &binding.ResultContext{}
	if len(ms.ResultMaps) > 0 && ms.ResultMaps[0].HasNestedResultMaps {
		bound, args, err := s.bind(ms, param)
		if err != nil {
			return err
		}
		list, err := s.queryDatabase(ctx, ms, bound, args, bounds)
		if err != nil {
			return err
		}
		for _, v := range list {
			rc.Result = v
			rc.Count++
			if err := handler.HandleResult(rc); err != nil || rc.Stopped() {
				return err
			}
		}
		return nil
	}
	c, err := s.SelectCursor(ctx, id, param, bounds)
	if err != nil {
		return err
	}
	defer c.Close()
	for c.Next() {
		rc.Result = c.Value()
		rc.Count++
		if err := handler.HandleResult(rc); err != nil || rc.Stopped() {
			return err
		}
	}
	return c.Err()
}

// FlushStatements implements binding.Session. Statements run as they are
// issued, so there is never a batch to flush.
func (s *Session) FlushStatements(context.Context) ([]binding.BatchResult, error) {
	return nil, nil
}

// query runs ms through the namespace cache, then the session cache.
func (s *Session) query(ctx context.Context, ms *mapping.MappedStatement, param any, bounds binding.RowBounds) ([]any, error) {
	bound, args, err := s.bind(ms, param)
	if err != nil {
		return nil, err
	}
	key := sqlmap.NewCacheKey(ms.ID, bounds.Offset, bounds.Limit, bound.SQL)
	if err := key.UpdateAll(args...); err != nil {
		return nil, err
	}
	if s.config.Environment != "" {
		if err := key.Update(s.config.Environment); err != nil {
			return nil, err
		}
	}
	if ms.FlushCache {
		if err := s.local.Clear(); err != nil {
			return nil, err
		}
		if err := s.flushCache(ms); err != nil {
			return nil, err
		}
	}
	if !s.config.CacheEnabled || ms.Cache == nil || !ms.UseCache {
		return s.queryLocal(ctx, ms, bound, args, bounds, key)
	}
	v, err := ms.Cache.Get(key)
	if err != nil {
		return nil, err
	}
	if list, ok := untypedList(v); ok {
		return list, nil
	}
	list, err := s.queryLocal(ctx, ms, bound, args, bounds, key)
	if err != nil {
		// Releases the key of a blocking cache.
		if rerr := ms.Cache.Remove(key); rerr != nil {
			err = errors.Join(err, rerr)
		}
		return nil, err
	}
	if err := ms.Cache.Put(key, typedList(list, ms.ResultType())); err != nil {
		return nil, err
	}
	return list, nil
}

// queryLocal answers from the session cache. A query that reaches itself
// again through nested queries gets no rows on the inner call.
func (s *Session) queryLocal(ctx context.Context, ms *mapping.MappedStatement, bound *mapping.BoundSQL, args []any, bounds binding.RowBounds, key *sqlmap.CacheKey) ([]any, error) {
	v, err := s.local.Get(key)
	if err != nil {
		return nil, err
	}
	switch v := v.(type) {
	case []any:
		s.logger.DebugContext(ctx, "session cache hit", "id", ms.ID)
		return slices.Clone(v), nil
	case placeholder:
		return nil, nil
	}
	if err := s.local.Put(key, placeholder{}); err != nil {
		return nil, err
	}
	list, err := s.queryDatabase(ctx, ms, bound, args, bounds)
	if err != nil {
		if rerr := s.local.Remove(key); rerr != nil {
			err = errors.Join(err, rerr)
		}
		return nil, err
	}
	if err := s.local.Put(key, list); err != nil {
		return nil, err
	}
	return slices.Clone(list), nil
}

func (s *Session) queryDatabase(ctx context.Context, ms *mapping.MappedStatement, bound *mapping.BoundSQL, args []any, bounds binding.RowBounds) ([]any, error) {
	h := newResultHandler(ctx, s, ms)
	rm, err := h.resultMap()
	if err != nil {
		return nil, err
	}
	limit := bounds.Limit
	if rm.HasNestedResultMaps {
		limit = 0
	}
	qctx, cancel := statementContext(ctx, ms)
	defer cancel()
	s.logger.DebugContext(ctx, "executing statement", "id", ms.ID, "sql", bound.SQL, "args", args)
	var rows Rows
	if err := s.drv.Query(qctx, bound.SQL, args, &rows); err != nil {
		return nil, fmt.Errorf("dialect/sql: %s: %w", ms.ID, err)
	}
	rs, err := readRows(rows, bounds.Offset, limit)
	if cerr := rows.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("dialect/sql: closing rows: %w", cerr)
	}
	if err != nil {
		return nil, fmt.Errorf("dialect/sql: %s: %w", ms.ID, err)
	}
	list, err := h.handleRows(rs, bounds.Limit)
	if err != nil {
		return nil, err
	}
	s.logger.DebugContext(ctx, "statement done", "id", ms.ID, "rows", len(rs), "results", len(list))
	return list, nil
}

// selectNested loads the value of a nested query mapping: a collection of
// type target, or a single result.
func (s *Session) selectNested(ctx context.Context, id string, param any, target reflect.Type) (any, error) {
	list, err := s.SelectList(ctx, id, param, binding.RowBounds{})
	if err != nil {
		return nil, err
	}
	if target != nil && s.config.ObjectFactory.IsCollection(target) && !mapping.IsSimpleType(target) {
		return convertList(s.config, list, target)
	}
	switch len(list) {
	case 0:
		return nil, nil
	case 1:
		return list[0], nil
	default:
		return nil, sqlmap.NewBindingError(id, "expected one result (or nil) for a nested query, but found: %d", len(list))
	}
}

// typedList stores results as a slice of the result type, so serializing
// caches decode them back to that type. Mixed results stay as []any.
func typedList(list []any, t reflect.Type) any {
	if t == nil {
		return list
	}
	out := reflect.MakeSlice(reflect.SliceOf(t), 0, len(list))
	for _, v := range list {
		if v == nil || !reflect.TypeOf(v).AssignableTo(t) {
			return list
		}
		out = reflect.Append(out, reflect.ValueOf(v))
	}
	return out.Interface()
}

func untypedList(v any) ([]any, bool) {
	if list, ok := v.([]any); ok {
		return slices.Clone(list), true
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Kind() != reflect.Slice {
		return nil, false
	}
	list := make([]any, rv.Len())
	for i := range list {
		list[i] = rv.Index(i).Interface()
	}
	return list, true
}

// cursor streams the flat results of one query.
type cursor struct {
	h       *resultHandler
	rm      *mapping.ResultMap
	rows    Rows
	columns []string
	offset  int
	limit   int
	index   int
	value   any
	err     error
	cancel  context.CancelFunc
	closed  bool
}

func (c *cursor) Next() bool {
	if c.closed {
		return false
	}
	if c.limit > 0 && c.index+1 >= c.limit {
		c.Close()
		return false
	}
	for c.rows.Next() {
		if c.offset > 0 {
			c.offset--
			continue
		}
		r, err := scanRow(c.rows, c.columns)
		if err != nil {
			c.err = err
			c.Close()
			return false
		}
		if c.value, err = c.h.flatRow(r, c.rm); err != nil {
			c.err = err
			c.Close()
			return false
		}
		c.index++
		return true
	}
	if err := c.rows.Err(); err != nil {
		c.err = fmt.Errorf("dialect/sql: reading rows: %w", err)
	}
	c.Close()
	return false
}

func (c *cursor) Value() any { return c.value }

func (c *cursor) Index() int { return c.index }

func (c *cursor) Err() error { return c.err }

func (c *cursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	defer c.cancel()
	return c.rows.Close()
}
