package sql

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/syssam/sqlmap"
	"github.com/syssam/sqlmap/cache"
	"github.com/syssam/sqlmap/mapping"
	"github.com/syssam/sqlmap/reflection"
)

// row holds the values of one scanned row by upper-case column label.
type row struct {
	columns []string
	values  map[string]any
}

func scanRow(rows ColumnScanner, columns []string) (row, error) {
	vals := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return row{}, fmt.Errorf("dialect/sql: scanning row: %w", err)
	}
	r := row{columns: columns, values: make(map[string]any, len(columns))}
	for i, c := range columns {
		// The first of several same-named columns wins.
		if _, ok := r.values[strings.ToUpper(c)]; !ok {
			r.values[strings.ToUpper(c)] = vals[i]
		}
	}
	return r, nil
}

func (r row) get(column string) any {
	if column == "" {
		return nil
	}
	return r.values[strings.ToUpper(column)]
}

// node is one object under construction. Joined rows add links to it;
// links are assigned to properties once every row has been read.
type node struct {
	rm     *mapping.ResultMap
	prefix string
	value  any
	meta   *reflection.MetaObject
	simple bool
	links  []link
	linked map[link]struct{}
	done   bool
}

type link struct {
	mapping *mapping.ResultMapping
	child   *node
}

func (n *node) link(m *mapping.ResultMapping, child *node) {
	l := link{mapping: m, child: child}
	if _, ok := n.linked[l]; ok {
		return
	}
	if n.linked == nil {
		n.linked = make(map[link]struct{})
	}
	n.linked[l] = struct{}{}
	n.links = append(n.links, l)
}

// result returns the mapped value. Struct results are built behind a
// pointer and returned by value.
func (n *node) result() any {
	switch {
	case n == nil:
		return nil
	case n.simple:
		return n.value
	case n.rm.Type != nil && n.rm.Type.Kind() == reflect.Struct:
		return reflect.ValueOf(n.value).Elem().Interface()
	default:
		return n.value
	}
}

// resultHandler maps the rows of one statement execution.
type resultHandler struct {
	ctx     context.Context
	session *Session
	config  *mapping.Configuration
	ms      *mapping.MappedStatement
	// nested holds the objects of joined rows by row key.
	nested *cache.Perpetual
	roots  []*node
}

func newResultHandler(ctx context.Context, s *Session, ms *mapping.MappedStatement) *resultHandler {
	return &resultHandler{
		ctx:     ctx,
		session: s,
		config:  s.config,
		ms:      ms,
		nested:  cache.NewPerpetual("NestedResults"),
	}
}

func (h *resultHandler) resultMap() (*mapping.ResultMap, error) {
	if len(h.ms.ResultMaps) == 0 {
		return nil, sqlmap.NewBindingError(h.ms.ID, "a query was run and no result maps were found; declare a result type or result map")
	}
	return h.ms.ResultMaps[0], nil
}

// readRows scans the rows within bounds. Offset skips rows; a positive
// limit stops reading after that many rows.
func readRows(rows ColumnScanner, offset, limit int) ([]row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("dialect/sql: reading columns: %w", err)
	}
	var rs []row
	for rows.Next() {
		if offset > 0 {
			offset--
			continue
		}
		r, err := scanRow(rows, columns)
		if err != nil {
			return nil, err
		}
		if rs = append(rs, r); limit > 0 && len(rs) >= limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dialect/sql: reading rows: %w", err)
	}
	return rs, nil
}

// handleRows maps rs. With joined nested result maps, rows sharing a root
// fold into one result and limit counts results.
func (h *resultHandler) handleRows(rs []row, limit int) ([]any, error) {
	rm, err := h.resultMap()
	if err != nil {
		return nil, err
	}
	if !rm.HasNestedResultMaps {
		list := make([]any, 0, len(rs))
		for _, r := range rs {
			v, err := h.flatRow(r, rm)
			if err != nil {
				return nil, err
			}
			list = append(list, v)
		}
		return list, nil
	}
	for _, r := range rs {
		more, err := h.joinRow(r, rm, limit)
		if err != nil {
			return nil, err
		}
		if !more {
			break
		}
	}
	list := make([]any, 0, len(h.roots))
	for _, n := range h.roots {
		v, err := h.materialize(n)
		if err != nil {
			return nil, err
		}
		list = append(list, v)
	}
	return list, nil
}

func (h *resultHandler) flatRow(r row, rm *mapping.ResultMap) (any, error) {
	rm, err := h.discriminate(r, rm, "")
	if err != nil {
		return nil, err
	}
	n, err := h.newNode(r, rm, "")
	if err != nil {
		return nil, err
	}
	return n.result(), nil
}

// joinRow folds r into the object graph. It returns false when r starts a
// root beyond limit.
func (h *resultHandler) joinRow(r row, rm *mapping.ResultMap, limit int) (bool, error) {
	rm, err := h.discriminate(r, rm, "")
	if err != nil {
		return false, err
	}
	key := h.rowKey(r, rm, "")
	root, err := h.lookup(key)
	if err != nil {
		return false, err
	}
	if root == nil {
		if limit > 0 && len(h.roots) >= limit {
			return false, nil
		}
		if h.ms.ResultOrdered {
			if err := h.nested.Clear(); err != nil {
				return false, err
			}
		}
		if root, err = h.newNode(r, rm, ""); err != nil {
			return false, err
		}
		h.roots = append(h.roots, root)
		if root == nil {
			return true, nil
		}
		if err := h.store(key, root); err != nil {
			return false, err
		}
	}
	return true, h.applyNested(r, root, key, []string{rm.ID})
}

// applyNested links the nested result map objects found in r to parent.
// Result maps already on the path are not entered again.
func (h *resultHandler) applyNested(r row, parent *node, parentKey *sqlmap.CacheKey, path []string) error {
	for _, m := range parent.rm.Mappings {
		if m.NestedResultMapID == "" || m.ResultSet != "" || m.Property == "" {
			continue
		}
		prefix := parent.prefix + m.ColumnPrefix
		if !anyNotNull(r, m, prefix) {
			continue
		}
		rm, err := h.config.ResultMap(m.NestedResultMapID)
		if err != nil {
			return err
		}
		if rm, err = h.discriminate(r, rm, prefix); err != nil {
			return err
		}
		if slices.Contains(path, rm.ID) {
			continue
		}
		key := combineKeys(h.rowKey(r, rm, prefix), parentKey)
		child, err := h.lookup(key)
		if err != nil {
			return err
		}
		if child == nil {
			if child, err = h.newNode(r, rm, prefix); err != nil {
				return err
			}
			if child == nil {
				continue
			}
			if err := h.store(key, child); err != nil {
				return err
			}
		}
		parent.link(m, child)
		if child.simple {
			continue
		}
		if err := h.applyNested(r, child, key, append(path, rm.ID)); err != nil {
			return err
		}
	}
	return nil
}

func (h *resultHandler) lookup(key *sqlmap.CacheKey) (*node, error) {
	if key == sqlmap.NullCacheKey {
		return nil, nil
	}
	v, err := h.nested.Get(key)
	if err != nil || v == nil {
		return nil, err
	}
	return v.(*node), nil
}

func (h *resultHandler) store(key *sqlmap.CacheKey, n *node) error {
	if key == sqlmap.NullCacheKey {
		return nil
	}
	return h.nested.Put(key, n)
}

// rowKey identifies the object rm builds from r: the id columns, or every
// prefixed column when none of them has a value.
func (h *resultHandler) rowKey(r row, rm *mapping.ResultMap, prefix string) *sqlmap.CacheKey {
	key := sqlmap.NewCacheKey(rm.ID)
	for _, m := range rm.IDMappings {
		if m.Column == "" || m.NestedResultMapID != "" || m.NestedQueryID != "" {
			continue
		}
		if v := r.get(prefix + m.Column); v != nil {
			_ = key.UpdateAll(strings.ToUpper(prefix+m.Column), keyValue(v))
		}
	}
	if key.UpdateCount() == 1 {
		for _, c := range r.columns {
			if prefix != "" && !hasPrefixFold(c, prefix) {
				continue
			}
			if v := r.get(c); v != nil {
				_ = key.UpdateAll(strings.ToUpper(c), keyValue(v))
			}
		}
	}
	if key.UpdateCount() == 1 {
		return sqlmap.NullCacheKey
	}
	return key
}

func keyValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

func combineKeys(key, parent *sqlmap.CacheKey) *sqlmap.CacheKey {
	if key.UpdateCount() < 2 || parent.UpdateCount() < 2 {
		return sqlmap.NullCacheKey
	}
	combined := key.Clone()
	combined.Update(parent.String())
	return combined
}

// anyNotNull reports whether the nested result of m has data in r.
func anyNotNull(r row, m *mapping.ResultMapping, prefix string) bool {
	switch {
	case len(m.NotNullColumns) > 0:
		for _, c := range m.NotNullColumns {
			if r.get(prefix+c) != nil {
				return true
			}
		}
		return false
	case m.ColumnPrefix != "":
		for _, c := range r.columns {
			if hasPrefixFold(c, prefix) && r.get(c) != nil {
				return true
			}
		}
		return false
	default:
		return true
	}
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

// discriminate follows discriminator cases from rm until no case matches
// or a result map repeats.
func (h *resultHandler) discriminate(r row, rm *mapping.ResultMap, prefix string) (*mapping.ResultMap, error) {
	visited := make(map[string]struct{})
	for rm.Discriminator != nil {
		if _, ok := visited[rm.ID]; ok {
			break
		}
		visited[rm.ID] = struct{}{}
		d := rm.Discriminator
		id, ok := d.MapIDFor(valueString(r.get(prefix + d.Mapping.Column)))
		if !ok {
			break
		}
		next, err := h.config.ResultMap(id)
		if err != nil {
			return nil, err
		}
		rm = next
	}
	return rm, nil
}

func valueString(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(v)
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// newNode builds the object rm describes from r. It returns nil when no
// column yielded a value.
func (h *resultHandler) newNode(r row, rm *mapping.ResultMap, prefix string) (*node, error) {
	if mapping.IsSimpleType(rm.Type) {
		return h.simpleNode(r, rm, prefix)
	}
	v, err := h.create(rm.Type)
	if err != nil {
		return nil, err
	}
	n := &node{rm: rm, prefix: prefix, value: v, meta: h.config.NewMetaObject(v)}
	auto, err := h.applyAuto(r, n)
	if err != nil {
		return nil, err
	}
	explicit, err := h.applyProperties(r, n)
	if err != nil {
		return nil, err
	}
	if !auto && !explicit && !rm.HasNestedResultMaps {
		return nil, nil
	}
	return n, nil
}

// simpleNode reads a scalar result from the first mapped column, or the
// first column of the row.
func (h *resultHandler) simpleNode(r row, rm *mapping.ResultMap, prefix string) (*node, error) {
	var column string
	switch {
	case len(rm.Mappings) > 0 && rm.Mappings[0].Column != "":
		column = prefix + rm.Mappings[0].Column
	case len(r.columns) > 0:
		column = r.columns[0]
	}
	v := r.get(column)
	if v == nil {
		return nil, nil
	}
	cv, err := reflection.ConvertValue(v, rm.Type)
	if err != nil {
		return nil, fmt.Errorf("dialect/sql: column %s: %w", column, err)
	}
	return &node{rm: rm, prefix: prefix, value: cv.Interface(), simple: true}, nil
}

func (h *resultHandler) create(t reflect.Type) (any, error) {
	switch {
	case t == nil:
		return map[string]any{}, nil
	case t.Kind() == reflect.Struct:
		return h.config.ObjectFactory.Create(reflect.PointerTo(t))
	default:
		return h.config.ObjectFactory.Create(t)
	}
}

func (h *resultHandler) autoMapping(rm *mapping.ResultMap) bool {
	if rm.AutoMapping != nil {
		return *rm.AutoMapping
	}
	switch h.config.AutoMapping {
	case mapping.AutoMappingNone:
		return false
	case mapping.AutoMappingFull:
		return true
	default:
		return !rm.HasNestedResultMaps
	}
}

// applyAuto copies columns that no mapping names into same-named
// properties. NULL columns are skipped.
func (h *resultHandler) applyAuto(r row, n *node) (bool, error) {
	if !h.autoMapping(n.rm) {
		return false, nil
	}
	found := false
	for _, c := range r.columns {
		name := c
		if n.prefix != "" {
			if !hasPrefixFold(c, n.prefix) {
				continue
			}
			name = c[len(n.prefix):]
		}
		if n.rm.HasMappedColumn(name) {
			continue
		}
		prop := n.meta.FindProperty(name, h.config.MapUnderscoreToCamelCase)
		if prop == "" || n.rm.HasMappedProperty(prop) || !n.meta.HasSetter(prop) {
			continue
		}
		v := r.get(c)
		if v == nil {
			continue
		}
		if err := n.meta.SetValue(prop, v); err != nil {
			return false, fmt.Errorf("dialect/sql: auto-mapping column %s: %w", c, err)
		}
		found = true
	}
	return found, nil
}

// applyProperties assigns column and nested query mappings. Joined nested
// result maps are linked separately.
func (h *resultHandler) applyProperties(r row, n *node) (bool, error) {
	found := false
	for _, m := range n.rm.Mappings {
		if m.Property == "" || m.NestedResultMapID != "" || m.ResultSet != "" {
			continue
		}
		var (
			v   any
			err error
		)
		if m.NestedQueryID != "" {
			v, err = h.nestedQuery(r, m, n)
		} else {
			v = r.get(n.prefix + m.Column)
		}
		if err != nil {
			return false, err
		}
		if v == nil {
			continue
		}
		if err := n.meta.SetValue(m.Property, v); err != nil {
			return false, fmt.Errorf("dialect/sql: mapping property %s: %w", m.Property, err)
		}
		found = true
	}
	return found, nil
}

var lazyFuncType = reflect.TypeFor[reflection.LazyFunc]()

// nestedQuery runs the statement of m with the row's key columns. Lazy
// mappings into interface-typed properties get a loader instead.
func (h *resultHandler) nestedQuery(r row, m *mapping.ResultMapping, n *node) (any, error) {
	param, ok := nestedParam(r, m, n.prefix)
	if !ok {
		return nil, nil
	}
	target := m.Type
	if target == nil {
		target, _ = n.meta.SetterType(m.Property)
	}
	ctx, session := h.ctx, h.session
	load := func() (any, error) {
		return session.selectNested(ctx, m.NestedQueryID, param, target)
	}
	if m.Lazy && target != nil && target.Kind() == reflect.Interface && lazyFuncType.Implements(target) {
		return reflection.LazyFunc(load), nil
	}
	return load()
}

func nestedParam(r row, m *mapping.ResultMapping, prefix string) (any, bool) {
	if !m.IsComposite() {
		v := r.get(prefix + m.Column)
		return keyValue(v), v != nil
	}
	param := make(map[string]any, len(m.Composites))
	found := false
	for _, c := range m.Composites {
		v := r.get(prefix + c.Column)
		param[c.Property] = keyValue(v)
		found = found || v != nil
	}
	return param, found
}

// materialize assigns the linked children of n, bottom-up, and returns
// its result.
func (h *resultHandler) materialize(n *node) (any, error) {
	if n == nil || n.simple || n.done {
		return n.result(), nil
	}
	n.done = true
	var (
		order  []*mapping.ResultMapping
		values = make(map[*mapping.ResultMapping][]any)
	)
	for _, l := range n.links {
		v, err := h.materialize(l.child)
		if err != nil {
			return nil, err
		}
		if _, ok := values[l.mapping]; !ok {
			order = append(order, l.mapping)
		}
		values[l.mapping] = append(values[l.mapping], v)
	}
	for _, m := range order {
		var v any = values[m][0]
		if t := h.propertyType(n, m); h.isCollection(t) {
			list, err := convertList(h.config, values[m], t)
			if err != nil {
				return nil, fmt.Errorf("dialect/sql: collection %s: %w", m.Property, err)
			}
			v = list
		}
		if err := n.meta.SetValue(m.Property, v); err != nil {
			return nil, fmt.Errorf("dialect/sql: mapping property %s: %w", m.Property, err)
		}
	}
	return n.result(), nil
}

func (h *resultHandler) propertyType(n *node, m *mapping.ResultMapping) reflect.Type {
	if m.Type != nil {
		return m.Type
	}
	t, _ := n.meta.SetterType(m.Property)
	return t
}

func (h *resultHandler) isCollection(t reflect.Type) bool {
	return t != nil && h.config.ObjectFactory.IsCollection(t) && !mapping.IsSimpleType(t)
}

// convertList copies list into a new value of the collection type t.
func convertList(config *mapping.Configuration, list []any, t reflect.Type) (any, error) {
	switch t.Kind() {
	case reflect.Slice:
		out := reflect.MakeSlice(t, 0, len(list))
		for _, v := range list {
			cv, err := reflection.ConvertValue(v, t.Elem())
			if err != nil {
				return nil, err
			}
			out = reflect.Append(out, cv)
		}
		return out.Interface(), nil
	case reflect.Array:
		out := reflect.New(t).Elem()
		for i, v := range list[:min(len(list), t.Len())] {
			cv, err := reflection.ConvertValue(v, t.Elem())
			if err != nil {
				return nil, err
			}
			out.Index(i).Set(cv)
		}
		return out.Interface(), nil
	}
	c, err := config.ObjectFactory.Create(t)
	if err != nil {
		return nil, err
	}
	if err := config.NewMetaObject(c).AddAll(list); err != nil {
		return nil, err
	}
	return c, nil
}
