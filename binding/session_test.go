package binding_test

import (
	"context"
	"log/slog"
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/syssam/sqlmap/binding"
	"github.com/syssam/sqlmap/mapping"
)

type author struct {
	ID   int64
	Name string
}

// names is a list-like type that is not a slice.
type names struct{ items []string }

func (n *names) Add(v any) error {
	n.items = append(n.items, v.(string))
	return nil
}
func (n *names) Len() int { return len(n.items) }
func (n *names) At(i int) any { return n.items[i] }

type call struct {
	method string
	id     string
	param  any
	bounds binding.RowBounds
	key    string
}

// session records calls and returns canned results.
type session struct {
	config *mapping.Configuration
	calls  []call
	count  int64
	one    any
	list   []any
	rows   map[any]any
	cursor binding.Cursor
	err    error
}

func (s *session) record(c call) { s.calls = append(s.calls, c) }

func (s *session) Configuration() *mapping.Configuration { return s.config }

func (s *session) Insert(_ context.Context, id string, param any) (int64, error) {
	s.record(call{method: "insert", id: id, param: param})
	return s.count, s.err
}

func (s *session) Update(_ context.Context, id string, param any) (int64, error) {
	s.record(call{method: "update", id: id, param: param})
	return s.count, s.err
}

func (s *session) Delete(_ context.Context, id string, param any) (int64, error) {
	s.record(call{method: "delete", id: id, param: param})
	return s.count, s.err
}

func (s *session) SelectOne(_ context.Context, id string, param any) (any, error) {
	s.record(call{method: "selectOne", id: id, param: param})
	return s.one, s.err
}

func (s *session) SelectList(_ context.Context, id string, param any, b binding.RowBounds) ([]any, error) {
	s.record(call{method: "selectList", id: id, param: param, bounds: b})
	return s.list, s.err
}

func (s *session) SelectMap(_ context.Context, id string, param any, key string, b binding.RowBounds) (map[any]any, error) {
	s.record(call{method: "selectMap", id: id, param: param, bounds: b, key: key})
	return s.rows, s.err
}

func (s *session) SelectCursor(_ context.Context, id string, param any, b binding.RowBounds) (binding.Cursor, error) {
	s.record(call{method: "selectCursor", id: id, param: param, bounds: b})
	return s.cursor, s.err
}

func (s *session) Select(_ context.Context, id string, param any, b binding.RowBounds, h binding.ResultHandler) error {
	s.record(call{method: "select", id: id, param: param, bounds: b})
	for i, v := range s.list {
		rc := &binding.ResultContext{Result: v, Count: i + 1}
		if err := h.HandleResult(rc); err != nil {
			return err
		}
		if rc.Stopped() {
			break
		}
	}
	return s.err
}

func (s *session) FlushStatements(context.Context) ([]binding.BatchResult, error) {
	s.record(call{method: "flush"})
	return []binding.BatchResult{{StatementID: "app.Author.save", Updates: []int64{1, 1}}}, s.err
}

// sliceCursor iterates a fixed slice.
type sliceCursor struct {
	rows []any
	i    int
}

func (c *sliceCursor) Next() bool {
	if c.i+1 >= len(c.rows) {
		return false
	}
	c.i++
	return true
}
func (c *sliceCursor) Value() any { return c.rows[c.i] }
func (c *sliceCursor) Index() int { return c.i }
func (c *sliceCursor) Err() error { return nil }
func (c *sliceCursor) Close() error { return nil }

// statement describes a statement registered by newConfig.
type statement struct {
	id         string
	command    mapping.CommandType
	resultType reflect.Type
}

func newConfig(t *testing.T, stmts ...statement) *mapping.Configuration {
	t.Helper()
	cfg, err := mapping.NewConfiguration(mapping.WithLogger(slog.New(slog.DiscardHandler)))
	require.NoError(t, err)
	for _, st := range stmts {
		ms := &mapping.MappedStatement{
			ID:        st.id,
			Command:   st.command,
			SQLSource: mapping.NewStaticSQLSource("SELECT 1"),
		}
		if st.resultType != nil {
			rm, err := mapping.NewResultMap(st.id+"-Inline", st.resultType, nil, nil, nil)
			require.NoError(t, err)
			ms.ResultMaps = []*mapping.ResultMap{rm}
		}
		require.NoError(t, cfg.AddMappedStatement(ms))
	}
	return cfg
}
