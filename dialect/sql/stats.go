package sql

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/syssam/sqlmap/dialect"
)

type statementKey struct{}

// WithStatementID tags ctx with the id of the mapped statement being run.
// Session tags every statement it sends to its driver.
func WithStatementID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, statementKey{}, id)
}

// StatementID returns the mapped statement id ctx was tagged with, or "".
func StatementID(ctx context.Context) string {
	id, _ := ctx.Value(statementKey{}).(string)
	return id
}

// StatementStats is a snapshot of the statistics of one mapped statement.
// Statements run without an id are counted under "".
type StatementStats struct {
	ID       string
	Queries  int64
	Execs    int64
	Errors   int64
	Slow     int64
	Duration time.Duration
}

// Calls returns the number of executions.
func (s StatementStats) Calls() int64 { return s.Queries + s.Execs }

// Avg returns the average duration of one execution.
func (s StatementStats) Avg() time.Duration {
	if s.Calls() == 0 {
		return 0
	}
	return s.Duration / time.Duration(s.Calls())
}

func (s StatementStats) String() string {
	return fmt.Sprintf("%s: queries=%d execs=%d errors=%d slow=%d avg=%s",
		cmp.Or(s.ID, "<none>"), s.Queries, s.Execs, s.Errors, s.Slow, s.Avg())
}

type counters struct {
	queries, execs, errors, slow, nanos atomic.Int64
}

func (c *counters) add(d time.Duration, isQuery, failed, slow bool) {
	if isQuery {
		c.queries.Add(1)
	} else {
		c.execs.Add(1)
	}
	if failed {
		c.errors.Add(1)
	}
	if slow {
		c.slow.Add(1)
	}
	c.nanos.Add(int64(d))
}

func (c *counters) snapshot(id string) StatementStats {
	return StatementStats{
		ID:       id,
		Queries:  c.queries.Load(),
		Execs:    c.execs.Load(),
		Errors:   c.errors.Load(),
		Slow:     c.slow.Load(),
		Duration: time.Duration(c.nanos.Load()),
	}
}

// SlowStatementHook is called for every statement slower than the
// threshold of a StatsDriver.
type SlowStatementHook func(ctx context.Context, id, query string, args []any, d time.Duration)

// StatsDriver counts executions, errors and slow runs per mapped
// statement.
type StatsDriver struct {
	dialect.Driver
	threshold atomic.Int64
	hook      SlowStatementHook

	mu   sync.RWMutex
	byID map[string]*counters
}

// StatsOption configures a StatsDriver.
type StatsOption func(*StatsDriver)

// WithSlowThreshold sets the duration above which a statement is slow.
// Default is 100ms.
func WithSlowThreshold(d time.Duration) StatsOption {
	return func(s *StatsDriver) {
		s.threshold.Store(int64(d))
	}
}

// WithSlowStatementHook sets the callback of slow statements.
func WithSlowStatementHook(hook SlowStatementHook) StatsOption {
	return func(s *StatsDriver) {
		s.hook = hook
	}
}

// WithSlowStatementLog warns about slow statements on logger.
func WithSlowStatementLog(logger *slog.Logger) StatsOption {
	return WithSlowStatementHook(func(ctx context.Context, id, query string, args []any, d time.Duration) {
		logger.WarnContext(ctx, "slow statement", "statement", id, "duration", d, "sql", query, "args", args)
	})
}

// NewStatsDriver wraps drv with per-statement statistics.
//
//	stats := sql.NewStatsDriver(drv, sql.WithSlowThreshold(200*time.Millisecond))
//	session := sql.NewSession(config, stats)
//	...
//	s, _ := stats.Statement("blog.AuthorMapper.find")
func NewStatsDriver(drv dialect.Driver, opts ...StatsOption) *StatsDriver {
	s := &StatsDriver{Driver: drv, byID: make(map[string]*counters)}
	s.threshold.Store(int64(100 * time.Millisecond))
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SlowThreshold returns the slow statement threshold.
func (d *StatsDriver) SlowThreshold() time.Duration {
	return time.Duration(d.threshold.Load())
}

// SetSlowThreshold updates the slow statement threshold.
func (d *StatsDriver) SetSlowThreshold(threshold time.Duration) {
	d.threshold.Store(int64(threshold))
}

// Statement returns the statistics of the mapped statement id.
func (d *StatsDriver) Statement(id string) (StatementStats, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.byID[id]
	if !ok {
		return StatementStats{ID: id}, false
	}
	return c.snapshot(id), true
}

// Statements returns the statistics of every statement run so far, by id.
func (d *StatsDriver) Statements() []StatementStats {
	d.mu.RLock()
	out := make([]StatementStats, 0, len(d.byID))
	for id, c := range d.byID {
		out = append(out, c.snapshot(id))
	}
	d.mu.RUnlock()
	slices.SortFunc(out, func(a, b StatementStats) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// Total sums the statistics of all statements.
func (d *StatsDriver) Total() StatementStats {
	var t StatementStats
	for _, s := range d.Statements() {
		t.Queries += s.Queries
		t.Execs += s.Execs
		t.Errors += s.Errors
		t.Slow += s.Slow
		t.Duration += s.Duration
	}
	return t
}

// Reset drops all statistics.
func (d *StatsDriver) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	clear(d.byID)
}

func (d *StatsDriver) counters(id string) *counters {
	d.mu.RLock()
	c, ok := d.byID[id]
	d.mu.RUnlock()
	if ok {
		return c
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if c, ok = d.byID[id]; !ok {
		c = &counters{}
		d.byID[id] = c
	}
	return c
}

// Query runs a query and records it.
func (d *StatsDriver) Query(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := d.Driver.Query(ctx, query, args, v)
	d.record(ctx, query, args, time.Since(start), err, true)
	return err
}

// Exec runs a statement and records it.
func (d *StatsDriver) Exec(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := d.Driver.Exec(ctx, query, args, v)
	d.record(ctx, query, args, time.Since(start), err, false)
	return err
}

func (d *StatsDriver) record(ctx context.Context, query string, args any, elapsed time.Duration, err error, isQuery bool) {
	id := StatementID(ctx)
	slow := elapsed > d.SlowThreshold()
	d.counters(id).add(elapsed, isQuery, err != nil, slow)
	if slow && d.hook != nil {
		argv, _ := args.([]any)
		d.hook(ctx, id, query, argv, elapsed)
	}
}

// Tx starts a transaction whose statements are recorded too.
func (d *StatsDriver) Tx(ctx context.Context) (dialect.Tx, error) {
	tx, err := d.Driver.Tx(ctx)
	if err != nil {
		return nil, err
	}
	return &statsTx{Tx: tx, driver: d}, nil
}

type statsTx struct {
	dialect.Tx
	driver *StatsDriver
}

func (tx *statsTx) Query(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := tx.Tx.Query(ctx, query, args, v)
	tx.driver.record(ctx, query, args, time.Since(start), err, true)
	return err
}

func (tx *statsTx) Exec(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := tx.Tx.Exec(ctx, query, args, v)
	tx.driver.record(ctx, query, args, time.Since(start), err, false)
	return err
}

// DebugDriver logs every statement at debug level, with the mapped
// statement id of its context.
type DebugDriver struct {
	dialect.Driver
	logger *slog.Logger
}

// NewDebugDriver wraps drv with debug logging. A nil logger selects
// slog.Default.
func NewDebugDriver(drv dialect.Driver, logger *slog.Logger) *DebugDriver {
	if logger == nil {
		logger = slog.Default()
	}
	return &DebugDriver{Driver: drv, logger: logger}
}

// Query logs and runs a query.
func (d *DebugDriver) Query(ctx context.Context, query string, args, v any) error {
	d.logger.DebugContext(ctx, "query", "statement", StatementID(ctx), "sql", query, "args", args)
	return d.Driver.Query(ctx, query, args, v)
}

// Exec logs and runs a statement.
func (d *DebugDriver) Exec(ctx context.Context, query string, args, v any) error {
	d.logger.DebugContext(ctx, "exec", "statement", StatementID(ctx), "sql", query, "args", args)
	return d.Driver.Exec(ctx, query, args, v)
}

// Tx starts a transaction whose statements are logged too.
func (d *DebugDriver) Tx(ctx context.Context) (dialect.Tx, error) {
	d.logger.DebugContext(ctx, "begin transaction")
	tx, err := d.Driver.Tx(ctx)
	if err != nil {
		return nil, err
	}
	return &debugTx{Tx: tx, logger: d.logger}, nil
}

type debugTx struct {
	dialect.Tx
	logger *slog.Logger
}

func (tx *debugTx) Query(ctx context.Context, query string, args, v any) error {
	tx.logger.DebugContext(ctx, "tx query", "statement", StatementID(ctx), "sql", query, "args", args)
	return tx.Tx.Query(ctx, query, args, v)
}

func (tx *debugTx) Exec(ctx context.Context, query string, args, v any) error {
	tx.logger.DebugContext(ctx, "tx exec", "statement", StatementID(ctx), "sql", query, "args", args)
	return tx.Tx.Exec(ctx, query, args, v)
}

func (tx *debugTx) Commit() error {
	tx.logger.Debug("commit transaction")
	return tx.Tx.Commit()
}

func (tx *debugTx) Rollback() error {
	tx.logger.Debug("rollback transaction")
	return tx.Tx.Rollback()
}

var (
	_ dialect.Driver = (*StatsDriver)(nil)
	_ dialect.Driver = (*DebugDriver)(nil)
	_ dialect.Tx     = (*statsTx)(nil)
	_ dialect.Tx     = (*debugTx)(nil)
)
