// Package sql runs mapped statements against database/sql.
//
// Driver adapts a *sql.DB (or *sql.Tx) to dialect.Driver. Statements are
// written with "?" placeholders; Rebind rewrites them for Postgres.
//
//	drv, err := sql.Open(dialect.SQLite, "file:app.db")
//	if err != nil {
//		return err
//	}
//	defer drv.Close()
//
// # Sessions
//
// Session executes the mapped statements of a builder.Configuration and
// implements binding.Session, so mapper proxies can be backed by it.
//
//	session := sql.NewSession(config, drv)
//	v, err := session.SelectOne(ctx, "blog.Author.find", 1)
//
// Each session keeps a local cache keyed by cache.CacheKey, cleared by
// every insert, update and delete. Namespaces that declare a cache share a
// second-level cache across sessions. Result maps drive row mapping,
// including discriminators, nested selects and joined nested results.
//
// # Instrumentation
//
// Session tags the context of every statement it runs with the mapped
// statement id (see StatementID). StatsDriver keeps counters per id and
// reports slow statements; DebugDriver logs every statement with its id
// through log/slog. Both wrap any dialect.Driver.
//
//	stats := sql.NewStatsDriver(drv, sql.WithSlowStatementLog(slog.Default()))
//	session := sql.NewSession(config, stats)
//	...
//	for _, s := range stats.Statements() {
//		fmt.Println(s)
//	}
package sql
