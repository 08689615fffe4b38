// Package dialect names the supported database backends and defines the
// driver contract mapped statements run on.
//
// Statements reach a Driver with "?" placeholders, as bound by
// mapping.BoundSQL, and a []any of arguments. Exec takes nil or a
// *sql.Result as its destination; Query fills the driver's rows type.
// Drivers rewrite placeholders for backends that number them.
//
// The dialect/sql package implements Driver on top of database/sql and
// provides the Session that executes bound mapper methods.
package dialect
