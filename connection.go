package prism

import "context"

// Dialect names the SQL engine a connection speaks.
type Dialect string

const (
	DialectPostgres    Dialect = "postgres"
	DialectMySQL       Dialect = "mysql"
	DialectSingleStore Dialect = "singlestore"
	DialectSQLite      Dialect = "sqlite"
	DialectDuckDB      Dialect = "duckdb"
)

// Rows is the minimal cursor the executor consumes. Implementations wrap
// pgx.Rows or *sql.Rows; see internal/conn_pgx.go and internal/conn_sql.go.
type Rows interface {
	// Columns returns the projected column names in order.
	Columns() []string
	// Next advances to the next row, reporting false at the end.
	Next() bool
	// Values returns the current row's values, driver types preserved.
	Values() ([]any, error)
	// Err returns the error, if any, that ended iteration.
	Err() error
	// Close releases the cursor and its connection.
	Close()
}

// Connection is the injected database handle. The engine borrows it per
// query and never manages its lifecycle. Implementations must propagate ctx
// cancellation to the driver and release the underlying connection on every
// exit path.
type Connection interface {
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	Dialect() Dialect
}
