package internal

import (
	"fmt"
	"strings"
	"time"

	"github.com/lychee-technology/prism"
)

// Dialect encapsulates per-engine SQL idioms. Implementations are stateless
// values; capability differences are expressed as flags so planners can
// validate before generating.
type Dialect interface {
	Name() prism.Dialect

	// QuoteIdent quotes a single identifier, doubling embedded quote
	// characters.
	QuoteIdent(name string) string

	// PlaceholderDollar reports whether the engine uses $n placeholders
	// ($1, $2, ...) instead of ?.
	PlaceholderDollar() bool

	// DateTrunc returns the truncation expression for a granularity. The
	// result sorts naturally within the engine.
	DateTrunc(g prism.Granularity, expr string) (string, error)

	// Percentile returns the continuous-percentile aggregate at quantile q
	// over expr, or an error when the engine has none.
	Percentile(q float64, expr string) (string, error)

	// StdDev returns the sample standard deviation aggregate, or an error
	// when the engine has none.
	StdDev(expr string) (string, error)

	// ApproxCountDistinct returns the approximate distinct-count
	// aggregate, falling back to exact COUNT(DISTINCT) when the engine
	// has no approximation.
	ApproxCountDistinct(expr string) string

	// LikeCI builds the engine's case-insensitive LIKE predicate between
	// expr and a pattern placeholder.
	LikeCI(expr, pattern string, negate bool) string

	// TimeValue converts a resolved time into the bind value the driver
	// compares correctly against the engine's time columns.
	TimeValue(t time.Time) any

	// Capability flags.
	SupportsWindowFunctions() bool
	SupportsLateral() bool
	SupportsFlow() bool
	SupportsFilterClause() bool

	// ExplainCommand returns the statement prefix for plan inspection.
	ExplainCommand(analyze bool) string

	// ExplainNeedsInlineParams reports whether EXPLAIN rejects bound
	// parameters, requiring literals inlined into the statement text.
	ExplainNeedsInlineParams() bool
}

// DialectFor returns the adapter for a named engine.
func DialectFor(name prism.Dialect) (Dialect, error) {
	switch name {
	case prism.DialectPostgres:
		return postgresDialect{}, nil
	case prism.DialectMySQL:
		return mysqlDialect{name: prism.DialectMySQL}, nil
	case prism.DialectSingleStore:
		return mysqlDialect{name: prism.DialectSingleStore}, nil
	case prism.DialectSQLite:
		return sqliteDialect{}, nil
	case prism.DialectDuckDB:
		return duckdbDialect{}, nil
	default:
		return nil, prism.NewValidationError(prism.ErrKindUnsupportedMeasure,
			fmt.Sprintf("unknown dialect '%s'", name))
	}
}

func quoteDouble(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteBacktick(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// ---------------------------------------------------------------------------
// PostgreSQL

type postgresDialect struct{}

func (postgresDialect) Name() prism.Dialect       { return prism.DialectPostgres }
func (postgresDialect) QuoteIdent(n string) string { return quoteDouble(n) }
func (postgresDialect) PlaceholderDollar() bool    { return true }

func (postgresDialect) DateTrunc(g prism.Granularity, expr string) (string, error) {
	if !g.IsValid() {
		return "", invalidGranularity(g)
	}
	return fmt.Sprintf("DATE_TRUNC('%s', %s)", g, expr), nil
}

func (postgresDialect) Percentile(q float64, expr string) (string, error) {
	return fmt.Sprintf("PERCENTILE_CONT(%g) WITHIN GROUP (ORDER BY %s)", q, expr), nil
}

func (postgresDialect) StdDev(expr string) (string, error) {
	return fmt.Sprintf("STDDEV_SAMP(%s)", expr), nil
}

func (postgresDialect) ApproxCountDistinct(expr string) string {
	// No built-in HLL without extensions; exact count keeps parity.
	return fmt.Sprintf("COUNT(DISTINCT %s)", expr)
}

func (postgresDialect) LikeCI(expr, pattern string, negate bool) string {
	if negate {
		return fmt.Sprintf("%s NOT ILIKE %s", expr, pattern)
	}
	return fmt.Sprintf("%s ILIKE %s", expr, pattern)
}

func (postgresDialect) TimeValue(t time.Time) any { return t }

func (postgresDialect) SupportsWindowFunctions() bool { return true }
func (postgresDialect) SupportsLateral() bool         { return true }
func (postgresDialect) SupportsFlow() bool            { return true }
func (postgresDialect) SupportsFilterClause() bool    { return true }

func (postgresDialect) ExplainCommand(analyze bool) string {
	if analyze {
		return "EXPLAIN ANALYZE"
	}
	return "EXPLAIN"
}
func (postgresDialect) ExplainNeedsInlineParams() bool { return true }

// ---------------------------------------------------------------------------
// MySQL / SingleStore

type mysqlDialect struct {
	name prism.Dialect
}

func (d mysqlDialect) Name() prism.Dialect        { return d.name }
func (mysqlDialect) QuoteIdent(n string) string   { return quoteBacktick(n) }
func (mysqlDialect) PlaceholderDollar() bool      { return false }

func (mysqlDialect) DateTrunc(g prism.Granularity, expr string) (string, error) {
	switch g {
	case prism.GranularityYear:
		return fmt.Sprintf("DATE_FORMAT(%s, '%%Y-01-01 00:00:00')", expr), nil
	case prism.GranularityQuarter:
		return fmt.Sprintf(
			"CONCAT(YEAR(%s), '-', LPAD((QUARTER(%s) - 1) * 3 + 1, 2, '0'), '-01 00:00:00')",
			expr, expr), nil
	case prism.GranularityMonth:
		return fmt.Sprintf("DATE_FORMAT(%s, '%%Y-%%m-01 00:00:00')", expr), nil
	case prism.GranularityWeek:
		// ISO week starting Monday.
		return fmt.Sprintf(
			"DATE_FORMAT(DATE_SUB(%s, INTERVAL WEEKDAY(%s) DAY), '%%Y-%%m-%%d 00:00:00')",
			expr, expr), nil
	case prism.GranularityDay:
		return fmt.Sprintf("DATE_FORMAT(%s, '%%Y-%%m-%%d 00:00:00')", expr), nil
	case prism.GranularityHour:
		return fmt.Sprintf("DATE_FORMAT(%s, '%%Y-%%m-%%d %%H:00:00')", expr), nil
	case prism.GranularityMinute:
		return fmt.Sprintf("DATE_FORMAT(%s, '%%Y-%%m-%%d %%H:%%i:00')", expr), nil
	default:
		return "", invalidGranularity(g)
	}
}

func (d mysqlDialect) Percentile(q float64, expr string) (string, error) {
	return "", prism.NewValidationError(prism.ErrKindUnsupportedMeasure,
		fmt.Sprintf("%s has no grouped continuous-percentile aggregate", d.name))
}

func (mysqlDialect) StdDev(expr string) (string, error) {
	return fmt.Sprintf("STDDEV_SAMP(%s)", expr), nil
}

func (d mysqlDialect) ApproxCountDistinct(expr string) string {
	if d.name == prism.DialectSingleStore {
		return fmt.Sprintf("APPROX_COUNT_DISTINCT(%s)", expr)
	}
	return fmt.Sprintf("COUNT(DISTINCT %s)", expr)
}

func (mysqlDialect) LikeCI(expr, pattern string, negate bool) string {
	// Default *_ci collations make LIKE case-insensitive.
	if negate {
		return fmt.Sprintf("%s NOT LIKE %s", expr, pattern)
	}
	return fmt.Sprintf("%s LIKE %s", expr, pattern)
}

func (mysqlDialect) TimeValue(t time.Time) any { return t }

func (mysqlDialect) SupportsWindowFunctions() bool { return true }
func (mysqlDialect) SupportsLateral() bool         { return true } // 8.0.14+
func (mysqlDialect) SupportsFlow() bool            { return true }
func (mysqlDialect) SupportsFilterClause() bool    { return false }

func (mysqlDialect) ExplainCommand(analyze bool) string {
	if analyze {
		return "EXPLAIN ANALYZE"
	}
	return "EXPLAIN"
}
func (mysqlDialect) ExplainNeedsInlineParams() bool { return true }

// ---------------------------------------------------------------------------
// SQLite

type sqliteDialect struct{}

func (sqliteDialect) Name() prism.Dialect        { return prism.DialectSQLite }
func (sqliteDialect) QuoteIdent(n string) string { return quoteDouble(n) }
func (sqliteDialect) PlaceholderDollar() bool    { return false }

func (sqliteDialect) DateTrunc(g prism.Granularity, expr string) (string, error) {
	switch g {
	case prism.GranularityYear:
		return fmt.Sprintf("strftime('%%Y-01-01 00:00:00', %s)", expr), nil
	case prism.GranularityQuarter:
		return fmt.Sprintf(
			"strftime('%%Y-', %s) || printf('%%02d', ((CAST(strftime('%%m', %s) AS INTEGER) - 1) / 3) * 3 + 1) || '-01 00:00:00'",
			expr, expr), nil
	case prism.GranularityMonth:
		return fmt.Sprintf("strftime('%%Y-%%m-01 00:00:00', %s)", expr), nil
	case prism.GranularityWeek:
		// Monday of the value's week.
		return fmt.Sprintf("date(%s, 'weekday 1', '-7 days') || ' 00:00:00'", expr), nil
	case prism.GranularityDay:
		return fmt.Sprintf("strftime('%%Y-%%m-%%d 00:00:00', %s)", expr), nil
	case prism.GranularityHour:
		return fmt.Sprintf("strftime('%%Y-%%m-%%d %%H:00:00', %s)", expr), nil
	case prism.GranularityMinute:
		return fmt.Sprintf("strftime('%%Y-%%m-%%d %%H:%%M:00', %s)", expr), nil
	default:
		return "", invalidGranularity(g)
	}
}

func (sqliteDialect) Percentile(q float64, expr string) (string, error) {
	return "", prism.NewValidationError(prism.ErrKindUnsupportedMeasure,
		"sqlite has no continuous-percentile aggregate")
}

func (sqliteDialect) StdDev(expr string) (string, error) {
	return "", prism.NewValidationError(prism.ErrKindUnsupportedMeasure,
		"sqlite has no standard-deviation aggregate")
}

func (sqliteDialect) ApproxCountDistinct(expr string) string {
	return fmt.Sprintf("COUNT(DISTINCT %s)", expr)
}

func (sqliteDialect) LikeCI(expr, pattern string, negate bool) string {
	// LIKE is ASCII case-insensitive by default.
	if negate {
		return fmt.Sprintf("%s NOT LIKE %s", expr, pattern)
	}
	return fmt.Sprintf("%s LIKE %s", expr, pattern)
}

func (sqliteDialect) TimeValue(t time.Time) any {
	// Text columns compare lexicographically, so emit a sortable literal.
	return t.UTC().Format("2006-01-02 15:04:05.000")
}

func (sqliteDialect) SupportsWindowFunctions() bool { return true } // 3.25+
func (sqliteDialect) SupportsLateral() bool         { return false }
func (sqliteDialect) SupportsFlow() bool            { return false }
func (sqliteDialect) SupportsFilterClause() bool    { return true }

func (sqliteDialect) ExplainCommand(analyze bool) string {
	return "EXPLAIN QUERY PLAN"
}
func (sqliteDialect) ExplainNeedsInlineParams() bool { return false }

// ---------------------------------------------------------------------------
// DuckDB

type duckdbDialect struct{}

func (duckdbDialect) Name() prism.Dialect        { return prism.DialectDuckDB }
func (duckdbDialect) QuoteIdent(n string) string { return quoteDouble(n) }
func (duckdbDialect) PlaceholderDollar() bool    { return false }

func (duckdbDialect) DateTrunc(g prism.Granularity, expr string) (string, error) {
	if !g.IsValid() {
		return "", invalidGranularity(g)
	}
	return fmt.Sprintf("DATE_TRUNC('%s', %s)", g, expr), nil
}

func (duckdbDialect) Percentile(q float64, expr string) (string, error) {
	return fmt.Sprintf("QUANTILE_CONT(%s, %g)", expr, q), nil
}

func (duckdbDialect) StdDev(expr string) (string, error) {
	return fmt.Sprintf("STDDEV_SAMP(%s)", expr), nil
}

func (duckdbDialect) ApproxCountDistinct(expr string) string {
	return fmt.Sprintf("APPROX_COUNT_DISTINCT(%s)", expr)
}

func (duckdbDialect) LikeCI(expr, pattern string, negate bool) string {
	if negate {
		return fmt.Sprintf("%s NOT ILIKE %s", expr, pattern)
	}
	return fmt.Sprintf("%s ILIKE %s", expr, pattern)
}

func (duckdbDialect) TimeValue(t time.Time) any { return t }

func (duckdbDialect) SupportsWindowFunctions() bool { return true }
func (duckdbDialect) SupportsLateral() bool         { return true }
func (duckdbDialect) SupportsFlow() bool            { return true }
func (duckdbDialect) SupportsFilterClause() bool    { return true }

func (duckdbDialect) ExplainCommand(analyze bool) string {
	if analyze {
		return "EXPLAIN ANALYZE"
	}
	return "EXPLAIN"
}
func (duckdbDialect) ExplainNeedsInlineParams() bool { return true }

func invalidGranularity(g prism.Granularity) error {
	return prism.NewValidationError(prism.ErrKindInvalidGranularity,
		fmt.Sprintf("invalid granularity '%s'", g))
}
