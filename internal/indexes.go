package internal

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/lychee-technology/prism"
)

// TableIndexes lists existing indexes for the given tables through the
// engine's system catalog, normalised into IndexInfo records.
func (e *Executor) TableIndexes(ctx context.Context, qctx *prism.QueryContext, tables []string) ([]prism.IndexInfo, error) {
	if len(tables) == 0 {
		return []prism.IndexInfo{}, nil
	}
	d, err := DialectFor(qctx.Conn.Dialect())
	if err != nil {
		return nil, err
	}
	switch d.Name() {
	case prism.DialectPostgres:
		return e.postgresIndexes(ctx, qctx, d, tables)
	case prism.DialectMySQL, prism.DialectSingleStore:
		return e.mysqlIndexes(ctx, qctx, d, tables)
	case prism.DialectSQLite:
		return e.sqliteIndexes(ctx, qctx, tables)
	case prism.DialectDuckDB:
		return e.duckdbIndexes(ctx, qctx, d, tables)
	default:
		return nil, prism.NewError(prism.ErrorTypeMetadata, prism.ErrKindMetaUnavailable,
			fmt.Sprintf("no index catalog for dialect '%s'", d.Name()))
	}
}

func inList(values []string) fragment {
	parts := make([]fragment, len(values))
	for i, v := range values {
		parts[i] = bind(v)
	}
	return concat(", ", parts...)
}

func (e *Executor) postgresIndexes(ctx context.Context, qctx *prism.QueryContext, d Dialect, tables []string) ([]prism.IndexInfo, error) {
	stmt := fragf(
		"SELECT t.relname AS table_name, i.relname AS index_name, a.attname AS column_name, "+
			"ix.indisunique AS is_unique, ix.indisprimary AS is_primary\n"+
			"FROM pg_class t\n"+
			"JOIN pg_index ix ON t.oid = ix.indrelid\n"+
			"JOIN pg_class i ON i.oid = ix.indexrelid\n"+
			"JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(ix.indkey)\n"+
			"WHERE t.relname IN (%s)\n"+
			"ORDER BY t.relname, i.relname, array_position(ix.indkey, a.attnum)",
		inList(tables))
	sql, params := finalizeSQL(stmt, d)
	_, rows, err := e.runRaw(ctx, sql, params, qctx)
	if err != nil {
		return nil, err
	}
	return groupIndexRows(rows), nil
}

func (e *Executor) mysqlIndexes(ctx context.Context, qctx *prism.QueryContext, d Dialect, tables []string) ([]prism.IndexInfo, error) {
	stmt := fragf(
		"SELECT TABLE_NAME, INDEX_NAME, COLUMN_NAME, NON_UNIQUE = 0 AS is_unique, "+
			"INDEX_NAME = 'PRIMARY' AS is_primary\n"+
			"FROM information_schema.statistics\n"+
			"WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME IN (%s)\n"+
			"ORDER BY TABLE_NAME, INDEX_NAME, SEQ_IN_INDEX",
		inList(tables))
	sql, params := finalizeSQL(stmt, d)
	_, rows, err := e.runRaw(ctx, sql, params, qctx)
	if err != nil {
		return nil, err
	}
	return groupIndexRows(rows), nil
}

// sqliteIndexes walks pragma_index_list and pragma_index_info per table;
// sqlite has no single catalog view joining both.
func (e *Executor) sqliteIndexes(ctx context.Context, qctx *prism.QueryContext, tables []string) ([]prism.IndexInfo, error) {
	out := []prism.IndexInfo{}
	for _, table := range tables {
		_, indexRows, err := e.runRaw(ctx,
			"SELECT name, \"unique\", origin FROM pragma_index_list(?)", []any{table}, qctx)
		if err != nil {
			return nil, err
		}
		for _, row := range indexRows {
			if len(row) < 3 {
				continue
			}
			name := asString(row[0])
			unique, _ := asNumber(row[1])
			origin := asString(row[2])

			_, colRows, err := e.runRaw(ctx,
				"SELECT name FROM pragma_index_info(?) ORDER BY seqno", []any{name}, qctx)
			if err != nil {
				return nil, err
			}
			var columns []string
			for _, cr := range colRows {
				if len(cr) > 0 {
					columns = append(columns, asString(cr[0]))
				}
			}
			out = append(out, prism.IndexInfo{
				TableName: table,
				IndexName: name,
				Columns:   columns,
				Unique:    unique != 0,
				Primary:   origin == "pk",
			})
		}
	}
	return out, nil
}

var createIndexColumns = regexp.MustCompile(`\(([^)]+)\)\s*$`)

func (e *Executor) duckdbIndexes(ctx context.Context, qctx *prism.QueryContext, d Dialect, tables []string) ([]prism.IndexInfo, error) {
	stmt := fragf(
		"SELECT table_name, index_name, is_unique, is_primary, sql\n"+
			"FROM duckdb_indexes()\nWHERE table_name IN (%s)\nORDER BY table_name, index_name",
		inList(tables))
	sql, params := finalizeSQL(stmt, d)
	_, rows, err := e.runRaw(ctx, sql, params, qctx)
	if err != nil {
		return nil, err
	}

	out := []prism.IndexInfo{}
	for _, row := range rows {
		if len(row) < 5 {
			continue
		}
		unique, _ := asNumber(row[2])
		primary, _ := asNumber(row[3])
		info := prism.IndexInfo{
			TableName: asString(row[0]),
			IndexName: asString(row[1]),
			Unique:    unique != 0,
			Primary:   primary != 0,
		}
		// duckdb_indexes carries no per-column rows; recover the column
		// list from the stored CREATE INDEX text.
		if m := createIndexColumns.FindStringSubmatch(asString(row[4])); m != nil {
			for _, col := range strings.Split(m[1], ",") {
				info.Columns = append(info.Columns, strings.Trim(strings.TrimSpace(col), `"`))
			}
		}
		out = append(out, info)
	}
	return out, nil
}

// groupIndexRows folds (table, index, column, unique, primary) rows into one
// IndexInfo per index, preserving column order.
func groupIndexRows(rows [][]any) []prism.IndexInfo {
	out := []prism.IndexInfo{}
	pos := map[string]int{}
	for _, row := range rows {
		if len(row) < 5 {
			continue
		}
		table, index := asString(row[0]), asString(row[1])
		key := table + "\x00" + index
		if i, ok := pos[key]; ok {
			out[i].Columns = append(out[i].Columns, asString(row[2]))
			continue
		}
		unique, _ := asNumber(row[3])
		primary, _ := asNumber(row[4])
		pos[key] = len(out)
		out = append(out, prism.IndexInfo{
			TableName: table,
			IndexName: index,
			Columns:   []string{asString(row[2])},
			Unique:    unique != 0,
			Primary:   primary != 0,
		})
	}
	return out
}
