package internal

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/lychee-technology/prism"
)

// Explain runs the dialect's plan-inspection command over a compiled
// statement and normalises the engine-specific output into a common
// operation tree. Engines whose EXPLAIN rejects bound parameters get the
// literals inlined first.
func (e *Executor) Explain(ctx context.Context, plan *prism.CompiledQuery, qctx *prism.QueryContext, analyze bool) (*prism.ExplainResult, error) {
	d, err := DialectFor(qctx.Conn.Dialect())
	if err != nil {
		return nil, err
	}

	sqlText, params := plan.SQL, plan.Params
	if d.ExplainNeedsInlineParams() && len(params) > 0 {
		sqlText, err = inlineParams(sqlText, params, d)
		if err != nil {
			return nil, err
		}
		params = nil
	}
	stmt := d.ExplainCommand(analyze) + " " + sqlText

	cols, rows, err := e.runRaw(ctx, stmt, params, qctx)
	if err != nil {
		return nil, err
	}

	result := &prism.ExplainResult{
		Database: string(d.Name()),
		SQL:      prism.ExplainSQL{Text: plan.SQL, Params: plan.Params},
	}
	switch d.Name() {
	case prism.DialectPostgres:
		result.Raw = rawLines(rows)
		result.Operations, result.Summary = parsePostgresExplain(result.Raw)
	case prism.DialectDuckDB:
		result.Raw = rawLines(rows)
		result.Operations, result.Summary = parseDuckDBExplain(result.Raw)
	case prism.DialectMySQL, prism.DialectSingleStore:
		result.Raw = tabularLines(cols, rows)
		result.Operations, result.Summary = parseMySQLExplain(cols, rows)
	case prism.DialectSQLite:
		result.Raw = tabularLines(cols, rows)
		result.Operations, result.Summary = parseSQLiteExplain(rows)
	default:
		result.Raw = rawLines(rows)
	}
	return result, nil
}

// runRaw executes a statement and captures all rows without coercion.
func (e *Executor) runRaw(ctx context.Context, sql string, params []any, qctx *prism.QueryContext) ([]string, [][]any, error) {
	timeout := qctx.Timeout
	if timeout <= 0 {
		timeout = e.cfg.Query.DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	rows, err := qctx.Conn.Query(ctx, sql, params...)
	if err != nil {
		return nil, nil, e.mapError(ctx, err, &prism.CompiledQuery{SQL: sql, Params: params})
	}
	defer rows.Close()

	cols := rows.Columns()
	var out [][]any
	for rows.Next() {
		vals, verr := rows.Values()
		if verr != nil {
			return nil, nil, e.mapError(ctx, verr, &prism.CompiledQuery{SQL: sql, Params: params})
		}
		out = append(out, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, e.mapError(ctx, err, &prism.CompiledQuery{SQL: sql, Params: params})
	}
	return cols, out, nil
}

func rawLines(rows [][]any) []string {
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		if len(row) > 0 {
			lines = append(lines, asString(row[0]))
		}
	}
	return lines
}

func tabularLines(cols []string, rows [][]any) []string {
	lines := []string{strings.Join(cols, "\t")}
	for _, row := range rows {
		parts := make([]string, len(row))
		for i, v := range row {
			parts[i] = asString(v)
		}
		lines = append(lines, strings.Join(parts, "\t"))
	}
	return lines
}

var dollarPlaceholder = regexp.MustCompile(`\$(\d+)`)

// inlineParams substitutes bound parameters with SQL literals for engines
// whose EXPLAIN cannot take them. Only planner-produced values reach this
// path; strings still get their quotes doubled.
func inlineParams(sql string, params []any, d Dialect) (string, error) {
	if d.PlaceholderDollar() {
		var substErr error
		out := dollarPlaceholder.ReplaceAllStringFunc(sql, func(m string) string {
			n, _ := strconv.Atoi(m[1:])
			if n < 1 || n > len(params) {
				substErr = fmt.Errorf("placeholder %s out of range for %d params", m, len(params))
				return m
			}
			return sqlLiteral(params[n-1])
		})
		return out, substErr
	}

	var b strings.Builder
	idx := 0
	for i := 0; i < len(sql); i++ {
		if sql[i] != '?' {
			b.WriteByte(sql[i])
			continue
		}
		if idx >= len(params) {
			return "", fmt.Errorf("statement has more placeholders than %d params", len(params))
		}
		b.WriteString(sqlLiteral(params[idx]))
		idx++
	}
	return b.String(), nil
}

func sqlLiteral(v any) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case bool:
		if t {
			return "TRUE"
		}
		return "FALSE"
	case time.Time:
		return "'" + t.Format("2006-01-02 15:04:05.000000-07:00") + "'"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", t)
	case float32, float64:
		return fmt.Sprintf("%v", t)
	case string:
		return "'" + strings.ReplaceAll(t, "'", "''") + "'"
	case []byte:
		return "'" + strings.ReplaceAll(string(t), "'", "''") + "'"
	default:
		return "'" + strings.ReplaceAll(fmt.Sprintf("%v", t), "'", "''") + "'"
	}
}

// ---------------------------------------------------------------------------
// PostgreSQL

var pgNodePattern = regexp.MustCompile(
	`^(->\s+)?(.+?)\s+\(cost=([0-9.]+)\.\.([0-9.]+) rows=([0-9]+) width=[0-9]+\)` +
		`(?:\s+\(actual time=([0-9.]+)\.\.([0-9.]+) rows=([0-9]+)[^)]*\))?`)

var pgRelationPattern = regexp.MustCompile(`\bon ([A-Za-z_][A-Za-z0-9_."]*)`)

// parsePostgresExplain rebuilds the indented text plan into a tree. Lines
// carrying no cost annotation (sort keys, filters) attach to the nearest
// node's Extra.
func parsePostgresExplain(lines []string) ([]prism.ExplainOperation, prism.ExplainSummary) {
	type stackEntry struct {
		indent int
		op     *prism.ExplainOperation
	}
	var roots []prism.ExplainOperation
	var stack []stackEntry
	var summary prism.ExplainSummary

	for _, line := range lines {
		trimmed := strings.TrimLeft(line, " ")
		indent := len(line) - len(trimmed)
		m := pgNodePattern.FindStringSubmatch(trimmed)
		if m == nil {
			if len(stack) > 0 {
				top := stack[len(stack)-1].op
				if top.Extra == "" {
					top.Extra = strings.TrimSpace(trimmed)
				}
			}
			continue
		}

		op := prism.ExplainOperation{NodeType: strings.TrimSpace(m[2])}
		if rel := pgRelationPattern.FindStringSubmatch(op.NodeType); rel != nil {
			op.Relation = strings.Trim(rel[1], `"`)
			op.NodeType = strings.TrimSpace(strings.SplitN(op.NodeType, " on ", 2)[0])
		}
		op.EstimatedCost, _ = strconv.ParseFloat(m[4], 64)
		op.EstimatedRows, _ = strconv.ParseFloat(m[5], 64)
		if m[7] != "" {
			op.ActualTime, _ = strconv.ParseFloat(m[7], 64)
			op.ActualRows, _ = strconv.ParseFloat(m[8], 64)
		}

		for len(stack) > 0 && stack[len(stack)-1].indent >= indent {
			stack = stack[:len(stack)-1]
		}
		if len(stack) == 0 {
			roots = append(roots, op)
			stack = append(stack, stackEntry{indent, &roots[len(roots)-1]})
			summary.Cost = op.EstimatedCost
			summary.RowsProcessed = op.EstimatedRows
			if op.ActualRows > 0 {
				summary.RowsProcessed = op.ActualRows
			}
			continue
		}
		parent := stack[len(stack)-1].op
		parent.Children = append(parent.Children, op)
		stack = append(stack, stackEntry{indent, &parent.Children[len(parent.Children)-1]})
	}

	for _, root := range roots {
		walkExplain(root, func(op prism.ExplainOperation) {
			if strings.Contains(op.NodeType, "Seq Scan") {
				summary.Warnings = append(summary.Warnings,
					fmt.Sprintf("sequential scan on %s", op.Relation))
			}
		})
	}
	return roots, summary
}

// ---------------------------------------------------------------------------
// MySQL / SingleStore

// accessTypeSeverity orders MySQL access types from worst to best.
var accessTypeSeverity = map[string]string{
	"ALL":    "full table scan",
	"index":  "full index scan",
	"range":  "index range scan",
	"ref":    "index lookup",
	"eq_ref": "unique index lookup",
	"const":  "constant lookup",
	"system": "constant lookup",
}

func parseMySQLExplain(cols []string, rows [][]any) ([]prism.ExplainOperation, prism.ExplainSummary) {
	idx := map[string]int{}
	for i, c := range cols {
		idx[strings.ToLower(c)] = i
	}
	col := func(row []any, name string) string {
		if i, ok := idx[name]; ok && i < len(row) {
			return asString(row[i])
		}
		return ""
	}

	var ops []prism.ExplainOperation
	var summary prism.ExplainSummary
	for _, row := range rows {
		accessType := col(row, "type")
		op := prism.ExplainOperation{
			NodeType: col(row, "select_type") + " " + accessType,
			Relation: col(row, "table"),
			Extra:    col(row, "extra"),
		}
		op.EstimatedRows, _ = strconv.ParseFloat(col(row, "rows"), 64)
		summary.RowsProcessed += op.EstimatedRows
		if accessType == "ALL" {
			summary.Warnings = append(summary.Warnings,
				fmt.Sprintf("full table scan on %s", op.Relation))
		} else if sev, ok := accessTypeSeverity[accessType]; ok && op.Extra == "" {
			op.Extra = sev
		}
		ops = append(ops, op)
	}
	return ops, summary
}

// ---------------------------------------------------------------------------
// SQLite

// parseSQLiteExplain flattens EXPLAIN QUERY PLAN's (id, parent, notused,
// detail) rows into a tree keyed by parent id.
func parseSQLiteExplain(rows [][]any) ([]prism.ExplainOperation, prism.ExplainSummary) {
	type entry struct {
		id, parent int
		op         prism.ExplainOperation
	}
	var entries []entry
	for _, row := range rows {
		if len(row) < 4 {
			continue
		}
		id, _ := asNumber(row[0])
		parent, _ := asNumber(row[1])
		detail := asString(row[3])
		entries = append(entries, entry{
			id:     int(id),
			parent: int(parent),
			op:     prism.ExplainOperation{NodeType: detail, Relation: sqliteRelation(detail)},
		})
	}

	var summary prism.ExplainSummary
	byID := map[int]*prism.ExplainOperation{}
	for i := range entries {
		byID[entries[i].id] = &entries[i].op
		if strings.HasPrefix(entries[i].op.NodeType, "SCAN") {
			summary.Warnings = append(summary.Warnings,
				fmt.Sprintf("full scan: %s", entries[i].op.NodeType))
		}
	}
	var roots []prism.ExplainOperation
	// Children attach in reverse so nested subtrees are complete before
	// their parent is copied.
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if parent, ok := byID[e.parent]; ok && e.parent != e.id {
			parent.Children = append([]prism.ExplainOperation{e.op}, parent.Children...)
		} else {
			roots = append([]prism.ExplainOperation{e.op}, roots...)
		}
	}
	return roots, summary
}

var sqliteScanPattern = regexp.MustCompile(`(?:SCAN|SEARCH)\s+(\S+)`)

func sqliteRelation(detail string) string {
	if m := sqliteScanPattern.FindStringSubmatch(detail); m != nil {
		return m[1]
	}
	return ""
}

// ---------------------------------------------------------------------------
// DuckDB

var duckdbBoxChars = strings.NewReplacer(
	"─", "", "│", "", "┌", "", "┐", "", "└", "", "┘", "", "├", "", "┤", "", "┬", "", "┴", "", "╂", "", "┼", "")

// parseDuckDBExplain extracts the operator names from the box-drawing plan.
// The full box output stays available in Raw.
func parseDuckDBExplain(lines []string) ([]prism.ExplainOperation, prism.ExplainSummary) {
	var ops []prism.ExplainOperation
	var summary prism.ExplainSummary
	for _, line := range lines {
		text := strings.TrimSpace(duckdbBoxChars.Replace(line))
		if text == "" {
			continue
		}
		if isDuckDBOperator(text) {
			ops = append(ops, prism.ExplainOperation{NodeType: text})
			continue
		}
		if rows, ok := strings.CutSuffix(text, " Rows"); ok {
			if n, err := strconv.ParseFloat(strings.TrimSpace(rows), 64); err == nil {
				summary.RowsProcessed += n
				if len(ops) > 0 {
					ops[len(ops)-1].ActualRows = n
				}
			}
		}
	}
	return ops, summary
}

func isDuckDBOperator(text string) bool {
	if text == "" {
		return false
	}
	for _, r := range text {
		if !(r == '_' || r == ' ' || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return false
		}
	}
	return strings.ContainsFunc(text, func(r rune) bool { return r >= 'A' && r <= 'Z' })
}

func walkExplain(op prism.ExplainOperation, fn func(prism.ExplainOperation)) {
	fn(op)
	for _, child := range op.Children {
		walkExplain(child, fn)
	}
}
