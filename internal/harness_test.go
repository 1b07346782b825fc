package internal

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lychee-technology/prism"
)

// fakeConn carries a dialect but cannot execute; planner tests only need the
// dialect selection.
type fakeConn struct {
	dialect prism.Dialect
}

func (f fakeConn) Dialect() prism.Dialect { return f.dialect }

func (f fakeConn) Query(ctx context.Context, sql string, args ...any) (prism.Rows, error) {
	return nil, fmt.Errorf("fakeConn does not execute")
}

// stubRows replays canned result rows through the Rows interface.
type stubRows struct {
	cols []string
	data [][]any
	pos  int
	err  error
}

func (r *stubRows) Columns() []string { return r.cols }

func (r *stubRows) Next() bool {
	if r.pos >= len(r.data) {
		return false
	}
	r.pos++
	return true
}

func (r *stubRows) Values() ([]any, error) { return r.data[r.pos-1], nil }
func (r *stubRows) Err() error             { return r.err }
func (r *stubRows) Close()                 {}

// stubConn returns the same canned rows for every statement.
type stubConn struct {
	dialect prism.Dialect
	cols    []string
	data    [][]any
	lastSQL string
	lastArg []any
	queryErr error
}

func (s *stubConn) Dialect() prism.Dialect { return s.dialect }

func (s *stubConn) Query(ctx context.Context, sql string, args ...any) (prism.Rows, error) {
	s.lastSQL = sql
	s.lastArg = args
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	return &stubRows{cols: s.cols, data: s.data}, nil
}

func testRegistry(t *testing.T) *prism.CubeRegistry {
	t.Helper()
	reg := prism.NewCubeRegistry()

	employees := &prism.Cube{
		Name:  "Employees",
		Title: "Employees",
		Base: func(qctx *prism.QueryContext) prism.BaseQuery {
			return prism.BaseQuery{
				From: "employees",
				Where: prism.Expression{
					SQL:  "{CUBE}.org_id = ?",
					Args: []any{qctx.Security.OrganisationID},
				},
			}
		},
		Dimensions: map[string]prism.Dimension{
			"id":      {SQL: prism.Expression{SQL: "id"}, Type: prism.DimensionTypeNumber, PrimaryKey: true},
			"name":    {SQL: prism.Expression{SQL: "name"}, Type: prism.DimensionTypeString},
			"squad":   {SQL: prism.Expression{SQL: "squad"}, Type: prism.DimensionTypeString, Title: "Squad"},
			"active":  {SQL: prism.Expression{SQL: "active"}, Type: prism.DimensionTypeBoolean},
			"hiredAt": {SQL: prism.Expression{SQL: "hired_at"}, Type: prism.DimensionTypeTime},
			"deptId":  {SQL: prism.Expression{SQL: "dept_id"}, Type: prism.DimensionTypeNumber},
		},
		Measures: map[string]prism.Measure{
			"count": {Type: prism.MeasureCount},
			"activeCount": {
				Type:    prism.MeasureCount,
				Filters: []prism.Filter{prism.Where("active", prism.OpEquals, true)},
			},
			"salarySum":    {Type: prism.MeasureSum, SQL: prism.Expression{SQL: "salary"}},
			"avgSalary":    {Type: prism.MeasureAvg, SQL: prism.Expression{SQL: "salary"}},
			"medianSalary": {Type: prism.MeasureMedian, SQL: prism.Expression{SQL: "salary"}},
			"stddevSalary": {Type: prism.MeasureStdDev, SQL: prism.Expression{SQL: "salary"}},
			"squads":       {Type: prism.MeasureCountDistinct, SQL: prism.Expression{SQL: "squad"}},
			"squadsApprox": {Type: prism.MeasureCountDistinctApprox, SQL: prism.Expression{SQL: "squad"}},
			"activeShare": {
				Type:   prism.MeasureCalculated,
				SQL:    prism.Expression{SQL: "{activeCount} / NULLIF({count}, 0) * 100"},
				Format: prism.FormatPercent,
			},
			"badCalc": {
				Type: prism.MeasureCalculated,
				SQL:  prism.Expression{SQL: "{missing} + 1"},
			},
			"loopA": {Type: prism.MeasureCalculated, SQL: prism.Expression{SQL: "{loopB} + 1"}},
			"loopB": {Type: prism.MeasureCalculated, SQL: prism.Expression{SQL: "{loopA} + 1"}},
			"runningCount": {
				Type: prism.MeasureWindow,
				Window: &prism.WindowSpec{
					Function: prism.WindowRunningTotal,
					Source:   "count",
					OrderBy:  []string{"hiredAt"},
				},
			},
			"salaryChange": {
				Type: prism.MeasureWindow,
				Window: &prism.WindowSpec{
					Function:  prism.WindowLag,
					Source:    "salarySum",
					Operation: prism.WindowOpPercentChange,
					OrderBy:   []string{"hiredAt"},
				},
			},
			"salaryRank": {
				Type: prism.MeasureWindow,
				Window: &prism.WindowSpec{
					Function: prism.WindowRank,
					Source:   "salarySum",
				},
			},
		},
		Joins: map[string]prism.Join{
			"department": {
				TargetCube:   "Departments",
				Relationship: prism.BelongsTo,
				Columns:      []prism.JoinColumn{{SourceColumn: "dept_id", TargetColumn: "id"}},
			},
		},
		Hierarchies: map[string]prism.Hierarchy{
			"org": {Name: "org", Levels: []string{"squad", "name"}},
		},
	}

	departments := &prism.Cube{
		Name: "Departments",
		Dimensions: map[string]prism.Dimension{
			"id":   {SQL: prism.Expression{SQL: "id"}, Type: prism.DimensionTypeNumber, PrimaryKey: true},
			"name": {SQL: prism.Expression{SQL: "name"}, Type: prism.DimensionTypeString},
		},
		Measures: map[string]prism.Measure{
			"count": {Type: prism.MeasureCount},
		},
	}

	events := &prism.Cube{
		Name:        "PREvents",
		EventStream: true,
		Base: func(qctx *prism.QueryContext) prism.BaseQuery {
			return prism.BaseQuery{
				From: "pr_events",
				Where: prism.Expression{
					SQL:  "{CUBE}.org_id = ?",
					Args: []any{qctx.Security.OrganisationID},
				},
			}
		},
		Dimensions: map[string]prism.Dimension{
			"id":         {SQL: prism.Expression{SQL: "id"}, Type: prism.DimensionTypeNumber, PrimaryKey: true},
			"actorId":    {SQL: prism.Expression{SQL: "actor_id"}, Type: prism.DimensionTypeString},
			"eventType":  {SQL: prism.Expression{SQL: "event_type"}, Type: prism.DimensionTypeString},
			"occurredAt": {SQL: prism.Expression{SQL: "occurred_at"}, Type: prism.DimensionTypeTime},
			"repo":       {SQL: prism.Expression{SQL: "repo"}, Type: prism.DimensionTypeString},
		},
		Measures: map[string]prism.Measure{
			"count": {Type: prism.MeasureCount},
		},
	}

	orphans := &prism.Cube{
		Name: "Orphans",
		Dimensions: map[string]prism.Dimension{
			"id": {SQL: prism.Expression{SQL: "id"}, Type: prism.DimensionTypeNumber},
		},
		Measures: map[string]prism.Measure{
			"count": {Type: prism.MeasureCount},
		},
	}

	for _, cube := range []*prism.Cube{employees, departments, events, orphans} {
		require.NoError(t, reg.Register(cube))
	}
	require.NoError(t, reg.Freeze())
	return reg
}

func testQueryContext(dialect prism.Dialect) *prism.QueryContext {
	return &prism.QueryContext{
		Security: prism.SecurityContext{OrganisationID: 42},
		Conn:     fakeConn{dialect: dialect},
		Now:      time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC),
		Location: time.UTC,
		QueryID:  "test-query",
	}
}

func testPlanner(t *testing.T) *Planner {
	t.Helper()
	return NewPlanner(testRegistry(t), prism.DefaultConfig())
}
