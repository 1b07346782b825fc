package e2e_harness

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lychee-technology/prism"
	"github.com/lychee-technology/prism/factory"
	"github.com/lychee-technology/prism/internal"
)

func e2eRegistry(t *testing.T) *prism.CubeRegistry {
	t.Helper()
	reg := prism.NewCubeRegistry()

	require.NoError(t, reg.Register(&prism.Cube{
		Name: "Employees",
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
			"squad":   {SQL: prism.Expression{SQL: "squad"}, Type: prism.DimensionTypeString},
			"active":  {SQL: prism.Expression{SQL: "active"}, Type: prism.DimensionTypeBoolean},
			"hiredAt": {SQL: prism.Expression{SQL: "hired_at"}, Type: prism.DimensionTypeTime},
			"deptId":  {SQL: prism.Expression{SQL: "dept_id"}, Type: prism.DimensionTypeNumber},
		},
		Measures: map[string]prism.Measure{
			"count":     {Type: prism.MeasureCount},
			"salarySum": {Type: prism.MeasureSum, SQL: prism.Expression{SQL: "salary"}},
		},
		Joins: map[string]prism.Join{
			"department": {TargetCube: "Departments", Relationship: prism.BelongsTo,
				Columns: []prism.JoinColumn{{SourceColumn: "dept_id", TargetColumn: "id"}}},
		},
	}))
	require.NoError(t, reg.Register(&prism.Cube{
		Name: "Departments",
		Dimensions: map[string]prism.Dimension{
			"id":   {SQL: prism.Expression{SQL: "id"}, Type: prism.DimensionTypeNumber, PrimaryKey: true},
			"name": {SQL: prism.Expression{SQL: "name"}, Type: prism.DimensionTypeString},
		},
		Measures: map[string]prism.Measure{"count": {Type: prism.MeasureCount}},
	}))
	require.NoError(t, reg.Register(&prism.Cube{
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
		},
		Measures: map[string]prism.Measure{"count": {Type: prism.MeasureCount}},
	}))
	return reg
}

func TestEndToEndPostgres(t *testing.T) {
	if os.Getenv("PRISM_E2E") == "" {
		t.Skip("end-to-end test - requires Docker (set PRISM_E2E=1)")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	h := &TestHarness{}
	_, err := h.StartPostgres(ctx)
	require.NoError(t, err)
	defer h.StopPostgres(context.Background())
	require.NoError(t, h.SeedEmployees(ctx, h.PGDB))

	eng, err := factory.NewEngine(e2eRegistry(t), nil)
	require.NoError(t, err)
	qctx := &prism.QueryContext{
		Security: prism.SecurityContext{OrganisationID: 42},
		Conn:     internal.NewSQLConnection(h.PGDB, prism.DialectPostgres),
	}

	rs, err := eng.Execute(ctx, &prism.SemanticQuery{
		Measures:   []string{"Employees.count", "Employees.salarySum"},
		Dimensions: []string{"Employees.squad"},
		Order:      []prism.OrderEntry{{Member: "Employees.count", Direction: prism.OrderDesc}},
	}, qctx)
	require.NoError(t, err)
	// Org 77's rows stay invisible behind the security scope.
	require.Len(t, rs.Data, 3)
	assert.Equal(t, "core", rs.Data[0]["Employees.squad"])
	assert.Equal(t, float64(2), rs.Data[0]["Employees.count"])

	fr, err := eng.ExecuteFlow(ctx, &prism.SemanticQuery{Flow: &prism.FlowConfig{
		StartingStep:   prism.Where("eventType", prism.OpEquals, "opened"),
		BindingKey:     "PREvents.actorId",
		TimeDimension:  "PREvents.occurredAt",
		EventDimension: "PREvents.eventType",
		StepsAfter:     2,
	}}, qctx)
	require.NoError(t, err)
	assert.NotEmpty(t, fr.Nodes)

	explain, err := eng.Explain(ctx, &prism.SemanticQuery{
		Measures: []string{"Employees.count"},
	}, qctx, false)
	require.NoError(t, err)
	assert.Equal(t, "postgres", explain.Database)
	assert.NotEmpty(t, explain.Operations)

	indexes, err := eng.TableIndexes(ctx, qctx, []string{"employees"})
	require.NoError(t, err)
	assert.NotEmpty(t, indexes)

	values, err := eng.DistinctValues(ctx, "Employees.squad", qctx, 10)
	require.NoError(t, err)
	assert.Len(t, values, 3)
}

func TestEndToEndDuckDB(t *testing.T) {
	if os.Getenv("PRISM_E2E") == "" {
		t.Skip("end-to-end test - requires the embedded DuckDB driver (set PRISM_E2E=1)")
	}
	ctx := context.Background()

	h := &TestHarness{}
	require.NoError(t, h.StartDuckDB(prism.DuckDBConfig{}))
	defer h.StopDuckDB()
	require.NoError(t, h.SeedEmployees(ctx, h.Duck.DB))

	eng, err := factory.NewEngine(e2eRegistry(t), nil)
	require.NoError(t, err)
	qctx := &prism.QueryContext{
		Security: prism.SecurityContext{OrganisationID: 42},
		Conn:     h.Duck.Connection(),
	}

	rs, err := eng.Execute(ctx, &prism.SemanticQuery{
		Measures:   []string{"Employees.count"},
		Dimensions: []string{"Departments.name"},
	}, qctx)
	require.NoError(t, err)
	require.Len(t, rs.Data, 2)
}
