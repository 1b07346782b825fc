package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lychee-technology/prism"
)

func TestResolveExpressionBareColumn(t *testing.T) {
	d, _ := DialectFor(prism.DialectPostgres)
	f, err := resolveExpression(d, "Employees", prism.Expression{SQL: "hired_at"})
	require.NoError(t, err)
	assert.Equal(t, `"Employees"."hired_at"`, f.SQL)
	assert.Empty(t, f.Args)
}

func TestResolveExpressionTemplate(t *testing.T) {
	d, _ := DialectFor(prism.DialectPostgres)
	f, err := resolveExpression(d, "Employees", prism.Expression{
		SQL:  "COALESCE({CUBE}.nickname, {CUBE}.name, ?)",
		Args: []any{"unknown"},
	})
	require.NoError(t, err)
	assert.Equal(t, `COALESCE("Employees".nickname, "Employees".name, ?)`, f.SQL)
	assert.Equal(t, []any{"unknown"}, f.Args)
}

func TestResolveExpressionRejectsBadShapes(t *testing.T) {
	d, _ := DialectFor(prism.DialectPostgres)

	_, err := resolveExpression(d, "Employees", prism.Expression{})
	require.Error(t, err)

	_, err = resolveExpression(d, "Employees", prism.Expression{SQL: "name", Args: []any{1}})
	require.Error(t, err)

	_, err = resolveExpression(d, "Employees", prism.Expression{SQL: "{CUBE}.a = ?"})
	require.Error(t, err)
}

func TestResolveBaseQuery(t *testing.T) {
	d, _ := DialectFor(prism.DialectPostgres)
	qctx := testQueryContext(prism.DialectPostgres)

	cube := &prism.Cube{
		Name: "Employees",
		Base: func(q *prism.QueryContext) prism.BaseQuery {
			return prism.BaseQuery{
				From:  "employees",
				Where: prism.Expression{SQL: "{CUBE}.org_id = ?", Args: []any{q.Security.OrganisationID}},
			}
		},
	}
	from, where, err := resolveBaseQuery(d, cube, qctx)
	require.NoError(t, err)
	assert.Equal(t, `"employees" AS "Employees"`, from.SQL)
	assert.Equal(t, `"Employees".org_id = ?`, where.SQL)
	assert.Equal(t, []any{int64(42)}, where.Args)
}

func TestResolveBaseQuerySubselect(t *testing.T) {
	d, _ := DialectFor(prism.DialectPostgres)
	cube := &prism.Cube{
		Name: "Active",
		Base: func(q *prism.QueryContext) prism.BaseQuery {
			return prism.BaseQuery{From: "SELECT * FROM employees WHERE active"}
		},
	}
	from, _, err := resolveBaseQuery(d, cube, testQueryContext(prism.DialectPostgres))
	require.NoError(t, err)
	assert.Equal(t, `(SELECT * FROM employees WHERE active) AS "Active"`, from.SQL)
}

func TestResolveBaseQueryDefaultsToSnakeCase(t *testing.T) {
	d, _ := DialectFor(prism.DialectPostgres)
	cube := &prism.Cube{Name: "TeamMembers"}
	from, where, err := resolveBaseQuery(d, cube, testQueryContext(prism.DialectPostgres))
	require.NoError(t, err)
	assert.Equal(t, `"team_members" AS "TeamMembers"`, from.SQL)
	assert.Empty(t, where.SQL)
}
