package internal

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lychee-technology/prism"
)

func compileOn(t *testing.T, dialect prism.Dialect, q *prism.SemanticQuery) (*prism.CompiledQuery, error) {
	t.Helper()
	return testPlanner(t).Compile(q, testQueryContext(dialect))
}

func mustCompile(t *testing.T, dialect prism.Dialect, q *prism.SemanticQuery) *prism.CompiledQuery {
	t.Helper()
	plan, err := compileOn(t, dialect, q)
	require.NoError(t, err)
	return plan
}

func TestCompileSimpleAggregation(t *testing.T) {
	plan := mustCompile(t, prism.DialectPostgres, &prism.SemanticQuery{
		Measures:   []string{"Employees.count"},
		Dimensions: []string{"Employees.squad"},
	})

	assert.Equal(t,
		"SELECT \"Employees\".\"squad\" AS \"Employees.squad\", COUNT(*) AS \"Employees.count\"\n"+
			"FROM \"employees\" AS \"Employees\"\n"+
			"WHERE \"Employees\".org_id = $1\n"+
			"GROUP BY 1\n"+
			"LIMIT 10000",
		plan.SQL)
	assert.Equal(t, []any{int64(42)}, plan.Params)
	assert.Equal(t, []string{"Employees.count"}, plan.NumericFields)
	assert.False(t, plan.Flow)

	ann := plan.Annotation
	assert.Equal(t, "count", ann.Measures["Employees.count"].Type)
	assert.Equal(t, "Squad", ann.Dimensions["Employees.squad"].Title)
	// Untitled fields fall back to the qualified name.
	assert.Equal(t, "Employees.count", ann.Measures["Employees.count"].Title)
}

func TestCompileRequiresConnection(t *testing.T) {
	_, err := testPlanner(t).Compile(&prism.SemanticQuery{Measures: []string{"Employees.count"}}, nil)
	require.Error(t, err)

	_, err = testPlanner(t).Compile(&prism.SemanticQuery{Measures: []string{"Employees.count"}},
		&prism.QueryContext{})
	require.Error(t, err)
}

func TestCompileRejectsEmptyProjection(t *testing.T) {
	_, err := compileOn(t, prism.DialectPostgres, &prism.SemanticQuery{})
	require.Error(t, err)

	_, err = compileOn(t, prism.DialectPostgres, &prism.SemanticQuery{
		Measures: []string{"Employees.nope"},
	})
	require.Error(t, err)
	assert.Equal(t, prism.ErrKindUnknownField, prism.ErrorKind(err))

	_, err = compileOn(t, prism.DialectPostgres, &prism.SemanticQuery{
		Measures: []string{"Nowhere.count"},
	})
	require.Error(t, err)
	assert.Equal(t, prism.ErrKindUnknownField, prism.ErrorKind(err))
}

func TestCompileJoin(t *testing.T) {
	plan := mustCompile(t, prism.DialectPostgres, &prism.SemanticQuery{
		Measures:   []string{"Employees.count"},
		Dimensions: []string{"Departments.name"},
	})

	assert.Contains(t, plan.SQL,
		"INNER JOIN \"departments\" AS \"Departments\" ON \"Employees\".\"dept_id\" = \"Departments\".\"id\"")
	assert.Contains(t, plan.SQL, "\"Departments\".\"name\" AS \"Departments.name\"")
}

func TestCompileReverseJoinWarnsOnFanOut(t *testing.T) {
	plan := mustCompile(t, prism.DialectPostgres, &prism.SemanticQuery{
		Measures: []string{"Departments.count"},
		Filters:  []prism.Filter{prism.Where("Employees.active", prism.OpEquals, true)},
	})

	assert.Contains(t, plan.SQL, "LEFT JOIN \"employees\" AS \"Employees\"")
	var codes []string
	for _, w := range plan.Warnings {
		codes = append(codes, w.Code)
	}
	assert.Contains(t, codes, prism.WarnHasManyFanOut)
}

func TestCompileCubesHint(t *testing.T) {
	plan := mustCompile(t, prism.DialectPostgres, &prism.SemanticQuery{
		Measures: []string{"Departments.count"},
		Cubes:    []string{"Employees"},
	})
	assert.Contains(t, plan.SQL, "INNER JOIN \"employees\" AS \"Employees\"")
}

func TestCompileUnconnectedCubes(t *testing.T) {
	_, err := compileOn(t, prism.DialectPostgres, &prism.SemanticQuery{
		Measures:   []string{"Employees.count"},
		Dimensions: []string{"Orphans.id"},
	})
	require.Error(t, err)
	assert.Equal(t, prism.ErrKindUnconnectedCubes, prism.ErrorKind(err))
}

func TestCompileWhereAndHavingSplit(t *testing.T) {
	plan := mustCompile(t, prism.DialectPostgres, &prism.SemanticQuery{
		Measures:   []string{"Employees.salarySum"},
		Dimensions: []string{"Employees.squad"},
		Filters: []prism.Filter{
			prism.Where("Employees.squad", prism.OpNotEquals, "contractors"),
			prism.Where("Employees.salarySum", prism.OpGt, 100000),
		},
	})

	assert.Contains(t, plan.SQL, "WHERE \"Employees\".org_id = $1 AND \"Employees\".\"squad\" != $2")
	assert.Contains(t, plan.SQL, "HAVING SUM(\"Employees\".\"salary\") > $3")
	assert.Equal(t, []any{int64(42), "contractors", 100000}, plan.Params)
}

func TestCompileRejectsHavingOnNonAggregate(t *testing.T) {
	_, err := compileOn(t, prism.DialectPostgres, &prism.SemanticQuery{
		Measures: []string{"Employees.activeShare"},
		Filters: []prism.Filter{
			prism.Where("Employees.activeShare", prism.OpGt, 50),
		},
	})
	require.Error(t, err)
	assert.Equal(t, prism.ErrKindUnsupportedMeasure, prism.ErrorKind(err))
}

func TestCompileMeasureFilters(t *testing.T) {
	pg := mustCompile(t, prism.DialectPostgres, &prism.SemanticQuery{
		Measures: []string{"Employees.activeCount"},
	})
	// The measure predicate lives in the SELECT list, so its parameter
	// numbers ahead of the security scope in WHERE.
	assert.Contains(t, pg.SQL, "COUNT(*) FILTER (WHERE (\"Employees\".\"active\" = $1))")
	assert.Equal(t, []any{true, int64(42)}, pg.Params)

	my := mustCompile(t, prism.DialectMySQL, &prism.SemanticQuery{
		Measures: []string{"Employees.activeCount"},
	})
	assert.Contains(t, my.SQL, "COUNT(CASE WHEN (`Employees`.`active` = ?) THEN 1 END)")
	assert.NotContains(t, my.SQL, "FILTER (WHERE")
}

func TestCompileStatisticalMeasures(t *testing.T) {
	plan := mustCompile(t, prism.DialectPostgres, &prism.SemanticQuery{
		Measures: []string{
			"Employees.medianSalary", "Employees.stddevSalary",
			"Employees.squads", "Employees.squadsApprox",
		},
	})
	assert.Contains(t, plan.SQL, "PERCENTILE_CONT(0.5) WITHIN GROUP (ORDER BY \"Employees\".\"salary\")")
	assert.Contains(t, plan.SQL, "STDDEV_SAMP(\"Employees\".\"salary\")")
	assert.Contains(t, plan.SQL, "COUNT(DISTINCT \"Employees\".\"squad\")")

	// Engines without the aggregate reject at planning, not at runtime.
	_, err := compileOn(t, prism.DialectSQLite, &prism.SemanticQuery{
		Measures: []string{"Employees.medianSalary"},
	})
	require.Error(t, err)
	assert.Equal(t, prism.ErrKindUnsupportedMeasure, prism.ErrorKind(err))

	duck := mustCompile(t, prism.DialectDuckDB, &prism.SemanticQuery{
		Measures: []string{"Employees.squadsApprox"},
	})
	assert.Contains(t, duck.SQL, "APPROX_COUNT_DISTINCT(\"Employees\".\"squad\")")
}

func TestCompileTimeDimension(t *testing.T) {
	plan := mustCompile(t, prism.DialectPostgres, &prism.SemanticQuery{
		Measures: []string{"Employees.count"},
		TimeDimensions: []prism.TimeDimensionRequest{
			{Dimension: "Employees.hiredAt", Granularity: prism.GranularityMonth},
		},
	})
	assert.Contains(t, plan.SQL,
		"DATE_TRUNC('month', \"Employees\".\"hired_at\") AS \"Employees.hiredAt\"")
	assert.Contains(t, plan.SQL, "GROUP BY 1")
	assert.Equal(t, "month", plan.Annotation.TimeDimensions["Employees.hiredAt"].Granularity)
}

func TestCompileTimeDimensionRange(t *testing.T) {
	plan := mustCompile(t, prism.DialectPostgres, &prism.SemanticQuery{
		Measures: []string{"Employees.count"},
		TimeDimensions: []prism.TimeDimensionRequest{
			{
				Dimension:   "Employees.hiredAt",
				Granularity: prism.GranularityDay,
				DateRange:   []string{"2026-01-01", "2026-01-31"},
			},
		},
	})
	assert.Contains(t, plan.SQL, "\"Employees\".\"hired_at\" >= $2 AND \"Employees\".\"hired_at\" <= $3")
	require.Len(t, plan.Params, 3)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), plan.Params[1])
}

func TestCompileTimeDimensionValidation(t *testing.T) {
	_, err := compileOn(t, prism.DialectPostgres, &prism.SemanticQuery{
		Measures: []string{"Employees.count"},
		TimeDimensions: []prism.TimeDimensionRequest{
			{Dimension: "Employees.squad", Granularity: prism.GranularityDay},
		},
	})
	require.Error(t, err)
	assert.Equal(t, prism.ErrKindUnknownField, prism.ErrorKind(err))

	_, err = compileOn(t, prism.DialectPostgres, &prism.SemanticQuery{
		Measures: []string{"Employees.count"},
		TimeDimensions: []prism.TimeDimensionRequest{
			{Dimension: "Employees.hiredAt", Granularity: "fortnight"},
		},
	})
	require.Error(t, err)
	assert.Equal(t, prism.ErrKindInvalidGranularity, prism.ErrorKind(err))

	_, err = compileOn(t, prism.DialectPostgres, &prism.SemanticQuery{
		Measures: []string{"Employees.count"},
		TimeDimensions: []prism.TimeDimensionRequest{
			{Dimension: "Employees.hiredAt", DateRange: "one eternity ago"},
		},
	})
	require.Error(t, err)
	assert.Equal(t, prism.ErrKindInvalidDateRange, prism.ErrorKind(err))
}

func TestCompileSQLiteTimeBucketWarns(t *testing.T) {
	plan := mustCompile(t, prism.DialectSQLite, &prism.SemanticQuery{
		Measures: []string{"Employees.count"},
		TimeDimensions: []prism.TimeDimensionRequest{
			{Dimension: "Employees.hiredAt", Granularity: prism.GranularityDay},
		},
	})
	assert.Contains(t, plan.SQL, "strftime")
	require.NotEmpty(t, plan.Warnings)
	assert.Equal(t, prism.WarnDialectBehaviour, plan.Warnings[0].Code)
}

func TestCompileMySQLBucketReplicatesArgs(t *testing.T) {
	// The mysql quarter truncation embeds the operand twice; a dimension
	// backed by a parameterised expression must bind its args once per copy.
	reg := prism.NewCubeRegistry()
	require.NoError(t, reg.Register(&prism.Cube{
		Name: "Tickets",
		Dimensions: map[string]prism.Dimension{
			"closedAt": {
				SQL:  prism.Expression{SQL: "COALESCE({CUBE}.closed_at, ?)", Args: []any{"2000-01-01"}},
				Type: prism.DimensionTypeTime,
			},
		},
		Measures: map[string]prism.Measure{"count": {Type: prism.MeasureCount}},
	}))
	require.NoError(t, reg.Freeze())

	plan, err := NewPlanner(reg, prism.DefaultConfig()).Compile(&prism.SemanticQuery{
		Measures: []string{"Tickets.count"},
		TimeDimensions: []prism.TimeDimensionRequest{
			{Dimension: "Tickets.closedAt", Granularity: prism.GranularityQuarter},
		},
	}, testQueryContext(prism.DialectMySQL))
	require.NoError(t, err)
	assert.Equal(t, strings.Count(plan.SQL, "?"), len(plan.Params))
	assert.Equal(t, []any{"2000-01-01", "2000-01-01"}, plan.Params)
}

func TestCompileCalculatedMeasure(t *testing.T) {
	plan := mustCompile(t, prism.DialectPostgres, &prism.SemanticQuery{
		Measures:   []string{"Employees.activeShare"},
		Dimensions: []string{"Employees.squad"},
	})

	// Two stages: hidden aggregates inside, arithmetic over q outside.
	assert.Contains(t, plan.SQL, ") AS q")
	assert.Contains(t, plan.SQL, "AS \"Employees.activeCount\"")
	assert.Contains(t, plan.SQL, "AS \"Employees.count\"")
	assert.Contains(t, plan.SQL,
		"((q.\"Employees.activeCount\" / NULLIF(q.\"Employees.count\", 0)) * 100) AS \"Employees.activeShare\"")
	assert.Contains(t, plan.SQL, "q.\"Employees.squad\" AS \"Employees.squad\"")

	// Hidden dependencies stay out of the response contract.
	assert.Equal(t, []string{"Employees.activeShare"}, plan.NumericFields)
}

func TestCompileCalculatedMeasureErrors(t *testing.T) {
	_, err := compileOn(t, prism.DialectPostgres, &prism.SemanticQuery{
		Measures: []string{"Employees.badCalc"},
	})
	require.Error(t, err)
	assert.Equal(t, prism.ErrKindCalcUnresolved, prism.ErrorKind(err))

	_, err = compileOn(t, prism.DialectPostgres, &prism.SemanticQuery{
		Measures: []string{"Employees.loopA"},
	})
	require.Error(t, err)
	assert.Equal(t, prism.ErrKindCalcCycle, prism.ErrorKind(err))
}

func TestCompileWindowMeasures(t *testing.T) {
	plan := mustCompile(t, prism.DialectPostgres, &prism.SemanticQuery{
		Measures:   []string{"Employees.count", "Employees.runningCount"},
		Dimensions: []string{"Employees.hiredAt"},
	})
	assert.Contains(t, plan.SQL,
		"SUM(q.\"Employees.count\") OVER (ORDER BY q.\"Employees.hiredAt\" ASC ROWS UNBOUNDED PRECEDING) AS \"Employees.runningCount\"")

	plan = mustCompile(t, prism.DialectPostgres, &prism.SemanticQuery{
		Measures:   []string{"Employees.salaryChange"},
		Dimensions: []string{"Employees.hiredAt"},
	})
	assert.Contains(t, plan.SQL, "LAG(q.\"Employees.salarySum\", 1) OVER (ORDER BY q.\"Employees.hiredAt\" ASC)")
	assert.Contains(t, plan.SQL, "NULLIF(")
	assert.Contains(t, plan.SQL, "* 100")

	// Rank needs no explicit order; it defaults to the source value.
	plan = mustCompile(t, prism.DialectPostgres, &prism.SemanticQuery{
		Measures:   []string{"Employees.salaryRank"},
		Dimensions: []string{"Employees.squad"},
	})
	assert.Contains(t, plan.SQL, "RANK() OVER (ORDER BY q.\"Employees.salarySum\" DESC)")
}

func TestCompileWindowMeasureValidation(t *testing.T) {
	// The orderBy dimension is not projected.
	_, err := compileOn(t, prism.DialectPostgres, &prism.SemanticQuery{
		Measures:   []string{"Employees.runningCount"},
		Dimensions: []string{"Employees.squad"},
	})
	require.Error(t, err)
	assert.Equal(t, prism.ErrKindIncompatibleWindow, prism.ErrorKind(err))
}

func TestCompileComparisonMode(t *testing.T) {
	plan := mustCompile(t, prism.DialectPostgres, &prism.SemanticQuery{
		Measures: []string{"Employees.count"},
		TimeDimensions: []prism.TimeDimensionRequest{
			{
				Dimension:        "Employees.hiredAt",
				Granularity:      prism.GranularityMonth,
				DateRange:        []string{"2026-01-01", "2026-03-31"},
				CompareDateRange: true,
			},
		},
		Order: []prism.OrderEntry{{Member: "__period", Direction: prism.OrderAsc}},
	})

	assert.Contains(t, plan.SQL, "UNION ALL")
	assert.Contains(t, plan.SQL, "'current' AS \"__period\"")
	assert.Contains(t, plan.SQL, "'prior' AS \"__period\"")
	assert.Contains(t, plan.SQL, "ORDER BY \"__period\" ASC")

	// org + range bounds, once per branch.
	require.Len(t, plan.Params, 6)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), plan.Params[1])
	assert.Equal(t, time.Date(2026, 3, 31, 23, 59, 59, 999000000, time.UTC), plan.Params[2])
	// The prior branch spans the same length, ending just before the
	// current range starts.
	assert.Equal(t, time.Date(2025, 12, 31, 23, 59, 59, 999000000, time.UTC), plan.Params[5])
}

func TestCompileComparisonFoldsDateRangeFilter(t *testing.T) {
	plan := mustCompile(t, prism.DialectPostgres, &prism.SemanticQuery{
		Measures: []string{"Employees.count"},
		TimeDimensions: []prism.TimeDimensionRequest{
			{Dimension: "Employees.hiredAt", Granularity: prism.GranularityMonth, CompareDateRange: true},
		},
		Filters: []prism.Filter{
			prism.Where("Employees.hiredAt", prism.OpInDateRange, "2026-01-01", "2026-01-31"),
		},
	})
	// The inDateRange filter feeds comparison mode instead of WHERE, so the
	// bound count stays one org value plus two range bounds per branch.
	require.Len(t, plan.Params, 6)
	assert.Contains(t, plan.SQL, "UNION ALL")
}

func TestCompileComparisonNeedsRange(t *testing.T) {
	_, err := compileOn(t, prism.DialectPostgres, &prism.SemanticQuery{
		Measures: []string{"Employees.count"},
		TimeDimensions: []prism.TimeDimensionRequest{
			{Dimension: "Employees.hiredAt", Granularity: prism.GranularityMonth, CompareDateRange: true},
		},
	})
	require.Error(t, err)
	assert.Equal(t, prism.ErrKindInvalidDateRange, prism.ErrorKind(err))
}

func TestCompileOrderValidation(t *testing.T) {
	_, err := compileOn(t, prism.DialectPostgres, &prism.SemanticQuery{
		Measures: []string{"Employees.count"},
		Order:    []prism.OrderEntry{{Member: "Employees.squad"}},
	})
	require.Error(t, err)
	assert.Equal(t, prism.ErrKindInvalidOrderField, prism.ErrorKind(err))

	_, err = compileOn(t, prism.DialectPostgres, &prism.SemanticQuery{
		Measures: []string{"Employees.count"},
		Order:    []prism.OrderEntry{{Member: "Employees.count", Direction: "sideways"}},
	})
	require.Error(t, err)
	assert.Equal(t, prism.ErrKindInvalidOrderField, prism.ErrorKind(err))

	plan := mustCompile(t, prism.DialectPostgres, &prism.SemanticQuery{
		Measures:   []string{"Employees.count"},
		Dimensions: []string{"Employees.squad"},
		Order: []prism.OrderEntry{
			{Member: "Employees.count", Direction: prism.OrderDesc},
			{Member: "Employees.squad"},
		},
	})
	assert.Contains(t, plan.SQL, "ORDER BY \"Employees.count\" DESC, \"Employees.squad\" ASC")
}

func TestCompileLimitAndOffset(t *testing.T) {
	plan := mustCompile(t, prism.DialectPostgres, &prism.SemanticQuery{
		Measures: []string{"Employees.count"},
		Limit:    25,
		Offset:   50,
	})
	assert.Contains(t, plan.SQL, "LIMIT 25\nOFFSET 50")

	_, err := compileOn(t, prism.DialectPostgres, &prism.SemanticQuery{
		Measures: []string{"Employees.count"},
		Offset:   50,
	})
	require.Error(t, err)
	assert.Equal(t, prism.ErrKindOffsetWithoutLimit, prism.ErrorKind(err))

	// Limits above the cap clamp with a warning.
	plan = mustCompile(t, prism.DialectPostgres, &prism.SemanticQuery{
		Measures: []string{"Employees.count"},
		Limit:    10_000_000,
	})
	assert.Contains(t, plan.SQL, "LIMIT 50000")
	require.NotEmpty(t, plan.Warnings)
	assert.Equal(t, prism.WarnDialectBehaviour, plan.Warnings[0].Code)
}

func TestCompileDistinctValues(t *testing.T) {
	p := testPlanner(t)
	plan, err := p.CompileDistinctValues("Employees.squad", testQueryContext(prism.DialectPostgres), 10)
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT DISTINCT \"Employees\".\"squad\" AS \"Employees.squad\"\n"+
			"FROM \"employees\" AS \"Employees\"\n"+
			"WHERE \"Employees\".org_id = $1 AND \"Employees\".\"squad\" IS NOT NULL\n"+
			"ORDER BY 1\n"+
			"LIMIT 10",
		plan.SQL)
	assert.Equal(t, []any{int64(42)}, plan.Params)

	// Out-of-range limits clamp to the configured maximum.
	plan, err = p.CompileDistinctValues("Employees.squad", testQueryContext(prism.DialectPostgres), -1)
	require.NoError(t, err)
	assert.Contains(t, plan.SQL, "LIMIT 1000")

	_, err = p.CompileDistinctValues("Employees.nope", testQueryContext(prism.DialectPostgres), 10)
	require.Error(t, err)
	assert.Equal(t, prism.ErrKindUnknownField, prism.ErrorKind(err))
}

func TestCompileParamOrderAcrossStages(t *testing.T) {
	// Placeholder numbering must follow text order even when security
	// predicates, measure filters and user filters interleave.
	plan := mustCompile(t, prism.DialectPostgres, &prism.SemanticQuery{
		Measures:   []string{"Employees.activeShare"},
		Dimensions: []string{"Employees.squad"},
		Filters: []prism.Filter{
			prism.Where("Employees.squad", prism.OpNotEquals, "contractors"),
		},
	})
	n := strings.Count(plan.SQL, "$")
	assert.Equal(t, n, len(plan.Params))
	for i := 1; i <= n; i++ {
		assert.Contains(t, plan.SQL, "$"+string(rune('0'+i)))
	}
}

func TestCompileNeverInlinesFilterValues(t *testing.T) {
	baseline := mustCompile(t, prism.DialectPostgres, &prism.SemanticQuery{
		Measures: []string{"Employees.count"},
		Filters:  []prism.Filter{prism.Where("Employees.name", prism.OpEquals, "baseline")},
	})
	require.Contains(t, baseline.Params, any("baseline"))

	// The statement text is a pure function of the query shape; hostile
	// values only ever move the bound parameter.
	hostile := []string{
		"'; DROP TABLE employees;--",
		"%",
		`"`,
		`\`,
		"{CUBE}",
		"$1 OR 1=1",
		"",
	}
	for _, value := range hostile {
		plan := mustCompile(t, prism.DialectPostgres, &prism.SemanticQuery{
			Measures: []string{"Employees.count"},
			Filters:  []prism.Filter{prism.Where("Employees.name", prism.OpEquals, value)},
		})
		assert.Equal(t, baseline.SQL, plan.SQL, "value %q changed the statement text", value)
		assert.Contains(t, plan.Params, any(value))
		if value != "" {
			assert.NotContains(t, plan.SQL, value)
		}
	}

	// Pattern operators wrap the value inside the parameter, not the text.
	plan := mustCompile(t, prism.DialectPostgres, &prism.SemanticQuery{
		Measures: []string{"Employees.count"},
		Filters:  []prism.Filter{prism.Where("Employees.name", prism.OpContains, "'; --")},
	})
	assert.NotContains(t, plan.SQL, "'; --")
	assert.Contains(t, plan.Params, any("%'; --%"))
}

func FuzzCompileFilterValues(f *testing.F) {
	f.Add("core")
	f.Add("'; DROP TABLE employees;--")
	f.Add("%")
	f.Add(`"`)
	f.Add(`\`)
	f.Add("{CUBE}")
	f.Add("$1 OR 1=1")
	f.Add("SELECT")
	f.Fuzz(func(t *testing.T, value string) {
		p := testPlanner(t)
		query := func(v string) *prism.SemanticQuery {
			return &prism.SemanticQuery{
				Measures: []string{"Employees.count"},
				Filters:  []prism.Filter{prism.Where("Employees.name", prism.OpEquals, v)},
			}
		}
		baseline, err := p.Compile(query("baseline"), testQueryContext(prism.DialectPostgres))
		require.NoError(t, err)

		plan, err := p.Compile(query(value), testQueryContext(prism.DialectPostgres))
		require.NoError(t, err)
		require.Equal(t, baseline.SQL, plan.SQL, "value %q changed the statement text", value)
		require.Contains(t, plan.Params, any(value))
	})
}
