package main

import "github.com/lychee-technology/prism"

// demoRegistry declares the cubes the sample queries run against. The
// employees cube is tenant-scoped on org_id so the demo shows the security
// predicate in generated SQL.
func demoRegistry() (*prism.CubeRegistry, error) {
	registry := prism.NewCubeRegistry()

	err := registry.Register(&prism.Cube{
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
			"hiredAt": {SQL: prism.Expression{SQL: "hired_at"}, Type: prism.DimensionTypeTime, Title: "Hired"},
			"deptId":  {SQL: prism.Expression{SQL: "dept_id"}, Type: prism.DimensionTypeNumber},
		},
		Measures: map[string]prism.Measure{
			"count":     {Type: prism.MeasureCount},
			"salarySum": {Type: prism.MeasureSum, SQL: prism.Expression{SQL: "salary"}, Format: prism.FormatCurrency},
			"avgSalary": {Type: prism.MeasureAvg, SQL: prism.Expression{SQL: "salary"}, Format: prism.FormatCurrency},
			"activeCount": {
				Type:    prism.MeasureCount,
				Filters: []prism.Filter{prism.Where("active", prism.OpEquals, true)},
			},
			"activeShare": {
				Type:   prism.MeasureCalculated,
				SQL:    prism.Expression{SQL: "{activeCount} / NULLIF({count}, 0) * 100"},
				Format: prism.FormatPercent,
			},
		},
		Joins: map[string]prism.Join{
			"department": {
				TargetCube:   "Departments",
				Relationship: prism.BelongsTo,
				Columns:      []prism.JoinColumn{{SourceColumn: "dept_id", TargetColumn: "id"}},
			},
		},
	})
	if err != nil {
		return nil, err
	}

	err = registry.Register(&prism.Cube{
		Name:  "Departments",
		Title: "Departments",
		Dimensions: map[string]prism.Dimension{
			"id":   {SQL: prism.Expression{SQL: "id"}, Type: prism.DimensionTypeNumber, PrimaryKey: true},
			"name": {SQL: prism.Expression{SQL: "name"}, Type: prism.DimensionTypeString},
		},
		Measures: map[string]prism.Measure{
			"count": {Type: prism.MeasureCount},
		},
	})
	if err != nil {
		return nil, err
	}

	err = registry.Register(&prism.Cube{
		Name:        "PREvents",
		Title:       "Pull Request Events",
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
	})
	if err != nil {
		return nil, err
	}

	return registry, nil
}
