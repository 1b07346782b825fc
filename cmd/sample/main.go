package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/lychee-technology/prism"
	"github.com/lychee-technology/prism/factory"
	"github.com/lychee-technology/prism/internal"
)

func main() {
	// Command line flags
	csvFile := flag.String("csv", "", "Path to an employees CSV to import (optional; built-in dataset otherwise)")
	dbPath := flag.String("db", "", "DuckDB database path (empty for in-memory)")
	orgID := flag.Int64("org", 42, "Organisation id the demo queries run as")
	verbose := flag.Bool("verbose", false, "Enable verbose logging")
	flag.Parse()

	// Setup logging
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	if *verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		cfg.Development = true
	}
	logger, err := cfg.Build()
	if err != nil {
		panic(fmt.Errorf("failed to build logger: %w", err))
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	sugar := logger.Sugar()

	ctx := context.Background()

	// Open DuckDB
	sugar.Infof("Opening DuckDB (path: %q)", *dbPath)
	client, err := internal.NewDuckDBClient(prism.DuckDBConfig{DBPath: *dbPath})
	if err != nil {
		sugar.Fatalf("Failed to open DuckDB: %v", err)
	}
	defer client.Close()

	// Seed the demo schema
	if err := seedSchema(ctx, client.DB); err != nil {
		sugar.Fatalf("Failed to create tables: %v", err)
	}
	if err := seedDemoRows(ctx, client.DB); err != nil {
		sugar.Fatalf("Failed to seed demo rows: %v", err)
	}

	// Optionally layer a CSV on top of the built-in dataset
	if *csvFile != "" {
		sugar.Infof("Importing employees from: %s", *csvFile)
		result, err := ImportEmployeesFromFile(ctx, client.DB, *csvFile)
		if err != nil {
			sugar.Fatalf("Import failed: %v", err)
		}
		sugar.Info(result.Summary())
		for i, importErr := range result.Errors {
			if i >= 10 {
				sugar.Infof("  ... and %d more errors", len(result.Errors)-10)
				break
			}
			sugar.Infof("  [%d] %s", i+1, importErr.Error())
		}
	}

	// Build the engine
	registry, err := demoRegistry()
	if err != nil {
		sugar.Fatalf("Failed to build cube registry: %v", err)
	}
	engine, err := factory.NewEngine(registry, nil)
	if err != nil {
		sugar.Fatalf("Failed to create engine: %v", err)
	}

	qctx := &prism.QueryContext{
		Security: prism.SecurityContext{OrganisationID: *orgID},
		Conn:     client.Connection(),
	}

	// 1. Aggregation by squad
	sugar.Info("Query 1: headcount and salary by squad")
	runQuery(ctx, engine, qctx, &prism.SemanticQuery{
		Measures:   []string{"Employees.count", "Employees.salarySum"},
		Dimensions: []string{"Employees.squad"},
		Order:      []prism.OrderEntry{{Member: "Employees.count", Direction: prism.OrderDesc}},
	}, sugar)

	// 2. Monthly hires via a bucketed time dimension
	sugar.Info("Query 2: hires per month")
	runQuery(ctx, engine, qctx, &prism.SemanticQuery{
		Measures: []string{"Employees.count"},
		TimeDimensions: []prism.TimeDimensionRequest{
			{Dimension: "Employees.hiredAt", Granularity: prism.GranularityMonth},
		},
	}, sugar)

	// 3. Calculated measure over a join
	sugar.Info("Query 3: active share per department")
	runQuery(ctx, engine, qctx, &prism.SemanticQuery{
		Measures:   []string{"Employees.activeShare"},
		Dimensions: []string{"Departments.name"},
	}, sugar)

	// 4. Flow over the event stream
	sugar.Info("Query 4: what happens after a PR is opened")
	flowResult, err := engine.ExecuteFlow(ctx, &prism.SemanticQuery{
		Flow: &prism.FlowConfig{
			StartingStep:   prism.Where("eventType", prism.OpEquals, "opened"),
			BindingKey:     "PREvents.actorId",
			TimeDimension:  "PREvents.occurredAt",
			EventDimension: "PREvents.eventType",
			StepsAfter:     2,
		},
	}, qctx)
	if err != nil {
		sugar.Errorf("Flow query failed: %v", err)
	} else {
		printJSON("flow", flowResult, sugar)
	}

	// 5. Distinct values for a filter picker
	values, err := engine.DistinctValues(ctx, "Employees.squad", qctx, 20)
	if err != nil {
		sugar.Errorf("Distinct values failed: %v", err)
	} else {
		sugar.Infof("Squads: %v", values)
	}

	// 6. Explain the first query
	explain, err := engine.Explain(ctx, &prism.SemanticQuery{
		Measures:   []string{"Employees.count"},
		Dimensions: []string{"Employees.squad"},
	}, qctx, false)
	if err != nil {
		sugar.Errorf("Explain failed: %v", err)
	} else {
		printJSON("explain", explain, sugar)
	}

	// 7. Index catalog for the touched table
	indexes, err := engine.TableIndexes(ctx, qctx, []string{"employees"})
	if err != nil {
		sugar.Errorf("Index lookup failed: %v", err)
	} else {
		printJSON("indexes", indexes, sugar)
	}

	sugar.Info("Done")
	os.Exit(0)
}

// runQuery executes one semantic query and prints its SQL and rows.
func runQuery(ctx context.Context, engine prism.Engine, qctx *prism.QueryContext, q *prism.SemanticQuery, sugar *zap.SugaredLogger) {
	plan, err := engine.DryRun(ctx, q, qctx)
	if err != nil {
		sugar.Errorf("Compile failed: %v", err)
		return
	}
	sugar.Infof("SQL:\n%s", plan.SQL)

	result, err := engine.Execute(ctx, q, qctx)
	if err != nil {
		sugar.Errorf("Execute failed: %v", err)
		return
	}
	for _, warning := range result.Warnings {
		sugar.Warnf("  warning [%s]: %s", warning.Code, warning.Message)
	}
	printJSON("rows", result.Data, sugar)
}

// printJSON pretty-prints a result under a label.
func printJSON(label string, v any, sugar *zap.SugaredLogger) {
	jsonBytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		sugar.Errorf("Error marshaling %s to JSON: %v", label, err)
		return
	}
	sugar.Infof("%s:\n%s", label, string(jsonBytes))
}
