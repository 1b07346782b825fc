package internal

import (
	"context"
	"sync"
)

// telemetry.go
// Lightweight telemetry hook layer for the query engine. Callers may
// register a real OpenTelemetry emitter (or a test stub) via
// RegisterTelemetryEmitter; the default is a no-op so the engine carries no
// hard dependency on an OTEL SDK.

type telemetryEmitter func(ctx context.Context, name string, labels map[string]string, value any)

var (
	teleMu   sync.Mutex
	teleImpl telemetryEmitter = func(ctx context.Context, name string, labels map[string]string, value any) {
		// noop by default
	}
)

// RegisterTelemetryEmitter registers a custom emitter function.
func RegisterTelemetryEmitter(fn telemetryEmitter) {
	teleMu.Lock()
	defer teleMu.Unlock()
	if fn == nil {
		teleImpl = func(ctx context.Context, name string, labels map[string]string, value any) {}
		return
	}
	teleImpl = fn
}

// EmitQueryLatency records a latency measure (milliseconds) for a named
// pipeline stage.
// name: "semantic_query_latency_histogram" with label {"stage": "<plan|execute|coerce>"}
func EmitQueryLatency(ctx context.Context, stage string, ms int64) {
	teleMu.Lock()
	fn := teleImpl
	teleMu.Unlock()
	fn(ctx, "semantic_query_latency_histogram", map[string]string{"stage": stage}, ms)
}

// EmitRowCount records result row counts per dialect.
// name: "semantic_query_row_count" with label {"dialect": "<postgres|duckdb|...>"}
func EmitRowCount(ctx context.Context, dialect string, rows int64) {
	teleMu.Lock()
	fn := teleImpl
	teleMu.Unlock()
	fn(ctx, "semantic_query_row_count", map[string]string{"dialect": dialect}, rows)
}

// EmitQueryError records a failed query by error kind.
// name: "semantic_query_errors" with label {"kind": "<error kind>"}
func EmitQueryError(ctx context.Context, kind string) {
	teleMu.Lock()
	fn := teleImpl
	teleMu.Unlock()
	fn(ctx, "semantic_query_errors", map[string]string{"kind": kind}, int64(1))
}
