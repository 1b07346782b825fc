package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lychee-technology/prism"
)

type mockEngine struct {
	result     *prism.ResultSet
	flowResult *prism.FlowResult
	values     []any
	err        error
}

func (m *mockEngine) Metadata() []prism.CubeDescriptor {
	return []prism.CubeDescriptor{{Name: "Employees"}}
}

func (m *mockEngine) Compile(ctx context.Context, q *prism.SemanticQuery, qctx *prism.QueryContext) (*prism.CompiledQuery, error) {
	return nil, fmt.Errorf("not implemented")
}

func (m *mockEngine) DryRun(ctx context.Context, q *prism.SemanticQuery, qctx *prism.QueryContext) (*prism.CompiledQuery, error) {
	return &prism.CompiledQuery{SQL: "SELECT 1", Params: []any{}}, nil
}

func (m *mockEngine) Execute(ctx context.Context, q *prism.SemanticQuery, qctx *prism.QueryContext) (*prism.ResultSet, error) {
	return m.result, m.err
}

func (m *mockEngine) ExecuteFlow(ctx context.Context, q *prism.SemanticQuery, qctx *prism.QueryContext) (*prism.FlowResult, error) {
	return m.flowResult, m.err
}

func (m *mockEngine) Explain(ctx context.Context, q *prism.SemanticQuery, qctx *prism.QueryContext, analyze bool) (*prism.ExplainResult, error) {
	return &prism.ExplainResult{Database: "postgres"}, m.err
}

func (m *mockEngine) TableIndexes(ctx context.Context, qctx *prism.QueryContext, tables []string) ([]prism.IndexInfo, error) {
	return []prism.IndexInfo{{TableName: tables[0], IndexName: "employees_pkey"}}, m.err
}

func (m *mockEngine) DistinctValues(ctx context.Context, member string, qctx *prism.QueryContext, limit int) ([]any, error) {
	return m.values, m.err
}

type stubConn struct{}

func (stubConn) Dialect() prism.Dialect { return prism.DialectPostgres }

func (stubConn) Query(ctx context.Context, sql string, args ...any) (prism.Rows, error) {
	return nil, fmt.Errorf("not implemented")
}

func testServer(engine prism.Engine) *Server {
	return &Server{engine: engine, conn: stubConn{}}
}

func TestHandleQuerySuccess(t *testing.T) {
	server := testServer(&mockEngine{
		result: &prism.ResultSet{
			Data: []prism.Row{{"Employees.count": float64(4)}},
		},
	})

	payload := []byte(`{"measures": ["Employees.count"]}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/query", bytes.NewReader(payload))
	req.Header.Set("X-Organisation-ID", "42")
	rec := httptest.NewRecorder()
	server.handleQuery(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleQueryRequiresOrganisation(t *testing.T) {
	server := testServer(&mockEngine{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/query", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	server.handleQuery(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestHandleQueryRejectsUnknownField(t *testing.T) {
	server := testServer(&mockEngine{})

	payload := []byte(`{"measuers": ["Employees.count"]}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/query", bytes.NewReader(payload))
	req.Header.Set("X-Organisation-ID", "42")
	rec := httptest.NewRecorder()
	server.handleQuery(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for misspelled field, got %d", rec.Code)
	}
}

func TestHandleQueryValidationErrorMapsTo400(t *testing.T) {
	server := testServer(&mockEngine{
		err: prism.NewUnknownFieldError("Employees.ghost"),
	})

	payload := []byte(`{"measures": ["Employees.ghost"]}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/query", bytes.NewReader(payload))
	req.Header.Set("X-Organisation-ID", "42")
	rec := httptest.NewRecorder()
	server.handleQuery(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestHandleQueryDispatchesFlow(t *testing.T) {
	server := testServer(&mockEngine{
		flowResult: &prism.FlowResult{
			Nodes: []prism.FlowNode{{ID: "0_opened", Name: "opened", Value: 3}},
		},
	})

	payload := []byte(`{"flow": {
		"startingStep": {"member": "PREvents.eventType", "operator": "equals", "values": ["opened"]},
		"bindingKey": "PREvents.actorId",
		"timeDimension": "PREvents.occurredAt",
		"eventDimension": "PREvents.eventType",
		"stepsAfter": 2
	}}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/query", bytes.NewReader(payload))
	req.Header.Set("X-Organisation-ID", "42")
	rec := httptest.NewRecorder()
	server.handleQuery(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleFlowRequiresConfig(t *testing.T) {
	server := testServer(&mockEngine{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/flow", bytes.NewReader([]byte(`{"measures": ["X.y"]}`)))
	req.Header.Set("X-Organisation-ID", "42")
	rec := httptest.NewRecorder()
	server.handleFlow(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestHandleExplainRequiresQuery(t *testing.T) {
	server := testServer(&mockEngine{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/explain", bytes.NewReader([]byte(`{"analyze": true}`)))
	req.Header.Set("X-Organisation-ID", "42")
	rec := httptest.NewRecorder()
	server.handleExplain(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestHandleIndexesRequiresTables(t *testing.T) {
	server := testServer(&mockEngine{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/indexes", nil)
	req.Header.Set("X-Organisation-ID", "42")
	rec := httptest.NewRecorder()
	server.handleIndexes(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestHandleDistinctValues(t *testing.T) {
	server := testServer(&mockEngine{values: []any{"core", "infra"}})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/values/Employees.squad?limit=10", nil)
	req.Header.Set("X-Organisation-ID", "42")
	rec := httptest.NewRecorder()
	server.handleDistinctValues(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleMetadataMethodCheck(t *testing.T) {
	server := testServer(&mockEngine{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/metadata", nil)
	rec := httptest.NewRecorder()
	server.handleMetadata(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status 405, got %d", rec.Code)
	}
}
