package main

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/lychee-technology/prism"
)

// handleMetadata handles GET /api/v1/metadata
func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"cubes": s.engine.Metadata()})
}

// handleQuery handles POST /api/v1/query
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	payload, err := readSemanticQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	qctx, err := s.queryContext(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if payload.Flow != nil {
		result, err := s.engine.ExecuteFlow(r.Context(), payload, qctx)
		if err != nil {
			writeError(w, statusForError(err), fmt.Sprintf("flow query failed: %v", err))
			return
		}
		writeSuccess(w, http.StatusOK, result)
		return
	}

	result, err := s.engine.Execute(r.Context(), payload, qctx)
	if err != nil {
		writeError(w, statusForError(err), fmt.Sprintf("query failed: %v", err))
		return
	}
	writeSuccess(w, http.StatusOK, result)
}

// handleCompile handles POST /api/v1/compile. It plans the query and returns
// the SQL without touching the database.
func (s *Server) handleCompile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	payload, err := readSemanticQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	qctx, err := s.queryContext(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	plan, err := s.engine.DryRun(r.Context(), payload, qctx)
	if err != nil {
		writeError(w, statusForError(err), fmt.Sprintf("compile failed: %v", err))
		return
	}
	writeSuccess(w, http.StatusOK, plan)
}

// handleFlow handles POST /api/v1/flow
func (s *Server) handleFlow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	payload, err := readSemanticQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.Flow == nil {
		writeError(w, http.StatusBadRequest, "flow configuration is required")
		return
	}

	qctx, err := s.queryContext(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.engine.ExecuteFlow(r.Context(), payload, qctx)
	if err != nil {
		writeError(w, statusForError(err), fmt.Sprintf("flow query failed: %v", err))
		return
	}
	writeSuccess(w, http.StatusOK, result)
}

// explainRequest is the POST /api/v1/explain payload.
type explainRequest struct {
	Query   *prism.SemanticQuery `json:"query"`
	Analyze bool                 `json:"analyze,omitempty"`
}

// handleExplain handles POST /api/v1/explain
func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var payload explainRequest
	if err := readJSONBody(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid json body: %v", err))
		return
	}
	if payload.Query == nil {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	qctx, err := s.queryContext(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.engine.Explain(r.Context(), payload.Query, qctx, payload.Analyze)
	if err != nil {
		writeError(w, statusForError(err), fmt.Sprintf("explain failed: %v", err))
		return
	}
	writeSuccess(w, http.StatusOK, result)
}

// handleIndexes handles GET /api/v1/indexes?tables=a,b
func (s *Server) handleIndexes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	tables := splitCommaList(r.URL.Query().Get("tables"))
	if len(tables) == 0 {
		writeError(w, http.StatusBadRequest, "tables query parameter is required")
		return
	}

	qctx, err := s.queryContext(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	indexes, err := s.engine.TableIndexes(r.Context(), qctx, tables)
	if err != nil {
		writeError(w, statusForError(err), fmt.Sprintf("index lookup failed: %v", err))
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"indexes": indexes})
}

// handleDistinctValues handles GET /api/v1/values/{member}?limit=n
func (s *Server) handleDistinctValues(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	member := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/values/"), "/")
	if member == "" {
		writeError(w, http.StatusBadRequest, "member is required")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit: %v", err))
			return
		}
		limit = parsed
	}

	qctx, err := s.queryContext(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	values, err := s.engine.DistinctValues(r.Context(), member, qctx, limit)
	if err != nil {
		writeError(w, statusForError(err), fmt.Sprintf("distinct values failed: %v", err))
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"member": member, "values": values})
}

// queryContext builds the per-request query context from the tenant headers
// and the server's shared connection.
func (s *Server) queryContext(r *http.Request) (*prism.QueryContext, error) {
	rawOrg := r.Header.Get("X-Organisation-ID")
	if rawOrg == "" {
		return nil, fmt.Errorf("X-Organisation-ID header is required")
	}
	orgID, err := strconv.ParseInt(rawOrg, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid X-Organisation-ID: %v", err)
	}

	return &prism.QueryContext{
		Security: prism.SecurityContext{
			OrganisationID: orgID,
			UserID:         r.Header.Get("X-User-ID"),
		},
		Conn:    s.conn,
		Timeout: s.timeout,
		QueryID: r.Header.Get("X-Request-ID"),
	}, nil
}
